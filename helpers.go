package main

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

func parseSize(s string) (int64, error) {
	ss := strings.TrimSpace(strings.ToLower(s))
	if ss == "" {
		return 0, fmt.Errorf("empty size")
	}
	mult := int64(1)
	switch {
	case strings.HasSuffix(ss, "k"):
		mult = 1024
		ss = strings.TrimSuffix(ss, "k")
	case strings.HasSuffix(ss, "m"):
		mult = 1024 * 1024
		ss = strings.TrimSuffix(ss, "m")
	case strings.HasSuffix(ss, "g"):
		mult = 1024 * 1024 * 1024
		ss = strings.TrimSuffix(ss, "g")
	case strings.HasSuffix(ss, "b"):
		ss = strings.TrimSuffix(ss, "b")
	}
	// Hex sizes cannot take a suffix: "0x1b" is a number, not 1 byte.
	if strings.HasPrefix(ss, "0x") && mult == 1 {
		v, err := strconv.ParseUint(strings.TrimSpace(strings.ToLower(s))[2:], 16, 63)
		if err != nil {
			return 0, fmt.Errorf("invalid size %q", s)
		}
		return int64(v), nil
	}
	v, err := strconv.ParseFloat(ss, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	return int64(v * float64(mult)), nil
}

// parseAddr parses a 32-bit flash address, decimal or 0x hex.
func parseAddr(s string) (uint32, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q", s)
	}
	return uint32(v), nil
}

// heldWriter passes writes through to w, except while held: then they are
// buffered and flushed on release. It keeps log lines off the screen
// while the fullscreen UI owns the terminal.
type heldWriter struct {
	mu  sync.Mutex
	w   io.Writer
	buf *bytes.Buffer
}

func (h *heldWriter) Write(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.buf != nil {
		return h.buf.Write(p)
	}
	return h.w.Write(p)
}

func (h *heldWriter) hold() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.buf == nil {
		h.buf = new(bytes.Buffer)
	}
}

func (h *heldWriter) release() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.buf == nil {
		return nil
	}
	_, err := h.buf.WriteTo(h.w)
	h.buf = nil
	return err
}

package flashdrv

import (
	"fmt"
	"io"
)

// Read copies count logical sectors starting at sector into buf. Flash is
// read through the memory view; no hardware capability is called.
func (d *Driver) Read(buf []byte, sector, count uint32) error {
	cfg := d.config()
	if cfg == nil {
		return ErrNotReady
	}
	start, stop, err := checkRange(cfg, buf, sector, count)
	if err != nil {
		d.logError("read rejected", "sector", sector, "count", count, "err", err)
		return err
	}
	if !d.acquire() {
		return ErrWriteProtected
	}
	defer d.release()

	if err := readAt(cfg.Memory, buf[:stop-start], start); err != nil {
		d.logError("read failed", "sector", sector, "err", err)
		return fmt.Errorf("%w: read 0x%08X-0x%08X: %v", ErrIO, start, stop, err)
	}
	d.logDebug("read", "sector", sector, "count", count)
	return nil
}

// readAt fills p from mem at the absolute flash address addr.
func readAt(mem io.ReaderAt, p []byte, addr uint32) error {
	n, err := mem.ReadAt(p, int64(addr))
	if n == len(p) {
		return nil
	}
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	return err
}

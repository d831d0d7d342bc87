package flashui

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Map glyphs.
const (
	GlyphWritten = '█'
	GlyphFree    = '░'
	GlyphSystem  = '■'
)

// Legend explains the map glyphs.
const Legend = "Legend:  █ written   ░ not yet written   ■ system area | Q to quit"

// Span is an inclusive range of logical sectors.
type Span struct {
	First, Last int64
}

// Counters are the flash operations performed so far.
type Counters struct {
	Erases   int
	Programs int
}

// Tracker records which logical sectors an operation has written and
// renders them as a map. It is safe for concurrent use.
type Tracker struct {
	mu         sync.Mutex
	written    []bool
	count      int64
	current    int64
	sectorSize int64
	system     []Span
	start      time.Time
	op         string
	counters   Counters
}

// NewTracker returns a tracker for a disk of total sectors of sectorSize
// bytes each.
func NewTracker(total, sectorSize int64) *Tracker {
	if total < 0 {
		total = 0
	}
	return &Tracker{
		written:    make([]bool, total),
		sectorSize: sectorSize,
		start:      time.Now(),
	}
}

// SetSystem marks spans drawn as system area until written.
func (t *Tracker) SetSystem(spans []Span) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.system = append([]Span(nil), spans...)
}

// SetOp sets the current operation shown in the status block.
func (t *Tracker) SetOp(op string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.op = op
}

// SetCounters records flash operation counts.
func (t *Tracker) SetCounters(c Counters) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counters = c
}

// MarkRange records count sectors starting at start as written.
func (t *Tracker) MarkRange(start, count int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	end := min(start+count, int64(len(t.written)))
	for i := max(start, 0); i < end; i++ {
		if !t.written[i] {
			t.written[i] = true
			t.count++
		}
	}
	if end-1 >= 0 {
		t.current = end - 1
	}
}

// Written returns the number of distinct sectors written.
func (t *Tracker) Written() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// MapLines renders the map into rows of width cells. When the disk does
// not fit, the window scrolls to follow the last written sector.
func (t *Tracker) MapLines(width, rows int) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	total := int64(len(t.written))
	if total == 0 || width <= 0 || rows <= 0 {
		return nil
	}
	cells := int64(width * rows)

	start := int64(0)
	if total > cells {
		if t.current >= cells-1 {
			start = t.current - (cells - 1)
		}
		start = max(min(start, total-cells), 0)
	}

	inSystem := func(abs int64) bool {
		for _, r := range t.system {
			if abs >= r.First && abs <= r.Last {
				return true
			}
		}
		return false
	}

	var lines []string
	for row := 0; row < rows; row++ {
		var b strings.Builder
		for col := 0; col < width; col++ {
			abs := start + int64(row*width+col)
			if abs >= total {
				break
			}
			switch {
			case t.written[abs]:
				b.WriteRune(GlyphWritten)
			case inSystem(abs):
				b.WriteRune(GlyphSystem)
			default:
				b.WriteRune(GlyphFree)
			}
		}
		if b.Len() == 0 {
			break
		}
		lines = append(lines, b.String())
	}
	return lines
}

// StatusLines renders position, counts, rate and ETA.
func (t *Tracker) StatusLines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	total := int64(len(t.written))
	elapsed := time.Since(t.start).Truncate(time.Second)

	var rate float64
	if s := time.Since(t.start).Seconds(); s > 0 {
		rate = float64(t.count*t.sectorSize) / s
	}
	eta := "--"
	if rate > 0 {
		remain := float64((total - t.count) * t.sectorSize)
		eta = time.Duration(remain / rate * float64(time.Second)).Truncate(time.Second).String()
	}

	return []string{
		fmt.Sprintf("Absolute: %06d", t.current),
		fmt.Sprintf("Written: %d / %d sectors", t.count, total),
		fmt.Sprintf("Erases: %d   Programs: %d", t.counters.Erases, t.counters.Programs),
		fmt.Sprintf("Elapsed: %s   Rate: %s/s   ETA: %s", elapsed, Human(int64(rate)), eta),
		"Current op: " + t.op,
	}
}

// Render pushes the map and status lines to u and redraws it.
func (t *Tracker) Render(u *UI) {
	if u == nil {
		return
	}
	if w, rows := u.MapArea(); w > 0 {
		u.SetMap(t.MapLines(w, rows))
	}
	u.SetStatusLines(t.StatusLines())
	u.Draw()
}

// Human formats a byte count with a K or M suffix.
func Human(b int64) string {
	if b >= 1024*1024 {
		return fmt.Sprintf("%dM", b/(1024*1024))
	}
	if b >= 1024 {
		return fmt.Sprintf("%dK", b/1024)
	}
	return fmt.Sprintf("%dB", b)
}

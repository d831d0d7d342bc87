// Package flashui provides a full-screen terminal view of a flash disk
// operation: title, summary, legend, a per-sector map, phases and status.
// The UI renders what callers hand it; Tracker builds the map and status
// lines from written sectors.
package flashui

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
)

// ErrInterrupted is returned when the user requests to stop the operation.
var ErrInterrupted = errors.New("interrupted")

// reservedRows is the space kept below the map for phases and status.
const reservedRows = 7

// UI is a tcell screen showing the progress of one operation.
type UI struct {
	mu       sync.Mutex
	s        tcell.Screen
	stopChan chan struct{}
	once     sync.Once

	title        string
	phases       []string
	phaseDone    map[string]bool
	summaryLines []string
	legendLines  []string
	statusLines  []string
	mapLines     []string
}

// New initializes the terminal and starts handling keys: Q, Esc and
// Ctrl-C request a stop.
func New() (*UI, error) {
	s, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	return NewWithScreen(s)
}

// NewWithScreen is New on a caller-supplied screen, such as a
// tcell.SimulationScreen.
func NewWithScreen(s tcell.Screen) (*UI, error) {
	if err := s.Init(); err != nil {
		return nil, err
	}
	s.DisableMouse()
	u := &UI{
		s:         s,
		stopChan:  make(chan struct{}),
		phaseDone: make(map[string]bool),
	}
	go u.eventLoop(s)
	return u, nil
}

// Close restores the terminal. It is safe to call more than once.
func (u *UI) Close() {
	u.mu.Lock()
	s := u.s
	u.s = nil
	u.mu.Unlock()
	if s == nil {
		return
	}
	u.RequestStop()
	s.Fini()
}

// RequestStop asks the running operation to stop. It can be called
// multiple times safely.
func (u *UI) RequestStop() {
	u.once.Do(func() {
		close(u.stopChan)
		u.mu.Lock()
		s := u.s
		u.mu.Unlock()
		if s != nil {
			_ = s.PostEvent(tcell.NewEventInterrupt(nil))
		}
	})
}

// IsStopped reports whether a stop was requested.
func (u *UI) IsStopped() bool {
	select {
	case <-u.stopChan:
		return true
	default:
		return false
	}
}

// Stopped returns a channel closed when a stop is requested.
func (u *UI) Stopped() <-chan struct{} {
	return u.stopChan
}

// Size returns the current screen width and height.
func (u *UI) Size() (width, height int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.s == nil {
		return 0, 0
	}
	return u.s.Size()
}

// MapArea returns the width and number of rows available to the sector map.
func (u *UI) MapArea() (width, rows int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.s == nil {
		return 0, 0
	}
	w, h := u.s.Size()
	used := len(u.summaryLines) + len(u.legendLines)
	if u.title != "" {
		used++
	}
	rows = h - used - reservedRows
	if rows < 1 {
		rows = 1
	}
	return w, rows
}

func putStr(s tcell.Screen, x, y int, str string) {
	w, _ := s.Size()
	for i, r := range []rune(str) {
		pos := x + i
		if pos >= w {
			break
		}
		s.SetContent(pos, y, r, nil, tcell.StyleDefault)
	}
}

// Draw redraws the entire screen with the current state.
func (u *UI) Draw() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.s == nil {
		return
	}
	s := u.s
	s.Clear()
	w, h := s.Size()
	y := 0

	if u.title != "" {
		putStr(s, 0, y, strings.Repeat("═", w))
		putStr(s, (w-len([]rune(u.title)))/2, y, u.title)
		y++
	}
	for _, lines := range [][]string{u.summaryLines, u.legendLines} {
		for _, line := range lines {
			if y >= h {
				break
			}
			putStr(s, 0, y, line)
			y++
		}
	}

	if len(u.mapLines) > 0 {
		avail := max(h-y-reservedRows, 1)
		for i := 0; i < min(avail, len(u.mapLines)) && y < h; i++ {
			putStr(s, 0, y, u.mapLines[i])
			y++
		}
	}

	if len(u.phases) > 0 && y < h {
		putStr(s, 0, y, strings.Repeat("─", w))
		putStr(s, 2, y, " Phase ")
		y++
		var b strings.Builder
		for i, p := range u.phases {
			if i > 0 {
				b.WriteByte(' ')
			}
			mark := ' '
			if u.phaseDone[strings.ToLower(p)] {
				mark = '✓'
			}
			fmt.Fprintf(&b, "[%c]%s", mark, p)
		}
		putStr(s, 0, y, b.String())
		y++
	}

	if len(u.statusLines) > 0 && y < h {
		putStr(s, 0, y, strings.Repeat("─", w))
		putStr(s, 2, y, " Status ")
		y++
		for _, line := range u.statusLines {
			if y >= h {
				break
			}
			putStr(s, 0, y, line)
			y++
		}
	}

	s.Show()
}

// SetTitle sets the title shown centered on the top rule.
func (u *UI) SetTitle(t string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.title = t
}

// SetSummaryLines sets the lines shown below the title.
func (u *UI) SetSummaryLines(lines []string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.summaryLines = append([]string(nil), lines...)
}

// SetLegend sets the lines shown below the summary.
func (u *UI) SetLegend(lines []string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.legendLines = append([]string(nil), lines...)
}

// SetPhases sets the phase labels. They are checked off by SetPhaseDone.
func (u *UI) SetPhases(labels []string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.phases = append([]string(nil), labels...)
}

// SetPhaseDone marks a phase completed. Names are case-insensitive.
func (u *UI) SetPhaseDone(p string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.phaseDone[strings.ToLower(p)] = true
}

// SetStatusLines sets the lines of the status block.
func (u *UI) SetStatusLines(lines []string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.statusLines = append([]string(nil), lines...)
}

// SetMap sets the rows of the sector map.
func (u *UI) SetMap(lines []string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.mapLines = append([]string(nil), lines...)
}

// WaitWithStop keeps the final screen up for d, or until a stop is
// requested.
func (u *UI) WaitWithStop(d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-u.stopChan:
		return ErrInterrupted
	case <-timer.C:
		return nil
	}
}

func (u *UI) eventLoop(s tcell.Screen) {
	for {
		switch ev := s.PollEvent().(type) {
		case *tcell.EventKey:
			switch {
			case ev.Key() == tcell.KeyCtrlC, ev.Key() == tcell.KeyEscape:
				u.RequestStop()
			case ev.Key() == tcell.KeyRune && (ev.Rune() == 'q' || ev.Rune() == 'Q'):
				u.RequestStop()
			}
		case *tcell.EventResize:
			s.Sync()
		case *tcell.EventInterrupt, nil:
			return
		}
	}
}

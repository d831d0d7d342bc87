package main

import (
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"nordisk/flashui"
	"nordisk/simflash"
)

// progressView tracks a long-running disk operation. It drives the
// fullscreen UI when enabled and turns SIGINT/SIGTERM into a stop request
// either way.
type progressView struct {
	ui    *flashui.UI
	tr    *flashui.Tracker
	flash *simflash.Flash
	logs  *heldWriter

	stop atomic.Bool
	sigs chan os.Signal
	done chan struct{}
	once sync.Once
}

type progressScreen struct {
	title   string
	summary []string
	phases  []string
	system  []flashui.Span
}

func (a *app) startProgress(s *session, scr progressScreen, withUI bool) (*progressView, error) {
	g := s.dev.Geometry()
	p := &progressView{
		tr:    flashui.NewTracker(int64(g.SectorCount), int64(g.SectorSize)),
		flash: s.flash,
		logs:  a.logs,
		sigs:  make(chan os.Signal, 1),
		done:  make(chan struct{}),
	}
	p.tr.SetSystem(scr.system)

	if withUI {
		ui, err := flashui.New()
		if err != nil {
			return nil, err
		}
		p.ui = ui
		a.logs.hold()
		ui.SetTitle(scr.title)
		ui.SetSummaryLines(scr.summary)
		ui.SetLegend([]string{flashui.Legend})
		ui.SetPhases(scr.phases)
		p.tr.Render(ui)
	}

	signal.Notify(p.sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-p.sigs:
			p.stop.Store(true)
			if p.ui != nil {
				p.ui.RequestStop()
			}
		case <-p.done:
		}
	}()
	return p, nil
}

// mark records count sectors from first as written by op.
func (p *progressView) mark(op string, first, count int64) {
	p.tr.SetOp(op)
	p.tr.MarkRange(first, count)
	st := p.flash.Stats()
	p.tr.SetCounters(flashui.Counters{Erases: st.Erases, Programs: st.Programs})
	p.tr.Render(p.ui)
}

func (p *progressView) phaseDone(phase string) {
	if p.ui == nil {
		return
	}
	p.ui.SetPhaseDone(phase)
	p.tr.Render(p.ui)
}

func (p *progressView) stopped() bool {
	return p.stop.Load() || (p.ui != nil && p.ui.IsStopped())
}

// finish shuts the UI down, keeping the final screen up for linger
// unless the user quits first.
func (p *progressView) finish(linger time.Duration) {
	p.once.Do(func() {
		signal.Stop(p.sigs)
		close(p.done)
		if p.ui != nil {
			if linger > 0 && !p.ui.IsStopped() {
				_ = p.ui.WaitWithStop(linger)
			}
			p.ui.Close()
			_ = p.logs.release()
		}
	})
}

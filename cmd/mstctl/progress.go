package main

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/term"
)

const (
	progressUpdateInterval = 100 * time.Millisecond
	clearLineSequence      = "\r\033[K"
)

// ProgressPrinter keeps a single status line updated on a terminal: elapsed seconds, remaining
// seconds of a countdown, or a percentage once one is reported.
//
//	p := NewProgressPrinter(cmd.ErrOrStderr(), "Reading C3:00:00:12:34:56", "Connecting")
//	p.Start()
//	defer p.Stop()
//
// On a non-terminal writer every method is a no-op. A printer is single-use.
type ProgressPrinter struct {
	w        io.Writer
	enabled  bool
	prefix   string
	phase    atomic.Value // string
	percent  atomic.Int32 // negative until reported
	duration time.Duration

	startTime time.Time
	ticker    atomic.Pointer[time.Ticker]
	stopChan  chan struct{}
	done      chan struct{}
	started   atomic.Bool
}

// NewProgressPrinter creates a printer that shows elapsed time.
func NewProgressPrinter(w io.Writer, prefix, phase string) *ProgressPrinter {
	p := &ProgressPrinter{
		w:       w,
		enabled: isTerminal(w),
		prefix:  prefix,
	}
	p.phase.Store(phase)
	p.percent.Store(-1)
	return p
}

// NewCountdownProgressPrinter creates a printer that counts down from duration.
func NewCountdownProgressPrinter(w io.Writer, prefix, phase string, duration time.Duration) *ProgressPrinter {
	p := NewProgressPrinter(w, prefix, phase)
	p.duration = duration
	return p
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Start begins the update loop. Panics if called twice.
func (p *ProgressPrinter) Start() {
	if !p.started.CompareAndSwap(false, true) {
		panic("ProgressPrinter.Start called more than once")
	}
	if !p.enabled {
		return
	}

	p.done = make(chan struct{})
	p.stopChan = make(chan struct{})
	p.startTime = time.Now()
	ticker := time.NewTicker(progressUpdateInterval)
	p.ticker.Store(ticker)

	p.render()
	go p.loop(ticker)
}

func (p *ProgressPrinter) loop(ticker *time.Ticker) {
	defer close(p.done)
	for {
		select {
		case <-p.stopChan:
			return
		case <-ticker.C:
			p.render()
		}
	}
}

func (p *ProgressPrinter) render() {
	phase := p.phase.Load().(string)

	if pct := p.percent.Load(); pct >= 0 {
		fmt.Fprintf(p.w, "\r%s (%s %d%%)   ", p.prefix, phase, pct)
		return
	}

	var seconds int
	if p.duration > 0 {
		remaining := p.duration - time.Since(p.startTime)
		if remaining > 0 {
			seconds = int(remaining.Seconds() + 0.5)
		}
	} else {
		seconds = int(time.Since(p.startTime).Seconds())
	}

	if seconds > 0 {
		fmt.Fprintf(p.w, "\r%s (%s %ds)   ", p.prefix, phase, seconds)
	} else {
		fmt.Fprintf(p.w, "\r%s (%s...)   ", p.prefix, phase)
	}
}

// SetPhase changes the label shown next to the counter.
func (p *ProgressPrinter) SetPhase(phase string) {
	p.phase.Store(phase)
}

// Percent returns a callback reporting completion in the range 0..100.
func (p *ProgressPrinter) Percent() func(int) {
	return func(pct int) {
		p.percent.Store(int32(max(0, min(pct, 100))))
	}
}

// Stop ends the update loop and clears the line. Safe to call more than once.
func (p *ProgressPrinter) Stop() {
	ticker := p.ticker.Swap(nil)
	if ticker == nil {
		return
	}

	ticker.Stop()
	close(p.stopChan)
	<-p.done

	fmt.Fprint(p.w, clearLineSequence)
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package poller runs a refresh callback on a repeating timer.
//
// A Poller is an owned handle: starting it replaces any previous timer, and
// stopping it cancels the loop and any in-flight refresh. Ticks that fire
// while the poller is unfocused are skipped without calling the refresh.
package poller

import (
	"context"
	"log"
	"sync"
	"time"
)

const (
	// DefaultInterval is used when no interval is configured.
	DefaultInterval = 60 * time.Second

	// MinInterval is the smallest interval ClampInterval allows.
	MinInterval = 10 * time.Second
)

// RefreshFunc performs one poll. It must honor ctx cancellation.
type RefreshFunc func(ctx context.Context) error

// ClampInterval returns DefaultInterval for d <= 0 and at least MinInterval
// otherwise.
func ClampInterval(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultInterval
	}
	if d < MinInterval {
		return MinInterval
	}
	return d
}

// Stats counts what the poller has done since it was created.
type Stats struct {
	Ticks     int
	Skipped   int
	Refreshes int
	Failures  int
	Running   bool
	Focused   bool
	Interval  time.Duration
	LastRun   time.Time
	LastError error
}

// Poller owns the refresh timer.
type Poller struct {
	refresh RefreshFunc
	logf    func(format string, args ...interface{})

	// lifecycle serializes Start, Stop, Restart, SetInterval and SetFocused
	// so that tearing down the old loop and starting the new one is a
	// single step.
	lifecycle sync.Mutex

	mu       sync.Mutex
	interval time.Duration
	focused  bool
	cancel   context.CancelFunc
	done     chan struct{}
	stats    Stats

	// inflight tracks refreshes started by Restart. Add and Wait both run
	// under lifecycle.
	inflight sync.WaitGroup
}

// New creates a stopped poller. Any positive interval is accepted; callers
// apply ClampInterval when the value comes from user settings.
func New(refresh RefreshFunc, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		refresh:  refresh,
		logf:     log.Printf,
		interval: interval,
		focused:  true,
	}
}

// SetLogf replaces the logger. Must be called before Start.
func (p *Poller) SetLogf(logf func(format string, args ...interface{})) {
	if logf != nil {
		p.logf = logf
	}
}

// Start tears down any running timer and starts a new one. The first
// refresh happens one interval from now; use Restart for an immediate one.
func (p *Poller) Start(ctx context.Context) {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()
	p.startLocked(ctx)
}

// Stop clears the timer and waits for the loop and any in-flight refresh
// to return. In-flight refreshes see their context cancelled.
func (p *Poller) Stop() {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()
	p.stopLocked()
}

// startLocked requires p.lifecycle.
func (p *Poller) startLocked(ctx context.Context) context.Context {
	p.stopLocked()

	p.mu.Lock()
	defer p.mu.Unlock()

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done
	p.stats.Running = true

	go p.loop(loopCtx, p.interval, done)
	p.logf("poller: started (interval %v)", p.interval)
	return loopCtx
}

// stopLocked requires p.lifecycle.
func (p *Poller) stopLocked() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.stats.Running = false
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	p.inflight.Wait()
	p.logf("poller: stopped")
}

// Running reports whether the timer is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// Trigger runs one refresh now and returns its error. It is independent of
// the timer and is not coalesced with other refreshes.
func (p *Poller) Trigger(ctx context.Context) error {
	return p.run(ctx)
}

// Restart rebuilds the timer and runs an immediate refresh in the
// background. The refresh is cancelled by Stop like the timer's own.
func (p *Poller) Restart(ctx context.Context) {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()
	p.restartLocked(ctx)
}

// restartLocked requires p.lifecycle.
func (p *Poller) restartLocked(ctx context.Context) {
	loopCtx := p.startLocked(ctx)
	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		_ = p.run(loopCtx)
	}()
}

// Interval returns the current interval.
func (p *Poller) Interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interval
}

// SetInterval changes the interval. A running timer is rebuilt when the
// value actually changes.
func (p *Poller) SetInterval(ctx context.Context, d time.Duration) {
	if d <= 0 {
		d = DefaultInterval
	}

	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()

	p.mu.Lock()
	changed := d != p.interval
	p.interval = d
	running := p.cancel != nil
	p.mu.Unlock()

	if changed && running {
		p.logf("poller: interval changed to %v", d)
		p.startLocked(ctx)
	}
}

// Focused reports the current focus flag.
func (p *Poller) Focused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.focused
}

// SetFocused records focus. Regaining focus on a running poller triggers
// Restart so the display catches up immediately.
func (p *Poller) SetFocused(ctx context.Context, focused bool) {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()

	p.mu.Lock()
	regained := focused && !p.focused
	p.focused = focused
	running := p.cancel != nil
	p.mu.Unlock()

	if regained && running {
		p.logf("poller: focus regained, refreshing")
		p.restartLocked(ctx)
	}
}

// Stats returns a snapshot of the counters.
func (p *Poller) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.stats
	s.Focused = p.focused
	s.Interval = p.interval
	return s
}

// loop fires on every tick until ctx is done. Ticks that arrive while a
// refresh is still running are dropped by the ticker.
func (p *Poller) loop(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	p.mu.Lock()
	p.stats.Ticks++
	focused := p.focused
	if !focused {
		p.stats.Skipped++
	}
	p.mu.Unlock()

	if !focused {
		return
	}
	_ = p.run(ctx)
}

func (p *Poller) run(ctx context.Context) error {
	err := p.refresh(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.Refreshes++
	p.stats.LastRun = time.Now()
	p.stats.LastError = err
	if err != nil {
		p.stats.Failures++
	}
	return err
}

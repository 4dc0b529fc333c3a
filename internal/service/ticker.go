package service

import (
	"context"
	"sync"
	"time"
)

// Ticker runs one countdown loop per session. A loop calls its tick func
// once per interval and never overlaps with itself. Steps are counted from
// the wall clock since the loop started, so a tick that arrives late (or
// one that time.Ticker dropped while the previous call was slow) is made
// up by passing steps > 1 on the next call. Stop cancels a loop's
// context; a tick func that is already running must check the context it
// was given before touching shared state.
//
// An interval of zero disables the loops entirely, which lets tests drive
// ticks by hand.
type Ticker struct {
	interval time.Duration

	mu    sync.Mutex
	loops map[string]context.CancelFunc
	wg    sync.WaitGroup
}

// NewTicker creates a Ticker firing every interval.
func NewTicker(interval time.Duration) *Ticker {
	return &Ticker{
		interval: interval,
		loops:    make(map[string]context.CancelFunc),
	}
}

// Interval returns the tick interval. Zero means manual ticking.
func (t *Ticker) Interval() time.Duration {
	return t.interval
}

// Run starts the loop for id, replacing any loop already running for it.
func (t *Ticker) Run(id string, tick func(ctx context.Context, steps int)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if cancel, ok := t.loops[id]; ok {
		cancel()
		delete(t.loops, id)
	}
	if t.interval <= 0 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.loops[id] = cancel

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		start := time.Now()
		done := 0
		timer := time.NewTicker(t.interval)
		defer timer.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-timer.C:
				due := int(now.Sub(start) / t.interval)
				if due <= done {
					continue
				}
				tick(ctx, due-done)
				done = due
			}
		}
	}()
}

// Stop cancels the loop for id, if any.
func (t *Ticker) Stop(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cancel, ok := t.loops[id]; ok {
		cancel()
		delete(t.loops, id)
	}
}

// Running reports whether a loop is registered for id.
func (t *Ticker) Running(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.loops[id]
	return ok
}

// Shutdown cancels every loop and waits for them to exit.
func (t *Ticker) Shutdown() {
	t.mu.Lock()
	for id, cancel := range t.loops {
		cancel()
		delete(t.loops, id)
	}
	t.mu.Unlock()
	t.wg.Wait()
}

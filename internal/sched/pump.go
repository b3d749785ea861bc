package sched

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/eapache/queue"
)

// DefaultTickInterval bounds how long a due bundle can sit buffered
// before a periodic drain releases it.
const DefaultTickInterval = time.Second

// Pump is the time-driven drain loop. A ticker (plus the scheduler's
// wake signal) removes due entries under the scheduler lock and hands
// them, in order, to a dedicated dispatch goroutine through an unbounded
// FIFO. A slow handler therefore delays later dispatches, never the next
// timely drain.
type Pump struct {
	sched    *Scheduler
	interval time.Duration

	// q holds drained entries awaiting dispatch. eapache/queue is a ring
	// buffer without internal locking; mu guards it, signal announces
	// availability to the dispatch goroutine (buffered, coalescing).
	mu     sync.Mutex
	q      *queue.Queue
	signal chan struct{}
}

// NewPump creates a pump draining s every interval. A non-positive
// interval falls back to DefaultTickInterval.
func NewPump(s *Scheduler, interval time.Duration) *Pump {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Pump{
		sched:    s,
		interval: interval,
		q:        queue.New(),
		signal:   make(chan struct{}, 1),
	}
}

// Run drives the drain loop until ctx is cancelled. Entries still queued
// at cancellation are dropped; in-flight handler calls are left to honor
// ctx themselves.
func (p *Pump) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.dispatchLoop(ctx)
	}()

	slog.Info("pump starting", "interval", p.interval)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("pump stopping", "queued", p.queued())
			wg.Wait()
			return ctx.Err()
		case <-ticker.C:
		case <-p.sched.Wake():
			// A fresh earliest entry; it may still be in the future, in
			// which case this drain is a no-op and the ticker covers it.
		}

		for _, e := range p.sched.TakeDue(p.sched.Now()) {
			p.push(e)
		}
	}
}

func (p *Pump) dispatchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.signal:
		}
		for {
			e, ok := p.pop()
			if !ok {
				break
			}
			p.sched.dispatchOut(ctx, e.Bundle)
		}
	}
}

func (p *Pump) push(e Entry) {
	p.mu.Lock()
	p.q.Add(e)
	p.mu.Unlock()

	select {
	case p.signal <- struct{}{}:
	default:
	}
}

func (p *Pump) pop() (Entry, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.q.Length() == 0 {
		return Entry{}, false
	}
	return p.q.Remove().(Entry), true
}

func (p *Pump) queued() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.q.Length()
}

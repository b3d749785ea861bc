package sched

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mbward/oscpump/internal/osc"
)

// ErrorSink receives aggregated handler failures from dispatches that no
// caller is positioned to observe directly (drains, immediate
// submissions). It must be safe for concurrent use.
type ErrorSink func(err error)

// ClaimJournal persists dedup claims across process restarts. The
// scheduler calls it under its lock, so implementations must be fast,
// local operations (see internal/journal).
type ClaimJournal interface {
	// Claim records id as seen and reports whether it was previously
	// unclaimed, atomically with respect to other claimers of the same
	// journal.
	Claim(ctx context.Context, id string, at time.Time) (bool, error)

	// SweepBefore removes claims recorded before cutoff and returns the
	// number removed.
	SweepBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Scheduler buffers not-yet-due bundles, deduplicates re-deliveries, and
// feeds due packets to the dispatcher. The pending store and dedup
// registry share one mutex; every critical section is short and the lock
// is never held across a handler invocation.
type Scheduler struct {
	mu       sync.Mutex
	pending  pendingStore
	registry *registry

	dispatcher *Dispatcher
	clock      Clock
	sink       ErrorSink
	retention  time.Duration
	journal    ClaimJournal

	rescheduleNested bool

	// seq stamps arrivals so equal due times release in submission order.
	seq atomic.Int64

	// wake signals the pump when a newly buffered bundle becomes the
	// earliest due entry (buffered, size 1, coalescing).
	wake chan struct{}

	// lastJournalSweep throttles durable sweeps to one per minute.
	lastJournalSweep atomic.Int64

	submitted  atomic.Int64
	buffered   atomic.Int64
	duplicates atomic.Int64
	malformed  atomic.Int64
	messages   atomic.Int64
	expired    atomic.Int64
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock substitutes the time source. Tests use a ManualClock.
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithErrorSink routes dispatch failures to sink instead of the default
// slog-based sink.
func WithErrorSink(sink ErrorSink) Option {
	return func(s *Scheduler) { s.sink = sink }
}

// WithRetention expires dedup records claimed more than window ago,
// except records of bundles still buffered. Zero (the default) retains
// records for the life of the process.
func WithRetention(window time.Duration) Option {
	return func(s *Scheduler) { s.retention = window }
}

// WithJournal adds a durable claim journal so deduplication survives
// restarts.
func WithJournal(j ClaimJournal) Option {
	return func(s *Scheduler) { s.journal = j }
}

// WithMaxDepth bounds bundle nesting (top-level bundle = level 1).
// Exceeding the bound is a reported DispatchError, never a silent
// truncation. Zero (the default) means unbounded.
func WithMaxDepth(levels int) Option {
	return func(s *Scheduler) { s.dispatcher.maxDepth = levels }
}

// WithNestedRescheduling routes nested bundles whose time tag is still
// in the future back into the pending store instead of force-unpacking
// them with their parent. Off by default: dispatch fully unpacks.
func WithNestedRescheduling() Option {
	return func(s *Scheduler) { s.rescheduleNested = true }
}

// New creates a Scheduler that feeds due leaf messages to handler.
func New(handler Handler, opts ...Option) *Scheduler {
	s := &Scheduler{
		registry: newRegistry(),
		clock:    SystemClock{},
		wake:     make(chan struct{}, 1),
	}
	s.dispatcher = &Dispatcher{handler: handler}
	for _, opt := range opts {
		opt(s)
	}
	s.dispatcher.clock = s.clock
	if s.rescheduleNested {
		s.dispatcher.deferTo = s.rescheduleBundle
	}
	if s.sink == nil {
		s.sink = func(err error) {
			slog.Error("dispatch failed", "error", err)
		}
	}
	return s
}

// Submit routes one decoded packet.
//
// Messages dispatch immediately. Immediate-tagged bundles claim their
// dedup ID and dispatch. Future-tagged bundles claim and enter the
// pending store; a past-due tag still buffers and comes out on the next
// drain. Duplicates drop silently. Only structural faults return an
// error; handler failures go to the error sink.
func (s *Scheduler) Submit(ctx context.Context, p osc.Packet) error {
	if p == nil {
		s.malformed.Add(1)
		return &osc.MalformedPacketError{Reason: "nil packet"}
	}
	if err := p.Validate(); err != nil {
		s.malformed.Add(1)
		return fmt.Errorf("submit: %w", err)
	}
	s.submitted.Add(1)

	switch v := p.(type) {
	case *osc.Message:
		s.dispatchOut(ctx, v)
		return nil
	case *osc.Bundle:
		s.submitBundle(ctx, v)
		return nil
	default:
		s.malformed.Add(1)
		return &osc.MalformedPacketError{Reason: fmt.Sprintf("unknown packet type %T", p)}
	}
}

func (s *Scheduler) submitBundle(ctx context.Context, b *osc.Bundle) {
	if b.ID == "" {
		// The transport normally fingerprints bundles at ingress; cover
		// direct submitters with a random identifier.
		b.ID = uuid.NewString()
	}

	if b.Tag.Immediate() {
		now := s.clock.Now()
		s.mu.Lock()
		admitted := s.claimLocked(ctx, b.ID, now)
		s.mu.Unlock()
		if !admitted {
			s.duplicates.Add(1)
			slog.Debug("duplicate bundle dropped", "id", b.ID)
			return
		}
		s.dispatchOut(ctx, b)
		return
	}

	if !s.enqueueBundle(ctx, b) {
		s.duplicates.Add(1)
		slog.Debug("duplicate bundle dropped", "id", b.ID, "due", b.Tag.Time())
	}
}

// enqueueBundle claims and buffers a non-immediate bundle as one atomic
// step under the lock. Reports false for duplicates.
func (s *Scheduler) enqueueBundle(ctx context.Context, b *osc.Bundle) bool {
	due := b.Tag.Time()
	now := s.clock.Now()

	s.mu.Lock()
	if !s.claimLocked(ctx, b.ID, now) {
		s.mu.Unlock()
		return false
	}
	newHead := s.pending.insert(Entry{Due: due, Seq: s.seq.Add(1), Bundle: b})
	s.mu.Unlock()

	s.buffered.Add(1)
	if newHead {
		s.notifyWake()
	}
	slog.Debug("bundle buffered", "id", b.ID, "due", due)
	return true
}

// claimLocked marks id as seen in the registry and, when configured, the
// durable journal. Callers hold s.mu, which is what makes the
// check-and-set atomic relative to every submitter and drainer.
func (s *Scheduler) claimLocked(ctx context.Context, id string, now time.Time) bool {
	if !s.registry.tryClaim(id, now) {
		return false
	}
	if s.journal != nil {
		fresh, err := s.journal.Claim(ctx, id, now)
		if err != nil {
			// Fail open: in-memory dedup still covers this process
			// lifetime.
			slog.Warn("dedup journal claim failed", "id", id, "error", err)
			return true
		}
		if !fresh {
			// Applied in a previous run; the journal remembers.
			return false
		}
	}
	return true
}

// rescheduleBundle re-buffers a nested bundle encountered mid-dispatch
// whose own due time has not arrived (WithNestedRescheduling).
func (s *Scheduler) rescheduleBundle(b *osc.Bundle) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if !s.enqueueBundle(context.Background(), b) {
		s.duplicates.Add(1)
	}
	return nil
}

// TakeDue removes and returns every pending bundle due at or before now,
// in ascending time order (ties by submission order), without
// dispatching. An empty or not-yet-due store returns nil. The retention
// sweep piggybacks here.
func (s *Scheduler) TakeDue(now time.Time) []Entry {
	s.mu.Lock()
	due := s.pending.drainDue(now)
	removed := 0
	if s.retention > 0 {
		removed = s.registry.sweep(now.Add(-s.retention), s.pending.ids())
	}
	s.mu.Unlock()

	if removed > 0 {
		s.expired.Add(int64(removed))
		slog.Debug("dedup records expired", "count", removed)
	}
	s.sweepJournal(now)
	return due
}

// DrainDue removes every due bundle and dispatches each in order.
// Returns the number of bundles dispatched. Handler failures flow to the
// error sink.
func (s *Scheduler) DrainDue(ctx context.Context, now time.Time) int {
	due := s.TakeDue(now)
	for _, e := range due {
		s.dispatchOut(ctx, e.Bundle)
	}
	return len(due)
}

func (s *Scheduler) dispatchOut(ctx context.Context, p osc.Packet) {
	n, err := s.dispatcher.Dispatch(ctx, p)
	s.messages.Add(int64(n))
	if err != nil {
		s.sink(err)
	}
}

// sweepJournal expires durable claims at most once per minute.
func (s *Scheduler) sweepJournal(now time.Time) {
	if s.journal == nil || s.retention <= 0 {
		return
	}
	last := s.lastJournalSweep.Load()
	if now.Unix()-last < 60 {
		return
	}
	if !s.lastJournalSweep.CompareAndSwap(last, now.Unix()) {
		return
	}
	if n, err := s.journal.SweepBefore(context.Background(), now.Add(-s.retention)); err != nil {
		slog.Warn("dedup journal sweep failed", "error", err)
	} else if n > 0 {
		slog.Debug("dedup journal swept", "count", n)
	}
}

// Wake returns a channel that signals when a newly buffered bundle
// becomes the earliest due entry. The pump selects on it to re-arm its
// timer ahead of the next periodic tick.
func (s *Scheduler) Wake() <-chan struct{} { return s.wake }

func (s *Scheduler) notifyWake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// NextDue reports the earliest buffered due instant, if any.
func (s *Scheduler) NextDue() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending.nextDue()
}

// Now reads the scheduler's clock.
func (s *Scheduler) Now() time.Time { return s.clock.Now() }

// Stats is a point-in-time snapshot of scheduler counters.
type Stats struct {
	Submitted          int64
	Buffered           int64
	Duplicates         int64
	Malformed          int64
	DispatchedMessages int64
	ExpiredRecords     int64
	PendingBundles     int
	DedupRecords       int
}

// Stats snapshots the counters and current store sizes.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	pending := s.pending.len()
	records := s.registry.len()
	s.mu.Unlock()

	return Stats{
		Submitted:          s.submitted.Load(),
		Buffered:           s.buffered.Load(),
		Duplicates:         s.duplicates.Load(),
		Malformed:          s.malformed.Load(),
		DispatchedMessages: s.messages.Load(),
		ExpiredRecords:     s.expired.Load(),
		PendingBundles:     pending,
		DedupRecords:       records,
	}
}

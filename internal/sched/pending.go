package sched

import (
	"sort"
	"time"

	"github.com/mbward/oscpump/internal/osc"
)

// Entry is a buffered not-yet-due bundle: its due instant, the arrival
// sequence number that breaks ties among equal due times, and the bundle
// itself. Immediate-tagged bundles never become entries.
type Entry struct {
	Due    time.Time
	Seq    int64
	Bundle *osc.Bundle
}

// pendingStore keeps entries sorted ascending by (Due, Seq). Not
// goroutine-safe: the Scheduler's mutex guards every call.
type pendingStore struct {
	entries []Entry
}

// insert places e so the sort invariant holds and reports whether e
// became the new head (earliest due entry), which is what wakes the pump
// early.
func (p *pendingStore) insert(e Entry) bool {
	// First index whose entry sorts strictly after e. Equal due times
	// land after existing entries, preserving arrival order.
	idx := sort.Search(len(p.entries), func(i int) bool {
		if !p.entries[i].Due.Equal(e.Due) {
			return p.entries[i].Due.After(e.Due)
		}
		return p.entries[i].Seq > e.Seq
	})

	p.entries = append(p.entries, Entry{})
	copy(p.entries[idx+1:], p.entries[idx:])
	p.entries[idx] = e
	return idx == 0
}

// drainDue removes and returns, in ascending order, every entry due at
// or before now. An empty store (or nothing due) returns nil.
func (p *pendingStore) drainDue(now time.Time) []Entry {
	idx := sort.Search(len(p.entries), func(i int) bool {
		return p.entries[i].Due.After(now)
	})
	if idx == 0 {
		return nil
	}

	due := make([]Entry, idx)
	copy(due, p.entries[:idx])

	// Shift the remainder down and zero the vacated tail so the backing
	// array does not retain bundle pointers.
	n := copy(p.entries, p.entries[idx:])
	for i := n; i < len(p.entries); i++ {
		p.entries[i] = Entry{}
	}
	p.entries = p.entries[:n]
	return due
}

// nextDue returns the earliest due instant, if any entry is buffered.
func (p *pendingStore) nextDue() (time.Time, bool) {
	if len(p.entries) == 0 {
		return time.Time{}, false
	}
	return p.entries[0].Due, true
}

func (p *pendingStore) len() int { return len(p.entries) }

// ids reports the identifiers of all buffered bundles. Used by the
// retention sweep to keep live claims.
func (p *pendingStore) ids() map[string]struct{} {
	if len(p.entries) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(p.entries))
	for _, e := range p.entries {
		set[e.Bundle.ID] = struct{}{}
	}
	return set
}

package sched

import "time"

// registry tracks bundle identifiers that have been scheduled or applied
// so a re-received duplicate is dropped instead of reapplied. Records map
// an ID to the instant it was claimed, which is what the retention sweep
// ages out. Not goroutine-safe: the Scheduler's mutex guards every call.
type registry struct {
	records map[string]time.Time
}

func newRegistry() *registry {
	return &registry{records: make(map[string]time.Time)}
}

// tryClaim marks id as seen and reports whether it was previously
// unclaimed. Check-and-set is a single step under the scheduler lock.
func (r *registry) tryClaim(id string, at time.Time) bool {
	if _, seen := r.records[id]; seen {
		return false
	}
	r.records[id] = at
	return true
}

// sweep removes records claimed before cutoff, except those keep reports
// as still live (buffered, not yet applied). A nil keep keeps nothing.
// Returns the number of records removed.
func (r *registry) sweep(cutoff time.Time, keep map[string]struct{}) int {
	removed := 0
	for id, claimedAt := range r.records {
		if !claimedAt.Before(cutoff) {
			continue
		}
		if _, live := keep[id]; live {
			continue
		}
		delete(r.records, id)
		removed++
	}
	return removed
}

func (r *registry) len() int { return len(r.records) }

package sched

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbward/oscpump/internal/osc"
)

func entryAt(t time.Time, seq int64, id string) Entry {
	return Entry{Due: t, Seq: seq, Bundle: &osc.Bundle{Tag: osc.At(t), ID: id}}
}

func TestPendingStore_InsertKeepsOrder(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	var p pendingStore

	p.insert(entryAt(base.Add(10*time.Second), 1, "a"))
	p.insert(entryAt(base.Add(5*time.Second), 2, "b"))
	p.insert(entryAt(base.Add(20*time.Second), 3, "c"))
	p.insert(entryAt(base.Add(1*time.Second), 4, "d"))

	due := p.drainDue(base.Add(time.Minute))
	require.Len(t, due, 4)
	assert.Equal(t, []string{"d", "b", "a", "c"}, idsOf(due))
}

func TestPendingStore_TiesBreakByArrival(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	var p pendingStore

	p.insert(entryAt(base, 1, "first"))
	p.insert(entryAt(base, 2, "second"))
	p.insert(entryAt(base, 3, "third"))

	due := p.drainDue(base)
	assert.Equal(t, []string{"first", "second", "third"}, idsOf(due))
}

func TestPendingStore_DrainDueIsPrefixOnly(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	var p pendingStore

	p.insert(entryAt(base.Add(5*time.Second), 1, "due"))
	p.insert(entryAt(base.Add(50*time.Second), 2, "later"))

	due := p.drainDue(base.Add(5 * time.Second))
	assert.Equal(t, []string{"due"}, idsOf(due), "boundary instant is due")
	require.Equal(t, 1, p.len())

	next, ok := p.nextDue()
	require.True(t, ok)
	assert.Equal(t, base.Add(50*time.Second), next)
}

func TestPendingStore_DrainEmptyIsNoOp(t *testing.T) {
	var p pendingStore
	assert.Nil(t, p.drainDue(time.Now()))
	assert.Equal(t, 0, p.len())

	_, ok := p.nextDue()
	assert.False(t, ok)
}

func TestPendingStore_InsertReportsNewHead(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	var p pendingStore

	assert.True(t, p.insert(entryAt(base.Add(10*time.Second), 1, "a")), "first entry is the head")
	assert.False(t, p.insert(entryAt(base.Add(20*time.Second), 2, "b")))
	assert.True(t, p.insert(entryAt(base.Add(time.Second), 3, "c")), "earlier due time takes the head")
	assert.False(t, p.insert(entryAt(base.Add(time.Second), 4, "d")), "equal due time lands behind the head")
}

func idsOf(entries []Entry) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.Bundle.ID
	}
	return ids
}

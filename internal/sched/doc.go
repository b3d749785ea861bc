// Package sched implements the bundle scheduling, deduplication, and
// dispatch engine.
//
// ARCHITECTURE:
//
// Shared state under one lock:
// The Scheduler owns the ordered pending store and the dedup registry and
// guards both with a single mutex. Every mutation a submission needs
// (claim the bundle ID, insert the pending entry) happens inside one
// critical section, so no concurrent submitter or drainer ever observes a
// claimed-but-not-inserted bundle. Critical sections are short and never
// span a handler invocation.
//
// Submission flow:
//  1. Messages dispatch straight to the handler; they are never buffered.
//  2. Immediate-tagged bundles claim their ID and dispatch; duplicates
//     drop silently.
//  3. Future-tagged bundles claim their ID and enter the pending store,
//     ordered by due time with arrival order breaking ties.
//
// Drain flow:
// A time-driven Pump (or any caller of DrainDue) removes the due prefix
// of the store inside the lock, releases the lock, then dispatches each
// bundle in order. Handler failures flow to the configured error sink,
// never through the drain call itself.
//
// Dispatch:
// The Dispatcher unpacks bundles depth-first, left-to-right, using an
// explicit heap-allocated frame stack, so nesting depth is bounded by
// memory rather than by the call stack even though the handler may block
// arbitrarily long. A failure in one leaf never aborts its siblings;
// per-leaf errors are joined into one aggregate.
package sched

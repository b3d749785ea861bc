package sched

import (
	"context"
	"errors"
	"fmt"

	"github.com/mbward/oscpump/internal/osc"
)

// Handler is the external per-message callback. It may block (network
// I/O, its own timers); the scheduler never holds its lock across an
// invocation, and a failure is scoped to the one message that caused it.
type Handler func(ctx context.Context, msg *osc.Message) error

// Dispatcher unpacks packets into leaf messages and invokes the handler.
//
// Traversal is depth-first, left-to-right, driven by an explicit
// heap-allocated frame stack: nesting depth costs memory, not call
// stack, and a blocking handler suspends only the dispatching goroutine.
type Dispatcher struct {
	handler Handler

	// maxDepth, when positive, limits bundle nesting: the top-level
	// bundle is level 1, and a bundle at level maxDepth+1 is reported as
	// a DispatchError rather than unpacked.
	maxDepth int

	// deferTo, when set, receives nested bundles whose time tag is still
	// in the future instead of force-unpacking them (they re-enter the
	// pending store and come due on their own schedule). Nil means full
	// unpack regardless of nested tags.
	deferTo func(*osc.Bundle) error
	clock   Clock
}

// frame is one unit of traversal work. Frames are heap allocated so
// recursion depth is not encoded in any fixed-size state.
type frame struct {
	pkt   osc.Packet
	depth int // number of enclosing bundles
}

// Dispatch unpacks p and invokes the handler for each leaf message in
// stored order. It returns the number of handler invocations and the
// aggregate of per-leaf failures; one leaf failing never aborts its
// siblings. Context cancellation stops the traversal between leaves.
func (d *Dispatcher) Dispatch(ctx context.Context, p osc.Packet) (int, error) {
	stack := []*frame{{pkt: p}}
	dispatched := 0
	var errs []error

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			errs = append(errs, fmt.Errorf("dispatch interrupted: %w", err))
			break
		}

		f := stack[len(stack)-1]
		stack[len(stack)-1] = nil
		stack = stack[:len(stack)-1]

		switch v := f.pkt.(type) {
		case *osc.Message:
			dispatched++
			if err := d.handler(ctx, v); err != nil {
				errs = append(errs, &DispatchError{
					Code: ErrCodeHandlerFailed,
					Addr: v.Addr,
					Err:  err,
				})
			}

		case *osc.Bundle:
			if d.maxDepth > 0 && f.depth >= d.maxDepth {
				errs = append(errs, &DispatchError{
					Code:  ErrCodeDepthExceeded,
					Depth: f.depth + 1,
				})
				continue
			}
			if d.deferTo != nil && f.depth > 0 && !v.Tag.Immediate() && v.Tag.Time().After(d.clock.Now()) {
				if err := d.deferTo(v); err != nil {
					errs = append(errs, fmt.Errorf("defer nested bundle: %w", err))
				}
				continue
			}
			// Push children in reverse so the leftmost pops first.
			for i := len(v.Elements) - 1; i >= 0; i-- {
				stack = append(stack, &frame{pkt: v.Elements[i], depth: f.depth + 1})
			}

		default:
			errs = append(errs, fmt.Errorf("unknown packet type %T", f.pkt))
		}
	}

	return dispatched, errors.Join(errs...)
}

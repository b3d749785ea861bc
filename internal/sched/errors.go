package sched

import (
	"errors"
	"fmt"
)

// DispatchErrorCode categorizes dispatch failures.
type DispatchErrorCode string

const (
	// ErrCodeHandlerFailed indicates the per-message handler returned an
	// error for one leaf message.
	ErrCodeHandlerFailed DispatchErrorCode = "HANDLER_FAILED"

	// ErrCodeDepthExceeded indicates a bundle nested deeper than the
	// configured limit. Reported, never silently truncated.
	ErrCodeDepthExceeded DispatchErrorCode = "DEPTH_EXCEEDED"
)

// DispatchError is the per-leaf failure record produced during bundle
// traversal. Sibling leaves keep dispatching; the caller receives the
// errors.Join aggregate of every DispatchError from one top-level packet.
type DispatchError struct {
	Code  DispatchErrorCode
	Addr  string // leaf address for handler failures
	Depth int    // nesting depth for depth failures
	Err   error  // underlying handler error, if any
}

func (e *DispatchError) Error() string {
	switch e.Code {
	case ErrCodeDepthExceeded:
		return fmt.Sprintf("%s: bundle nested %d levels deep", e.Code, e.Depth)
	default:
		if e.Addr != "" {
			return fmt.Sprintf("%s: %s: %v", e.Code, e.Addr, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
}

func (e *DispatchError) Unwrap() error { return e.Err }

// IsDepthError reports whether err is (or wraps) a depth-limit failure.
func IsDepthError(err error) bool {
	var de *DispatchError
	if errors.As(err, &de) {
		return de.Code == ErrCodeDepthExceeded
	}
	return false
}

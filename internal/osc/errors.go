package osc

import "errors"

// MalformedPacketError reports a structural or framing fault: wire bytes
// that do not decode, or a decoded packet that fails validation. It marks
// an upstream transport or encoding problem, distinct from an ordinary
// duplicate, so submission surfaces it to the caller instead of dropping
// the packet silently.
type MalformedPacketError struct {
	Reason string
}

func (e *MalformedPacketError) Error() string {
	return "malformed packet: " + e.Reason
}

func malformed(reason string) *MalformedPacketError {
	return &MalformedPacketError{Reason: reason}
}

// IsMalformed reports whether err is (or wraps) a MalformedPacketError.
func IsMalformed(err error) bool {
	var me *MalformedPacketError
	return errors.As(err, &me)
}

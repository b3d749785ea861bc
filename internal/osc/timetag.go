package osc

import "time"

// TimeTag is a 64-bit NTP-format fixed-point timestamp: the upper 32 bits
// count seconds since 1900-01-01T00:00:00Z, the lower 32 bits are the
// fractional second in units of 2^-32 s.
//
// The value 1 (seconds=0, fractional=1) is reserved by the OSC spec to
// mean "apply immediately"; such bundles bypass the pending store.
type TimeTag uint64

// TimeTagImmediate is the reserved apply-as-soon-as-possible tag.
const TimeTagImmediate TimeTag = 1

// ntpEpochOffset is the number of seconds between the NTP epoch (1900)
// and the Unix epoch (1970): 70 years, 17 of them leap years.
const ntpEpochOffset = 2208988800

const fracPerNano = (1 << 32) / 1e9

// At converts a wall-clock instant to a TimeTag.
func At(t time.Time) TimeTag {
	secs := uint64(t.Unix() + ntpEpochOffset)
	frac := uint64(float64(t.Nanosecond()) * fracPerNano)
	return TimeTag(secs<<32 | frac&0xFFFFFFFF)
}

// Immediate reports whether the tag is the reserved apply-now value.
func (tt TimeTag) Immediate() bool {
	return tt == TimeTagImmediate
}

// Time converts the tag to a wall-clock instant. The result is
// meaningless for the immediate tag; callers check Immediate first.
func (tt TimeTag) Time() time.Time {
	secs := int64(tt>>32) - ntpEpochOffset
	nanos := int64(float64(tt&0xFFFFFFFF) / fracPerNano)
	return time.Unix(secs, nanos).UTC()
}

// Seconds returns the whole-seconds field of the tag.
func (tt TimeTag) Seconds() uint32 { return uint32(tt >> 32) }

// Fractional returns the sub-second field of the tag.
func (tt TimeTag) Fractional() uint32 { return uint32(tt) }

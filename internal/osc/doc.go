// Package osc models decoded Open Sound Control packets and their 1.0
// wire form.
//
// A Packet is either a *Message (an address plus typed arguments, the
// leaf unit handed to handlers) or a *Bundle (a time tag plus an ordered
// sequence of nested packets, possibly further bundles). Bundles carry a
// dedup identifier that is NOT part of the wire format: the ingress path
// attaches it (content fingerprint or random UUID) and the scheduler uses
// it to reject transport re-deliveries.
//
// Decode and Encode implement the OSC 1.0 binary framing: 4-byte aligned
// strings, a comma-led type tag string, a "#bundle" marker followed by an
// NTP-format time tag and size-prefixed elements. Any framing mismatch
// (a size prefix that disagrees with the payload, truncated alignment
// padding, an unknown type tag) surfaces as *MalformedPacketError so
// callers can distinguish transport faults from ordinary duplicates.
package osc

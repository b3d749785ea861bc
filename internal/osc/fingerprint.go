package osc

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// fingerprintDomain separates bundle fingerprints from any other SHA-256
// use. Version suffix enables future algorithm migration.
const fingerprintDomain = "oscpump/bundle/v1"

// Fingerprint computes a content-addressed dedup identifier for a bundle:
// SHA-256 over the domain, a NUL separator, and the canonical wire
// encoding of the bundle with every address and string argument NFC
// normalized. Two byte-streams that decode to the same logical bundle
// (up to Unicode normalization) fingerprint identically, so a transport
// re-delivery collapses onto the first claim.
func Fingerprint(b *Bundle) (string, error) {
	data, err := Encode(normalizePacket(b))
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(fingerprintDomain))
	h.Write([]byte{0x00}) // domain/data boundary
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// normalizePacket deep-copies p with NFC-normalized strings. The input
// is never mutated; callers keep dispatching the bytes they received.
func normalizePacket(p Packet) Packet {
	switch v := p.(type) {
	case *Message:
		m := &Message{Addr: norm.NFC.String(v.Addr)}
		if v.Args != nil {
			m.Args = make([]Arg, len(v.Args))
			for i, a := range v.Args {
				if s, ok := a.(String); ok {
					m.Args[i] = String(norm.NFC.String(string(s)))
				} else {
					m.Args[i] = a
				}
			}
		}
		return m
	case *Bundle:
		b := &Bundle{Tag: v.Tag}
		if v.Elements != nil {
			b.Elements = make([]Packet, len(v.Elements))
			for i, el := range v.Elements {
				b.Elements[i] = normalizePacket(el)
			}
		}
		return b
	default:
		return p
	}
}

package osc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// bundleMarker is the 8-byte address that opens every encoded bundle.
var bundleMarker = []byte("#bundle\x00")

// Decode parses one OSC 1.0 packet from a datagram payload. The whole
// slice must be consumed; trailing bytes are a framing fault.
func Decode(data []byte) (Packet, error) {
	p, rest, err := decodePacket(data)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, malformed(fmt.Sprintf("%d trailing bytes after packet", len(rest)))
	}
	return p, nil
}

// Encode renders a packet in OSC 1.0 wire form. The bundle dedup ID is
// deliberately not encoded; it exists only on the ingress side.
func Encode(p Packet) ([]byte, error) {
	if p == nil {
		return nil, malformed("nil packet")
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := encodePacket(&buf, p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodePacket(data []byte) (Packet, []byte, error) {
	if len(data) == 0 {
		return nil, nil, malformed("empty packet")
	}
	if len(data)%4 != 0 {
		return nil, nil, malformed(fmt.Sprintf("packet length %d is not a multiple of 4", len(data)))
	}
	switch data[0] {
	case '#':
		return decodeBundle(data)
	case '/':
		return decodeMessage(data)
	default:
		return nil, nil, malformed(fmt.Sprintf("packet starts with 0x%02x, want '/' or '#'", data[0]))
	}
}

func decodeBundle(data []byte) (Packet, []byte, error) {
	if len(data) < 16 || !bytes.Equal(data[:8], bundleMarker) {
		return nil, nil, malformed("bundle lacks #bundle marker")
	}
	tag := TimeTag(binary.BigEndian.Uint64(data[8:16]))
	rest := data[16:]

	b := &Bundle{Tag: tag}
	for len(rest) > 0 {
		if len(rest) < 4 {
			return nil, nil, malformed("truncated bundle element size")
		}
		size := int(int32(binary.BigEndian.Uint32(rest[:4])))
		rest = rest[4:]
		if size < 0 || size%4 != 0 {
			return nil, nil, malformed(fmt.Sprintf("bundle element size %d is not a non-negative multiple of 4", size))
		}
		if size > len(rest) {
			return nil, nil, malformed(fmt.Sprintf("bundle element size %d exceeds remaining payload %d", size, len(rest)))
		}
		el, trailing, err := decodePacket(rest[:size])
		if err != nil {
			return nil, nil, err
		}
		if len(trailing) != 0 {
			return nil, nil, malformed("bundle element size disagrees with element payload")
		}
		b.Elements = append(b.Elements, el)
		rest = rest[size:]
	}
	return b, nil, nil
}

func decodeMessage(data []byte) (Packet, []byte, error) {
	addr, rest, err := readPaddedString(data)
	if err != nil {
		return nil, nil, err
	}
	if err := validateAddr(addr); err != nil {
		return nil, nil, err
	}
	if len(rest) == 0 {
		// Type tag string omitted: a zero-argument message per OSC 1.0's
		// legacy allowance.
		return &Message{Addr: addr}, nil, nil
	}
	tags, rest, err := readPaddedString(rest)
	if err != nil {
		return nil, nil, err
	}
	if len(tags) == 0 || tags[0] != ',' {
		return nil, nil, malformed(fmt.Sprintf("message %s: type tag string %q does not start with ','", addr, tags))
	}

	msg := &Message{Addr: addr}
	for _, tag := range []byte(tags[1:]) {
		var arg Arg
		switch tag {
		case 'i':
			if len(rest) < 4 {
				return nil, nil, truncatedArg(addr, tag)
			}
			arg, rest = Int32(int32(binary.BigEndian.Uint32(rest))), rest[4:]
		case 'f':
			if len(rest) < 4 {
				return nil, nil, truncatedArg(addr, tag)
			}
			arg, rest = Float32(math.Float32frombits(binary.BigEndian.Uint32(rest))), rest[4:]
		case 's':
			var s string
			s, rest, err = readPaddedString(rest)
			if err != nil {
				return nil, nil, err
			}
			arg = String(s)
		case 'b':
			if len(rest) < 4 {
				return nil, nil, truncatedArg(addr, tag)
			}
			size := int(int32(binary.BigEndian.Uint32(rest)))
			rest = rest[4:]
			padded := align4(size)
			if size < 0 || padded > len(rest) {
				return nil, nil, malformed(fmt.Sprintf("message %s: blob size %d exceeds payload", addr, size))
			}
			arg = Blob(append([]byte(nil), rest[:size]...))
			rest = rest[padded:]
		case 'h':
			if len(rest) < 8 {
				return nil, nil, truncatedArg(addr, tag)
			}
			arg, rest = Int64(int64(binary.BigEndian.Uint64(rest))), rest[8:]
		case 'd':
			if len(rest) < 8 {
				return nil, nil, truncatedArg(addr, tag)
			}
			arg, rest = Double(math.Float64frombits(binary.BigEndian.Uint64(rest))), rest[8:]
		case 't':
			if len(rest) < 8 {
				return nil, nil, truncatedArg(addr, tag)
			}
			arg, rest = TimeTag(binary.BigEndian.Uint64(rest)), rest[8:]
		case 'T':
			arg = Bool(true)
		case 'F':
			arg = Bool(false)
		case 'N':
			arg = Nil{}
		default:
			return nil, nil, malformed(fmt.Sprintf("message %s: unsupported type tag %q", addr, string(tag)))
		}
		msg.Args = append(msg.Args, arg)
	}
	return msg, rest, nil
}

func encodePacket(buf *bytes.Buffer, p Packet) error {
	switch v := p.(type) {
	case *Message:
		return encodeMessage(buf, v)
	case *Bundle:
		return encodeBundle(buf, v)
	default:
		return malformed(fmt.Sprintf("unknown packet type %T", p))
	}
}

func encodeBundle(buf *bytes.Buffer, b *Bundle) error {
	buf.Write(bundleMarker)
	var tag [8]byte
	binary.BigEndian.PutUint64(tag[:], uint64(b.Tag))
	buf.Write(tag[:])
	for _, el := range b.Elements {
		var inner bytes.Buffer
		if err := encodePacket(&inner, el); err != nil {
			return err
		}
		var size [4]byte
		binary.BigEndian.PutUint32(size[:], uint32(inner.Len()))
		buf.Write(size[:])
		buf.Write(inner.Bytes())
	}
	return nil
}

func encodeMessage(buf *bytes.Buffer, m *Message) error {
	writePaddedString(buf, m.Addr)

	tags := make([]byte, 0, len(m.Args)+1)
	tags = append(tags, ',')
	for _, a := range m.Args {
		tags = append(tags, a.TypeTag())
	}
	writePaddedString(buf, string(tags))

	for _, a := range m.Args {
		switch v := a.(type) {
		case Int32:
			var b [4]byte
			binary.BigEndian.PutUint32(b[:], uint32(v))
			buf.Write(b[:])
		case Float32:
			var b [4]byte
			binary.BigEndian.PutUint32(b[:], math.Float32bits(float32(v)))
			buf.Write(b[:])
		case String:
			writePaddedString(buf, string(v))
		case Blob:
			var b [4]byte
			binary.BigEndian.PutUint32(b[:], uint32(len(v)))
			buf.Write(b[:])
			buf.Write(v)
			for i := len(v); i%4 != 0; i++ {
				buf.WriteByte(0)
			}
		case Int64:
			var b [8]byte
			binary.BigEndian.PutUint64(b[:], uint64(v))
			buf.Write(b[:])
		case Double:
			var b [8]byte
			binary.BigEndian.PutUint64(b[:], math.Float64bits(float64(v)))
			buf.Write(b[:])
		case TimeTag:
			var b [8]byte
			binary.BigEndian.PutUint64(b[:], uint64(v))
			buf.Write(b[:])
		case Bool, Nil:
			// Payload lives entirely in the type tag.
		default:
			return malformed(fmt.Sprintf("message %s: unsupported argument type %T", m.Addr, a))
		}
	}
	return nil
}

// readPaddedString consumes a NUL-terminated string padded to a 4-byte
// boundary and returns the remainder.
func readPaddedString(data []byte) (string, []byte, error) {
	end := bytes.IndexByte(data, 0)
	if end < 0 {
		return "", nil, malformed("unterminated string")
	}
	padded := align4(end + 1)
	if padded > len(data) {
		return "", nil, malformed("string padding exceeds payload")
	}
	return string(data[:end]), data[padded:], nil
}

func writePaddedString(buf *bytes.Buffer, s string) {
	buf.WriteString(s)
	buf.WriteByte(0)
	for n := len(s) + 1; n%4 != 0; n++ {
		buf.WriteByte(0)
	}
}

func truncatedArg(addr string, tag byte) error {
	return malformed(fmt.Sprintf("message %s: truncated %q argument", addr, string(tag)))
}

func align4(n int) int {
	return (n + 3) &^ 3
}

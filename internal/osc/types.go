package osc

import (
	"fmt"
	"strings"
)

// Packet is the sealed union of *Message and *Bundle.
type Packet interface {
	packet() // Sealed - only Message and Bundle implement it.

	// Validate checks structural well-formedness: address shape, argument
	// types, non-nil nested packets. A packet that fails validation is
	// rejected at submission with a *MalformedPacketError.
	Validate() error
}

// Message is a leaf control unit: an address path plus typed arguments.
type Message struct {
	Addr string
	Args []Arg
}

func (*Message) packet() {}

// Bundle is a container of nested packets scheduled by a time tag.
//
// ID is the dedup identifier. It is not part of the wire format; the
// ingress path attaches it (see transport.Receiver) and the scheduler
// assigns a random UUID when the submitter left it empty.
type Bundle struct {
	Tag      TimeTag
	Elements []Packet
	ID       string
}

func (*Bundle) packet() {}

// NewMessage builds a message from an address and arguments.
func NewMessage(addr string, args ...Arg) *Message {
	return &Message{Addr: addr, Args: args}
}

// NewBundle builds a bundle from a time tag and nested packets.
func NewBundle(tag TimeTag, elements ...Packet) *Bundle {
	return &Bundle{Tag: tag, Elements: elements}
}

// Arg is the sealed union of OSC argument types. The set matches what
// the 1.0 type tag string can carry plus the common 1.1 extensions
// (int64, double, booleans, nil).
type Arg interface {
	arg()

	// TypeTag returns the single-character OSC type tag for the value.
	TypeTag() byte
}

// Int32 is an 'i' argument.
type Int32 int32

// Float32 is an 'f' argument.
type Float32 float32

// String is an 's' argument.
type String string

// Blob is a 'b' argument: opaque bytes with a size prefix.
type Blob []byte

// Int64 is an 'h' argument.
type Int64 int64

// Double is a 'd' argument.
type Double float64

// Bool is a 'T' or 'F' argument. It carries no payload bytes.
type Bool bool

// Nil is an 'N' argument. It carries no payload bytes.
type Nil struct{}

func (Int32) arg()   {}
func (Float32) arg() {}
func (String) arg()  {}
func (Blob) arg()    {}
func (Int64) arg()   {}
func (Double) arg()  {}
func (Bool) arg()    {}
func (Nil) arg()     {}
func (TimeTag) arg() {}

func (Int32) TypeTag() byte   { return 'i' }
func (Float32) TypeTag() byte { return 'f' }
func (String) TypeTag() byte  { return 's' }
func (Blob) TypeTag() byte    { return 'b' }
func (Int64) TypeTag() byte   { return 'h' }
func (Double) TypeTag() byte  { return 'd' }
func (Nil) TypeTag() byte     { return 'N' }
func (TimeTag) TypeTag() byte { return 't' }

func (v Bool) TypeTag() byte {
	if v {
		return 'T'
	}
	return 'F'
}

// Validate checks that the address is a well-formed OSC address path.
func (m *Message) Validate() error {
	if m == nil {
		return malformed("nil message")
	}
	if err := validateAddr(m.Addr); err != nil {
		return err
	}
	for i, a := range m.Args {
		if a == nil {
			return malformed(fmt.Sprintf("message %s: nil argument at index %d", m.Addr, i))
		}
	}
	return nil
}

// Validate checks the bundle and, recursively, every nested packet.
func (b *Bundle) Validate() error {
	if b == nil {
		return malformed("nil bundle")
	}
	for i, el := range b.Elements {
		if el == nil {
			return malformed(fmt.Sprintf("bundle: nil element at index %d", i))
		}
		if err := el.Validate(); err != nil {
			return fmt.Errorf("bundle element %d: %w", i, err)
		}
	}
	return nil
}

func validateAddr(addr string) error {
	if addr == "" {
		return malformed("empty address")
	}
	if !strings.HasPrefix(addr, "/") {
		return malformed(fmt.Sprintf("address %q does not start with '/'", addr))
	}
	if strings.IndexByte(addr, 0) >= 0 {
		return malformed(fmt.Sprintf("address %q contains NUL", addr))
	}
	return nil
}

// String renders the message for logs.
func (m *Message) String() string {
	if len(m.Args) == 0 {
		return m.Addr
	}
	parts := make([]string, len(m.Args))
	for i, a := range m.Args {
		parts[i] = fmt.Sprintf("%v", a)
	}
	return m.Addr + " " + strings.Join(parts, " ")
}

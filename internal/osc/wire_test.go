package osc

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWire_MessageRoundTrip(t *testing.T) {
	msg := NewMessage("/mix/level",
		Int32(-3),
		Float32(0.25),
		String("main"),
		Blob{0xDE, 0xAD, 0xBE},
		Int64(1<<40),
		Double(2.5),
		Bool(true),
		Bool(false),
		Nil{},
		At(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)),
	)

	data, err := Encode(msg)
	require.NoError(t, err)
	require.Zero(t, len(data)%4, "encoded packets are 4-byte aligned")

	back, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, msg, back)
}

func TestWire_NestedBundleRoundTrip(t *testing.T) {
	bundle := NewBundle(At(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)),
		NewMessage("/a", Int32(1)),
		NewBundle(TimeTagImmediate,
			NewMessage("/b", String("x")),
			NewBundle(TimeTagImmediate, NewMessage("/c")),
		),
	)

	data, err := Encode(bundle)
	require.NoError(t, err)

	back, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, Packet(bundle), back)
}

func TestWire_EncodeGolden(t *testing.T) {
	bundle := NewBundle(At(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)),
		NewMessage("/avatar/parameters/Lock", Float32(1.0)),
		NewBundle(TimeTagImmediate,
			NewMessage("/avatar/change", String("avtr_8d1f")),
		),
		NewMessage("/mix", Int32(7), Bool(true), Nil{}),
	)

	data, err := Encode(bundle)
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "nested_bundle", data)
}

func TestWire_DecodeZeroArgLegacyMessage(t *testing.T) {
	// Address only, no type tag string: allowed by OSC 1.0 for old
	// implementations.
	data := []byte("/ok\x00")

	p, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, Packet(&Message{Addr: "/ok"}), p)
}

func TestWire_DecodeMalformed(t *testing.T) {
	immediate := func() []byte {
		var tag [8]byte
		binary.BigEndian.PutUint64(tag[:], uint64(TimeTagImmediate))
		return tag[:]
	}()

	cases := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"unaligned", []byte("/a\x00")},
		{"bad leading byte", []byte("ping\x00\x00\x00\x00")},
		{"unterminated address", []byte{'/', 'a', 'b', 'c'}},
		{"bad type tag string", []byte("/a\x00\x00qi\x00\x00")},
		{"unknown type tag", []byte("/a\x00\x00,z\x00\x00")},
		{"truncated int argument", []byte("/a\x00\x00,i\x00\x00")},
		{"short bundle", []byte("#bundle\x00")},
		{
			// Size prefix claims 8 bytes but only 4 remain.
			"element size exceeds payload",
			append(append([]byte("#bundle\x00"), immediate...),
				0x00, 0x00, 0x00, 0x08, '/', 'a', 0x00, 0x00),
		},
		{
			// Size prefix claims 4 bytes but the element needs 8.
			"element size disagrees with payload",
			append(append([]byte("#bundle\x00"), immediate...),
				0x00, 0x00, 0x00, 0x04, '/', 'a', 0x00, 0x00, 0x00, 0x00, 0x00, 0x00),
		},
		{"trailing bytes", []byte("/a\x00\x00,\x00\x00\x00\x00\x00\x00\x00")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.data)
			require.Error(t, err)
			assert.True(t, IsMalformed(err), "decode faults must classify as malformed")
		})
	}
}

func TestWire_EncodeRejectsInvalid(t *testing.T) {
	_, err := Encode(NewMessage("no-slash"))
	require.Error(t, err)
	assert.True(t, IsMalformed(err))

	_, err = Encode(nil)
	require.Error(t, err)
}

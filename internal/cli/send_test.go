package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbward/oscpump/internal/osc"
)

func TestParseArgTyped(t *testing.T) {
	tests := []struct {
		token string
		want  osc.Arg
	}{
		{"i:42", osc.Int32(42)},
		{"i:-7", osc.Int32(-7)},
		{"h:9000000000", osc.Int64(9000000000)},
		{"f:1.5", osc.Float32(1.5)},
		{"d:2.25", osc.Double(2.25)},
		{"s:123", osc.String("123")},
		{"s:", osc.String("")},
		{"b:deadbeef", osc.Blob{0xde, 0xad, 0xbe, 0xef}},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, err := parseArg(tt.token)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseArgInferred(t *testing.T) {
	tests := []struct {
		token string
		want  osc.Arg
	}{
		{"42", osc.Int32(42)},
		{"-7", osc.Int32(-7)},
		{"1.5", osc.Float32(1.5)},
		{"true", osc.Bool(true)},
		{"false", osc.Bool(false)},
		{"nil", osc.Nil{}},
		{"hello", osc.String("hello")},
		{"back in a moment", osc.String("back in a moment")},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, err := parseArg(tt.token)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseArgInvalid(t *testing.T) {
	for _, token := range []string{"i:x", "i:99999999999", "h:x", "f:x", "d:x", "b:zz"} {
		t.Run(token, func(t *testing.T) {
			_, err := parseArg(token)
			require.Error(t, err)
		})
	}
}

func TestDueTime(t *testing.T) {
	t.Run("none", func(t *testing.T) {
		opts := &SendOptions{}
		_, timed, err := opts.dueTime()
		require.NoError(t, err)
		assert.False(t, timed)
	})

	t.Run("at", func(t *testing.T) {
		opts := &SendOptions{At: "2026-09-01T08:00:00Z"}
		due, timed, err := opts.dueTime()
		require.NoError(t, err)
		require.True(t, timed)
		assert.Equal(t, time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC), due.UTC())
	})

	t.Run("in", func(t *testing.T) {
		opts := &SendOptions{Delay: time.Minute}
		due, timed, err := opts.dueTime()
		require.NoError(t, err)
		require.True(t, timed)
		assert.WithinDuration(t, time.Now().Add(time.Minute), due, time.Second)
	})

	t.Run("bad at", func(t *testing.T) {
		opts := &SendOptions{At: "tomorrow"}
		_, _, err := opts.dueTime()
		require.Error(t, err)
	})
}

func TestParseArgsOrderPreserved(t *testing.T) {
	args, err := parseArgs([]string{"i:1", "f:2.5", "x"})
	require.NoError(t, err)
	require.Equal(t, []osc.Arg{osc.Int32(1), osc.Float32(2.5), osc.String("x")}, args)
}

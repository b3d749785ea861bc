package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveConfigNoFile(t *testing.T) {
	opts := &RunOptions{
		Config: DefaultConfig(),
		set:    func(string) bool { return false },
	}
	opts.Config.Listen = ":7000"

	cfg, err := opts.resolveConfig()
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Listen)
}

func TestResolveConfigFlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, `
listen: ":7000"
tick: 250ms
retention: 30m
`)

	opts := &RunOptions{
		ConfigPath: path,
		Config:     DefaultConfig(),
		set: func(name string) bool {
			return name == "tick"
		},
	}
	opts.Config.Tick = 100 * time.Millisecond

	cfg, err := opts.resolveConfig()
	require.NoError(t, err)
	// Explicit flag wins over the file.
	assert.Equal(t, 100*time.Millisecond, cfg.Tick)
	// File wins over flag defaults.
	assert.Equal(t, ":7000", cfg.Listen)
	assert.Equal(t, 30*time.Minute, cfg.Retention)
}

func TestResolveConfigInvalidFlag(t *testing.T) {
	opts := &RunOptions{
		Config: DefaultConfig(),
		set:    func(string) bool { return false },
	}
	opts.Config.Tick = 0

	_, err := opts.resolveConfig()
	require.Error(t, err)
}

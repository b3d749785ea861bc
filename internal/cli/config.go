package cli

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk configuration for the run command. Every field
// has a flag twin; flags set explicitly on the command line win.
type Config struct {
	// Listen is the UDP address to receive OSC packets on.
	Listen string

	// Forward is the UDP address due messages are relayed to.
	Forward string

	// Tick is the pump's periodic drain interval.
	Tick time.Duration

	// Retention expires dedup records older than this window. Zero keeps
	// them for the life of the process.
	Retention time.Duration

	// Journal is the path to the durable dedup database. Empty disables
	// cross-restart deduplication.
	Journal string

	// MaxDepth bounds bundle nesting levels. Zero means unbounded.
	MaxDepth int

	// RescheduleNested re-buffers nested bundles whose time tag is still
	// in the future instead of unpacking them with their parent.
	RescheduleNested bool
}

// DefaultConfig returns the configuration used when no file or flags
// override it.
func DefaultConfig() Config {
	return Config{
		Listen:    "0.0.0.0:9000",
		Forward:   "127.0.0.1:9001",
		Tick:      time.Second,
		Retention: time.Hour,
	}
}

// rawConfig is the YAML shape. Durations arrive as strings ("250ms",
// "1h") because yaml.v3 has no native time.Duration decoding.
type rawConfig struct {
	Listen           *string `yaml:"listen"`
	Forward          *string `yaml:"forward"`
	Tick             *string `yaml:"tick"`
	Retention        *string `yaml:"retention"`
	Journal          *string `yaml:"journal"`
	MaxDepth         *int    `yaml:"max_depth"`
	RescheduleNested *bool   `yaml:"reschedule_nested"`
}

// LoadConfig reads a YAML config file over the defaults. Absent keys
// keep their default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	if raw.Listen != nil {
		cfg.Listen = *raw.Listen
	}
	if raw.Forward != nil {
		cfg.Forward = *raw.Forward
	}
	if raw.Tick != nil {
		if cfg.Tick, err = time.ParseDuration(*raw.Tick); err != nil {
			return cfg, fmt.Errorf("config %s: tick: %w", path, err)
		}
	}
	if raw.Retention != nil {
		if cfg.Retention, err = time.ParseDuration(*raw.Retention); err != nil {
			return cfg, fmt.Errorf("config %s: retention: %w", path, err)
		}
	}
	if raw.Journal != nil {
		cfg.Journal = *raw.Journal
	}
	if raw.MaxDepth != nil {
		cfg.MaxDepth = *raw.MaxDepth
	}
	if raw.RescheduleNested != nil {
		cfg.RescheduleNested = *raw.RescheduleNested
	}

	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	if c.Forward == "" {
		return fmt.Errorf("forward address must not be empty")
	}
	if c.Tick <= 0 {
		return fmt.Errorf("tick interval must be positive, got %v", c.Tick)
	}
	if c.Retention < 0 {
		return fmt.Errorf("retention must not be negative, got %v", c.Retention)
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("max depth must not be negative, got %d", c.MaxDepth)
	}
	return nil
}

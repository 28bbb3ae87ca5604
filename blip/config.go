package blip

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Config tunes the engine's wire-level knobs. Zero value is not valid
// directly; use DefaultConfig and override individual fields.
type Config struct {
	// CompressionLevel is the compress/flate level (1-9, or 0 to disable
	// compression engine-wide regardless of what individual messages ask
	// for).
	CompressionLevel int `json:"compressionLevel" yaml:"compressionLevel"`

	// IncomingAckThreshold and OutgoingAckThreshold override the
	// defaults from the specification; left at zero they fall back to
	// IncomingAckThreshold/OutgoingAckThreshold.
	IncomingAckThreshold int `json:"incomingAckThreshold,omitempty" yaml:"incomingAckThreshold,omitempty"`
	OutgoingAckThreshold int `json:"outgoingAckThreshold,omitempty" yaml:"outgoingAckThreshold,omitempty"`

	// DefaultFrameSize and UrgentFrameSize override the regular and
	// urgent per-frame payload caps.
	DefaultFrameSize int `json:"defaultFrameSize,omitempty" yaml:"defaultFrameSize,omitempty"`
	UrgentFrameSize  int `json:"urgentFrameSize,omitempty" yaml:"urgentFrameSize,omitempty"`

	// LogLevel sets the engine's verbosity threshold.
	LogLevel LogLevel `json:"logLevel,omitempty" yaml:"logLevel,omitempty"`

	// Logger receives the engine's structured log output. Defaults to
	// slog.Default() when nil.
	Logger *slog.Logger `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with compression enabled at level 6 and
// the specification's default thresholds and frame sizes.
func DefaultConfig() Config {
	return Config{
		CompressionLevel:     6,
		IncomingAckThreshold: IncomingAckThreshold,
		OutgoingAckThreshold: OutgoingAckThreshold,
		DefaultFrameSize:     DefaultFrameSize,
		UrgentFrameSize:      UrgentFrameSize,
		LogLevel:             LogLevelWarning,
	}
}

// LoadConfigYAML reads a Config from YAML, filling unset numeric fields
// from DefaultConfig so a config file only needs to mention what it
// overrides.
func LoadConfigYAML(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("blip: reading config %q: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("blip: parsing config %q: %w", path, err)
	}
	return cfg, nil
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.IncomingAckThreshold <= 0 {
		c.IncomingAckThreshold = d.IncomingAckThreshold
	}
	if c.OutgoingAckThreshold <= 0 {
		c.OutgoingAckThreshold = d.OutgoingAckThreshold
	}
	if c.DefaultFrameSize <= 0 {
		c.DefaultFrameSize = d.DefaultFrameSize
	}
	if c.UrgentFrameSize <= 0 {
		c.UrgentFrameSize = d.UrgentFrameSize
	}
	return c
}

package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Config is the main configuration struct.
type Config struct {
	Identity  IdentityConfig  `yaml:"identity"`
	Transport TransportConfig `yaml:"transport"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Journal   JournalConfig   `yaml:"journal"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// IdentityConfig names the authenticated user the engine runs as. It is
// supplied by the sign-in flow and passed explicitly into the session
// controller; the engine never reads identity from ambient state.
type IdentityConfig struct {
	UserID    string `yaml:"user_id"`
	Username  string `yaml:"username"`
	FirstName string `yaml:"first_name"`
	LastName  string `yaml:"last_name"`
}

// TransportConfig holds websocket endpoint and outbound pacing settings.
type TransportConfig struct {
	URL       string  `yaml:"url"`
	SendRPS   float64 `yaml:"send_rps"`
	SendBurst int     `yaml:"send_burst"`
}

// GatewayConfig holds the local HTTP view server settings. Token and the
// rate limit only matter when the gateway is bound beyond loopback.
type GatewayConfig struct {
	Address     string   `yaml:"address"`
	Port        int      `yaml:"port"`
	Token       string   `yaml:"token"`
	RPS         float64  `yaml:"rps"`
	Burst       int      `yaml:"burst"`
	SlowRequest Duration `yaml:"slow_request"`
}

// JournalConfig controls the local pebble-backed message journal.
type JournalConfig struct {
	Enabled    bool             `yaml:"enabled"`
	Path       string           `yaml:"path"`
	MaxValue   SizeBytes        `yaml:"max_value_bytes"`
	Compaction CompactionConfig `yaml:"compaction"`
}

// CompactionConfig holds configuration for the periodic journal sweep
// that removes superseded pending-message entries.
type CompactionConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// SizeBytes represents a number of bytes, unmarshaled from human-friendly
// strings like "64MB" or plain integers.
type SizeBytes int64

func (s *SizeBytes) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*s = 0
		return nil
	}
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		*s = 0
		return nil
	}
	if v, err := humanize.ParseBytes(raw); err == nil {
		*s = SizeBytes(v)
		return nil
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*s = SizeBytes(i)
		return nil
	}
	return fmt.Errorf("invalid size value: %q", node.Value)
}

func (s SizeBytes) Int64() int64 { return int64(s) }

// Duration is a wrapper around time.Duration that supports YAML parsing
// from strings like "100ms" or plain numbers (interpreted as seconds).
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*d = Duration(0)
		return nil
	}
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		*d = Duration(0)
		return nil
	}
	if td, err := time.ParseDuration(raw); err == nil {
		*d = Duration(td)
		return nil
	}
	// allow numeric seconds
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		*d = Duration(time.Duration(f * float64(time.Second)))
		return nil
	}
	return fmt.Errorf("invalid duration value: %q", node.Value)
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }

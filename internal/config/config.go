// Package config loads the YAML configuration consumed by cmd/frame-server,
// following the teacher's ServerConfig/LoadServerConfig/validate() shape
// (nested YAML-tagged structs, os.ReadFile + yaml.Unmarshal + default-filling
// validation) rather than hand-rolling a bespoke loader.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete frame-server configuration: TCP listener, timer
// scheduler limits, framing retry policy, and event hook wiring.
type Config struct {
	Server  ServerListen  `yaml:"server"`
	Logging LoggingInfo   `yaml:"logging"`
	Timer   TimerTuning   `yaml:"timer"`
	Framing FramingTuning `yaml:"framing"`
	Hooks   HooksConfig   `yaml:"hooks"`
}

// ServerListen configures the TCP accept address.
type ServerListen struct {
	Listen string `yaml:"listen"` // default: ":9000"
}

// LoggingInfo configures the global logger level.
type LoggingInfo struct {
	Level string `yaml:"level"` // default: "info"
}

// TimerTuning bounds the Timer Manager's handle table and per-timer
// interval, mirroring timer.Config's two tunables.
type TimerTuning struct {
	Capacity       uint32        `yaml:"capacity"`        // default: 100
	MaxInterval    time.Duration `yaml:"max_interval"`     // default: unset (library default)
	HeartbeatEvery time.Duration `yaml:"heartbeat_every"`  // default: 30s; 0 or unset also selects 30s, so the heartbeat cannot be disabled here
}

// FramingTuning holds the Framed Messaging retry policy. Load fills and
// validates it, but cmd/frame-server does not pass it on: its TCP
// connections use the internal/framing defaults.
type FramingTuning struct {
	SendRetry      int           `yaml:"send_retry"`       // default: 3
	SendRetryDelay time.Duration `yaml:"send_retry_delay"` // default: 10ms
}

// HooksConfig configures internal/hooks.Manager and its registered hooks.
// Scripts and Webhooks use "event_type=target" pairs, matching the teacher's
// -hook-script/-hook-webhook flag format.
type HooksConfig struct {
	Scripts     []string `yaml:"scripts"`
	Webhooks    []string `yaml:"webhooks"`
	StdioFormat string   `yaml:"stdio_format"` // "json", "env", or "" (disabled)
	Timeout     string   `yaml:"timeout"`      // default: "30s"
	Concurrency int      `yaml:"concurrency"`  // default: 10
}

// validEventTypes is the set of event names accepted in Scripts/Webhooks
// entries, kept in lockstep with the internal/hooks.EventType constants.
var validEventTypes = map[string]bool{
	"connection_accept":    true,
	"connection_close":     true,
	"frame_decoded":        true,
	"send_retry_exhausted": true,
	"timer_fired":          true,
	"timer_deleted":        true,
}

// Load reads path, parses it as YAML, fills defaults, and validates the
// result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// Default returns a Config with every field set to its zero-argument
// default, suitable for running cmd/frame-server with no YAML file at all.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = ":9000"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Timer.Capacity == 0 {
		c.Timer.Capacity = 100
	}
	if c.Timer.HeartbeatEvery == 0 {
		c.Timer.HeartbeatEvery = 30 * time.Second
	}
	if c.Framing.SendRetry == 0 {
		c.Framing.SendRetry = 3
	}
	if c.Framing.SendRetryDelay == 0 {
		c.Framing.SendRetryDelay = 10 * time.Millisecond
	}
	if c.Hooks.Timeout == "" {
		c.Hooks.Timeout = "30s"
	}
	if c.Hooks.Concurrency == 0 {
		c.Hooks.Concurrency = 10
	}
}

func (c *Config) validate() error {
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug|info|warn|error, got %q", c.Logging.Level)
	}
	if c.Timer.HeartbeatEvery < 0 {
		return fmt.Errorf("timer.heartbeat_every must be >= 0")
	}
	if c.Framing.SendRetry < 0 {
		return fmt.Errorf("framing.send_retry must be >= 0")
	}
	if c.Hooks.StdioFormat != "" && c.Hooks.StdioFormat != "json" && c.Hooks.StdioFormat != "env" {
		return fmt.Errorf("hooks.stdio_format must be json|env, got %q", c.Hooks.StdioFormat)
	}
	if c.Hooks.Timeout != "" {
		if _, err := time.ParseDuration(c.Hooks.Timeout); err != nil {
			return fmt.Errorf("hooks.timeout: %w", err)
		}
	}
	if c.Hooks.Concurrency < 1 || c.Hooks.Concurrency > 100 {
		return fmt.Errorf("hooks.concurrency must be between 1 and 100, got %d", c.Hooks.Concurrency)
	}
	for _, s := range c.Hooks.Scripts {
		if err := validateAssignment("hooks.scripts", s); err != nil {
			return err
		}
	}
	for _, w := range c.Hooks.Webhooks {
		if err := validateAssignment("hooks.webhooks", w); err != nil {
			return err
		}
	}
	return nil
}

// validateAssignment checks an "event_type=target" pair against
// validEventTypes, mirroring the teacher's validateHookAssignment.
func validateAssignment(field, assignment string) error {
	parts := strings.SplitN(assignment, "=", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("invalid %s entry %q, expected event_type=target", field, assignment)
	}
	if !validEventTypes[parts[0]] {
		return fmt.Errorf("invalid %s entry %q: unknown event type %q", field, assignment, parts[0])
	}
	return nil
}

// ParseAssignment splits a validated "event_type=target" pair, for callers
// (cmd/frame-server) that have already gone through Load/validate.
func ParseAssignment(assignment string) (eventType, target string) {
	parts := strings.SplitN(assignment, "=", 2)
	if len(parts) != 2 {
		return "", ""
	}
	return parts[0], parts[1]
}

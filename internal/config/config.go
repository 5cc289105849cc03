// Package config provides configuration parsing and validation for muti-ping.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/postalsys/muti-ping/internal/icmp"
	"github.com/postalsys/muti-ping/internal/logging"
	"github.com/postalsys/muti-ping/internal/payload"
)

// DefaultBody is the caller body sent after the timestamp.
const DefaultBody = "0123456789!@#$%^&*()"

// Config represents the complete muti-ping configuration.
type Config struct {
	Ping    PingConfig    `yaml:"ping"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// PingConfig controls the probes.
type PingConfig struct {
	Count        int           `yaml:"count"`         // 0 or 1 sends a single probe
	Interval     time.Duration `yaml:"interval"`      // pause between repeated probes
	Timeout      time.Duration `yaml:"timeout"`       // 0 waits indefinitely
	Size         string        `yaml:"size"`          // payload bytes: "56", "64B", "1KiB"
	Body         string        `yaml:"body"`          // bytes following the timestamp
	Identifier   uint16        `yaml:"identifier"`    // echo identifier (raw mode only)
	Mode         string        `yaml:"mode"`          // dgram, raw
	MatchReplies bool          `yaml:"match_replies"` // skip unrelated ICMP traffic
	AllowedCIDRs []string      `yaml:"allowed_cidrs"` // empty allows every destination
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// MetricsConfig defines probe metrics export.
type MetricsConfig struct {
	File string `yaml:"file"` // Prometheus textfile written after the run
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Ping: PingConfig{
			Count:        1,
			Interval:     time.Second,
			Timeout:      0,
			Size:         "56",
			Body:         DefaultBody,
			Mode:         string(icmp.ModeDatagram),
			MatchReplies: true,
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// Load reads and parses a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse parses configuration from YAML bytes on top of Default.
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// envVarRegex matches ${VAR} or $VAR patterns
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars replaces environment variable references with their values.
// Unknown variables are left untouched; ${VAR:-default} falls back to default.
func expandEnvVars(s string) string {
	return envVarRegex.ReplaceAllStringFunc(s, func(match string) string {
		var name string
		if strings.HasPrefix(match, "${") {
			name = match[2 : len(match)-1]
		} else {
			name = match[1:]
		}

		if idx := strings.Index(name, ":-"); idx != -1 {
			if val, ok := os.LookupEnv(name[:idx]); ok {
				return val
			}
			return name[idx+2:]
		}

		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return match
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	p := c.Ping
	if p.Count < 0 {
		errs = append(errs, "ping.count must not be negative")
	}
	if p.Interval < 0 {
		errs = append(errs, "ping.interval must not be negative")
	}
	if p.Timeout < 0 {
		errs = append(errs, "ping.timeout must not be negative")
	}
	if size, err := ParseSize(p.Size); err != nil {
		errs = append(errs, fmt.Sprintf("ping.size: %v", err))
	} else if size > icmp.MaxPayloadLen {
		errs = append(errs, fmt.Sprintf("ping.size must be at most %d bytes", icmp.MaxPayloadLen))
	}
	if n := payload.TimestampSize + len(p.Body); n > icmp.MaxPayloadLen {
		errs = append(errs, fmt.Sprintf("ping.body too long: payload would be %d bytes (max %d)", n, icmp.MaxPayloadLen))
	}
	if _, err := icmp.ParseMode(p.Mode); err != nil {
		errs = append(errs, fmt.Sprintf("ping.mode: %v", err))
	}
	if _, err := icmp.ParseCIDRs(p.AllowedCIDRs); err != nil {
		errs = append(errs, fmt.Sprintf("ping.allowed_cidrs: %v", err))
	}

	if !logging.ValidLevel(c.Log.Level) {
		errs = append(errs, fmt.Sprintf("invalid log.level: %s (must be debug, info, warn, or error)", c.Log.Level))
	}
	if !logging.ValidFormat(c.Log.Format) {
		errs = append(errs, fmt.Sprintf("invalid log.format: %s (must be text or json)", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// ParseSize parses a human-readable payload size such as "56", "64B" or
// "1KiB".
func ParseSize(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}

	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size format '%s': %w", s, err)
	}
	if n > uint64(icmp.MaxPayloadLen)*1024 {
		return 0, fmt.Errorf("size '%s' out of range", s)
	}
	return int(n), nil
}

// PayloadSize returns the parsed ping.size.
func (p PingConfig) PayloadSize() (int, error) {
	return ParseSize(p.Size)
}

// Session converts the ping section into a session configuration.
func (p PingConfig) Session() (icmp.Config, error) {
	mode, err := icmp.ParseMode(p.Mode)
	if err != nil {
		return icmp.Config{}, err
	}
	cidrs, err := icmp.ParseCIDRs(p.AllowedCIDRs)
	if err != nil {
		return icmp.Config{}, err
	}
	return icmp.Config{
		Mode:         mode,
		MatchReplies: p.MatchReplies,
		AllowedCIDRs: cidrs,
	}, nil
}

// String returns the configuration as YAML.
func (c *Config) String() string {
	data, _ := yaml.Marshal(c)
	return string(data)
}

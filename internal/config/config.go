// Package config loads server configuration from defaults, an optional
// YAML file and PRESENCE_* environment variables, in that order.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/davidkramnik/telegram-bot-calculation/internal/clock"
	"github.com/davidkramnik/telegram-bot-calculation/internal/logging"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "PRESENCE_"

const maxConfigFileSize = 1024 * 1024

// Config defines server configuration.
type Config struct {
	Server ServerConfig   `koanf:"server"`
	DB     DBConfig       `koanf:"db"`
	Log    logging.Config `koanf:"log"`
	Clock  ClockConfig    `koanf:"clock"`
	Intake IntakeConfig   `koanf:"intake"`
	Groups GroupsConfig   `koanf:"groups"`
	NATS   NATSConfig     `koanf:"nats"`
	MCP    MCPConfig      `koanf:"mcp"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DBConfig struct {
	Path string `koanf:"path"`
}

// ClockConfig selects the IANA timezone day, week and month boundaries
// are computed in. Empty means UTC.
type ClockConfig struct {
	Timezone string `koanf:"timezone"`
}

// IntakeConfig limits signals per group. A zero rate disables limiting.
type IntakeConfig struct {
	RatePerSecond float64 `koanf:"rate_per_second"`
	Burst         int     `koanf:"burst"`
}

// GroupsConfig restricts which groups may send signals. Empty allows all.
type GroupsConfig struct {
	Allowed []int64 `koanf:"allowed"`
}

// NATSConfig enables event fan-out when URL is set.
type NATSConfig struct {
	URL           string `koanf:"url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// MCPConfig controls the MCP endpoint mounted on the HTTP server.
type MCPConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: 10 * time.Second,
		},
		DB: DBConfig{
			Path: "presence.db",
		},
		Log: logging.NewDefaultConfig(),
		Intake: IntakeConfig{
			RatePerSecond: 5,
			Burst:         20,
		},
		NATS: NATSConfig{
			SubjectPrefix: "presence.events",
		},
		MCP: MCPConfig{
			Enabled: true,
			Path:    "/mcp",
		},
	}
}

// Load reads configuration from an optional YAML file and environment
// variables. An empty path falls back to PRESENCE_CONFIG_PATH; when both
// are empty no file is read.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path == "" {
		path = os.Getenv(EnvPrefix + "CONFIG_PATH")
	}
	if path != "" {
		content, err := readConfigFile(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	// PRESENCE_SERVER_HOST -> server.host, PRESENCE_INTAKE_RATE_PER_SECOND -> intake.rate_per_second
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 || parts[0] == "config" {
		return ""
	}
	return parts[0] + "." + parts[1]
}

func readConfigFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file %s is larger than %d bytes", path, maxConfigFileSize)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return content, nil
}

func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Server.Host == "" {
		cfg.Server.Host = def.Server.Host
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = def.Server.ShutdownTimeout
	}
	if cfg.DB.Path == "" {
		cfg.DB.Path = def.DB.Path
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = def.Log.Format
	}
	if cfg.NATS.SubjectPrefix == "" {
		cfg.NATS.SubjectPrefix = def.NATS.SubjectPrefix
	}
	if cfg.MCP.Path == "" {
		cfg.MCP.Path = def.MCP.Path
	}
	if cfg.Intake.RatePerSecond > 0 && cfg.Intake.Burst <= 0 {
		cfg.Intake.Burst = 1
	}
}

// Validate checks the loaded configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if _, err := clock.LoadZone(c.Clock.Timezone); err != nil {
		return fmt.Errorf("clock.timezone: %w", err)
	}
	if c.Intake.RatePerSecond < 0 {
		return fmt.Errorf("intake.rate_per_second must not be negative")
	}
	if !strings.HasPrefix(c.MCP.Path, "/") {
		return fmt.Errorf("mcp.path %q must start with /", c.MCP.Path)
	}
	for _, id := range c.Groups.Allowed {
		if id == 0 {
			return fmt.Errorf("groups.allowed contains 0")
		}
	}
	return nil
}

// Zone returns the configured timezone.
func (c *Config) Zone() (*clock.Zone, error) {
	return clock.LoadZone(c.Clock.Timezone)
}

// GroupAllowed reports whether signals from groupID are accepted.
func (c *Config) GroupAllowed(groupID int64) bool {
	if len(c.Groups.Allowed) == 0 {
		return true
	}
	for _, id := range c.Groups.Allowed {
		if id == groupID {
			return true
		}
	}
	return false
}

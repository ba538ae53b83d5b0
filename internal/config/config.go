// Package config loads renown server configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for the renown server.
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Storage    StorageConfig    `toml:"storage"`
	Events     EventsConfig     `toml:"events"`
	Credential CredentialConfig `toml:"credential"`
	Session    SessionConfig    `toml:"session"`
	Logging    LoggingConfig    `toml:"logging"`
}

type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns host:port for the HTTP listener.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StorageConfig selects the credential and session backend.
type StorageConfig struct {
	Backend  string `toml:"backend"` // "memory" or "redis"
	RedisURL string `toml:"redis_url"`
}

// EventsConfig selects where credential and session events go.
type EventsConfig struct {
	Backend string `toml:"backend"` // "none", "gochannel" or "redis"
}

type CredentialConfig struct {
	Audience string `toml:"audience"`
	TTL      string `toml:"ttl"`
}

// GetTTL parses the credential lifetime, defaulting to 7 days.
func (c *CredentialConfig) GetTTL() time.Duration {
	return parseDuration(c.TTL, 7*24*time.Hour)
}

type SessionConfig struct {
	TTL           string `toml:"ttl"`
	SweepInterval string `toml:"sweep_interval"`
}

// GetTTL parses the rendezvous session lifetime, defaulting to 5 minutes.
func (c *SessionConfig) GetTTL() time.Duration {
	return parseDuration(c.TTL, 5*time.Minute)
}

// GetSweepInterval parses the sweep period, defaulting to 1 minute.
func (c *SessionConfig) GetSweepInterval() time.Duration {
	return parseDuration(c.SweepInterval, time.Minute)
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 9000,
		},
		Storage: StorageConfig{
			Backend:  "memory",
			RedisURL: "redis://localhost:6379/0",
		},
		Events: EventsConfig{
			Backend: "none",
		},
		Credential: CredentialConfig{
			Audience: "renown-app",
			TTL:      "168h",
		},
		Session: SessionConfig{
			TTL:           "5m",
			SweepInterval: "1m",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads each TOML file in order over the defaults, skipping missing
// files, then applies environment overrides.
func Load(paths ...string) (*Config, error) {
	cfg := Default()

	for _, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects unknown backends.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	switch c.Events.Backend {
	case "none", "gochannel", "redis":
	default:
		return fmt.Errorf("unknown events backend %q", c.Events.Backend)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RENOWN_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("RENOWN_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("RENOWN_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("RENOWN_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("RENOWN_STORAGE"); v != "" {
		cfg.Storage.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Storage.RedisURL = v
	}
	if v := os.Getenv("RENOWN_EVENTS"); v != "" {
		cfg.Events.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("RENOWN_AUDIENCE"); v != "" {
		cfg.Credential.Audience = v
	}
	if v := os.Getenv("RENOWN_CREDENTIAL_TTL"); v != "" {
		cfg.Credential.TTL = v
	}
	if v := os.Getenv("RENOWN_SESSION_TTL"); v != "" {
		cfg.Session.TTL = v
	}
	if v := os.Getenv("RENOWN_SWEEP_INTERVAL"); v != "" {
		cfg.Session.SweepInterval = v
	}
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// Package config loads runtime configuration for plantctl.
//
// Sources, in order of precedence (later wins):
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file given with -c or -config.
//  3. Command-line flags.
package config

import (
	"errors"
	"time"
)

// Config holds runtime settings for plantctl.
//
// RawThreshold is the sealed size above which uploads use the raw body
// endpoint instead of base64 JSON.
type Config struct {
	ServerURL    string
	StatePath    string
	Timeout      time.Duration
	RawThreshold int64
}

func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.StatePath = "plantctl.db"
	c.Timeout = 30 * time.Second
	c.RawThreshold = 1 << 20
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present).
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg); err != nil {
		return nil, err
	}
	if cfg.ServerURL == "" {
		return nil, errors.New("server URL is required")
	}
	return cfg, nil
}

// Package config loads runtime configuration for the field app CLI.
//
// Sources and precedence:
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with --config.
//  3. Command-line flags, bound by the CLI layer, which override earlier
//     values.
package config

import "time"

// Config holds runtime settings for the field app.
//
// Fields:
//   - ServerURL: base URL of the sync backend, e.g. "https://crm.example.com".
//   - DBPath: path of the local SQLite database file.
//   - HTTPTimeout: per-request timeout for backend calls.
type Config struct {
	ServerURL   string
	DBPath      string
	HTTPTimeout time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.DBPath = "fieldsync.db"
	c.HTTPTimeout = 60 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from the JSON file at path (if non-empty). Flag overrides are applied by
// the CLI after this returns, so later sources take precedence over earlier
// ones.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, path); err != nil {
		return nil, err
	}
	return cfg, nil
}

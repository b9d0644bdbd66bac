package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Timeouts are
// given in seconds so the file stays editable by hand.
type JsonConfig struct {
	ServerURL          string `json:"server_url"`
	DBPath             string `json:"db_path"`
	HTTPTimeoutSeconds int    `json:"http_timeout_seconds"`
}

// parseJson overlays cfg with values loaded from the JSON file at path.
// An empty path means no file is loaded. Only fields present in the file
// override the current values.
func parseJson(cfg *Config, path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if jc.ServerURL != "" {
		cfg.ServerURL = jc.ServerURL
	}
	if jc.DBPath != "" {
		cfg.DBPath = jc.DBPath
	}
	if jc.HTTPTimeoutSeconds > 0 {
		cfg.HTTPTimeout = time.Duration(jc.HTTPTimeoutSeconds) * time.Second
	}
	return nil
}

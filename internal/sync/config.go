// ABOUTME: Sync configuration for the remote backend connection.
// ABOUTME: Stores server URL, auth token, device id, and cycle interval.
package sync

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
)

// DefaultInterval is the fixed background sync period.
const DefaultInterval = 30 * time.Second

// Config stores sync settings.
type Config struct {
	Server          string `json:"server"`
	Token           string `json:"token"`
	DeviceID        string `json:"device_id"`
	IntervalSeconds int    `json:"interval_seconds,omitempty"`
	AttemptCeiling  int    `json:"attempt_ceiling,omitempty"`
}

// Interval returns the configured sync period, defaulting to 30 seconds.
func (c *Config) Interval() time.Duration {
	if c.IntervalSeconds <= 0 {
		return DefaultInterval
	}
	return time.Duration(c.IntervalSeconds) * time.Second
}

// Ceiling returns the push retry ceiling, defaulting to 5 attempts.
func (c *Config) Ceiling() int {
	if c.AttemptCeiling <= 0 {
		return 5
	}
	return c.AttemptCeiling
}

// ConfigDir returns the XDG config directory for lift sync.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "lift")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "lift")
}

// ConfigPath returns the path to the sync config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "sync.json")
}

// LoadConfig loads sync config from disk.
func LoadConfig() (*Config, error) {
	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveConfig persists sync config to disk.
func SaveConfig(cfg *Config) error {
	if err := os.MkdirAll(ConfigDir(), 0750); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(ConfigPath(), data, 0600)
}

// IsConfigured returns true if sync is fully configured.
func (c *Config) IsConfigured() bool {
	return c.Server != ""
}

// GenerateDeviceID creates a new unique device ID.
func GenerateDeviceID() string {
	return ulid.Make().String()
}

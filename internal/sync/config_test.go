// ABOUTME: Tests for sync configuration loading and persistence.
// ABOUTME: Uses XDG_CONFIG_HOME redirection to isolate the filesystem.
package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigRoundTrip(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg := &Config{
		Server:   "https://lift.example.com",
		Token:    "secret",
		DeviceID: GenerateDeviceID(),
	}
	require.NoError(t, SaveConfig(cfg))

	loaded, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, cfg.Server, loaded.Server)
	assert.Equal(t, cfg.Token, loaded.Token)
	assert.Equal(t, cfg.DeviceID, loaded.DeviceID)
	assert.True(t, loaded.IsConfigured())
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.False(t, cfg.IsConfigured())
}

func TestConfigDefaults(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, 30*time.Second, cfg.Interval())
	assert.Equal(t, 5, cfg.Ceiling())

	cfg.IntervalSeconds = 120
	cfg.AttemptCeiling = 3
	assert.Equal(t, 2*time.Minute, cfg.Interval())
	assert.Equal(t, 3, cfg.Ceiling())
}

func TestGenerateDeviceID(t *testing.T) {
	a := GenerateDeviceID()
	b := GenerateDeviceID()
	assert.Len(t, a, 26)
	assert.NotEqual(t, a, b)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutConfigFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000/api", cfg.API.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, int64(1<<20), cfg.API.MaxResponseBytes)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Log.JSON)
	assert.Equal(t, 5*time.Second, cfg.Poll.StatusInterval)
	assert.Equal(t, 30*time.Second, cfg.Poll.HistoryInterval)
	assert.Equal(t, 2*time.Second, cfg.Poll.StopSettle)
}

func TestLoadReadsConfigFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := filepath.Join(home, ".tgpanel")
	require.NoError(t, os.MkdirAll(dir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(`
[api]
base_url = "https://panel.example.com/api"
timeout = "10s"

[poll]
status_interval = "1s"

[log]
level = "debug"
json = true
`), 0o600))

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "https://panel.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.Equal(t, time.Second, cfg.Poll.StatusInterval)
	assert.Equal(t, 30*time.Second, cfg.Poll.HistoryInterval)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.JSON)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("TGP_API_BASE_URL", "http://127.0.0.1:9000/api")
	t.Setenv("TGP_POLL_STOP_SETTLE", "500ms")

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:9000/api", cfg.API.BaseURL)
	assert.Equal(t, 500*time.Millisecond, cfg.Poll.StopSettle)
}

func TestLoadRejectsMalformedConfigFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := filepath.Join(home, ".tgpanel")
	require.NoError(t, os.MkdirAll(dir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("api = ["), 0o600))

	_, err := Load(viper.New())
	require.Error(t, err)
	assert.ErrorContains(t, err, "read config file")
}

func TestValidate(t *testing.T) {
	valid := Config{
		API:  API{BaseURL: "http://localhost:8000/api", Timeout: time.Second, MaxResponseBytes: 1},
		Poll: Poll{StatusInterval: time.Second, HistoryInterval: time.Second, StopSettle: time.Second},
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "scheme", mutate: func(c *Config) { c.API.BaseURL = "ftp://host" }, want: KeyBaseURL},
		{name: "host", mutate: func(c *Config) { c.API.BaseURL = "http://" }, want: KeyBaseURL},
		{name: "timeout", mutate: func(c *Config) { c.API.Timeout = 0 }, want: KeyTimeout},
		{name: "settle", mutate: func(c *Config) { c.Poll.StopSettle = -time.Second }, want: KeyStopSettle},
		{name: "body cap", mutate: func(c *Config) { c.API.MaxResponseBytes = 0 }, want: KeyMaxResponseBytes},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

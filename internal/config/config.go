// Package config resolves tgp settings from ~/.tgpanel/config.toml and
// TGP_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	KeyBaseURL          = "api.base_url"
	KeyTimeout          = "api.timeout"
	KeyMaxResponseBytes = "api.max_response_bytes"
	KeyLogLevel         = "log.level"
	KeyLogJSON          = "log.json"
	KeyStatusInterval   = "poll.status_interval"
	KeyHistoryInterval  = "poll.history_interval"
	KeyStopSettle       = "poll.stop_settle"

	envPrefix  = "TGP"
	configDir  = ".tgpanel"
	configName = "config"
	configType = "toml"
)

type API struct {
	BaseURL          string
	Timeout          time.Duration
	MaxResponseBytes int64
}

type Log struct {
	Level string
	JSON  bool
}

type Poll struct {
	StatusInterval  time.Duration
	HistoryInterval time.Duration
	StopSettle      time.Duration
}

type Config struct {
	API  API
	Log  Log
	Poll Poll
}

// Load registers defaults and env bindings on v, reads the config file when
// one exists and returns the validated result. v stays usable by adapters
// that read their own keys from it.
func Load(v *viper.Viper) (Config, error) {
	if v == nil {
		v = viper.New()
	}

	v.SetDefault(KeyBaseURL, "http://localhost:8000/api")
	v.SetDefault(KeyTimeout, 30*time.Second)
	v.SetDefault(KeyMaxResponseBytes, int64(1<<20))
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogJSON, false)
	v.SetDefault(KeyStatusInterval, 5*time.Second)
	v.SetDefault(KeyHistoryInterval, 30*time.Second)
	v.SetDefault(KeyStopSettle, 2*time.Second)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName(configName)
	v.SetConfigType(configType)
	if homeDir, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(homeDir, configDir))
	}

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := Config{
		API: API{
			BaseURL:          strings.TrimSpace(v.GetString(KeyBaseURL)),
			Timeout:          v.GetDuration(KeyTimeout),
			MaxResponseBytes: v.GetInt64(KeyMaxResponseBytes),
		},
		Log: Log{
			Level: v.GetString(KeyLogLevel),
			JSON:  v.GetBool(KeyLogJSON),
		},
		Poll: Poll{
			StatusInterval:  v.GetDuration(KeyStatusInterval),
			HistoryInterval: v.GetDuration(KeyHistoryInterval),
			StopSettle:      v.GetDuration(KeyStopSettle),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	parsed, err := url.Parse(c.API.BaseURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("%s: must be an http(s) URL with a host, got %q", KeyBaseURL, c.API.BaseURL)
	}
	if c.API.MaxResponseBytes <= 0 {
		return fmt.Errorf("%s: must be positive", KeyMaxResponseBytes)
	}

	durations := []struct {
		key   string
		value time.Duration
	}{
		{KeyTimeout, c.API.Timeout},
		{KeyStatusInterval, c.Poll.StatusInterval},
		{KeyHistoryInterval, c.Poll.HistoryInterval},
		{KeyStopSettle, c.Poll.StopSettle},
	}
	var errs []error
	for _, d := range durations {
		if d.value <= 0 {
			errs = append(errs, fmt.Errorf("%s: must be a positive duration", d.key))
		}
	}
	return errors.Join(errs...)
}

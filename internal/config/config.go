// Package config loads the runtime configuration for the daily pipeline.
// Everything has a working default; a YAML file overrides selectively, and
// secrets (webhook URL, feed token) come from the environment so they stay
// out of checked-in config.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"poolwatch/internal/hotspot"
	"poolwatch/internal/pool"
)

const (
	// EnvWebhookURL names the env var carrying the chat-robot webhook
	// address, usually loaded from .env.
	EnvWebhookURL = "POOLWATCH_WEBHOOK_URL"
	// EnvAnomalyToken names the env var carrying the anomaly feed token.
	EnvAnomalyToken = "POOLWATCH_ANOMALY_TOKEN"
)

type Config struct {
	// DataDir is the artifact root; csv/ and txt/ live under it.
	DataDir string `yaml:"data_dir"`

	Workers int `yaml:"workers"`

	Retry struct {
		MaxAttempts int           `yaml:"max_attempts"`
		BaseDelay   time.Duration `yaml:"base_delay"`
	} `yaml:"retry"`

	// Battery is the interval ladder scored into the core pool.
	Battery []pool.Query `yaml:"battery"`

	// LargeCapFloor gates the large-cap sub-pool, in yuan.
	LargeCapFloor float64 `yaml:"large_cap_floor"`

	Hotspot struct {
		Lookback     int    `yaml:"lookback"`
		GenericLabel string `yaml:"generic_label"`
	} `yaml:"hotspot"`

	Providers struct {
		MarketURL      string  `yaml:"market_url"`
		AnomalyURL     string  `yaml:"anomaly_url"`
		AnomalyToken   string  `yaml:"-"`
		RequestsPerSec float64 `yaml:"requests_per_sec"`
	} `yaml:"providers"`

	Notify struct {
		WebhookURL string `yaml:"-"`
		Keyword    string `yaml:"keyword"`
	} `yaml:"notify"`

	// Schedule is a cron expression for the daemon mode.
	Schedule string `yaml:"schedule"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	var c Config
	c.DataDir = "data"
	c.Workers = 8
	c.Retry.MaxAttempts = 3
	c.Retry.BaseDelay = 2 * time.Second
	c.Battery = pool.DefaultBattery()
	c.LargeCapFloor = 100e8
	c.Hotspot.Lookback = 10
	c.Hotspot.GenericLabel = hotspot.GenericBucket
	c.Providers.MarketURL = "https://push2.eastmoney.com"
	c.Providers.AnomalyURL = "https://app.jiuyangongshe.com"
	c.Providers.RequestsPerSec = 0.5
	c.Notify.Keyword = "watchpool"
	c.Schedule = "0 30 15 * * MON-FRI"
	return c
}

// Load reads path over the defaults. An empty path yields Default() plus
// environment secrets.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.Notify.WebhookURL = os.Getenv(EnvWebhookURL)
	cfg.Providers.AnomalyToken = os.Getenv(EnvAnomalyToken)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("config: data_dir must be set")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("config: workers must be positive, got %d", c.Workers)
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("config: retry.max_attempts must be positive, got %d", c.Retry.MaxAttempts)
	}
	if len(c.Battery) == 0 {
		return fmt.Errorf("config: battery must list at least one interval query")
	}
	for i, q := range c.Battery {
		if q.Window <= 0 || q.Limit <= 0 {
			return fmt.Errorf("config: battery[%d] has non-positive window or limit", i)
		}
	}
	if c.Hotspot.Lookback <= 0 {
		return fmt.Errorf("config: hotspot.lookback must be positive, got %d", c.Hotspot.Lookback)
	}
	return nil
}

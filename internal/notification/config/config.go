package config

import (
	"time"

	"golang-orb-trader/pkg/config"
)

// Notification holds the trade event consumer and summary configuration.
type Notification struct {
	StreamTimeout   time.Duration `mapstructure:"stream_timeout"`
	RetryInterval   time.Duration `mapstructure:"retry_interval"`
	MaxIdleDuration time.Duration `mapstructure:"max_idle_duration"`
	MaxRetry        int           `mapstructure:"max_retry"`
	SummaryCron     string        `mapstructure:"summary_cron"`
	SummaryTimeout  time.Duration `mapstructure:"summary_timeout"`
	TimeZone        string        `mapstructure:"time_zone"`
}

// Config holds the full configuration for the notification service.
type Config struct {
	App          config.App      `mapstructure:"app"`
	Logger       config.Logger   `mapstructure:"logger"`
	Database     config.Database `mapstructure:"database"`
	Redis        config.Redis    `mapstructure:"redis"`
	Telegram     config.Telegram `mapstructure:"telegram"`
	Notification Notification    `mapstructure:"notification"`
}

// Load loads the notification configuration from the given path.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := config.Load(path, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	n := &c.Notification
	if n.StreamTimeout == 0 {
		n.StreamTimeout = 30 * time.Second
	}
	if n.RetryInterval == 0 {
		n.RetryInterval = time.Minute
	}
	if n.MaxIdleDuration == 0 {
		n.MaxIdleDuration = 2 * time.Minute
	}
	if n.MaxRetry == 0 {
		n.MaxRetry = 3
	}
	if n.SummaryCron == "" {
		n.SummaryCron = "10 16 * * 1-5"
	}
	if n.SummaryTimeout == 0 {
		n.SummaryTimeout = time.Minute
	}
	if n.TimeZone == "" {
		n.TimeZone = "America/New_York"
	}
}

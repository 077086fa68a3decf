package retention

import (
	"time"

	"github.com/smallbiznis/voiceassist/internal/config"
)

// Config controls the usage retention sweep.
type Config struct {
	Retention    time.Duration
	PollInterval time.Duration
	RunTimeout   time.Duration
	LockTTL      time.Duration
}

func DefaultConfig() Config {
	return Config{
		Retention:    30 * 24 * time.Hour,
		PollInterval: 6 * time.Hour,
		RunTimeout:   time.Minute,
		LockTTL:      5 * time.Minute,
	}
}

// ConfigFrom maps USAGE_RETENTION_DAYS and friends. Zero retention days
// disables purging.
func ConfigFrom(cfg config.Config) Config {
	c := DefaultConfig()
	c.Retention = time.Duration(cfg.Usage.RetentionDays) * 24 * time.Hour
	if cfg.Usage.SweepIntervalMinutes > 0 {
		c.PollInterval = time.Duration(cfg.Usage.SweepIntervalMinutes) * time.Minute
	}
	if cfg.RateLimit.RetentionLockTTLSecond > 0 {
		c.LockTTL = time.Duration(cfg.RateLimit.RetentionLockTTLSecond) * time.Second
	}
	return c
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.PollInterval <= 0 {
		c.PollInterval = defaults.PollInterval
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = defaults.RunTimeout
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	return c
}

func (c Config) Enabled() bool {
	return c.Retention > 0
}

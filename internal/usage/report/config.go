package report

import (
	"strings"
	"time"

	"github.com/smallbiznis/voiceassist/internal/config"
)

type Config struct {
	Exporter    string
	Endpoint    string
	AuthToken   string
	Interval    time.Duration
	RunTimeout  time.Duration
	Job         string
	Environment string
}

func ConfigFrom(cfg config.Config) Config {
	c := Config{
		Exporter:    strings.ToLower(strings.TrimSpace(cfg.Report.Exporter)),
		Endpoint:    strings.TrimSpace(cfg.Report.Endpoint),
		AuthToken:   strings.TrimSpace(cfg.Report.AuthToken),
		Interval:    time.Duration(cfg.Report.IntervalMinutes) * time.Minute,
		Job:         cfg.AppName,
		Environment: strings.TrimSpace(cfg.Environment),
	}
	return c.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 30 * time.Minute
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = 30 * time.Second
	}
	if c.Job == "" {
		c.Job = "voiceassist"
	}
	return c
}

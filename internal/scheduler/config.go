package scheduler

import (
	"time"

	"github.com/smallbiznis/drivebridge/internal/config"
)

// Config controls scheduler intervals and per-tick work.
type Config struct {
	RunInterval time.Duration
	JobTimeout  time.Duration
	// BatchesPerTick caps how many scan batches one tick may run.
	BatchesPerTick int
	EnabledJobs    []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval:    time.Minute,
		JobTimeout:     30 * time.Second,
		BatchesPerTick: 1,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{RunInterval: cfg.Scan.RunInterval}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.BatchesPerTick <= 0 {
		c.BatchesPerTick = defaults.BatchesPerTick
	}
	return c
}

package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RateLimit struct {
	MaxRequests   int `yaml:"max_requests"`
	WindowSeconds int `yaml:"window_seconds"`
}

func (r RateLimit) Window() time.Duration {
	return time.Duration(r.WindowSeconds) * time.Second
}

type Retry struct {
	MaxAttempts int     `yaml:"max_attempts"`
	BaseDelayMS int     `yaml:"base_delay_ms"`
	Multiplier  float64 `yaml:"multiplier"`
}

func (r Retry) BaseDelay() time.Duration {
	return time.Duration(r.BaseDelayMS) * time.Millisecond
}

// Source declares one external job source. Loaded at process start;
// immutable during a run. Changes require restart.
type Source struct {
	ID      string `yaml:"id"`
	Type    string `yaml:"type"` // greenhouse | lever | smartrecruiters | rss
	Name    string `yaml:"name"` // company display name
	Slug    string `yaml:"slug"`
	FeedURL string `yaml:"feed_url"`
	Enabled bool   `yaml:"enabled"`

	RateLimit RateLimit `yaml:"rate_limit"`
	Retry     Retry     `yaml:"retry"`
}

type Config struct {
	App struct {
		Port    int    `yaml:"port"`
		DataDir string `yaml:"data_dir"`
	} `yaml:"app"`

	Scheduler struct {
		IntervalMinutes   int `yaml:"interval_minutes"`
		RunTimeoutSeconds int `yaml:"run_timeout_seconds"`
		MaxConcurrency    int `yaml:"max_concurrency"`
	} `yaml:"scheduler"`

	Dedup struct {
		// Tunable false-positive/false-negative tradeoff; never
		// hardcoded in match logic.
		SimilarityThreshold float64 `yaml:"similarity_threshold"`
		CandidateWindowDays int     `yaml:"candidate_window_days"`
	} `yaml:"dedup"`

	Sources []Source `yaml:"sources"`
}

func (c Config) Interval() time.Duration {
	return time.Duration(c.Scheduler.IntervalMinutes) * time.Minute
}

func (c Config) RunTimeout() time.Duration {
	return time.Duration(c.Scheduler.RunTimeoutSeconds) * time.Second
}

func (c Config) CandidateWindow() time.Duration {
	return time.Duration(c.Dedup.CandidateWindowDays) * 24 * time.Hour
}

func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	err = yaml.Unmarshal(b, &cfg)
	return cfg, err
}

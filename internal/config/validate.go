package config

import (
	"fmt"
	"strings"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

var sourceTypes = map[string]bool{
	"greenhouse":      true,
	"lever":           true,
	"smartrecruiters": true,
	"rss":             true,
}

// NormalizeAndValidate fills defaults and returns a normalized copy
// plus everything wrong or questionable about it.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	out := cfg
	var res Validation

	if out.App.Port <= 0 {
		out.App.Port = 38520
	}
	if out.Scheduler.IntervalMinutes <= 0 {
		out.Scheduler.IntervalMinutes = 360 // every 6 hours
	}
	if out.Scheduler.RunTimeoutSeconds <= 0 {
		out.Scheduler.RunTimeoutSeconds = 600
	}
	if out.Scheduler.MaxConcurrency <= 0 {
		out.Scheduler.MaxConcurrency = 4
	}
	if out.Scheduler.IntervalMinutes < 5 {
		res.addWarn("scheduler.interval_minutes is very low (%d); sources may rate-limit you.", out.Scheduler.IntervalMinutes)
	}

	if out.Dedup.SimilarityThreshold == 0 {
		out.Dedup.SimilarityThreshold = 0.85
	}
	if out.Dedup.SimilarityThreshold <= 0 || out.Dedup.SimilarityThreshold > 1 {
		res.addErr("dedup.similarity_threshold must be in (0, 1], got %v", out.Dedup.SimilarityThreshold)
	} else if out.Dedup.SimilarityThreshold < 0.5 {
		res.addWarn("dedup.similarity_threshold %v is aggressive; expect false-positive merges.", out.Dedup.SimilarityThreshold)
	}
	if out.Dedup.CandidateWindowDays <= 0 {
		out.Dedup.CandidateWindowDays = 30
	}

	seen := map[string]bool{}
	enabled := 0
	for i := range out.Sources {
		s := &out.Sources[i]
		s.ID = strings.TrimSpace(s.ID)
		s.Type = strings.ToLower(strings.TrimSpace(s.Type))
		s.Name = strings.TrimSpace(s.Name)
		s.Slug = strings.TrimSpace(s.Slug)
		s.FeedURL = strings.TrimSpace(s.FeedURL)

		if s.ID == "" {
			res.addErr("sources[%d]: id is required", i)
			continue
		}
		if seen[strings.ToLower(s.ID)] {
			res.addErr("duplicate source id %q", s.ID)
		}
		seen[strings.ToLower(s.ID)] = true

		if !sourceTypes[s.Type] {
			res.addErr("source %q: unknown type %q", s.ID, s.Type)
		}
		if s.Type == "rss" {
			if s.FeedURL == "" {
				res.addErr("source %q: feed_url is required for rss sources", s.ID)
			}
		} else if s.Slug == "" {
			res.addErr("source %q: slug is required for %s sources", s.ID, s.Type)
		}
		if s.Name == "" {
			res.addWarn("source %q has no company name; titles alone dedup poorly.", s.ID)
		}

		if s.RateLimit.MaxRequests <= 0 {
			s.RateLimit.MaxRequests = 10
		}
		if s.RateLimit.WindowSeconds <= 0 {
			s.RateLimit.WindowSeconds = 60
		}
		if s.Retry.MaxAttempts <= 0 {
			s.Retry.MaxAttempts = 3
		}
		if s.Retry.BaseDelayMS <= 0 {
			s.Retry.BaseDelayMS = 2000
		}
		if s.Retry.Multiplier < 1 {
			s.Retry.Multiplier = 2.0
		}

		if s.Enabled {
			enabled++
		}
	}

	if enabled == 0 {
		res.addWarn("no sources enabled; scheduled runs will do nothing.")
	}

	return out, res
}

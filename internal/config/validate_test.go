package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeFillsDefaults(t *testing.T) {
	cfg, res := NormalizeAndValidate(Config{Sources: []Source{
		{ID: "lever-acme", Type: "lever", Name: "Acme", Slug: "acme", Enabled: true},
	}})

	assert.True(t, res.OK())
	assert.Equal(t, 38520, cfg.App.Port)
	assert.Equal(t, 360, cfg.Scheduler.IntervalMinutes)
	assert.Equal(t, 600, cfg.Scheduler.RunTimeoutSeconds)
	assert.Equal(t, 4, cfg.Scheduler.MaxConcurrency)
	assert.Equal(t, 0.85, cfg.Dedup.SimilarityThreshold)
	assert.Equal(t, 30, cfg.Dedup.CandidateWindowDays)

	s := cfg.Sources[0]
	assert.Equal(t, 10, s.RateLimit.MaxRequests)
	assert.Equal(t, 60, s.RateLimit.WindowSeconds)
	assert.Equal(t, 3, s.Retry.MaxAttempts)
	assert.Equal(t, 2000, s.Retry.BaseDelayMS)
	assert.Equal(t, 2.0, s.Retry.Multiplier)
}

func TestValidateSourceErrors(t *testing.T) {
	cases := []struct {
		name    string
		sources []Source
		wantErr string
	}{
		{
			"missing id",
			[]Source{{Type: "lever", Slug: "acme"}},
			"id is required",
		},
		{
			"duplicate ids",
			[]Source{
				{ID: "acme", Type: "lever", Slug: "acme"},
				{ID: "Acme", Type: "lever", Slug: "acme"},
			},
			"duplicate source id",
		},
		{
			"unknown type",
			[]Source{{ID: "x", Type: "workday", Slug: "acme"}},
			"unknown type",
		},
		{
			"rss without feed url",
			[]Source{{ID: "x", Type: "rss"}},
			"feed_url is required",
		},
		{
			"api source without slug",
			[]Source{{ID: "x", Type: "greenhouse"}},
			"slug is required",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, res := NormalizeAndValidate(Config{Sources: tc.sources})
			require.False(t, res.OK())
			assert.True(t, containsSubstring(res.Errors, tc.wantErr), "errors: %v", res.Errors)
		})
	}
}

func TestValidateThresholdBounds(t *testing.T) {
	cfg := Config{}
	cfg.Dedup.SimilarityThreshold = 1.5
	_, res := NormalizeAndValidate(cfg)
	require.False(t, res.OK())
	assert.True(t, containsSubstring(res.Errors, "similarity_threshold"))

	cfg.Dedup.SimilarityThreshold = 0.3
	_, res = NormalizeAndValidate(cfg)
	assert.True(t, res.OK())
	assert.True(t, containsSubstring(res.Warnings, "aggressive"))
}

func TestValidateWarnsWhenNothingEnabled(t *testing.T) {
	_, res := NormalizeAndValidate(Config{Sources: []Source{
		{ID: "lever-acme", Type: "lever", Name: "Acme", Slug: "acme"},
	}})

	assert.True(t, res.OK())
	assert.True(t, containsSubstring(res.Warnings, "no sources enabled"))
}

func containsSubstring(msgs []string, sub string) bool {
	for _, m := range msgs {
		if strings.Contains(m, sub) {
			return true
		}
	}
	return false
}

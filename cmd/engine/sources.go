package main

import (
	"log"

	"jobfeed-engine/internal/config"
	"jobfeed-engine/internal/orchestrator"
	"jobfeed-engine/internal/ratelimit"
	"jobfeed-engine/internal/source"
	"jobfeed-engine/internal/source/greenhouse"
	"jobfeed-engine/internal/source/lever"
	"jobfeed-engine/internal/source/rssfeed"
	"jobfeed-engine/internal/source/smartrecruiters"
)

// buildSources wires one adapter per enabled source. Every adapter
// gets its own limiter and retry policy; limiters are never shared
// across sources.
func buildSources(cfg config.Config) []orchestrator.Source {
	var out []orchestrator.Source

	for _, sc := range cfg.Sources {
		if !sc.Enabled {
			continue
		}

		limiter := ratelimit.New(sc.RateLimit.MaxRequests, sc.RateLimit.Window())
		client := source.NewClient(limiter, ratelimit.Policy{
			MaxAttempts: sc.Retry.MaxAttempts,
			BaseDelay:   sc.Retry.BaseDelay(),
			Multiplier:  sc.Retry.Multiplier,
		})

		var a source.Adapter
		switch sc.Type {
		case "greenhouse":
			a = greenhouse.New(sc, client)
		case "lever":
			a = lever.New(sc, client)
		case "smartrecruiters":
			a = smartrecruiters.New(sc, client)
		case "rss":
			a = rssfeed.New(sc, client)
		default:
			log.Printf("[sources] skipping %q: unknown type %q", sc.ID, sc.Type)
			continue
		}

		out = append(out, orchestrator.Source{Cfg: sc, Adapter: a})
	}

	return out
}

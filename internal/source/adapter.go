package source

import (
	"context"
	"sync"

	"jobfeed-engine/internal/domain"
)

// Health is the adapter's view of its upstream after the last fetch.
type Health string

const (
	HealthOK       Health = "ok"
	HealthDegraded Health = "degraded"
	HealthDown     Health = "down"
)

// EmitFunc receives postings in fetch order. The sequence an adapter
// produces is finite and not restartable.
type EmitFunc func(domain.RawPosting)

// Adapter wraps one external job source behind a uniform fetch
// interface. A failing adapter never aborts other adapters' runs; the
// orchestrator contains each one's outcome.
type Adapter interface {
	SourceID() string
	Fetch(ctx context.Context, emit EmitFunc) error
	Health() Health
}

// Status is the shared health tracker adapters embed. Observe
// classifies the fetch outcome the way the orchestrator reports it:
// clean fetch is ok, quarantined items or exhausted retries degrade,
// a permanent failure marks the source down for the run.
type Status struct {
	mu sync.Mutex
	h  Health
}

func (s *Status) Health() Health {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.h == "" {
		return HealthOK
	}
	return s.h
}

func (s *Status) Observe(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case err == nil:
		s.h = HealthOK
	case IsPermanent(err):
		s.h = HealthDown
	default:
		// partial results and exhausted retries both degrade
		s.h = HealthDegraded
	}
}

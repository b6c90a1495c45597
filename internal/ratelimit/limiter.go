package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// SourceLimiter is a token bucket owned by exactly one source adapter.
// Capacity is max_requests and refill is max_requests/window, so a
// burst can drain the bucket but sustained throughput stays inside the
// source's published limit. Wait suspends only the calling worker.
type SourceLimiter struct {
	lim *rate.Limiter
}

func New(maxRequests int, window time.Duration) *SourceLimiter {
	if maxRequests <= 0 {
		maxRequests = 1
	}
	if window <= 0 {
		window = time.Second
	}
	r := rate.Limit(float64(maxRequests) / window.Seconds())
	return &SourceLimiter{lim: rate.NewLimiter(r, maxRequests)}
}

// Wait blocks until a token is available or ctx is cancelled. Requests
// are never dropped silently.
func (l *SourceLimiter) Wait(ctx context.Context) error {
	return l.lim.Wait(ctx)
}

package source

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"jobfeed-engine/internal/ratelimit"
)

const userAgent = "jobfeed-engine/1.0 (+local)"

// Client is the outbound HTTP path every adapter shares: each request
// takes a token from the source's own limiter, and transient failures
// are retried under the source's backoff policy.
type Client struct {
	HC      *http.Client
	Limiter *ratelimit.SourceLimiter
	Retry   ratelimit.Policy
	Sleep   ratelimit.SleepFunc // nil means real timers
}

func NewClient(limiter *ratelimit.SourceLimiter, retry ratelimit.Policy) *Client {
	return &Client{
		HC:      &http.Client{Timeout: 20 * time.Second},
		Limiter: limiter,
		Retry:   retry,
	}
}

// Get fetches url with rate limiting and retry, returning the body.
func (c *Client) Get(ctx context.Context, url, accept string) ([]byte, error) {
	var body []byte

	err := ratelimit.Retry(ctx, c.Retry, c.Sleep, IsTransient, func(ctx context.Context) error {
		if c.Limiter != nil {
			if err := c.Limiter.Wait(ctx); err != nil {
				return err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return Permanentf("build request: %v", err)
		}
		req.Header.Set("User-Agent", userAgent)
		if accept != "" {
			req.Header.Set("Accept", accept)
		}

		res, err := c.HC.Do(req)
		if err != nil {
			return Transientf("get %s: %v", url, err)
		}
		defer res.Body.Close()

		if res.StatusCode >= 400 {
			_, _ = io.Copy(io.Discard, res.Body)
			return StatusError(res.StatusCode)
		}

		b, err := io.ReadAll(res.Body)
		if err != nil {
			return Transientf("read %s: %v", url, err)
		}
		body = b
		return nil
	})

	return body, err
}

// GetJSON decodes a JSON endpoint into out. A body that no longer
// decodes means the upstream schema changed, which is permanent.
func (c *Client) GetJSON(ctx context.Context, url string, out any) error {
	b, err := c.Get(ctx, url, "application/json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, out); err != nil {
		return Permanentf("decode %s: %v", url, err)
	}
	return nil
}

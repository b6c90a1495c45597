// Package smartrecruiters polls the public SmartRecruiters postings
// API, paging by offset. The response schema is parsed defensively:
// only the fields the pipeline needs.
package smartrecruiters

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"jobfeed-engine/internal/config"
	"jobfeed-engine/internal/domain"
	"jobfeed-engine/internal/source"
)

const defaultBaseURL = "https://api.smartrecruiters.com"

type Adapter struct {
	source.Status

	id      string
	company string
	slug    string
	baseURL string
	client  *source.Client
}

func New(cfg config.Source, client *source.Client) *Adapter {
	return &Adapter{
		id:      cfg.ID,
		company: cfg.Name,
		slug:    cfg.Slug,
		baseURL: defaultBaseURL,
		client:  client,
	}
}

func (a *Adapter) SourceID() string { return a.id }

type postingsResponse struct {
	Content    []posting `json:"content"`
	TotalFound int       `json:"totalFound"`
	Offset     int       `json:"offset"`
	Limit      int       `json:"limit"`
}

type posting struct {
	ID           string    `json:"id"`
	UUID         string    `json:"uuid"`
	Name         string    `json:"name"`
	ReleasedDate time.Time `json:"releasedDate"`
	Ref          string    `json:"ref"`
	Location     struct {
		City    string `json:"city"`
		Region  string `json:"region"`
		Country string `json:"country"`
		Remote  bool   `json:"remote"`
	} `json:"location"`
}

func (a *Adapter) Fetch(ctx context.Context, emit source.EmitFunc) (err error) {
	defer func() { a.Observe(err) }()

	base := fmt.Sprintf("%s/v1/companies/%s/postings", a.baseURL, url.PathEscape(a.slug))

	limit := 100
	offset := 0
	quarantined := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var pr postingsResponse
		u := fmt.Sprintf("%s?limit=%d&offset=%d", base, limit, offset)
		if err := a.client.GetJSON(ctx, u, &pr); err != nil {
			if offset > 0 {
				// keep what earlier pages already emitted
				return &source.PartialError{Quarantined: quarantined, Last: err}
			}
			return fmt.Errorf("postings %s: %w", a.slug, err)
		}

		if len(pr.Content) == 0 {
			break
		}

		for _, p := range pr.Content {
			title := strings.TrimSpace(p.Name)
			id := firstNonEmpty(p.ID, p.UUID, p.Ref)
			if title == "" || id == "" {
				quarantined++
				continue
			}

			fields := map[string]any{
				"title":    title,
				"company":  a.company,
				"location": joinNonEmpty(p.Location.City, p.Location.Region, p.Location.Country),
				"remote":   p.Location.Remote,
			}
			if !p.ReleasedDate.IsZero() {
				fields["posted_at"] = p.ReleasedDate
			}

			emit(domain.RawPosting{
				SourceID:  a.id,
				SourceURL: fmt.Sprintf("https://jobs.smartrecruiters.com/%s/%s", a.slug, id),
				FetchedAt: time.Now().UTC(),
				Fields:    fields,
			})
		}

		offset += limit
		if pr.TotalFound > 0 && offset >= pr.TotalFound {
			break
		}
		if offset > 5000 {
			break
		}
	}

	if quarantined > 0 {
		return &source.PartialError{
			Quarantined: quarantined,
			Last:        fmt.Errorf("posting missing id or title"),
		}
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func joinNonEmpty(vals ...string) string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return strings.Join(out, ", ")
}

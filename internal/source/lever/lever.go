// Package lever polls the public Lever postings API. Postings arrive
// as JSON with requirements as structured list blocks; those are
// passed through raw for the normalizer to flatten.
package lever

import (
	"context"
	"fmt"
	"strings"
	"time"

	"jobfeed-engine/internal/config"
	"jobfeed-engine/internal/domain"
	"jobfeed-engine/internal/source"
)

const defaultBaseURL = "https://api.lever.co"

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

type posting struct {
	ID         string `json:"id"`
	Text       string `json:"text"` // title
	HostedURL  string `json:"hostedUrl"`
	CreatedAt  int64  `json:"createdAt"` // ms epoch
	Categories struct {
		Location string `json:"location"`
		Team     string `json:"team"`
	} `json:"categories"`
	WorkplaceType string `json:"workplaceType"` // remote | hybrid | onsite
	Lists         []struct {
		Text    string `json:"text"`
		Content string `json:"content"` // html list body
	} `json:"lists"`
	DescriptionPlain string `json:"descriptionPlain"`
}

func (a *Adapter) Fetch(ctx context.Context, emit source.EmitFunc) (err error) {
	defer func() { a.Observe(err) }()

	apiURL := fmt.Sprintf("%s/v0/postings/%s?mode=json", a.baseURL, a.slug)

	var postings []posting
	if err := a.client.GetJSON(ctx, apiURL, &postings); err != nil {
		return fmt.Errorf("postings %s: %w", a.slug, err)
	}

	quarantined := 0
	for _, p := range postings {
		if p.ID == "" || p.HostedURL == "" || strings.TrimSpace(p.Text) == "" {
			quarantined++
			continue
		}

		fields := map[string]any{
			"title":       p.Text,
			"company":     a.company,
			"location":    p.Categories.Location,
			"description": p.DescriptionPlain,
			"remote":      p.WorkplaceType,
		}
		if p.CreatedAt > 0 {
			fields["posted_at"] = p.CreatedAt
		}
		if len(p.Lists) > 0 {
			blocks := make([]any, 0, len(p.Lists))
			for _, l := range p.Lists {
				blocks = append(blocks, map[string]any{"text": l.Text, "content": l.Content})
			}
			fields["requirements"] = blocks
		}

		emit(domain.RawPosting{
			SourceID:  a.id,
			SourceURL: p.HostedURL,
			FetchedAt: time.Now().UTC(),
			Fields:    fields,
		})
	}

	if quarantined > 0 {
		return &source.PartialError{
			Quarantined: quarantined,
			Last:        fmt.Errorf("posting missing id, url, or title"),
		}
	}
	return nil
}

// Package rssfeed polls an RSS 2.0 career feed. Item descriptions are
// free-text blobs; the normalizer owns splitting them into
// requirements.
package rssfeed

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"jobfeed-engine/internal/config"
	"jobfeed-engine/internal/domain"
	"jobfeed-engine/internal/source"
)

type Adapter struct {
	source.Status

	id      string
	company string
	feedURL string
	client  *source.Client
}

func New(cfg config.Source, client *source.Client) *Adapter {
	return &Adapter{
		id:      cfg.ID,
		company: cfg.Name,
		feedURL: cfg.FeedURL,
		client:  client,
	}
}

func (a *Adapter) SourceID() string { return a.id }

type feed struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Title string `xml:"title"`
		Items []item `xml:"item"`
	} `xml:"channel"`
}

type item struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	GUID        string `xml:"guid"`
	Category    string `xml:"category"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
}

func (a *Adapter) Fetch(ctx context.Context, emit source.EmitFunc) (err error) {
	defer func() { a.Observe(err) }()

	body, err := a.client.Get(ctx, a.feedURL, "application/rss+xml, application/xml")
	if err != nil {
		return fmt.Errorf("feed %s: %w", a.feedURL, err)
	}

	var f feed
	if err := xml.Unmarshal(body, &f); err != nil {
		return source.Permanentf("decode feed %s: %v", a.feedURL, err)
	}

	quarantined := 0
	for _, it := range f.Channel.Items {
		if strings.TrimSpace(it.Title) == "" || strings.TrimSpace(it.Link) == "" {
			quarantined++
			continue
		}

		fields := map[string]any{
			"title":       it.Title,
			"company":     a.company,
			"location":    it.Category,
			"description": it.Description,
			// feeds have no structured requirements; pass the blob
			"requirements": it.Description,
		}
		if strings.TrimSpace(it.PubDate) != "" {
			fields["posted_at"] = it.PubDate
		}

		emit(domain.RawPosting{
			SourceID:  a.id,
			SourceURL: strings.TrimSpace(it.Link),
			FetchedAt: time.Now().UTC(),
			Fields:    fields,
		})
	}

	if quarantined > 0 {
		return &source.PartialError{
			Quarantined: quarantined,
			Last:        fmt.Errorf("feed item missing title or link"),
		}
	}
	return nil
}

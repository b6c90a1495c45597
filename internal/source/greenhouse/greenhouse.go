// Package greenhouse scrapes public Greenhouse job boards. The board
// page is an HTML anchor list; every job link gets a detail-page
// hydration pass for title, location and description.
package greenhouse

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"jobfeed-engine/internal/config"
	"jobfeed-engine/internal/domain"
	"jobfeed-engine/internal/source"
)

const defaultBaseURL = "https://boards.greenhouse.io"

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

type boardLink struct {
	url   string
	title string
}

func (a *Adapter) Fetch(ctx context.Context, emit source.EmitFunc) (err error) {
	defer func() { a.Observe(err) }()

	boardURL := fmt.Sprintf("%s/%s", a.baseURL, a.slug)
	body, err := a.client.Get(ctx, boardURL, "text/html")
	if err != nil {
		return fmt.Errorf("board %s: %w", a.slug, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return source.Permanentf("parse board html: %v", err)
	}

	links := collectJobLinks(doc, a.baseURL)

	quarantined := 0
	var lastBad error
	for _, l := range links {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		fields, herr := a.hydrate(ctx, l)
		if herr != nil {
			quarantined++
			lastBad = herr
			continue
		}

		emit(domain.RawPosting{
			SourceID:  a.id,
			SourceURL: l.url,
			FetchedAt: time.Now().UTC(),
			Fields:    fields,
		})
	}

	if quarantined > 0 {
		return &source.PartialError{Quarantined: quarantined, Last: lastBad}
	}
	return nil
}

// collectJobLinks walks board anchors; boards link /<slug>/jobs/<id>
// either relative or absolute.
func collectJobLinks(doc *goquery.Document, baseURL string) []boardLink {
	seen := map[string]bool{}
	var links []boardLink

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}

		abs := href
		if strings.HasPrefix(href, "/") {
			abs = baseURL + href
		}
		low := strings.ToLower(abs)
		if !strings.HasPrefix(low, strings.ToLower(baseURL)) || !strings.Contains(low, "/jobs/") {
			return
		}
		if extractJobID(abs) == "" || seen[abs] {
			return
		}
		seen[abs] = true

		title := cleanText(sel.Text())
		if looksLikeJunkTitle(title) {
			// detail page has the real title
			title = ""
		}
		links = append(links, boardLink{url: abs, title: title})
	})

	return links
}

// hydrate fetches the job detail page. A page we cannot parse into at
// least a title is a malformed item and gets quarantined by the caller.
func (a *Adapter) hydrate(ctx context.Context, l boardLink) (map[string]any, error) {
	body, err := a.client.Get(ctx, l.url, "text/html")
	if err != nil {
		return nil, fmt.Errorf("job page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse job page: %v", err)
	}

	title := l.title
	if title == "" {
		title = cleanText(doc.Find("h1").First().Text())
	}
	if title == "" {
		return nil, fmt.Errorf("no title on %s", l.url)
	}

	location := cleanText(doc.Find(".location").First().Text())
	if location == "" {
		if v, ok := doc.Find(`meta[property="og:description"]`).Attr("content"); ok {
			location = cleanText(v)
		}
	}

	content := doc.Find("#content").First()
	description := cleanText(content.Text())

	// list items on the posting body are the closest thing Greenhouse
	// has to a structured requirements section
	var reqs []any
	content.Find("li").Each(func(_ int, li *goquery.Selection) {
		if t := cleanText(li.Text()); t != "" {
			reqs = append(reqs, t)
		}
	})

	fields := map[string]any{
		"title":       title,
		"company":     a.company,
		"location":    location,
		"description": description,
	}
	if len(reqs) > 0 {
		fields["requirements"] = reqs
	}
	return fields, nil
}

func extractJobID(u string) string {
	parts := strings.Split(u, "/jobs/")
	if len(parts) < 2 {
		return ""
	}
	id := ""
	for _, r := range parts[1] {
		if r >= '0' && r <= '9' {
			id += string(r)
		} else {
			break
		}
	}
	return id
}

func cleanText(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(s)
}

func looksLikeJunkTitle(t string) bool {
	l := strings.ToLower(t)
	return l == "" || strings.Contains(l, "view") || strings.Contains(l, "apply")
}

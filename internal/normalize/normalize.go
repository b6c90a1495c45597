package normalize

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"jobfeed-engine/internal/domain"
)

// Reject reason codes. An unparseable posting always becomes a Reject
// with one of these, never a silent drop.
const (
	ReasonEmptyPayload    = "empty_payload"
	ReasonMissingTitle    = "missing_title"
	ReasonMissingCompany  = "missing_company"
	ReasonBadRequirements = "bad_requirements"
	ReasonBadPostedAt     = "bad_posted_at"
)

// Reject is the typed rejection a raw posting turns into when it
// cannot be normalized.
type Reject struct {
	Reason string
	Detail string
}

func (r *Reject) Error() string {
	if r.Detail == "" {
		return r.Reason
	}
	return fmt.Sprintf("%s: %s", r.Reason, r.Detail)
}

// Normalize is a pure function from one raw payload to the canonical
// job shape. Sources disagree wildly on field shapes (requirements as
// a list, a free-text blob, or a structured object; remote as a bare
// boolean); all of that coercion lives here so nothing downstream ever
// sees a source-specific type again.
func Normalize(raw domain.RawPosting) (domain.NormalizedJob, error) {
	var job domain.NormalizedJob

	if len(raw.Fields) == 0 {
		return job, &Reject{Reason: ReasonEmptyPayload}
	}

	title := CleanText(stringField(raw.Fields, "title"))
	if title == "" {
		return job, &Reject{Reason: ReasonMissingTitle}
	}
	company := CleanText(stringField(raw.Fields, "company"))
	if company == "" {
		return job, &Reject{Reason: ReasonMissingCompany}
	}

	location := NormalizeLocation(stringField(raw.Fields, "location"))
	description := strings.TrimSpace(stringField(raw.Fields, "description"))

	reqs, err := coerceRequirements(raw.Fields["requirements"])
	if err != nil {
		return job, &Reject{Reason: ReasonBadRequirements, Detail: err.Error()}
	}

	postedAt, err := parsePostedAt(raw.Fields["posted_at"])
	if err != nil {
		return job, &Reject{Reason: ReasonBadPostedAt, Detail: err.Error()}
	}

	job = domain.NormalizedJob{
		Title:        title,
		Company:      company,
		Location:     location,
		RemoteMode:   resolveRemoteMode(raw.Fields["remote"], location, title, description),
		Requirements: reqs,
		Description:  description,
		PostedAt:     postedAt,
		SourceID:     raw.SourceID,
		SourceURL:    raw.SourceURL,
	}
	return job, nil
}

func stringField(fields map[string]any, key string) string {
	if v, ok := fields[key].(string); ok {
		return v
	}
	return ""
}

func resolveRemoteMode(v any, location, title, desc string) domain.RemoteMode {
	switch t := v.(type) {
	case bool:
		// boolean remote flag: true is definitive, false only means
		// "not flagged", so fall back to the text heuristic
		if t {
			return domain.RemoteRemote
		}
	case string:
		if m, ok := ParseRemoteMode(t); ok && m != domain.RemoteUnknown {
			return m
		}
	}
	return InferRemoteMode(location, title, desc)
}

var tagExpr = regexp.MustCompile(`<[^>]+>`)

// coerceRequirements flattens every requirements shape seen across
// sources into one ordered list of strings:
//   - a list of strings (or structured list blocks with text/content)
//   - a free-text or HTML blob
//   - a structured object keyed by section name
// Anything else is a malformed payload and rejects the posting.
func coerceRequirements(v any) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case []string:
		return cleanLines(t), nil
	case []any:
		var out []string
		for _, item := range t {
			switch it := item.(type) {
			case string:
				if s := CleanText(it); s != "" {
					out = append(out, s)
				}
			case map[string]any:
				// structured list block: the body carries the items,
				// the header alone is worth keeping if that's all there is
				if content, ok := it["content"].(string); ok && strings.TrimSpace(content) != "" {
					out = append(out, splitBlob(content)...)
				} else if text, ok := it["text"].(string); ok && CleanText(text) != "" {
					out = append(out, CleanText(text))
				} else {
					return nil, fmt.Errorf("list block without text or content")
				}
			default:
				return nil, fmt.Errorf("unsupported list element %T", item)
			}
		}
		return out, nil
	case string:
		return splitBlob(t), nil
	case map[string]any:
		// section name -> blob or list; sort keys so output order is stable
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var out []string
		for _, k := range keys {
			sub, err := coerceRequirements(t[k])
			if err != nil {
				return nil, fmt.Errorf("section %q: %w", k, err)
			}
			out = append(out, sub...)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported requirements shape %T", v)
	}
}

// splitBlob turns a free-text or HTML requirements blob into one line
// per requirement.
func splitBlob(s string) []string {
	s = tagExpr.ReplaceAllString(s, "\n")
	s = strings.ReplaceAll(s, "•", "\n")

	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimPrefix(strings.TrimSpace(line), "- ")
		line = CleanText(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func cleanLines(in []string) []string {
	var out []string
	for _, s := range in {
		if s = CleanText(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

var postedAtLayouts = []string{
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02",
}

func parsePostedAt(v any) (*time.Time, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		u := t.UTC()
		return &u, nil
	case string:
		if strings.TrimSpace(t) == "" {
			return nil, nil
		}
		for _, layout := range postedAtLayouts {
			if ts, err := time.Parse(layout, t); err == nil {
				u := ts.UTC()
				return &u, nil
			}
		}
		return nil, fmt.Errorf("unparseable timestamp %q", t)
	case float64:
		return epochTime(int64(t)), nil
	case int64:
		return epochTime(t), nil
	case int:
		return epochTime(int64(t)), nil
	default:
		return nil, fmt.Errorf("unsupported timestamp type %T", v)
	}
}

// epochTime treats values past the year ~33658 as milliseconds.
func epochTime(n int64) *time.Time {
	if n <= 0 {
		return nil
	}
	var ts time.Time
	if n > 1_000_000_000_000 {
		ts = time.UnixMilli(n).UTC()
	} else {
		ts = time.Unix(n, 0).UTC()
	}
	return &ts
}

package normalize

import (
	"strings"

	"jobfeed-engine/internal/domain"
)

// CleanText collapses whitespace and NBSPs scraped pages love to emit.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(s)
}

// NormalizeLocation strips label prefixes and deduplicates the
// comma-separated segments sources repeat ("Berlin, Berlin, Germany").
func NormalizeLocation(loc string) string {
	loc = CleanText(loc)
	if loc == "" {
		return ""
	}

	loc = strings.TrimPrefix(loc, "Location:")
	loc = strings.TrimPrefix(loc, "LOCATIONS:")
	loc = strings.TrimSpace(loc)

	parts := strings.Split(loc, ",")
	seen := map[string]bool{}
	var out []string
	for _, p := range parts {
		p = CleanText(p)
		if p == "" {
			continue
		}
		k := strings.ToLower(p)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, p)
	}
	return strings.Join(out, ", ")
}

// ParseRemoteMode maps the strings sources use onto the enum.
func ParseRemoteMode(s string) (domain.RemoteMode, bool) {
	switch strings.ToLower(CleanText(s)) {
	case "remote", "fully remote":
		return domain.RemoteRemote, true
	case "hybrid":
		return domain.RemoteHybrid, true
	case "onsite", "on-site", "on site", "in office", "in-office":
		return domain.RemoteOnsite, true
	case "unknown", "":
		return domain.RemoteUnknown, true
	}
	return domain.RemoteUnknown, false
}

// InferRemoteMode falls back to text heuristics when a source carries
// no explicit work-mode field.
func InferRemoteMode(location, title, desc string) domain.RemoteMode {
	blob := strings.ToLower(strings.Join([]string{location, title, desc}, " "))

	switch {
	case strings.Contains(blob, "remote"):
		return domain.RemoteRemote
	case strings.Contains(blob, "hybrid"):
		return domain.RemoteHybrid
	case strings.Contains(blob, "on-site") || strings.Contains(blob, "onsite") || strings.Contains(blob, "on site"):
		return domain.RemoteOnsite
	default:
		return domain.RemoteUnknown
	}
}

package dedup

import (
	"sort"
	"strings"
	"unicode"

	"jobfeed-engine/internal/domain"
)

// Fingerprint is what a job looks like to the matcher: an exact
// canonical key plus the token set the fuzzy stage scores against.
type Fingerprint struct {
	CanonicalKey string
	Tokens       []string
}

// NewFingerprint derives the matching view of a job. Deterministic:
// the same job always produces the same fingerprint.
func NewFingerprint(j domain.NormalizedJob) Fingerprint {
	return Fingerprint{
		CanonicalKey: CanonicalKey(j.Title, j.Company, j.Location),
		Tokens:       SimilarityTokens(j.Title, j.Company, j.Location),
	}
}

// CanonicalKey is the lowercased, whitespace-collapsed
// title|company|location string used for the exact-match stage.
func CanonicalKey(title, company, location string) string {
	return canonicalPart(title) + "|" + canonicalPart(company) + "|" + canonicalPart(location)
}

// CompanyKey is the casefolded company string the windowed candidate
// lookup indexes on.
func CompanyKey(company string) string {
	return canonicalPart(company)
}

func canonicalPart(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// titleAliases folds the abbreviations job boards rewrite titles with,
// so "Sr. Data Engineer" and "Senior Data Engineer" tokenize the same.
var titleAliases = map[string]string{
	"sr":  "senior",
	"jr":  "junior",
	"mgr": "manager",
}

// SimilarityTokens builds the sorted, deduplicated token set the fuzzy
// stage compares. Location contributes only its first comma segment:
// "Berlin" and "Berlin, Germany" are the same place to the matcher.
func SimilarityTokens(title, company, location string) []string {
	if i := strings.IndexByte(location, ','); i >= 0 {
		location = location[:i]
	}

	set := map[string]bool{}
	for _, raw := range []string{title, company, location} {
		for _, tok := range tokenize(raw) {
			if alias, ok := titleAliases[tok]; ok {
				tok = alias
			}
			set[tok] = true
		}
	}

	out := make([]string, 0, len(set))
	for tok := range set {
		out = append(out, tok)
	}
	sort.Strings(out)
	return out
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// Similarity is the Jaccard overlap of two token sets. Both inputs are
// treated as sets; order does not matter. Scores are in [0, 1] and
// identical inputs always score identically.
func Similarity(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	seen := make(map[string]bool, len(a))
	for _, tok := range a {
		seen[tok] = true
	}

	inter := 0
	union := len(seen)
	counted := make(map[string]bool, len(b))
	for _, tok := range b {
		if counted[tok] {
			continue
		}
		counted[tok] = true
		if seen[tok] {
			inter++
		} else {
			union++
		}
	}

	return float64(inter) / float64(union)
}

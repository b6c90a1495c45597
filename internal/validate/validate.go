// Package validate enforces the JobRecord field contract on normalized
// jobs before they reach the deduplicator. Classification is total:
// every input is either accepted (nil) or rejected with a reason.
package validate

import (
	"net/url"
	"strings"

	"jobfeed-engine/internal/domain"
)

const (
	ReasonMissingTitle   = "missing_title"
	ReasonMissingCompany = "missing_company"
	ReasonMissingSource  = "missing_source"
	ReasonBadRemoteMode  = "bad_remote_mode"
	ReasonBadRequirement = "bad_requirement"
	ReasonBadSourceURL   = "bad_source_url"
)

type Reject struct {
	Reason string
}

func (r *Reject) Error() string { return r.Reason }

// Job returns nil when j conforms to the persisted schema, or a
// *Reject naming the first violated rule. It never panics.
func Job(j domain.NormalizedJob) error {
	if strings.TrimSpace(j.Title) == "" {
		return &Reject{Reason: ReasonMissingTitle}
	}
	if strings.TrimSpace(j.Company) == "" {
		return &Reject{Reason: ReasonMissingCompany}
	}
	if strings.TrimSpace(j.SourceID) == "" {
		return &Reject{Reason: ReasonMissingSource}
	}

	// the enum must already be resolved; a raw boolean or free-form
	// string must never reach the store
	if !j.RemoteMode.Valid() {
		return &Reject{Reason: ReasonBadRemoteMode}
	}

	for _, req := range j.Requirements {
		if strings.TrimSpace(req) == "" {
			return &Reject{Reason: ReasonBadRequirement}
		}
	}

	if j.SourceURL != "" {
		u, err := url.Parse(j.SourceURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return &Reject{Reason: ReasonBadSourceURL}
		}
	}

	return nil
}

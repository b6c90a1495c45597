package domain

import "time"

// RemoteMode is the canonical work-mode classification for a posting.
type RemoteMode string

const (
	RemoteOnsite  RemoteMode = "onsite"
	RemoteHybrid  RemoteMode = "hybrid"
	RemoteRemote  RemoteMode = "remote"
	RemoteUnknown RemoteMode = "unknown"
)

func (m RemoteMode) Valid() bool {
	switch m {
	case RemoteOnsite, RemoteHybrid, RemoteRemote, RemoteUnknown:
		return true
	}
	return false
}

// RawPosting is the untyped payload one adapter fetch produced.
// Field values keep whatever shape the upstream source used; the
// normalizer owns coercion. Discarded after normalization.
type RawPosting struct {
	SourceID  string
	SourceURL string
	FetchedAt time.Time
	Fields    map[string]any
}

// NormalizedJob is the canonical shape every posting is reduced to
// before validation and dedup. Immutable once built.
type NormalizedJob struct {
	Title        string
	Company      string
	Location     string
	RemoteMode   RemoteMode
	Requirements []string
	Description  string
	PostedAt     *time.Time
	SourceID     string
	SourceURL    string
}

// JobRecord is the persisted entity. CanonicalKey and Tokens are the
// dedup fingerprint stored alongside the job; they are never persisted
// on their own.
type JobRecord struct {
	ID           int64
	Title        string
	Company      string
	Location     string
	RemoteMode   RemoteMode
	Requirements []string
	Description  string
	PostedAt     *time.Time
	SourceURL    string

	CanonicalKey string
	Tokens       []string

	FirstSeenAt     time.Time
	LastSeenAt      time.Time
	LastSeenSources []string
}

// Package dedup decides whether an incoming posting is a job the store
// already knows. Three ordered stages, short-circuiting on first
// match: exact canonical-key lookup, a company+recency windowed
// candidate query, and a token-overlap similarity score against those
// candidates. The windowing bounds fuzzy-match cost to the recent
// postings of one company instead of the whole store.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"jobfeed-engine/internal/domain"
)

// ErrDuplicateKey is returned by Sink.Insert when the unique
// canonical-key index rejects a record. Process converts it into a
// merge, so the invariant that no two records share a canonical key
// holds even across concurrent writers.
var ErrDuplicateKey = errors.New("canonical key already exists")

// Sink is the persistence contract the matcher runs against. Storage
// internals are out of scope here.
type Sink interface {
	FindExact(ctx context.Context, canonicalKey string) (*domain.JobRecord, error)
	FindCandidates(ctx context.Context, companyKey string, since time.Time) ([]domain.JobRecord, error)
	Insert(ctx context.Context, rec *domain.JobRecord) (int64, error)
	MergeSighting(ctx context.Context, id int64, sourceID string, seenAt time.Time) error
}

type Config struct {
	Threshold float64       // fuzzy-match score at or above which two jobs are the same
	Window    time.Duration // how far back stage 2 looks for candidates
}

type OutcomeKind int

const (
	Created OutcomeKind = iota
	Merged
)

type Outcome struct {
	Kind     OutcomeKind
	RecordID int64
}

type Deduplicator struct {
	sink Sink
	cfg  Config
	now  func() time.Time

	// writes are serialized per canonical key so two adapters cannot
	// race a second record for the same job into the store
	locks [64]sync.Mutex
}

func New(sink Sink, cfg Config) *Deduplicator {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 0.85
	}
	if cfg.Window <= 0 {
		cfg.Window = 30 * 24 * time.Hour
	}
	return &Deduplicator{sink: sink, cfg: cfg, now: time.Now}
}

// Plan derives the fingerprint without touching the sink.
func (d *Deduplicator) Plan(job domain.NormalizedJob) Fingerprint {
	return NewFingerprint(job)
}

// Process runs the full pipeline for one job.
func (d *Deduplicator) Process(ctx context.Context, job domain.NormalizedJob) (Outcome, error) {
	return d.Apply(ctx, job, d.Plan(job))
}

// Apply matches job against the store under its key lock and either
// merges into an existing record or creates a new one.
func (d *Deduplicator) Apply(ctx context.Context, job domain.NormalizedJob, fp Fingerprint) (Outcome, error) {
	mu := d.lockFor(fp.CanonicalKey)
	mu.Lock()
	defer mu.Unlock()

	now := d.now().UTC()

	// stage 1: exact canonical key
	rec, err := d.sink.FindExact(ctx, fp.CanonicalKey)
	if err != nil {
		return Outcome{}, fmt.Errorf("find exact: %w", err)
	}
	if rec != nil {
		return d.merge(ctx, rec.ID, job.SourceID, now)
	}

	// stage 2: bound the fuzzy search to this company's recent records
	cands, err := d.sink.FindCandidates(ctx, CompanyKey(job.Company), now.Add(-d.cfg.Window))
	if err != nil {
		return Outcome{}, fmt.Errorf("find candidates: %w", err)
	}

	// stage 3: token-overlap score, best match wins
	var (
		bestID    int64
		bestScore float64
		found     bool
	)
	for _, cand := range cands {
		score := Similarity(fp.Tokens, cand.Tokens)
		if score >= d.cfg.Threshold && (!found || score > bestScore) {
			bestID, bestScore, found = cand.ID, score, true
		}
	}
	if found {
		return d.merge(ctx, bestID, job.SourceID, now)
	}

	// genuinely new job
	id, err := d.sink.Insert(ctx, recordFromJob(job, fp, now))
	if errors.Is(err, ErrDuplicateKey) {
		// lost a race outside our key-lock domain (another process);
		// fold into the record that won
		if rec, ferr := d.sink.FindExact(ctx, fp.CanonicalKey); ferr == nil && rec != nil {
			return d.merge(ctx, rec.ID, job.SourceID, now)
		}
		return Outcome{}, fmt.Errorf("insert: %w", err)
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("insert: %w", err)
	}
	return Outcome{Kind: Created, RecordID: id}, nil
}

func (d *Deduplicator) merge(ctx context.Context, id int64, sourceID string, seenAt time.Time) (Outcome, error) {
	if err := d.sink.MergeSighting(ctx, id, sourceID, seenAt); err != nil {
		return Outcome{}, fmt.Errorf("merge sighting: %w", err)
	}
	return Outcome{Kind: Merged, RecordID: id}, nil
}

func (d *Deduplicator) lockFor(key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &d.locks[h.Sum32()%uint32(len(d.locks))]
}

func recordFromJob(job domain.NormalizedJob, fp Fingerprint, now time.Time) *domain.JobRecord {
	return &domain.JobRecord{
		Title:           job.Title,
		Company:         job.Company,
		Location:        job.Location,
		RemoteMode:      job.RemoteMode,
		Requirements:    job.Requirements,
		Description:     job.Description,
		PostedAt:        job.PostedAt,
		SourceURL:       job.SourceURL,
		CanonicalKey:    fp.CanonicalKey,
		Tokens:          fp.Tokens,
		FirstSeenAt:     now,
		LastSeenAt:      now,
		LastSeenSources: []string{job.SourceID},
	}
}

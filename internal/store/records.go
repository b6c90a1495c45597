package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"jobfeed-engine/internal/dedup"
	"jobfeed-engine/internal/domain"
)

// Store is the persistence sink the pipeline writes JobRecords into.
// It satisfies dedup.Sink.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store { return &Store{db: db} }

var _ dedup.Sink = (*Store)(nil)

func Migrate(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var v int
	if err := tx.QueryRow(`PRAGMA user_version;`).Scan(&v); err != nil {
		return err
	}
	if v >= 1 {
		return tx.Commit()
	}

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS job_records (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  canonical_key TEXT NOT NULL,
  title TEXT NOT NULL,
  company TEXT NOT NULL,
  company_key TEXT NOT NULL,
  location TEXT NOT NULL,
  remote_mode TEXT NOT NULL,
  requirements TEXT NOT NULL DEFAULT '[]',
  description TEXT NOT NULL DEFAULT '',
  source_url TEXT NOT NULL DEFAULT '',
  posted_at TEXT,
  tokens TEXT NOT NULL DEFAULT '[]',
  first_seen_at TEXT NOT NULL,
  last_seen_at TEXT NOT NULL,
  last_seen_sources TEXT NOT NULL DEFAULT '[]'
);
`); err != nil {
		return err
	}

	// the store-level guarantee behind stage 1: at most one record per
	// canonical key
	if _, err := tx.Exec(`
CREATE UNIQUE INDEX IF NOT EXISTS idx_job_records_canonical_key
ON job_records(canonical_key);
`); err != nil {
		return err
	}

	// serves the windowed candidate lookup
	if _, err := tx.Exec(`
CREATE INDEX IF NOT EXISTS idx_job_records_company_seen
ON job_records(company_key, first_seen_at);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS ingestion_runs (
  run_id TEXT PRIMARY KEY,
  started_at TEXT NOT NULL,
  finished_at TEXT NOT NULL DEFAULT '',
  state TEXT NOT NULL,
  stats TEXT NOT NULL DEFAULT '{}'
);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`PRAGMA user_version = 1;`); err != nil {
		return err
	}

	return tx.Commit()
}

const recordCols = `id, canonical_key, title, company, location, remote_mode,
requirements, description, source_url, posted_at, tokens,
first_seen_at, last_seen_at, last_seen_sources`

func (s *Store) FindExact(ctx context.Context, canonicalKey string) (*domain.JobRecord, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT `+recordCols+`
FROM job_records
WHERE canonical_key = ?
LIMIT 1;`, canonicalKey)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find exact: %w", err)
	}
	return rec, nil
}

func (s *Store) FindCandidates(ctx context.Context, companyKey string, since time.Time) ([]domain.JobRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+recordCols+`
FROM job_records
WHERE company_key = ?
  AND first_seen_at >= ?
ORDER BY first_seen_at DESC;`, companyKey, since.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("find candidates: %w", err)
	}
	defer rows.Close()

	var out []domain.JobRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (s *Store) Insert(ctx context.Context, rec *domain.JobRecord) (int64, error) {
	reqs, _ := json.Marshal(emptyAsList(rec.Requirements))
	tokens, _ := json.Marshal(emptyAsList(rec.Tokens))
	sources, _ := json.Marshal(emptyAsList(rec.LastSeenSources))

	var postedAt any
	if rec.PostedAt != nil {
		postedAt = rec.PostedAt.UTC().Format(time.RFC3339)
	}

	res, err := s.db.ExecContext(ctx, `
INSERT INTO job_records (
  canonical_key, title, company, company_key, location, remote_mode,
  requirements, description, source_url, posted_at, tokens,
  first_seen_at, last_seen_at, last_seen_sources
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		rec.CanonicalKey, rec.Title, rec.Company, dedup.CompanyKey(rec.Company),
		rec.Location, string(rec.RemoteMode), string(reqs), rec.Description,
		rec.SourceURL, postedAt, string(tokens),
		rec.FirstSeenAt.UTC().Format(time.RFC3339),
		rec.LastSeenAt.UTC().Format(time.RFC3339),
		string(sources),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return 0, dedup.ErrDuplicateKey
		}
		return 0, fmt.Errorf("insert record: %w", err)
	}
	return res.LastInsertId()
}

// MergeSighting adds sourceID to the record's source set and bumps
// last_seen_at. Those are the only fields a re-sighting may touch.
func (s *Store) MergeSighting(ctx context.Context, id int64, sourceID string, seenAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var sourcesJSON string
	if err := tx.QueryRowContext(ctx,
		`SELECT last_seen_sources FROM job_records WHERE id = ?;`, id,
	).Scan(&sourcesJSON); err != nil {
		return fmt.Errorf("load sources: %w", err)
	}

	var sources []string
	_ = json.Unmarshal([]byte(sourcesJSON), &sources)
	sources = addToSet(sources, sourceID)
	merged, _ := json.Marshal(sources)

	if _, err := tx.ExecContext(ctx, `
UPDATE job_records
SET last_seen_sources = ?, last_seen_at = ?
WHERE id = ?;`,
		string(merged), seenAt.UTC().Format(time.RFC3339), id,
	); err != nil {
		return fmt.Errorf("update sighting: %w", err)
	}

	return tx.Commit()
}

type ListOpts struct {
	Window string // 24h | 7d | all
	Limit  int
}

func (s *Store) ListRecords(ctx context.Context, opts ListOpts) ([]domain.JobRecord, error) {
	where := ""
	switch opts.Window {
	case "24h":
		where = "WHERE last_seen_at >= datetime('now','-24 hours')"
	case "all":
		// no filter
	default:
		where = "WHERE last_seen_at >= datetime('now','-7 days')"
	}
	if opts.Limit <= 0 || opts.Limit > 2000 {
		opts.Limit = 500
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
SELECT `+recordCols+`
FROM job_records
%s
ORDER BY last_seen_at DESC
LIMIT ?;`, where), opts.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.JobRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (s *Store) CountRecords(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM job_records;`).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*domain.JobRecord, error) {
	var (
		rec                  domain.JobRecord
		mode                 string
		reqsJSON, tokensJSON string
		sourcesJSON          string
		postedAt             sql.NullString
		firstSeen, lastSeen  string
	)
	if err := row.Scan(
		&rec.ID, &rec.CanonicalKey, &rec.Title, &rec.Company, &rec.Location, &mode,
		&reqsJSON, &rec.Description, &rec.SourceURL, &postedAt, &tokensJSON,
		&firstSeen, &lastSeen, &sourcesJSON,
	); err != nil {
		return nil, err
	}

	rec.RemoteMode = domain.RemoteMode(mode)
	_ = json.Unmarshal([]byte(reqsJSON), &rec.Requirements)
	_ = json.Unmarshal([]byte(tokensJSON), &rec.Tokens)
	_ = json.Unmarshal([]byte(sourcesJSON), &rec.LastSeenSources)

	if postedAt.Valid && postedAt.String != "" {
		if t, err := time.Parse(time.RFC3339, postedAt.String); err == nil {
			rec.PostedAt = &t
		}
	}
	rec.FirstSeenAt, _ = time.Parse(time.RFC3339, firstSeen)
	rec.LastSeenAt, _ = time.Parse(time.RFC3339, lastSeen)

	return &rec, nil
}

func addToSet(set []string, v string) []string {
	for _, s := range set {
		if s == v {
			return set
		}
	}
	set = append(set, v)
	sort.Strings(set)
	return set
}

// emptyAsList keeps nil slices rendering as [] instead of null.
func emptyAsList(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

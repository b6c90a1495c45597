package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobfeed-engine/internal/dedup"
	"jobfeed-engine/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, Migrate(db))
	// re-running the migration is a no-op
	require.NoError(t, Migrate(db))

	return New(db)
}

func testRecord(title string, firstSeen time.Time) *domain.JobRecord {
	posted := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return &domain.JobRecord{
		Title:           title,
		Company:         "Acme",
		Location:        "Berlin",
		RemoteMode:      domain.RemoteHybrid,
		Requirements:    []string{"Go", "SQL"},
		Description:     "Build pipelines.",
		PostedAt:        &posted,
		SourceURL:       "https://jobs.example.com/1",
		CanonicalKey:    dedup.CanonicalKey(title, "Acme", "Berlin"),
		Tokens:          dedup.SimilarityTokens(title, "Acme", "Berlin"),
		FirstSeenAt:     firstSeen,
		LastSeenAt:      firstSeen,
		LastSeenSources: []string{"lever-acme"},
	}
}

func TestInsertAndFindExact(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	rec := testRecord("Senior Data Engineer", now)
	id, err := s.Insert(ctx, rec)
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))

	got, err := s.FindExact(ctx, rec.CanonicalKey)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, id, got.ID)
	assert.Equal(t, rec.Title, got.Title)
	assert.Equal(t, rec.Company, got.Company)
	assert.Equal(t, domain.RemoteHybrid, got.RemoteMode)
	assert.Equal(t, rec.Requirements, got.Requirements)
	assert.Equal(t, rec.Tokens, got.Tokens)
	assert.Equal(t, rec.LastSeenSources, got.LastSeenSources)
	require.NotNil(t, got.PostedAt)
	assert.True(t, got.PostedAt.Equal(*rec.PostedAt))
	assert.True(t, got.FirstSeenAt.Equal(now))
}

func TestFindExactMissIsNotAnError(t *testing.T) {
	s := newTestStore(t)

	got, err := s.FindExact(context.Background(), "nope|nope|nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestInsertDuplicateKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := s.Insert(ctx, testRecord("Senior Data Engineer", now))
	require.NoError(t, err)

	_, err = s.Insert(ctx, testRecord("Senior Data Engineer", now))
	assert.ErrorIs(t, err, dedup.ErrDuplicateKey)
}

func TestFindCandidatesRespectsWindow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	_, err := s.Insert(ctx, testRecord("Senior Data Engineer", now.Add(-time.Hour)))
	require.NoError(t, err)
	_, err = s.Insert(ctx, testRecord("Staff Data Engineer", now.Add(-40*24*time.Hour)))
	require.NoError(t, err)

	cands, err := s.FindCandidates(ctx, dedup.CompanyKey("Acme"), now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, "Senior Data Engineer", cands[0].Title)

	// other companies never show up
	cands, err = s.FindCandidates(ctx, dedup.CompanyKey("Globex"), now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, cands)
}

func TestMergeSighting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	rec := testRecord("Senior Data Engineer", now)
	id, err := s.Insert(ctx, rec)
	require.NoError(t, err)

	later := now.Add(2 * time.Hour)
	require.NoError(t, s.MergeSighting(ctx, id, "rss-acme", later))
	// same source again must not duplicate the set entry
	require.NoError(t, s.MergeSighting(ctx, id, "rss-acme", later.Add(time.Minute)))

	got, err := s.FindExact(ctx, rec.CanonicalKey)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, []string{"lever-acme", "rss-acme"}, got.LastSeenSources)
	assert.True(t, got.LastSeenAt.Equal(later.Add(time.Minute)))
	// first sighting is immutable
	assert.True(t, got.FirstSeenAt.Equal(now))
}

func TestListAndCountRecords(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := s.Insert(ctx, testRecord("Senior Data Engineer", now.Add(-time.Hour)))
	require.NoError(t, err)
	_, err = s.Insert(ctx, testRecord("Marketing Manager", now.Add(-10*24*time.Hour)))
	require.NoError(t, err)

	n, err := s.CountRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	recent, err := s.ListRecords(ctx, ListOpts{Window: "24h"})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "Senior Data Engineer", recent[0].Title)

	all, err := s.ListRecords(ctx, ListOpts{Window: "all"})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

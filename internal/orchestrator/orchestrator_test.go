package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobfeed-engine/internal/config"
	"jobfeed-engine/internal/dedup"
	"jobfeed-engine/internal/domain"
	"jobfeed-engine/internal/events"
	"jobfeed-engine/internal/source"
)

type fakeAdapter struct {
	source.Status

	id    string
	raws  []domain.RawPosting
	err   error
	block chan struct{} // when set, Fetch waits here first

	mu      sync.Mutex
	fetches int
}

func (f *fakeAdapter) SourceID() string { return f.id }

func (f *fakeAdapter) Fetch(ctx context.Context, emit source.EmitFunc) (err error) {
	defer func() { f.Observe(err) }()

	f.mu.Lock()
	f.fetches++
	f.mu.Unlock()

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	for _, r := range f.raws {
		emit(r)
	}
	return f.err
}

func (f *fakeAdapter) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

// memSink mirrors the store's canonical-key uniqueness in memory.
type memSink struct {
	mu        sync.Mutex
	nextID    int64
	records   map[int64]*domain.JobRecord
	insertErr error
}

func newMemSink() *memSink {
	return &memSink{records: map[int64]*domain.JobRecord{}}
}

func (s *memSink) FindExact(_ context.Context, canonicalKey string) (*domain.JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.records {
		if rec.CanonicalKey == canonicalKey {
			c := *rec
			return &c, nil
		}
	}
	return nil, nil
}

func (s *memSink) FindCandidates(_ context.Context, companyKey string, since time.Time) ([]domain.JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.JobRecord
	for _, rec := range s.records {
		if dedup.CompanyKey(rec.Company) == companyKey && !rec.FirstSeenAt.Before(since) {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (s *memSink) Insert(_ context.Context, rec *domain.JobRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return 0, s.insertErr
	}
	for _, existing := range s.records {
		if existing.CanonicalKey == rec.CanonicalKey {
			return 0, dedup.ErrDuplicateKey
		}
	}
	s.nextID++
	c := *rec
	c.ID = s.nextID
	s.records[c.ID] = &c
	return c.ID, nil
}

func (s *memSink) MergeSighting(_ context.Context, id int64, sourceID string, seenAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return errors.New("no such record")
	}
	rec.LastSeenAt = seenAt
	for _, src := range rec.LastSeenSources {
		if src == sourceID {
			return nil
		}
	}
	rec.LastSeenSources = append(rec.LastSeenSources, sourceID)
	return nil
}

func (s *memSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func posting(sourceID, title, company, location string) domain.RawPosting {
	return domain.RawPosting{
		SourceID:  sourceID,
		SourceURL: "https://jobs.example.com/" + sourceID,
		FetchedAt: time.Now().UTC(),
		Fields: map[string]any{
			"title":    title,
			"company":  company,
			"location": location,
		},
	}
}

func sourceFor(a source.Adapter) Source {
	return Source{Cfg: config.Source{ID: a.SourceID()}, Adapter: a}
}

func newTestOrch(sink dedup.Sink, hub *events.Hub, adapters ...source.Adapter) *Orchestrator {
	srcs := make([]Source, 0, len(adapters))
	for _, a := range adapters {
		srcs = append(srcs, sourceFor(a))
	}
	return New(Options{
		Sources:        srcs,
		Dedup:          dedup.New(sink, dedup.Config{}),
		Hub:            hub,
		MaxConcurrency: 2,
		RunTimeout:     30 * time.Second,
	})
}

func TestRunNowPersistsAndCompletes(t *testing.T) {
	sink := newMemSink()
	a := &fakeAdapter{id: "lever-acme", raws: []domain.RawPosting{
		posting("lever-acme", "Senior Data Engineer", "Acme", "Berlin"),
		posting("lever-acme", "Marketing Manager", "Acme", "Berlin"),
	}}
	b := &fakeAdapter{id: "rss-globex", raws: []domain.RawPosting{
		posting("rss-globex", "SRE", "Globex", "Remote"),
	}}

	out, err := newTestOrch(sink, nil, a, b).RunNow(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, domain.StateCompleted, out.State)
	assert.Equal(t, 3, sink.count())
	assert.Equal(t, 2, out.Sources["lever-acme"].Persisted)
	assert.Equal(t, 1, out.Sources["rss-globex"].Persisted)
	assert.Equal(t, 3, out.Totals().Fetched)
	assert.Zero(t, out.Totals().Rejected)
	assert.False(t, out.FinishedAt.IsZero())
}

func TestPermanentFailureIsContained(t *testing.T) {
	sink := newMemSink()
	bad := &fakeAdapter{id: "gh-acme", err: source.Permanentf("status 404")}
	good := &fakeAdapter{id: "rss-globex", raws: []domain.RawPosting{
		posting("rss-globex", "SRE", "Globex", "Remote"),
	}}

	orch := newTestOrch(sink, nil, bad, good)
	out, err := orch.RunNow(context.Background(), nil)
	require.NoError(t, err)

	// the healthy source's results land even though the other is down
	assert.Equal(t, domain.StateCompleted, out.State)
	assert.Equal(t, 1, out.Sources["rss-globex"].Persisted)
	assert.Contains(t, out.Sources["gh-acme"].Failure, "permanent")

	st := orch.Status()
	assert.Equal(t, source.HealthDown, st.Sources["gh-acme"])
	assert.Equal(t, source.HealthOK, st.Sources["rss-globex"])
}

func TestPartialFetchKeepsEmittedItems(t *testing.T) {
	sink := newMemSink()
	a := &fakeAdapter{
		id:   "lever-acme",
		raws: []domain.RawPosting{posting("lever-acme", "SRE", "Acme", "Berlin")},
		err:  &source.PartialError{Quarantined: 2, Last: errors.New("missing id")},
	}

	out, err := newTestOrch(sink, nil, a).RunNow(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, domain.StateCompleted, out.State)
	assert.Equal(t, 1, out.Sources["lever-acme"].Persisted)
	assert.Equal(t, 2, out.Sources["lever-acme"].Quarantined)
	assert.Empty(t, out.Sources["lever-acme"].Failure)
}

func TestRerunIsIdempotent(t *testing.T) {
	sink := newMemSink()
	a := &fakeAdapter{id: "lever-acme", raws: []domain.RawPosting{
		posting("lever-acme", "Senior Data Engineer", "Acme", "Berlin"),
		posting("lever-acme", "Marketing Manager", "Acme", "Berlin"),
	}}
	orch := newTestOrch(sink, nil, a)

	first, err := orch.RunNow(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Sources["lever-acme"].Persisted)

	second, err := orch.RunNow(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 2, sink.count())
	assert.Zero(t, second.Sources["lever-acme"].Persisted)
	assert.Equal(t, 2, second.Sources["lever-acme"].Duplicates)
}

func TestRejectedPostingsAreCounted(t *testing.T) {
	sink := newMemSink()
	noTitle := posting("rss-globex", "", "Globex", "Remote")
	a := &fakeAdapter{id: "rss-globex", raws: []domain.RawPosting{
		noTitle,
		posting("rss-globex", "SRE", "Globex", "Remote"),
	}}

	out, err := newTestOrch(sink, nil, a).RunNow(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 2, out.Sources["rss-globex"].Fetched)
	assert.Equal(t, 1, out.Sources["rss-globex"].Rejected)
	assert.Equal(t, 1, out.Sources["rss-globex"].Normalized)
	assert.Equal(t, 1, sink.count())
}

func TestRunNowRejectsReentry(t *testing.T) {
	sink := newMemSink()
	block := make(chan struct{})
	a := &fakeAdapter{id: "lever-acme", block: block}
	orch := newTestOrch(sink, nil, a)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = orch.RunNow(context.Background(), nil)
	}()

	// wait for the run to occupy the state machine
	require.Eventually(t, func() bool {
		return orch.Status().State != domain.StateIdle
	}, time.Second, 5*time.Millisecond)

	_, err := orch.RunNow(context.Background(), nil)
	assert.ErrorIs(t, err, ErrRunActive)

	close(block)
	<-done

	// once finished, a new run is accepted again
	_, err = orch.RunNow(context.Background(), nil)
	assert.NoError(t, err)
}

func TestSinkFailureEndsFailedPartial(t *testing.T) {
	sink := newMemSink()
	sink.insertErr = errors.New("disk full")
	a := &fakeAdapter{id: "lever-acme", raws: []domain.RawPosting{
		posting("lever-acme", "SRE", "Acme", "Berlin"),
	}}

	out, err := newTestOrch(sink, nil, a).RunNow(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StateFailedPartial, out.State)
}

func TestSourceFilterSelectsSubset(t *testing.T) {
	sink := newMemSink()
	a := &fakeAdapter{id: "lever-acme", raws: []domain.RawPosting{
		posting("lever-acme", "SRE", "Acme", "Berlin"),
	}}
	b := &fakeAdapter{id: "rss-globex", raws: []domain.RawPosting{
		posting("rss-globex", "SRE", "Globex", "Remote"),
	}}

	out, err := newTestOrch(sink, nil, a, b).RunNow(context.Background(), []string{"rss-globex"})
	require.NoError(t, err)

	assert.Zero(t, a.fetchCount())
	assert.Equal(t, 1, b.fetchCount())
	assert.NotContains(t, out.Sources, "lever-acme")
	assert.Equal(t, 1, out.Sources["rss-globex"].Persisted)
}

func TestRunPublishesEvents(t *testing.T) {
	sink := newMemSink()
	hub := events.NewHub()
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	a := &fakeAdapter{id: "lever-acme", raws: []domain.RawPosting{
		posting("lever-acme", "SRE", "Acme", "Berlin"),
	}}
	orch := newTestOrch(sink, hub, a)

	_, err := orch.RunNow(context.Background(), nil)
	require.NoError(t, err)
	_, err = orch.RunNow(context.Background(), nil)
	require.NoError(t, err)

	var types []string
	for len(ch) > 0 {
		var evt events.Event
		require.NoError(t, json.Unmarshal([]byte(<-ch), &evt))
		types = append(types, evt.Type)
	}

	assert.Equal(t, []string{
		events.TypeJobCreated, events.TypeRunFinished,
		events.TypeJobReseen, events.TypeRunFinished,
	}, types)
}

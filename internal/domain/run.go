package domain

import "time"

// RunState is the orchestrator state machine position for one run.
type RunState string

const (
	StateIdle          RunState = "idle"
	StateFetching      RunState = "fetching"
	StateNormalizing   RunState = "normalizing"
	StateDeduplicating RunState = "deduplicating"
	StatePersisting    RunState = "persisting"
	StateCompleted     RunState = "completed"
	StateFailedPartial RunState = "failed_partial"
)

// SourceStats is the per-source outcome of one ingestion run. Failures
// never cross the adapter boundary as errors; they land here as counts
// and a failure note.
type SourceStats struct {
	Fetched     int    `json:"fetched"`
	Quarantined int    `json:"quarantined"`
	Normalized  int    `json:"normalized"`
	Rejected    int    `json:"rejected"`
	Duplicates  int    `json:"duplicates"`
	Persisted   int    `json:"persisted"`
	Failure     string `json:"failure,omitempty"`
}

// IngestionRun is one execution of the scheduler, kept for
// observability only.
type IngestionRun struct {
	RunID      string                  `json:"run_id"`
	StartedAt  time.Time               `json:"started_at"`
	FinishedAt time.Time               `json:"finished_at"`
	State      RunState                `json:"state"`
	Sources    map[string]*SourceStats `json:"sources"`
}

func (r *IngestionRun) StatsFor(sourceID string) *SourceStats {
	if r.Sources == nil {
		r.Sources = make(map[string]*SourceStats)
	}
	st, ok := r.Sources[sourceID]
	if !ok {
		st = &SourceStats{}
		r.Sources[sourceID] = st
	}
	return st
}

// Totals sums the per-source counters.
func (r *IngestionRun) Totals() SourceStats {
	var t SourceStats
	for _, st := range r.Sources {
		t.Fetched += st.Fetched
		t.Quarantined += st.Quarantined
		t.Normalized += st.Normalized
		t.Rejected += st.Rejected
		t.Duplicates += st.Duplicates
		t.Persisted += st.Persisted
	}
	return t
}

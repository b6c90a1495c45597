package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"jobfeed-engine/internal/domain"
)

// SaveRun upserts a run snapshot; called once at run start and once at
// finalization, so a crash mid-run leaves a visible non-terminal row.
func (s *Store) SaveRun(ctx context.Context, run domain.IngestionRun) error {
	stats, err := json.Marshal(run.Sources)
	if err != nil {
		return fmt.Errorf("marshal run stats: %w", err)
	}

	finished := ""
	if !run.FinishedAt.IsZero() {
		finished = run.FinishedAt.UTC().Format(time.RFC3339)
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO ingestion_runs (run_id, started_at, finished_at, state, stats)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(run_id) DO UPDATE SET
  finished_at = excluded.finished_at,
  state = excluded.state,
  stats = excluded.stats;`,
		run.RunID,
		run.StartedAt.UTC().Format(time.RFC3339),
		finished,
		string(run.State),
		string(stats),
	)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

func (s *Store) ListRuns(ctx context.Context, limit int) ([]domain.IngestionRun, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT run_id, started_at, finished_at, state, stats
FROM ingestion_runs
ORDER BY started_at DESC
LIMIT ?;`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.IngestionRun
	for rows.Next() {
		var (
			run               domain.IngestionRun
			started, finished string
			state, statsJSON  string
		)
		if err := rows.Scan(&run.RunID, &started, &finished, &state, &statsJSON); err != nil {
			return nil, err
		}
		run.State = domain.RunState(state)
		run.StartedAt, _ = time.Parse(time.RFC3339, started)
		if finished != "" {
			run.FinishedAt, _ = time.Parse(time.RFC3339, finished)
		}
		_ = json.Unmarshal([]byte(statsJSON), &run.Sources)
		out = append(out, run)
	}
	return out, rows.Err()
}

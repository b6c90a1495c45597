package events

import (
	"encoding/json"
	"time"
)

// Event types the pipeline emits for external consumers.
const (
	TypeJobCreated  = "job.created"
	TypeJobReseen   = "job.reseen"
	TypeRunFinished = "run.finished"
)

type Event struct {
	Type string          `json:"type"`
	At   time.Time       `json:"at"`
	Data json.RawMessage `json:"data,omitempty"`
}

// JobEvent is the payload for job.created and job.reseen.
type JobEvent struct {
	JobID    int64  `json:"job_id"`
	SourceID string `json:"source_id"`
}

// RunEvent is the payload for run.finished.
type RunEvent struct {
	RunID string `json:"run_id"`
	State string `json:"state"`
}

func Make(typ string, data any) string {
	var raw json.RawMessage
	if data != nil {
		b, _ := json.Marshal(data)
		raw = b
	}
	e := Event{
		Type: typ,
		At:   time.Now().UTC(),
		Data: raw,
	}
	b, _ := json.Marshal(e)
	return string(b)
}

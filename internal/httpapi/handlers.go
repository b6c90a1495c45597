package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"jobfeed-engine/internal/domain"
	"jobfeed-engine/internal/orchestrator"
	"jobfeed-engine/internal/store"
)

func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"ok": true, "time": time.Now().UTC().Format(time.RFC3339)})
}

type JobsHandler struct {
	Store *store.Store
}

type jobView struct {
	ID              int64             `json:"id"`
	Title           string            `json:"title"`
	Company         string            `json:"company"`
	Location        string            `json:"location"`
	RemoteMode      domain.RemoteMode `json:"remote_mode"`
	Requirements    []string          `json:"requirements"`
	SourceURL       string            `json:"source_url"`
	PostedAt        *time.Time        `json:"posted_at,omitempty"`
	FirstSeenAt     time.Time         `json:"first_seen_at"`
	LastSeenAt      time.Time         `json:"last_seen_at"`
	LastSeenSources []string          `json:"last_seen_sources"`
}

func (h JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	recs, err := h.Store.ListRecords(r.Context(), store.ListOpts{
		Window: r.URL.Query().Get("window"),
		Limit:  limit,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	out := make([]jobView, 0, len(recs))
	for _, rec := range recs {
		out = append(out, jobView{
			ID:              rec.ID,
			Title:           rec.Title,
			Company:         rec.Company,
			Location:        rec.Location,
			RemoteMode:      rec.RemoteMode,
			Requirements:    rec.Requirements,
			SourceURL:       rec.SourceURL,
			PostedAt:        rec.PostedAt,
			FirstSeenAt:     rec.FirstSeenAt,
			LastSeenAt:      rec.LastSeenAt,
			LastSeenSources: rec.LastSeenSources,
		})
	}
	writeJSON(w, out)
}

type RunsHandler struct {
	Store *store.Store
}

func (h RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.Store.ListRuns(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, runs)
}

type IngestHandler struct {
	Orch *orchestrator.Orchestrator
}

func (h IngestHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.Orch.Status())
}

type runRequest struct {
	Sources []string `json:"sources"`
}

// Run is the manual run_now entrypoint. It funnels into the same
// non-reentrant state machine as the periodic timer.
func (h IngestHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	st := h.Orch.Status()
	if st.Current != nil {
		writeJSON(w, map[string]any{"ok": false, "msg": "already running"})
		return
	}

	go func() {
		if _, err := h.Orch.RunNow(context.Background(), req.Sources); err != nil {
			if errors.Is(err, orchestrator.ErrRunActive) {
				log.Printf("[ingest] manual trigger skipped: run already active")
				return
			}
			log.Printf("[ingest] manual run: %v", err)
		}
	}()

	writeJSON(w, map[string]any{"ok": true, "msg": "triggered"})
}

// Package httpapi is the engine's trigger and observability surface:
// manual run triggers, run history, the persisted job list, and the
// SSE event stream collaborators subscribe to. The dashboard itself
// lives elsewhere.
package httpapi

import (
	"jobfeed-engine/internal/events"
	"jobfeed-engine/internal/orchestrator"
	"jobfeed-engine/internal/store"
)

type Deps struct {
	Store *store.Store
	Hub   *events.Hub
	Orch  *orchestrator.Orchestrator
}

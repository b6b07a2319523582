package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/micro-ha/pod-door-controller/internal/door"
	"github.com/micro-ha/pod-door-controller/internal/model"
	"github.com/micro-ha/pod-door-controller/internal/router"
	"github.com/micro-ha/pod-door-controller/internal/storage"
)

// Doors exposes the configured door registry.
type Doors interface {
	List() []*door.Door
	Get(key string) (*door.Door, bool)
}

// Routes resolves how a door is reached over the command channel.
type Routes interface {
	RouteFor(key string) (router.Route, bool)
}

// Submitter enqueues an inbound command for the executor.
type Submitter interface {
	Submit(ctx context.Context, msg model.Inbound) error
}

// AuditLog lists recorded actuations.
type AuditLog interface {
	ListActuations(ctx context.Context, filter storage.ActuationFilter) ([]model.Actuation, error)
}

// BrokerStatus reports the broker connection state.
type BrokerStatus interface {
	Connected() bool
}

// API groups HTTP handlers and dependencies.
type API struct {
	doors     Doors
	routes    Routes
	submitter Submitter
	audit     AuditLog
	broker    BrokerStatus
	events    http.Handler
	logger    *slog.Logger
}

// Deps lists handler dependencies. Audit, Broker and Events are optional.
type Deps struct {
	Doors     Doors
	Routes    Routes
	Submitter Submitter
	Audit     AuditLog
	Broker    BrokerStatus
	Events    http.Handler
	Logger    *slog.Logger
}

// New creates HTTP handlers with explicit dependencies.
func New(deps Deps) *API {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &API{
		doors:     deps.Doors,
		routes:    deps.Routes,
		submitter: deps.Submitter,
		audit:     deps.Audit,
		broker:    deps.Broker,
		events:    deps.Events,
		logger:    logger,
	}
}

// Logger returns request logger used by HTTP middleware.
func (a *API) Logger() *slog.Logger {
	return a.logger
}

// OutcomeCounter is implemented by audit logs that can summarize outcomes.
type OutcomeCounter interface {
	CountByOutcome(ctx context.Context) (map[model.Outcome]int, error)
}

// Health reports liveness and broker connection status.
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	connected := a.broker != nil && a.broker.Connected()
	status := "ok"
	if !connected {
		status = "degraded"
	}
	body := map[string]any{
		"status":           status,
		"broker_connected": connected,
		"doors":            len(a.doors.List()),
	}
	if counter, ok := a.audit.(OutcomeCounter); ok {
		counts, err := counter.CountByOutcome(r.Context())
		if err != nil {
			a.logger.Warn("outcome summary failed", "err", err)
		} else {
			body["outcomes"] = counts
		}
	}
	writeJSON(w, http.StatusOK, body)
}

// Events streams actuation records over a WebSocket.
func (a *API) Events(w http.ResponseWriter, r *http.Request) {
	if a.events == nil {
		writeError(w, http.StatusNotFound, "events_disabled", "Event stream not available")
		return
	}
	a.events.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}

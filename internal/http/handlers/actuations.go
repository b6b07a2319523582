package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/micro-ha/pod-door-controller/internal/storage"
)

// ListActuations returns recorded actuations, newest first.
func (a *API) ListActuations(w http.ResponseWriter, r *http.Request) {
	if a.audit == nil {
		writeError(w, http.StatusNotFound, "audit_disabled", "Actuation log is disabled")
		return
	}
	filter := storage.ActuationFilter{DoorKey: strings.TrimSpace(r.URL.Query().Get("door"))}
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		filter.Limit = value
	}

	items, err := a.audit.ListActuations(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

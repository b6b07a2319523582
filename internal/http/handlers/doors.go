package handlers

import (
	"fmt"
	"net/http"

	"github.com/micro-ha/pod-door-controller/internal/command"
	"github.com/micro-ha/pod-door-controller/internal/model"
	"github.com/micro-ha/pod-door-controller/internal/router"
)

// ListDoors returns every configured door with its line states.
func (a *API) ListDoors(w http.ResponseWriter, _ *http.Request) {
	doors := a.doors.List()
	items := make([]model.DoorView, 0, len(doors))
	for _, d := range doors {
		route, _ := a.routes.RouteFor(d.Identity().Key())
		items = append(items, d.View(route.Topic, route.Addressable))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// CommandDoor queues an open or close for one door. The command travels the
// same path as a broker message so ordering with broker traffic is kept.
func (a *API) CommandDoor(w http.ResponseWriter, r *http.Request, key string, rawAction string) {
	action, ok := command.ParseAction(rawAction)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_action", "action must be open or close")
		return
	}
	if _, ok := a.doors.Get(key); !ok {
		writeError(w, http.StatusNotFound, "not_found", "Door not found")
		return
	}
	route, ok := a.routes.RouteFor(key)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "Door has no command topic")
		return
	}
	if !route.Addressable {
		writeError(w, http.StatusConflict, "not_addressable", "Door cannot be addressed through its topic")
		return
	}

	payload, err := encode(route, action)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encode_failed", err.Error())
		return
	}
	msg := model.Inbound{Topic: route.Topic, Payload: payload, Source: model.SourceHTTP}
	if err := a.submitter.Submit(r.Context(), msg); err != nil {
		writeError(w, http.StatusServiceUnavailable, "queue_unavailable", err.Error())
		return
	}
	a.logger.Info("manual door command queued", "door", key, "action", action.String(), "topic", route.Topic)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"ok":      true,
		"door":    key,
		"action":  action.String(),
		"topic":   route.Topic,
		"payload": string(payload),
	})
}

func encode(route router.Route, action command.Action) ([]byte, error) {
	switch route.Family {
	case model.FamilyPod:
		return command.EncodePod(action)
	case model.FamilyPort:
		return command.EncodePort(route.Leaf, action)
	default:
		return nil, fmt.Errorf("unsupported door family %q", route.Family)
	}
}

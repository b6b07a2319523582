package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/micro-ha/pod-door-controller/internal/command"
	"github.com/micro-ha/pod-door-controller/internal/door"
	"github.com/micro-ha/pod-door-controller/internal/gpio"
	"github.com/micro-ha/pod-door-controller/internal/http/handlers"
	"github.com/micro-ha/pod-door-controller/internal/model"
	"github.com/micro-ha/pod-door-controller/internal/router"
	"github.com/micro-ha/pod-door-controller/internal/storage"
)

type recordingSubmitter struct {
	mu   sync.Mutex
	msgs []model.Inbound
	err  error
}

func (s *recordingSubmitter) Submit(_ context.Context, msg model.Inbound) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.msgs = append(s.msgs, msg)
	return nil
}

type staticAudit struct {
	filter storage.ActuationFilter
	items  []model.Actuation
}

func (a *staticAudit) CountByOutcome(context.Context) (map[model.Outcome]int, error) {
	return map[model.Outcome]int{model.OutcomeExecuted: len(a.items)}, nil
}

func (a *staticAudit) ListActuations(_ context.Context, filter storage.ActuationFilter) ([]model.Actuation, error) {
	a.filter = filter
	return a.items, nil
}

type brokerFlag bool

func (b brokerFlag) Connected() bool { return bool(b) }

type apiFixture struct {
	handler   http.Handler
	submitter *recordingSubmitter
	audit     *staticAudit
}

func newAPIFixture(t *testing.T) apiFixture {
	t.Helper()

	newDoor := func(id door.Identity) *door.Door {
		return door.New(id,
			gpio.NewSimulatedLine(id.Key()+":expand"),
			gpio.NewSimulatedLine(id.Key()+":retract"),
			door.WithSleep(func(time.Duration) {}),
		)
	}
	pod := newDoor(door.Identity{Family: model.FamilyPod, DoorID: "TD01", ZoneID: "zone1"})
	leafA := newDoor(door.Identity{Family: model.FamilyPort, DoorID: "P01", Leaf: "A"})
	leafB := newDoor(door.Identity{Family: model.FamilyPort, DoorID: "P01", Leaf: "B"})

	registry := door.NewRegistry()
	routes := router.New()
	for _, d := range []*door.Door{pod, leafA, leafB} {
		if err := registry.Add(d); err != nil {
			t.Fatalf("registry add: %v", err)
		}
	}
	if err := routes.Register(router.Binding{
		Topic:   router.PodTopic("zone1", "TD01"),
		Family:  model.FamilyPod,
		Decoder: command.PodGrammar{},
		Doors:   map[string]*door.Door{"": pod},
	}); err != nil {
		t.Fatalf("register pod: %v", err)
	}
	if err := routes.Register(router.Binding{
		Topic:       router.PortTopic("P01"),
		Family:      model.FamilyPort,
		Decoder:     command.PortGrammar{Leaves: []string{"A"}},
		Doors:       map[string]*door.Door{"A": leafA},
		Unaddressed: []*door.Door{leafB},
	}); err != nil {
		t.Fatalf("register port: %v", err)
	}

	submitter := &recordingSubmitter{}
	audit := &staticAudit{items: []model.Actuation{{ID: "rec-1", DoorKey: "pod:zone1:TD01", Outcome: model.OutcomeExecuted}}}
	api := handlers.New(handlers.Deps{
		Doors:     registry,
		Routes:    routes,
		Submitter: submitter,
		Audit:     audit,
		Broker:    brokerFlag(true),
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return apiFixture{handler: NewRouter(api), submitter: submitter, audit: audit}
}

func (f apiFixture) do(method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestHealth(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(http.MethodGet, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "ok" || body["broker_connected"] != true || body["doors"] != float64(3) {
		t.Fatalf("unexpected health body: %v", body)
	}
	outcomes, _ := body["outcomes"].(map[string]any)
	if outcomes["executed"] != float64(1) {
		t.Fatalf("unexpected outcome summary: %v", body["outcomes"])
	}
}

func TestListDoors(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(http.MethodGet, "/api/doors")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Items []model.DoorView `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Items) != 3 {
		t.Fatalf("expected 3 doors, got %d", len(body.Items))
	}
	byKey := map[string]model.DoorView{}
	for _, item := range body.Items {
		byKey[item.Key] = item
	}
	if v := byKey["pod:zone1:TD01"]; v.Topic != "zone1TD01" || !v.Addressable {
		t.Fatalf("unexpected pod view: %+v", v)
	}
	if v := byKey["port:P01:B"]; v.Topic != "P01portControl" || v.Addressable {
		t.Fatalf("leaf B must be listed but not addressable: %+v", v)
	}
}

func TestCommandDoor(t *testing.T) {
	tests := []struct {
		name        string
		path        string
		wantStatus  int
		wantTopic   string
		wantPayload string
	}{
		{
			name:        "pod open",
			path:        "/api/doors/pod:zone1:TD01/open",
			wantStatus:  http.StatusAccepted,
			wantTopic:   "zone1TD01",
			wantPayload: `{"type":"DoorOpening","path":"O00000"}`,
		},
		{
			name:        "port leaf A close",
			path:        "/api/doors/port:P01:A/close",
			wantStatus:  http.StatusAccepted,
			wantTopic:   "P01portControl",
			wantPayload: `{"type":"doorControl","message":{"doorNumber":"A","signal":"0"}}`,
		},
		{name: "unknown door", path: "/api/doors/pod:zone9:TD99/open", wantStatus: http.StatusNotFound},
		{name: "leaf B is not addressable", path: "/api/doors/port:P01:B/open", wantStatus: http.StatusConflict},
		{name: "bad action", path: "/api/doors/pod:zone1:TD01/toggle", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAPIFixture(t)
			rec := f.do(http.MethodPost, tt.path)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus != http.StatusAccepted {
				if len(f.submitter.msgs) != 0 {
					t.Fatalf("nothing should be queued, got %d", len(f.submitter.msgs))
				}
				return
			}
			if len(f.submitter.msgs) != 1 {
				t.Fatalf("expected one queued message, got %d", len(f.submitter.msgs))
			}
			msg := f.submitter.msgs[0]
			if msg.Topic != tt.wantTopic || string(msg.Payload) != tt.wantPayload || msg.Source != model.SourceHTTP {
				t.Fatalf("unexpected queued message: topic=%q payload=%s source=%q", msg.Topic, msg.Payload, msg.Source)
			}
		})
	}
}

func TestCommandDoorQueueUnavailable(t *testing.T) {
	f := newAPIFixture(t)
	f.submitter.err = errors.New("queue closed")
	rec := f.do(http.MethodPost, "/api/doors/pod:zone1:TD01/open")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestListActuations(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(http.MethodGet, "/api/actuations?door=pod:zone1:TD01&limit=5")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if f.audit.filter.DoorKey != "pod:zone1:TD01" || f.audit.filter.Limit != 5 {
		t.Fatalf("unexpected filter: %+v", f.audit.filter)
	}
	var body struct {
		Items []model.Actuation `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Items) != 1 || body.Items[0].ID != "rec-1" {
		t.Fatalf("unexpected items: %+v", body.Items)
	}

	if rec := f.do(http.MethodGet, "/api/actuations?limit=abc"); rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for bad limit", rec.Code)
	}
}

func TestRecoverJSON(t *testing.T) {
	handler := RecoverJSON(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	body := decodeBody(t, rec)
	errBody, _ := body["error"].(map[string]any)
	if errBody["code"] != "internal_error" {
		t.Fatalf("unexpected error body: %v", body)
	}
}

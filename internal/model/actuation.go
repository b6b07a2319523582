package model

import "time"

const (
	SourceMQTT = "mqtt"
	SourceHTTP = "http"
)

// Inbound is one (topic, payload) pair delivered to the executor.
type Inbound struct {
	Topic      string    `json:"topic"`
	Payload    []byte    `json:"payload"`
	Source     string    `json:"source"`
	ReceivedAt time.Time `json:"received_at"`
}

// Outcome classifies how the executor finished handling one message.
type Outcome string

const (
	OutcomeExecuted         Outcome = "executed"
	OutcomeFailed           Outcome = "failed"
	OutcomeUnknownTopic     Outcome = "unknown_topic"
	OutcomeMalformedPayload Outcome = "malformed_payload"
	OutcomeUnrecognizedType Outcome = "unrecognized_type"
	OutcomeInvalidAction    Outcome = "invalid_action"
)

// Actuated reports whether the outcome touched output lines.
func (o Outcome) Actuated() bool {
	return o == OutcomeExecuted || o == OutcomeFailed
}

// Actuation is the record produced for every handled message.
type Actuation struct {
	ID         string    `json:"id"`
	Topic      string    `json:"topic"`
	Source     string    `json:"source"`
	Family     Family    `json:"family,omitempty"`
	DoorKey    string    `json:"door,omitempty"`
	Action     string    `json:"action,omitempty"`
	Outcome    Outcome   `json:"outcome"`
	Error      string    `json:"error,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Duration returns how long handling took.
func (a Actuation) Duration() time.Duration {
	if a.FinishedAt.Before(a.StartedAt) {
		return 0
	}
	return a.FinishedAt.Sub(a.StartedAt)
}

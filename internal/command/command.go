// Package command decodes door command payloads into typed commands.
package command

import "errors"

var (
	// ErrMalformedPayload means the payload is not a JSON object.
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrUnrecognizedMessageType means the type field does not match the
	// grammar of the topic the message arrived on.
	ErrUnrecognizedMessageType = errors.New("unrecognized message type")
	// ErrInvalidAction means the payload decoded but does not name a
	// known open/close instruction for an addressable leaf.
	ErrInvalidAction = errors.New("invalid action")
)

// Action is the instruction carried by a command.
type Action int

const (
	ActionInvalid Action = iota
	ActionOpen
	ActionClose
)

func (a Action) String() string {
	switch a {
	case ActionOpen:
		return "open"
	case ActionClose:
		return "close"
	default:
		return "invalid"
	}
}

// ParseAction maps "open"/"close" to an Action.
func ParseAction(raw string) (Action, bool) {
	switch raw {
	case "open":
		return ActionOpen, true
	case "close":
		return ActionClose, true
	default:
		return ActionInvalid, false
	}
}

// Command is one decoded instruction. Leaf is empty for pod doors.
type Command struct {
	Leaf   string
	Action Action
}

// Decoder turns a raw payload into a Command. A non-nil error wraps one of
// the package sentinels; Decode never panics on hostile input.
type Decoder interface {
	Decode(payload []byte) (Command, error)
}

package command

import (
	"encoding/json"
	"fmt"
)

const (
	PortMessageType = "doorControl"
	PortSignalOpen  = "1"
	PortSignalClose = "0"
)

// PortGrammar decodes
// {"type":"doorControl","message":{"doorNumber":"A","signal":"1"|"0"}}.
//
// Only leaves listed in Leaves are addressable. Signals are JSON strings;
// NumericSignal additionally accepts the integers 0 and 1.
type PortGrammar struct {
	Leaves        []string
	NumericSignal bool
}

func (g PortGrammar) Decode(payload []byte) (Command, error) {
	obj, err := decodeObject(payload)
	if err != nil {
		return Command{}, err
	}
	if err := obj.requireType(PortMessageType); err != nil {
		return Command{}, err
	}

	var message object
	if raw, ok := obj["message"]; ok {
		_ = json.Unmarshal(raw, &message)
	}
	if message == nil {
		return Command{Action: ActionInvalid}, fmt.Errorf("%w: port message %s", ErrInvalidAction, obj.raw("message"))
	}

	leaf, _ := message.str("doorNumber")
	action := g.signal(message["signal"])
	if !g.addressable(leaf) || action == ActionInvalid {
		return Command{Leaf: leaf, Action: ActionInvalid}, fmt.Errorf(
			"%w: port doorNumber %s signal %s", ErrInvalidAction, message.raw("doorNumber"), message.raw("signal"),
		)
	}
	return Command{Leaf: leaf, Action: action}, nil
}

func (g PortGrammar) addressable(leaf string) bool {
	for _, candidate := range g.Leaves {
		if candidate == leaf {
			return true
		}
	}
	return false
}

func (g PortGrammar) signal(raw json.RawMessage) Action {
	if raw == nil {
		return ActionInvalid
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		switch text {
		case PortSignalOpen:
			return ActionOpen
		case PortSignalClose:
			return ActionClose
		}
		return ActionInvalid
	}
	if !g.NumericSignal {
		return ActionInvalid
	}
	var number int
	if err := json.Unmarshal(raw, &number); err != nil {
		return ActionInvalid
	}
	switch number {
	case 1:
		return ActionOpen
	case 0:
		return ActionClose
	}
	return ActionInvalid
}

// EncodePort builds the canonical port payload for leaf and action.
func EncodePort(leaf string, action Action) ([]byte, error) {
	var signal string
	switch action {
	case ActionOpen:
		signal = PortSignalOpen
	case ActionClose:
		signal = PortSignalClose
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidAction, action)
	}
	type message struct {
		DoorNumber string `json:"doorNumber"`
		Signal     string `json:"signal"`
	}
	return json.Marshal(struct {
		Type    string  `json:"type"`
		Message message `json:"message"`
	}{Type: PortMessageType, Message: message{DoorNumber: leaf, Signal: signal}})
}

package command

import (
	"encoding/json"
	"fmt"
)

const (
	PodMessageType = "DoorOpening"
	PodOpenPath    = "O00000"
	PodClosePath   = "C00000"
)

// PodGrammar decodes {"type":"DoorOpening","path":"O00000"|"C00000"}.
type PodGrammar struct{}

func (PodGrammar) Decode(payload []byte) (Command, error) {
	obj, err := decodeObject(payload)
	if err != nil {
		return Command{}, err
	}
	if err := obj.requireType(PodMessageType); err != nil {
		return Command{}, err
	}
	path, _ := obj.str("path")
	switch path {
	case PodOpenPath:
		return Command{Action: ActionOpen}, nil
	case PodClosePath:
		return Command{Action: ActionClose}, nil
	default:
		return Command{Action: ActionInvalid}, fmt.Errorf("%w: pod path %s", ErrInvalidAction, obj.raw("path"))
	}
}

// EncodePod builds the canonical pod payload for action.
func EncodePod(action Action) ([]byte, error) {
	var path string
	switch action {
	case ActionOpen:
		path = PodOpenPath
	case ActionClose:
		path = PodClosePath
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidAction, action)
	}
	return json.Marshal(struct {
		Type string `json:"type"`
		Path string `json:"path"`
	}{Type: PodMessageType, Path: path})
}

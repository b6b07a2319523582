package command

import (
	"bytes"
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

type object map[string]json.RawMessage

func decodeObject(payload []byte) (object, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedPayload)
	}
	if !utf8.Valid(trimmed) {
		return nil, fmt.Errorf("%w: invalid UTF-8", ErrMalformedPayload)
	}
	var obj object
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if obj == nil {
		return nil, fmt.Errorf("%w: not a JSON object", ErrMalformedPayload)
	}
	return obj, nil
}

func (o object) requireType(want string) error {
	raw, ok := o["type"]
	if !ok {
		return fmt.Errorf("%w: missing type, want %q", ErrUnrecognizedMessageType, want)
	}
	var got string
	if err := json.Unmarshal(raw, &got); err != nil || got != want {
		return fmt.Errorf("%w: %s, want %q", ErrUnrecognizedMessageType, string(raw), want)
	}
	return nil
}

// str returns the string value of key and whether it was a JSON string.
func (o object) str(key string) (string, bool) {
	raw, ok := o[key]
	if !ok {
		return "", false
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", false
	}
	return value, true
}

func (o object) raw(key string) string {
	raw, ok := o[key]
	if !ok {
		return "<missing>"
	}
	return string(raw)
}

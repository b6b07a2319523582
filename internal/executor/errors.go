package executor

import "fmt"

// ActuationError means output lines could not be driven for a door.
type ActuationError struct {
	Door string
	Err  error
}

func (e *ActuationError) Error() string {
	if e == nil {
		return "actuation failed"
	}
	return fmt.Sprintf("actuate %s: %v", e.Door, e.Err)
}

func (e *ActuationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

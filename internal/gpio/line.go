// Package gpio abstracts the digital output lines that drive door actuators.
package gpio

import (
	"errors"
	"fmt"
)

var (
	// ErrPinInUse means a pin was acquired twice.
	ErrPinInUse = errors.New("pin already acquired")
	// ErrPinNotFound means the backend has no pin with the requested number.
	ErrPinNotFound = errors.New("pin not found")
)

// Line is a single actuator control signal with two states.
type Line interface {
	Name() string
	Set(engaged bool) error
	Engaged() bool
}

// Provider hands out output lines by BCM pin number.
type Provider interface {
	Acquire(pin int) (Line, error)
	// Close drives every acquired line to the disengaged state.
	Close() error
}

// PinName returns the periph/BCM name for pin, e.g. GPIO23.
func PinName(pin int) string {
	return fmt.Sprintf("GPIO%d", pin)
}

// ValidPin reports whether pin is a usable BCM GPIO number.
func ValidPin(pin int) bool {
	return pin >= 0 && pin <= 27
}

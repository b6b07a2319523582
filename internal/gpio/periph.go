package gpio

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// PeriphProvider drives real header pins through periph.io.
type PeriphProvider struct {
	mu    sync.Mutex
	lines map[int]*periphLine
}

// NewPeriphProvider initializes the host drivers. It fails when no GPIO
// capable driver could be loaded.
func NewPeriphProvider() (*PeriphProvider, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}
	return &PeriphProvider{lines: map[int]*periphLine{}}, nil
}

// Acquire looks up pin and drives it low before returning it.
func (p *PeriphProvider) Acquire(pin int) (Line, error) {
	if !ValidPin(pin) {
		return nil, fmt.Errorf("%w: %d", ErrPinNotFound, pin)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.lines[pin]; ok {
		return nil, fmt.Errorf("%w: %s", ErrPinInUse, PinName(pin))
	}
	name := PinName(pin)
	io := gpioreg.ByName(name)
	if io == nil {
		return nil, fmt.Errorf("%w: %s", ErrPinNotFound, name)
	}
	line := &periphLine{name: name, pin: io}
	if err := line.Set(false); err != nil {
		return nil, fmt.Errorf("drive %s low: %w", name, err)
	}
	p.lines[pin] = line
	return line, nil
}

func (p *PeriphProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	for _, line := range p.lines {
		if err := line.Set(false); err != nil {
			errs = append(errs, fmt.Errorf("release %s: %w", line.name, err))
		}
	}
	return errors.Join(errs...)
}

type periphLine struct {
	name string
	pin  gpio.PinIO

	mu      sync.Mutex
	engaged bool
}

func (l *periphLine) Name() string {
	return l.name
}

func (l *periphLine) Set(engaged bool) error {
	level := gpio.Low
	if engaged {
		level = gpio.High
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.pin.Out(level); err != nil {
		return err
	}
	l.engaged = engaged
	return nil
}

func (l *periphLine) Engaged() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.engaged
}

package gpio

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Transition is one recorded state change of a simulated line.
type Transition struct {
	At      time.Time
	Engaged bool
}

// SimulatedProvider hands out in-memory lines. It backs --dry-run and tests.
type SimulatedProvider struct {
	mu    sync.Mutex
	lines map[int]*SimulatedLine
	// FailPins makes Acquire fail for the listed pins.
	FailPins map[int]error
}

func NewSimulatedProvider() *SimulatedProvider {
	return &SimulatedProvider{lines: map[int]*SimulatedLine{}}
}

func (p *SimulatedProvider) Acquire(pin int) (Line, error) {
	if !ValidPin(pin) {
		return nil, fmt.Errorf("%w: %d", ErrPinNotFound, pin)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err, ok := p.FailPins[pin]; ok {
		return nil, err
	}
	if _, ok := p.lines[pin]; ok {
		return nil, fmt.Errorf("%w: %s", ErrPinInUse, PinName(pin))
	}
	line := NewSimulatedLine(PinName(pin))
	p.lines[pin] = line
	return line, nil
}

// Line returns the simulated line for pin, if acquired.
func (p *SimulatedProvider) Line(pin int) (*SimulatedLine, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	line, ok := p.lines[pin]
	return line, ok
}

func (p *SimulatedProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	for _, line := range p.lines {
		if err := line.Set(false); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SimulatedLine is an in-memory Line with a transition journal.
type SimulatedLine struct {
	name string

	mu       sync.Mutex
	engaged  bool
	journal  []Transition
	setErr   error
	failNext int
}

func NewSimulatedLine(name string) *SimulatedLine {
	return &SimulatedLine{name: name}
}

func (l *SimulatedLine) Name() string {
	return l.name
}

func (l *SimulatedLine) Set(engaged bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failNext > 0 {
		l.failNext--
		return l.setErr
	}
	l.engaged = engaged
	l.journal = append(l.journal, Transition{At: time.Now(), Engaged: engaged})
	return nil
}

func (l *SimulatedLine) Engaged() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.engaged
}

// Journal returns a copy of all recorded transitions.
func (l *SimulatedLine) Journal() []Transition {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Transition, len(l.journal))
	copy(out, l.journal)
	return out
}

// FailNext makes the next n calls to Set return err without changing state.
func (l *SimulatedLine) FailNext(n int, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failNext = n
	l.setErr = err
}

// Package door drives one door leaf through its expand and retract lines.
package door

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/micro-ha/pod-door-controller/internal/gpio"
	"github.com/micro-ha/pod-door-controller/internal/model"
)

// DefaultDwell is how long both lines stay engaged before the retract line
// is dropped to stop expansion partway.
const DefaultDwell = 2 * time.Second

// Identity names one door leaf.
type Identity struct {
	Family model.Family
	DoorID string
	ZoneID string
	Leaf   string
}

// Key is a stable, URL-safe identifier such as pod:zone1:TD01 or port:P01:A.
func (i Identity) Key() string {
	switch i.Family {
	case model.FamilyPod:
		return strings.Join([]string{string(i.Family), i.ZoneID, i.DoorID}, ":")
	default:
		return strings.Join([]string{string(i.Family), i.DoorID, i.Leaf}, ":")
	}
}

func (i Identity) String() string {
	switch i.Family {
	case model.FamilyPod:
		return fmt.Sprintf("pod door %s/%s", i.DoorID, i.ZoneID)
	default:
		return fmt.Sprintf("port door %s leaf %s", i.DoorID, i.Leaf)
	}
}

// State is a snapshot of both output lines.
type State struct {
	Expand  bool
	Retract bool
}

// Closed reports whether both lines are disengaged.
func (s State) Closed() bool {
	return !s.Expand && !s.Retract
}

// Door owns the two output lines of one leaf. Open and Close hold a per-door
// lock for their whole sequence, so two sequences never interleave.
type Door struct {
	identity Identity
	expand   gpio.Line
	retract  gpio.Line

	dwell         time.Duration
	partialTravel bool
	sleep         func(time.Duration)
	logger        *slog.Logger

	mu   sync.Mutex
	busy atomic.Bool
}

// Option customizes a Door.
type Option func(*Door)

// WithDwell sets the partial-travel dwell.
func WithDwell(d time.Duration) Option {
	return func(door *Door) {
		if d > 0 {
			door.dwell = d
		}
	}
}

// WithFullTravel disables the timed partial-travel stop; Open then leaves
// both lines engaged.
func WithFullTravel() Option {
	return func(door *Door) {
		door.partialTravel = false
	}
}

// WithSleep replaces the blocking dwell, mainly for tests.
func WithSleep(sleep func(time.Duration)) Option {
	return func(door *Door) {
		if sleep != nil {
			door.sleep = sleep
		}
	}
}

// WithLogger sets the logger used for sequence progress.
func WithLogger(logger *slog.Logger) Option {
	return func(door *Door) {
		if logger != nil {
			door.logger = logger
		}
	}
}

// New builds a Door from its identity and lines.
func New(identity Identity, expand, retract gpio.Line, opts ...Option) *Door {
	d := &Door{
		identity:      identity,
		expand:        expand,
		retract:       retract,
		dwell:         DefaultDwell,
		partialTravel: true,
		sleep:         time.Sleep,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("door", identity.Key())
	return d
}

func (d *Door) Identity() Identity {
	return d.identity
}

func (d *Door) Dwell() time.Duration {
	return d.dwell
}

func (d *Door) PartialTravel() bool {
	return d.partialTravel
}

// Busy reports whether an Open or Close sequence is in progress.
func (d *Door) Busy() bool {
	return d.busy.Load()
}

// State returns the current state of both lines.
func (d *Door) State() State {
	return State{Expand: d.expand.Engaged(), Retract: d.retract.Engaged()}
}

// View returns the API read model; topic and addressable come from routing.
func (d *Door) View(topic string, addressable bool) model.DoorView {
	return model.DoorView{
		Key:         d.identity.Key(),
		Family:      d.identity.Family,
		DoorID:      d.identity.DoorID,
		ZoneID:      d.identity.ZoneID,
		Leaf:        d.identity.Leaf,
		Topic:       topic,
		Addressable: addressable,
		Busy:        d.Busy(),
		Expand:      model.LineState{Name: d.expand.Name(), Engaged: d.expand.Engaged()},
		Retract:     model.LineState{Name: d.retract.Name(), Engaged: d.retract.Engaged()},
	}
}

// Open engages both lines, waits the dwell, then drops retract so expansion
// stops partway. The dwell is not cancellable. If a line cannot be driven the
// door is closed again before the error is returned.
func (d *Door) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.busy.Store(true)
	defer d.busy.Store(false)

	d.logger.Info("opening door", "dwell_ms", d.dwell.Milliseconds(), "partial_travel", d.partialTravel)
	if err := d.setBoth(true); err != nil {
		return d.abort("engage lines", err)
	}
	if !d.partialTravel {
		d.logger.Info("door opened")
		return nil
	}

	d.sleep(d.dwell)

	if err := d.retract.Set(false); err != nil {
		return d.abort("stop expansion", err)
	}
	d.logger.Info("door expansion stopped midway")
	return nil
}

// Close disengages both lines and relies on the mechanical end-stop.
func (d *Door) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.busy.Store(true)
	defer d.busy.Store(false)

	if err := d.setBoth(false); err != nil {
		return fmt.Errorf("close %s: %w", d.identity, err)
	}
	d.logger.Info("door closed")
	return nil
}

func (d *Door) setBoth(engaged bool) error {
	var errs []error
	if err := d.expand.Set(engaged); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", d.expand.Name(), err))
	}
	if err := d.retract.Set(engaged); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", d.retract.Name(), err))
	}
	return errors.Join(errs...)
}

// abort is called with d.mu held.
func (d *Door) abort(step string, cause error) error {
	err := fmt.Errorf("open %s: %s: %w", d.identity, step, cause)
	if releaseErr := d.setBoth(false); releaseErr != nil {
		d.logger.Error("failed to release door after open failure", "err", releaseErr)
		return errors.Join(err, releaseErr)
	}
	d.logger.Warn("door released after open failure", "err", cause)
	return err
}

// Package router maps inbound topics to the doors and grammar they address.
package router

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/micro-ha/pod-door-controller/internal/command"
	"github.com/micro-ha/pod-door-controller/internal/door"
	"github.com/micro-ha/pod-door-controller/internal/model"
)

// ErrUnknownTopic means no binding is registered for a topic.
var ErrUnknownTopic = errors.New("unknown topic")

// PodTopic is {zoneId}{podId}, e.g. zone1TD01.
func PodTopic(zoneID, podID string) string {
	return zoneID + podID
}

// PortTopic is {portId}portControl, e.g. P01portControl.
func PortTopic(portID string) string {
	return portID + "portControl"
}

// Binding associates one topic with its grammar and addressable doors.
// Doors is keyed by leaf; pod bindings use the empty leaf. Unaddressed holds
// doors configured under the topic that its grammar cannot reach.
type Binding struct {
	Topic       string
	Family      model.Family
	Decoder     command.Decoder
	Doors       map[string]*door.Door
	Unaddressed []*door.Door
}

// Target resolves the door a decoded command addresses.
func (b Binding) Target(cmd command.Command) (*door.Door, error) {
	d, ok := b.Doors[cmd.Leaf]
	if !ok {
		return nil, fmt.Errorf("%w: no door for leaf %q on %s", command.ErrInvalidAction, cmd.Leaf, b.Topic)
	}
	return d, nil
}

// Router is a read-mostly table of bindings, built at startup.
type Router struct {
	mu       sync.RWMutex
	bindings map[string]Binding
}

func New() *Router {
	return &Router{bindings: map[string]Binding{}}
}

// Register adds b. Topics are unique.
func (r *Router) Register(b Binding) error {
	if b.Topic == "" {
		return errors.New("binding topic is required")
	}
	if b.Decoder == nil {
		return fmt.Errorf("binding %s: decoder is required", b.Topic)
	}
	if len(b.Doors) == 0 {
		return fmt.Errorf("binding %s: at least one door is required", b.Topic)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.bindings[b.Topic]; exists {
		return fmt.Errorf("binding %s already registered", b.Topic)
	}
	r.bindings[b.Topic] = b
	return nil
}

// Resolve returns the binding for topic. Matching is exact and case-sensitive.
func (r *Router) Resolve(topic string) (Binding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bindings[topic]
	if !ok {
		return Binding{}, fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
	}
	return b, nil
}

// Topics lists registered topics in sorted order.
func (r *Router) Topics() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.bindings))
	for topic := range r.bindings {
		out = append(out, topic)
	}
	sort.Strings(out)
	return out
}

// Route describes how a door is reached: its topic and whether the topic's
// grammar can address it.
type Route struct {
	Topic       string
	Family      model.Family
	Leaf        string
	Addressable bool
}

// RouteFor finds the route of the door identified by key.
func (r *Router) RouteFor(key string) (Route, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, b := range r.bindings {
		for leaf, d := range b.Doors {
			if d.Identity().Key() == key {
				return Route{Topic: b.Topic, Family: b.Family, Leaf: leaf, Addressable: true}, true
			}
		}
		for _, d := range b.Unaddressed {
			if d.Identity().Key() == key {
				return Route{Topic: b.Topic, Family: b.Family, Leaf: d.Identity().Leaf}, true
			}
		}
	}
	return Route{}, false
}

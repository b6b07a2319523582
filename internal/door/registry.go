package door

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Registry holds every constructed door, addressable or not.
type Registry struct {
	mu    sync.RWMutex
	doors map[string]*Door
}

func NewRegistry() *Registry {
	return &Registry{doors: map[string]*Door{}}
}

// Add registers d; keys must be unique.
func (r *Registry) Add(d *Door) error {
	key := d.Identity().Key()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.doors[key]; exists {
		return fmt.Errorf("door %s already registered", key)
	}
	r.doors[key] = d
	return nil
}

func (r *Registry) Get(key string) (*Door, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.doors[key]
	return d, ok
}

// List returns doors sorted by key.
func (r *Registry) List() []*Door {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Door, 0, len(r.doors))
	for _, d := range r.doors {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Identity().Key() < out[j].Identity().Key()
	})
	return out
}

// ReleaseAll closes every door. It waits for in-flight sequences.
func (r *Registry) ReleaseAll() error {
	var errs []error
	for _, d := range r.List() {
		if err := d.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

package strategy

import (
	"fmt"
	"sync"
)

// Registry keeps strategies in registration order. Engine cycles read a
// snapshot through Strategies while a config reload may swap entries.
type Registry struct {
	mu    sync.RWMutex
	order []string
	items map[string]Strategy
}

func NewRegistry(strategies ...Strategy) (*Registry, error) {
	r := &Registry{items: make(map[string]Strategy)}
	for _, s := range strategies {
		if err := r.Register(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register appends s. Names must be unique.
func (r *Registry) Register(s Strategy) error {
	if s == nil {
		return fmt.Errorf("strategy is nil")
	}
	name := s.Name()
	if name == "" {
		return fmt.Errorf("strategy name is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[name]; ok {
		return fmt.Errorf("strategy %s already registered", name)
	}
	r.items[name] = s
	r.order = append(r.order, name)
	return nil
}

// Replace swaps the strategy with the same name in place, or appends it when
// absent. It reports whether an existing entry was replaced.
func (r *Registry) Replace(s Strategy) bool {
	if s == nil || s.Name() == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	name := s.Name()
	_, existed := r.items[name]
	r.items[name] = s
	if !existed {
		r.order = append(r.order, name)
	}
	return existed
}

func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[name]; !ok {
		return false
	}
	delete(r.items, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Reset replaces the whole set, keeping the order given.
func (r *Registry) Reset(strategies []Strategy) error {
	next, err := NewRegistry(strategies...)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = next.order
	r.items = next.items
	return nil
}

func (r *Registry) Get(name string) (Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.items[name]
	return s, ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Strategies returns the current set in registration order.
func (r *Registry) Strategies() []Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Strategy, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.items[name])
	}
	return out
}

// Evaluate runs every strategy over in and concatenates their signals.
func (r *Registry) Evaluate(in Input) []Signal {
	var out []Signal
	for _, s := range r.Strategies() {
		out = append(out, s.GenerateSignals(in)...)
	}
	return out
}

package permission

import (
	"errors"
	"sort"
	"strings"
	"sync"
)

// Aggregates holds named unions of primitive capabilities ("roles").
//
// Aggregates are configured during initialization and then frozen; after
// [Aggregates.Freeze] every method is safe for concurrent use.
type Aggregates struct {
	registry *Registry

	mu     sync.RWMutex
	masks  map[string]Mask
	names  map[string]string
	frozen bool
}

// NewAggregates creates an empty table whose members are validated against registry.
func NewAggregates(registry *Registry) *Aggregates {
	return &Aggregates{
		registry: registry,
		masks:    make(map[string]Mask),
		names:    make(map[string]string),
	}
}

// Register defines name as the union of the named primitive capabilities.
func (a *Aggregates) Register(name string, capabilities []string) error {
	var m Mask
	for _, c := range capabilities {
		bit, ok := a.registry.Bit(c)
		if !ok {
			return errors.Join(ErrUnknownName, errors.New(c))
		}
		m |= 1 << bit
	}
	return a.RegisterMask(name, m)
}

// RegisterMask defines name as m directly.
func (a *Aggregates) RegisterMask(name string, m Mask) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.frozen {
		return ErrRegistryFrozen
	}
	if name == "" {
		return errors.New("permission: aggregate name empty")
	}
	key := strings.ToLower(name)
	if _, exists := a.masks[key]; exists {
		return errors.New("permission: aggregate already registered: " + name)
	}
	if _, clash := a.registry.Bit(name); clash {
		return errors.New("permission: aggregate name shadows capability: " + name)
	}

	a.masks[key] = m
	a.names[key] = name
	return nil
}

// Mask returns the union registered under name.
func (a *Aggregates) Mask(name string) (Mask, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	m, ok := a.masks[strings.ToLower(name)]
	return m, ok
}

// Names returns registered aggregate names sorted alphabetically.
func (a *Aggregates) Names() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, 0, len(a.names))
	for _, n := range a.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Freeze prevents further registrations.
func (a *Aggregates) Freeze() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.frozen = true
}

// Count returns the number of registered aggregates.
func (a *Aggregates) Count() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.masks)
}

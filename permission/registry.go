package permission

import (
	"errors"
	"strings"
	"sync"
)

var (
	// ErrUnknownName is returned when a capability or aggregate name is not registered.
	ErrUnknownName = errors.New("permission: unknown name")
	// ErrRegistryFrozen is returned by mutations after Freeze.
	ErrRegistryFrozen = errors.New("permission: registry frozen")
)

// Registry maps capability names to their bits. Names are matched
// case-insensitively; the registered spelling is what [Registry.Name] returns.
type Registry struct {
	mu        sync.RWMutex
	nameToBit map[string]int
	bitToName map[int]string
	frozen    bool
}

// NewRegistry creates an empty [Registry].
func NewRegistry() *Registry {
	return &Registry{
		nameToBit: make(map[string]int),
		bitToName: make(map[int]string),
	}
}

// Register assigns the next available bit to the named capability and
// returns it. Must be called before [Registry.Freeze].
func (r *Registry) Register(name string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return -1, ErrRegistryFrozen
	}
	if name == "" {
		return -1, errors.New("permission: name cannot be empty")
	}
	key := strings.ToLower(name)
	if _, exists := r.nameToBit[key]; exists {
		return -1, errors.New("permission: already registered: " + name)
	}

	nextBit := len(r.nameToBit)
	if nextBit >= 64 {
		return -1, errors.New("permission: limit exceeded")
	}

	r.nameToBit[key] = nextBit
	r.bitToName[nextBit] = name
	return nextBit, nil
}

// Bit returns the bit index for the named capability.
func (r *Registry) Bit(name string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bit, ok := r.nameToBit[strings.ToLower(name)]
	return bit, ok
}

// Name returns the capability name registered for bit.
func (r *Registry) Name(bit int) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.bitToName[bit]
	return name, ok
}

// Freeze prevents further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Count returns the number of registered capabilities.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nameToBit)
}

var (
	defaultOnce       sync.Once
	defaultRegistry   *Registry
	defaultAggregates *Aggregates
)

func defaults() (*Registry, *Aggregates) {
	defaultOnce.Do(func() {
		reg := NewRegistry()
		for _, name := range primitiveNames {
			if _, err := reg.Register(name); err != nil {
				panic(err)
			}
		}
		reg.Freeze()

		agg := NewAggregates(reg)
		for _, a := range []struct {
			name string
			mask Mask
		}{
			{"BasicUser", BasicUser},
			{"ProductManager", ProductManager},
			{"UserManager", UserManager},
			{"SystemAdmin", SystemAdmin},
			{"Administrator", Administrator},
		} {
			if err := agg.RegisterMask(a.name, a.mask); err != nil {
				panic(err)
			}
		}
		agg.Freeze()

		defaultRegistry, defaultAggregates = reg, agg
	})
	return defaultRegistry, defaultAggregates
}

// DefaultRegistry returns the frozen registry of the built-in capabilities.
func DefaultRegistry() *Registry {
	reg, _ := defaults()
	return reg
}

// DefaultAggregates returns the frozen table of built-in aggregates.
func DefaultAggregates() *Aggregates {
	_, agg := defaults()
	return agg
}

// Parse resolves a primitive or aggregate name to its mask.
func Parse(name string) (Mask, bool) {
	reg, agg := defaults()
	if bit, ok := reg.Bit(name); ok {
		return 1 << bit, true
	}
	return agg.Mask(name)
}

// ParseList resolves and unions every name. It fails on the first unknown name.
func ParseList(names []string) (Mask, error) {
	var m Mask
	for _, name := range names {
		c, ok := Parse(strings.TrimSpace(name))
		if !ok {
			return None, errors.Join(ErrUnknownName, errors.New(name))
		}
		m |= c
	}
	return m, nil
}

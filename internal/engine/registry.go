package engine

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrDuplicateKind is returned when an engine kind is registered twice.
// Duplicate registration is a startup bug, not a runtime condition.
var ErrDuplicateKind = errors.New("engine kind already registered")

// ErrNoEngineAvailable is returned when selection finds no ready engine.
// Any correctly assembled registry contains the always-ready local engine,
// so this indicates a wiring error.
var ErrNoEngineAvailable = errors.New("no engine available")

// Registry holds the fixed set of known engines. It is written once during
// startup and read on every selection cycle afterwards.
type Registry struct {
	mu      sync.RWMutex
	engines map[string]Engine
}

// NewRegistry creates an empty engine registry.
func NewRegistry() *Registry {
	return &Registry{
		engines: make(map[string]Engine),
	}
}

// Register adds an engine to the registry. Registering a kind that is
// already present fails with ErrDuplicateKind.
func (r *Registry) Register(e Engine) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.engines[e.Kind()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateKind, e.Kind())
	}
	r.engines[e.Kind()] = e
	return nil
}

// Get returns the engine registered under the given kind.
func (r *Registry) Get(kind string) (Engine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.engines[kind]
	return e, ok
}

// List returns the registered engines ordered by rank, highest priority
// (lowest rank) first. Selection iterates this order and picks the first
// ready engine.
func (r *Registry) List() []Engine {
	r.mu.RLock()
	defer r.mu.RUnlock()

	engines := make([]Engine, 0, len(r.engines))
	for _, e := range r.engines {
		engines = append(engines, e)
	}
	sort.Slice(engines, func(i, j int) bool {
		return engines[i].Rank() < engines[j].Rank()
	})
	return engines
}

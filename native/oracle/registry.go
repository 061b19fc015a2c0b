package oracle

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry resolves oracle references by name.
type Registry struct {
	mu      sync.RWMutex
	oracles map[string]PriceOracle
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{oracles: make(map[string]PriceOracle)}
}

// Register adds or replaces the oracle stored under name.
func (r *Registry) Register(name string, o PriceOracle) error {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return fmt.Errorf("oracle registry: name required")
	}
	if o == nil {
		return fmt.Errorf("oracle registry: nil oracle for %s", key)
	}
	r.mu.Lock()
	r.oracles[key] = o
	r.mu.Unlock()
	return nil
}

// Resolve returns the oracle registered under name.
func (r *Registry) Resolve(name string) (PriceOracle, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	r.mu.RLock()
	o, ok := r.oracles[key]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("oracle registry: %q not registered", name)
	}
	return o, nil
}

// Names lists the registered oracle names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.oracles))
	for name := range r.oracles {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

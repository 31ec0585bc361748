// Package registry provides a central registry of migration units.
package registry

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/deliverus/deliverus-schema/pkg/migration"
)

// Registry is a thread-safe registry of migration units keyed by version.
type Registry struct {
	mu    sync.RWMutex
	units map[string]migration.Unit
}

// NewRegistry creates a new Registry instance.
func NewRegistry() *Registry {
	return &Registry{
		units: make(map[string]migration.Unit),
	}
}

// Register adds a unit. Versions must be unique.
func (r *Registry) Register(unit migration.Unit) error {
	if unit == nil {
		return fmt.Errorf("unit must not be nil")
	}
	if unit.Version() == "" {
		return fmt.Errorf("unit %q has no version", unit.Name())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.units[unit.Version()]; ok {
		return fmt.Errorf("version %s already registered by %q", unit.Version(), existing.Name())
	}

	r.units[unit.Version()] = unit
	return nil
}

// MustRegister is like Register but panics on error. Intended for init functions.
func (r *Registry) MustRegister(unit migration.Unit) {
	if err := r.Register(unit); err != nil {
		panic(err)
	}
}

// Get retrieves a unit by version.
func (r *Registry) Get(version string) (migration.Unit, error) {
	r.mu.RLock()
	unit, ok := r.units[version]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("migration %s not registered", version)
	}

	return unit, nil
}

// All returns all registered units ordered by version.
func (r *Registry) All() []migration.Unit {
	r.mu.RLock()
	defer r.mu.RUnlock()

	units := make([]migration.Unit, 0, len(r.units))
	for _, version := range slices.Sorted(maps.Keys(r.units)) {
		units = append(units, r.units[version])
	}

	return units
}

// Has checks if a version is registered.
func (r *Registry) Has(version string) bool {
	r.mu.RLock()
	_, ok := r.units[version]
	r.mu.RUnlock()

	return ok
}

// Len returns the number of registered units.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.units)
}

// Clear removes all registered units.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.units = make(map[string]migration.Unit)
}

// globalRegistry is the default global registry instance.
var globalRegistry = NewRegistry()

// Register registers a unit in the global registry.
func Register(unit migration.Unit) error {
	return globalRegistry.Register(unit)
}

// MustRegister registers a unit in the global registry, panicking on error.
func MustRegister(unit migration.Unit) {
	globalRegistry.MustRegister(unit)
}

// Get retrieves a unit from the global registry.
func Get(version string) (migration.Unit, error) {
	return globalRegistry.Get(version)
}

// All returns all units of the global registry ordered by version.
func All() []migration.Unit {
	return globalRegistry.All()
}

// Has checks if a version is registered in the global registry.
func Has(version string) bool {
	return globalRegistry.Has(version)
}

// Clear clears the global registry.
func Clear() {
	globalRegistry.Clear()
}

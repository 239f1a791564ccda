package backend

import (
	"sync"

	"github.com/gogpu/cmdq/gpucore"
)

// registry holds registered backends.
var (
	registryMu sync.RWMutex
	backends   = make(map[string]Factory)
	// Priority order for backend selection (first match wins).
	// Native > Sim (native drives real hardware, sim is the fallback).
	backendPriority = []string{BackendNative, BackendSim}
)

// Register registers an adapter factory with the given name.
// This is typically called from init() functions in backend packages.
// If a backend with the same name is already registered, it will be replaced.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	backends[name] = factory
}

// Unregister removes a backend from the registry.
// This is useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(backends, name)
}

// Available returns a list of registered backend names.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	return names
}

// IsRegistered checks if a backend with the given name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := backends[name]
	return ok
}

// Get returns an adapter instance by name.
// Returns nil if the backend is not registered.
func Get(name string) gpucore.Adapter {
	registryMu.RLock()
	defer registryMu.RUnlock()

	factory, ok := backends[name]
	if !ok {
		return nil
	}
	return factory()
}

// Select returns the highest-priority adapter whose shader format set
// intersects formats. Backends outside the priority list are
// considered last, in map order.
//
// Returns ErrNoFormatMatch if every registered backend is disjoint
// from the requested set.
func Select(formats gpucore.ShaderFormat) (gpucore.Adapter, error) {
	matches := SelectAll(formats)
	if len(matches) == 0 {
		return nil, ErrNoFormatMatch
	}
	return matches[0], nil
}

// SelectAll returns every adapter whose shader format set intersects
// formats, in priority order. Callers that can recover from an adapter
// failing to open try the next entry.
func SelectAll(formats gpucore.ShaderFormat) []gpucore.Adapter {
	registryMu.RLock()
	defer registryMu.RUnlock()

	var matches []gpucore.Adapter
	tried := make(map[string]bool, len(backends))
	for _, name := range backendPriority {
		factory, ok := backends[name]
		if !ok {
			continue
		}
		tried[name] = true
		if a := factory(); a != nil && a.ShaderFormats().Intersects(formats) {
			matches = append(matches, a)
		}
	}

	for name, factory := range backends {
		if tried[name] {
			continue
		}
		if a := factory(); a != nil && a.ShaderFormats().Intersects(formats) {
			matches = append(matches, a)
		}
	}

	return matches
}

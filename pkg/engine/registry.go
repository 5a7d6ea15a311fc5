// pkg/engine/registry.go
// Package engine provides the module contract, the registry and the
// sequential orchestrator that runs extraction modules against one tab.
package engine

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ModuleFactory creates a fresh module instance.
type ModuleFactory func() Module

var (
	factoriesMu     sync.RWMutex
	moduleFactories = make(map[string]ModuleFactory)
)

// RegisterModuleFactory adds a module factory to the global table. Module
// packages call it from init. Overwriting an id is allowed and logged.
func RegisterModuleFactory(id string, factory ModuleFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	if _, exists := moduleFactories[id]; exists {
		log.Warn().Str("component", "engine.registry").Str("module", id).Msg("module factory overwritten")
	}
	moduleFactories[id] = factory
}

// RegisteredModuleIDs returns the ids of all registered factories, sorted.
func RegisteredModuleIDs() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	ids := make([]string, 0, len(moduleFactories))
	for id := range moduleFactories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// NewModule instantiates the module registered under id.
func NewModule(id string) (Module, error) {
	factoriesMu.RLock()
	factory, ok := moduleFactories[id]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no module factory registered for id: %s", id)
	}
	return factory(), nil
}

// Registry maps module ids to instances and remembers the order of the last
// Enable call.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]Module
	enabled []string
	logger  zerolog.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		modules: make(map[string]Module),
		logger:  logger.With().Str("component", "engine.registry").Logger(),
	}
}

// NewDefaultRegistry instantiates every registered factory.
func NewDefaultRegistry(logger zerolog.Logger) *Registry {
	r := NewRegistry(logger)
	for _, id := range RegisteredModuleIDs() {
		m, err := NewModule(id)
		if err != nil {
			continue
		}
		r.Register(id, m)
	}
	return r
}

// Register inserts m under id. Re-registering an id replaces the previous
// instance and is only logged.
func (r *Registry) Register(id string, m Module) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.modules[id]; exists {
		r.logger.Warn().Str("module", id).Msg("module re-registered, replacing previous instance")
	}
	if v := m.Descriptor().Version; v != "" {
		if _, err := semver.NewVersion(v); err != nil {
			r.logger.Warn().Str("module", id).Str("version", v).Msg("module version is not valid semver")
		}
	}
	r.modules[id] = m
}

// Module returns the instance registered under id.
func (r *Registry) Module(id string) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[id]
	return m, ok
}

// Enable replaces the enabled set with ids, keeping their order. Unknown
// ids are skipped with a warning and duplicates are dropped. It returns the
// modules now enabled.
func (r *Registry) Enable(ids []string) []Module {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]bool, len(ids))
	enabled := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		if _, ok := r.modules[id]; !ok {
			r.logger.Warn().Str("module", id).Msg("unknown module id skipped")
			continue
		}
		seen[id] = true
		enabled = append(enabled, id)
	}
	r.enabled = enabled
	return r.modulesFor(enabled)
}

// EnabledInOrder returns the enabled modules in the order given to the last
// Enable call.
func (r *Registry) EnabledInOrder() []Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.modulesFor(r.enabled)
}

// Resolve maps ids to modules without touching the enabled set, skipping
// unknown ids the same way Enable does.
func (r *Registry) Resolve(ids []string) []Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Module
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if m, ok := r.modules[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, m)
		}
	}
	return out
}

// Descriptors lists every registered module sorted by output filename, with
// Enabled reflecting the last Enable call.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	on := make(map[string]bool, len(r.enabled))
	for _, id := range r.enabled {
		on[id] = true
	}
	out := make([]Descriptor, 0, len(r.modules))
	for id, m := range r.modules {
		d := m.Descriptor()
		d.Enabled = on[id]
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return FilenameFor(out[i].ID) < FilenameFor(out[j].ID) })
	return out
}

// Configure passes options to every Configurable module. optionsFor returns
// the options for one id.
func (r *Registry) Configure(optionsFor func(id string) map[string]any) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, m := range r.modules {
		c, ok := m.(Configurable)
		if !ok {
			continue
		}
		if err := c.Configure(optionsFor(id)); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) modulesFor(ids []string) []Module {
	out := make([]Module, 0, len(ids))
	for _, id := range ids {
		if m, ok := r.modules[id]; ok {
			out = append(out, m)
		}
	}
	return out
}

// Package registry holds the session's command registry: the map from
// command id to matching material, built once per session from one or more
// declaration sources and read-only until an explicit reload.
package registry

import (
	"fmt"
	"sync"

	"slashsense/internal/logging"
	"slashsense/internal/types"
)

// =============================================================================
// ERRORS
// =============================================================================

// RegistryError is a build-time fatal error: the registry cannot be used.
type RegistryError struct {
	CommandID string
	Reason    string
}

func (e *RegistryError) Error() string {
	return fmt.Sprintf("registry: command %q: %s", e.CommandID, e.Reason)
}

// NotFoundError signals a lookup for an unknown command id.
type NotFoundError struct {
	CommandID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("registry: command %q not found", e.CommandID)
}

// =============================================================================
// COMMAND SOURCE CAPABILITY
// =============================================================================

// CommandSource is anything that can provide a sequence of command
// declarations. Adapters exist for static collections, markdown frontmatter
// directories, and mappings JSON files; the registry itself does no I/O.
type CommandSource interface {
	// Name identifies the source in logs and errors.
	Name() string

	// Declarations returns the raw command specs in a stable order.
	Declarations() ([]types.CommandSpec, error)
}

// =============================================================================
// REGISTRY
// =============================================================================

// Registry is the immutable-between-reloads command table.
// Safe for concurrent reads; Load/Reload swap state under a write lock and
// must not race an in-flight detection in the same session (callers reload
// only at session start or on an explicit signal).
type Registry struct {
	mu    sync.RWMutex
	specs map[string]types.CommandSpec
	order []string // insertion order of first appearance
}

// New returns an empty registry. Call Load before use.
func New() *Registry {
	return &Registry{specs: make(map[string]types.CommandSpec)}
}

// Load ingests declarations from the given sources, in order. Later sources
// overwrite earlier ones by id (the id keeps its original position in the
// iteration order). A command with zero usable trigger material fails the
// whole load with a *RegistryError.
func (r *Registry) Load(sources ...CommandSource) error {
	timer := logging.StartTimer(logging.CategoryRegistry, "Registry.Load")
	defer timer.Stop()

	specs := make(map[string]types.CommandSpec)
	var order []string

	for _, src := range sources {
		decls, err := src.Declarations()
		if err != nil {
			return fmt.Errorf("registry: source %s: %w", src.Name(), err)
		}
		logging.RegistryDebug("source %s provided %d declarations", src.Name(), len(decls))

		for _, d := range decls {
			if d.ID == "" {
				return &RegistryError{CommandID: "", Reason: fmt.Sprintf("empty command id from source %s", src.Name())}
			}
			if !d.HasTriggerMaterial() {
				return &RegistryError{CommandID: d.ID, Reason: "no trigger phrases, patterns, or prototypes"}
			}
			if _, seen := specs[d.ID]; !seen {
				order = append(order, d.ID)
			}
			specs[d.ID] = d.Clone()
		}
	}

	r.mu.Lock()
	r.specs = specs
	r.order = order
	r.mu.Unlock()

	logging.Registry("registry loaded: %d commands from %d sources", len(order), len(sources))
	return nil
}

// Reload rebuilds the registry from new sources. Same contract as Load; on
// source failure the previous table is kept.
func (r *Registry) Reload(sources ...CommandSource) error {
	return r.Load(sources...)
}

// All returns the specs in stable insertion order. The slice and its specs
// are copies; callers may range and restart freely.
func (r *Registry) All() []types.CommandSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.CommandSpec, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.specs[id].Clone())
	}
	return out
}

// Get returns the spec for an id, or a *NotFoundError.
func (r *Registry) Get(id string) (types.CommandSpec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	spec, ok := r.specs[id]
	if !ok {
		return types.CommandSpec{}, &NotFoundError{CommandID: id}
	}
	return spec.Clone(), nil
}

// Len returns the number of registered commands.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

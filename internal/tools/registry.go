// ABOUTME: Thread-safe registry mapping tool ids to tool instances.
// ABOUTME: Enforces id uniqueness and preserves registration order for listing.

package tools

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrDuplicateTool indicates a tool with the same id is already registered.
var ErrDuplicateTool = errors.New("tool already registered")

// Registry maintains the set of registered tools. Registration happens during
// startup, before any session begins serving; lookups and listings run
// concurrently from every session afterwards.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	order  []string
	logger *slog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:  make(map[string]Tool),
		logger: logger,
	}
}

// Register stores a tool, making it discoverable and callable.
// Returns ErrDuplicateTool if the id already exists; prior state is untouched.
func (r *Registry) Register(t Tool) error {
	desc := t.Descriptor()
	if desc.ID == "" {
		return errors.New("tool id is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[desc.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, desc.ID)
	}
	r.tools[desc.ID] = t
	r.order = append(r.order, desc.ID)

	r.logger.Info("registered tool", "tool_id", desc.ID)
	return nil
}

// Get looks up a tool by id. Absence is not an error.
func (r *Registry) Get(id string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[id]
	return t, ok
}

// List returns a snapshot of all descriptors in registration order.
// Only descriptor data is exposed, never live tool references.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descs := make([]Descriptor, 0, len(r.order))
	for _, id := range r.order {
		descs = append(descs, r.tools[id].Descriptor())
	}
	return descs
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

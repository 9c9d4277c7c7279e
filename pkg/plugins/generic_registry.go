package plugins

import (
	"fmt"
	"sync"
)

// namedRegistry is the generic read-mostly, name-indexed store every
// plugin registry in Registries is built from (spec §4.3 "Registries are
// read-only after process start"). Collapsed directly into this package
// rather than kept as a standalone pkg/registry: nothing outside the
// five registries below ever instantiated it, so a separate package
// bought no reuse, only an extra import to follow.
type namedRegistry[T any] struct {
	mu    sync.RWMutex
	items map[string]T
}

func newNamedRegistry[T any]() *namedRegistry[T] {
	return &namedRegistry[T]{items: make(map[string]T)}
}

// Register adds item under name, failing if name is empty or already
// taken — registration happens once at process start, so a collision
// is a startup bug, not a runtime race to tolerate silently.
func (r *namedRegistry[T]) Register(name string, item T) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[name]; exists {
		return fmt.Errorf("item with name %q already registered", name)
	}
	r.items[name] = item
	return nil
}

func (r *namedRegistry[T]) Get(name string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, exists := r.items[name]
	return item, exists
}

func (r *namedRegistry[T]) List() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	items := make([]T, 0, len(r.items))
	for _, item := range r.items {
		items = append(items, item)
	}
	return items
}

func (r *namedRegistry[T]) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.items[name]; !exists {
		return fmt.Errorf("item %q not found", name)
	}
	delete(r.items, name)
	return nil
}

func (r *namedRegistry[T]) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Names returns every registered name, in no particular order.
func (r *namedRegistry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.items))
	for name := range r.items {
		names = append(names, name)
	}
	return names
}

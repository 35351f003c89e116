package hxpage

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps widget and layout names to their definitions.
//
// Child widgets are referenced by name and resolved here at discovery time,
// after the parent has fetched, so a parent can pick which child to show
// from its data. Registration happens at startup; lookups are safe for
// concurrent use.
type Registry struct {
	mu      sync.RWMutex
	widgets map[string]Definition
	layouts map[string]*Layout
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		widgets: make(map[string]Definition),
		layouts: make(map[string]*Layout),
	}
}

// Add registers widget definitions.
// Panics on an empty name or a name collision: both are programmer errors
// that should fail at startup rather than during a request.
func (reg *Registry) Add(defs ...Definition) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	for _, def := range defs {
		name := def.Name()
		if name == "" {
			panic(fmt.Sprintf("hxpage: widget %T has no name", def))
		}
		if _, exists := reg.widgets[name]; exists {
			panic(fmt.Sprintf("hxpage: widget name collision for %q", name))
		}
		reg.widgets[name] = def
	}
}

// AddLayout registers layouts. Panics on a name collision.
func (reg *Registry) AddLayout(layouts ...*Layout) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	for _, l := range layouts {
		if _, exists := reg.layouts[l.Name]; exists {
			panic(fmt.Sprintf("hxpage: layout name collision for %q", l.Name))
		}
		reg.layouts[l.Name] = l
	}
}

// Widget looks up a widget definition by name.
func (reg *Registry) Widget(name string) (Definition, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	def, ok := reg.widgets[name]
	return def, ok
}

// Layout looks up a layout by name.
func (reg *Registry) Layout(name string) (*Layout, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	l, ok := reg.layouts[name]
	return l, ok
}

// WidgetNames returns the registered widget names, sorted.
func (reg *Registry) WidgetNames() []string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	names := make([]string, 0, len(reg.widgets))
	for name := range reg.widgets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

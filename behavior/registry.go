package behavior

import (
	"fmt"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Registry is the metadata store a bridge enumerates. It maps class names to
// class descriptions and bus names to event buses. The registry itself is not
// safe for concurrent mutation; populate it before handing it to a bridge.
type Registry struct {
	classes map[string]*Class
	buses   map[string]*EBus
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		classes: make(map[string]*Class),
		buses:   make(map[string]*EBus),
	}
}

// AddClass registers a class description. Names must be unique.
func (r *Registry) AddClass(c *Class) error {
	if c == nil || c.Name == "" {
		return fmt.Errorf("behavior: class must have a name")
	}
	if _, ok := r.classes[c.Name]; ok {
		return fmt.Errorf("behavior: class %q already registered", c.Name)
	}
	if c.Allocate == nil {
		return fmt.Errorf("behavior: class %q has no allocator", c.Name)
	}
	r.classes[c.Name] = c
	return nil
}

// Class returns the named class, or nil.
func (r *Registry) Class(name string) *Class {
	return r.classes[name]
}

// ClassByType returns the class with the given type id, or nil.
func (r *Registry) ClassByType(t TypeID) *Class {
	for _, c := range r.classes {
		if c.Type == t {
			return c
		}
	}
	return nil
}

// Classes returns every registered class, name-sorted so enumeration order is
// deterministic.
func (r *Registry) Classes() []*Class {
	names := maps.Keys(r.classes)
	slices.Sort(names)
	out := make([]*Class, 0, len(names))
	for _, n := range names {
		out = append(out, r.classes[n])
	}
	return out
}

// AddBus registers an event bus. Names must be unique.
func (r *Registry) AddBus(b *EBus) error {
	if b == nil || b.Name == "" {
		return fmt.Errorf("behavior: bus must have a name")
	}
	if _, ok := r.buses[b.Name]; ok {
		return fmt.Errorf("behavior: bus %q already registered", b.Name)
	}
	if b.CreateHandler == nil {
		return fmt.Errorf("behavior: bus %q has no handler factory", b.Name)
	}
	r.buses[b.Name] = b
	return nil
}

// Bus returns the named bus, or nil.
func (r *Registry) Bus(name string) *EBus {
	return r.buses[name]
}

// Buses returns every registered bus, name-sorted.
func (r *Registry) Buses() []*EBus {
	names := maps.Keys(r.buses)
	slices.Sort(names)
	out := make([]*EBus, 0, len(names))
	for _, n := range names {
		out = append(out, r.buses[n])
	}
	return out
}

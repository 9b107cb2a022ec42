package behavior

// Class describes one reflected native class. Instances are immutable once
// added to a Registry; the bridge keeps non-owning references to them.
type Class struct {
	Name string
	Type TypeID

	// Methods in declaration order. Member methods carry the receiver as
	// Params[0]; everything else is exposed as a static.
	Methods []*Method

	// Properties in declaration order.
	Properties []*Property

	// Constructors in declaration order. Params[0] is the receiver slot of
	// the freshly allocated object.
	Constructors []*Method

	// Allocate returns a new uninitialized native object.
	Allocate func() any

	// DefaultConstruct initializes obj when no constructor overload applies.
	// May be nil when allocation already yields a usable object.
	DefaultConstruct func(obj any)

	// Destruct releases obj. May be nil. Called exactly once per owned
	// instance when the script wrapper is collected.
	Destruct func(obj any)

	// Clone returns an independent copy of obj. Required for StorageValue.
	Clone func(obj any) any

	// Alignment of the native type in bytes.
	Alignment int

	Attributes AttributeSet
}

// Method returns the named method, or nil.
func (c *Class) Method(name string) *Method {
	for _, m := range c.Methods {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// Property returns the named property, or nil.
func (c *Class) Property(name string) *Property {
	for _, p := range c.Properties {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// IsMemberMethod reports whether m's first parameter is the receiver slot for
// this class: same type id and a pointer or reference trait.
func (c *Class) IsMemberMethod(m *Method) bool {
	if len(m.Params) == 0 {
		return false
	}
	p := m.Params[0]
	return p.Type == c.Type && p.Traits&(TraitPointer|TraitReference) != 0
}

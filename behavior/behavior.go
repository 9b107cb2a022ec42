// Package behavior describes native Go object models in a language-agnostic
// form: classes with methods, properties and constructors, plus named event
// buses. A scripting bridge reads this metadata to expose the described
// objects to an embedded interpreter without per-type hand-written bindings.
package behavior

import (
	uuid "github.com/satori/go.uuid"
)

// TypeID identifies a reflected type. Ids are stable across processes: they
// are derived from the type name, so two registries describing the same type
// agree on its id.
type TypeID uuid.UUID

var typeNamespace = uuid.NewV5(uuid.NamespaceOID, "behavior.type")

// TypeIDFor derives the TypeID for a type name.
func TypeIDFor(name string) TypeID {
	return TypeID(uuid.NewV5(typeNamespace, name))
}

// String returns the canonical uuid form of the id.
func (t TypeID) String() string {
	return uuid.UUID(t).String()
}

// IsNil reports whether the id is the zero id.
func (t TypeID) IsNil() bool {
	return uuid.Equal(uuid.UUID(t), uuid.Nil)
}

// Predeclared ids for the primitive types the value marshaler understands.
var (
	TypeBool    = TypeIDFor("bool")
	TypeInt     = TypeIDFor("int")
	TypeFloat32 = TypeIDFor("float32")
	TypeFloat64 = TypeIDFor("float64")
	TypeString  = TypeIDFor("string")
	TypeObject  = TypeIDFor("object")
)

// Traits qualify how a parameter is passed.
type Traits uint8

const (
	// TraitPointer marks a parameter passed by pointer.
	TraitPointer Traits = 1 << iota
	// TraitReference marks a parameter passed by reference.
	TraitReference
	// TraitThis marks the implicit receiver slot of a member method.
	TraitThis
)

// Parameter describes one method argument or result.
type Parameter struct {
	Name   string
	Type   TypeID
	Traits Traits
}

// IsThis reports whether the parameter is the implicit receiver slot.
func (p Parameter) IsThis() bool {
	return p.Traits&TraitThis != 0
}

// Method is an invocable described by reflection. For member methods Params[0]
// is the receiver slot, typed as the owning class with a pointer or reference
// trait. Call receives fully marshaled native arguments in parameter order and
// returns the native result, if the method declares one.
type Method struct {
	Name       string
	Params     []Parameter
	Result     *Parameter
	Attributes AttributeSet

	Call func(args []any) (any, error)
}

// NumArguments returns the declared parameter count, receiver included.
func (m *Method) NumArguments() int {
	return len(m.Params)
}

// HasResult reports whether the method declares a result.
func (m *Method) HasResult() bool {
	return m.Result != nil
}

// Property pairs a getter and setter method. Either may be nil.
type Property struct {
	Name       string
	Getter     *Method
	Setter     *Method
	Attributes AttributeSet
}

// StorageType selects who owns instances of a class once they cross into
// script.
type StorageType int

const (
	// StorageScriptOwn transfers the constructed native object to the script
	// wrapper, which releases it on garbage collection.
	StorageScriptOwn StorageType = iota
	// StorageValue stores instances by value: results are copied into a
	// script-owned clone. Requires a working Clone and alignment <= 16.
	StorageValue
)

// Scope restricts where a class is visible.
type Scope uint8

const (
	// ScopeLauncher exposes the class to runtime script execution.
	ScopeLauncher Scope = 1 << iota
	// ScopeAutomation exposes the class to automation tooling.
	ScopeAutomation
)

// AttributeSet carries the registration attributes the bridge inspects.
// The zero value means: not ignored, script-owned, visible in every scope.
type AttributeSet struct {
	Ignore  bool
	Storage StorageType
	Scopes  Scope
}

// InScope reports whether the attributes admit the given execution scope.
// An empty scope set admits everything.
func (a AttributeSet) InScope(s Scope) bool {
	return a.Scopes == 0 || a.Scopes&s != 0
}

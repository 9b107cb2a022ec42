package behavior

import (
	"errors"
	"fmt"
	"reflect"
	"unicode"
	"unicode/utf8"
)

// Destructor is implemented by native types that need explicit teardown when
// their script wrapper is collected.
type Destructor interface {
	Destruct()
}

var (
	errorType      = reflect.TypeOf((*error)(nil)).Elem()
	destructorType = reflect.TypeOf((*Destructor)(nil)).Elem()
)

// Methods every Go type may carry that are not part of the reflected surface.
var methodBlacklist = []string{
	"String",
	"Error",
	"GoString",
	"Format",
	"Destruct",
}

// BindOptions configures Bind.
type BindOptions struct {
	Name           string
	Attributes     AttributeSet
	IgnoredMethods []string
	IgnoredFields  []string

	constructors  []any
	staticMethods []staticMethodDecl
}

type staticMethodDecl struct {
	name string
	fn   any
}

// BindOption configures Bind using the functional options pattern.
type BindOption func(*BindOptions)

// WithName overrides the class name derived from the Go type.
func WithName(name string) BindOption {
	return func(o *BindOptions) { o.Name = name }
}

// WithStorage sets the storage policy attribute.
func WithStorage(s StorageType) BindOption {
	return func(o *BindOptions) { o.Attributes.Storage = s }
}

// WithScopes restricts the class to the given scopes.
func WithScopes(s Scope) BindOption {
	return func(o *BindOptions) { o.Attributes.Scopes = s }
}

// WithIgnore marks the class ignored; a bridge will never expose it.
func WithIgnore() BindOption {
	return func(o *BindOptions) { o.Attributes.Ignore = true }
}

// WithIgnoredMethods skips the named methods during binding.
func WithIgnoredMethods(names ...string) BindOption {
	return func(o *BindOptions) { o.IgnoredMethods = append(o.IgnoredMethods, names...) }
}

// WithIgnoredFields skips the named fields during binding.
func WithIgnoredFields(names ...string) BindOption {
	return func(o *BindOptions) { o.IgnoredFields = append(o.IgnoredFields, names...) }
}

// WithConstructor adds a constructor overload. fn must be a func whose first
// parameter is a pointer to the bound struct; remaining parameters become the
// overload's arguments.
func WithConstructor(fn any) BindOption {
	return func(o *BindOptions) { o.constructors = append(o.constructors, fn) }
}

// WithStaticMethod adds a non-member method backed by an arbitrary func.
func WithStaticMethod(name string, fn any) BindOption {
	return func(o *BindOptions) {
		o.staticMethods = append(o.staticMethods, staticMethodDecl{name: name, fn: fn})
	}
}

// Bind builds a Class description from a Go struct via reflection. prototype
// is a struct value, a pointer to one, or a reflect.Type. Exported fields
// become properties, exported pointer-receiver methods become member methods,
// and a positional constructor covering the exported fields is synthesized in
// addition to default construction.
func Bind(prototype any, options ...BindOption) (*Class, error) {
	opts := &BindOptions{}
	for _, option := range options {
		option(opts)
	}

	typ, err := reflectType(prototype)
	if err != nil {
		return nil, err
	}

	name := opts.Name
	if name == "" {
		name = typ.Name()
	}
	if name == "" {
		return nil, errors.New("behavior: cannot determine class name from anonymous type")
	}

	classType := typeIDOf(typ)
	c := &Class{
		Name:       name,
		Type:       classType,
		Alignment:  typ.Align(),
		Attributes: opts.Attributes,
	}

	c.Allocate = func() any {
		return reflect.New(typ).Interface()
	}
	c.Clone = func(obj any) any {
		cp := reflect.New(typ)
		cp.Elem().Set(reflect.ValueOf(obj).Elem())
		return cp.Interface()
	}

	ptrTyp := reflect.PointerTo(typ)
	if ptrTyp.Implements(destructorType) {
		c.Destruct = func(obj any) {
			obj.(Destructor).Destruct()
		}
	}

	addFieldProperties(c, typ, opts)
	addMemberMethods(c, typ, opts)
	addConstructors(c, typ, opts)

	for _, decl := range opts.staticMethods {
		m, err := staticMethod(decl.name, decl.fn)
		if err != nil {
			return nil, fmt.Errorf("behavior: static %s.%s: %w", name, decl.name, err)
		}
		c.Methods = append(c.Methods, m)
	}

	return c, nil
}

// MustBind is Bind, panicking on error. Intended for registry setup code.
func MustBind(prototype any, options ...BindOption) *Class {
	c, err := Bind(prototype, options...)
	if err != nil {
		panic(err)
	}
	return c
}

func reflectType(prototype any) (reflect.Type, error) {
	if t, ok := prototype.(reflect.Type); ok {
		if t.Kind() != reflect.Struct {
			return nil, errors.New("behavior: type must be a struct type")
		}
		return t, nil
	}
	typ := reflect.TypeOf(prototype)
	if typ == nil {
		return nil, errors.New("behavior: cannot bind nil")
	}
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil, errors.New("behavior: value must be a struct or pointer to struct")
	}
	return typ, nil
}

// typeIDOf maps a Go type to its TypeID. Signed integers share TypeInt so the
// marshaler's numeric branch stays exact; the invocable converts to the
// declared width on call.
func typeIDOf(t reflect.Type) TypeID {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Bool:
		return TypeBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return TypeInt
	case reflect.Float32:
		return TypeFloat32
	case reflect.Float64:
		return TypeFloat64
	case reflect.String:
		return TypeString
	case reflect.Map:
		return TypeObject
	}
	if t.Name() != "" && t.PkgPath() != "" {
		return TypeIDFor(t.PkgPath() + "." + t.Name())
	}
	return TypeIDFor(t.String())
}

func paramFor(name string, t reflect.Type) Parameter {
	var traits Traits
	if t.Kind() == reflect.Ptr {
		traits |= TraitPointer
	}
	return Parameter{Name: name, Type: typeIDOf(t), Traits: traits}
}

func thisParam(classType TypeID) Parameter {
	return Parameter{Name: "this", Type: classType, Traits: TraitPointer | TraitThis}
}

func addFieldProperties(c *Class, typ reflect.Type, opts *BindOptions) {
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() || containsName(opts.IgnoredFields, field.Name) {
			continue
		}
		fieldIndex := i
		fieldType := field.Type
		resultParam := paramFor(field.Name, fieldType)

		getter := &Method{
			Name:   field.Name,
			Params: []Parameter{thisParam(c.Type)},
			Result: &resultParam,
			Call: func(args []any) (any, error) {
				rv, err := receiverValue(args)
				if err != nil {
					return nil, err
				}
				return rv.Field(fieldIndex).Interface(), nil
			},
		}
		setter := &Method{
			Name:   field.Name,
			Params: []Parameter{thisParam(c.Type), resultParam},
			Call: func(args []any) (any, error) {
				rv, err := receiverValue(args)
				if err != nil {
					return nil, err
				}
				if len(args) < 2 {
					return nil, fmt.Errorf("behavior: setter %s needs a value", field.Name)
				}
				v, err := convertArg(args[1], fieldType)
				if err != nil {
					return nil, err
				}
				rv.Field(fieldIndex).Set(v)
				return nil, nil
			},
		}
		c.Properties = append(c.Properties, &Property{
			Name:   field.Name,
			Getter: getter,
			Setter: setter,
		})
	}
}

func addMemberMethods(c *Class, typ reflect.Type, opts *BindOptions) {
	ptrTyp := reflect.PointerTo(typ)
	for i := 0; i < ptrTyp.NumMethod(); i++ {
		method := ptrTyp.Method(i)
		if !isExported(method.Name) ||
			containsName(opts.IgnoredMethods, method.Name) ||
			containsName(methodBlacklist, method.Name) {
			continue
		}

		mt := method.Type
		params := []Parameter{thisParam(c.Type)}
		for in := 1; in < mt.NumIn(); in++ {
			params = append(params, paramFor("", mt.In(in)))
		}

		var result *Parameter
		for out := 0; out < mt.NumOut(); out++ {
			if mt.Out(out) == errorType {
				continue
			}
			p := paramFor("", mt.Out(out))
			result = &p
			break
		}

		methodIndex := method.Index
		c.Methods = append(c.Methods, &Method{
			Name:   method.Name,
			Params: params,
			Result: result,
			Call: func(args []any) (any, error) {
				if len(args) == 0 || args[0] == nil {
					return nil, fmt.Errorf("behavior: method %s called without receiver", method.Name)
				}
				recv := reflect.ValueOf(args[0])
				if recv.Kind() != reflect.Ptr {
					return nil, fmt.Errorf("behavior: method %s needs a pointer receiver", method.Name)
				}
				fn := recv.Method(methodIndex)
				in, err := convertArgs(args[1:], mt, 1)
				if err != nil {
					return nil, err
				}
				return splitResults(fn.Call(in))
			},
		})
	}
}

func addConstructors(c *Class, typ reflect.Type, opts *BindOptions) {
	for _, fn := range opts.constructors {
		if m, err := constructorMethod(c, typ, fn); err == nil {
			c.Constructors = append(c.Constructors, m)
		}
	}

	// Synthesized positional constructor over the exported fields, matching
	// scripts that pass one argument per property.
	var fieldParams []Parameter
	var fieldIndexes []int
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() || containsName(opts.IgnoredFields, field.Name) {
			continue
		}
		fieldParams = append(fieldParams, paramFor(field.Name, field.Type))
		fieldIndexes = append(fieldIndexes, i)
	}
	if len(fieldParams) == 0 {
		return
	}
	c.Constructors = append(c.Constructors, &Method{
		Name:   c.Name,
		Params: append([]Parameter{thisParam(c.Type)}, fieldParams...),
		Call: func(args []any) (any, error) {
			rv, err := receiverValue(args)
			if err != nil {
				return nil, err
			}
			for i, fieldIndex := range fieldIndexes {
				if i+1 >= len(args) {
					break
				}
				field := rv.Field(fieldIndex)
				v, err := convertArg(args[i+1], field.Type())
				if err != nil {
					return nil, err
				}
				field.Set(v)
			}
			return nil, nil
		},
	})
}

func constructorMethod(c *Class, typ reflect.Type, fn any) (*Method, error) {
	fv := reflect.ValueOf(fn)
	ft := fv.Type()
	if ft.Kind() != reflect.Func || ft.NumIn() == 0 || ft.In(0) != reflect.PointerTo(typ) {
		return nil, fmt.Errorf("behavior: constructor for %s must be func(*%s, ...)", c.Name, typ.Name())
	}
	params := []Parameter{thisParam(c.Type)}
	for i := 1; i < ft.NumIn(); i++ {
		params = append(params, paramFor("", ft.In(i)))
	}
	return &Method{
		Name:   c.Name,
		Params: params,
		Call: func(args []any) (any, error) {
			if len(args) == 0 || args[0] == nil {
				return nil, fmt.Errorf("behavior: constructor %s called without receiver", c.Name)
			}
			in := make([]reflect.Value, 0, len(args))
			in = append(in, reflect.ValueOf(args[0]))
			rest, err := convertArgs(args[1:], ft, 1)
			if err != nil {
				return nil, err
			}
			return splitResults(fv.Call(append(in, rest...)))
		},
	}, nil
}

func staticMethod(name string, fn any) (*Method, error) {
	fv := reflect.ValueOf(fn)
	ft := fv.Type()
	if ft.Kind() != reflect.Func {
		return nil, errors.New("not a func")
	}
	var params []Parameter
	for i := 0; i < ft.NumIn(); i++ {
		params = append(params, paramFor("", ft.In(i)))
	}
	var result *Parameter
	for out := 0; out < ft.NumOut(); out++ {
		if ft.Out(out) == errorType {
			continue
		}
		p := paramFor("", ft.Out(out))
		result = &p
		break
	}
	return &Method{
		Name:   name,
		Params: params,
		Result: result,
		Call: func(args []any) (any, error) {
			in, err := convertArgs(args, ft, 0)
			if err != nil {
				return nil, err
			}
			return splitResults(fv.Call(in))
		},
	}, nil
}

// receiverValue unwraps args[0] into the addressable struct value.
func receiverValue(args []any) (reflect.Value, error) {
	if len(args) == 0 || args[0] == nil {
		return reflect.Value{}, errors.New("behavior: missing receiver")
	}
	rv := reflect.ValueOf(args[0])
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return reflect.Value{}, errors.New("behavior: receiver must be a non-nil pointer")
	}
	return rv.Elem(), nil
}

// convertArgs converts marshaled arguments to the func's declared input
// types, starting at input offset. Missing trailing arguments become zero
// values.
func convertArgs(args []any, ft reflect.Type, offset int) ([]reflect.Value, error) {
	n := ft.NumIn() - offset
	out := make([]reflect.Value, n)
	for i := 0; i < n; i++ {
		t := ft.In(i + offset)
		if i >= len(args) {
			out[i] = reflect.Zero(t)
			continue
		}
		v, err := convertArg(args[i], t)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func convertArg(arg any, t reflect.Type) (reflect.Value, error) {
	if arg == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(arg)
	if rv.Type() == t {
		return rv, nil
	}
	if rv.Type().ConvertibleTo(t) {
		return rv.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %T as %s", arg, t)
}

// splitResults maps a reflect call result onto the invocable contract: the
// first non-error result becomes the value, a non-nil error result fails the
// call.
func splitResults(results []reflect.Value) (any, error) {
	var value any
	for _, r := range results {
		if r.Type() == errorType {
			if !r.IsNil() {
				return nil, r.Interface().(error)
			}
			continue
		}
		if value == nil {
			value = r.Interface()
		}
	}
	return value, nil
}

func isExported(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	return unicode.IsUpper(r)
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

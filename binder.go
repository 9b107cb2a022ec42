package behaviorjs

import (
	"errors"
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/buke/quickjs-go"

	"github.com/rbnpontes/behaviorjs/behavior"
)

// RegisterClasses exposes every registry class that is visible in the
// context's scope. Misconfigured classes are skipped with a logged error;
// the joined error is returned so callers can still inspect what failed.
func (c *Context) RegisterClasses() error {
	var errs []error
	for _, cl := range c.registry.Classes() {
		if err := c.RegisterClass(cl); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RegisterClass builds the engine class for cl and installs its constructor
// as a global. Classes marked ignored or outside the context scope are
// silently skipped.
func (c *Context) RegisterClass(cl *behavior.Class) error {
	if cl.Attributes.Ignore || !cl.Attributes.InScope(c.scope) {
		return nil
	}
	if cl.Attributes.Storage == behavior.StorageValue {
		if cl.Clone == nil {
			c.log.Error("by-value class has no cloner, skipping", "class", cl.Name)
			return fmt.Errorf("%w: %s stored by value without a cloner", ErrInvalidClass, cl.Name)
		}
		if cl.Alignment > maxValueAlignment {
			c.log.Error("by-value class over-aligned, skipping",
				"class", cl.Name, "alignment", cl.Alignment)
			return fmt.Errorf("%w: %s alignment %d exceeds %d",
				ErrInvalidClass, cl.Name, cl.Alignment, maxValueAlignment)
		}
	}

	builder := quickjs.NewClassBuilder(cl.Name).
		Constructor(c.constructorFunc(cl)).
		StaticMethod("fromPointer", c.fromPointerFunc(cl))

	seen := map[string]string{"fromPointer": ""}
	for _, m := range cl.Methods {
		if m.Attributes.Ignore || !m.Attributes.InScope(c.scope) {
			continue
		}
		name := camelCase(m.Name)
		if prev, dup := seen[name]; dup {
			c.log.Warn("method name collision, later binding wins",
				"class", cl.Name, "name", name, "previous", prev)
		}
		seen[name] = m.Name
		if cl.IsMemberMethod(m) {
			builder.Method(name, c.memberFunc(cl, m))
		} else {
			builder.StaticMethod(name, c.staticFunc(cl, m))
		}
	}

	for _, p := range cl.Properties {
		if p.Attributes.Ignore || !p.Attributes.InScope(c.scope) {
			continue
		}
		var getter quickjs.ClassGetterFunc
		var setter quickjs.ClassSetterFunc
		if p.Getter != nil {
			getter = c.getterFunc(cl, p)
		}
		if p.Setter != nil {
			setter = c.setterFunc(cl, p)
		}
		builder.Accessor(camelCase(p.Name), getter, setter)
	}

	ctor, _, err := builder.Build(c.q)
	if err != nil {
		return fmt.Errorf("building class %s: %w", cl.Name, err)
	}
	c.q.Globals().Set(cl.Name, ctor)
	c.bound[cl.Name] = cl
	c.byType[cl.Type] = cl
	c.log.Debug("class registered", "class", cl.Name,
		"methods", len(cl.Methods), "properties", len(cl.Properties))
	return nil
}

// maxValueAlignment is the strictest alignment the engine heap guarantees
// for script-owned value storage.
const maxValueAlignment = 16

func (c *Context) constructorFunc(cl *behavior.Class) quickjs.ClassConstructorFunc {
	return func(q *quickjs.Context, instance quickjs.Value, args []quickjs.Value) (interface{}, error) {
		if inst := c.takePendingWrap(); inst != nil {
			return inst, nil
		}
		dargs := make([]DynamicValue, len(args))
		for i := range args {
			dargs[i] = c.dynamicFromJS(args[i])
		}
		inst, err := c.construct(cl, dargs)
		if err != nil {
			return nil, err
		}
		return inst, nil
	}
}

func (c *Context) fromPointerFunc(cl *behavior.Class) quickjs.ClassMethodFunc {
	return func(q *quickjs.Context, this quickjs.Value, args []quickjs.Value) quickjs.Value {
		if len(args) == 0 {
			return q.ThrowTypeError("%s.fromPointer requires a bound object", cl.Name)
		}
		src, err := c.instanceOf(args[0])
		if err != nil {
			return q.ThrowTypeError("%s.fromPointer: argument carries no native value", cl.Name)
		}
		return c.wrapNative(cl, src.native)
	}
}

func (c *Context) memberFunc(cl *behavior.Class, m *behavior.Method) quickjs.ClassMethodFunc {
	return func(q *quickjs.Context, this quickjs.Value, args []quickjs.Value) quickjs.Value {
		inst, err := c.instanceOf(this)
		if err != nil {
			return q.ThrowTypeError("%s.%s: %v", cl.Name, camelCase(m.Name), err)
		}
		nargs, frame := c.marshalArgs(m, 1, args)
		defer frame.release()
		nargs[0] = inst.native
		return c.finishCall(q, cl, m, nargs)
	}
}

func (c *Context) staticFunc(cl *behavior.Class, m *behavior.Method) quickjs.ClassMethodFunc {
	return func(q *quickjs.Context, this quickjs.Value, args []quickjs.Value) quickjs.Value {
		nargs, frame := c.marshalArgs(m, 0, args)
		defer frame.release()
		return c.finishCall(q, cl, m, nargs)
	}
}

func (c *Context) getterFunc(cl *behavior.Class, p *behavior.Property) quickjs.ClassGetterFunc {
	return func(q *quickjs.Context, this quickjs.Value) quickjs.Value {
		inst, err := c.instanceOf(this)
		if err != nil {
			return q.ThrowTypeError("%s.%s: %v", cl.Name, camelCase(p.Name), err)
		}
		result, err := p.Getter.Call([]any{inst.native})
		if err != nil {
			return q.ThrowError(fmt.Errorf("%s.%s: %w", cl.Name, camelCase(p.Name), err))
		}
		return c.nativeToJS(result, p.Getter.Result)
	}
}

func (c *Context) setterFunc(cl *behavior.Class, p *behavior.Property) quickjs.ClassSetterFunc {
	return func(q *quickjs.Context, this quickjs.Value, value quickjs.Value) quickjs.Value {
		inst, err := c.instanceOf(this)
		if err != nil {
			return q.ThrowTypeError("%s.%s: %v", cl.Name, camelCase(p.Name), err)
		}
		v, ok := toNative(c.dynamicFromJS(value), p.Setter.Params[1])
		if !ok {
			c.log.Warn("property value unavailable",
				"class", cl.Name, "property", camelCase(p.Name))
		}
		if _, err := p.Setter.Call([]any{inst.native, v}); err != nil {
			return q.ThrowError(fmt.Errorf("%s.%s: %w", cl.Name, camelCase(p.Name), err))
		}
		return q.Undefined()
	}
}

// marshalArgs converts the script arguments of one call into the method's
// native argument slice. offset is the number of leading parameters filled by
// the caller (the this slot for member methods). Missing or unconvertible
// arguments become nil; the call still proceeds.
func (c *Context) marshalArgs(m *behavior.Method, offset int, args []quickjs.Value) ([]any, *callFrame) {
	n := m.NumArguments()
	frame := newCallFrame(n)
	nargs := make([]any, n)
	for i := offset; i < n; i++ {
		var d DynamicValue
		if i-offset < len(args) {
			d = c.dynamicFromJS(args[i-offset])
		}
		v, ok := toNative(d, m.Params[i])
		if !ok {
			c.log.Warn("argument unavailable",
				"method", m.Name, "index", i-offset, "expected", m.Params[i].Type.String())
		}
		frame.set(i, v)
		nargs[i] = v
	}
	return nargs, frame
}

func (c *Context) finishCall(q *quickjs.Context, cl *behavior.Class, m *behavior.Method, nargs []any) quickjs.Value {
	result, err := m.Call(nargs)
	if err != nil {
		return q.ThrowError(fmt.Errorf("%s.%s: %w", cl.Name, camelCase(m.Name), err))
	}
	if !m.HasResult() {
		return q.Undefined()
	}
	return c.nativeToJS(result, m.Result)
}

// camelCase lowers the first rune so exported Go names read like script
// identifiers.
func camelCase(name string) string {
	if name == "" {
		return name
	}
	r, size := utf8.DecodeRuneInString(name)
	if !unicode.IsUpper(r) {
		return name
	}
	return string(unicode.ToLower(r)) + name[size:]
}

package behaviorjs

import (
	"github.com/buke/quickjs-go"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/rbnpontes/behaviorjs/behavior"
)

// Kind identifies the variant held by a DynamicValue.
type Kind int

const (
	KindUndefined Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
	KindPointer
)

// Field is one entry of an object-kind DynamicValue. Objects keep their
// fields in insertion order so scripts observe the same enumeration order
// they produced.
type Field struct {
	Key   string
	Value DynamicValue
}

// DynamicValue is the engine-neutral representation of a script value. It is
// the intermediate form between engine values and native call arguments, so
// neither side has to know about the other's type system.
type DynamicValue struct {
	kind   Kind
	boolv  bool
	num    float64
	str    string
	items  []DynamicValue
	fields []Field
	ptr    any
}

func Undefined() DynamicValue            { return DynamicValue{kind: KindUndefined} }
func Bool(b bool) DynamicValue           { return DynamicValue{kind: KindBool, boolv: b} }
func Number(f float64) DynamicValue      { return DynamicValue{kind: KindNumber, num: f} }
func String(s string) DynamicValue       { return DynamicValue{kind: KindString, str: s} }
func Array(items ...DynamicValue) DynamicValue {
	return DynamicValue{kind: KindArray, items: items}
}
func Object(fields ...Field) DynamicValue {
	return DynamicValue{kind: KindObject, fields: fields}
}
func Pointer(p any) DynamicValue { return DynamicValue{kind: KindPointer, ptr: p} }

func (d DynamicValue) Kind() Kind            { return d.kind }
func (d DynamicValue) IsUndefined() bool     { return d.kind == KindUndefined }
func (d DynamicValue) Bool() bool            { return d.boolv }
func (d DynamicValue) Float64() float64      { return d.num }
func (d DynamicValue) Int() int              { return int(d.num) }
func (d DynamicValue) String() string        { return d.str }
func (d DynamicValue) Items() []DynamicValue { return d.items }
func (d DynamicValue) Fields() []Field       { return d.fields }
func (d DynamicValue) Pointer() any          { return d.ptr }

// toNative converts a dynamic value into the Go value a parameter expects.
// The second result reports whether the conversion was possible; callers pass
// nil for unavailable arguments and log the fact rather than failing the call.
func toNative(d DynamicValue, p behavior.Parameter) (any, bool) {
	switch p.Type {
	case behavior.TypeBool:
		if d.kind == KindBool {
			return d.boolv, true
		}
	case behavior.TypeInt:
		if d.kind == KindNumber {
			return int(d.num), true
		}
	case behavior.TypeFloat32:
		if d.kind == KindNumber {
			return float32(d.num), true
		}
	case behavior.TypeFloat64:
		if d.kind == KindNumber {
			return d.num, true
		}
	case behavior.TypeString:
		if d.kind == KindString {
			return d.str, true
		}
	case behavior.TypeObject:
		if d.kind == KindObject {
			return d.objectMap(), true
		}
	default:
		// Class-typed parameter: a bound native pointer passes through
		// untouched.
		if d.kind == KindPointer {
			return d.ptr, true
		}
	}
	return nil, false
}

// objectMap flattens an object-kind value into map[string]any. Field order is
// preserved only by the DynamicValue itself; the map is for native consumers
// that key by name.
func (d DynamicValue) objectMap() map[string]any {
	m := make(map[string]any, len(d.fields))
	for _, f := range d.fields {
		m[f.Key] = f.Value.flatten()
	}
	return m
}

func (d DynamicValue) flatten() any {
	switch d.kind {
	case KindBool:
		return d.boolv
	case KindNumber:
		return d.num
	case KindString:
		return d.str
	case KindArray:
		out := make([]any, len(d.items))
		for i, it := range d.items {
			out[i] = it.flatten()
		}
		return out
	case KindObject:
		return d.objectMap()
	case KindPointer:
		return d.ptr
	}
	return nil
}

// toDynamic converts a native Go value produced by a call or event into its
// dynamic form. Values of unrecognized types are treated as opaque pointers.
func toDynamic(v any) DynamicValue {
	switch t := v.(type) {
	case nil:
		return Undefined()
	case bool:
		return Bool(t)
	case int:
		return Number(float64(t))
	case int8:
		return Number(float64(t))
	case int16:
		return Number(float64(t))
	case int32:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case uint:
		return Number(float64(t))
	case uint8:
		return Number(float64(t))
	case uint16:
		return Number(float64(t))
	case uint32:
		return Number(float64(t))
	case uint64:
		return Number(float64(t))
	case float32:
		return Number(float64(t))
	case float64:
		return Number(t)
	case string:
		return String(t)
	case []any:
		items := make([]DynamicValue, len(t))
		for i, it := range t {
			items[i] = toDynamic(it)
		}
		return Array(items...)
	case map[string]any:
		keys := maps.Keys(t)
		slices.Sort(keys)
		fields := make([]Field, 0, len(keys))
		for _, k := range keys {
			fields = append(fields, Field{Key: k, Value: toDynamic(t[k])})
		}
		return Object(fields...)
	default:
		return Pointer(v)
	}
}

// callFrame owns the marshaled arguments of one native invocation. Frames are
// released when the call returns, except for constructor frames which the
// created instance retains until finalization so constructor-borrowed
// arguments stay reachable for the object's lifetime.
type callFrame struct {
	values   []any
	detached bool
}

func newCallFrame(n int) *callFrame {
	return &callFrame{values: make([]any, n)}
}

func (f *callFrame) set(i int, v any) { f.values[i] = v }
func (f *callFrame) get(i int) any    { return f.values[i] }

// detach transfers ownership of the frame away from the call scope. A
// detached frame ignores a subsequent release from the scope that created it.
func (f *callFrame) detach() { f.detached = true }

func (f *callFrame) release() {
	if f.detached {
		return
	}
	f.drop()
}

// drop unconditionally clears the slots, even on a detached frame. The
// retaining owner calls this when it is itself destroyed.
func (f *callFrame) drop() {
	for i := range f.values {
		f.values[i] = nil
	}
}

// dynamicFromJS converts an engine value into its dynamic form. Bound
// instances become pointer values carrying the native object; plain objects
// are enumerated field by field in property order.
func (c *Context) dynamicFromJS(v quickjs.Value) DynamicValue {
	switch {
	case v.IsBool():
		return Bool(v.ToBool())
	case v.IsNumber():
		return Number(v.ToFloat64())
	case v.IsString():
		return String(v.ToString())
	case v.IsArray():
		n := v.Len()
		items := make([]DynamicValue, 0, n)
		for i := int64(0); i < n; i++ {
			elem := v.GetIdx(i)
			items = append(items, c.dynamicFromJS(elem))
			elem.Free()
		}
		return Array(items...)
	case v.IsObject():
		if data, err := c.q.GetInstanceData(v); err == nil {
			if inst, ok := data.(*Instance); ok && !inst.released() {
				return Pointer(inst.native)
			}
		}
		names, err := v.PropertyNames()
		if err != nil {
			return Object()
		}
		fields := make([]Field, 0, len(names))
		for _, name := range names {
			pv := v.Get(name)
			fields = append(fields, Field{Key: name, Value: c.dynamicFromJS(pv)})
			pv.Free()
		}
		return Object(fields...)
	default:
		return Undefined()
	}
}

// dynamicToJS converts a dynamic value into an engine value owned by the
// caller. Undefined and bare pointers surface as null; wrapping a pointer in
// a bound object requires its class and goes through nativeToJS.
func (c *Context) dynamicToJS(d DynamicValue) quickjs.Value {
	switch d.kind {
	case KindBool:
		return c.q.Bool(d.boolv)
	case KindNumber:
		return c.q.Float64(d.num)
	case KindString:
		return c.q.String(d.str)
	case KindArray:
		arrayClass := c.q.Globals().Get("Array")
		arr := arrayClass.New()
		arrayClass.Free()
		for i, it := range d.items {
			arr.SetIdx(int64(i), c.dynamicToJS(it))
		}
		return arr
	case KindObject:
		obj := c.q.Object()
		for _, f := range d.fields {
			obj.Set(f.Key, c.dynamicToJS(f.Value))
		}
		return obj
	}
	return c.q.Null()
}

// nativeToJS converts a native value into an engine value, using the
// parameter's type to wrap class instances in their bound constructor.
func (c *Context) nativeToJS(v any, p *behavior.Parameter) quickjs.Value {
	if v == nil {
		return c.q.Null()
	}
	if p != nil {
		if cl := c.byType[p.Type]; cl != nil {
			return c.wrapNative(cl, v)
		}
	}
	d := toDynamic(v)
	if d.kind == KindPointer {
		// Unregistered native type; nothing meaningful to hand the script.
		c.log.Debug("dropping result of unregistered type", "go_type", typeName(v))
		return c.q.Null()
	}
	return c.dynamicToJS(d)
}

package behaviorjs

import (
	"fmt"
	"sync/atomic"

	"github.com/buke/quickjs-go"
	uuid "github.com/satori/go.uuid"

	"github.com/rbnpontes/behaviorjs/behavior"
)

// Instance binds one native Go value to one engine object. The engine calls
// Finalize when the object is collected; owned instances destruct their
// native value at that point, borrowed wrappers just drop the reference.
type Instance struct {
	id        uuid.UUID
	class     *behavior.Class
	native    any
	owned     bool
	args      *callFrame
	finalized atomic.Bool
}

func (in *Instance) ID() uuid.UUID          { return in.id }
func (in *Instance) Class() *behavior.Class { return in.class }
func (in *Instance) Native() any            { return in.native }
func (in *Instance) Owned() bool            { return in.owned }

func (in *Instance) released() bool { return in.finalized.Load() }

// Finalize implements quickjs.ClassFinalizer. It is idempotent: the engine
// guarantees a single call, but Close-time teardown may race the collector.
func (in *Instance) Finalize() {
	if in.finalized.Swap(true) {
		return
	}
	if in.owned && in.class.Destruct != nil && in.native != nil {
		in.class.Destruct(in.native)
	}
	in.native = nil
	if in.args != nil {
		in.args.drop()
		in.args = nil
	}
}

func newInstance(cl *behavior.Class, native any, owned bool) *Instance {
	id, _ := uuid.NewV4()
	return &Instance{id: id, class: cl, native: native, owned: owned}
}

// selectConstructor picks the overload to run for a script-side `new`.
// An overload is a candidate when its arity matches the call exactly and
// every supplied argument converts to the declared parameter type; the first
// candidate in declaration order wins. No candidate means default
// construction.
func selectConstructor(cl *behavior.Class, args []DynamicValue) *behavior.Method {
	for _, ctor := range cl.Constructors {
		if ctor.NumArguments()-1 != len(args) {
			continue
		}
		ok := true
		for i, d := range args {
			if _, convertible := toNative(d, ctor.Params[i+1]); !convertible {
				ok = false
				break
			}
		}
		if ok {
			return ctor
		}
	}
	return nil
}

// construct allocates and initializes a new script-owned instance. The
// argument frame is retained by the instance so constructor-borrowed values
// live as long as the object.
func (c *Context) construct(cl *behavior.Class, args []DynamicValue) (*Instance, error) {
	native := cl.Allocate()
	if ctor := selectConstructor(cl, args); ctor != nil {
		frame := newCallFrame(ctor.NumArguments())
		nargs := make([]any, ctor.NumArguments())
		nargs[0] = native
		for i, d := range args {
			v, ok := toNative(d, ctor.Params[i+1])
			if !ok {
				c.log.Warn("constructor argument unavailable",
					"class", cl.Name, "index", i, "expected", ctor.Params[i+1].Type.String())
			}
			frame.set(i+1, v)
			nargs[i+1] = v
		}
		if _, err := ctor.Call(nargs); err != nil {
			frame.drop()
			return nil, fmt.Errorf("constructing %s: %w", cl.Name, err)
		}
		frame.detach()
		inst := newInstance(cl, native, true)
		inst.args = frame
		return inst, nil
	}
	if cl.DefaultConstruct != nil {
		cl.DefaultConstruct(native)
	}
	return newInstance(cl, native, true), nil
}

// adopt wraps a native value produced outside the constructor path. By-value
// classes get a script-owned clone so the engine controls its lifetime;
// everything else is a borrowed wrapper that is never destructed.
func (c *Context) adopt(cl *behavior.Class, native any) *Instance {
	if cl.Attributes.Storage == behavior.StorageValue && cl.Clone != nil {
		return newInstance(cl, cl.Clone(native), true)
	}
	return newInstance(cl, native, false)
}

// wrapNative builds an engine object of cl around native without running the
// class constructor, by parking the prepared instance for the constructor
// closure to pick up.
func (c *Context) wrapNative(cl *behavior.Class, native any) quickjs.Value {
	if native == nil {
		return c.q.Null()
	}
	ctor := c.q.Globals().Get(cl.Name)
	defer ctor.Free()
	if !ctor.IsFunction() {
		c.log.Warn("class constructor missing from globals", "class", cl.Name)
		return c.q.Null()
	}
	c.pendingWrap = c.adopt(cl, native)
	obj := ctor.CallConstructor()
	c.pendingWrap = nil
	return obj
}

func (c *Context) takePendingWrap() *Instance {
	inst := c.pendingWrap
	c.pendingWrap = nil
	return inst
}

// instanceOf resolves the bound instance behind a script `this`.
func (c *Context) instanceOf(v quickjs.Value) (*Instance, error) {
	data, err := c.q.GetInstanceData(v)
	if err != nil {
		return nil, ErrNotBound
	}
	inst, ok := data.(*Instance)
	if !ok {
		return nil, ErrNotBound
	}
	if inst.released() {
		return nil, ErrDetachedInstance
	}
	return inst, nil
}

func typeName(v any) string { return fmt.Sprintf("%T", v) }

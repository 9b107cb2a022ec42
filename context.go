package behaviorjs

import (
	"log/slog"

	"github.com/buke/quickjs-go"

	"github.com/rbnpontes/behaviorjs/behavior"
)

// GlobalFunc is the signature of functions installed with SetGlobalFunction.
type GlobalFunc = func(ctx *quickjs.Context, this quickjs.Value, args []quickjs.Value) quickjs.Value

const (
	listenerTableName = "__ebusListeners"
	listenerStoreName = "__ebusStore"
)

// The listener table lives on the script side so the engine owns the callback
// references; the store helper is the only writer.
const bootstrapScript = `
globalThis.` + listenerTableName + ` = Object.create(null);
globalThis.` + listenerStoreName + ` = function (id, fn) {
	if (fn === undefined || fn === null) {
		delete globalThis.` + listenerTableName + `[id];
	} else {
		globalThis.` + listenerTableName + `[id] = fn;
	}
};
`

// Context owns one QuickJS runtime with the registry's classes and buses
// exposed as globals. A Context is not safe for concurrent use; all calls
// including native-side bus signals must come from one goroutine.
type Context struct {
	rt       quickjs.Runtime
	q        *quickjs.Context
	registry *behavior.Registry
	scope    behavior.Scope
	log      *slog.Logger

	bound  map[string]*behavior.Class
	byType map[behavior.TypeID]*behavior.Class
	events map[string]*eventDescriptor

	ebusCtor *quickjs.Value

	// Parked objects for the constructor closures to consume when an
	// engine object is created around an existing native value.
	pendingWrap *Instance
	pendingBus  *busHandle
}

type contextOptions struct {
	logger      *slog.Logger
	scope       behavior.Scope
	memoryLimit uint32
	skipClasses bool
}

// Option configures a Context.
type Option func(*contextOptions)

// WithLogger routes bridge and script logging through l.
func WithLogger(l *slog.Logger) Option {
	return func(o *contextOptions) { o.logger = l }
}

// WithScope restricts registration to classes visible in s.
func WithScope(s behavior.Scope) Option {
	return func(o *contextOptions) { o.scope = s }
}

// WithMemoryLimit caps the engine heap at limit bytes.
func WithMemoryLimit(limit uint32) Option {
	return func(o *contextOptions) { o.memoryLimit = limit }
}

// WithoutClasses skips the registration pass so the caller can register
// classes selectively.
func WithoutClasses() Option {
	return func(o *contextOptions) { o.skipClasses = true }
}

// New builds a Context over registry. The engine is bootstrapped with the
// listener table, a script-facing log function and the EBusHandler factory,
// then every visible registry class is registered unless WithoutClasses is
// given.
func New(registry *behavior.Registry, options ...Option) (*Context, error) {
	if registry == nil {
		return nil, ErrNoRegistry
	}
	opts := contextOptions{logger: slog.Default(), scope: behavior.ScopeLauncher}
	for _, o := range options {
		o(&opts)
	}

	rt := quickjs.NewRuntime()
	if opts.memoryLimit > 0 {
		rt.SetMemoryLimit(opts.memoryLimit)
	}
	c := &Context{
		rt:       rt,
		q:        rt.NewContext(),
		registry: registry,
		scope:    opts.scope,
		log:      opts.logger,
		bound:    map[string]*behavior.Class{},
		byType:   map[behavior.TypeID]*behavior.Class{},
		events:   map[string]*eventDescriptor{},
	}

	if err := c.RunScript(bootstrapScript); err != nil {
		c.teardown()
		return nil, err
	}
	c.registerLog()
	if err := c.registerEBusSurface(); err != nil {
		c.teardown()
		return nil, err
	}
	if !opts.skipClasses {
		if err := c.RegisterClasses(); err != nil {
			c.log.Error("some classes failed to register", "error", err)
		}
	}
	return c, nil
}

// Engine exposes the underlying engine context for callers that need raw
// value construction, such as SetGlobalFunction implementations.
func (c *Context) Engine() *quickjs.Context { return c.q }

// Registry returns the behavior registry this context was built over.
func (c *Context) Registry() *behavior.Registry { return c.registry }

// RunScript evaluates source, discarding the completion value.
func (c *Context) RunScript(source string) error {
	v, err := c.q.Eval(source)
	if err != nil {
		return err
	}
	v.Free()
	return nil
}

// Eval evaluates source and returns the completion value as a DynamicValue.
func (c *Context) Eval(source string) (DynamicValue, error) {
	v, err := c.q.Eval(source)
	if err != nil {
		return Undefined(), err
	}
	defer v.Free()
	return c.dynamicFromJS(v), nil
}

// SetGlobalFunction installs fn as a global script function.
func (c *Context) SetGlobalFunction(name string, fn GlobalFunc) {
	c.q.Globals().Set(name, c.q.Function(fn))
}

// CallActivate invokes the script's global OnActivate hook if one exists.
func (c *Context) CallActivate() { c.callGlobal("OnActivate") }

// CallDeactivate invokes the script's global OnDeactivate hook if one exists.
func (c *Context) CallDeactivate() { c.callGlobal("OnDeactivate") }

func (c *Context) callGlobal(name string) {
	fn := c.q.Globals().Get(name)
	defer fn.Free()
	if !fn.IsFunction() {
		return
	}
	ret := fn.Execute(c.q.Undefined())
	if ret.IsError() {
		c.log.Error("script hook failed", "hook", name, "error", ret.Error())
	}
	ret.Free()
}

// RunGC forces an engine collection pass, driving finalizers for unreachable
// bound objects.
func (c *Context) RunGC() { c.rt.RunGC() }

// Close tears the engine down. Script-owned instances still alive are
// finalized by the engine as part of context destruction.
func (c *Context) Close() {
	c.teardown()
}

func (c *Context) teardown() {
	if c.q == nil {
		return
	}
	if c.ebusCtor != nil {
		c.ebusCtor.Free()
		c.ebusCtor = nil
	}
	c.q.Close()
	c.rt.Close()
	c.q = nil
}

// registerLog installs the script-facing log function. Each argument is
// stringified and emitted as one info record, matching how scripts use it for
// ad hoc tracing.
func (c *Context) registerLog() {
	c.SetGlobalFunction("log", func(q *quickjs.Context, this quickjs.Value, args []quickjs.Value) quickjs.Value {
		for _, a := range args {
			c.log.Info(a.ToString(), "source", "script")
		}
		return q.Undefined()
	})
}

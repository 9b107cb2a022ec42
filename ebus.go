package behaviorjs

import (
	"errors"
	"sync/atomic"

	"github.com/buke/quickjs-go"

	"github.com/rbnpontes/behaviorjs/behavior"
)

// busHandle binds one script handler object to one bus handler. The engine
// finalizer uninstalls the native hooks, which is enough to silence dispatch;
// the JS-side listener slots are not touched from the finalizer because the
// engine must not re-enter script during collection.
type busHandle struct {
	bus       *behavior.EBus
	handler   behavior.Handler
	installed map[string]int
	finalized atomic.Bool
}

// Finalize implements quickjs.ClassFinalizer.
func (h *busHandle) Finalize() {
	if h.finalized.Swap(true) {
		return
	}
	h.handler.Disconnect()
	for _, idx := range h.installed {
		h.handler.InstallHook(idx, nil, nil)
	}
	h.installed = nil
}

// eventDescriptor identifies one (bus, event) pair for hook dispatch.
// Descriptors are cached per context so repeated setEvent calls on the same
// event hand the hook the same user data.
type eventDescriptor struct {
	id    string
	name  string
	index int
	bus   *behavior.EBus
}

func eventID(bus, event string) string { return bus + "_" + event }

func (c *Context) eventDescriptor(bus *behavior.EBus, name string, idx int) *eventDescriptor {
	id := eventID(bus.Name, name)
	if d, ok := c.events[id]; ok {
		return d
	}
	d := &eventDescriptor{id: id, name: name, index: idx, bus: bus}
	c.events[id] = d
	return d
}

// registerEBusSurface builds the handler class and installs the EBusHandler
// factory. The factory is a plain function, not the constructor: looking up
// an unknown bus yields null, which `new` could never produce.
func (c *Context) registerEBusSurface() error {
	ctor, _, err := quickjs.NewClassBuilder("EBusHandler").
		Constructor(func(q *quickjs.Context, instance quickjs.Value, args []quickjs.Value) (interface{}, error) {
			h := c.takePendingBus()
			if h == nil {
				return nil, errors.New("EBusHandler is created through EBusHandler(busName)")
			}
			return h, nil
		}).
		Method("setEvent", c.ebusSetEvent).
		Method("connect", c.ebusConnect).
		Method("disconnect", c.ebusDisconnect).
		Method("broadcast", c.ebusBroadcast).
		Method("isConnected", c.ebusIsConnected).
		Build(c.q)
	if err != nil {
		return err
	}
	c.ebusCtor = &ctor

	factory := c.q.Function(func(q *quickjs.Context, this quickjs.Value, args []quickjs.Value) quickjs.Value {
		if len(args) == 0 || !args[0].IsString() {
			return q.ThrowTypeError("EBusHandler requires a bus name")
		}
		name := args[0].ToString()
		bus := c.registry.Bus(name)
		if bus == nil {
			c.log.Warn("unknown event bus", "bus", name)
			return q.Null()
		}
		handler := bus.CreateHandler()
		if handler == nil {
			c.log.Warn("bus cannot create handlers", "bus", name)
			return q.Null()
		}
		c.pendingBus = &busHandle{
			bus: bus, handler: handler, installed: map[string]int{},
		}
		obj := c.ebusCtor.CallConstructor()
		c.pendingBus = nil
		if obj.IsException() {
			return obj
		}
		obj.Set("name", q.String(name))
		return obj
	})
	c.q.Globals().Set("EBusHandler", factory)
	return nil
}

func (c *Context) takePendingBus() *busHandle {
	h := c.pendingBus
	c.pendingBus = nil
	return h
}

func (c *Context) busHandleOf(v quickjs.Value) (*busHandle, error) {
	data, err := c.q.GetInstanceData(v)
	if err != nil {
		return nil, ErrNotBound
	}
	h, ok := data.(*busHandle)
	if !ok {
		return nil, ErrNotBound
	}
	if h.finalized.Load() {
		return nil, ErrDetachedInstance
	}
	return h, nil
}

// ebusSetEvent installs or removes the listener for one event. Passing a
// function installs it; anything else clears the slot. Unknown events are
// logged and ignored without disturbing existing listeners.
func (c *Context) ebusSetEvent(q *quickjs.Context, this quickjs.Value, args []quickjs.Value) quickjs.Value {
	h, err := c.busHandleOf(this)
	if err != nil {
		return q.ThrowTypeError("setEvent: %v", err)
	}
	if len(args) == 0 || !args[0].IsString() {
		return q.ThrowTypeError("setEvent requires an event name")
	}
	eventName := args[0].ToString()
	idx := eventIndex(h.handler, eventName)
	if idx < 0 {
		c.log.Warn("unknown event", "bus", h.bus.Name, "event", eventName)
		return q.Undefined()
	}
	id := eventID(h.bus.Name, eventName)
	if len(args) > 1 && args[1].IsFunction() {
		desc := c.eventDescriptor(h.bus, eventName, idx)
		h.handler.InstallHook(idx, c.dispatchEvent, desc)
		h.installed[id] = idx
		c.storeListener(id, args[1])
	} else {
		h.handler.InstallHook(idx, nil, nil)
		delete(h.installed, id)
		c.clearListener(id)
	}
	return q.Undefined()
}

func eventIndex(h behavior.Handler, name string) int {
	for i, ev := range h.Events() {
		if ev.Name == name {
			return i
		}
	}
	return -1
}

func (c *Context) ebusConnect(q *quickjs.Context, this quickjs.Value, args []quickjs.Value) quickjs.Value {
	h, err := c.busHandleOf(this)
	if err != nil {
		return q.ThrowTypeError("connect: %v", err)
	}
	var id any
	if h.bus.IDParam != nil && len(args) > 0 {
		var ok bool
		if id, ok = toNative(c.dynamicFromJS(args[0]), *h.bus.IDParam); !ok {
			c.log.Warn("bus address unavailable, connecting without one", "bus", h.bus.Name)
		}
	}
	h.handler.Connect(id)
	return q.Undefined()
}

func (c *Context) ebusDisconnect(q *quickjs.Context, this quickjs.Value, args []quickjs.Value) quickjs.Value {
	h, err := c.busHandleOf(this)
	if err != nil {
		return q.ThrowTypeError("disconnect: %v", err)
	}
	h.handler.Disconnect()
	return q.Undefined()
}

// ebusBroadcast is accepted for script compatibility but performs no
// dispatch; buses are signaled from the native side.
func (c *Context) ebusBroadcast(q *quickjs.Context, this quickjs.Value, args []quickjs.Value) quickjs.Value {
	if _, err := c.busHandleOf(this); err != nil {
		return q.ThrowTypeError("broadcast: %v", err)
	}
	return q.Undefined()
}

func (c *Context) ebusIsConnected(q *quickjs.Context, this quickjs.Value, args []quickjs.Value) quickjs.Value {
	h, err := c.busHandleOf(this)
	if err != nil {
		return q.ThrowTypeError("isConnected: %v", err)
	}
	return q.Bool(h.handler.IsConnected())
}

// dispatchEvent is the native hook installed on handlers. It resolves the
// script listener from the context's listener table and forwards the event
// parameters, marshaled per the event's declared signature.
func (c *Context) dispatchEvent(userData any, eventName string, eventIndex int, params []any) {
	desc, ok := userData.(*eventDescriptor)
	if !ok || desc == nil || desc.name != eventName {
		return
	}
	table := c.q.Globals().Get(listenerTableName)
	defer table.Free()
	fn := table.Get(desc.id)
	defer fn.Free()
	if !fn.IsFunction() {
		return
	}
	var sig []behavior.Parameter
	if eventIndex >= 0 && eventIndex < len(desc.bus.Events) {
		sig = desc.bus.Events[eventIndex].Params
	}
	jsArgs := make([]quickjs.Value, len(params))
	for i, p := range params {
		var par *behavior.Parameter
		if i < len(sig) {
			par = &sig[i]
		}
		jsArgs[i] = c.nativeToJS(p, par)
	}
	ret := fn.Execute(c.q.Undefined(), jsArgs...)
	ret.Free()
	for _, a := range jsArgs {
		a.Free()
	}
}

// storeListener parks a script callback in the engine-side listener table so
// the engine, not Go, keeps the reference alive.
func (c *Context) storeListener(id string, fn quickjs.Value) {
	store := c.q.Globals().Get(listenerStoreName)
	defer store.Free()
	idv := c.q.String(id)
	ret := store.Execute(c.q.Undefined(), idv, fn)
	ret.Free()
	idv.Free()
}

func (c *Context) clearListener(id string) {
	store := c.q.Globals().Get(listenerStoreName)
	defer store.Free()
	idv := c.q.String(id)
	ret := store.Execute(c.q.Undefined(), idv)
	ret.Free()
	idv.Free()
}

package behavior

// Event describes one event a bus can raise.
type Event struct {
	Name   string
	Params []Parameter
}

// GenericHook is a per-event callback installed on a handler. userData is the
// value passed to InstallHook; params are the event's native arguments in
// declaration order.
type GenericHook func(userData any, eventName string, eventIndex int, params []any)

// Handler is one listener attached to a bus. Handlers are produced by the
// bus's factory and are connected explicitly; hooks fire only while the
// handler is connected.
type Handler interface {
	// Events returns the handler's event table in declaration order.
	Events() []Event

	// InstallHook installs (or, with a nil hook, clears) the generic hook for
	// the event at the given index.
	InstallHook(eventIndex int, hook GenericHook, userData any)

	// Connect attaches the handler to the bus. id addresses a specific bus
	// instance when the bus declares an IDParam; it is ignored otherwise.
	// Connecting twice is a no-op.
	Connect(id any)

	// Disconnect detaches the handler. Disconnecting twice is a no-op.
	Disconnect()

	// IsConnected reports the handler's connection state.
	IsConnected() bool
}

// EBus is a named publish/subscribe channel. The bridge only ever looks a bus
// up by name and drives its handler factory; delivery is the bus
// implementation's business.
type EBus struct {
	Name string

	// Events the bus raises, in declaration order.
	Events []Event

	// IDParam describes the addressing argument of Connect, nil when the bus
	// has a single instance.
	IDParam *Parameter

	// CreateHandler produces a fresh unconnected handler.
	CreateHandler func() Handler
}

// EventIndex returns the index of the named event, or -1.
func (b *EBus) EventIndex(name string) int {
	for i, e := range b.Events {
		if e.Name == name {
			return i
		}
	}
	return -1
}

// LocalBus is an in-process synchronous EBus implementation: Signal invokes
// the installed hooks of every connected handler on the calling goroutine.
// It exists so native code (and tests) can publish events without an engine
// integration behind it.
type LocalBus struct {
	bus      *EBus
	handlers []*localHandler
}

// NewLocalBus builds a single-instance bus raising the given events.
func NewLocalBus(name string, events ...Event) *LocalBus {
	lb := &LocalBus{}
	lb.bus = &EBus{
		Name:   name,
		Events: events,
	}
	lb.bus.CreateHandler = func() Handler {
		h := &localHandler{owner: lb, hooks: make([]hookEntry, len(events))}
		lb.handlers = append(lb.handlers, h)
		return h
	}
	return lb
}

// Bus returns the registerable bus description.
func (lb *LocalBus) Bus() *EBus {
	return lb.bus
}

// Signal raises the named event on every connected handler. Unknown event
// names are ignored.
func (lb *LocalBus) Signal(eventName string, params ...any) {
	idx := lb.bus.EventIndex(eventName)
	if idx < 0 {
		return
	}
	for _, h := range lb.handlers {
		h.fire(idx, eventName, params)
	}
}

type hookEntry struct {
	hook     GenericHook
	userData any
}

type localHandler struct {
	owner     *LocalBus
	hooks     []hookEntry
	connected bool
}

func (h *localHandler) Events() []Event {
	return h.owner.bus.Events
}

func (h *localHandler) InstallHook(eventIndex int, hook GenericHook, userData any) {
	if eventIndex < 0 || eventIndex >= len(h.hooks) {
		return
	}
	h.hooks[eventIndex] = hookEntry{hook: hook, userData: userData}
}

func (h *localHandler) Connect(id any) {
	h.connected = true
}

func (h *localHandler) Disconnect() {
	h.connected = false
}

func (h *localHandler) IsConnected() bool {
	return h.connected
}

func (h *localHandler) fire(idx int, name string, params []any) {
	if !h.connected {
		return
	}
	entry := h.hooks[idx]
	if entry.hook == nil {
		return
	}
	entry.hook(entry.userData, name, idx, params)
}

package behaviorjs

import "errors"

var (
	// ErrNoRegistry is returned by New when no behavior registry is supplied.
	ErrNoRegistry = errors.New("behaviorjs: registry is nil")

	// ErrInvalidClass is returned when a class cannot be exposed to the
	// engine, typically a by-value class missing a cloner or with an
	// alignment the engine heap cannot honor.
	ErrInvalidClass = errors.New("behaviorjs: invalid class configuration")

	// ErrDetachedInstance is returned when a script calls into an object
	// whose native value has already been finalized.
	ErrDetachedInstance = errors.New("behaviorjs: instance already finalized")

	// ErrNotBound is returned when a script value is expected to carry a
	// bound native instance but does not.
	ErrNotBound = errors.New("behaviorjs: value is not a bound instance")
)

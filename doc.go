// Package behaviorjs exposes a registry of reflected Go classes and event
// buses to an embedded QuickJS engine.
//
// A Context owns one engine instance. Registered classes become global
// constructor functions; their methods, properties and static functions are
// bound onto the prototype. Event buses become connectable handler objects
// created through the global EBusHandler factory.
//
// Script-constructed instances are owned by the engine: when the garbage
// collector drops the last reference to a bound object, its native value is
// destructed. Instances wrapped around borrowed native pointers are never
// destructed by the engine.
package behaviorjs

// Package conductor is an in-process object lifecycle orchestrator.
//
// Classes (constructor functions or struct types) and factories are
// registered with a Registry and resolved by token: the produced
// reflect.Type, the printable type name, or a factory name. Constructor
// parameters are resolved recursively, with cycles reported as errors.
//
// Behaviour is attached to types through metadata, usually from init:
//
//	var _ = conductor.Describe[Orders]().
//		Telemetry("Place").
//		Publish("Place", "order.placed").
//		Every("Reconcile", time.Minute)
//
// When an instance is built the registry wraps the flagged methods so every
// call emits an event, subscribes listener methods to the event bus, arms
// scheduled methods and injects declared properties. Wrapped methods are
// reached through Method and Invoke; exported func fields are patched in
// place.
package conductor

package metadata

import (
	"maps"
	"reflect"
	"slices"
	"time"
)

// ClassBuilder attaches metadata to one type. Calls are cheap and only write
// to the store; they are meant for init() or package-level var blocks.
type ClassBuilder struct {
	store  *Store
	target reflect.Type
}

// MethodOption tunes telemetry and publish attachments.
type MethodOption func(*methodOptions)

type methodOptions struct {
	logging bool
	phase   Phase
}

// WithLogging enables the per-invocation log line.
func WithLogging() MethodOption {
	return func(o *methodOptions) { o.logging = true }
}

// WithPhase selects when a publisher emits.
func WithPhase(phase Phase) MethodOption {
	return func(o *methodOptions) { o.phase = phase }
}

func applyMethodOptions(opts []MethodOption) methodOptions {
	o := methodOptions{phase: PhaseAfter}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Describe returns a builder for target. Describing a struct type writes the
// static side; describing a pointer type writes the instance side.
func Describe(store *Store, target reflect.Type) *ClassBuilder {
	if store == nil {
		store = Default()
	}
	return &ClassBuilder{store: store, target: target}
}

// Target returns the described type.
func (b *ClassBuilder) Target() reflect.Type {
	return b.target
}

// Inject declares the token for the constructor parameter at position.
func (b *ClassBuilder) Inject(position int, token any) *ClassBuilder {
	put[int, any](b.store, b.target, KindParams, position, token)
	return b
}

// InjectField declares the token assigned to an exported field after construction.
func (b *ClassBuilder) InjectField(field string, token any) *ClassBuilder {
	put[string, any](b.store, b.target, KindProperties, field, token)
	return b
}

// Telemetry wraps method so every call emits a telemetry event.
func (b *ClassBuilder) Telemetry(method string, opts ...MethodOption) *ClassBuilder {
	o := applyMethodOptions(opts)
	put(b.store, b.target, KindTelemetry, method, TelemetryOptions{Logging: o.logging})
	return b
}

// TelemetryListener subscribes method to telemetry events.
func (b *ClassBuilder) TelemetryListener(method string) *ClassBuilder {
	put(b.store, b.target, KindTelemetryListeners, method, true)
	return b
}

// Publish wraps method so calls emit event.
func (b *ClassBuilder) Publish(method, event string, opts ...MethodOption) *ClassBuilder {
	o := applyMethodOptions(opts)
	put(b.store, b.target, KindPublish, method, PublishOptions{
		Event:   event,
		Phase:   o.phase,
		Logging: o.logging,
	})
	return b
}

// Subscribe registers method as a listener of event.
func (b *ClassBuilder) Subscribe(event, method string) *ClassBuilder {
	b.store.Update(b.target, KindSubscribe, func(current any) any {
		next := make(map[string][]string)
		if m, ok := current.(map[string][]string); ok {
			maps.Copy(next, m)
		}
		if !slices.Contains(next[event], method) {
			next[event] = append(slices.Clone(next[event]), method)
		}
		return next
	})
	return b
}

// Every invokes method at a fixed period.
func (b *ClassBuilder) Every(method string, period time.Duration) *ClassBuilder {
	put(b.store, b.target, KindSchedule, method, ScheduleSpec{Every: period})
	return b
}

// Cron invokes method on a calendar expression.
func (b *ClassBuilder) Cron(method, expr string) *ClassBuilder {
	put(b.store, b.target, KindSchedule, method, ScheduleSpec{Cron: expr})
	return b
}

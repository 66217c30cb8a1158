package conductor

import (
	"reflect"
	"sync"

	"github.com/xraph/conductor/internal/di"
	"github.com/xraph/conductor/internal/events"
	"github.com/xraph/conductor/internal/intercept"
	"github.com/xraph/conductor/internal/metadata"
	"github.com/xraph/conductor/internal/schedule"
)

// Registry stores service definitions and resolves them.
type Registry = di.Registry

// Option configures a Registry.
type Option = di.Option

// RegisterOption configures a single registration.
type RegisterOption = di.RegisterOption

// ForkOptions configures Registry.Fork.
type ForkOptions = di.ForkOptions

// ServiceInfo describes one registration.
type ServiceInfo = di.ServiceInfo

// Intercepted can be embedded in services that are not singletons so their
// intercepted methods stay reachable through Method and Invoke.
type Intercepted = di.Intercepted

// Job is a live scheduled invocation.
type Job = schedule.Job

// ClassBuilder attaches metadata to a type.
type ClassBuilder = metadata.ClassBuilder

// MethodOption tunes telemetry and publish attachments.
type MethodOption = metadata.MethodOption

// Phase selects when a publisher emits.
type Phase = metadata.Phase

const (
	PhaseBefore = metadata.PhaseBefore
	PhaseAfter  = metadata.PhaseAfter
	PhaseBoth   = metadata.PhaseBoth
)

// Event types.
type (
	Event              = events.Event
	Listener           = events.Listener
	Subscription       = events.Subscription
	Invocation         = events.Invocation
	RegisteredPayload  = events.RegisteredPayload
	ResolvedPayload    = events.ResolvedPayload
	ConstructedPayload = events.ConstructedPayload
	ClearedPayload     = events.ClearedPayload
)

// Built-in event names.
const (
	EventRegistered  = events.Registered
	EventResolved    = events.Resolved
	EventConstructed = events.Constructed
	EventCleared     = events.Cleared
	EventTelemetry   = events.Telemetry
)

// Deferred results are awaited before an invocation event is emitted.
type (
	Deferred   = intercept.Deferred
	Future     = intercept.Future
	PanicError = intercept.PanicError
)

var (
	Go       = intercept.Go
	Resolved = intercept.Resolved
	Rejected = intercept.Rejected
)

// Registry options.
var (
	WithLogger   = di.WithLogger
	WithMetadata = di.WithMetadata
	WithConfig   = di.WithConfig
	WithClock    = di.WithClock
)

// Registration options.
var (
	Singleton     = di.Singleton
	Transient     = di.Transient
	WithSingleton = di.WithSingleton
	WithName      = di.WithName
)

// Metadata options.
var (
	WithLogging = metadata.WithLogging
	WithPhase   = metadata.WithPhase
)

// New creates an empty registry.
func New(opts ...Option) *Registry {
	return di.New(opts...)
}

var (
	defaultMu       sync.Mutex
	defaultRegistry *Registry
)

// Default returns the process-wide registry, creating it on first use.
func Default() *Registry {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultRegistry == nil {
		defaultRegistry = di.New()
	}
	return defaultRegistry
}

// SetDefault replaces the process-wide registry and returns the previous one.
func SetDefault(r *Registry) *Registry {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	prev := defaultRegistry
	defaultRegistry = r
	return prev
}

// Describe returns a builder writing metadata for T to the process-wide
// store. A struct type writes the static side, a pointer type the instance
// side.
func Describe[T any]() *ClassBuilder {
	return metadata.Describe(nil, reflect.TypeFor[T]())
}

// DescribeIn is Describe against a specific store.
func DescribeIn[T any](store *metadata.Store) *ClassBuilder {
	return metadata.Describe(store, reflect.TypeFor[T]())
}

// NewMetadataStore creates an empty metadata store, for registries that
// should not see the process-wide metadata.
func NewMetadataStore() *metadata.Store {
	return metadata.NewStore()
}

// TypeOf returns the reflect.Type token for T.
func TypeOf[T any]() reflect.Type {
	return reflect.TypeFor[T]()
}

// Resolve resolves token from r and asserts the result to T.
func Resolve[T any](r *Registry, token any) (T, error) {
	return di.Resolve[T](r, token)
}

// MustResolve resolves token from r and panics on failure.
func MustResolve[T any](r *Registry, token any) T {
	return di.MustResolve[T](r, token)
}

// ResolveType resolves the service registered under the type T.
func ResolveType[T any](r *Registry) (T, error) {
	return di.ResolveType[T](r)
}

// Construct builds a fresh T from target, bypassing the singleton cache.
func Construct[T any](r *Registry, target any, overrides map[int]any) (T, error) {
	return di.Construct[T](r, target, overrides)
}

// Method returns the named, possibly intercepted, method of instance as F.
func Method[F any](r *Registry, instance any, name string) (F, error) {
	return di.Method[F](r, instance, name)
}

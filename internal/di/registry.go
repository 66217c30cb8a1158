package di

import (
	"cmp"
	"maps"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xraph/conductor/config"
	"github.com/xraph/conductor/internal/events"
	"github.com/xraph/conductor/internal/metadata"
	"github.com/xraph/conductor/internal/schedule"
	"github.com/xraph/conductor/logger"
)

// Registry stores service definitions and resolves them. Every definition is
// reachable by its token; class definitions are also reachable by their
// printable name.
type Registry struct {
	mu   sync.RWMutex
	defs map[key]*definition
	seq  atomic.Uint64

	bus       *events.Bus
	scheduler *schedule.Scheduler
	chains    *chains
	store     *metadata.Store
	logger    logger.Logger
	config    *config.Config
	now       func() time.Time

	// wired tracks what the construction pipeline attached so Clear can undo it.
	wiredMu sync.Mutex
	subs    []*events.Subscription
	tables  map[any]*methodTable
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger. It is shared with the bus and the scheduler.
func WithLogger(l logger.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetadata sets the metadata store read by the construction pipeline.
func WithMetadata(store *metadata.Store) Option {
	return func(r *Registry) {
		if store != nil {
			r.store = store
		}
	}
}

// WithConfig sets telemetry logging, scheduler switches and overrides.
func WithConfig(cfg *config.Config) Option {
	return func(r *Registry) {
		if cfg != nil {
			r.config = cfg
		}
	}
}

// WithClock replaces time.Now for calendar schedules.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	cfg := config.Default()
	r := &Registry{
		defs:   make(map[key]*definition),
		store:  metadata.Default(),
		logger: logger.NewNoopLogger(),
		config: &cfg,
		now:    time.Now,
		chains: newChains(),
		tables: make(map[any]*methodTable),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.bus = events.NewBus(r.logger)
	r.scheduler = r.newScheduler()
	return r
}

func (r *Registry) newScheduler() *schedule.Scheduler {
	return schedule.New(
		schedule.WithLogger(r.logger.Named("scheduler")),
		schedule.WithHorizon(r.config.Scheduler.Horizon()),
		schedule.WithClock(r.now),
	)
}

// RegisterOption configures a single registration.
type RegisterOption func(*registerOptions)

type registerOptions struct {
	singleton bool
	name      string
}

// Singleton caches the first instance. This is the default.
func Singleton() RegisterOption {
	return WithSingleton(true)
}

// Transient builds a new instance on every resolution.
func Transient() RegisterOption {
	return WithSingleton(false)
}

// WithSingleton selects the lifecycle explicitly.
func WithSingleton(singleton bool) RegisterOption {
	return func(o *registerOptions) {
		o.singleton = singleton
	}
}

// WithName overrides the printable name of a class registration.
func WithName(name string) RegisterOption {
	return func(o *registerOptions) {
		o.name = name
	}
}

func mergeOptions(opts []RegisterOption) registerOptions {
	o := registerOptions{singleton: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Register adds a class. class is a constructor function returning T or
// (T, error), or the reflect.Type of a struct. The definition is stored under
// the produced type and under its printable name, replacing earlier ones.
func (r *Registry) Register(class any, opts ...RegisterOption) error {
	def, err := newClassDefinition(class, mergeOptions(opts))
	if err != nil {
		return err
	}

	r.mu.Lock()
	def.seq = r.seq.Add(1)
	if old, ok := r.defs[key{typ: def.produces}]; ok && r.defs[key{name: old.name}] == old {
		delete(r.defs, key{name: old.name})
	}
	r.defs[key{typ: def.produces}] = def
	if prev, ok := r.defs[key{name: def.name}]; ok && prev.kind == events.KindClass && prev.produces != def.produces {
		r.logger.Warn("printable name now refers to a different class",
			logger.String("name", def.name),
			logger.String("previous", prev.produces.String()),
			logger.String("current", def.produces.String()),
		)
	}
	r.defs[key{name: def.name}] = def
	r.mu.Unlock()

	r.logger.Debug("service registered",
		logger.String("service", def.name),
		logger.String("lifecycle", def.lifecycle()),
		logger.String("kind", def.kind),
	)

	r.bus.Emit(events.Registered, events.RegisteredPayload{
		Token:     def.token,
		Name:      def.name,
		Singleton: def.singleton,
		Kind:      def.kind,
	})
	return nil
}

// RegisterFactory adds a service produced by calling factory with no
// arguments. factory returns T or (T, error).
func (r *Registry) RegisterFactory(name string, factory any, opts ...RegisterOption) error {
	def, err := newFactoryDefinition(name, factory, mergeOptions(opts))
	if err != nil {
		return err
	}

	r.mu.Lock()
	def.seq = r.seq.Add(1)
	r.defs[key{name: name}] = def
	r.mu.Unlock()

	r.logger.Debug("service registered",
		logger.String("service", name),
		logger.String("lifecycle", def.lifecycle()),
		logger.String("kind", def.kind),
	)

	r.bus.Emit(events.Registered, events.RegisteredPayload{
		Token:     name,
		Name:      name,
		Singleton: def.singleton,
		Kind:      def.kind,
	})
	return nil
}

// Has reports whether a definition exists for exactly this token.
func (r *Registry) Has(token any) bool {
	k, err := keyOf(token)
	if err != nil {
		return false
	}
	_, ok := r.lookup(k)
	return ok
}

func (r *Registry) lookup(k key) (*definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[k]
	return def, ok
}

// definitions returns every distinct definition in registration order.
func (r *Registry) definitions() []*definition {
	r.mu.RLock()
	seen := make(map[*definition]struct{}, len(r.defs))
	for _, def := range r.defs {
		seen[def] = struct{}{}
	}
	r.mu.RUnlock()

	defs := slices.Collect(maps.Keys(seen))
	slices.SortFunc(defs, func(a, b *definition) int {
		return cmp.Compare(a.seq, b.seq)
	})
	return defs
}

func countDistinct(defs map[key]*definition) int {
	seen := make(map[*definition]struct{}, len(defs))
	for _, def := range defs {
		seen[def] = struct{}{}
	}
	return len(seen)
}

// ServiceNames returns the string-keyed registrations, sorted. Class
// registrations appear under their printable name.
func (r *Registry) ServiceNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.defs))
	for k := range r.defs {
		if k.typ == nil {
			names = append(names, k.name)
		}
	}
	slices.Sort(names)
	return names
}

// Clear stops every scheduled job, drops every definition and cached
// instance and emits Cleared with the number of definitions removed.
func (r *Registry) Clear() {
	stopped := r.scheduler.StopAll()

	r.wiredMu.Lock()
	subs := r.subs
	r.subs = nil
	r.tables = make(map[any]*methodTable)
	r.wiredMu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}

	r.mu.Lock()
	count := countDistinct(r.defs)
	r.defs = make(map[key]*definition)
	r.mu.Unlock()

	r.logger.Debug("registry cleared",
		logger.Int("services", count),
		logger.Int("jobs_stopped", stopped),
	)

	r.bus.Emit(events.Cleared, events.ClearedPayload{Count: count})
}

// ForkOptions configures Fork.
type ForkOptions struct {
	// CarrySingletons shares already built singleton instances with the fork.
	CarrySingletons bool
}

// Fork returns an independent registry with copies of every definition. The
// fork has its own bus and scheduler and shares the metadata store, logger
// and config. Carried singletons have their intercepted methods and
// subscribers bound to the fork's bus; their jobs keep running on the parent.
func (r *Registry) Fork(opts ForkOptions) *Registry {
	f := New(
		WithLogger(r.logger),
		WithMetadata(r.store),
		WithConfig(r.config),
		WithClock(r.now),
	)

	r.mu.RLock()
	clones := make(map[*definition]*definition, len(r.defs))
	for k, def := range r.defs {
		c, ok := clones[def]
		if !ok {
			c = def.clone(opts.CarrySingletons)
			clones[def] = c
		}
		f.defs[k] = c
	}
	r.mu.RUnlock()

	f.seq.Store(r.seq.Load())

	for _, c := range clones {
		if c.isFactory() {
			continue
		}
		if instance, ok := c.cachedInstance(); ok && reflect.TypeOf(instance).Kind() == reflect.Pointer {
			f.rebind(c, instance)
		}
	}
	return f
}

// On registers a lifecycle listener.
func (r *Registry) On(event string, listener events.Listener) *events.Subscription {
	return r.bus.On(event, listener)
}

// Off removes the listener subscribed with id.
func (r *Registry) Off(event, id string) bool {
	return r.bus.Off(event, id)
}

// Emit publishes a custom event on the registry bus.
func (r *Registry) Emit(event string, payload any) {
	r.bus.Emit(event, payload)
}

// StopSchedules halts every scheduled job without touching registrations.
func (r *Registry) StopSchedules() int {
	return r.scheduler.StopAll()
}

// JobCount returns the number of live scheduled jobs.
func (r *Registry) JobCount() int {
	return r.scheduler.Len()
}

// Jobs returns the live scheduled jobs.
func (r *Registry) Jobs() []*schedule.Job {
	return r.scheduler.Jobs()
}

// Logger returns the registry logger.
func (r *Registry) Logger() logger.Logger {
	return r.logger
}

// Metadata returns the metadata store the pipeline reads.
func (r *Registry) Metadata() *metadata.Store {
	return r.store
}

// Config returns the registry configuration.
func (r *Registry) Config() *config.Config {
	return r.config
}

func (r *Registry) track(subs ...*events.Subscription) {
	r.wiredMu.Lock()
	r.subs = append(r.subs, subs...)
	r.wiredMu.Unlock()
}

func (r *Registry) untrack(subs []*events.Subscription) {
	r.wiredMu.Lock()
	r.subs = slices.DeleteFunc(r.subs, func(s *events.Subscription) bool {
		return slices.Contains(subs, s)
	})
	r.wiredMu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
}

// TypeName returns the printable name used for t.
func TypeName(t reflect.Type) string {
	return typeName(t)
}

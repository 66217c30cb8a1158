package di

import (
	"context"
	"fmt"
	"reflect"

	"github.com/xraph/conductor/internal/errors"
	"github.com/xraph/conductor/internal/events"
	"github.com/xraph/conductor/internal/intercept"
	"github.com/xraph/conductor/internal/metadata"
	"github.com/xraph/conductor/internal/schedule"
	"github.com/xraph/conductor/logger"
)

var (
	eventType   = reflect.TypeFor[events.Event]()
	contextType = reflect.TypeFor[context.Context]()
)

// wiring is the construction pipeline state for one instance.
type wiring struct {
	r        *Registry
	class    string
	instance any
	typ      reflect.Type
	table    *methodTable
	log      logger.Logger

	// carried skips func fields, which stay bound to the registry that built the instance.
	carried bool

	subs []*events.Subscription
	jobs []*schedule.Job
}

// wire applies, in order, telemetry wrapping and telemetry listeners,
// publish wrapping and subscribers, schedules and property injection.
// Metadata is read from the dynamic type of instance. A schedule that cannot
// be armed fails construction and undoes what was attached; property
// failures are only logged.
func (r *Registry) wire(st *stack, def *definition, instance any, retain bool) error {
	w := &wiring{
		r:        r,
		class:    def.name,
		instance: instance,
		typ:      reflect.TypeOf(instance),
		table:    r.tableFor(instance, retain),
		log:      r.logger.With(logger.String("class", def.name)),
	}

	w.telemetry()
	w.publish()
	if err := w.schedules(); err != nil {
		w.rollback()
		return err
	}
	w.properties(st)

	r.track(w.subs...)
	return nil
}

// rebind attaches a carried singleton to this registry: its methods are
// wrapped again to emit on this bus and its subscribers listen here.
// Schedules and properties are left as the parent armed and injected them.
func (r *Registry) rebind(def *definition, instance any) {
	w := &wiring{
		r:        r,
		class:    def.name,
		instance: instance,
		typ:      reflect.TypeOf(instance),
		table:    r.ownTable(instance),
		log:      r.logger.With(logger.String("class", def.name)),
		carried:  true,
	}

	w.telemetry()
	w.publish()
	r.track(w.subs...)
}

func (w *wiring) telemetry() {
	store := w.r.store

	flagged := metadata.Telemetry(store, w.typ)
	for _, method := range metadata.SortedKeys(flagged) {
		opts := flagged[method]
		w.intercept(method, func(fn reflect.Value) (reflect.Value, error) {
			return intercept.Telemetry(fn, w.r.bus, intercept.Options{
				Class:   w.class,
				Method:  method,
				Logging: opts.Logging || w.r.config.Telemetry.Logging,
				Logger:  w.r.logger,
			})
		})
	}

	listeners := metadata.TelemetryListeners(store, w.typ)
	for _, method := range metadata.SortedKeys(listeners) {
		if listeners[method] {
			w.subscribe(events.Telemetry, method)
		}
	}
}

func (w *wiring) publish() {
	store := w.r.store

	publishers := metadata.Publishers(store, w.typ)
	for _, method := range metadata.SortedKeys(publishers) {
		opts := publishers[method]
		w.intercept(method, func(fn reflect.Value) (reflect.Value, error) {
			return intercept.Publish(fn, w.r.bus, intercept.Options{
				Class:   w.class,
				Method:  method,
				Event:   opts.Event,
				Phase:   opts.Phase,
				Logging: opts.Logging,
				Logger:  w.r.logger,
			})
		})
	}

	subscriptions := metadata.Subscriptions(store, w.typ)
	for _, event := range metadata.SortedKeys(subscriptions) {
		for _, method := range subscriptions[event] {
			w.subscribe(event, method)
		}
	}
}

// intercept replaces method with wrap(method). Func fields are patched in
// place; methods go to the instance's method table.
func (w *wiring) intercept(method string, wrap func(reflect.Value) (reflect.Value, error)) {
	m, err := w.r.member(w.instance, w.class, method, w.table)
	if err != nil {
		w.log.Warn("cannot intercept method", logger.String("method", method), logger.Error(err))
		return
	}
	if m.isField() && w.carried {
		return
	}
	if !m.isField() && w.table == nil {
		w.log.Warn("cannot intercept method",
			logger.String("method", method),
			logger.Error(errors.ErrNotInterceptable),
		)
		return
	}

	wrapped, err := wrap(m.value)
	if err != nil {
		w.log.Warn("cannot intercept method", logger.String("method", method), logger.Error(err))
		return
	}

	if m.isField() {
		m.field.Set(wrapped)
		return
	}
	w.table.set(method, wrapped)
}

func (w *wiring) subscribe(event, method string) {
	m, err := w.r.member(w.instance, w.class, method, w.table)
	if err == nil {
		var listener events.Listener
		if listener, err = listenerFor(m.value); err == nil {
			w.subs = append(w.subs, w.r.bus.On(event, listener))
			return
		}
	}
	w.log.Warn("cannot subscribe method",
		logger.String("method", method),
		logger.String("event", event),
		logger.Error(err),
	)
}

func (w *wiring) schedules() error {
	specs := metadata.Schedules(w.r.store, w.typ)
	if len(specs) == 0 {
		return nil
	}

	cfg := w.r.config.Scheduler
	if cfg.Disabled {
		w.log.Debug("scheduler disabled, skipping schedules", logger.Int("schedules", len(specs)))
		return nil
	}

	for _, method := range metadata.SortedKeys(specs) {
		spec := specs[method]
		if text, ok := cfg.Override(w.class, method); ok {
			overridden, err := schedule.ParseSpec(text)
			if err != nil {
				return err
			}
			spec = overridden
		}

		m, err := w.r.member(w.instance, w.class, method, w.table)
		if err != nil {
			return err
		}
		task, err := taskFor(m.value)
		if err != nil {
			return errors.ErrInvalidSchedule(spec.String(), err)
		}

		name := w.class + "." + method
		var job *schedule.Job
		if spec.Every > 0 {
			job, err = w.r.scheduler.Every(name, spec.Every, task)
		} else {
			job, err = w.r.scheduler.ScheduleExpr(name, spec.Cron, task)
		}
		if err != nil {
			return err
		}
		w.jobs = append(w.jobs, job)
	}
	return nil
}

func (w *wiring) properties(st *stack) {
	injections := w.injections()
	for _, field := range metadata.SortedKeys(injections) {
		if err := w.inject(st, field, injections[field]); err != nil {
			w.log.Warn("property injection failed",
				logger.String("field", field),
				logger.Error(errors.ErrPropertyInjection(w.class, field, err)),
			)
		}
	}
}

// injections merges inject struct tags with declared field tokens, declared
// tokens winning. inject:"" injects the field type, inject:"name" the named
// service.
func (w *wiring) injections() map[string]any {
	out := make(map[string]any)

	if w.typ.Kind() == reflect.Pointer && w.typ.Elem().Kind() == reflect.Struct {
		for _, sf := range reflect.VisibleFields(w.typ.Elem()) {
			tag, ok := sf.Tag.Lookup("inject")
			if !ok || !sf.IsExported() {
				continue
			}
			if tag == "" {
				out[sf.Name] = sf.Type
			} else {
				out[sf.Name] = tag
			}
		}
	}

	for field, token := range metadata.Properties(w.r.store, w.typ) {
		out[field] = token
	}
	return out
}

func (w *wiring) inject(st *stack, field string, token any) error {
	v := reflect.ValueOf(w.instance)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		return errors.ErrNotInterceptable
	}

	sf, ok := v.Elem().Type().FieldByName(field)
	if !ok || !sf.IsExported() {
		return fmt.Errorf("no exported field %q", field)
	}
	fv, err := v.Elem().FieldByIndexErr(sf.Index)
	if err != nil {
		return err
	}

	dep, err := w.r.resolve(st, token)
	if err != nil {
		return err
	}
	val, err := valueFor(dep, fv.Type())
	if err != nil {
		return err
	}
	fv.Set(val)
	return nil
}

func (w *wiring) rollback() {
	w.r.untrack(w.subs)
	for _, job := range w.jobs {
		job.Stop()
	}
	w.r.dropTable(w.instance)
	w.subs, w.jobs = nil, nil
}

// listenerFor adapts a method to an event listener. The method takes no
// argument, the events.Event or the payload, and may return an error.
func listenerFor(fn reflect.Value) (events.Listener, error) {
	ft := fn.Type()
	if ft.NumIn() > 1 {
		return nil, fmt.Errorf("subscriber takes at most one argument, %s takes %d", ft, ft.NumIn())
	}

	return func(evt events.Event) error {
		var in []reflect.Value
		if ft.NumIn() == 1 {
			p := ft.In(0)
			switch {
			case eventType.AssignableTo(p):
				in = []reflect.Value{reflect.ValueOf(evt)}
			default:
				arg, err := valueFor(evt.Payload, p)
				if err != nil {
					return err
				}
				in = []reflect.Value{arg}
			}
		}

		_, err := splitResults(ft, fn.Call(in))
		return err
	}, nil
}

// taskFor adapts a method to a scheduled task. The method takes nothing or a
// context.Context and may return an error.
func taskFor(fn reflect.Value) (schedule.Task, error) {
	ft := fn.Type()
	switch {
	case ft.NumIn() == 0:
	case ft.NumIn() == 1 && ft.In(0) == contextType:
	default:
		return nil, fmt.Errorf("scheduled method must take no arguments or a context.Context, got %s", ft)
	}

	return func(ctx context.Context) error {
		var in []reflect.Value
		if ft.NumIn() == 1 {
			in = []reflect.Value{reflect.ValueOf(&ctx).Elem()}
		}
		_, err := splitResults(ft, fn.Call(in))
		return err
	}, nil
}

package di

import (
	"fmt"
	"maps"
	"reflect"
	"slices"

	"github.com/xraph/conductor/internal/errors"
	"github.com/xraph/conductor/internal/events"
	"github.com/xraph/conductor/internal/metadata"
)

// stack is the set of definitions under construction on one goroutine.
type stack struct {
	gid  int64
	defs []*definition
}

func (s *stack) has(def *definition) bool {
	return slices.Contains(s.defs, def)
}

// push adds def and returns the matching pop.
func (s *stack) push(def *definition) func() {
	s.defs = append(s.defs, def)
	n := len(s.defs)
	return func() {
		s.defs = s.defs[:n-1]
	}
}

func (s *stack) names() []string {
	names := make([]string, 0, len(s.defs)+1)
	for _, d := range s.defs {
		names = append(names, d.name)
	}
	return names
}

// chain renders the stack followed by the re-entered definition.
func (s *stack) chain(def *definition) []string {
	return append(s.names(), def.name)
}

// Resolve returns the service registered for token. token is a reflect.Type,
// a string or a registered constructor function. Called from inside a
// producer it continues the caller's chain, so a cycle through nested
// Resolve calls fails like one through constructor parameters.
func (r *Registry) Resolve(token any) (any, error) {
	st, done := r.chains.enter()
	defer done()
	return r.resolve(st, token)
}

func (r *Registry) resolve(st *stack, token any) (any, error) {
	k, err := keyOf(token)
	if err != nil {
		return nil, err
	}

	def, ok := r.lookup(k)
	if !ok {
		return nil, errors.ErrServiceNotFound(k.String())
	}
	if st.has(def) {
		return nil, errors.ErrCircularDependency(st.chain(def))
	}

	instance, fromCache, err := r.obtain(st, def)
	if err != nil {
		return nil, err
	}

	r.bus.Emit(events.Resolved, events.ResolvedPayload{
		Token:     def.token,
		Name:      def.name,
		Instance:  instance,
		Singleton: def.singleton,
		FromCache: fromCache,
	})
	return instance, nil
}

// obtain returns the cached singleton or builds a new instance. Singleton
// construction holds the definition's build lock so concurrent callers
// share one instance; waiting on a lock that can never be released fails
// with a circular dependency error.
func (r *Registry) obtain(st *stack, def *definition) (any, bool, error) {
	if !def.singleton {
		release := st.push(def)
		defer release()

		instance, err := r.instantiate(st, def, nil, false)
		return instance, false, err
	}

	if instance, ok := def.cachedInstance(); ok {
		return instance, true, nil
	}

	if err := r.chains.acquire(st, def); err != nil {
		return nil, false, err
	}
	defer r.chains.release(def)

	release := st.push(def)
	defer release()

	if instance, ok := def.cachedInstance(); ok {
		return instance, true, nil
	}

	instance, err := r.instantiate(st, def, nil, true)
	if err != nil {
		return nil, false, err
	}
	def.cache(instance)
	return instance, false, nil
}

// Construct builds a new instance of target without touching the singleton
// cache. target is a registered token or an unregistered constructor
// function or struct type. overrides supply literal constructor arguments by
// position; the remaining parameters are resolved as usual.
func (r *Registry) Construct(target any, overrides map[int]any) (any, error) {
	def, err := r.constructTarget(target)
	if err != nil {
		return nil, err
	}

	st, done := r.chains.enter()
	defer done()
	if st.has(def) {
		return nil, errors.ErrCircularDependency(st.chain(def))
	}
	release := st.push(def)
	defer release()

	instance, err := r.instantiate(st, def, overrides, false)
	if err != nil {
		return nil, err
	}

	r.bus.Emit(events.Constructed, events.ConstructedPayload{
		Token:     def.token,
		Name:      def.name,
		Instance:  instance,
		Overrides: maps.Clone(overrides),
	})
	return instance, nil
}

func (r *Registry) constructTarget(target any) (*definition, error) {
	k, err := keyOf(target)
	if err != nil {
		return nil, err
	}
	if def, ok := r.lookup(k); ok {
		return def, nil
	}

	// unregistered classes are built from the target itself
	if _, ok := target.(string); !ok {
		if def, err := newClassDefinition(target, registerOptions{}); err == nil {
			return def, nil
		}
	}
	return nil, errors.ErrServiceNotFound(k.String())
}

// instantiate runs the producer. Class producers then go through the
// construction pipeline; retain marks instances the registry keeps.
func (r *Registry) instantiate(st *stack, def *definition, overrides map[int]any, retain bool) (any, error) {
	if def.isFactory() {
		return r.produced(def, def.producer.Call(nil))
	}

	for pos := range overrides {
		if pos < 0 || pos >= len(def.params) {
			return nil, errors.ErrInvalidOverride(def.name, pos,
				fmt.Errorf("constructor takes %d parameters", len(def.params)))
		}
	}

	var instance any
	if !def.producer.IsValid() {
		instance = reflect.New(def.produces.Elem()).Interface()
	} else {
		args, err := r.arguments(st, def, overrides)
		if err != nil {
			return nil, err
		}
		if instance, err = r.produced(def, def.producer.Call(args)); err != nil {
			return nil, err
		}
		if isNilValue(reflect.ValueOf(instance)) {
			return nil, errors.ErrConstructionFailed(def.name, errors.New("constructor returned nil"))
		}
	}

	if err := r.wire(st, def, instance, retain); err != nil {
		return nil, err
	}
	return instance, nil
}

// arguments builds the constructor arguments left to right. An override wins
// over a declared token, which wins over the parameter type. Parameters with
// none of these keep their zero value.
func (r *Registry) arguments(st *stack, def *definition, overrides map[int]any) ([]reflect.Value, error) {
	declared := metadata.Params(r.store, def.produces)
	args := make([]reflect.Value, len(def.params))

	for i, p := range def.params {
		if v, ok := overrides[i]; ok {
			val, err := valueFor(v, p)
			if err != nil {
				return nil, errors.ErrInvalidOverride(def.name, i, err)
			}
			args[i] = val
			continue
		}

		var token any
		switch tok, ok := declared[i]; {
		case ok:
			token = tok
		case inferable(p):
			token = p
		default:
			args[i] = reflect.Zero(p)
			continue
		}

		dep, err := r.resolve(st, token)
		if err != nil {
			return nil, err
		}
		val, err := valueFor(dep, p)
		if err != nil {
			return nil, errors.ErrConstructionFailed(def.name, fmt.Errorf("parameter %d: %w", i, err))
		}
		args[i] = val
	}

	return args, nil
}

func (r *Registry) produced(def *definition, out []reflect.Value) (any, error) {
	if def.returnsErr {
		if e := out[1]; !e.IsNil() {
			return nil, errors.ErrConstructionFailed(def.name, e.Interface().(error))
		}
	}
	return out[0].Interface(), nil
}

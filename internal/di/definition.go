package di

import (
	"reflect"
	"sync"

	"github.com/xraph/conductor/internal/errors"
	"github.com/xraph/conductor/internal/events"
	"github.com/xraph/conductor/internal/metadata"
)

var errorType = reflect.TypeFor[error]()

// definition holds one registration: how to produce the service and, for
// singletons, the cached instance.
type definition struct {
	token      any
	name       string
	kind       string
	produces   reflect.Type
	producer   reflect.Value
	params     []reflect.Type
	returnsErr bool
	singleton  bool
	seq        uint64

	// build serialises singleton construction; mu guards the cache.
	build    sync.Mutex
	mu       sync.RWMutex
	instance any
	cached   bool
}

// newClassDefinition accepts a constructor function or the reflect.Type of a
// struct. A struct class is built with reflect.New and produces *T.
func newClassDefinition(class any, o registerOptions) (*definition, error) {
	def := &definition{kind: events.KindClass, singleton: o.singleton}

	switch c := class.(type) {
	case reflect.Type:
		produces := c
		if produces.Kind() == reflect.Struct {
			produces = reflect.PointerTo(produces)
		}
		if produces.Kind() != reflect.Pointer || produces.Elem().Kind() != reflect.Struct {
			return nil, errors.ErrInvalidProducer(c.String(), "class type must be a struct or a pointer to struct")
		}
		def.produces = produces

	default:
		v := reflect.ValueOf(class)
		if v.Kind() != reflect.Func {
			return nil, errors.ErrInvalidProducer(reflect.TypeOf(class).String(), "class must be a constructor function or a struct type")
		}
		params, produces, returnsErr, reason := inspectProducer(v, true)
		if reason != "" {
			return nil, errors.ErrInvalidProducer(v.Type().String(), reason)
		}
		def.producer = v
		def.params = params
		def.produces = produces
		def.returnsErr = returnsErr
	}

	def.token = def.produces
	def.name = typeName(def.produces)
	if o.name != "" {
		def.name = o.name
	}
	return def, nil
}

func newFactoryDefinition(name string, factory any, o registerOptions) (*definition, error) {
	if name == "" {
		return nil, errors.ErrInvalidProducer("", "factory name cannot be empty")
	}
	v := reflect.ValueOf(factory)
	if v.Kind() != reflect.Func {
		return nil, errors.ErrInvalidProducer(name, "factory must be a function")
	}
	_, produces, returnsErr, reason := inspectProducer(v, false)
	if reason != "" {
		return nil, errors.ErrInvalidProducer(name, reason)
	}

	return &definition{
		token:      name,
		name:       name,
		kind:       events.KindFactory,
		produces:   produces,
		producer:   v,
		returnsErr: returnsErr,
		singleton:  o.singleton,
	}, nil
}

// inspectProducer checks the producer signature. A non-empty reason means
// the function cannot be used.
func inspectProducer(v reflect.Value, allowParams bool) (params []reflect.Type, produces reflect.Type, returnsErr bool, reason string) {
	t := v.Type()

	switch {
	case v.IsNil():
		return nil, nil, false, "function is nil"
	case t.IsVariadic():
		return nil, nil, false, "variadic constructors are not supported"
	case !allowParams && t.NumIn() > 0:
		return nil, nil, false, "factories take no arguments"
	}

	switch t.NumOut() {
	case 1:
	case 2:
		if t.Out(1) != errorType {
			return nil, nil, false, "second return value must be error"
		}
		returnsErr = true
	default:
		return nil, nil, false, "must return T or (T, error)"
	}
	if t.Out(0) == errorType {
		return nil, nil, false, "first return value cannot be error"
	}

	params = make([]reflect.Type, t.NumIn())
	for i := range params {
		params[i] = t.In(i)
	}
	return params, t.Out(0), returnsErr, ""
}

// isFactory reports whether the producer skips the construction pipeline.
func (d *definition) isFactory() bool {
	return d.kind == events.KindFactory
}

func (d *definition) cachedInstance() (any, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.instance, d.cached
}

func (d *definition) cache(instance any) {
	d.mu.Lock()
	d.instance = instance
	d.cached = true
	d.mu.Unlock()
}

// clone copies the registration. The cached instance is carried over only
// when carry is set, in which case both definitions refer to the same object.
func (d *definition) clone(carry bool) *definition {
	c := &definition{
		token:      d.token,
		name:       d.name,
		kind:       d.kind,
		produces:   d.produces,
		producer:   d.producer,
		params:     d.params,
		returnsErr: d.returnsErr,
		singleton:  d.singleton,
		seq:        d.seq,
	}
	if carry && d.singleton {
		c.instance, c.cached = d.cachedInstance()
	}
	return c
}

// dependencies lists the tokens the constructor asks for: declared tokens
// first, inferred pointer or interface types otherwise.
func (d *definition) dependencies(store *metadata.Store) []any {
	if d.isFactory() || len(d.params) == 0 {
		return nil
	}

	declared := metadata.Params(store, d.produces)
	deps := make([]any, 0, len(d.params))
	for i, p := range d.params {
		if tok, ok := declared[i]; ok {
			deps = append(deps, tok)
			continue
		}
		if inferable(p) {
			deps = append(deps, p)
		}
	}
	return deps
}

func (d *definition) lifecycle() string {
	if d.singleton {
		return "singleton"
	}
	return "transient"
}

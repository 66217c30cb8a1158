package di

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/xraph/conductor/internal/errors"
)

// methodTable holds the intercepted version of an instance's methods.
type methodTable struct {
	mu      sync.RWMutex
	methods map[string]reflect.Value
}

func (t *methodTable) get(name string) (reflect.Value, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.methods[name]
	return v, ok
}

func (t *methodTable) set(name string, fn reflect.Value) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.methods == nil {
		t.methods = make(map[string]reflect.Value)
	}
	t.methods[name] = fn
}

// Intercepted stores intercepted methods inside the instance. Services that
// are not singletons need it for their wrapped methods to be reachable
// through Method and Invoke; singletons work without it.
type Intercepted struct {
	table methodTable
}

func (i *Intercepted) interceptedMethods() *methodTable {
	return &i.table
}

type interceptable interface {
	interceptedMethods() *methodTable
}

// tableFor returns where wrapped methods of instance live. create allows the
// registry to keep its own table for instances it retains anyway.
// A table the registry already keeps for instance wins over an embedded one,
// which is how a fork rebinds carried singletons.
func (r *Registry) tableFor(instance any, create bool) *methodTable {
	if instance == nil || reflect.TypeOf(instance).Kind() != reflect.Pointer {
		return nil
	}

	r.wiredMu.Lock()
	defer r.wiredMu.Unlock()

	if t, ok := r.tables[instance]; ok {
		return t
	}
	if i, ok := instance.(interceptable); ok {
		return i.interceptedMethods()
	}
	if !create {
		return nil
	}
	t := &methodTable{}
	r.tables[instance] = t
	return t
}

// ownTable gives instance a registry table even when it embeds Intercepted.
func (r *Registry) ownTable(instance any) *methodTable {
	t := &methodTable{}
	r.wiredMu.Lock()
	r.tables[instance] = t
	r.wiredMu.Unlock()
	return t
}

func (r *Registry) dropTable(instance any) {
	if instance == nil || reflect.TypeOf(instance).Kind() != reflect.Pointer {
		return
	}
	r.wiredMu.Lock()
	delete(r.tables, instance)
	r.wiredMu.Unlock()
}

// member is a callable on an instance: an exported func-typed field or a method.
type member struct {
	value reflect.Value
	field reflect.Value
}

func (m member) isField() bool {
	return m.field.IsValid()
}

func (r *Registry) member(instance any, class, name string, table *methodTable) (member, error) {
	v := reflect.ValueOf(instance)
	if !v.IsValid() {
		return member{}, errors.ErrMethodNotFound(class, name)
	}

	if v.Kind() == reflect.Pointer && !v.IsNil() && v.Elem().Kind() == reflect.Struct {
		if sf, ok := v.Elem().Type().FieldByName(name); ok && sf.IsExported() && sf.Type.Kind() == reflect.Func {
			f, err := v.Elem().FieldByIndexErr(sf.Index)
			if err != nil {
				return member{}, err
			}
			return member{value: f, field: f}, nil
		}
	}

	if table != nil {
		if fn, ok := table.get(name); ok {
			return member{value: fn}, nil
		}
	}

	m := v.MethodByName(name)
	if !m.IsValid() {
		return member{}, errors.ErrMethodNotFound(class, name)
	}
	return member{value: m}, nil
}

// Method returns the named method or func field of instance. Intercepted
// methods are returned wrapped.
func (r *Registry) Method(instance any, name string) (reflect.Value, error) {
	class := "<nil>"
	if instance != nil {
		class = typeName(reflect.TypeOf(instance))
	}

	m, err := r.member(instance, class, name, r.tableFor(instance, false))
	if err != nil {
		return reflect.Value{}, err
	}
	if m.value.IsNil() {
		return reflect.Value{}, errors.ErrMethodNotFound(class, name)
	}
	return m.value, nil
}

// Invoke calls the named method with args. A trailing error return is
// reported as the error; the other return values are returned in order.
func (r *Registry) Invoke(instance any, name string, args ...any) ([]any, error) {
	fn, err := r.Method(instance, name)
	if err != nil {
		return nil, err
	}

	ft := fn.Type()
	fixed := ft.NumIn()
	if ft.IsVariadic() {
		fixed--
	}
	if len(args) < fixed || (!ft.IsVariadic() && len(args) > fixed) {
		return nil, fmt.Errorf("%s: expected %d arguments, got %d", name, ft.NumIn(), len(args))
	}

	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		var pt reflect.Type
		if i < fixed {
			pt = ft.In(i)
		} else {
			pt = ft.In(fixed).Elem()
		}
		if in[i], err = valueFor(arg, pt); err != nil {
			return nil, fmt.Errorf("%s: argument %d: %w", name, i, err)
		}
	}

	out := fn.Call(in)
	return splitResults(ft, out)
}

func splitResults(ft reflect.Type, out []reflect.Value) ([]any, error) {
	var err error
	if n := len(out); n > 0 && ft.Out(n-1) == errorType {
		if e := out[n-1]; !e.IsNil() {
			err = e.Interface().(error)
		}
		out = out[:n-1]
	}

	results := make([]any, len(out))
	for i, v := range out {
		results[i] = v.Interface()
	}
	return results, err
}

// valueFor adapts v to a value of type t.
func valueFor(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		switch t.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, fmt.Errorf("%w: nil is not assignable to %s", errors.ErrTypeMismatch, t)
	}

	rv := reflect.ValueOf(v)
	switch {
	case rv.Type().AssignableTo(t):
		return rv, nil
	case rv.Kind() == t.Kind() && rv.Type().ConvertibleTo(t):
		return rv.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("%w: %s is not assignable to %s", errors.ErrTypeMismatch, rv.Type(), t)
}

func isNilValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return !v.IsValid()
}

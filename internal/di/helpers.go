package di

import (
	"fmt"
	"reflect"

	"github.com/xraph/conductor/internal/errors"
)

// Resolve resolves token and asserts the result to T.
func Resolve[T any](r *Registry, token any) (T, error) {
	var zero T

	instance, err := r.Resolve(token)
	if err != nil {
		return zero, err
	}

	typed, ok := instance.(T)
	if !ok {
		return zero, fmt.Errorf("%w: service %v is not of type %v", errors.ErrTypeMismatch, tokenString(token), reflect.TypeFor[T]())
	}
	return typed, nil
}

// MustResolve resolves token and panics on failure.
func MustResolve[T any](r *Registry, token any) T {
	instance, err := Resolve[T](r, token)
	if err != nil {
		panic(fmt.Sprintf("failed to resolve %v: %v", tokenString(token), err))
	}
	return instance
}

// ResolveType resolves the service registered under the type T.
func ResolveType[T any](r *Registry) (T, error) {
	return Resolve[T](r, reflect.TypeFor[T]())
}

// Construct builds a fresh T from target with the given overrides.
func Construct[T any](r *Registry, target any, overrides map[int]any) (T, error) {
	var zero T

	instance, err := r.Construct(target, overrides)
	if err != nil {
		return zero, err
	}

	typed, ok := instance.(T)
	if !ok {
		return zero, fmt.Errorf("%w: constructed %T is not of type %v", errors.ErrTypeMismatch, instance, reflect.TypeFor[T]())
	}
	return typed, nil
}

// Method returns the named method of instance as F. Intercepted methods are
// returned wrapped.
func Method[F any](r *Registry, instance any, name string) (F, error) {
	var zero F

	fn, err := r.Method(instance, name)
	if err != nil {
		return zero, err
	}

	want := reflect.TypeFor[F]()
	if !fn.Type().ConvertibleTo(want) {
		return zero, fmt.Errorf("%w: method %s is %s, not %s", errors.ErrTypeMismatch, name, fn.Type(), want)
	}
	return fn.Convert(want).Interface().(F), nil
}

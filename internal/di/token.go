package di

import (
	"reflect"

	"github.com/xraph/conductor/internal/errors"
)

// key identifies a definition. Exactly one of typ and name is set.
type key struct {
	typ  reflect.Type
	name string
}

func (k key) String() string {
	if k.typ != nil {
		return typeName(k.typ)
	}
	return k.name
}

// keyOf normalises a token. Strings and reflect.Type values are used as is; a
// constructor function stands for the type it produces.
func keyOf(token any) (key, error) {
	switch t := token.(type) {
	case string:
		if t == "" {
			return key{}, errors.ErrInvalidToken(token)
		}
		return key{name: t}, nil
	case reflect.Type:
		return key{typ: t}, nil
	case nil:
		return key{}, errors.ErrInvalidToken(token)
	}

	v := reflect.ValueOf(token)
	if v.Kind() == reflect.Func && v.Type().NumOut() > 0 {
		return key{typ: v.Type().Out(0)}, nil
	}
	return key{}, errors.ErrInvalidToken(token)
}

// typeName is the printable name of t: the declared name with pointers
// stripped, or the type literal for unnamed types.
func typeName(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if name := t.Name(); name != "" {
		return name
	}
	return t.String()
}

// inferable reports whether a constructor parameter of type t is resolved by
// its type when no explicit token is declared.
func inferable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface:
		return true
	default:
		return false
	}
}

// TypeOf returns the reflect.Type token for T.
func TypeOf[T any]() reflect.Type {
	return reflect.TypeFor[T]()
}

// Package codec deep copies handler arguments declared as copies.
package codec

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"reflect"
)

// Cloner is implemented by values that know how to copy themselves. Clone
// prefers it over serialization.
type Cloner[T any] interface {
	Clone() T
}

// Encode serializes v using encoding/gob. Callers must ensure that v is
// gob-encodable: exported fields, registered interface implementations.
func Encode(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeInto decodes data produced by Encode into a new value of type t.
func DecodeInto(data []byte, t reflect.Type) (any, error) {
	ptr := reflect.New(t)
	if len(data) == 0 {
		return ptr.Elem().Interface(), nil
	}
	if err := gob.NewDecoder(bytes.NewReader(data)).DecodeValue(ptr); err != nil {
		return nil, err
	}
	return ptr.Elem().Interface(), nil
}

// Clone returns a deep copy of v. Nil values are returned as is.
func Clone[T any](v T) (T, error) {
	var zero T
	if c, ok := any(v).(Cloner[T]); ok {
		return c.Clone(), nil
	}
	if isNil(v) {
		return v, nil
	}
	data, err := Encode(v)
	if err != nil {
		return zero, fmt.Errorf("copy %T: %w", v, err)
	}
	out, err := DecodeInto(data, reflect.TypeOf(any(v)))
	if err != nil {
		return zero, fmt.Errorf("copy %T: %w", v, err)
	}
	return out.(T), nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Chan, reflect.Func:
		return rv.IsNil()
	}
	return false
}

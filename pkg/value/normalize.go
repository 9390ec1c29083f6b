// Package value normalizes handler results into plain data that can cross
// the response boundary.
package value

import (
	"encoding"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/harun/restx/pkg/errdefs"
)

// Kind is the variant a value falls into.
type Kind int

const (
	KindNull Kind = iota
	KindScalar
	KindSequence
	KindMapping
	KindUnsupported
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindScalar:
		return "scalar"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	default:
		return "unsupported"
	}
}

var (
	jsonMarshalerType = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
	textMarshalerType = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
)

// Classify reports the variant of v.
func Classify(v any) Kind {
	return classify(reflect.ValueOf(v))
}

func classify(rv reflect.Value) Kind {
	for rv.IsValid() && (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) {
		if rv.Type().Implements(jsonMarshalerType) || rv.Type().Implements(textMarshalerType) {
			if rv.IsNil() {
				return KindNull
			}
			return KindScalar
		}
		if rv.IsNil() {
			return KindNull
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return KindNull
	}

	t := rv.Type()
	if t.Implements(jsonMarshalerType) || t.Implements(textMarshalerType) {
		return KindScalar
	}

	switch rv.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return KindScalar
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return KindScalar
		}
		return KindSequence
	case reflect.Array:
		return KindSequence
	case reflect.Map:
		switch t.Key().Kind() {
		case reflect.String,
			reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return KindMapping
		}
		return KindUnsupported
	case reflect.Struct:
		return KindMapping
	}
	return KindUnsupported
}

// Normalize walks v and rebuilds sequences as []any and mappings as
// map[string]any. Scalars are returned unchanged. Functions, channels and
// other values with behavior are rejected with an unserializable result
// error naming their position, as are values that contain themselves.
func Normalize(v any) (any, error) {
	w := &walker{active: make(map[visit]bool)}
	return w.normalize(reflect.ValueOf(v), "result")
}

// visit identifies a map, slice or pointer on the path being walked. Slices
// include their length since sub-slices share a base address.
type visit struct {
	ptr uintptr
	typ reflect.Type
	n   int
}

type walker struct {
	active map[visit]bool
}

func (w *walker) normalize(rv reflect.Value, path string) (any, error) {
	switch classify(rv) {
	case KindNull:
		return nil, nil
	case KindScalar:
		return scalar(rv).Interface(), nil
	case KindUnsupported:
		return nil, errdefs.Unserializable("%s holds a %s, which can not be serialized", path, describe(rv))
	}

	var marks []visit
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.Kind() == reflect.Pointer {
			marks = append(marks, visit{ptr: rv.Pointer(), typ: rv.Type()})
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		if !rv.IsNil() {
			marks = append(marks, visit{ptr: rv.Pointer(), typ: rv.Type()})
		}
	case reflect.Slice:
		if rv.Len() > 0 {
			marks = append(marks, visit{ptr: rv.Pointer(), typ: rv.Type(), n: rv.Len()})
		}
	}
	for _, m := range marks {
		if w.active[m] {
			return nil, errdefs.Unserializable("%s is cyclic", path)
		}
	}
	for _, m := range marks {
		w.active[m] = true
	}
	defer func() {
		for _, m := range marks {
			delete(w.active, m)
		}
	}()

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			item, err := w.normalize(rv.Index(i), fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out[i] = item
		}
		return out, nil
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key := fmt.Sprint(iter.Key().Interface())
			item, err := w.normalize(iter.Value(), path+"."+key)
			if err != nil {
				return nil, err
			}
			out[key] = item
		}
		return out, nil
	}

	return w.normalizeStruct(rv, path)
}

func (w *walker) normalizeStruct(rv reflect.Value, path string) (any, error) {
	t := rv.Type()
	out := make(map[string]any, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("json"); ok {
			tagName, _, _ := strings.Cut(tag, ",")
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		item, err := w.normalize(rv.Field(i), path+"."+name)
		if err != nil {
			return nil, err
		}
		out[name] = item
	}
	return out, nil
}

// scalar dereferences rv down to the value itself, stopping at a type whose
// element no longer marshals itself.
func scalar(rv reflect.Value) reflect.Value {
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return rv
		}
		elem := rv.Elem()
		if marshals(rv.Type()) && !marshals(elem.Type()) {
			return rv
		}
		rv = elem
	}
	return rv
}

func marshals(t reflect.Type) bool {
	return t.Implements(jsonMarshalerType) || t.Implements(textMarshalerType)
}

func indirect(rv reflect.Value) reflect.Value {
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		rv = rv.Elem()
	}
	return rv
}

func describe(rv reflect.Value) string {
	rv = indirect(rv)
	if rv.Kind() == reflect.Func {
		return "function"
	}
	return rv.Type().String()
}

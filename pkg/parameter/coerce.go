package parameter

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/harun/restx/pkg/errdefs"
)

var (
	truthy = map[string]bool{"y": true, "yes": true, "true": true, "t": true, "1": true}
	falsy  = map[string]bool{"n": true, "no": true, "false": true, "f": true, "0": true}
)

// Coerce converts a raw request value into the definition's native type.
// A nil raw value means the parameter was not supplied.
func (d *Definition) Coerce(raw any) (any, error) {
	if raw == nil {
		if d.Required {
			return nil, errdefs.MissingParameter("missing required parameter")
		}
		return clone(d.Default), nil
	}

	v, err := toNative(d.Type, raw)
	if err != nil {
		return nil, err
	}
	if err := d.checkChoices(v); err != nil {
		return nil, err
	}
	return v, nil
}

// Coerce is the package-level form of Definition.Coerce.
func Coerce(raw any, d *Definition) (any, error) {
	return d.Coerce(raw)
}

func (d *Definition) checkChoices(v any) error {
	if len(d.Choices) == 0 {
		return nil
	}
	switch vv := v.(type) {
	case []string:
		for _, e := range vv {
			if !d.allowed(e) {
				return errdefs.Validation("%q is not one of %v", e, d.Choices)
			}
		}
	case []float64:
		for _, e := range vv {
			if !d.allowed(e) {
				return errdefs.Validation("%v is not one of %v", e, d.Choices)
			}
		}
	default:
		if !d.allowed(v) {
			return errdefs.Validation("%v is not one of %v", v, d.Choices)
		}
	}
	return nil
}

func (d *Definition) allowed(v any) bool {
	for _, c := range d.Choices {
		if c == v {
			return true
		}
	}
	return false
}

func toNative(t Type, raw any) (any, error) {
	switch t {
	case TypeString:
		return toString(raw)
	case TypePassword:
		s, err := toString(raw)
		if err != nil {
			return nil, err
		}
		return Password(s), nil
	case TypeBoolean:
		return toBool(raw)
	case TypeNumber:
		return toNumber(raw)
	case TypeStringList:
		return toList(raw, toString)
	case TypeNumberList:
		return toList(raw, toNumber)
	}
	return nil, errdefs.UnsupportedType("unsupported parameter type %q", string(t))
}

func toString(raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case Password:
		return string(v), nil
	}
	return "", errdefs.Validation("expected a string, got %T", raw)
}

func toBool(raw any) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		s := strings.ToLower(strings.TrimSpace(v))
		if truthy[s] {
			return true, nil
		}
		if falsy[s] {
			return false, nil
		}
		return false, errdefs.Validation("%q is not a boolean", v)
	}
	return false, errdefs.Validation("expected a boolean, got %T", raw)
}

func toNumber(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case json.Number:
		return parseNumber(string(v))
	case string:
		return parseNumber(v)
	}

	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), nil
	}
	return 0, errdefs.Validation("expected a number, got %T", raw)
}

func parseNumber(s string) (float64, error) {
	val, err := convert.Convert(cty.StringVal(strings.TrimSpace(s)), cty.Number)
	if err != nil {
		return 0, errdefs.Validation("%q is not a number", s)
	}
	var f float64
	if err := gocty.FromCtyValue(val, &f); err != nil {
		return 0, errdefs.Validation("%q is not a number: %v", s, err)
	}
	if math.IsInf(f, 0) {
		return 0, errdefs.Validation("%q is out of range", s)
	}
	return f, nil
}

// toList accepts a slice of convertible elements or a single scalar, which
// becomes a one-element list.
func toList[T any](raw any, elem func(any) (T, error)) ([]T, error) {
	if typed, ok := raw.([]T); ok {
		out := make([]T, len(typed))
		copy(out, typed)
		return out, nil
	}

	rv := reflect.ValueOf(raw)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		v, err := elem(raw)
		if err != nil {
			return nil, err
		}
		return []T{v}, nil
	}

	out := make([]T, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		v, err := elem(rv.Index(i).Interface())
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func clone(v any) any {
	switch vv := v.(type) {
	case []string:
		out := make([]string, len(vv))
		copy(out, vv)
		return out
	case []float64:
		out := make([]float64, len(vv))
		copy(out, vv)
		return out
	}
	return v
}

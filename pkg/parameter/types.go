// Package parameter defines typed parameters for component creation and
// service calls, and coerces raw request values into their native form.
package parameter

import (
	"reflect"
	"strings"

	"github.com/harun/restx/pkg/errdefs"
)

// Type is one of the supported parameter types.
type Type string

const (
	TypeString     Type = "string"
	TypeStringList Type = "string_list"
	TypePassword   Type = "password"
	TypeBoolean    Type = "boolean"
	TypeNumber     Type = "number"
	TypeNumberList Type = "number_list"
)

// Types lists every supported type.
var Types = []Type{TypeString, TypeStringList, TypePassword, TypeBoolean, TypeNumber, TypeNumberList}

// Password is the native value of a password parameter. Formatting it
// never reveals the secret.
type Password string

func (p Password) String() string {
	if p == "" {
		return ""
	}
	return "********"
}

// GoString masks the value for %#v as well.
func (p Password) GoString() string {
	return p.String()
}

// Reveal returns the clear text.
func (p Password) Reveal() string {
	return string(p)
}

// ParseType resolves a type name case-insensitively.
func ParseType(name string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(name)))
	if !t.Valid() {
		return "", errdefs.UnsupportedType("unsupported parameter type %q", name)
	}
	return t, nil
}

// Valid reports whether t is a supported type.
func (t Type) Valid() bool {
	switch t {
	case TypeString, TypeStringList, TypePassword, TypeBoolean, TypeNumber, TypeNumberList:
		return true
	}
	return false
}

// IsList reports whether values of t are sequences.
func (t Type) IsList() bool {
	return t == TypeStringList || t == TypeNumberList
}

// Element returns the type of a single element. Scalar types are their own
// element type.
func (t Type) Element() Type {
	switch t {
	case TypeStringList:
		return TypeString
	case TypeNumberList:
		return TypeNumber
	}
	return t
}

var (
	stringType     = reflect.TypeOf("")
	stringListType = reflect.TypeOf([]string(nil))
	passwordType   = reflect.TypeOf(Password(""))
	boolType       = reflect.TypeOf(false)
	numberType     = reflect.TypeOf(float64(0))
	numberListType = reflect.TypeOf([]float64(nil))
)

// NativeType returns the Go type coerced values of t have.
func (t Type) NativeType() reflect.Type {
	switch t {
	case TypeString:
		return stringType
	case TypeStringList:
		return stringListType
	case TypePassword:
		return passwordType
	case TypeBoolean:
		return boolType
	case TypeNumber:
		return numberType
	case TypeNumberList:
		return numberListType
	}
	return nil
}

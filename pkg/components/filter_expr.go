package components

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/harun/restx/pkg/errdefs"
)

// pathStep is one element of a search expression. A numeric step may index
// a list or address a map key; a quoted one only addresses a map key.
type pathStep struct {
	key     string
	index   int
	numeric bool
}

// filterExpr is a compiled "search/path <op> value" expression.
type filterExpr struct {
	path  []pathStep
	op    string
	value any
}

var filterOps = []string{"!=", "<=", ">=", "=", "<", ">"}

// compileFilter parses a filter expression such as `bar/2/"First Name" = x`.
func compileFilter(expr string) (*filterExpr, error) {
	var (
		steps   []pathStep
		current strings.Builder
		quoted  bool
		wasQ    bool
		i       int
	)

	flush := func() {
		s := strings.TrimSpace(current.String())
		current.Reset()
		if s == "" && !wasQ {
			return
		}
		step := pathStep{key: s}
		if !wasQ {
			if n, err := strconv.Atoi(s); err == nil {
				step.index, step.numeric = n, true
			}
		}
		steps = append(steps, step)
		wasQ = false
	}

	for i = 0; i < len(expr); i++ {
		c := expr[i]
		if quoted {
			if c == '"' {
				quoted = false
			} else {
				current.WriteByte(c)
			}
			continue
		}
		if c == '"' {
			quoted, wasQ = true, true
			continue
		}
		if c == '/' {
			flush()
			continue
		}
		if strings.ContainsRune("!<>=", rune(c)) {
			break
		}
		current.WriteByte(c)
	}
	if quoted {
		return nil, errdefs.Validation("filter expression %q has an unterminated quote", expr)
	}
	flush()

	rest := strings.TrimSpace(expr[i:])
	op := ""
	for _, candidate := range filterOps {
		if strings.HasPrefix(rest, candidate) {
			op = candidate
			break
		}
	}
	if len(steps) == 0 || op == "" {
		return nil, errdefs.Validation("filter expression %q needs a search path and an operator", expr)
	}

	return &filterExpr{
		path:  steps,
		op:    op,
		value: parseFilterValue(strings.TrimSpace(rest[len(op):])),
	}, nil
}

func parseFilterValue(s string) any {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// match reports whether elem holds a value at the search path that
// satisfies the comparison. Unreachable paths and type mismatches do not
// match.
func (f *filterExpr) match(elem any) bool {
	v, ok := walk(elem, f.path)
	if !ok {
		return false
	}

	switch want := f.value.(type) {
	case bool:
		got, ok := v.(bool)
		if !ok {
			return false
		}
		switch f.op {
		case "=":
			return got == want
		case "!=":
			return got != want
		}
		return false
	case float64:
		got, ok := asNumber(v)
		if !ok {
			return false
		}
		return compare(f.op, cmpFloat(got, want))
	case string:
		got, ok := v.(string)
		if !ok {
			return false
		}
		return compare(f.op, strings.Compare(got, want))
	}
	return false
}

func walk(v any, path []pathStep) (any, bool) {
	for _, step := range path {
		switch node := v.(type) {
		case map[string]any:
			next, ok := node[step.key]
			if !ok {
				return nil, false
			}
			v = next
		case []any:
			if !step.numeric || step.index < 0 || step.index >= len(node) {
				return nil, false
			}
			v = node[step.index]
		default:
			return nil, false
		}
	}
	return v, true
}

func asNumber(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	}
	return 0, false
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compare(op string, c int) bool {
	switch op {
	case "=":
		return c == 0
	case "!=":
		return c != 0
	case "<":
		return c < 0
	case "<=":
		return c <= 0
	case ">":
		return c > 0
	case ">=":
		return c >= 0
	}
	return false
}

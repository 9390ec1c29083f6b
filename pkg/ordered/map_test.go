package ordered

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMap_SetKeepsOrder(t *testing.T) {
	m := New[int]()
	m.Set("c", 1)
	m.Set("a", 2)
	m.Set("b", 3)
	m.Set("a", 4)

	assert.Equal(t, []string{"c", "a", "b"}, m.Keys())
	assert.Equal(t, 3, m.Len())

	v, ok := m.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 4, v)
}

func TestMap_Delete(t *testing.T) {
	var m Map[string]
	m.Set("x", "1")
	m.Set("y", "2")

	assert.True(t, m.Delete("x"))
	assert.False(t, m.Delete("x"))
	assert.False(t, m.Has("x"))
	assert.Equal(t, []string{"y"}, m.Keys())
}

func TestMap_Range(t *testing.T) {
	m := New[int]()
	m.Set("one", 1)
	m.Set("two", 2)
	m.Set("three", 3)

	var seen []string
	m.Range(func(k string, _ int) bool {
		seen = append(seen, k)
		return k != "two"
	})
	assert.Equal(t, []string{"one", "two"}, seen)
}

func TestMap_JSONPreservesOrder(t *testing.T) {
	m := New[any]()
	m.Set("zeta", 1)
	m.Set("alpha", []any{"x"})
	m.Set("mid", map[string]any{"k": true})

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `{"zeta":1,"alpha":["x"],"mid":{"k":true}}`, string(data))

	decoded := New[any]()
	require.NoError(t, json.Unmarshal([]byte(`{"b":1,"a":2,"c":{"z":1}}`), decoded))
	assert.Equal(t, []string{"b", "a", "c"}, decoded.Keys())
}

func TestMap_UnmarshalRejectsNonObject(t *testing.T) {
	m := New[int]()
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), m))
	assert.Error(t, json.Unmarshal([]byte(`{"a":"x"}`), m))
}

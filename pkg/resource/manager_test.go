package resource

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/restx/pkg/component"
	"github.com/harun/restx/pkg/errdefs"
	"github.com/harun/restx/pkg/parameter"
	"github.com/harun/restx/pkg/service"
)

func say(ctx context.Context, call *service.Call) (any, error) {
	return call.ResourceParam("msg"), nil
}

func newTestManager(t *testing.T, store Store) *Manager {
	registry := component.NewRegistry()
	_, err := registry.RegisterMetadata(component.Metadata{
		Name:        "Echo",
		Description: "Echoes a message",
		Parameters: []service.ParameterSpec{
			{Name: "msg", Type: parameter.TypeString, Description: "The message"},
			{Name: "times", Type: parameter.TypeNumber, Description: "Repeat count", Default: 1},
			{Name: "key", Type: parameter.TypePassword, Description: "Secret", Default: ""},
		},
		Services: []service.Spec{
			{Name: "say", Description: "Say it", Handler: say},
		},
	})
	require.NoError(t, err)

	m, err := NewManager(Config{Registry: registry, Store: store, Logger: zerolog.Nop()})
	require.NoError(t, err)
	return m
}

func TestNewManagerRequiredDependencies(t *testing.T) {
	_, err := NewManager(Config{Store: NewMemoryStore()})
	assert.Error(t, err)

	_, err = NewManager(Config{Registry: component.NewRegistry()})
	assert.Error(t, err)
}

func TestManager_DecodeRequest(t *testing.T) {
	m := newTestManager(t, NewMemoryStore())

	req, err := m.DecodeRequest([]byte(`{"resource_creation_params":{"msg":"hi"},"params":{"times":"2"}}`))
	require.NoError(t, err)
	assert.Equal(t, "hi", req.ResourceCreationParams["msg"])
	assert.Equal(t, "2", req.Params["times"])

	req, err = m.DecodeRequest(nil)
	require.NoError(t, err)
	assert.Empty(t, req.Params)

	tests := []struct {
		name string
		body string
	}{
		{"unknown section", `{"params":{},"extra":1}`},
		{"params not an object", `{"params":[1,2]}`},
		{"not an object", `[1]`},
		{"not json", `{"params":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.DecodeRequest([]byte(tt.body))
			assert.True(t, errors.Is(err, errdefs.ErrValidation), "got %v", err)
		})
	}
}

func TestManager_Create(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, NewMemoryStore())

	created, err := m.Create(ctx, "Echo", &CreateRequest{
		ResourceCreationParams: map[string]any{"msg": "hi"},
	})
	require.NoError(t, err)
	assert.Equal(t, "created", created.Status)
	assert.True(t, strings.HasPrefix(created.Name, "echo-"), created.Name)
	assert.Equal(t, "/resource/"+created.Name, created.URI)

	r, desc, err := m.Get(ctx, created.Name)
	require.NoError(t, err)
	assert.Equal(t, "Echo", desc.Name)
	assert.Equal(t, map[string]any{"msg": "hi", "times": float64(1), "key": parameter.Password("")}, r.Params)
	assert.Equal(t, `A "Echo" resource`, r.Description)
}

func TestManager_CreateNamed(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, NewMemoryStore())

	created, err := m.Create(ctx, "Echo", &CreateRequest{
		ResourceCreationParams: map[string]any{"suggested_name": "greeter", "desc": "Says hi"},
		Params:                 map[string]any{"msg": "hi", "times": "3"},
	})
	require.NoError(t, err)
	assert.Equal(t, "greeter", created.Name)

	r, _, err := m.Get(ctx, "greeter")
	require.NoError(t, err)
	assert.Equal(t, "Says hi", r.Description)
	assert.Equal(t, float64(3), r.Params["times"])

	_, err = m.Create(ctx, "Echo", &CreateRequest{
		ResourceCreationParams: map[string]any{"suggested_name": "greeter", "msg": "again"},
	})
	assert.True(t, errors.Is(err, errdefs.ErrConflict))
}

func TestManager_CreateErrors(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, NewMemoryStore())

	_, err := m.Create(ctx, "Nope", &CreateRequest{})
	assert.True(t, errors.Is(err, errdefs.ErrNotFound))

	_, err = m.Create(ctx, "Echo", &CreateRequest{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errdefs.ErrMissingParameter))
	assert.Equal(t, "missing parameters: msg", err.Error())

	_, err = m.Create(ctx, "Echo", &CreateRequest{Params: map[string]any{"msg": "x", "times": "many"}})
	assert.True(t, errors.Is(err, errdefs.ErrValidation))
	assert.Contains(t, err.Error(), `parameter "times"`)

	_, err = m.Create(ctx, "Echo", &CreateRequest{Params: map[string]any{"msg": "x", "suggested_name": "a/b"}})
	assert.True(t, errors.Is(err, errdefs.ErrValidation))
}

func TestManager_Specialized(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, NewMemoryStore())

	created, err := m.Create(ctx, "Echo", &CreateRequest{
		ResourceCreationParams: map[string]any{"suggested_name": "hello", "specialized": true},
		Params:                 map[string]any{"msg": "hello"},
	})
	require.NoError(t, err)
	assert.Equal(t, "/component/specialized/hello", created.URI)

	// specialized components are not resources
	_, _, err = m.Get(ctx, "hello")
	assert.True(t, errors.Is(err, errdefs.ErrNotFound))

	spec, desc, err := m.GetSpecialized(ctx, "hello")
	require.NoError(t, err)
	view := DescribeSpecialized(spec, desc)
	assert.Equal(t, []string{"msg"}, view.Preset)
	assert.Equal(t, []string{"suggested_name", "desc", "times", "key"}, view.ResourceCreationParams.Keys())

	res, err := m.CreateFromSpecialized(ctx, "hello", &CreateRequest{Params: map[string]any{"times": 2}})
	require.NoError(t, err)

	r, _, err := m.Get(ctx, res.Name)
	require.NoError(t, err)
	assert.Equal(t, "hello", r.Params["msg"])
	assert.Equal(t, float64(2), r.Params["times"])

	_, err = m.CreateFromSpecialized(ctx, "hello", &CreateRequest{Params: map[string]any{"msg": "override"}})
	assert.True(t, errors.Is(err, errdefs.ErrValidation))

	_, err = m.CreateFromSpecialized(ctx, "missing", &CreateRequest{})
	assert.True(t, errors.Is(err, errdefs.ErrNotFound))
}

func TestManager_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, NewMemoryStore())

	for _, name := range []string{"b", "a"} {
		_, err := m.Create(ctx, "Echo", &CreateRequest{Params: map[string]any{"msg": "x", "suggested_name": name}})
		require.NoError(t, err)
	}

	names, err := m.Names(ctx, KindResource)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)
	assert.Equal(t, 2, m.Count(ctx, KindResource))

	summaries, err := m.Summaries(ctx, KindResource)
	require.NoError(t, err)
	assert.Equal(t, "/resource/a", summaries["a"].URI)

	require.NoError(t, m.Delete(ctx, KindResource, "a"))
	assert.True(t, errors.Is(m.Delete(ctx, KindResource, "a"), errdefs.ErrNotFound))
	assert.Equal(t, 1, m.Count(ctx, KindResource))
}

func TestDescribe(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, NewMemoryStore())

	_, err := m.Create(ctx, "Echo", &CreateRequest{Params: map[string]any{"msg": "x", "suggested_name": "greeter"}})
	require.NoError(t, err)

	r, desc, err := m.Get(ctx, "greeter")
	require.NoError(t, err)

	d := Describe(r, desc)
	assert.Equal(t, "/resource/greeter", d.URI)
	say, ok := d.Services.Get("say")
	require.True(t, ok)
	assert.Equal(t, "/resource/greeter/say", say.URI)

	// the component's own descriptor is untouched
	orig, _ := desc.Services.Get("say")
	assert.Empty(t, orig.URI)
}

func TestResourceInfoCopiesParams(t *testing.T) {
	r := &Resource{Name: "n", Params: map[string]any{"a": 1}}
	info := r.Info()
	info.Params["a"] = 2
	assert.Equal(t, 1, r.Params["a"])
}

func TestManager_ConcurrentGet(t *testing.T) {
	m := newTestManager(t, NewMemoryStore())
	ctx := context.Background()

	_, err := m.Create(ctx, "Echo", &CreateRequest{
		ResourceCreationParams: map[string]any{"suggested_name": "r", "msg": "hi", "times": "3"},
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, _, err := m.Get(ctx, "r")
			if err != nil {
				errs <- err
				return
			}
			// callers own what Get returns
			r.Params["msg"] = "changed"
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	r, _, err := m.Get(ctx, "r")
	require.NoError(t, err)
	assert.Equal(t, "hi", r.Params["msg"])
	assert.Equal(t, 3.0, r.Params["times"])
}

func TestMemoryStore_CopiesParams(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	params := map[string]any{"list": []string{"a"}}
	require.NoError(t, store.Save(ctx, &Resource{Name: "x", Kind: KindResource, Params: params}))
	params["list"] = []string{"mutated"}

	loaded, err := store.Load(ctx, KindResource, "x")
	require.NoError(t, err)
	loaded.Params["list"].([]string)[0] = "changed"

	listed, err := store.List(ctx, KindResource)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, []string{"a"}, listed[0].Params["list"])
}

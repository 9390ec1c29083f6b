package components

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/restx/pkg/component"
	"github.com/harun/restx/pkg/dispatcher"
	"github.com/harun/restx/pkg/errdefs"
	"github.com/harun/restx/pkg/resource"
	"github.com/harun/restx/pkg/service"
)

// rows is a test component publishing a fixed list for Filter.
func rows() component.Metadata {
	return component.Metadata{
		Name:        "Rows",
		Description: "Fixed rows",
		Services: []service.Spec{{
			Name:        "data",
			Description: "Returns the rows",
			Handler: func(ctx context.Context, call *service.Call) (any, error) {
				return []any{
					map[string]any{"name": "a", "price": 5, "tags": []any{"x", map[string]any{"k": "v1"}}},
					map[string]any{"name": "b", "price": 15, "tags": []any{"y", map[string]any{"k": "v2"}}},
					map[string]any{"name": "c", "price": 25, "ok": true},
				}, nil
			},
		}},
	}
}

type env struct {
	manager    *resource.Manager
	dispatcher *dispatcher.Dispatcher
}

func newEnv(t *testing.T) *env {
	registry := component.NewRegistry()
	require.NoError(t, RegisterAll(registry))
	_, err := registry.RegisterMetadata(rows())
	require.NoError(t, err)

	manager, err := resource.NewManager(resource.Config{
		Registry: registry,
		Store:    resource.NewMemoryStore(),
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)

	d, err := dispatcher.New(dispatcher.Config{Resources: manager, Logger: zerolog.Nop()})
	require.NoError(t, err)
	return &env{manager: manager, dispatcher: d}
}

func (e *env) create(t *testing.T, comp string, params map[string]any) string {
	created, err := e.manager.Create(context.Background(), comp, &resource.CreateRequest{ResourceCreationParams: params})
	require.NoError(t, err)
	return created.Name
}

func (e *env) call(name, svc, method string, query url.Values, positional ...string) *dispatcher.Response {
	return e.dispatcher.Dispatch(context.Background(), &dispatcher.Request{
		Resource:   name,
		Service:    svc,
		Method:     method,
		Query:      query,
		Positional: positional,
	})
}

func TestRegisterAll(t *testing.T) {
	registry := component.NewRegistry()
	require.NoError(t, RegisterAll(registry))
	assert.Equal(t, len(All()), registry.Count())

	sample, err := registry.Lookup("Sample")
	require.NoError(t, err)
	assert.True(t, sample.Services.Has("some_service"))
	assert.False(t, sample.Services.Has("helper"), "undescribed functions are not services")
}

func TestEcho(t *testing.T) {
	e := newEnv(t)
	name := e.create(t, "Echo", map[string]any{"msg": "hi"})

	resp := e.call(name, "say", http.MethodGet, nil)
	require.NoError(t, resp.Err)
	assert.Equal(t, "hi", resp.Body)

	resp = e.call(name, "say", http.MethodPost, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.Status)

	resp = e.call(name, "repeat", http.MethodGet, url.Values{"sep": {"-"}}, "3")
	require.NoError(t, resp.Err)
	assert.Equal(t, "hi-hi-hi", resp.Body)
	assert.Equal(t, "text/plain", resp.ContentType)

	for _, times := range []string{"1e10", "1001", "-1"} {
		resp = e.call(name, "repeat", http.MethodGet, nil, times)
		assert.Equal(t, http.StatusBadRequest, resp.Status, times)
		assert.True(t, errors.Is(resp.Err, errdefs.ErrValidation), times)
	}

	resp = e.call(name, "repeat", http.MethodGet, url.Values{"sep": {""}}, "1000")
	require.NoError(t, resp.Err)
	assert.Len(t, resp.Body, 2*MaxRepeat)

	resp = e.dispatcher.Dispatch(context.Background(), &dispatcher.Request{
		Resource: name, Service: "echo", Method: http.MethodPost,
		Body: []byte(`{"a":[1,2]}`), ContentType: "application/json",
	})
	require.NoError(t, resp.Err)
	assert.Equal(t, map[string]any{"a": []any{float64(1), float64(2)}}, resp.Body)
}

func TestSample(t *testing.T) {
	e := newEnv(t)
	name := e.create(t, "Sample", map[string]any{"some_parameter": "x"})

	resp := e.call(name, "some_service", http.MethodGet, url.Values{"a_num": {"3"}, "a_bool": {"no"}})
	require.NoError(t, resp.Err)
	assert.Equal(t, "Received 'GET' request (a_num=3, a_bool=false)", resp.Body)
	assert.Equal(t, "text/plain", resp.ContentType)

	resp = e.call(name, "some_service", http.MethodPost, nil)
	assert.Equal(t, http.StatusInternalServerError, resp.Status)
	assert.ErrorIs(t, resp.Err, errdefs.ErrHandler)

	resp = e.call(name, "some_service", http.MethodDelete, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.Status)
}

func TestRelay(t *testing.T) {
	var gotAuth string
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, _ := r.BasicAuth()
		gotAuth = user + ":" + pass
		w.Write([]byte("upstream says hi"))
	}))
	defer good.Close()
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer slow.Close()

	e := newEnv(t)

	t.Run("fails over on unexpected status", func(t *testing.T) {
		name := e.create(t, "Relay", map[string]any{
			"site_1_uri":       bad.URL,
			"site_2_uri":       good.URL,
			"expected_status":  200,
			"account_name":     "bob",
			"account_password": "s3cret",
		})
		resp := e.call(name, "access", http.MethodGet, nil)
		require.NoError(t, resp.Err)
		assert.Equal(t, http.StatusOK, resp.Status)
		assert.Equal(t, "upstream says hi", resp.Body)
		assert.Equal(t, "bob:s3cret", gotAuth)
	})

	t.Run("any status without expectation", func(t *testing.T) {
		name := e.create(t, "Relay", map[string]any{"site_1_uri": bad.URL})
		resp := e.call(name, "access", http.MethodGet, nil)
		assert.Equal(t, http.StatusServiceUnavailable, resp.Status)
	})

	t.Run("timeout yields 408", func(t *testing.T) {
		name := e.create(t, "Relay", map[string]any{"site_1_uri": slow.URL, "site_1_timeout": 0.05})
		resp := e.call(name, "access", http.MethodGet, nil)
		assert.Equal(t, http.StatusRequestTimeout, resp.Status)
	})

	t.Run("other methods", func(t *testing.T) {
		name := e.create(t, "Relay", map[string]any{"site_1_uri": good.URL})
		resp := e.call(name, "access", http.MethodDelete, nil)
		assert.Equal(t, http.StatusMethodNotAllowed, resp.Status)
	})
}

func TestFilter(t *testing.T) {
	e := newEnv(t)
	source := e.create(t, "Rows", nil)

	tests := []struct {
		name     string
		params   map[string]any
		query    url.Values
		expected []string
	}{
		{"number", map[string]any{"filter_expression_1": "price >= 15"}, nil, []string{"b", "c"}},
		{"string", map[string]any{"filter_expression_1": "name = a"}, nil, []string{"a"}},
		{"nested path", map[string]any{"filter_expression_1": "tags/1/k = v2"}, nil, []string{"b"}},
		{"boolean", map[string]any{"filter_expression_1": "ok = true"}, nil, []string{"c"}},
		{"negate", map[string]any{"filter_expression_1": "name = a"}, url.Values{"negate": {"true"}}, []string{"b", "c"}},
		{"match all", map[string]any{"filter_expression_1": "price > 1", "filter_expression_2": "name != b"}, nil, []string{"a", "c"}},
		{"match any", map[string]any{"filter_expression_1": "name = a", "filter_expression_2": "name = c", "match_all": false}, nil, []string{"a", "c"}},
		{"type mismatch", map[string]any{"filter_expression_1": `price = "5"`}, nil, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := map[string]any{"input_resource_uri": "/resource/" + source + "/data"}
			for k, v := range tt.params {
				params[k] = v
			}
			name := e.create(t, "Filter", params)

			resp := e.call(name, "filter", http.MethodGet, tt.query)
			require.NoError(t, resp.Err)
			list, ok := resp.Body.([]any)
			require.True(t, ok)

			names := []string{}
			for _, elem := range list {
				names = append(names, elem.(map[string]any)["name"].(string))
			}
			assert.Equal(t, tt.expected, names)
		})
	}
}

func TestFilterErrors(t *testing.T) {
	e := newEnv(t)

	name := e.create(t, "Filter", map[string]any{"input_resource_uri": "/resource/nope/data", "filter_expression_1": "a = 1"})
	resp := e.call(name, "filter", http.MethodGet, nil)
	assert.Equal(t, http.StatusNotFound, resp.Status)

	name = e.create(t, "Filter", map[string]any{"input_resource_uri": "nonsense", "filter_expression_1": "a = 1"})
	resp = e.call(name, "filter", http.MethodGet, nil)
	assert.Equal(t, http.StatusBadRequest, resp.Status)

	_, err := compileFilter("no operator here")
	assert.ErrorIs(t, err, errdefs.ErrValidation)

	_, err = compileFilter(`"open = x`)
	assert.ErrorIs(t, err, errdefs.ErrValidation)
}

func TestCompileFilterQuotedPath(t *testing.T) {
	f, err := compileFilter(`a/"3"/2 != "x"`)
	require.NoError(t, err)
	require.Len(t, f.path, 3)
	assert.False(t, f.path[1].numeric)
	assert.True(t, f.path[2].numeric)
	assert.Equal(t, "!=", f.op)
	assert.Equal(t, "x", f.value)
}

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/restx/internal/httputil"
	"github.com/harun/restx/internal/metrics"
	"github.com/harun/restx/internal/observability"
	"github.com/harun/restx/pkg/component"
	"github.com/harun/restx/pkg/components"
	"github.com/harun/restx/pkg/dispatcher"
	"github.com/harun/restx/pkg/parameter"
	"github.com/harun/restx/pkg/resource"
	"github.com/harun/restx/pkg/service"
)

func createTestServer(t *testing.T, options Options) *Server {
	registry := component.NewRegistry()
	require.NoError(t, components.RegisterAll(registry))

	manager, err := resource.NewManager(resource.Config{
		Registry: registry,
		Store:    resource.NewMemoryStore(),
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)

	m := metrics.NewMetrics()
	d, err := dispatcher.New(dispatcher.Config{Resources: manager, Recorder: m, Logger: zerolog.Nop()})
	require.NoError(t, err)

	if options.MetricsPath == "" {
		options.MetricsPath = "/metrics"
	}
	s, err := New(options, Deps{
		Registry:   registry,
		Resources:  manager,
		Dispatcher: d,
		Metrics:    m,
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)
	return s
}

type client struct {
	t   *testing.T
	url string
}

func newClient(t *testing.T, s *Server) *client {
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return &client{t: t, url: ts.URL}
}

func (c *client) do(method, path, body string, headers ...string) (*http.Response, []byte) {
	c.t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, c.url+path, r)
	require.NoError(c.t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp, out
}

func (c *client) json(method, path, body string, v any) *http.Response {
	c.t.Helper()
	resp, out := c.do(method, path, body)
	require.NoError(c.t, json.Unmarshal(out, v), string(out))
	return resp
}

func (c *client) create(component, body string) string {
	c.t.Helper()
	var created resource.Created
	resp := c.json(http.MethodPost, "/component/"+component, body, &created)
	require.Equal(c.t, http.StatusCreated, resp.StatusCode)
	return created.Name
}

func TestNewDefaults(t *testing.T) {
	s := createTestServer(t, Options{})

	assert.Equal(t, 8001, s.options.Port)
	assert.Equal(t, "0.0.0.0", s.options.Host)
	assert.Equal(t, 30*time.Second, s.options.ShutdownTimeout)
	assert.Equal(t, "0.0.0.0:8001", s.Addr())
}

func TestNewRequiredDependencies(t *testing.T) {
	_, err := New(Options{}, Deps{})
	assert.ErrorContains(t, err, "component registry is required")

	_, err = New(Options{}, Deps{Registry: component.NewRegistry()})
	assert.ErrorContains(t, err, "resource manager is required")
}

func TestServerInfoAndHealth(t *testing.T) {
	c := newClient(t, createTestServer(t, Options{Version: "1.2.3"}))

	var info Info
	resp := c.json(http.MethodGet, "/", "", &info)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1.2.3", info.Version)
	assert.Equal(t, "/component", info.Links["components"])

	var health map[string]any
	c.json(http.MethodGet, "/health", "", &health)
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, float64(len(components.All())), health["components"])
}

func TestComponents(t *testing.T) {
	c := newClient(t, createTestServer(t, Options{}))

	var list map[string]component.Summary
	c.json(http.MethodGet, "/component", "", &list)
	require.Contains(t, list, "Echo")
	assert.Equal(t, "/component/Echo", list["Echo"].URI)

	var desc map[string]any
	resp := c.json(http.MethodGet, "/component/Echo", "", &desc)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Echo", desc["name"])
	params := desc["resource_creation_params"].(map[string]any)
	assert.Contains(t, params, "msg")
	assert.Contains(t, params, "suggested_name")
	services := desc["services"].(map[string]any)
	assert.Contains(t, services, "say")

	var errBody httputil.ErrorResponse
	resp = c.json(http.MethodGet, "/component/Nope", "", &errBody)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "/component/Nope", errBody.URL)
	assert.Contains(t, errBody.Error, "Nope")

	resp, doc := c.do(http.MethodGet, "/component/Echo/doc", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(doc), "say service")

	var schema map[string]any
	c.json(http.MethodGet, "/component/Echo/schema", "", &schema)
	assert.Equal(t, []any{"msg"}, schema["required"])
}

func TestEchoEndToEnd(t *testing.T) {
	c := newClient(t, createTestServer(t, Options{}))

	var created resource.Created
	resp := c.json(http.MethodPost, "/component/Echo", `{"resource_creation_params":{"msg":"hi"}}`, &created)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "created", created.Status)
	assert.True(t, strings.HasPrefix(created.Name, "echo-"))
	assert.Equal(t, "/resource/"+created.Name, created.URI)
	assert.Equal(t, created.URI, resp.Header.Get("Location"))

	resp, body := c.do(http.MethodGet, "/resource/"+created.Name+"/say", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, `"hi"`, string(body))

	var errBody httputil.ErrorResponse
	resp = c.json(http.MethodPost, "/resource/"+created.Name+"/say", "", &errBody)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Contains(t, errBody.Error, "POST")
	assert.Equal(t, "/resource/"+created.Name+"/say", errBody.URL)
}

func TestCreateResourceErrors(t *testing.T) {
	c := newClient(t, createTestServer(t, Options{}))

	var errBody httputil.ErrorResponse
	resp := c.json(http.MethodPost, "/component/Sample", `{"params":{}}`, &errBody)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, errBody.Error, "some_parameter")

	resp = c.json(http.MethodPost, "/component/Echo", `{"msg":"hi"}`, &errBody)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = c.json(http.MethodPost, "/component/Nope", `{}`, &errBody)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	c.create("Echo", `{"resource_creation_params":{"msg":"hi","suggested_name":"greeter"}}`)
	resp = c.json(http.MethodPost, "/component/Echo", `{"resource_creation_params":{"msg":"hi","suggested_name":"greeter"}}`, &errBody)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestResources(t *testing.T) {
	c := newClient(t, createTestServer(t, Options{}))
	name := c.create("Echo", `{"params":{"msg":"hi","suggested_name":"greeter","desc":"Says hi"}}`)
	assert.Equal(t, "greeter", name)

	var list map[string]component.Summary
	c.json(http.MethodGet, "/resource", "", &list)
	assert.Equal(t, component.Summary{URI: "/resource/greeter", Description: "Says hi"}, list["greeter"])

	var desc map[string]any
	c.json(http.MethodGet, "/resource/greeter", "", &desc)
	assert.Equal(t, "greeter", desc["name"])
	assert.Equal(t, "Echo", desc["component"])
	say := desc["services"].(map[string]any)["say"].(map[string]any)
	assert.Equal(t, "/resource/greeter/say", say["uri"])

	resp, _ := c.do(http.MethodPost, "/resource/greeter", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, _ = c.do(http.MethodDelete, "/resource/greeter", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = c.do(http.MethodGet, "/resource/greeter", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = c.do(http.MethodDelete, "/resource/greeter", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServiceRouting(t *testing.T) {
	c := newClient(t, createTestServer(t, Options{}))
	c.create("Echo", `{"params":{"msg":"hi","suggested_name":"greeter"}}`)

	resp, body := c.do(http.MethodGet, "/resource/greeter/repeat/3?sep=,", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/plain", resp.Header.Get("Content-Type"))
	assert.Equal(t, "hi,hi,hi", string(body))

	resp, body = c.do(http.MethodGet, "/resource/greeter/repeat/2", "", "Accept", "application/json")
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, `"hi hi"`, string(body))

	resp, body = c.do(http.MethodGet, "/resource/greeter/say.txt", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hi", string(body))

	resp, _ = c.do(http.MethodGet, "/resource/greeter/say", "", "Accept", "application/xml")
	assert.Equal(t, http.StatusNotAcceptable, resp.StatusCode)

	resp, _ = c.do(http.MethodGet, "/resource/greeter/repeat/many", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = c.do(http.MethodPost, "/resource/greeter/echo", `{"a":1}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"a":1}`, string(body))

	resp, _ = c.do(http.MethodGet, "/resource/greeter/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSpecialized(t *testing.T) {
	c := newClient(t, createTestServer(t, Options{}))

	var created resource.Created
	resp := c.json(http.MethodPost, "/component/Sample",
		`{"resource_creation_params":{"specialized":true,"suggested_name":"preset","some_parameter":"fixed"}}`, &created)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "/component/specialized/preset", created.URI)

	var list map[string]component.Summary
	c.json(http.MethodGet, "/component/specialized", "", &list)
	assert.Contains(t, list, "preset")

	var desc map[string]any
	c.json(http.MethodGet, "/component/specialized/preset", "", &desc)
	assert.Equal(t, []any{"some_parameter"}, desc["preset"])
	assert.NotContains(t, desc["resource_creation_params"], "some_parameter")

	resp = c.json(http.MethodPost, "/component/specialized/preset", `{"params":{"suggested_name":"child"}}`, &created)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "/resource/child", created.URI)

	resp, body := c.do(http.MethodGet, "/resource/child/some_service?a_num=1", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "a_num=1")

	var errBody httputil.ErrorResponse
	resp = c.json(http.MethodPost, "/component/specialized/preset", `{"params":{"some_parameter":"other"}}`, &errBody)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, errBody.Error, "preset")

	resp, _ = c.do(http.MethodDelete, "/component/specialized/preset", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = c.do(http.MethodGet, "/component/specialized/preset", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUnknownPath(t *testing.T) {
	c := newClient(t, createTestServer(t, Options{}))

	var errBody httputil.ErrorResponse
	resp := c.json(http.MethodGet, "/nowhere", "", &errBody)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "/nowhere", errBody.URL)
}

func TestRequestIDAndMetrics(t *testing.T) {
	c := newClient(t, createTestServer(t, Options{}))

	resp, _ := c.do(http.MethodGet, "/", "", "X-Request-ID", "req-123")
	assert.Equal(t, "req-123", resp.Header.Get("X-Request-ID"))

	resp, _ = c.do(http.MethodGet, "/", "")
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	c.create("Echo", `{"params":{"msg":"hi","suggested_name":"greeter"}}`)
	c.do(http.MethodGet, "/resource/greeter/say", "")

	_, body := c.do(http.MethodGet, "/metrics", "")
	assert.Contains(t, string(body), `restx_http_requests_total{method="GET",route="/",status="200"}`)
	assert.Contains(t, string(body), `restx_dispatch_total{component="Echo",service="say",status="200"}`)
	assert.Contains(t, string(body), `restx_resources_created_total{component="Echo",kind="resource"}`)
}

func TestRateLimit(t *testing.T) {
	c := newClient(t, createTestServer(t, Options{RateLimitPerMinute: 2}))

	for i := 0; i < 2; i++ {
		resp, _ := c.do(http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, body := c.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
	assert.Contains(t, string(body), "too many requests")
}

func TestBodyLimit(t *testing.T) {
	c := newClient(t, createTestServer(t, Options{MaxBodyBytes: 64}))
	c.create("Echo", `{"params":{"msg":"hi"}}`)

	resp, _ := c.do(http.MethodPost, "/component/Echo", `{"params":{"msg":"`+strings.Repeat("x", 128)+`"}}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStartStop(t *testing.T) {
	s := createTestServer(t, Options{ShutdownTimeout: time.Second})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- s.Serve(ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, ln.Addr().String(), s.ListenAddr())

	require.NoError(t, s.Stop())
	require.NoError(t, <-done)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", bytes.NewReader(nil)))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestEscapedPositionalSegments(t *testing.T) {
	s := createTestServer(t, Options{})
	_, err := s.deps.Registry.RegisterMetadata(component.Metadata{
		Name:        "Joiner",
		Description: "Joins its positional parameters",
		Services: []service.Spec{{
			Name:        "join",
			Description: "Returns a|b",
			OutputTypes: []string{"text/plain"},
			Parameters: []service.ParameterSpec{
				{Name: "a", Type: parameter.TypeString, Description: "First", Positional: true},
				{Name: "b", Type: parameter.TypeString, Description: "Second", Default: "", Positional: true},
			},
			Handler: func(ctx context.Context, call *service.Call) (any, error) {
				return call.String("a") + "|" + call.String("b"), nil
			},
		}},
	})
	require.NoError(t, err)

	c := newClient(t, s)
	name := c.create("Joiner", `{"resource_creation_params": {"suggested_name": "my joiner"}}`)
	require.Equal(t, "my joiner", name)

	resp, out := c.do(http.MethodGet, "/resource/my%20joiner/join/x%2Fy/z", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(out))
	assert.Equal(t, "x/y|z", string(out))

	resp, out = c.do(http.MethodGet, "/resource/my%20joiner/join/a%2Fb%2Fc", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(out))
	assert.Equal(t, "a/b/c|", string(out))
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestListenBindsBeforeServe(t *testing.T) {
	s := createTestServer(t, Options{Host: "127.0.0.1", Port: freePort(t), ShutdownTimeout: time.Second})

	ln, err := s.Listen()
	require.NoError(t, err)
	assert.Equal(t, ln.Addr().String(), s.ListenAddr())

	_, err = s.Listen()
	assert.Error(t, err)

	done := make(chan error, 1)
	go func() { done <- s.Serve(ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + s.ListenAddr() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, s.Stop())
	require.NoError(t, <-done)
}

func TestStopBeforeServe(t *testing.T) {
	s := createTestServer(t, Options{Host: "127.0.0.1", Port: freePort(t), ShutdownTimeout: time.Second})

	ln, err := s.Listen()
	require.NoError(t, err)
	addr := ln.Addr().String()

	require.NoError(t, s.Stop())
	assert.NoError(t, s.Serve(ln))

	conn, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
	if err == nil {
		conn.Close()
	}
	assert.Error(t, err, "listener still accepting on %s after Stop", addr)

	_, err = s.Listen()
	assert.ErrorIs(t, err, ErrServerStopped)
}

func TestAuditTrail(t *testing.T) {
	var buf bytes.Buffer
	s := createTestServer(t, Options{})
	s.deps.Audit = observability.NewAuditLogger(&buf)
	c := newClient(t, s)

	name := c.create("Echo", `{"resource_creation_params": {"msg": "hi", "suggested_name": "audited"}}`)
	require.Equal(t, "audited", name)

	resp, _ := c.do(http.MethodPost, "/component/Echo", `{"resource_creation_params": {}}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = c.do(http.MethodDelete, "/resource/audited", "", "X-Request-ID", "del-1")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var events []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var ev map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &ev))
		events = append(events, ev)
	}
	require.Len(t, events, 3)

	assert.Equal(t, "create", events[0]["action"])
	assert.Equal(t, "audited", events[0]["target"])
	assert.Equal(t, "success", events[0]["status"])
	assert.Equal(t, map[string]any{"source": "Echo"}, events[0]["metadata"])

	assert.Equal(t, "failure", events[1]["status"])

	assert.Equal(t, "delete", events[2]["action"])
	assert.Equal(t, "resource", events[2]["event_type"])
	assert.Equal(t, "del-1", events[2]["request_id"])
	assert.Equal(t, "127.0.0.1", events[2]["actor"])
}

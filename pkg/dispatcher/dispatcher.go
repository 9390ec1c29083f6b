// Package dispatcher runs service calls: it resolves the target resource
// and service, binds and coerces parameters, invokes the handler and
// normalizes its result into a response.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/harun/restx/internal/tracing"
	"github.com/harun/restx/pkg/component"
	"github.com/harun/restx/pkg/errdefs"
	"github.com/harun/restx/pkg/resource"
	"github.com/harun/restx/pkg/service"
	"github.com/harun/restx/pkg/value"
)

// MaxNestingDepth bounds how deep services may call other resources.
const MaxNestingDepth = 16

// Request addresses one service call.
type Request struct {
	Resource string
	Service  string
	Method   string
	// Positional holds the path segments after the service name.
	Positional []string
	Query      url.Values
	// Params supplies typed values from in-process callers. Query values
	// take precedence.
	Params      map[string]any
	Body        []byte
	ContentType string
	// Input is an already decoded body from in-process callers. It is used
	// when Body is empty.
	Input  any
	Accept string
	// URL is reported back in error payloads.
	URL string
}

// Response is the outcome of a dispatch. Err is set exactly when State is
// StateError.
type Response struct {
	Status      int
	ContentType string
	Headers     map[string]string
	Body        any
	State       State
	Err         error
}

// ErrorBody is the payload of every failed request.
type ErrorBody struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

// Recorder receives one observation per finished dispatch.
type Recorder interface {
	RecordDispatch(component, service string, status int, errKind string, duration time.Duration)
}

// Config holds dispatcher configuration
type Config struct {
	Resources  *resource.Manager
	HTTPClient *http.Client
	Recorder   Recorder
	Logger     zerolog.Logger
}

// Dispatcher runs service calls. It is safe for concurrent use.
type Dispatcher struct {
	resources  *resource.Manager
	httpClient *http.Client
	recorder   Recorder
	logger     zerolog.Logger
}

// New creates a new dispatcher
func New(cfg Config) (*Dispatcher, error) {
	if cfg.Resources == nil {
		return nil, errors.New("resource manager is required")
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Dispatcher{
		resources:  cfg.Resources,
		httpClient: client,
		recorder:   cfg.Recorder,
		logger:     cfg.Logger,
	}, nil
}

// exchange tracks one request through the state machine.
type exchange struct {
	req       *Request
	state     State
	component string
	service   string
	logger    zerolog.Logger
}

func (x *exchange) advance(to State) {
	if !x.state.next(to) {
		panic(fmt.Sprintf("dispatcher: illegal transition %s -> %s", x.state, to))
	}
	x.logger.Debug().Str("from", x.state.String()).Str("to", to.String()).Msg("Dispatch state change")
	x.state = to
}

// fail moves the exchange to the error state and builds the error response.
func (x *exchange) fail(err error) *Response {
	x.advance(StateError)
	status := errdefs.HTTPStatus(err)

	ev := x.logger.Warn()
	if status >= 500 {
		ev = x.logger.Error()
	}
	ev.Err(err).Int("status", status).Msg("Dispatch failed")

	return &Response{
		Status:      status,
		ContentType: MediaJSON,
		Body:        ErrorBody{URL: x.req.URL, Error: err.Error()},
		State:       StateError,
		Err:         err,
	}
}

// Dispatch runs one request to completion. It never returns nil and never
// lets an error or panic escape; failures become error responses.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) *Response {
	start := time.Now()

	ctx = tracing.WithTarget(ctx, req.Resource, req.Service)
	ctx, span := tracing.StartSpan(ctx, "dispatch",
		attribute.String("resource", req.Resource),
		attribute.String("service", req.Service),
		attribute.String("method", req.Method),
	)

	x := &exchange{
		req:    req,
		state:  StateReceived,
		logger: tracing.PropagateToLogger(ctx, d.logger),
	}

	resp := d.run(ctx, x)

	tracing.EndSpan(span, resp.Err)
	if d.recorder != nil {
		kind := ""
		if resp.Err != nil {
			kind = errdefs.KindOf(resp.Err).String()
		}
		d.recorder.RecordDispatch(x.component, x.service, resp.Status, kind, time.Since(start))
	}
	return resp
}

func (d *Dispatcher) run(ctx context.Context, x *exchange) *Response {
	req := x.req
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	if depth(ctx) > MaxNestingDepth {
		return x.fail(errdefs.Validation("resource access nested deeper than %d calls", MaxNestingDepth))
	}

	res, comp, err := d.resources.Get(ctx, req.Resource)
	if err != nil {
		return x.fail(err)
	}
	x.component = comp.Name

	serviceName, forced := splitSuffix(req.Service)
	binding, err := lookupBinding(comp, req.Service, serviceName, &forced)
	if err != nil {
		return x.fail(err)
	}
	x.service = binding.Name
	desc := binding.Descriptor

	if !desc.AllowsMethod(method) {
		return x.fail(errdefs.MethodNotAllowed(method))
	}

	outputType, err := negotiate(desc, req.Accept, forced)
	if err != nil {
		return x.fail(err)
	}

	input := req.Input
	if len(req.Body) > 0 {
		input, err = decodeInput(desc, req.Body, req.ContentType)
		if err != nil {
			return x.fail(err)
		}
	} else if input != nil && desc.AcceptsNoInput() {
		return x.fail(errdefs.UnsupportedMediaType("service accepts no input"))
	}

	var bodyParams map[string]any
	if desc.ParametersInBody {
		if m, ok := input.(map[string]any); ok {
			bodyParams = m
			input = nil
		}
	}

	x.advance(StateParameterResolution)

	args, params, err := resolve(binding, req, bodyParams)
	if err != nil {
		return x.fail(err)
	}

	x.advance(StateInvoking)

	call := &service.Call{
		Method:   method,
		Input:    input,
		Args:     args,
		Params:   params,
		Resource: res.Info(),
		Host:     &host{dispatcher: d, depth: depth(ctx)},
	}
	out, err := invoke(ctx, binding, call)
	if err != nil {
		return x.fail(err)
	}

	x.advance(StateResultNormalization)

	resp, err := normalizeResult(desc, out, outputType)
	if err != nil {
		return x.fail(err)
	}

	x.advance(StateResponded)
	resp.State = StateResponded
	x.logger.Debug().Int("status", resp.Status).Msg("Dispatch completed")
	return resp
}

// lookupBinding finds the service. A name with a known extension is tried
// as-is first so services may legitimately contain a dot.
func lookupBinding(comp *component.Descriptor, full, stripped string, forced *string) (*service.Binding, error) {
	if b, err := comp.Binding(full); err == nil {
		*forced = ""
		return b, nil
	}
	return comp.Binding(stripped)
}

// invoke calls the handler. Untyped errors and panics become handler
// errors; typed errors keep their kind.
func invoke(ctx context.Context, b *service.Binding, call *service.Call) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = errdefs.Handler(fmt.Errorf("panic: %v", r))
		}
	}()

	out, err = b.Handler(ctx, call)
	if err != nil {
		if errdefs.KindOf(err) == errdefs.KindUnknown {
			return nil, errdefs.Handler(err)
		}
		return nil, err
	}
	return out, nil
}

func normalizeResult(desc *service.Descriptor, out any, outputType string) (*Response, error) {
	resp := &Response{Status: http.StatusOK}

	body := out
	if r, ok := out.(*service.Result); ok {
		if r == nil {
			body = nil
		} else {
			body = r.Body
			if r.Status != 0 {
				resp.Status = r.Status
			}
			resp.Headers = r.Headers
		}
	}

	normalized, err := value.Normalize(body)
	if err != nil {
		return nil, err
	}

	if normalized == nil {
		if resp.Status == http.StatusOK {
			resp.Status = http.StatusNoContent
		}
		return resp, nil
	}
	if desc.ProducesNoOutput() {
		return nil, errdefs.Unserializable("service declares no output but returned a value")
	}

	resp.Body = normalized
	resp.ContentType = outputType
	return resp, nil
}

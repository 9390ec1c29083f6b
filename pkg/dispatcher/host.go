package dispatcher

import (
	"context"
	"net/http"

	"github.com/harun/restx/internal/tracing"
	"github.com/harun/restx/pkg/service"
)

type depthKey struct{}

func depth(ctx context.Context) int {
	d, _ := ctx.Value(depthKey{}).(int)
	return d
}

// host is the capability set handed to a running service.
type host struct {
	dispatcher *Dispatcher
	depth      int
}

// AccessResource dispatches a nested call in-process. Failures are returned
// as errors carrying their original kind.
func (h *host) AccessResource(ctx context.Context, ar service.AccessRequest) (*service.Result, error) {
	ctx = tracing.PropagateToNested(ctx, ar.Resource, ar.Service)
	ctx = context.WithValue(ctx, depthKey{}, h.depth+1)

	method := ar.Method
	if method == "" {
		method = http.MethodGet
	}

	resp := h.dispatcher.Dispatch(ctx, &Request{
		Resource:   ar.Resource,
		Service:    ar.Service,
		Method:     method,
		Positional: ar.Positional,
		Params:     ar.Params,
		Input:      ar.Input,
		Accept:     MediaJSON,
		URL:        "/resource/" + ar.Resource + "/" + ar.Service,
	})
	if resp.Err != nil {
		return nil, resp.Err
	}
	return &service.Result{Status: resp.Status, Body: resp.Body, Headers: resp.Headers}, nil
}

func (h *host) HTTPClient() *http.Client {
	return h.dispatcher.httpClient
}

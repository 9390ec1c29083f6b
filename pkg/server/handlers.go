package server

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/harun/restx/internal/httputil"
	"github.com/harun/restx/internal/observability"
	"github.com/harun/restx/pkg/component"
	"github.com/harun/restx/pkg/dispatcher"
	"github.com/harun/restx/pkg/errdefs"
	"github.com/harun/restx/pkg/hooks"
	"github.com/harun/restx/pkg/resource"
)

// Info is the payload of GET /.
type Info struct {
	Name    string            `json:"name"`
	Version string            `json:"version"`
	Uptime  float64           `json:"uptime"`
	Links   map[string]string `json:"links"`
}

func (s *Server) handleServerInfo(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, Info{
		Name:    "RESTx",
		Version: s.options.Version,
		Uptime:  time.Since(s.startTime).Seconds(),
		Links: map[string]string{
			"components":  "/component",
			"specialized": "/component/specialized",
			"resources":   "/resource",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"uptime":     time.Since(s.startTime).Seconds(),
		"components": s.deps.Registry.Count(),
		"resources":  s.deps.Resources.Count(r.Context(), resource.KindResource),
		"timestamp":  time.Now().UnixMilli(),
	})
}

func (s *Server) handleListComponents(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]component.Summary)
	for _, d := range s.deps.Registry.List() {
		out[d.Name] = d.Summary()
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetComponent(w http.ResponseWriter, r *http.Request) {
	desc, err := s.deps.Registry.Lookup(pathVar(r, "name"))
	if err != nil {
		httputil.WriteErr(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, desc)
}

func (s *Server) handleComponentDoc(w http.ResponseWriter, r *http.Request) {
	desc, err := s.deps.Registry.Lookup(pathVar(r, "name"))
	if err != nil {
		httputil.WriteErr(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, desc.Documentation) //nolint:errcheck
}

func (s *Server) handleComponentSchema(w http.ResponseWriter, r *http.Request) {
	desc, err := s.deps.Registry.Lookup(pathVar(r, "name"))
	if err != nil {
		httputil.WriteErr(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, desc.CreationSchema())
}

func (s *Server) handleCreateResource(w http.ResponseWriter, r *http.Request) {
	s.create(w, r, func(req *resource.CreateRequest) (*resource.Created, error) {
		return s.deps.Resources.Create(r.Context(), pathVar(r, "name"), req)
	})
}

func (s *Server) handleCreateFromSpecialized(w http.ResponseWriter, r *http.Request) {
	s.create(w, r, func(req *resource.CreateRequest) (*resource.Created, error) {
		return s.deps.Resources.CreateFromSpecialized(r.Context(), pathVar(r, "name"), req)
	})
}

func (s *Server) create(w http.ResponseWriter, r *http.Request, fn func(*resource.CreateRequest) (*resource.Created, error)) {
	body, err := s.readBody(w, r)
	if err != nil {
		httputil.WriteErr(w, r, err)
		return
	}
	req, err := s.deps.Resources.DecodeRequest(body)
	if err != nil {
		httputil.WriteErr(w, r, err)
		return
	}

	source := pathVar(r, "name")
	created, err := fn(req)
	if err != nil {
		s.deps.Audit.RecordChange(r.Context(), observability.AuditTypeResource, "create", "", clientIP(r),
			map[string]any{"source": source}, err)
		httputil.WriteErr(w, r, err)
		return
	}

	kind := resource.KindResource
	if strings.HasPrefix(created.URI, "/component/specialized/") {
		kind = resource.KindSpecialized
	}
	s.deps.Audit.RecordChange(r.Context(), string(kind), "create", created.Name, clientIP(r),
		map[string]any{"source": source}, nil)
	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordResourceCreated(source, string(kind))
	}
	s.deps.Hooks.Fire(hooks.EventResourceCreated, map[string]any{
		"name":   created.Name,
		"kind":   string(kind),
		"source": source,
		"uri":    created.URI,
	})

	w.Header().Set("Location", created.URI)
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListSpecialized(w http.ResponseWriter, r *http.Request) {
	s.writeSummaries(w, r, resource.KindSpecialized)
}

func (s *Server) handleGetSpecialized(w http.ResponseWriter, r *http.Request) {
	res, desc, err := s.deps.Resources.GetSpecialized(r.Context(), pathVar(r, "name"))
	if err != nil {
		httputil.WriteErr(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resource.DescribeSpecialized(res, desc))
}

func (s *Server) handleDeleteSpecialized(w http.ResponseWriter, r *http.Request) {
	s.delete(w, r, resource.KindSpecialized)
}

func (s *Server) handleListResources(w http.ResponseWriter, r *http.Request) {
	s.writeSummaries(w, r, resource.KindResource)
}

func (s *Server) handleGetResource(w http.ResponseWriter, r *http.Request) {
	res, desc, err := s.deps.Resources.Get(r.Context(), pathVar(r, "name"))
	if err != nil {
		httputil.WriteErr(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resource.Describe(res, desc))
}

func (s *Server) handleDeleteResource(w http.ResponseWriter, r *http.Request) {
	s.delete(w, r, resource.KindResource)
}

func (s *Server) writeSummaries(w http.ResponseWriter, r *http.Request, kind resource.Kind) {
	out, err := s.deps.Resources.Summaries(r.Context(), kind)
	if err != nil {
		httputil.WriteErr(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request, kind resource.Kind) {
	name := pathVar(r, "name")
	err := s.deps.Resources.Delete(r.Context(), kind, name)
	s.deps.Audit.RecordChange(r.Context(), string(kind), "delete", name, clientIP(r), nil, err)
	if err != nil {
		httputil.WriteErr(w, r, err)
		return
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.ResourcesDeletedTotal.Inc()
	}
	s.deps.Hooks.Fire(hooks.EventResourceDeleted, map[string]any{"name": name, "kind": string(kind)})
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted", "name": name})
}

// handleService dispatches /resource/{name}/{service}[/positional...].
func (s *Server) handleService(w http.ResponseWriter, r *http.Request) {
	positional, err := splitSegments(mux.Vars(r)["rest"])
	if err != nil {
		httputil.WriteErr(w, r, err)
		return
	}

	body, err := s.readBody(w, r)
	if err != nil {
		httputil.WriteErr(w, r, err)
		return
	}

	resp := s.deps.Dispatcher.Dispatch(r.Context(), &dispatcher.Request{
		Resource:    pathVar(r, "name"),
		Service:     pathVar(r, "service"),
		Method:      r.Method,
		Positional:  positional,
		Query:       r.URL.Query(),
		Body:        body,
		ContentType: r.Header.Get("Content-Type"),
		Accept:      r.Header.Get("Accept"),
		URL:         httputil.RequestURL(r),
	})
	s.writeDispatch(w, r, resp)
}

// pathVar returns a route variable. The router matches on the escaped path,
// so variables are unescaped here; a malformed escape is kept as sent.
func pathVar(r *http.Request, key string) string {
	raw := mux.Vars(r)[key]
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

// splitSegments splits the escaped positional tail on '/' and unescapes each
// segment, so an escaped "%2F" stays inside its segment.
func splitSegments(rest string) ([]string, error) {
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	for i, p := range parts {
		v, err := url.PathUnescape(p)
		if err != nil {
			return nil, errdefs.Validation("malformed path segment %q", p)
		}
		parts[i] = v
	}
	return parts, nil
}

func (s *Server) writeDispatch(w http.ResponseWriter, r *http.Request, resp *dispatcher.Response) {
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}

	if resp.Body == nil {
		w.WriteHeader(resp.Status)
		return
	}

	out, err := dispatcher.Render(resp)
	if err != nil {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("Failed to render response")
		httputil.WriteError(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", dispatcher.RenderedType(resp))
	w.WriteHeader(resp.Status)
	if r.Method != http.MethodHead {
		w.Write(out) //nolint:errcheck
	}
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.options.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errdefs.Validation("request body exceeds %d bytes", tooLarge.Limit)
		}
		return nil, errdefs.Validation("failed to read request body: %v", err)
	}
	return body, nil
}

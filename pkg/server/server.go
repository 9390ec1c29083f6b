// Package server exposes components, resources and services over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/harun/restx/internal/httputil"
	"github.com/harun/restx/internal/metrics"
	"github.com/harun/restx/internal/observability"
	"github.com/harun/restx/pkg/component"
	"github.com/harun/restx/pkg/dispatcher"
	"github.com/harun/restx/pkg/errdefs"
	"github.com/harun/restx/pkg/hooks"
	"github.com/harun/restx/pkg/resource"
)

// Options configures the HTTP server
type Options struct {
	Host string
	Port int
	// ShutdownTimeout bounds how long Stop waits for in-flight requests.
	ShutdownTimeout time.Duration
	// RateLimitPerMinute limits requests per client address; zero disables it.
	RateLimitPerMinute int
	// MaxBodyBytes caps request bodies.
	MaxBodyBytes int64
	// MetricsPath enables the Prometheus endpoint when set and Metrics is not nil.
	MetricsPath string
	Version     string
}

// Deps are the collaborators the server routes requests to.
type Deps struct {
	Registry   *component.Registry
	Resources  *resource.Manager
	Dispatcher *dispatcher.Dispatcher
	Metrics    *metrics.Metrics
	// Audit records resource changes; nil disables auditing.
	Audit *observability.AuditLogger
	// Hooks runs scripts on resource changes; nil disables them.
	Hooks  *hooks.Manager
	Logger zerolog.Logger
}

// Server is the RESTx HTTP server
type Server struct {
	options     Options
	deps        Deps
	router      *mux.Router
	handler     http.Handler
	server      *http.Server
	rateLimiter *RateLimiter
	logger      zerolog.Logger
	startTime   time.Time

	listenerMu     sync.Mutex
	listener       net.Listener
	stopped        bool
	isShuttingDown bool
	shutdownMu     sync.RWMutex
	inFlightReqs   sync.WaitGroup
}

// New creates a new server
func New(options Options, deps Deps) (*Server, error) {
	if options.Port == 0 {
		options.Port = 8001
	}
	if options.Host == "" {
		options.Host = "0.0.0.0"
	}
	if options.ShutdownTimeout == 0 {
		options.ShutdownTimeout = 30 * time.Second
	}
	if options.MaxBodyBytes == 0 {
		options.MaxBodyBytes = 10 << 20
	}
	if options.Version == "" {
		options.Version = "dev"
	}

	if deps.Registry == nil {
		return nil, fmt.Errorf("component registry is required")
	}
	if deps.Resources == nil {
		return nil, fmt.Errorf("resource manager is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}

	s := &Server{
		options:     options,
		deps:        deps,
		rateLimiter: NewRateLimiter(options.RateLimitPerMinute, time.Minute),
		logger:      deps.Logger.With().Str("component", "server").Logger(),
		startTime:   time.Now(),
	}
	s.router = s.routes()
	s.handler = s.middleware(s.router)

	return s, nil
}

// Handler returns the complete HTTP handler including middleware.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.options.Host, fmt.Sprintf("%d", s.options.Port))
}

// ListenAddr returns the bound address once Listen or Serve has run.
func (s *Server) ListenAddr() string {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter().UseEncodedPath()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		httputil.WriteErr(w, req, errdefs.NotFound("no such path %q", req.URL.Path))
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		httputil.WriteErr(w, req, errdefs.MethodNotAllowed(req.Method))
	})

	r.HandleFunc("/", s.handleServerInfo).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	if s.deps.Metrics != nil && s.options.MetricsPath != "" {
		r.Handle(s.options.MetricsPath, s.deps.Metrics.Handler()).Methods(http.MethodGet)
	}

	// specialized routes go first so "specialized" is never taken for a
	// component name
	r.HandleFunc("/component", s.handleListComponents).Methods(http.MethodGet)
	r.HandleFunc("/component/specialized", s.handleListSpecialized).Methods(http.MethodGet)
	r.HandleFunc("/component/specialized/{name}", s.handleGetSpecialized).Methods(http.MethodGet)
	r.HandleFunc("/component/specialized/{name}", s.handleCreateFromSpecialized).Methods(http.MethodPost)
	r.HandleFunc("/component/specialized/{name}", s.handleDeleteSpecialized).Methods(http.MethodDelete)
	r.HandleFunc("/component/{name}", s.handleGetComponent).Methods(http.MethodGet)
	r.HandleFunc("/component/{name}", s.handleCreateResource).Methods(http.MethodPost)
	r.HandleFunc("/component/{name}/doc", s.handleComponentDoc).Methods(http.MethodGet)
	r.HandleFunc("/component/{name}/schema", s.handleComponentSchema).Methods(http.MethodGet)

	r.HandleFunc("/resource", s.handleListResources).Methods(http.MethodGet)
	r.HandleFunc("/resource/{name}", s.handleGetResource).Methods(http.MethodGet)
	r.HandleFunc("/resource/{name}", s.handleDeleteResource).Methods(http.MethodDelete)
	r.HandleFunc("/resource/{name}/{service}{rest:.*}", s.handleService)

	return r
}

// ErrServerStopped is returned when binding a server that was already stopped.
var ErrServerStopped = errors.New("server stopped")

// Start listens and serves until Stop is called.
func (s *Server) Start() error {
	ln, err := s.Listen()
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Listen binds the configured address. When it returns, ListenAddr reports
// the bound address and Stop closes the listener even if Serve has not
// started yet.
func (s *Server) Listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", s.Addr(), err)
	}
	if _, err := s.attach(ln); err != nil {
		ln.Close()
		return nil, err
	}
	return ln, nil
}

func (s *Server) attach(ln net.Listener) (*http.Server, error) {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()

	if s.stopped {
		return nil, ErrServerStopped
	}
	if s.listener != nil && s.listener != ln {
		return nil, fmt.Errorf("server is already listening on %s", s.listener.Addr())
	}
	s.listener = ln
	if s.server == nil {
		s.server = &http.Server{
			Handler:           s.handler,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}
	return s.server, nil
}

// Serve serves on ln until Stop is called. ln is either the listener
// returned by Listen or one bound by the caller. Serving after Stop closes
// ln and returns nil.
func (s *Server) Serve(ln net.Listener) error {
	srv, err := s.attach(ln)
	if err != nil {
		ln.Close()
		if errors.Is(err, ErrServerStopped) {
			return nil
		}
		return err
	}

	s.logger.Info().
		Str("addr", ln.Addr().String()).
		Str("version", s.options.Version).
		Msg("Starting RESTx server")

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

// Stop gracefully stops the server
func (s *Server) Stop() error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down RESTx server")

	done := make(chan struct{})
	go func() {
		s.inFlightReqs.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("All in-flight requests completed")
	case <-time.After(s.options.ShutdownTimeout):
		s.logger.Warn().Msg("Shutdown timeout reached, forcing close")
	}

	s.rateLimiter.Stop()

	s.listenerMu.Lock()
	s.stopped = true
	srv, ln := s.server, s.listener
	s.listenerMu.Unlock()
	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := srv.Shutdown(ctx)
	// Shutdown only closes listeners Serve has picked up already
	ln.Close()
	if err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info().Msg("RESTx server stopped")
	return nil
}

package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/harun/restx/internal/config"
	"github.com/harun/restx/internal/logger"
	"github.com/harun/restx/internal/metrics"
	"github.com/harun/restx/internal/observability"
	"github.com/harun/restx/internal/tracing"
	"github.com/harun/restx/pkg/component"
	"github.com/harun/restx/pkg/components"
	"github.com/harun/restx/pkg/dispatcher"
	"github.com/harun/restx/pkg/errdefs"
	"github.com/harun/restx/pkg/hooks"
	"github.com/harun/restx/pkg/resource"
	"github.com/harun/restx/pkg/server"
)

// Daemon owns every long-lived part of a running RESTx server
type Daemon struct {
	config *config.Config
	logger *logger.Logger

	registry   *component.Registry
	store      resource.Store
	resources  *resource.Manager
	dispatcher *dispatcher.Dispatcher
	metrics    *metrics.Metrics
	audit      *observability.AuditLogger
	hooks      *hooks.Manager
	server     *server.Server
	lifecycle  *LifecycleManager

	serveErr chan error

	startTime time.Time
	running   bool
	mu        sync.RWMutex

	tracingEnabled bool
}

// Status describes a daemon
type Status struct {
	Running   bool          `json:"running"`
	Addr      string        `json:"addr,omitempty"`
	Uptime    time.Duration `json:"uptime"`
	StartTime time.Time     `json:"start_time"`
}

// New builds the registry, store, dispatcher and server described by cfg.
// Extra components are registered after the built-in ones.
func New(cfg *config.Config, log *logger.Logger, extra ...component.Component) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if log == nil {
		log = logger.Nop()
	}

	d := &Daemon{
		config:   cfg,
		logger:   log,
		serveErr: make(chan error, 1),
	}

	if cfg.Tracing.Enabled {
		if err := tracing.InitOpenTelemetry(cfg.Tracing.ServiceName, cfg.Tracing.SampleRatio); err != nil {
			log.Warn().Err(err).Msg("Failed to initialize tracing, continuing without distributed tracing")
		} else {
			d.tracingEnabled = true
			log.Info().Float64("sample_ratio", cfg.Tracing.SampleRatio).Msg("Tracing initialized")
		}
	}

	if err := d.initialize(extra); err != nil {
		d.shutdownTracing()
		if d.store != nil {
			d.store.Close()
		}
		d.audit.Close()
		return nil, err
	}

	d.lifecycle = NewLifecycleManager(d)
	return d, nil
}

func (d *Daemon) initialize(extra []component.Component) error {
	zl := d.logger.GetZerolog()

	d.registry = component.NewRegistry()
	if err := components.RegisterAll(d.registry); err != nil {
		return err
	}
	for _, c := range extra {
		name := c.Metadata().Name
		if _, err := d.registry.Lookup(name); err == nil {
			return errdefs.Conflict("component %q is already registered", name)
		}
		if _, err := d.registry.Register(c); err != nil {
			return fmt.Errorf("failed to register component %q: %w", c.Metadata().Name, err)
		}
	}

	store, err := openStore(d.config.Storage)
	if err != nil {
		return err
	}
	d.store = store

	d.resources, err = resource.NewManager(resource.Config{
		Registry: d.registry,
		Store:    store,
		Logger:   zl.With().Str("component", "resources").Logger(),
	})
	if err != nil {
		return fmt.Errorf("failed to create resource manager: %w", err)
	}

	if d.config.Logging.AuditFile != "" {
		d.audit, err = observability.OpenAuditLog(d.config.Logging.AuditFile)
		if err != nil {
			return err
		}
	}

	d.hooks, err = hooks.NewManager(hooks.Config{
		Enabled: d.config.Hooks.Enabled,
		Hooks:   hookList(d.config.Hooks.Hooks),
		Logger:  zl,
	})
	if err != nil {
		return fmt.Errorf("failed to load hooks: %w", err)
	}

	var recorder dispatcher.Recorder
	if d.config.Metrics.Enabled {
		d.metrics = metrics.NewMetrics()
		d.metrics.RegisterGauges(
			func() float64 { return float64(d.registry.Count()) },
			func() float64 { return float64(d.resources.Count(context.Background(), resource.KindResource)) },
		)
		recorder = d.metrics
	}

	timeout := time.Duration(d.config.Client.Timeout) * time.Second
	d.dispatcher, err = dispatcher.New(dispatcher.Config{
		Resources:  d.resources,
		HTTPClient: &http.Client{Timeout: timeout},
		Recorder:   recorder,
		Logger:     zl.With().Str("component", "dispatcher").Logger(),
	})
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}

	metricsPath := ""
	if d.config.Metrics.Enabled {
		metricsPath = d.config.Metrics.Path
	}
	d.server, err = server.New(server.Options{
		Host:               d.config.Server.Host,
		Port:               d.config.Server.Port,
		ShutdownTimeout:    time.Duration(d.config.Server.ShutdownTimeout) * time.Second,
		RateLimitPerMinute: d.config.Server.RateLimitPerMinute,
		MaxBodyBytes:       d.config.Server.MaxBodyBytes,
		MetricsPath:        metricsPath,
		Version:            Version,
	}, server.Deps{
		Registry:   d.registry,
		Resources:  d.resources,
		Dispatcher: d.dispatcher,
		Metrics:    d.metrics,
		Audit:      d.audit,
		Hooks:      d.hooks,
		Logger:     zl,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	d.logger.Info().
		Int("components", d.registry.Count()).
		Str("storage", d.config.Storage.Driver).
		Msg("RESTx initialized")
	return nil
}

func hookList(cfgs []config.HookConfig) []hooks.Hook {
	out := make([]hooks.Hook, 0, len(cfgs))
	for _, c := range cfgs {
		out = append(out, hooks.Hook{
			ID:      c.ID,
			Event:   c.Event,
			Script:  c.Script,
			Timeout: time.Duration(c.Timeout) * time.Second,
		})
	}
	return out
}

func openStore(cfg config.StorageConfig) (resource.Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return resource.NewMemoryStore(), nil
	case "sqlite":
		store, err := resource.NewSQLiteStore(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open resource store: %w", err)
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}

// Start writes the PID file, binds the listen address and serves in the
// background. The address is bound before Start returns.
func (d *Daemon) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return fmt.Errorf("daemon is already running")
	}

	traceID := tracing.NewTraceID()
	log := d.logger.GetZerolog().With().Str("trace_id", traceID).Logger()
	log.Info().Msg("Starting RESTx daemon")

	if err := d.lifecycle.Start(); err != nil {
		return fmt.Errorf("failed to start lifecycle manager: %w", err)
	}

	ln, err := d.server.Listen()
	if err != nil {
		_ = d.lifecycle.Stop()
		return err
	}

	d.running = true
	d.startTime = time.Now()

	go func() {
		d.serveErr <- d.server.Serve(ln)
	}()

	log.Info().Str("addr", ln.Addr().String()).Msg("Daemon started")
	d.hooks.Fire(hooks.EventDaemonStartup, map[string]any{
		"addr": ln.Addr().String(),
		"pid":  os.Getpid(),
	})
	return nil
}

// Stop shuts the server down, closes the store and removes the PID file
func (d *Daemon) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is not running")
	}
	d.running = false
	d.mu.Unlock()

	d.logger.Info().Msg("Stopping RESTx daemon")

	var errs []error
	if err := d.server.Stop(); err != nil {
		errs = append(errs, err)
	}
	d.hooks.Wait()
	if err := d.hooks.Trigger(context.Background(), hooks.EventDaemonShutdown, map[string]any{"pid": os.Getpid()}); err != nil {
		d.logger.Warn().Err(err).Msg("Shutdown hook failed")
	}
	if err := d.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close resource store: %w", err))
	}
	if err := d.audit.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close audit log: %w", err))
	}
	if err := d.lifecycle.Stop(); err != nil {
		errs = append(errs, err)
	}
	d.shutdownTracing()

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	d.logger.Info().Msg("Daemon stopped successfully")
	return nil
}

func (d *Daemon) shutdownTracing() {
	if !d.tracingEnabled {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tracing.ShutdownOpenTelemetry(ctx); err != nil {
		d.logger.Warn().Err(err).Msg("Failed to flush traces")
	}
	d.tracingEnabled = false
}

// Status returns the daemon status
func (d *Daemon) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	status := Status{Running: d.running}
	if d.running {
		status.Addr = d.server.ListenAddr()
		status.Uptime = time.Since(d.startTime)
		status.StartTime = d.startTime
	}
	return status
}

// Wait blocks until ctx ends, SIGINT or SIGTERM arrives, or the server
// fails, and then stops the daemon.
func (d *Daemon) Wait(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var serveErr error
	select {
	case <-ctx.Done():
		d.logger.Info().Msg("Shutdown requested")
	case serveErr = <-d.serveErr:
		if serveErr != nil {
			d.logger.Error().Err(serveErr).Msg("Server failed")
		}
	}

	if err := d.Stop(); err != nil {
		return errors.Join(serveErr, err)
	}
	return serveErr
}

// Reload applies the settings of cfg that can change while running.
func (d *Daemon) Reload(cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.Logging.Level != d.config.Logging.Level {
		if d.logger.SetLevel(cfg.Logging.Level) {
			d.logger.Info().Str("level", cfg.Logging.Level).Msg("Log level changed")
			d.audit.RecordConfig(context.Background(), "reload", map[string]any{
				"logging.level": cfg.Logging.Level,
				"previous":      d.config.Logging.Level,
			})
			d.config.Logging.Level = cfg.Logging.Level
		} else {
			d.logger.Warn().Str("level", cfg.Logging.Level).Msg("Ignoring unknown log level")
		}
	}
}

// Addr returns the bound address while running
func (d *Daemon) Addr() string {
	return d.server.ListenAddr()
}

// GetConfig returns the daemon configuration
func (d *Daemon) GetConfig() *config.Config {
	return d.config
}

// GetLogger returns the daemon logger
func (d *Daemon) GetLogger() *logger.Logger {
	return d.logger
}

// GetRegistry returns the component registry
func (d *Daemon) GetRegistry() *component.Registry {
	return d.registry
}

// GetResources returns the resource manager
func (d *Daemon) GetResources() *resource.Manager {
	return d.resources
}

// GetServer returns the HTTP server
func (d *Daemon) GetServer() *server.Server {
	return d.server
}

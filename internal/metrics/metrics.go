package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the server
type Metrics struct {
	registry *prometheus.Registry

	// Dispatch metrics
	DispatchTotal       *prometheus.CounterVec
	DispatchDuration    *prometheus.HistogramVec
	DispatchErrorsTotal *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal *prometheus.CounterVec
	RateLimitedTotal  prometheus.Counter
	InFlightRequests  prometheus.Gauge

	// Resource metrics
	ResourcesCreatedTotal *prometheus.CounterVec
	ResourcesDeletedTotal prometheus.Counter
}

// NewMetrics creates and registers all metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		DispatchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "restx_dispatch_total",
				Help: "Total number of service calls",
			},
			[]string{"component", "service", "status"},
		),
		DispatchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "restx_dispatch_duration_seconds",
				Help:    "Duration of service calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"component", "service"},
		),
		DispatchErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "restx_dispatch_errors_total",
				Help: "Total number of failed service calls by error kind",
			},
			[]string{"kind"},
		),

		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "restx_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RateLimitedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "restx_rate_limited_total",
				Help: "Total number of requests rejected by the rate limiter",
			},
		),
		InFlightRequests: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "restx_http_in_flight_requests",
				Help: "Number of HTTP requests being served",
			},
		),

		ResourcesCreatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "restx_resources_created_total",
				Help: "Total number of resources and specialized components created",
			},
			[]string{"component", "kind"},
		),
		ResourcesDeletedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "restx_resources_deleted_total",
				Help: "Total number of resources deleted",
			},
		),
	}

	m.registerMetrics()

	return m
}

func (m *Metrics) registerMetrics() {
	m.registry.MustRegister(m.DispatchTotal)
	m.registry.MustRegister(m.DispatchDuration)
	m.registry.MustRegister(m.DispatchErrorsTotal)

	m.registry.MustRegister(m.HTTPRequestsTotal)
	m.registry.MustRegister(m.RateLimitedTotal)
	m.registry.MustRegister(m.InFlightRequests)

	m.registry.MustRegister(m.ResourcesCreatedTotal)
	m.registry.MustRegister(m.ResourcesDeletedTotal)
}

// RegisterGauges exposes live counts read on every scrape.
func (m *Metrics) RegisterGauges(components, resources func() float64) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "restx_components_registered",
			Help: "Number of registered components",
		},
		components,
	))
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "restx_resources",
			Help: "Number of stored resources",
		},
		resources,
	))
}

// RecordDispatch records one finished service call. Calls that failed
// before the service was resolved are labelled with empty names.
func (m *Metrics) RecordDispatch(component, service string, status int, errKind string, duration time.Duration) {
	m.DispatchTotal.WithLabelValues(component, service, strconv.Itoa(status)).Inc()
	m.DispatchDuration.WithLabelValues(component, service).Observe(duration.Seconds())
	if errKind != "" {
		m.DispatchErrorsTotal.WithLabelValues(errKind).Inc()
	}
}

func (m *Metrics) RecordHTTPRequest(method, route string, status int) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

func (m *Metrics) RecordResourceCreated(component, kind string) {
	m.ResourcesCreatedTotal.WithLabelValues(component, kind).Inc()
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

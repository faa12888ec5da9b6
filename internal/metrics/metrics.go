// Package metrics holds the Prometheus instruments for plugin loading and dispatch.
package metrics

import (
	"net/http"
	"time"

	"github.com/andrei-cloud/go_ayoto/internal/errorcodes"
	"github.com/andrei-cloud/go_ayoto/internal/plugins"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "go_ayoto"

// Metrics holds every instrument.
type Metrics struct {
	LoadsTotal       *prometheus.CounterVec
	DispatchTotal    *prometheus.CounterVec
	DispatchDuration *prometheus.HistogramVec
	DispatchErrors   *prometheus.CounterVec
	PluginsLoaded    *prometheus.GaugeVec
	CompileCache     *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates the instruments and registers them with registry.
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		LoadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "plugin_loads_total",
				Help:      "Plugin load attempts by backend and outcome",
			},
			[]string{"backend", "status"},
		),
		DispatchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatch_total",
				Help:      "Plugin operations dispatched",
			},
			[]string{"backend", "op", "status"},
		),
		DispatchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dispatch_duration_seconds",
				Help:      "Plugin operation duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"backend", "op"},
		),
		DispatchErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatch_errors_total",
				Help:      "Failed plugin operations by error code",
			},
			[]string{"backend", "op", "code"},
		),
		PluginsLoaded: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "plugins_loaded",
				Help:      "Plugins currently held per backend",
			},
			[]string{"backend"},
		),
		CompileCache: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "wasm_compile_cache_total",
				Help:      "Compiled module cache lookups",
			},
			[]string{"result"},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.LoadsTotal,
		m.DispatchTotal,
		m.DispatchDuration,
		m.DispatchErrors,
		m.PluginsLoaded,
		m.CompileCache,
	)

	return m
}

func status(ok bool) string {
	if ok {
		return "success"
	}

	return "error"
}

// ObserveLoad counts one load outcome.
func (m *Metrics) ObserveLoad(backend string, res *plugins.LoadResult) {
	m.LoadsTotal.WithLabelValues(backend, status(res.Success)).Inc()
}

// ObserveDispatch records the duration and outcome of one operation.
func (m *Metrics) ObserveDispatch(backend, op string, d time.Duration, err error) {
	m.DispatchTotal.WithLabelValues(backend, op, status(err == nil)).Inc()
	m.DispatchDuration.WithLabelValues(backend, op).Observe(d.Seconds())
	if err != nil {
		code := errorcodes.CodeOf(err)
		if code == "" {
			code = "unknown"
		}
		m.DispatchErrors.WithLabelValues(backend, op, code).Inc()
	}
}

// SetLoaded sets the number of plugins held by backend.
func (m *Metrics) SetLoaded(backend string, n int) {
	m.PluginsLoaded.WithLabelValues(backend).Set(float64(n))
}

// ObserveCompile counts a compiled module cache lookup.
func (m *Metrics) ObserveCompile(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CompileCache.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RegisterEndpoint mounts Handler at /metrics.
func (m *Metrics) RegisterEndpoint(mux *http.ServeMux) {
	mux.Handle("/metrics", m.Handler())
}

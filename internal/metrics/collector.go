// Package metrics exposes Prometheus collectors for plugin lifecycle
// operations, command executions and the HTTP control surface.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dshills/texforge/internal/command"
	"github.com/dshills/texforge/internal/plugin"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "texforge"

// Status label values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

var (
	_ plugin.Observer  = (*Collector)(nil)
	_ command.Observer = (*Collector)(nil)
)

// Collector records workbench metrics into its own registry.
type Collector struct {
	registry *prometheus.Registry

	lifecycleTotal    *prometheus.CounterVec
	lifecycleDuration *prometheus.HistogramVec
	plugins           *prometheus.GaugeVec

	commandsTotal   *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	logger *zap.Logger
}

// NewCollector creates a collector registering under namespace. Go runtime
// and process collectors are registered alongside.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	c := &Collector{
		registry: reg,
		logger:   logger.With(zap.String("component", "metrics")),
	}

	c.lifecycleTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plugin_lifecycle_total",
			Help:      "Total number of plugin lifecycle operations",
		},
		[]string{"operation", "plugin", "status"},
	)

	c.lifecycleDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "plugin_lifecycle_duration_seconds",
			Help:      "Plugin lifecycle operation duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"operation"},
	)

	c.plugins = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "plugins",
			Help:      "Number of loaded plugins by state",
		},
		[]string{"state"},
	)

	c.commandsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "command_executions_total",
			Help:      "Total number of command executions",
		},
		[]string{"command", "status"},
	)

	c.commandDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_execution_duration_seconds",
			Help:      "Command execution duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"command"},
	)

	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	c.logger.Debug("metrics collector initialized", zap.String("namespace", namespace))
	return c
}

// Registry returns the registry the collector writes to.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		ErrorLog: zap.NewStdLog(c.logger),
	})
}

// ObserveLifecycle records one load, activate, deactivate, unload or reload.
func (c *Collector) ObserveLifecycle(op, pluginID string, d time.Duration, err error) {
	c.lifecycleTotal.WithLabelValues(op, pluginID, status(err)).Inc()
	c.lifecycleDuration.WithLabelValues(op).Observe(d.Seconds())
}

// SetPluginStats publishes the current plugin counts.
func (c *Collector) SetPluginStats(stats plugin.Stats) {
	c.plugins.WithLabelValues("active").Set(float64(stats.Active))
	c.plugins.WithLabelValues("loaded").Set(float64(stats.Loaded))
}

// ObserveCommand records one command execution.
func (c *Collector) ObserveCommand(id string, d time.Duration, err error) {
	c.commandsTotal.WithLabelValues(id, status(err)).Inc()
	c.commandDuration.WithLabelValues(id).Observe(d.Seconds())
}

// RecordHTTPRequest records one request served by the control surface.
func (c *Collector) RecordHTTPRequest(method, route string, code int, d time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	c.httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusOK
}

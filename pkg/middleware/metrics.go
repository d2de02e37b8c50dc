package middleware

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/wscomms-dev/wscomms/pkg/dispatch"
)

// MetricsConfig configures the Prometheus metrics middleware.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "wscomms").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for command duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics middleware.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "wscomms",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

type metrics struct {
	commandsTotal   *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec
	commandErrors   *prometheus.CounterVec
}

// Collectors are registered once per registry; later calls with the same
// registry share them.
var (
	metricsMu         sync.Mutex
	metricsByRegistry = map[prometheus.Registerer]*metrics{}
)

func initMetrics(config MetricsConfig) *metrics {
	metricsMu.Lock()
	defer metricsMu.Unlock()

	if m, ok := metricsByRegistry[config.Registry]; ok {
		return m
	}

	factory := promauto.With(config.Registry)
	m := &metrics{
		commandsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "commands_total",
			Help:        "Total number of commands processed",
			ConstLabels: config.ConstLabels,
		}, []string{"label", "name", "status"}),

		commandDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "command_duration_seconds",
			Help:        "Command processing duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"label", "name"}),

		commandErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "command_errors_total",
			Help:        "Total number of command errors",
			ConstLabels: config.ConstLabels,
		}, []string{"label", "name", "error_type"}),
	}
	metricsByRegistry[config.Registry] = m
	return m
}

// Prometheus creates middleware that collects Prometheus metrics for every
// command.
//
// Metrics collected:
//   - wscomms_commands_total: Counter of commands by label, name and status
//   - wscomms_command_duration_seconds: Histogram of command duration
//   - wscomms_command_errors_total: Counter of errors by label, name and error type
func Prometheus(opts ...MetricsOption) dispatch.Middleware {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	if config.Registry == nil {
		config.Registry = prometheus.DefaultRegisterer
	}
	m := initMetrics(config)

	return func(next dispatch.Handler) dispatch.Handler {
		return func(ctx context.Context, call *dispatch.Call) (any, error) {
			start := time.Now()
			result, err := next(ctx, call)
			m.commandDuration.WithLabelValues(call.Label, call.Name).Observe(time.Since(start).Seconds())

			status := "success"
			if err != nil {
				status = "error"
				m.commandErrors.WithLabelValues(call.Label, call.Name, categorizeError(err)).Inc()
			}
			m.commandsTotal.WithLabelValues(call.Label, call.Name, status).Inc()

			return result, err
		}
	}
}

// categorizeError returns a bounded category for an error so that error
// messages never become label values.
func categorizeError(err error) string {
	var opErr *dispatch.OperationError
	switch {
	case errors.As(err, &opErr) && opErr.IsPanic():
		return "panic"
	case errors.Is(err, ErrRateLimited):
		return "rate_limit"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "operation"
	}
}

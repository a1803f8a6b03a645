package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	mcperrors "github.com/ajitpratap0/mcp-client-go/pkg/errors"
)

// Status labels recorded for calls and server requests
const (
	StatusOK        = "ok"
	StatusError     = "error"
	StatusCancelled = "cancelled"
	StatusTimeout   = "timeout"
	StatusTransport = "transport"
	StatusRemote    = "remote"
	StatusTool      = "tool_error"
)

// MetricsConfig configures the metrics provider
type MetricsConfig struct {
	// Service identification
	ServiceName    string
	ServiceVersion string

	// Prometheus configuration
	MetricsPath string // HTTP path for metrics endpoint (default: /metrics)
	MetricsAddr string // Listen address for the metrics server (default: :9090)

	// Metric options
	Namespace        string    // Prometheus namespace (default: mcp_client)
	Subsystem        string    // Prometheus subsystem
	HistogramBuckets []float64 // Custom histogram buckets for latency

	// Labels to add to all metrics
	ConstLabels prometheus.Labels

	// Registry to register collectors with. A private registry is created when nil.
	Registry *prometheus.Registry
}

// ClientMetrics records what the client engine does
type ClientMetrics interface {
	// Outbound calls
	RecordCall(ctx context.Context, method, status string, duration time.Duration)
	AddInFlight(method string, delta int)

	// Inbound traffic
	RecordProgress(ctx context.Context)
	RecordServerRequest(ctx context.Context, method, status string, duration time.Duration)
	RecordAnomaly(ctx context.Context, anomaly string)

	// Capability stores
	RecordRefetch(ctx context.Context, kind, status string)

	// Transport frames
	RecordTransportMessage(ctx context.Context, transport, direction, method string)

	// Session lifecycle
	RecordSessionState(ctx context.Context, state string)
}

// PrometheusMetrics implements ClientMetrics using Prometheus
type PrometheusMetrics struct {
	config MetricsConfig
	server *http.Server

	callDuration          *prometheus.HistogramVec
	callTotal             *prometheus.CounterVec
	inFlight              *prometheus.GaugeVec
	progressTotal         prometheus.Counter
	serverRequestDuration *prometheus.HistogramVec
	serverRequestTotal    *prometheus.CounterVec
	anomalyTotal          *prometheus.CounterVec
	refetchTotal          *prometheus.CounterVec
	transportMessages     *prometheus.CounterVec
	sessionState          *prometheus.GaugeVec
}

// NewPrometheusMetrics creates a new Prometheus metrics provider
func NewPrometheusMetrics(config MetricsConfig) (*PrometheusMetrics, error) {
	// Set defaults
	if config.Namespace == "" {
		config.Namespace = "mcp_client"
	}
	if config.MetricsPath == "" {
		config.MetricsPath = "/metrics"
	}
	if config.MetricsAddr == "" {
		config.MetricsAddr = ":9090"
	}
	if config.HistogramBuckets == nil {
		// Default buckets for milliseconds
		config.HistogramBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}
	}
	if config.Registry == nil {
		config.Registry = prometheus.NewRegistry()
	}

	constLabels := prometheus.Labels{}
	for k, v := range config.ConstLabels {
		constLabels[k] = v
	}
	if config.ServiceName != "" {
		constLabels["service"] = config.ServiceName
	}
	if config.ServiceVersion != "" {
		constLabels["version"] = config.ServiceVersion
	}
	config.ConstLabels = constLabels

	p := &PrometheusMetrics{config: config}
	p.initializeMetrics()

	if err := p.registerMetrics(); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	return p, nil
}

// initializeMetrics creates all metric collectors
func (p *PrometheusMetrics) initializeMetrics() {
	p.callDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   p.config.Namespace,
			Subsystem:   p.config.Subsystem,
			Name:        "call_duration_milliseconds",
			Help:        "Duration of client calls in milliseconds",
			Buckets:     p.config.HistogramBuckets,
			ConstLabels: p.config.ConstLabels,
		},
		[]string{"method", "status"},
	)

	p.callTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   p.config.Namespace,
			Subsystem:   p.config.Subsystem,
			Name:        "call_total",
			Help:        "Total number of client calls",
			ConstLabels: p.config.ConstLabels,
		},
		[]string{"method", "status"},
	)

	p.inFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   p.config.Namespace,
			Subsystem:   p.config.Subsystem,
			Name:        "calls_in_flight",
			Help:        "Number of client calls awaiting a response",
			ConstLabels: p.config.ConstLabels,
		},
		[]string{"method"},
	)

	p.progressTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   p.config.Namespace,
			Subsystem:   p.config.Subsystem,
			Name:        "progress_notifications_total",
			Help:        "Total number of progress notifications delivered to callbacks",
			ConstLabels: p.config.ConstLabels,
		},
	)

	p.serverRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   p.config.Namespace,
			Subsystem:   p.config.Subsystem,
			Name:        "server_request_duration_milliseconds",
			Help:        "Duration of server-initiated requests in milliseconds",
			Buckets:     p.config.HistogramBuckets,
			ConstLabels: p.config.ConstLabels,
		},
		[]string{"method", "status"},
	)

	p.serverRequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   p.config.Namespace,
			Subsystem:   p.config.Subsystem,
			Name:        "server_request_total",
			Help:        "Total number of server-initiated requests",
			ConstLabels: p.config.ConstLabels,
		},
		[]string{"method", "status"},
	)

	p.anomalyTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   p.config.Namespace,
			Subsystem:   p.config.Subsystem,
			Name:        "protocol_anomaly_total",
			Help:        "Total number of inbound messages that were logged and dropped",
			ConstLabels: p.config.ConstLabels,
		},
		[]string{"anomaly"},
	)

	p.refetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   p.config.Namespace,
			Subsystem:   p.config.Subsystem,
			Name:        "capability_fetch_total",
			Help:        "Total number of capability list fetches",
			ConstLabels: p.config.ConstLabels,
		},
		[]string{"kind", "status"},
	)

	p.transportMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   p.config.Namespace,
			Subsystem:   p.config.Subsystem,
			Name:        "transport_messages_total",
			Help:        "Total number of messages moved by the transport",
			ConstLabels: p.config.ConstLabels,
		},
		[]string{"transport", "direction", "method"},
	)

	p.sessionState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   p.config.Namespace,
			Subsystem:   p.config.Subsystem,
			Name:        "session_state",
			Help:        "Current session state (1 for the active state)",
			ConstLabels: p.config.ConstLabels,
		},
		[]string{"state"},
	)
}

// registerMetrics registers all metrics with the configured registry
func (p *PrometheusMetrics) registerMetrics() error {
	collectors := []prometheus.Collector{
		p.callDuration,
		p.callTotal,
		p.inFlight,
		p.progressTotal,
		p.serverRequestDuration,
		p.serverRequestTotal,
		p.anomalyTotal,
		p.refetchTotal,
		p.transportMessages,
		p.sessionState,
	}

	for _, collector := range collectors {
		if err := p.config.Registry.Register(collector); err != nil {
			// Check if already registered
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
		}
	}

	return nil
}

// Registry returns the registry the collectors are registered with
func (p *PrometheusMetrics) Registry() *prometheus.Registry {
	return p.config.Registry
}

// RecordCall records a completed outbound call
func (p *PrometheusMetrics) RecordCall(ctx context.Context, method, status string, duration time.Duration) {
	ms := float64(duration.Milliseconds())
	p.callDuration.WithLabelValues(method, status).Observe(ms)
	p.callTotal.WithLabelValues(method, status).Inc()
}

// AddInFlight moves the in-flight gauge for method by delta
func (p *PrometheusMetrics) AddInFlight(method string, delta int) {
	p.inFlight.WithLabelValues(method).Add(float64(delta))
}

// RecordProgress records a progress notification delivered to a callback
func (p *PrometheusMetrics) RecordProgress(ctx context.Context) {
	p.progressTotal.Inc()
}

// RecordServerRequest records a server-initiated request the client answered
func (p *PrometheusMetrics) RecordServerRequest(ctx context.Context, method, status string, duration time.Duration) {
	ms := float64(duration.Milliseconds())
	p.serverRequestDuration.WithLabelValues(method, status).Observe(ms)
	p.serverRequestTotal.WithLabelValues(method, status).Inc()
}

// RecordAnomaly records an inbound message that was dropped
func (p *PrometheusMetrics) RecordAnomaly(ctx context.Context, anomaly string) {
	p.anomalyTotal.WithLabelValues(anomaly).Inc()
}

// RecordRefetch records one capability list fetch attempt
func (p *PrometheusMetrics) RecordRefetch(ctx context.Context, kind, status string) {
	p.refetchTotal.WithLabelValues(kind, status).Inc()
}

// RecordTransportMessage records one frame moved by a transport
func (p *PrometheusMetrics) RecordTransportMessage(ctx context.Context, transport, direction, method string) {
	p.transportMessages.WithLabelValues(transport, direction, method).Inc()
}

// RecordSessionState records the current session state
func (p *PrometheusMetrics) RecordSessionState(ctx context.Context, state string) {
	// Reset all states to 0
	for _, s := range []string{"connecting", "ready", "closed", "failed"} {
		p.sessionState.WithLabelValues(s).Set(0)
	}

	// Set current state to 1
	p.sessionState.WithLabelValues(state).Set(1)
}

// Handler returns an HTTP handler serving the registry
func (p *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(p.config.Registry, promhttp.HandlerOpts{})
}

// Start starts the metrics HTTP server
func (p *PrometheusMetrics) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle(p.config.MetricsPath, p.Handler())

	p.server = &http.Server{
		Addr:              p.config.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		_ = p.server.ListenAndServe()
	}()

	return nil
}

// Shutdown gracefully shuts down the metrics server
func (p *PrometheusMetrics) Shutdown(ctx context.Context) error {
	if p.server != nil {
		return p.server.Shutdown(ctx)
	}
	return nil
}

// NopMetrics discards everything
type NopMetrics struct{}

func (NopMetrics) RecordCall(context.Context, string, string, time.Duration)          {}
func (NopMetrics) AddInFlight(string, int)                                            {}
func (NopMetrics) RecordProgress(context.Context)                                     {}
func (NopMetrics) RecordServerRequest(context.Context, string, string, time.Duration) {}
func (NopMetrics) RecordAnomaly(context.Context, string)                              {}
func (NopMetrics) RecordRefetch(context.Context, string, string)                      {}
func (NopMetrics) RecordTransportMessage(context.Context, string, string, string)     {}
func (NopMetrics) RecordSessionState(context.Context, string)                         {}

// StatusOf maps a call outcome to a metric status label
func StatusOf(err error) string {
	if err == nil {
		return StatusOK
	}
	if errors.Is(err, context.Canceled) {
		return StatusCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return StatusTimeout
	}

	mcpErr, ok := mcperrors.AsMCPError(err)
	if !ok {
		return StatusError
	}

	switch mcpErr.Category() {
	case mcperrors.CategoryCancelled:
		return StatusCancelled
	case mcperrors.CategoryTimeout:
		return StatusTimeout
	case mcperrors.CategoryTransport:
		return StatusTransport
	case mcperrors.CategoryRemote:
		return StatusRemote
	case mcperrors.CategoryTool:
		return StatusTool
	default:
		return StatusError
	}
}

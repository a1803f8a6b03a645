package client

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ajitpratap0/mcp-client-go/pkg/logging"
	"github.com/ajitpratap0/mcp-client-go/pkg/observability"
	"github.com/ajitpratap0/mcp-client-go/pkg/protocol"
)

// RootsHandler answers roots/list requests from the server
type RootsHandler func(ctx context.Context) ([]protocol.Root, error)

// SamplingHandler answers sampling/createMessage requests from the server
type SamplingHandler func(ctx context.Context, params *protocol.CreateMessageParams) (*protocol.CreateMessageResult, error)

// LogHandler receives notifications/message log entries sent by the server.
// It runs on the inbound loop with the same limits as ProgressFunc.
type LogHandler func(params protocol.LogMessageParams)

// ProgressFunc receives the progress notifications of one call, in arrival order.
// total is nil when the server did not report one.
//
// The callback runs on the inbound loop, which reads every server message. While
// it runs no response can be delivered, so it must return promptly and must not
// call back into the Client: a CallTool, List*, Ping or Close issued from the
// callback deadlocks the session. Hand the value to another goroutine instead.
type ProgressFunc func(progress float64, total *float64, message string)

// RefetchPolicy bounds how a capability list is re-fetched after a failure
type RefetchPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxRetries      uint64
}

// DefaultRefetchPolicy returns the policy used when none is configured
func DefaultRefetchPolicy() RefetchPolicy {
	return RefetchPolicy{
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		MaxRetries:      5,
	}
}

// Option configures a Client during creation
type Option func(*config)

type config struct {
	name              string
	version           string
	supportedVersions []string
	roots             RootsHandler
	sampling          SamplingHandler
	logHandler        LogHandler
	logger            logging.Logger
	metrics           observability.ClientMetrics
	tracer            trace.Tracer
	refetch           RefetchPolicy
	requestTimeout    time.Duration
	validateArguments bool
	maxPages          int
}

func defaultConfig() config {
	return config{
		name:              "go-mcp-client",
		version:           "1.0.0",
		supportedVersions: []string{protocol.LatestProtocolVersion},
		logger:            logging.NewStderr(logging.WarnLevel),
		metrics:           observability.NopMetrics{},
		tracer:            noop.NewTracerProvider().Tracer(""),
		refetch:           DefaultRefetchPolicy(),
	}
}

// WithName sets the client name sent in clientInfo
func WithName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

// WithVersion sets the client version sent in clientInfo
func WithVersion(version string) Option {
	return func(c *config) {
		c.version = version
	}
}

// WithSupportedVersions sets the protocol versions the client accepts, most
// preferred first. The first one is offered in the initialize request.
func WithSupportedVersions(versions ...string) Option {
	return func(c *config) {
		c.supportedVersions = append([]string(nil), versions...)
	}
}

// WithRootsHandler enables the roots capability
func WithRootsHandler(handler RootsHandler) Option {
	return func(c *config) {
		c.roots = handler
	}
}

// WithSamplingHandler enables the sampling capability
func WithSamplingHandler(handler SamplingHandler) Option {
	return func(c *config) {
		c.sampling = handler
	}
}

// WithLogHandler forwards server log notifications to handler
func WithLogHandler(handler LogHandler) Option {
	return func(c *config) {
		c.logHandler = handler
	}
}

// WithLogger sets the logger used for session events and protocol anomalies
func WithLogger(logger logging.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records call, progress and capability metrics into metrics
func WithMetrics(metrics observability.ClientMetrics) Option {
	return func(c *config) {
		if metrics != nil {
			c.metrics = metrics
		}
	}
}

// WithTracer creates a span for every outbound call and every server request
func WithTracer(tracer trace.Tracer) Option {
	return func(c *config) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

// WithRefetchPolicy sets the retry policy for capability list fetches
func WithRefetchPolicy(policy RefetchPolicy) Option {
	return func(c *config) {
		c.refetch = policy
	}
}

// WithRequestTimeout bounds every call that has no earlier deadline. Zero disables it.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(c *config) {
		c.requestTimeout = timeout
	}
}

// WithArgumentValidation makes CallTool validate arguments against the
// tool's input schema when the tool is known from the tools list.
func WithArgumentValidation(enabled bool) Option {
	return func(c *config) {
		c.validateArguments = enabled
	}
}

// WithMaxPages bounds how many pages a list operation follows
func WithMaxPages(n int) Option {
	return func(c *config) {
		c.maxPages = n
	}
}

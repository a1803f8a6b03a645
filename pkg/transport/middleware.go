package transport

import (
	"context"

	"github.com/ajitpratap0/mcp-client-go/pkg/protocol"
)

// Middleware represents a transport middleware that can wrap a transport
// to add additional functionality like observability.
type Middleware interface {
	// Wrap wraps the given transport with middleware functionality
	Wrap(transport Transport) Transport
}

// MiddlewareFunc is an adapter to allow the use of ordinary functions as middleware
type MiddlewareFunc func(Transport) Transport

// Wrap implements the Middleware interface
func (f MiddlewareFunc) Wrap(t Transport) Transport {
	return f(t)
}

// ChainMiddleware chains multiple middleware together
func ChainMiddleware(middleware ...Middleware) Middleware {
	return MiddlewareFunc(func(transport Transport) Transport {
		// Apply middleware in reverse order so the first middleware is the outermost
		for i := len(middleware) - 1; i >= 0; i-- {
			transport = middleware[i].Wrap(transport)
		}
		return transport
	})
}

// middlewareTransport is a base type for middleware implementations
type middlewareTransport struct {
	next Transport
}

// Start delegates to the wrapped transport
func (m *middlewareTransport) Start(ctx context.Context) error {
	return m.next.Start(ctx)
}

// Send delegates to the wrapped transport
func (m *middlewareTransport) Send(ctx context.Context, msg *protocol.Message) error {
	return m.next.Send(ctx, msg)
}

// Receive delegates to the wrapped transport
func (m *middlewareTransport) Receive(ctx context.Context) (*protocol.Message, error) {
	return m.next.Receive(ctx)
}

// Close delegates to the wrapped transport
func (m *middlewareTransport) Close() error {
	return m.next.Close()
}

// Name reports the wrapped transport's name
func (m *middlewareTransport) Name() string {
	return NameOf(m.next)
}

// Unwrap returns the wrapped transport
func (m *middlewareTransport) Unwrap() Transport {
	return m.next
}

// MiddlewareBuilder builds middleware from configuration
type MiddlewareBuilder struct {
	config TransportConfig
}

// NewMiddlewareBuilder creates a new middleware builder
func NewMiddlewareBuilder(config TransportConfig) *MiddlewareBuilder {
	return &MiddlewareBuilder{config: config}
}

// Build constructs the middleware chain based on configuration
func (mb *MiddlewareBuilder) Build() []Middleware {
	var middleware []Middleware

	if !mb.config.Features.EnableObservability {
		return middleware
	}

	// Order matters - outermost middleware first
	if mb.config.Observability.EnableMetrics {
		if factory := GetMetricsMiddlewareFactory(); factory != nil {
			if m := factory(mb.config.Observability); m != nil {
				middleware = append(middleware, m)
			}
		}
	}

	middleware = append(middleware, NewObservabilityMiddleware(mb.config.Observability))

	return middleware
}

// MetricsMiddlewareFactory creates metrics middleware from config
type MetricsMiddlewareFactory func(ObservabilityConfig) Middleware

var metricsMiddlewareFactory MetricsMiddlewareFactory

// RegisterMetricsMiddlewareFactory registers the metrics middleware factory.
// This is called by the observability package to avoid import cycles.
func RegisterMetricsMiddlewareFactory(factory MetricsMiddlewareFactory) {
	metricsMiddlewareFactory = factory
}

// GetMetricsMiddlewareFactory returns the registered metrics middleware factory
func GetMetricsMiddlewareFactory() MetricsMiddlewareFactory {
	return metricsMiddlewareFactory
}

package observability

import (
	"context"

	"github.com/ajitpratap0/mcp-client-go/pkg/protocol"
	"github.com/ajitpratap0/mcp-client-go/pkg/transport"
)

// Frame directions recorded by the metrics middleware
const (
	DirectionSent     = "sent"
	DirectionReceived = "received"
)

// MetricsMiddleware counts transport frames into ClientMetrics
type MetricsMiddleware struct {
	metrics ClientMetrics
}

// NewMetricsMiddleware creates a transport middleware recording into metrics
func NewMetricsMiddleware(metrics ClientMetrics) *MetricsMiddleware {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &MetricsMiddleware{metrics: metrics}
}

// RegisterTransportMetrics makes transport.NewTransport add a MetricsMiddleware
// recording into metrics whenever observability is enabled in its config.
func RegisterTransportMetrics(metrics ClientMetrics) {
	transport.RegisterMetricsMiddlewareFactory(func(transport.ObservabilityConfig) transport.Middleware {
		return NewMetricsMiddleware(metrics)
	})
}

// Wrap implements the transport.Middleware interface
func (m *MetricsMiddleware) Wrap(next transport.Transport) transport.Transport {
	return &metricsTransport{
		next:    next,
		name:    transport.NameOf(next),
		metrics: m.metrics,
	}
}

// metricsTransport implements the Transport interface with frame counting
type metricsTransport struct {
	next    transport.Transport
	name    string
	metrics ClientMetrics
}

func (mt *metricsTransport) Start(ctx context.Context) error {
	return mt.next.Start(ctx)
}

func (mt *metricsTransport) Send(ctx context.Context, msg *protocol.Message) error {
	err := mt.next.Send(ctx, msg)
	if err == nil {
		mt.metrics.RecordTransportMessage(ctx, mt.name, DirectionSent, methodLabel(msg))
	}
	return err
}

func (mt *metricsTransport) Receive(ctx context.Context) (*protocol.Message, error) {
	msg, err := mt.next.Receive(ctx)
	if err != nil {
		if !transport.IsTerminal(err) {
			mt.metrics.RecordAnomaly(ctx, "malformed_frame")
		}
		return msg, err
	}
	mt.metrics.RecordTransportMessage(ctx, mt.name, DirectionReceived, methodLabel(msg))
	return msg, nil
}

func (mt *metricsTransport) Close() error {
	return mt.next.Close()
}

// Name reports the wrapped transport's name
func (mt *metricsTransport) Name() string {
	return mt.name
}

func methodLabel(msg *protocol.Message) string {
	if msg.Method != "" {
		return msg.Method
	}
	return "response"
}

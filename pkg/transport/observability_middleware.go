package transport

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ajitpratap0/mcp-client-go/pkg/logging"
	"github.com/ajitpratap0/mcp-client-go/pkg/protocol"
)

// ObservabilityMiddleware counts frames per method and logs them
type ObservabilityMiddleware struct {
	config  ObservabilityConfig
	metrics *transportMetrics
	logger  logging.Logger
}

// NewObservabilityMiddleware creates a new observability middleware
func NewObservabilityMiddleware(config ObservabilityConfig) *ObservabilityMiddleware {
	logger := config.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	return &ObservabilityMiddleware{
		config:  config,
		metrics: newTransportMetrics(),
		logger:  logger.WithFields(logging.Component("transport")),
	}
}

// Wrap implements the Middleware interface
func (om *ObservabilityMiddleware) Wrap(transport Transport) Transport {
	return &observabilityTransport{
		middlewareTransport: middlewareTransport{next: transport},
		middleware:          om,
	}
}

// Snapshot returns the frames counted so far
func (om *ObservabilityMiddleware) Snapshot() *TransportMetricsSnapshot {
	return om.metrics.snapshot()
}

// observabilityTransport wraps a transport with observability features
type observabilityTransport struct {
	middlewareTransport
	middleware *ObservabilityMiddleware
}

// Start wraps the underlying Start with observability
func (ot *observabilityTransport) Start(ctx context.Context) error {
	err := ot.middlewareTransport.Start(ctx)

	if ot.middleware.config.EnableMetrics && err == nil {
		ot.middleware.metrics.setTransportState("running")
	}
	if ot.middleware.config.EnableLogging {
		if err != nil {
			ot.middleware.logger.WithError(err).Error("Transport start failed")
		} else {
			ot.middleware.logger.Info("Transport started", logging.String("transport", ot.Name()))
		}
	}
	return err
}

// Send wraps the underlying Send with observability
func (ot *observabilityTransport) Send(ctx context.Context, msg *protocol.Message) error {
	err := ot.middlewareTransport.Send(ctx, msg)

	if ot.middleware.config.EnableMetrics {
		ot.middleware.metrics.record(directionSent, msg, err)
	}
	if ot.middleware.config.EnableLogging {
		fields := frameFields(msg)
		if err != nil {
			ot.middleware.logger.WithError(err).Warn("Frame send failed", fields...)
		} else {
			ot.middleware.logger.Debug("Frame sent", fields...)
		}
	}
	return err
}

// Receive wraps the underlying Receive with observability
func (ot *observabilityTransport) Receive(ctx context.Context) (*protocol.Message, error) {
	msg, err := ot.middlewareTransport.Receive(ctx)

	if err != nil {
		if !IsTerminal(err) {
			if ot.middleware.config.EnableMetrics {
				ot.middleware.metrics.malformed.Add(1)
			}
			if ot.middleware.config.EnableLogging {
				ot.middleware.logger.WithError(err).Warn("Malformed frame received")
			}
		}
		return msg, err
	}

	if ot.middleware.config.EnableMetrics {
		ot.middleware.metrics.record(directionReceived, msg, nil)
	}
	if ot.middleware.config.EnableLogging {
		ot.middleware.logger.Debug("Frame received", frameFields(msg)...)
	}
	return msg, nil
}

// Close wraps the underlying Close with observability
func (ot *observabilityTransport) Close() error {
	err := ot.middlewareTransport.Close()

	if ot.middleware.config.EnableMetrics {
		ot.middleware.metrics.setTransportState("stopped")
	}
	if ot.middleware.config.EnableLogging {
		if err != nil {
			ot.middleware.logger.WithError(err).Warn("Transport close failed")
		} else {
			ot.middleware.logger.Info("Transport closed")
		}
	}
	return err
}

// GetMetrics returns the current metrics snapshot
func (ot *observabilityTransport) GetMetrics() *TransportMetricsSnapshot {
	if ot.middleware.config.EnableMetrics {
		return ot.middleware.metrics.snapshot()
	}
	return nil
}

func frameFields(msg *protocol.Message) []logging.Field {
	fields := []logging.Field{logging.String("kind", msg.Kind().String())}
	if msg.Method != "" {
		fields = append(fields, logging.Method(msg.Method))
	}
	if msg.ID != nil {
		fields = append(fields, logging.ID(msg.ID.String()))
	}
	return fields
}

type direction int

const (
	directionSent direction = iota
	directionReceived
)

// responseMethod is the counter key for responses, which carry no method
const responseMethod = "(response)"

// transportMetrics holds per-method frame counters
type transportMetrics struct {
	sent      map[string]*methodCounters
	received  map[string]*methodCounters
	malformed atomic.Int64
	state     string
	mu        sync.RWMutex
}

type methodCounters struct {
	total  atomic.Int64
	errors atomic.Int64
}

// newTransportMetrics creates a new metrics collection
func newTransportMetrics() *transportMetrics {
	return &transportMetrics{
		sent:     make(map[string]*methodCounters),
		received: make(map[string]*methodCounters),
		state:    "stopped",
	}
}

func (tm *transportMetrics) record(dir direction, msg *protocol.Message, err error) {
	method := msg.Method
	if method == "" {
		method = responseMethod
	}

	counters := tm.sent
	if dir == directionReceived {
		counters = tm.received
	}

	c := tm.getOrCreate(counters, method)
	c.total.Add(1)
	if err != nil {
		c.errors.Add(1)
	}
}

func (tm *transportMetrics) setTransportState(state string) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.state = state
}

// getOrCreate gets or creates the counters for a method
func (tm *transportMetrics) getOrCreate(counters map[string]*methodCounters, method string) *methodCounters {
	tm.mu.RLock()
	if c, exists := counters[method]; exists {
		tm.mu.RUnlock()
		return c
	}
	tm.mu.RUnlock()

	tm.mu.Lock()
	defer tm.mu.Unlock()
	// Double-check after acquiring write lock
	if c, exists := counters[method]; exists {
		return c
	}

	c := &methodCounters{}
	counters[method] = c
	return c
}

// TransportMetricsSnapshot represents a point-in-time view of transport metrics
type TransportMetricsSnapshot struct {
	TransportState string                   `json:"transport_state"`
	Sent           map[string]MethodMetrics `json:"sent"`
	Received       map[string]MethodMetrics `json:"received"`
	Malformed      int64                    `json:"malformed"`
}

// MethodMetrics represents frame counts for a specific method
type MethodMetrics struct {
	Total  int64 `json:"total"`
	Errors int64 `json:"errors"`
}

// snapshot creates a snapshot of current metrics
func (tm *transportMetrics) snapshot() *TransportMetricsSnapshot {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	snapshot := &TransportMetricsSnapshot{
		TransportState: tm.state,
		Sent:           make(map[string]MethodMetrics, len(tm.sent)),
		Received:       make(map[string]MethodMetrics, len(tm.received)),
		Malformed:      tm.malformed.Load(),
	}

	for method, c := range tm.sent {
		snapshot.Sent[method] = MethodMetrics{Total: c.total.Load(), Errors: c.errors.Load()}
	}
	for method, c := range tm.received {
		snapshot.Received[method] = MethodMetrics{Total: c.total.Load(), Errors: c.errors.Load()}
	}

	return snapshot
}

// String provides a human-readable representation of the metrics
func (snapshot *TransportMetricsSnapshot) String() string {
	return fmt.Sprintf("TransportMetrics{state=%s, sent=%d methods, received=%d methods, malformed=%d}",
		snapshot.TransportState,
		len(snapshot.Sent),
		len(snapshot.Received),
		snapshot.Malformed)
}

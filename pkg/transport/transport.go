package transport

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ajitpratap0/mcp-client-go/pkg/logging"
	"github.com/ajitpratap0/mcp-client-go/pkg/protocol"
)

// Transport defines the interface every MCP transport implements.
// Send may be called from many goroutines; Receive is called from one.
type Transport interface {
	// Start begins I/O. It does not block.
	Start(ctx context.Context) error

	// Send writes one message to the peer
	Send(ctx context.Context, msg *protocol.Message) error

	// Receive returns the next message from the peer. It returns io.EOF once the
	// peer has gone away and ErrClosed after Close.
	Receive(ctx context.Context) (*protocol.Message, error)

	// Close stops the transport and releases its resources
	Close() error
}

// Named is implemented by transports that report a short name for logs and metrics
type Named interface {
	Name() string
}

// NameOf returns t's name, or "custom" for transports that do not report one
func NameOf(t Transport) string {
	if n, ok := t.(Named); ok {
		return n.Name()
	}
	return "custom"
}

var (
	// ErrClosed is returned by operations on a transport after Close
	ErrClosed = errors.New("transport closed")

	// ErrNotStarted is returned by Receive before Start
	ErrNotStarted = errors.New("transport not started")

	// ErrUnsupportedTransportType is returned by NewTransport for unknown types
	ErrUnsupportedTransportType = errors.New("unsupported transport type")
)

// MalformedMessageError is returned by Receive for a frame that is not a valid
// JSON-RPC message. The transport stays usable.
type MalformedMessageError struct {
	Data []byte
	Err  error
}

func (e *MalformedMessageError) Error() string {
	return fmt.Sprintf("malformed message: %v", e.Err)
}

func (e *MalformedMessageError) Unwrap() error {
	return e.Err
}

// IsTerminal reports whether err from Receive means the transport is finished
func IsTerminal(err error) bool {
	var malformed *MalformedMessageError
	return err != nil && !errors.As(err, &malformed)
}

// TransportType identifies the base transport implementation
type TransportType string

const (
	// TransportTypeStdio speaks newline-delimited JSON over a reader and writer
	TransportTypeStdio TransportType = "stdio"
	// TransportTypeCommand spawns a server process and speaks stdio over its pipes
	TransportTypeCommand TransportType = "command"
)

// TransportConfig is the unified configuration for all transports
type TransportConfig struct {
	// Type of transport to create
	Type TransportType `json:"type"`

	// Server process settings for TransportTypeCommand
	Command string   `json:"command,omitempty"`
	Args    []string `json:"args,omitempty"`
	Env     []string `json:"env,omitempty"`
	Dir     string   `json:"dir,omitempty"`

	// Custom streams for TransportTypeStdio. Defaults to os.Stdin and os.Stdout.
	StdioReader io.Reader `json:"-"`
	StdioWriter io.Writer `json:"-"`

	// Stderr receives the server process's stderr. Defaults to os.Stderr.
	Stderr io.Writer `json:"-"`

	// Feature configuration
	Features FeatureConfig `json:"features"`

	Observability ObservabilityConfig `json:"observability"`
	Performance   PerformanceConfig   `json:"performance"`
}

// FeatureConfig controls which middleware are enabled
type FeatureConfig struct {
	EnableObservability bool `json:"enable_observability"`
}

// ObservabilityConfig for frame counting and logging
type ObservabilityConfig struct {
	EnableMetrics bool           `json:"enable_metrics"`
	EnableLogging bool           `json:"enable_logging"`
	Logger        logging.Logger `json:"-"`
}

// PerformanceConfig for performance tuning
type PerformanceConfig struct {
	// MaxMessageSize bounds a single newline-delimited frame in bytes
	MaxMessageSize int `json:"max_message_size"`
	// ReceiveBuffer is how many decoded messages may wait for Receive
	ReceiveBuffer int `json:"receive_buffer"`
}

// NewTransport creates a new transport with the specified configuration
func NewTransport(config TransportConfig) (Transport, error) {
	if err := validateTransportConfig(config); err != nil {
		return nil, err
	}

	var base Transport
	var err error

	switch config.Type {
	case TransportTypeStdio:
		base = newStdioTransport(config)
	case TransportTypeCommand:
		base, err = newCommandTransport(config)
	default:
		return nil, ErrUnsupportedTransportType
	}

	if err != nil {
		return nil, err
	}

	builder := NewMiddlewareBuilder(config)
	return ChainMiddleware(builder.Build()...).Wrap(base), nil
}

// validateTransportConfig validates the transport configuration
func validateTransportConfig(config TransportConfig) error {
	switch config.Type {
	case TransportTypeStdio:
		return nil
	case TransportTypeCommand:
		if config.Command == "" {
			return errors.New("command is required for command transports")
		}
		return nil
	default:
		return ErrUnsupportedTransportType
	}
}

// DefaultTransportConfig returns a transport configuration with sensible defaults
func DefaultTransportConfig(transportType TransportType) TransportConfig {
	return TransportConfig{
		Type: transportType,
		Features: FeatureConfig{
			EnableObservability: true,
		},
		Observability: ObservabilityConfig{
			EnableMetrics: true,
			EnableLogging: false,
		},
		Performance: PerformanceConfig{
			MaxMessageSize: 10 * 1024 * 1024,
			ReceiveBuffer:  64,
		},
	}
}

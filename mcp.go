// Package mcp is the entry point of the MCP client engine
package mcp

import (
	"github.com/ajitpratap0/mcp-client-go/pkg/client"
	"github.com/ajitpratap0/mcp-client-go/pkg/errors"
	"github.com/ajitpratap0/mcp-client-go/pkg/protocol"
	"github.com/ajitpratap0/mcp-client-go/pkg/transport"
)

// Version represents the current version of the module
const Version = "0.1.0"

// LatestProtocolVersion is the protocol revision offered by default
const LatestProtocolVersion = protocol.LatestProtocolVersion

// These exports provide direct access to the core components
var (
	// NewClient creates a client over any transport
	NewClient = client.New

	// NewStdioClient creates a client speaking over this process's stdin and stdout
	NewStdioClient = client.NewStdioClient

	// NewCommandClient spawns a server process and creates a client for it
	NewCommandClient = client.NewCommandClient

	// NewTransport creates a transport from a TransportConfig
	NewTransport = transport.NewTransport

	// NewInMemoryTransportPair creates two connected in-process transports
	NewInMemoryTransportPair = transport.NewInMemoryTransportPair
)

// Client options
var (
	WithClientName        = client.WithName
	WithClientVersion     = client.WithVersion
	WithSupportedVersions = client.WithSupportedVersions
	WithRootsHandler      = client.WithRootsHandler
	WithSamplingHandler   = client.WithSamplingHandler
	WithLogHandler        = client.WithLogHandler
	WithLogger            = client.WithLogger
	WithMetrics           = client.WithMetrics
	WithTracer            = client.WithTracer
	WithRefetchPolicy     = client.WithRefetchPolicy
	WithRequestTimeout    = client.WithRequestTimeout
)

// Errors callers match with errors.Is
var (
	ErrNotInitialized  = errors.ErrNotInitialized
	ErrTransportClosed = errors.ErrTransportClosed
)

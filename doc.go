// Package mcp is a client engine for the Model Context Protocol.
//
// The engine runs one session with one MCP server over JSON-RPC 2.0. It does
// the initialize handshake, keeps live views of what the server offers,
// correlates concurrent calls, routes progress notifications and answers the
// requests the server sends back. This package re-exports the most used parts
// of the sub-packages:
//
//   - pkg/client: the session engine
//   - pkg/protocol: JSON-RPC framing and MCP message types
//   - pkg/transport: stdio, child process and in-memory transports
//   - pkg/errors: the error taxonomy returned by every call
//   - pkg/observability: Prometheus metrics and OpenTelemetry tracing
//   - pkg/logging: structured logging
//
// # Connecting to a Server
//
//	c, err := mcp.NewCommandClient("my-mcp-server", []string{"--stdio"},
//	    mcp.WithClientName("MyClient"),
//	    mcp.WithClientVersion("1.0.0"),
//	)
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	if _, err := c.Initialize(ctx); err != nil {
//	    return err
//	}
//
//	tools, err := c.ListTools(ctx)
//
// # Exposing Roots and Sampling
//
// The client declares the roots and sampling capabilities only when a handler
// is configured:
//
//	c, err := mcp.NewCommandClient("my-mcp-server", nil,
//	    mcp.WithRootsHandler(func(ctx context.Context) ([]protocol.Root, error) {
//	        return []protocol.Root{{URI: "file:///workspace"}}, nil
//	    }),
//	)
//
// The cmd/mcp-client command is a ready-made CLI built on this package.
package mcp

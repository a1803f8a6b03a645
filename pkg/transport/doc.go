// Package transport provides the configuration-driven transport layer of the MCP client.
//
// A transport frames and delivers JSON-RPC messages. It never interprets them beyond
// decoding the envelope, so the client engine works identically over every transport.
//
// # Supported Transport Types
//
// StdioTransport:
//   - Newline-delimited JSON over any reader and writer
//   - Used directly when the caller already owns the server's pipes
//
// CommandTransport:
//   - Spawns the server as a child process and speaks stdio over its pipes
//   - The usual way MCP clients talk to local servers
//
// InMemoryTransport:
//   - A connected pair for tests and embedded servers
//
// # Usage
//
//	config := transport.DefaultTransportConfig(transport.TransportTypeCommand)
//	config.Command = "my-mcp-server"
//	config.Args = []string{"--verbose"}
//	t, err := transport.NewTransport(config)
//
// # Middleware System
//
// Transports can be wrapped with middleware:
//
//   - ObservabilityMiddleware: per-method frame counters and structured frame logging
//   - A metrics middleware registered by the observability package exports Prometheus counters
//   - Custom middleware can be added by implementing the Middleware interface
//
// # Receive Semantics
//
// Receive returns a *MalformedMessageError for frames that do not decode. Such errors
// are not fatal and the caller should keep receiving. Any other error ends the stream:
// io.EOF when the peer went away, ErrClosed after Close.
package transport

// Package pkg groups the packages of the MCP client engine.
//
//   - client: the session engine (handshake, capability views, calls, server requests)
//   - protocol: JSON-RPC 2.0 framing and MCP message types
//   - transport: stdio, child process and in-memory transports with middleware
//   - errors: the MCPError taxonomy
//   - logging: structured logging
//   - observability: Prometheus metrics and OpenTelemetry tracing
//   - pagination: cursor pagination helpers used by the list operations
//   - utils: JSON schema validation and the goroutine leak detector used in tests
package pkg

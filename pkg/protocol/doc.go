// Package protocol defines the wire types of the Model Context Protocol as seen by a client.
//
// The Model Context Protocol (MCP) is a JSON-RPC based communication protocol that
// enables AI applications to use the tools, prompts and resources a server exposes.
// This package contains the Go type definitions for the messages a client sends and
// receives, plus the JSON-RPC envelope they travel in.
//
// # Package Organization
//
//   - jsonrpc.go: the Message envelope, RequestID, error objects and the codec
//   - mcp.go: method names, capability declarations, lifecycle and utility payloads
//   - tools.go, prompts.go, resources.go: server feature payloads
//   - sampling.go: payloads of requests the server sends to the client
//   - content.go: content blocks shared by tools, prompts and sampling
//
// # Message Flow
//
//  1. Client sends an initialize request with its preferred protocol version
//  2. Server responds with the version it picked, its capabilities and server info
//  3. Client sends a notifications/initialized notification
//  4. Client and server exchange requests and notifications based on capabilities
//
// # Example Messages
//
// Initialize request:
//
//	{
//	    "jsonrpc": "2.0",
//	    "id": 1,
//	    "method": "initialize",
//	    "params": {
//	        "protocolVersion": "2025-03-26",
//	        "capabilities": {"roots": {"listChanged": true}},
//	        "clientInfo": {"name": "ExampleClient", "version": "1.0.0"}
//	    }
//	}
//
// Initialize response:
//
//	{
//	    "jsonrpc": "2.0",
//	    "id": 1,
//	    "result": {
//	        "protocolVersion": "2025-03-26",
//	        "capabilities": {"tools": {"listChanged": true}},
//	        "serverInfo": {"name": "ExampleServer", "version": "1.0.0"}
//	    }
//	}
package protocol

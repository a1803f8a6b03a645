// Command mcp-client spawns an MCP server and talks to it over stdio.
//
// Configuration comes from flags, MCPCLIENT_* environment variables and
// mcp-client.yaml, in that order of precedence:
//
//	server:
//	  command: npx
//	  args: ["-y", "@modelcontextprotocol/server-everything"]
//	client:
//	  request_timeout: 30s
//	  validate_arguments: true
//	roots: ["."]
//	metrics:
//	  addr: ":9090"
//	tracing:
//	  exporter: otlp-grpc
//	  endpoint: localhost:4317
//	  insecure: true
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

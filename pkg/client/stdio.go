package client

import (
	"github.com/ajitpratap0/mcp-client-go/pkg/transport"
)

// NewStdioClient creates a client that talks to a server over this process's
// stdin and stdout.
func NewStdioClient(options ...Option) (*Client, error) {
	t, err := transport.NewTransport(transport.DefaultTransportConfig(transport.TransportTypeStdio))
	if err != nil {
		return nil, err
	}
	return New(t, options...)
}

// NewCommandClient creates a client that spawns command with args and talks
// to it over the child's stdin and stdout. The child is stopped by Close.
func NewCommandClient(command string, args []string, options ...Option) (*Client, error) {
	config := transport.DefaultTransportConfig(transport.TransportTypeCommand)
	config.Command = command
	config.Args = args

	t, err := transport.NewTransport(config)
	if err != nil {
		return nil, err
	}
	return New(t, options...)
}

package client

import (
	"context"
	"fmt"

	mcperrors "github.com/ajitpratap0/mcp-client-go/pkg/errors"
	"github.com/ajitpratap0/mcp-client-go/pkg/logging"
	"github.com/ajitpratap0/mcp-client-go/pkg/protocol"
)

// Initialize performs the handshake and returns the server's identity. It runs
// once per session; later and concurrent calls return the first outcome. A
// failed handshake ends the session.
func (c *Client) Initialize(ctx context.Context) (*protocol.Implementation, error) {
	c.initOnce.Do(func() {
		c.initResult, c.initErr = c.handshake(ctx)
	})
	return c.initResult, c.initErr
}

func (c *Client) handshake(ctx context.Context) (*protocol.Implementation, error) {
	if err := c.Start(ctx); err != nil {
		return nil, err
	}
	if err := c.Err(); err != nil {
		return nil, err
	}

	params := protocol.InitializeParams{
		ProtocolVersion: c.cfg.supportedVersions[0],
		Capabilities:    c.clientCapabilities(),
		ClientInfo: protocol.Implementation{
			Name:    c.cfg.name,
			Version: c.cfg.version,
		},
	}
	c.logger.Debug("Sending initialize request", logging.String("protocol_version", params.ProtocolVersion))

	var result protocol.InitializeResult
	if err := c.call(ctx, protocol.MethodInitialize, params, "", &result); err != nil {
		err = fmt.Errorf("initialize request failed: %w", err)
		c.terminate(mcperrors.SessionClosed(err))
		return nil, err
	}

	if !protocol.IsSupportedVersion(result.ProtocolVersion, c.cfg.supportedVersions) {
		err := mcperrors.VersionMismatch(result.ProtocolVersion, c.cfg.supportedVersions)
		c.logger.Error("Server chose an unsupported protocol version",
			logging.String("received", result.ProtocolVersion))
		c.terminate(mcperrors.SessionClosed(err))
		_ = c.closeTransport()
		return nil, err
	}

	c.infoMu.Lock()
	info := result.ServerInfo
	c.serverInfo = &info
	c.serverCaps = result.Capabilities
	c.instructions = result.Instructions
	c.version = result.ProtocolVersion
	c.infoMu.Unlock()

	if err := c.notify(ctx, protocol.MethodInitialized, nil); err != nil {
		err = fmt.Errorf("failed to send initialized notification: %w", err)
		c.terminate(mcperrors.SessionClosed(err))
		return nil, err
	}

	c.initialized.Store(true)
	c.seedStores(result.Capabilities)
	c.metrics.RecordSessionState(ctx, stateReady)

	c.logger.Info("Session initialized",
		logging.String("server", info.Name),
		logging.String("server_version", info.Version),
		logging.String("protocol_version", result.ProtocolVersion))

	out := info
	return &out, nil
}

// clientCapabilities declares exactly the capabilities that have handlers
func (c *Client) clientCapabilities() protocol.ClientCapabilities {
	var caps protocol.ClientCapabilities
	if c.cfg.roots != nil {
		caps.Roots = &protocol.RootsCapability{ListChanged: true}
	}
	if c.cfg.sampling != nil {
		caps.Sampling = &protocol.SamplingCapability{}
	}
	return caps
}

// seedStores marks undeclared capabilities unsupported and starts fetching the rest.
// The resources capability covers resource templates too.
func (c *Client) seedStores(caps protocol.ServerCapabilities) {
	c.tools.seed(c.ctx, c.spawn, caps.Tools != nil)
	c.prompts.seed(c.ctx, c.spawn, caps.Prompts != nil)
	c.resources.seed(c.ctx, c.spawn, caps.Resources != nil)
	c.templates.seed(c.ctx, c.spawn, caps.Resources != nil)
}

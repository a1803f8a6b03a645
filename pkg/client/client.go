package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	mcperrors "github.com/ajitpratap0/mcp-client-go/pkg/errors"
	"github.com/ajitpratap0/mcp-client-go/pkg/logging"
	"github.com/ajitpratap0/mcp-client-go/pkg/observability"
	"github.com/ajitpratap0/mcp-client-go/pkg/protocol"
	"github.com/ajitpratap0/mcp-client-go/pkg/transport"
	"github.com/ajitpratap0/mcp-client-go/pkg/utils"
)

// cancelNotifyTimeout bounds the best-effort notifications/cancelled write
const cancelNotifyTimeout = 5 * time.Second

// errClientClosed is the cause recorded when the application closes the client
var errClientClosed = errors.New("client closed")

// Session states reported to ClientMetrics
const (
	stateConnecting = "connecting"
	stateReady      = "ready"
	stateClosed     = "closed"
	stateFailed     = "failed"
)

// Client is one MCP session with a server over a Transport. All methods are
// safe for concurrent use.
type Client struct {
	transport     transport.Transport
	transportName string
	cfg           config
	logger        logging.Logger
	metrics       observability.ClientMetrics
	tracer        trace.Tracer
	validator     *utils.SchemaValidator

	sendMu sync.Mutex

	pending    *correlationTable
	progress   *progressRouter
	dispatcher *dispatcher

	tools     *capabilityStore[protocol.Tool]
	prompts   *capabilityStore[protocol.Prompt]
	resources *capabilityStore[protocol.Resource]
	templates *capabilityStore[protocol.ResourceTemplate]

	ctx    context.Context
	cancel context.CancelFunc
	group  errgroup.Group

	startOnce sync.Once
	startErr  error

	initOnce    sync.Once
	initResult  *protocol.Implementation
	initErr     error
	initialized atomic.Bool

	infoMu       sync.RWMutex
	serverInfo   *protocol.Implementation
	serverCaps   protocol.ServerCapabilities
	instructions string
	version      string

	bgMu     sync.Mutex
	bgClosed bool
	bg       sync.WaitGroup

	termOnce       sync.Once
	errMu          sync.RWMutex
	err            error
	done           chan struct{}
	closeTransport func() error
}

// New creates a client for t. The session starts with Initialize.
func New(t transport.Transport, options ...Option) (*Client, error) {
	if t == nil {
		return nil, errors.New("client requires a transport")
	}

	cfg := defaultConfig()
	for _, option := range options {
		option(&cfg)
	}
	if len(cfg.supportedVersions) == 0 {
		return nil, errors.New("client requires at least one supported protocol version")
	}

	ctx, cancel := context.WithCancel(context.Background())
	name := transport.NameOf(t)

	c := &Client{
		transport:     t,
		transportName: name,
		cfg:           cfg,
		logger:        cfg.logger.WithFields(logging.Component("client"), logging.String("transport", name)),
		metrics:       cfg.metrics,
		tracer:        cfg.tracer,
		validator:     utils.NewSchemaValidator(),
		pending:       newCorrelationTable(),
		progress:      newProgressRouter(),
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
	}
	c.closeTransport = sync.OnceValue(t.Close)
	c.dispatcher = newDispatcher(c)

	c.tools = newCapabilityStore(KindTools, c.listTools, cfg.refetch, c.logger, c.metrics)
	c.prompts = newCapabilityStore(KindPrompts, c.listPrompts, cfg.refetch, c.logger, c.metrics)
	c.resources = newCapabilityStore(KindResources, c.listResources, cfg.refetch, c.logger, c.metrics)
	c.templates = newCapabilityStore(KindResourceTemplates, c.listResourceTemplates, cfg.refetch, c.logger, c.metrics)

	return c, nil
}

// Start starts the transport and the inbound message loop. It is idempotent
// and called by Initialize. ctx bounds only the start itself; the session
// lives until Close or until the transport ends.
func (c *Client) Start(ctx context.Context) error {
	c.startOnce.Do(func() {
		if err := c.Err(); err != nil {
			c.startErr = err
			return
		}

		c.metrics.RecordSessionState(ctx, stateConnecting)
		if err := c.transport.Start(c.ctx); err != nil {
			c.startErr = mcperrors.ConnectionFailed(c.transportName, err)
			c.terminate(mcperrors.ConnectionLost(c.transportName, err))
			return
		}

		c.group.Go(func() error {
			c.run(c.ctx)
			return nil
		})
		c.group.Go(func() error {
			<-c.ctx.Done()
			if err := c.closeTransport(); err != nil && !errors.Is(err, transport.ErrClosed) {
				return err
			}
			return nil
		})
		c.logger.Debug("Client started")
	})
	return c.startErr
}

// run is the inbound loop. It is the only reader of the transport.
func (c *Client) run(ctx context.Context) {
	for {
		msg, err := c.transport.Receive(ctx)
		if err != nil {
			if !transport.IsTerminal(err) {
				c.protocolAnomaly(ctx, "undecodable_message", "undecodable message", err)
				continue
			}
			c.terminate(mcperrors.ConnectionLost(c.transportName, err))
			return
		}

		switch msg.Kind() {
		case protocol.KindResponse:
			c.handleResponse(msg)
		case protocol.KindNotification:
			c.handleNotification(ctx, msg)
		case protocol.KindRequest:
			c.dispatcher.dispatch(ctx, msg)
		default:
			c.protocolAnomaly(ctx, "invalid_message", "message of unknown kind", nil)
		}
	}
}

func (c *Client) handleResponse(msg *protocol.Message) {
	if p := c.pending.resolve(msg); p != nil {
		return
	}

	id := "<none>"
	if msg.ID != nil {
		id = msg.ID.String()
	}
	c.logger.Warn("Dropping response for unknown request", logging.ID(id))
	c.metrics.RecordAnomaly(c.ctx, "unknown_response")
}

// protocolAnomaly logs and counts a server message the session drops
func (c *Client) protocolAnomaly(ctx context.Context, anomaly, reason string, cause error) {
	c.logger.WithError(mcperrors.ProtocolError(reason, cause)).Warn("Dropping " + reason)
	c.metrics.RecordAnomaly(ctx, anomaly)
}

func (c *Client) handleNotification(ctx context.Context, msg *protocol.Message) {
	switch msg.Method {
	case protocol.MethodToolsChanged:
		c.tools.refresh()
	case protocol.MethodPromptsChanged:
		c.prompts.refresh()
	case protocol.MethodResourcesChanged:
		c.resources.refresh()
		c.templates.refresh()
	case protocol.MethodProgress:
		c.handleProgress(ctx, msg)
	case protocol.MethodCancelled:
		var params protocol.CancelledParams
		if err := protocol.UnmarshalParams(msg.Params, &params); err != nil {
			c.protocolAnomaly(ctx, "invalid_cancelled", "invalid cancelled notification", err)
			return
		}
		if !c.dispatcher.cancel(params.RequestID) {
			c.logger.Debug("Cancelled notification for unknown request", logging.ID(params.RequestID.String()))
		}
	case protocol.MethodLog:
		c.handleLog(msg)
	default:
		c.logger.Debug("Ignoring notification", logging.Method(msg.Method))
	}
}

func (c *Client) handleProgress(ctx context.Context, msg *protocol.Message) {
	var params protocol.ProgressParams
	if err := protocol.UnmarshalParams(msg.Params, &params); err != nil {
		c.protocolAnomaly(ctx, "invalid_progress", "invalid progress notification", err)
		return
	}
	c.metrics.RecordProgress(ctx)

	// callbacks run here, on the inbound loop; see ProgressFunc
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Progress callback panicked", logging.Any("panic", r))
		}
	}()
	if !c.progress.dispatch(params) {
		c.logger.Debug("Progress for unknown token", logging.String("token", string(params.ProgressToken)))
	}
}

func (c *Client) handleLog(msg *protocol.Message) {
	var params protocol.LogMessageParams
	if err := protocol.UnmarshalParams(msg.Params, &params); err != nil {
		c.protocolAnomaly(c.ctx, "invalid_log", "invalid log notification", err)
		return
	}
	if c.cfg.logHandler != nil {
		c.cfg.logHandler(params)
		return
	}

	fields := []logging.Field{logging.String("level", string(params.Level))}
	if params.Logger != "" {
		fields = append(fields, logging.String("logger", params.Logger))
	}
	c.logger.Info("Server log: "+params.DataString(), fields...)
}

// call sends a request and waits for its response, decoding the result into result
func (c *Client) call(ctx context.Context, method string, params interface{}, token protocol.ProgressToken, result interface{}) (err error) {
	if c.cfg.requestTimeout > 0 {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.cfg.requestTimeout)
			defer cancel()
		}
	}

	ctx, span := observability.StartMethodSpan(ctx, c.tracer, method, trace.SpanKindClient)
	start := time.Now()
	defer func() {
		c.metrics.RecordCall(ctx, method, observability.StatusOf(err), time.Since(start))
		observability.EndSpan(span, err)
	}()

	p, err := c.pending.register(method, token)
	if err != nil {
		return err
	}
	observability.AnnotateRequest(span, protocol.NumberID(p.id), token)
	c.metrics.AddInFlight(method, 1)
	defer c.metrics.AddInFlight(method, -1)

	req, err := protocol.NewRequest(protocol.NumberID(p.id), method, params)
	if err != nil {
		c.pending.remove(p.id)
		return mcperrors.ValidationErrorf("invalid %s params: %v", method, err)
	}
	if err := c.send(ctx, req); err != nil {
		c.pending.remove(p.id)
		return err
	}

	select {
	case out := <-p.done:
		if out.err != nil {
			return out.err
		}
		if out.response.Error != nil {
			return mcperrors.FromJSONRPCError(method, out.response.Error)
		}
		if result != nil {
			if err := protocol.UnmarshalParams(out.response.Result, result); err != nil {
				return mcperrors.ProtocolError(fmt.Sprintf("invalid %s result", method), err)
			}
		}
		return nil

	case <-ctx.Done():
		if c.pending.remove(p.id) {
			c.notifyCancelled(p.id, ctx.Err())
		}
		return mcperrors.FromContextError(method, ctx.Err())
	}
}

// send writes one message. Writes are serialized so frames never interleave.
func (c *Client) send(ctx context.Context, msg *protocol.Message) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if err := c.transport.Send(ctx, msg); err != nil {
		if mcperrors.IsMCPError(err) {
			return err
		}
		return mcperrors.MessageSendError(c.transportName, msg.Method, err)
	}
	return nil
}

func (c *Client) notify(ctx context.Context, method string, params interface{}) error {
	msg, err := protocol.NewNotification(method, params)
	if err != nil {
		return err
	}
	return c.send(ctx, msg)
}

// notifyCancelled tells the server that request id is no longer wanted. It
// does not wait for the write.
func (c *Client) notifyCancelled(id int64, reason error) {
	c.spawn(func() {
		ctx, cancel := context.WithTimeout(context.Background(), cancelNotifyTimeout)
		defer cancel()

		params := protocol.CancelledParams{RequestID: protocol.NumberID(id), Reason: reason.Error()}
		if err := c.notify(ctx, protocol.MethodCancelled, params); err != nil {
			c.logger.Debug("Failed to send cancellation", logging.ID(params.RequestID.String()), logging.ErrorField(err))
		}
	})
}

// spawn runs fn on a goroutine that Close waits for. It reports false once the
// session has ended.
func (c *Client) spawn(fn func()) bool {
	c.bgMu.Lock()
	defer c.bgMu.Unlock()

	if c.bgClosed {
		return false
	}
	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		fn()
	}()
	return true
}

// terminate ends the session with err. Pending calls fail with err, later
// calls fail with it too, and every capability subscription completes.
func (c *Client) terminate(err error) {
	c.termOnce.Do(func() {
		c.errMu.Lock()
		c.err = err
		c.errMu.Unlock()

		c.pending.failAll(err)
		c.cancel()

		c.bgMu.Lock()
		c.bgClosed = true
		c.bgMu.Unlock()

		c.tools.close()
		c.prompts.close()
		c.resources.close()
		c.templates.close()

		state := stateClosed
		if !errors.Is(err, errClientClosed) {
			state = stateFailed
			c.logger.Warn("Session terminated", logging.ErrorField(err))
		}
		c.metrics.RecordSessionState(context.Background(), state)
		close(c.done)
	})
}

// Close ends the session. Pending calls fail with a transport error and every
// subscription completes. It must not be called from a progress callback or a
// server request handler.
func (c *Client) Close() error {
	c.terminate(mcperrors.ConnectionLost(c.transportName, errClientClosed))

	err := c.closeTransport()
	groupErr := c.group.Wait()
	c.bg.Wait()

	if err != nil && !errors.Is(err, transport.ErrClosed) {
		return err
	}
	return groupErr
}

// Done is closed when the session ends
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns why the session ended, or nil while it is open
func (c *Client) Err() error {
	c.errMu.RLock()
	defer c.errMu.RUnlock()
	return c.err
}

// ready fails requests until the handshake succeeded and after the session ended
func (c *Client) ready() error {
	if err := c.Err(); err != nil {
		return err
	}
	if !c.initialized.Load() {
		return mcperrors.ErrNotInitialized
	}
	return nil
}

// ServerInfo returns the server's name and version, or nil before Initialize
func (c *Client) ServerInfo() *protocol.Implementation {
	c.infoMu.RLock()
	defer c.infoMu.RUnlock()
	if c.serverInfo == nil {
		return nil
	}
	info := *c.serverInfo
	return &info
}

// ServerCapabilities returns the capabilities the server declared
func (c *Client) ServerCapabilities() protocol.ServerCapabilities {
	c.infoMu.RLock()
	defer c.infoMu.RUnlock()
	return c.serverCaps
}

// Instructions returns the usage instructions the server sent, if any
func (c *Client) Instructions() string {
	c.infoMu.RLock()
	defer c.infoMu.RUnlock()
	return c.instructions
}

// NegotiatedVersion returns the protocol version the server chose
func (c *Client) NegotiatedVersion() string {
	c.infoMu.RLock()
	defer c.infoMu.RUnlock()
	return c.version
}

// Tools is the live tools list
func (c *Client) Tools() ReadOnlySubject[CapabilityStatus[protocol.Tool]] {
	return c.tools.subject
}

// Prompts is the live prompts list
func (c *Client) Prompts() ReadOnlySubject[CapabilityStatus[protocol.Prompt]] {
	return c.prompts.subject
}

// Resources is the live resources list
func (c *Client) Resources() ReadOnlySubject[CapabilityStatus[protocol.Resource]] {
	return c.resources.subject
}

// ResourceTemplates is the live resource templates list
func (c *Client) ResourceTemplates() ReadOnlySubject[CapabilityStatus[protocol.ResourceTemplate]] {
	return c.templates.subject
}

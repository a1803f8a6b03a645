package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	mcperrors "github.com/ajitpratap0/mcp-client-go/pkg/errors"
	"github.com/ajitpratap0/mcp-client-go/pkg/logging"
	"github.com/ajitpratap0/mcp-client-go/pkg/observability"
	"github.com/ajitpratap0/mcp-client-go/pkg/protocol"
)

// requestHandler answers one kind of server request
type requestHandler func(ctx context.Context, params json.RawMessage) (interface{}, error)

// dispatcher answers requests the server sends to the client. Each request
// runs on its own goroutine with a context cancelled by notifications/cancelled.
type dispatcher struct {
	client   *Client
	handlers map[string]requestHandler

	mu       sync.Mutex
	inflight map[string]*inflightRequest
}

// inflightRequest is one running handler; a reused id gets a fresh entry
type inflightRequest struct {
	cancel context.CancelFunc
}

func newDispatcher(c *Client) *dispatcher {
	d := &dispatcher{
		client:   c,
		handlers: make(map[string]requestHandler),
		inflight: make(map[string]*inflightRequest),
	}

	d.handlers[protocol.MethodPing] = func(context.Context, json.RawMessage) (interface{}, error) {
		return protocol.EmptyResult{}, nil
	}
	if c.cfg.roots != nil {
		d.handlers[protocol.MethodListRoots] = d.handleListRoots
	}
	if c.cfg.sampling != nil {
		d.handlers[protocol.MethodCreateMessage] = d.handleCreateMessage
	}
	return d
}

// dispatch starts answering req. It never blocks on application code.
func (d *dispatcher) dispatch(ctx context.Context, req *protocol.Message) {
	id := *req.ID
	logger := d.client.logger.WithFields(
		logging.Method(req.Method),
		logging.ID(id.String()),
	)

	handler, ok := d.handlers[req.Method]
	if !ok {
		logger.Warn("Rejecting server request without a handler")
		d.client.metrics.RecordAnomaly(ctx, "unsupported_request")
		d.client.spawn(func() {
			d.respond(ctx, id, req.Method, nil, mcperrors.CapabilityNotSupported(req.Method), logger)
		})
		return
	}

	key := id.String()
	hctx, cancel := context.WithCancel(ctx)
	entry := &inflightRequest{cancel: cancel}
	d.mu.Lock()
	if previous, dup := d.inflight[key]; dup {
		previous.cancel()
		logger.Warn("Server reused the id of a request still in flight")
	}
	d.inflight[key] = entry
	d.mu.Unlock()

	started := d.client.spawn(func() {
		defer d.finish(key, entry)

		hctx, span := observability.StartMethodSpan(hctx, d.client.tracer, req.Method, trace.SpanKindServer)
		observability.AnnotateRequest(span, id, "")
		start := time.Now()

		result, err := d.invoke(hctx, handler, req.Params, logger)

		d.client.metrics.RecordServerRequest(hctx, req.Method, observability.StatusOf(err), time.Since(start))
		observability.EndSpan(span, err)

		if hctx.Err() != nil && ctx.Err() == nil {
			logger.Debug("Server cancelled request, dropping response")
			return
		}
		d.respond(ctx, id, req.Method, result, err, logger)
	})
	if !started {
		d.finish(key, entry)
	}
}

// invoke runs handler and turns a panic into an internal error
func (d *dispatcher) invoke(ctx context.Context, handler requestHandler, params json.RawMessage, logger logging.Logger) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Handler panicked", logging.Any("panic", r))
			result = nil
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, params)
}

func (d *dispatcher) respond(ctx context.Context, id protocol.RequestID, method string, result interface{}, handlerErr error, logger logging.Logger) {
	var (
		msg *protocol.Message
		err error
	)
	if handlerErr != nil {
		logger.Warn("Server request failed", logging.ErrorField(handlerErr))
		msg, err = mcperrors.ToJSONRPCResponse(handlerErr, id)
	} else {
		msg, err = protocol.NewResponse(id, result)
	}
	if err != nil {
		logger.Error("Failed to encode response", logging.ErrorField(err))
		msg, err = protocol.NewErrorResponse(id, protocol.InternalError, err.Error(), nil)
		if err != nil {
			return
		}
	}

	if err := d.client.send(ctx, msg); err != nil {
		logger.Warn("Failed to send response", logging.ErrorField(err))
	}
}

// cancel aborts the handler of a server request
func (d *dispatcher) cancel(id protocol.RequestID) bool {
	d.mu.Lock()
	entry, ok := d.inflight[id.String()]
	d.mu.Unlock()

	if ok {
		entry.cancel()
	}
	return ok
}

// finish releases entry, leaving any newer request under the same id in place
func (d *dispatcher) finish(key string, entry *inflightRequest) {
	entry.cancel()
	d.mu.Lock()
	if d.inflight[key] == entry {
		delete(d.inflight, key)
	}
	d.mu.Unlock()
}

func (d *dispatcher) handleListRoots(ctx context.Context, _ json.RawMessage) (interface{}, error) {
	roots, err := d.client.cfg.roots(ctx)
	if err != nil {
		return nil, err
	}
	if roots == nil {
		roots = []protocol.Root{}
	}
	return protocol.ListRootsResult{Roots: roots}, nil
}

func (d *dispatcher) handleCreateMessage(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var params protocol.CreateMessageParams
	if err := protocol.UnmarshalParams(raw, &params); err != nil {
		return nil, invalidParams(protocol.MethodCreateMessage, err)
	}

	result, err := d.client.cfg.sampling(ctx, &params)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, mcperrors.NewError(mcperrors.CodeInternalError, "sampling handler returned no result",
			mcperrors.CategoryInternal, mcperrors.SeverityError)
	}
	return result, nil
}

func invalidParams(method string, err error) mcperrors.MCPError {
	return mcperrors.WrapError(err, mcperrors.CodeInvalidParams,
		fmt.Sprintf("invalid params for %s: %v", method, err),
		mcperrors.CategoryValidation, mcperrors.SeverityError)
}

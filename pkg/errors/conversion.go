package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/ajitpratap0/mcp-client-go/pkg/protocol"
)

// RPCError is a JSON-RPC error response the server returned for one call
type RPCError struct {
	*baseError
	Method string
}

// FromJSONRPCError converts a JSON-RPC error object returned for method into an RPCError
func FromJSONRPCError(method string, jsonrpcErr *protocol.Error) *RPCError {
	if jsonrpcErr == nil {
		return nil
	}

	base := newBase(int(jsonrpcErr.Code), jsonrpcErr.Message, nil)
	base.context.Method = method
	if len(jsonrpcErr.Data) > 0 {
		base.data = jsonrpcErr.Data
	}
	return &RPCError{baseError: base, Method: method}
}

// ToJSONRPCError converts any error to a JSON-RPC error object. MCPErrors keep their
// code; anything else becomes an internal error.
func ToJSONRPCError(err error) *protocol.Error {
	if err == nil {
		return nil
	}

	if mcpErr, ok := AsMCPError(err); ok {
		return &protocol.Error{
			Code:    protocol.ErrorCode(mcpErr.Code()),
			Message: mcpErr.Message(),
			Data:    marshalData(mcpErr.Data()),
		}
	}

	return &protocol.Error{
		Code:    protocol.InternalError,
		Message: err.Error(),
	}
}

// ToJSONRPCResponse converts any error to a JSON-RPC error response for requestID
func ToJSONRPCResponse(err error, requestID protocol.RequestID) (*protocol.Message, error) {
	if err == nil {
		return nil, fmt.Errorf("cannot create error response from nil error")
	}

	rpcErr := ToJSONRPCError(err)
	return &protocol.Message{
		JSONRPC: protocol.JSONRPCVersion,
		ID:      &requestID,
		Error:   rpcErr,
	}, nil
}

// FromContextError maps a context error for method onto the cancellation taxonomy
func FromContextError(method string, err error) MCPError {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return OperationTimeout(method, err)
	}
	return OperationCancelled(method, err)
}

// IsRetryableError reports whether a failed call may succeed if repeated
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, ErrTransportClosed) {
		return false
	}

	mcpErr, ok := AsMCPError(err)
	if !ok {
		return true
	}

	switch mcpErr.Category() {
	case CategoryTimeout, CategoryRemote, CategoryInternal:
		return true
	case CategoryCancelled, CategorySession, CategoryTool:
		return false
	}

	switch mcpErr.Code() {
	case CodeTransportError:
		return true
	case CodeMethodNotFound, CodeInvalidParams, CodeCapabilityNotSupported:
		return false
	}
	return false
}

func marshalData(data interface{}) json.RawMessage {
	if data == nil {
		return nil
	}
	if raw, ok := data.(json.RawMessage); ok {
		return raw
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	return raw
}

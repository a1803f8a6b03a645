package errors

import (
	"fmt"
	"strings"
)

// ProtocolError reports a server message that breaks the protocol, such as
// a result that does not decode into the expected shape
func ProtocolError(reason string, cause error) MCPError {
	return WrapError(
		cause,
		CodeProtocolError,
		fmt.Sprintf("Protocol error: %s", reason),
		CategoryProtocol,
		SeverityError,
	)
}

// VersionMismatchError reports that the server picked a protocol version the client does not support
type VersionMismatchError struct {
	*baseError
	Received string
	Expected []string
}

// VersionMismatch creates the error returned when the handshake negotiates an unsupported version
func VersionMismatch(received string, expected []string) *VersionMismatchError {
	message := fmt.Sprintf(
		"Version mismatch between server and client. Received: %s, Expected: %s",
		received, strings.Join(expected, " or "),
	)
	base := newBase(CodeVersionMismatch, message, nil)
	base.data = map[string]interface{}{
		"received": received,
		"expected": expected,
	}
	return &VersionMismatchError{
		baseError: base,
		Received:  received,
		Expected:  expected,
	}
}

// ErrNotInitialized is returned by calls issued before the handshake succeeded
var ErrNotInitialized MCPError = NewError(
	CodeNotInitialized,
	"Client not initialized: call Initialize first",
	CategorySession,
	SeverityError,
)

// SessionClosed wraps the reason a session ended for calls issued afterwards
func SessionClosed(cause error) MCPError {
	return WrapError(cause, CodeSessionClosed, "Session closed", CategorySession, SeverityCritical)
}

// CapabilityNotSupported answers a server request the client has no handler for
func CapabilityNotSupported(method string) MCPError {
	return NewError(
		CodeMethodNotFound,
		fmt.Sprintf("capability not supported: %s", method),
		CategoryProtocol,
		SeverityWarning,
	).WithContext(&Context{Method: method})
}

// CapabilityNotDeclared rejects a client operation that needs a capability nobody declared
func CapabilityNotDeclared(capability string) MCPError {
	return NewError(
		CodeCapabilityNotSupported,
		fmt.Sprintf("capability not declared: %s", capability),
		CategoryProtocol,
		SeverityWarning,
	)
}

// OperationCancelled creates an error for a call abandoned by its caller
func OperationCancelled(method string, cause error) MCPError {
	return WrapError(
		cause,
		CodeOperationCancelled,
		fmt.Sprintf("Operation cancelled: %s", method),
		CategoryCancelled,
		SeverityInfo,
	)
}

// OperationTimeout creates an error for a call whose deadline passed
func OperationTimeout(method string, cause error) MCPError {
	return WrapError(
		cause,
		CodeOperationTimeout,
		fmt.Sprintf("Operation timed out: %s", method),
		CategoryTimeout,
		SeverityError,
	)
}

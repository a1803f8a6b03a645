package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrTransportClosed is matched by every TransportError via errors.Is
var ErrTransportClosed = stderrors.New("transport closed")

// TransportErrorData contains structured data for transport-related errors
type TransportErrorData struct {
	Transport string `json:"transport,omitempty"`
	Operation string `json:"operation,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// TransportError reports that the connection to the server is gone.
// It is terminal for the session.
type TransportError struct {
	*baseError
}

// Is lets errors.Is(err, ErrTransportClosed) match any transport failure
func (e *TransportError) Is(target error) bool {
	return target == ErrTransportClosed
}

// ConnectionLost creates the terminal error delivered to pending and future calls
func ConnectionLost(transport string, cause error) *TransportError {
	message := "Connection lost"
	reason := ""
	if cause != nil {
		reason = cause.Error()
		message = fmt.Sprintf("Connection lost: %s", reason)
	}

	base := newBase(CodeConnectionLost, message, cause)
	base.data = &TransportErrorData{
		Transport: transport,
		Reason:    reason,
	}
	return &TransportError{baseError: base}
}

// MessageSendError creates an error for a failed write to the transport
func MessageSendError(transport, method string, cause error) MCPError {
	return WrapError(
		cause,
		CodeTransportError,
		fmt.Sprintf("Failed to send %s via %s", method, transport),
		CategoryTransport,
		SeverityError,
	).WithData(&TransportErrorData{
		Transport: transport,
		Operation: "send",
	})
}

// ConnectionFailed creates an error for a transport that could not be started
func ConnectionFailed(transport string, cause error) MCPError {
	return WrapError(
		cause,
		CodeConnectionFailed,
		fmt.Sprintf("Failed to connect via %s", transport),
		CategoryTransport,
		SeverityCritical,
	).WithData(&TransportErrorData{
		Transport: transport,
		Operation: "connect",
	})
}

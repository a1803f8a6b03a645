// Package errors provides structured error handling for the MCP client.
// It defines error types that map to JSON-RPC error codes and carry enough
// context to tell a per-call failure from a session-fatal one.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"
)

// Category groups errors by where they came from
type Category string

const (
	CategoryValidation Category = "validation"
	CategoryNotFound   Category = "not_found"
	CategoryTransport  Category = "transport"
	CategoryInternal   Category = "internal"
	CategoryTimeout    Category = "timeout"
	CategoryCancelled  Category = "cancelled"
	CategoryProtocol   Category = "protocol"
	CategorySession    Category = "session"
	CategoryTool       Category = "tool"
	CategoryRemote     Category = "remote"
)

// Severity tells whether the session outlives the error
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Context records the call an error belongs to
type Context struct {
	RequestID string    `json:"request_id,omitempty"`
	Method    string    `json:"method,omitempty"`
	Component string    `json:"component,omitempty"`
	Operation string    `json:"operation,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// MCPError is implemented by every error this module returns
type MCPError interface {
	error

	// Code is the JSON-RPC error code sent or received on the wire
	Code() int
	// Message is the text without the cause
	Message() string
	// Data is the structured payload carried in the JSON-RPC error object
	Data() interface{}
	Category() Category
	Severity() Severity
	// Context is never nil
	Context() *Context

	WithContext(ctx *Context) MCPError
	WithData(data interface{}) MCPError
	Unwrap() error
}

type baseError struct {
	code     int
	message  string
	data     interface{}
	category Category
	severity Severity
	context  *Context
	cause    error
}

func (e *baseError) Error() string { return e.message }
func (e *baseError) Code() int { return e.code }
func (e *baseError) Message() string { return e.message }
func (e *baseError) Data() interface{} { return e.data }
func (e *baseError) Category() Category { return e.category }
func (e *baseError) Severity() Severity { return e.severity }
func (e *baseError) Context() *Context { return e.context }
func (e *baseError) Unwrap() error { return e.cause }

// WithContext returns a copy of e carrying ctx
func (e *baseError) WithContext(ctx *Context) MCPError {
	clone := *e
	clone.context = ctx
	return &clone
}

// WithData returns a copy of e carrying data
func (e *baseError) WithData(data interface{}) MCPError {
	clone := *e
	clone.data = data
	return &clone
}

// MarshalJSON renders the error for structured logs
func (e *baseError) MarshalJSON() ([]byte, error) {
	out := struct {
		Code     int         `json:"code"`
		Message  string      `json:"message"`
		Category Category    `json:"category"`
		Severity Severity    `json:"severity"`
		Data     interface{} `json:"data,omitempty"`
		Context  *Context    `json:"context,omitempty"`
		Cause    string      `json:"cause,omitempty"`
	}{
		Code:     e.code,
		Message:  e.message,
		Category: e.category,
		Severity: e.severity,
		Data:     e.data,
		Context:  e.context,
	}
	if e.cause != nil {
		out.Cause = e.cause.Error()
	}
	return json.Marshal(out)
}

// NewError creates an MCPError with an explicit category and severity
func NewError(code int, message string, category Category, severity Severity) MCPError {
	return &baseError{
		code:     code,
		message:  message,
		category: category,
		severity: severity,
		context:  &Context{Timestamp: time.Now()},
	}
}

// NewErrorf is NewError with a formatted message
func NewErrorf(code int, category Category, severity Severity, format string, args ...interface{}) MCPError {
	return NewError(code, fmt.Sprintf(format, args...), category, severity)
}

// WrapError is NewError with err as the cause
func WrapError(err error, code int, message string, category Category, severity Severity) MCPError {
	wrapped := NewError(code, message, category, severity).(*baseError)
	wrapped.cause = err
	return wrapped
}

// newBase takes category and severity from the code registry
func newBase(code int, message string, cause error) *baseError {
	return &baseError{
		code:     code,
		message:  message,
		category: GetErrorCodeCategory(code),
		severity: GetErrorCodeSeverity(code),
		cause:    cause,
		context:  &Context{Timestamp: time.Now()},
	}
}

// AsMCPError finds the first MCPError in err's chain
func AsMCPError(err error) (MCPError, bool) {
	var mcpErr MCPError
	if err != nil && stderrors.As(err, &mcpErr) {
		return mcpErr, true
	}
	return nil, false
}

// IsMCPError reports whether err's chain holds an MCPError
func IsMCPError(err error) bool {
	_, ok := AsMCPError(err)
	return ok
}

// IsCategory reports whether the first MCPError in err's chain has category
func IsCategory(err error, category Category) bool {
	mcpErr, ok := AsMCPError(err)
	return ok && mcpErr.Category() == category
}

// IsCode reports whether the first MCPError in err's chain has code
func IsCode(err error, code int) bool {
	mcpErr, ok := AsMCPError(err)
	return ok && mcpErr.Code() == code
}

package errors

// JSON-RPC 2.0 Standard Error Codes
const (
	// ParseError indicates invalid JSON was received
	CodeParseError int = -32700

	// InvalidRequest indicates the JSON sent is not a valid Request object
	CodeInvalidRequest int = -32600

	// MethodNotFound indicates the method does not exist / is not available
	CodeMethodNotFound int = -32601

	// InvalidParams indicates invalid method parameter(s)
	CodeInvalidParams int = -32602

	// InternalError indicates internal JSON-RPC error
	CodeInternalError int = -32603
)

// MCP-Specific Error Codes
const (
	// Session Errors (-32000 to -32099)
	CodeNotInitialized int = -32002 // Session not initialized yet
	CodeSessionClosed  int = -32003 // Session was closed or failed

	// Operation Errors (-32300 to -32399)
	CodeOperationCancelled int = -32300 // Operation was cancelled
	CodeOperationTimeout   int = -32301 // Operation timed out

	// Capability Errors (-32400 to -32499)
	CodeCapabilityNotSupported int = -32400 // Peer did not declare the capability

	// Transport Errors (-32500 to -32599)
	CodeTransportError   int = -32500 // Generic transport error
	CodeConnectionFailed int = -32501 // Failed to establish connection
	CodeConnectionLost   int = -32502 // Connection lost during operation

	// Validation Errors (-32750 to -32799)
	CodeValidationError  int = -32750 // Generic validation error
	CodeInvalidParameter int = -32752 // Parameter has invalid value

	// Protocol Errors (-32900 to -32999)
	CodeProtocolError   int = -32900 // Generic protocol error
	CodeVersionMismatch int = -32901 // Protocol version mismatch
	CodeToolExecution   int = -32904 // Tool reported isError
)

// ErrorCodeInfo provides human-readable information about error codes
type ErrorCodeInfo struct {
	Code        int
	Name        string
	Description string
	Category    Category
	Severity    Severity
}

// errorCodeRegistry maps error codes to their information
var errorCodeRegistry = map[int]ErrorCodeInfo{
	// JSON-RPC Standard Errors
	CodeParseError:     {CodeParseError, "ParseError", "Invalid JSON was received", CategoryProtocol, SeverityError},
	CodeInvalidRequest: {CodeInvalidRequest, "InvalidRequest", "Invalid Request object", CategoryProtocol, SeverityError},
	CodeMethodNotFound: {CodeMethodNotFound, "MethodNotFound", "Method does not exist", CategoryProtocol, SeverityError},
	CodeInvalidParams:  {CodeInvalidParams, "InvalidParams", "Invalid method parameters", CategoryValidation, SeverityError},
	CodeInternalError:  {CodeInternalError, "InternalError", "Internal JSON-RPC error", CategoryInternal, SeverityError},

	// Session Errors
	CodeNotInitialized: {CodeNotInitialized, "NotInitialized", "Session not initialized", CategorySession, SeverityError},
	CodeSessionClosed:  {CodeSessionClosed, "SessionClosed", "Session closed", CategorySession, SeverityCritical},

	// Operation Errors
	CodeOperationCancelled: {CodeOperationCancelled, "OperationCancelled", "Operation cancelled", CategoryCancelled, SeverityInfo},
	CodeOperationTimeout:   {CodeOperationTimeout, "OperationTimeout", "Operation timed out", CategoryTimeout, SeverityError},

	// Capability Errors
	CodeCapabilityNotSupported: {CodeCapabilityNotSupported, "CapabilityNotSupported", "Capability not supported", CategoryProtocol, SeverityWarning},

	// Transport Errors
	CodeTransportError:   {CodeTransportError, "TransportError", "Transport error", CategoryTransport, SeverityError},
	CodeConnectionFailed: {CodeConnectionFailed, "ConnectionFailed", "Connection failed", CategoryTransport, SeverityCritical},
	CodeConnectionLost:   {CodeConnectionLost, "ConnectionLost", "Connection lost", CategoryTransport, SeverityCritical},

	// Validation Errors
	CodeValidationError:  {CodeValidationError, "ValidationError", "Validation error", CategoryValidation, SeverityError},
	CodeInvalidParameter: {CodeInvalidParameter, "InvalidParameter", "Invalid parameter value", CategoryValidation, SeverityError},

	// Protocol Errors
	CodeProtocolError:   {CodeProtocolError, "ProtocolError", "Protocol error", CategoryProtocol, SeverityError},
	CodeVersionMismatch: {CodeVersionMismatch, "VersionMismatch", "Protocol version mismatch", CategoryProtocol, SeverityCritical},
	CodeToolExecution:   {CodeToolExecution, "ToolExecution", "Tool execution failed", CategoryTool, SeverityError},
}

// GetErrorCodeInfo returns information about an error code
func GetErrorCodeInfo(code int) (ErrorCodeInfo, bool) {
	info, exists := errorCodeRegistry[code]
	return info, exists
}

// GetErrorCodeName returns the name of an error code
func GetErrorCodeName(code int) string {
	if info, exists := errorCodeRegistry[code]; exists {
		return info.Name
	}
	return "UnknownError"
}

// GetErrorCodeCategory returns the category of an error code.
// Codes this module does not know came from the remote peer.
func GetErrorCodeCategory(code int) Category {
	if info, exists := errorCodeRegistry[code]; exists {
		return info.Category
	}
	return CategoryRemote
}

// GetErrorCodeSeverity returns the severity of an error code
func GetErrorCodeSeverity(code int) Severity {
	if info, exists := errorCodeRegistry[code]; exists {
		return info.Severity
	}
	return SeverityError
}

// IsStandardJSONRPCCode checks if a code is in the JSON-RPC reserved range
func IsStandardJSONRPCCode(code int) bool {
	return code >= -32768 && code <= -32000
}

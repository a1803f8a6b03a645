package protocol

import (
	"bytes"
	"encoding/json"
	"strconv"
)

const (
	// LatestProtocolVersion is the newest protocol revision this module speaks
	LatestProtocolVersion = "2025-03-26"

	// Methods for lifecycle management
	MethodInitialize  = "initialize"
	MethodInitialized = "notifications/initialized"
	MethodPing        = "ping"

	// Methods for server features
	MethodListTools             = "tools/list"
	MethodCallTool              = "tools/call"
	MethodToolsChanged          = "notifications/tools/list_changed"
	MethodListPrompts           = "prompts/list"
	MethodGetPrompt             = "prompts/get"
	MethodPromptsChanged        = "notifications/prompts/list_changed"
	MethodListResources         = "resources/list"
	MethodListResourceTemplates = "resources/templates/list"
	MethodReadResource          = "resources/read"
	MethodResourcesChanged      = "notifications/resources/list_changed"

	// Methods for client features
	MethodListRoots     = "roots/list"
	MethodRootsChanged  = "notifications/roots/list_changed"
	MethodCreateMessage = "sampling/createMessage"

	// Methods for utilities
	MethodCancelled = "notifications/cancelled"
	MethodProgress  = "notifications/progress"
	MethodLog       = "notifications/message"
)

// SupportedProtocolVersions lists every revision this module can interoperate with, newest first
var SupportedProtocolVersions = []string{LatestProtocolVersion, "2024-11-05"}

// Implementation names a client or server and its version
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// RootsCapability is declared by clients that can answer roots/list
type RootsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// SamplingCapability is declared by clients that can answer sampling/createMessage
type SamplingCapability struct{}

// ClientCapabilities is the capability declaration sent in the initialize request
type ClientCapabilities struct {
	Roots        *RootsCapability           `json:"roots,omitempty"`
	Sampling     *SamplingCapability        `json:"sampling,omitempty"`
	Experimental map[string]json.RawMessage `json:"experimental,omitempty"`
}

// ToolsCapability is declared by servers offering tools
type ToolsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// PromptsCapability is declared by servers offering prompts
type PromptsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// ResourcesCapability is declared by servers offering resources and resource templates
type ResourcesCapability struct {
	Subscribe   bool `json:"subscribe,omitempty"`
	ListChanged bool `json:"listChanged,omitempty"`
}

// LoggingCapability is declared by servers that emit log notifications
type LoggingCapability struct{}

// ServerCapabilities is the capability declaration returned by the server
type ServerCapabilities struct {
	Tools        *ToolsCapability           `json:"tools,omitempty"`
	Prompts      *PromptsCapability         `json:"prompts,omitempty"`
	Resources    *ResourcesCapability       `json:"resources,omitempty"`
	Logging      *LoggingCapability         `json:"logging,omitempty"`
	Experimental map[string]json.RawMessage `json:"experimental,omitempty"`
}

// InitializeParams defines the parameters for the initialize request
type InitializeParams struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ClientCapabilities `json:"capabilities"`
	ClientInfo      Implementation     `json:"clientInfo"`
}

// InitializeResult defines the response for the initialize request
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      Implementation     `json:"serverInfo"`
	Instructions    string             `json:"instructions,omitempty"`
}

// EmptyResult is the result of requests that carry no data, such as ping
type EmptyResult struct{}

// PaginatedParams is embedded by list requests
type PaginatedParams struct {
	Cursor string `json:"cursor,omitempty"`
}

// PaginatedResult is embedded by list results
type PaginatedResult struct {
	NextCursor string `json:"nextCursor,omitempty"`
}

// ProgressToken correlates progress notifications with the request that asked for them.
// Numeric tokens sent by a peer are kept in their decimal form.
type ProgressToken string

// UnmarshalJSON implements json.Unmarshaler
func (t *ProgressToken) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = ProgressToken(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*t = ProgressToken(n.String())
	return nil
}

// RequestMeta is the _meta object a request may carry
type RequestMeta struct {
	ProgressToken ProgressToken `json:"progressToken,omitempty"`
}

// ProgressParams defines parameters for the progress notification
type ProgressParams struct {
	ProgressToken ProgressToken `json:"progressToken"`
	Progress      float64       `json:"progress"`
	Total         *float64      `json:"total,omitempty"`
	Message       string        `json:"message,omitempty"`
}

// CancelledParams defines parameters for the cancelled notification
type CancelledParams struct {
	RequestID RequestID `json:"requestId"`
	Reason    string    `json:"reason,omitempty"`
}

// LoggingLevel is the syslog severity carried by server log notifications
type LoggingLevel string

const (
	LoggingLevelDebug     LoggingLevel = "debug"
	LoggingLevelInfo      LoggingLevel = "info"
	LoggingLevelNotice    LoggingLevel = "notice"
	LoggingLevelWarning   LoggingLevel = "warning"
	LoggingLevelError     LoggingLevel = "error"
	LoggingLevelCritical  LoggingLevel = "critical"
	LoggingLevelAlert     LoggingLevel = "alert"
	LoggingLevelEmergency LoggingLevel = "emergency"
)

// LogMessageParams defines parameters for the notifications/message notification
type LogMessageParams struct {
	Level  LoggingLevel    `json:"level"`
	Logger string          `json:"logger,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// DataString renders the log payload, unquoting plain JSON strings
func (p LogMessageParams) DataString() string {
	var s string
	if err := json.Unmarshal(p.Data, &s); err == nil {
		return s
	}
	return string(p.Data)
}

// IsSupportedVersion reports whether version is one of versions
func IsSupportedVersion(version string, versions []string) bool {
	for _, v := range versions {
		if v == version {
			return true
		}
	}
	return false
}

// FormatProgress renders a progress pair as "progress/total" or just "progress"
func FormatProgress(progress float64, total *float64) string {
	p := strconv.FormatFloat(progress, 'f', -1, 64)
	if total == nil {
		return p
	}
	return p + "/" + strconv.FormatFloat(*total, 'f', -1, 64)
}

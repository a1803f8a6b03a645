package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

const (
	// JSONRPCVersion is the supported JSON-RPC version
	JSONRPCVersion = "2.0"
)

// ErrorCode represents standard JSON-RPC 2.0 error codes
type ErrorCode int

// Standard JSON-RPC 2.0 error codes
const (
	ParseError     ErrorCode = -32700
	InvalidRequest ErrorCode = -32600
	MethodNotFound ErrorCode = -32601
	InvalidParams  ErrorCode = -32602
	InternalError  ErrorCode = -32603
)

// RequestID is a JSON-RPC request identifier. It holds either an integer or a string.
type RequestID struct {
	num      int64
	str      string
	isString bool
}

// NumberID returns an integer request id
func NumberID(n int64) RequestID {
	return RequestID{num: n}
}

// StringID returns a string request id
func StringID(s string) RequestID {
	return RequestID{str: s, isString: true}
}

// Int64 returns the integer value of the id and whether the id is an integer
func (id RequestID) Int64() (int64, bool) {
	if id.isString {
		return 0, false
	}
	return id.num, true
}

// IsString reports whether the id was sent as a JSON string
func (id RequestID) IsString() bool {
	return id.isString
}

// String renders the id for logs and map keys. Integer and string ids never collide.
func (id RequestID) String() string {
	if id.isString {
		return strconv.Quote(id.str)
	}
	return strconv.FormatInt(id.num, 10)
}

// MarshalJSON implements json.Marshaler
func (id RequestID) MarshalJSON() ([]byte, error) {
	if id.isString {
		return json.Marshal(id.str)
	}
	return []byte(strconv.FormatInt(id.num, 10)), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (id *RequestID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("invalid string id: %w", err)
		}
		*id = StringID(s)
		return nil
	}

	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("request id must be an integer or a string, got %s", string(data))
	}
	*id = NumberID(n)
	return nil
}

// MessageKind classifies a decoded JSON-RPC message
type MessageKind int

const (
	// KindInvalid is a message that is neither a request, a response nor a notification
	KindInvalid MessageKind = iota
	// KindRequest carries an id and a method
	KindRequest
	// KindResponse carries an id and a result or an error
	KindResponse
	// KindNotification carries a method and no id
	KindNotification
)

func (k MessageKind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindResponse:
		return "response"
	case KindNotification:
		return "notification"
	default:
		return "invalid"
	}
}

// Message is the wire envelope shared by requests, responses and notifications
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *RequestID      `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Kind returns what kind of JSON-RPC message m is
func (m *Message) Kind() MessageKind {
	switch {
	case m.Method != "" && m.ID != nil:
		return KindRequest
	case m.Method != "":
		return KindNotification
	case m.Result != nil || m.Error != nil:
		return KindResponse
	default:
		return KindInvalid
	}
}

// NewRequest creates a new JSON-RPC 2.0 request
func NewRequest(id RequestID, method string, params interface{}) (*Message, error) {
	paramsJSON, err := marshalOptional(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}

	return &Message{
		JSONRPC: JSONRPCVersion,
		ID:      &id,
		Method:  method,
		Params:  paramsJSON,
	}, nil
}

// NewNotification creates a new JSON-RPC 2.0 notification
func NewNotification(method string, params interface{}) (*Message, error) {
	paramsJSON, err := marshalOptional(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}

	return &Message{
		JSONRPC: JSONRPCVersion,
		Method:  method,
		Params:  paramsJSON,
	}, nil
}

// NewResponse creates a new JSON-RPC 2.0 success response. A nil result is sent as an empty object.
func NewResponse(id RequestID, result interface{}) (*Message, error) {
	resultJSON := json.RawMessage("{}")
	if result != nil {
		var err error
		resultJSON, err = json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal result: %w", err)
		}
	}

	return &Message{
		JSONRPC: JSONRPCVersion,
		ID:      &id,
		Result:  resultJSON,
	}, nil
}

// NewErrorResponse creates a new JSON-RPC 2.0 error response
func NewErrorResponse(id RequestID, code ErrorCode, message string, data interface{}) (*Message, error) {
	dataJSON, err := marshalOptional(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal error data: %w", err)
	}

	return &Message{
		JSONRPC: JSONRPCVersion,
		ID:      &id,
		Error: &Error{
			Code:    code,
			Message: message,
			Data:    dataJSON,
		},
	}, nil
}

// Error represents a JSON-RPC 2.0 error object
type Error struct {
	Code    ErrorCode       `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error: code = %d desc = %s", e.Code, e.Message)
}

// DecodeMessage parses one JSON-RPC message and rejects anything that is not a
// well-formed 2.0 request, response or notification.
func DecodeMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode message: %w", err)
	}
	if msg.JSONRPC != JSONRPCVersion {
		return nil, fmt.Errorf("unsupported jsonrpc version %q", msg.JSONRPC)
	}
	if msg.Kind() == KindInvalid {
		return nil, fmt.Errorf("message is neither a request, a response nor a notification")
	}
	if msg.Result != nil && msg.Error != nil {
		return nil, fmt.Errorf("response carries both result and error")
	}
	return &msg, nil
}

// Encode serializes a message for the wire
func Encode(msg *Message) ([]byte, error) {
	if msg.JSONRPC == "" {
		msg.JSONRPC = JSONRPCVersion
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return data, nil
}

// UnmarshalParams decodes raw params or result into v. Empty input leaves v untouched.
func UnmarshalParams(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func marshalOptional(v interface{}) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(v)
}

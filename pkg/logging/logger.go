// Package logging provides structured logging for the MCP client.
// Entries carry the component, JSON-RPC method and message id they concern;
// text output folds those into a header and JSON output keeps them as keys.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	mcperrors "github.com/ajitpratap0/mcp-client-go/pkg/errors"
)

// Level represents the severity of a log message
type Level int

const (
	// DebugLevel covers per-frame and per-notification detail
	DebugLevel Level = iota - 1
	// InfoLevel is for session lifecycle events
	InfoLevel
	// WarnLevel is for protocol anomalies the session survives
	WarnLevel
	// ErrorLevel is for failures that end a call or the session
	ErrorLevel
	// OffLevel disables output
	OffLevel
)

// String returns the string representation of a log level
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	case OffLevel:
		return "OFF"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a level name such as "debug" or "WARN" to a Level
func ParseLevel(name string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return DebugLevel, nil
	case "info", "":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	case "off", "none":
		return OffLevel, nil
	default:
		return InfoLevel, fmt.Errorf("unknown log level %q", name)
	}
}

// Keys with a fixed place in the text header
const (
	KeyComponent = "component"
	KeyMethod    = "method"
	KeyID        = "id"
	KeyError     = "error"
)

// Field represents a key-value pair for structured logging
type Field struct {
	Key   string
	Value interface{}
}

// String creates a string field
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Int creates an integer field
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Int64 creates a 64-bit integer field
func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value}
}

// Float64 creates a float field
func Float64(key string, value float64) Field {
	return Field{Key: key, Value: value}
}

// Bool creates a boolean field
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// ErrorField creates an error field
func ErrorField(err error) Field {
	return Field{Key: KeyError, Value: err}
}

// Duration creates a duration field
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value}
}

// Any creates a field with any value
func Any(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Component names the part of the client that logs
func Component(name string) Field {
	return Field{Key: KeyComponent, Value: name}
}

// Method names the JSON-RPC method an entry concerns
func Method(name string) Field {
	return Field{Key: KeyMethod, Value: name}
}

// ID records a JSON-RPC message id. Pass RequestID.String() so that string
// ids stay distinguishable from numeric ones.
func ID(id string) Field {
	return Field{Key: KeyID, Value: id}
}

// Logger is the interface for structured logging
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// WithFields returns a new logger with additional fields
	WithFields(fields ...Field) Logger
	// WithError returns a new logger carrying err and, for MCP errors, its
	// code, category and the method it was raised for
	WithError(err error) Logger

	SetLevel(level Level)
	GetLevel() Level
}

// Entry represents a log entry
type Entry struct {
	Level     Level
	Message   string
	Fields    map[string]interface{}
	Timestamp time.Time
	Component string
	Method    string
	ID        string
}

// Formatter formats log entries
type Formatter interface {
	Format(entry *Entry) ([]byte, error)
}

// baseLogger is the base implementation of Logger. Loggers derived with
// WithFields share the writer lock and level of their parent.
type baseLogger struct {
	shared    *sharedState
	formatter Formatter
	fields    map[string]interface{}
}

type sharedState struct {
	mu     sync.Mutex
	level  Level
	output io.Writer
}

// New creates a new structured logger at InfoLevel
func New(output io.Writer, formatter Formatter) Logger {
	if output == nil {
		output = os.Stdout
	}
	if formatter == nil {
		formatter = NewTextFormatter()
	}

	return &baseLogger{
		shared:    &sharedState{level: InfoLevel, output: output},
		formatter: formatter,
		fields:    make(map[string]interface{}),
	}
}

// NewNop returns a logger that discards everything
func NewNop() Logger {
	l := New(io.Discard, NewTextFormatter())
	l.SetLevel(OffLevel)
	return l
}

// NewStderr returns a text logger on stderr at the given level
func NewStderr(level Level) Logger {
	l := New(os.Stderr, NewTextFormatter())
	l.SetLevel(level)
	return l
}

func (l *baseLogger) Debug(msg string, fields ...Field) {
	l.log(DebugLevel, msg, fields...)
}

func (l *baseLogger) Info(msg string, fields ...Field) {
	l.log(InfoLevel, msg, fields...)
}

func (l *baseLogger) Warn(msg string, fields ...Field) {
	l.log(WarnLevel, msg, fields...)
}

func (l *baseLogger) Error(msg string, fields ...Field) {
	l.log(ErrorLevel, msg, fields...)
}

// WithFields returns a new logger with additional fields
func (l *baseLogger) WithFields(fields ...Field) Logger {
	newFields := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		newFields[k] = v
	}
	for _, field := range fields {
		newFields[field.Key] = field.Value
	}

	return &baseLogger{
		shared:    l.shared,
		formatter: l.formatter,
		fields:    newFields,
	}
}

// WithError returns a new logger with error context
func (l *baseLogger) WithError(err error) Logger {
	fields := []Field{ErrorField(err)}

	if mcpErr, ok := mcperrors.AsMCPError(err); ok {
		fields = append(fields,
			Int("error_code", mcpErr.Code()),
			String("error_category", string(mcpErr.Category())),
		)
		if ctx := mcpErr.Context(); ctx != nil {
			if ctx.Method != "" {
				fields = append(fields, Method(ctx.Method))
			}
			if ctx.RequestID != "" {
				fields = append(fields, ID(ctx.RequestID))
			}
			if ctx.Component != "" {
				fields = append(fields, Component(ctx.Component))
			}
		}
	}

	return l.WithFields(fields...)
}

func (l *baseLogger) SetLevel(level Level) {
	l.shared.mu.Lock()
	defer l.shared.mu.Unlock()
	l.shared.level = level
}

func (l *baseLogger) GetLevel() Level {
	l.shared.mu.Lock()
	defer l.shared.mu.Unlock()
	return l.shared.level
}

func (l *baseLogger) log(level Level, msg string, fields ...Field) {
	if level < l.GetLevel() {
		return
	}

	entry := &Entry{
		Level:     level,
		Message:   msg,
		Fields:    make(map[string]interface{}, len(l.fields)+len(fields)),
		Timestamp: time.Now(),
	}
	for k, v := range l.fields {
		entry.Fields[k] = v
	}
	for _, field := range fields {
		entry.Fields[field.Key] = field.Value
	}

	entry.Component = headerValue(entry.Fields[KeyComponent])
	entry.Method = headerValue(entry.Fields[KeyMethod])
	entry.ID = headerValue(entry.Fields[KeyID])

	data, err := l.formatter.Format(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to format log entry: %v\n", err)
		return
	}

	l.shared.mu.Lock()
	defer l.shared.mu.Unlock()
	if _, err := l.shared.output.Write(data); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write log entry: %v\n", err)
	}
}

// headerValue renders string and integer header fields; anything else stays a plain field
func headerValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case int, int64:
		return fmt.Sprintf("%d", val)
	default:
		return ""
	}
}

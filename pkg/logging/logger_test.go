package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	mcperrors "github.com/ajitpratap0/mcp-client-go/pkg/errors"
)

func plainText() *TextFormatter {
	return &TextFormatter{DisableColors: true, DisableTimestamp: true}
}

// TestLogger tests the basic logger functionality
func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, NewTextFormatter())
	logger.SetLevel(DebugLevel)

	logger.Debug("Debug message", String("key", "value"))
	logger.Info("Info message", Int("count", 42))
	logger.Warn("Warning message", Bool("flag", true))
	logger.Error("Error message", ErrorField(errors.New("test error")))

	output := buf.String()

	for _, want := range []string{
		"Debug message", "Info message", "Warning message", "Error message",
		"key=value", "count=42", "flag=true", `error="test error"`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected %q in output, got %q", want, output)
		}
	}
}

// TestLogLevels tests log level filtering
func TestLogLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, NewTextFormatter())
	logger.SetLevel(WarnLevel)

	logger.Debug("Debug message")
	logger.Info("Info message")
	logger.Warn("Warning message")
	logger.Error("Error message")

	output := buf.String()

	if strings.Contains(output, "Debug message") {
		t.Error("Debug message should be filtered out")
	}
	if strings.Contains(output, "Info message") {
		t.Error("Info message should be filtered out")
	}
	if !strings.Contains(output, "Warning message") {
		t.Error("Warning message should be present")
	}
	if !strings.Contains(output, "Error message") {
		t.Error("Error message should be present")
	}
}

// TestWithFields tests field inheritance
func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, plainText()).WithFields(
		Component("client"),
		String("transport", "stdio"),
	)

	logger.Info("Session ready", String("server", "demo"))

	output := buf.String()
	if !strings.HasPrefix(output, "[INFO] client: Session ready | ") {
		t.Errorf("Expected component header, got %q", output)
	}
	if !strings.Contains(output, "server=demo transport=stdio") {
		t.Errorf("Expected sorted fields, got %q", output)
	}
	if strings.Contains(output, "component=") {
		t.Errorf("Expected component folded into header, got %q", output)
	}
}

// TestDerivedLoggersShareLevel tests that SetLevel on a parent reaches its children
func TestDerivedLoggersShareLevel(t *testing.T) {
	var buf bytes.Buffer
	parent := New(&buf, plainText())
	child := parent.WithFields(Component("client"))

	parent.SetLevel(ErrorLevel)
	child.Warn("hidden")
	if buf.Len() != 0 {
		t.Errorf("Expected child to follow parent level, got %q", buf.String())
	}

	child.SetLevel(DebugLevel)
	parent.Debug("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("Expected parent to follow child level, got %q", buf.String())
	}
}

// TestWithError tests that MCP error details become fields
func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, plainText()).WithFields(Component("dispatcher"))

	logger.WithError(mcperrors.CapabilityNotSupported("sampling/createMessage")).Warn("Rejecting request")

	output := buf.String()
	if !strings.Contains(output, "dispatcher (sampling/createMessage): Rejecting request") {
		t.Errorf("Expected method from error context in header, got %q", output)
	}
	if !strings.Contains(output, "error_code=-32601") {
		t.Errorf("Expected error_code field, got %q", output)
	}
	if !strings.Contains(output, "error_category=protocol") {
		t.Errorf("Expected error_category field, got %q", output)
	}
}

// TestWithPlainError tests that non-MCP errors only add the error field
func TestWithPlainError(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, plainText()).WithError(errors.New("pipe closed")).Error("Read failed")

	output := buf.String()
	if !strings.Contains(output, `error="pipe closed"`) {
		t.Errorf("Expected error field, got %q", output)
	}
	if strings.Contains(output, "error_code") {
		t.Errorf("Expected no error_code for a plain error, got %q", output)
	}
}

// TestJSONFormatter tests JSON output formatting
func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, NewJSONFormatter())

	logger.Info("Call finished",
		Method("tools/call"),
		ID("7"),
		Int("count", 42),
		Bool("flag", true),
	)

	var entry map[string]interface{}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("Failed to parse JSON output: %v", err)
	}

	if entry["level"] != "INFO" {
		t.Errorf("Expected level INFO, got %v", entry["level"])
	}
	if entry["message"] != "Call finished" {
		t.Errorf("Expected message 'Call finished', got %v", entry["message"])
	}
	if entry["method"] != "tools/call" {
		t.Errorf("Expected method='tools/call', got %v", entry["method"])
	}
	if entry["id"] != "7" {
		t.Errorf("Expected id='7', got %v", entry["id"])
	}
	if entry["count"] != float64(42) {
		t.Errorf("Expected count=42, got %v", entry["count"])
	}
	if entry["flag"] != true {
		t.Errorf("Expected flag=true, got %v", entry["flag"])
	}
	if _, ok := entry["timestamp"]; !ok {
		t.Error("Expected timestamp field")
	}
}

// TestFieldTypes tests different field types
func TestFieldTypes(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, NewJSONFormatter())

	logger.Info("Test fields",
		String("string", "value"),
		Int64("int64", 42),
		Float64("progress", 0.5),
		Duration("retry_in", 5*time.Second),
		Any("any", map[string]int{"a": 1, "b": 2}),
		ErrorField(errors.New("test error")),
	)

	var entry map[string]interface{}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("Failed to parse JSON output: %v", err)
	}

	if entry["string"] != "value" {
		t.Error("Expected string field")
	}
	if entry["int64"] != float64(42) {
		t.Error("Expected int64 field")
	}
	if entry["progress"] != 0.5 {
		t.Error("Expected float field")
	}
	if entry["error"] != "test error" {
		t.Error("Expected error field")
	}
	if _, ok := entry["retry_in"].(float64); !ok {
		t.Error("Expected duration as number")
	}
	if anyVal, ok := entry["any"].(map[string]interface{}); ok {
		if anyVal["a"] != float64(1) || anyVal["b"] != float64(2) {
			t.Error("Expected any field to preserve map structure")
		}
	} else {
		t.Error("Expected any field as map")
	}
}

// TestNopLogger tests that the no-op logger swallows every level
func TestNopLogger(t *testing.T) {
	logger := NewNop()
	logger.Debug("debug")
	logger.Error("error", String("key", "value"))

	if logger.GetLevel() != OffLevel {
		t.Errorf("Expected nop logger level OFF, got %v", logger.GetLevel())
	}
}

// TestParseLevel tests level name parsing
func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		want    Level
		wantErr bool
	}{
		{name: "debug", want: DebugLevel},
		{name: "INFO", want: InfoLevel},
		{name: "warning", want: WarnLevel},
		{name: " error ", want: ErrorLevel},
		{name: "off", want: OffLevel},
		{name: "", want: InfoLevel},
		{name: "verbose", want: InfoLevel, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLevel(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

// TestMethodHeader tests that method and id are shown next to the component
func TestMethodHeader(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, plainText())

	logger.WithFields(Component("client")).Warn("Dropping response",
		Method("tools/list"),
		ID("7"),
		String("reason", "unknown"),
	)

	output := buf.String()
	if !strings.Contains(output, "client (tools/list #7): Dropping response | reason=unknown") {
		t.Errorf("Expected method and id in header, got %q", output)
	}
	if strings.Contains(output, "method=") || strings.Contains(output, "id=") {
		t.Errorf("Expected header fields folded away, got %q", output)
	}
}

// TestIDWithoutMethod tests that an id stays a field when no method is known
func TestIDWithoutMethod(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, plainText()).WithFields(Component("client")).Warn("Dropping response", ID(`"abc"`))

	output := buf.String()
	if !strings.Contains(output, `client: Dropping response | id="abc"`) {
		t.Errorf("Expected id as a field, got %q", output)
	}
}

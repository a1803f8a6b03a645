package errors

import (
	"strings"
)

// ExecutionError is one failure a tool reported in its result content
type ExecutionError struct {
	Text string `json:"text"`
}

func (e ExecutionError) Error() string {
	if e.Text == "" {
		return "unknown error"
	}
	return e.Text
}

// ToolCallError is returned by CallTool when the tool reported isError
type ToolCallError struct {
	*baseError
	ToolName        string
	ExecutionErrors []ExecutionError
}

// ToolCall creates a ToolCallError. An empty list is replaced by one generic entry.
func ToolCall(toolName string, executionErrors []ExecutionError) *ToolCallError {
	if len(executionErrors) == 0 {
		executionErrors = []ExecutionError{{}}
	}

	descriptions := make([]string, len(executionErrors))
	for i, e := range executionErrors {
		descriptions[i] = e.Error()
	}

	base := newBase(CodeToolExecution, "Error executing tool:\n"+strings.Join(descriptions, "\n\n"), nil)
	base.context.Operation = toolName
	base.data = executionErrors
	return &ToolCallError{
		baseError:       base,
		ToolName:        toolName,
		ExecutionErrors: executionErrors,
	}
}

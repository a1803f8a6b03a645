package errors

import (
	"fmt"
	"strings"
)

// ValidationErrorData contains structured data for validation errors
type ValidationErrorData struct {
	Field      string      `json:"field"`
	Value      interface{} `json:"value,omitempty"`
	Expected   string      `json:"expected,omitempty"`
	Constraint string      `json:"constraint,omitempty"`
}

// ValidationError creates a generic validation error
func ValidationError(message string) MCPError {
	return NewError(CodeValidationError, message, CategoryValidation, SeverityError)
}

// ValidationErrorf creates a generic validation error with formatting
func ValidationErrorf(format string, args ...interface{}) MCPError {
	return NewErrorf(CodeValidationError, CategoryValidation, SeverityError, format, args...)
}

// InvalidParameter creates an error for a single argument that failed validation
func InvalidParameter(param string, value interface{}, constraint string) MCPError {
	return NewError(
		CodeInvalidParameter,
		fmt.Sprintf("Invalid parameter '%s': %s", param, constraint),
		CategoryValidation,
		SeverityError,
	).WithData(&ValidationErrorData{
		Field:      param,
		Value:      value,
		Constraint: constraint,
	})
}

// CombineValidationErrors combines multiple validation errors into a single error
func CombineValidationErrors(errors []MCPError) MCPError {
	if len(errors) == 0 {
		return nil
	}

	if len(errors) == 1 {
		return errors[0]
	}

	messages := make([]string, len(errors))
	errorData := make([]interface{}, len(errors))

	for i, err := range errors {
		messages[i] = err.Message()
		errorData[i] = err.Data()
	}

	return NewError(
		CodeValidationError,
		fmt.Sprintf("Multiple validation errors: %s", strings.Join(messages, "; ")),
		CategoryValidation,
		SeverityError,
	).WithData(map[string]interface{}{
		"errors": errorData,
		"count":  len(errors),
	})
}

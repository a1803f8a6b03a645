package utils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	mcperrors "github.com/ajitpratap0/mcp-client-go/pkg/errors"
)

// SchemaValidator validates JSON documents against JSON schemas, compiling each
// distinct schema once.
type SchemaValidator struct {
	mu    sync.Mutex
	cache map[string]*gojsonschema.Schema
}

// NewSchemaValidator creates an empty validator
func NewSchemaValidator() *SchemaValidator {
	return &SchemaValidator{
		cache: make(map[string]*gojsonschema.Schema),
	}
}

// Validate checks data against schema. An empty schema accepts anything.
// Violations are reported as a single validation MCPError listing every failing field.
func (v *SchemaValidator) Validate(schema, data json.RawMessage) error {
	if isEmptyJSON(schema) {
		return nil
	}

	compiled, err := v.compile(schema)
	if err != nil {
		return err
	}

	if isEmptyJSON(data) {
		data = json.RawMessage("{}")
	}

	result, err := compiled.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return mcperrors.ValidationErrorf("invalid JSON: %v", err)
	}
	if result.Valid() {
		return nil
	}

	violations := make([]mcperrors.MCPError, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		violations = append(violations, mcperrors.InvalidParameter(re.Field(), re.Value(), re.Description()))
	}
	return mcperrors.CombineValidationErrors(violations)
}

func (v *SchemaValidator) compile(schema json.RawMessage) (*gojsonschema.Schema, error) {
	key := string(schema)

	v.mu.Lock()
	defer v.mu.Unlock()

	if compiled, ok := v.cache[key]; ok {
		return compiled, nil
	}

	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	v.cache[key] = compiled
	return compiled, nil
}

func isEmptyJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// Package schemas provides JSON Schema validation for documents persisted by the progress store.
package schemas

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed progress_record.schema.json
var progressRecordSchema []byte

var (
	progressSchemaOnce sync.Once
	progressSchema     *gojsonschema.Schema
	progressSchemaErr  error
)

// ValidationError represents a schema validation error with field paths
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation error at a specific field
type FieldError struct {
	Field   string
	Message string
}

// SchemaLoadError represents errors loading or parsing the schema itself
type SchemaLoadError struct {
	Path    string
	Message string
	Cause   error
}

func (e *SchemaLoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load schema %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load schema %s: %s", e.Path, e.Message)
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("validation failed:\n")
	for i, err := range ve.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	return sb.String()
}

// ValidateProgressRecord validates a stored ProgressRecord document against
// the embedded schema. The compiled schema is cached after first use.
func ValidateProgressRecord(doc []byte) error {
	progressSchemaOnce.Do(func() {
		progressSchema, progressSchemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(progressRecordSchema))
	})
	if progressSchemaErr != nil {
		return &SchemaLoadError{
			Path:    "progress_record.schema.json",
			Message: "embedded schema failed to compile",
			Cause:   progressSchemaErr,
		}
	}
	return validateWith(progressSchema, gojsonschema.NewBytesLoader(doc))
}

func validateWith(schema *gojsonschema.Schema, document gojsonschema.JSONLoader) error {
	result, err := schema.Validate(document)
	if err != nil {
		return fmt.Errorf("failed to load document: %w", err)
	}

	if result.Valid() {
		return nil
	}

	// Build structured error
	validationErr := &ValidationError{
		Errors: make([]FieldError, 0, len(result.Errors())),
	}

	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		validationErr.Errors = append(validationErr.Errors, FieldError{
			Field:   field,
			Message: desc.Description(),
		})
	}

	return validationErr
}

// Package schemas validates project documents against the embedded JSON Schema.
package schemas

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// ProjectSchema is the JSON Schema every project document must satisfy
//
//go:embed cv_project.schema.json
var ProjectSchema string

// ValidationError lists every schema violation found in a document
type ValidationError struct {
	Schema string
	Errors []FieldError
}

// FieldError is one violation at a dotted field path
type FieldError struct {
	Field   string
	Message string
}

func (ve *ValidationError) Error() string {
	parts := make([]string, len(ve.Errors))
	for i, fe := range ve.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return fmt.Sprintf("document does not match %s: %s", ve.Schema, strings.Join(parts, "; "))
}

// SchemaLoadError means a schema itself could not be compiled
type SchemaLoadError struct {
	Schema string
	Cause  error
}

func (e *SchemaLoadError) Error() string {
	return fmt.Sprintf("invalid schema %s: %v", e.Schema, e.Cause)
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

// Validator checks documents against one compiled schema. It is safe for
// concurrent use.
type Validator struct {
	name   string
	schema *gojsonschema.Schema
}

// Compile parses schemaJSON once so documents can be checked repeatedly
func Compile(name, schemaJSON string) (*Validator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, &SchemaLoadError{Schema: name, Cause: err}
	}
	return &Validator{name: name, schema: schema}, nil
}

// Validate checks a decoded document (maps, slices and scalars as produced
// by encoding/json or a YAML decoder into any). Errors are sorted by field.
func (v *Validator) Validate(doc any) error {
	result, err := v.schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("validating against %s: %w", v.name, err)
	}
	if result.Valid() {
		return nil
	}

	ve := &ValidationError{Schema: v.name, Errors: make([]FieldError, 0, len(result.Errors()))}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		ve.Errors = append(ve.Errors, FieldError{Field: field, Message: desc.Description()})
	}
	sort.SliceStable(ve.Errors, func(i, j int) bool { return ve.Errors[i].Field < ve.Errors[j].Field })
	return ve
}

var projectValidator = sync.OnceValues(func() (*Validator, error) {
	return Compile("cv project schema", ProjectSchema)
})

// ValidateProject validates a decoded project document against ProjectSchema
func ValidateProject(doc any) error {
	v, err := projectValidator()
	if err != nil {
		return err
	}
	return v.Validate(doc)
}

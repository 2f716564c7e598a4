// Package validation checks job variables against the JSON schemas declared
// in the activity registry.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	apperrors "baws-workers/internal/common/errors"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Schema is a compiled JSON schema. Compile once per task type and reuse.
type Schema struct {
	compiled *gojsonschema.Schema
}

// Compile loads a schema given as a decoded JSON object.
func Compile(schema map[string]interface{}) (*Schema, error) {
	if len(schema) == 0 {
		return &Schema{}, nil
	}
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Schema{compiled: compiled}, nil
}

// Validate checks input. An empty schema accepts anything.
func (s *Schema) Validate(input map[string]interface{}) *ValidationResult {
	if s == nil || s.compiled == nil {
		return &ValidationResult{Valid: true}
	}
	result, err := s.compiled.Validate(gojsonschema.NewGoLoader(input))
	if err != nil {
		return &ValidationResult{Errors: []ValidationError{{
			Field:   "(root)",
			Message: err.Error(),
			Code:    "INVALID_DOCUMENT",
		}}}
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, re := range result.Errors() {
		out.Errors = append(out.Errors, toValidationError(re))
	}
	return out
}

// ValidateInput compiles schema and validates input against it.
func ValidateInput(input map[string]interface{}, schema map[string]interface{}) *ValidationResult {
	s, err := Compile(schema)
	if err != nil {
		return &ValidationResult{Errors: []ValidationError{{Field: "(schema)", Message: err.Error(), Code: "INVALID_SCHEMA"}}}
	}
	return s.Validate(input)
}

func toValidationError(re gojsonschema.ResultError) ValidationError {
	field := re.Field()
	// Missing properties are reported against their parent.
	if re.Type() == "required" {
		if prop, ok := re.Details()["property"].(string); ok {
			if field == "(root)" {
				field = prop
			} else {
				field = field + "." + prop
			}
		}
	}
	return ValidationError{
		Field:   field,
		Message: re.Description(),
		Code:    strings.ToUpper(re.Type()),
	}
}

var activityNaming = regexp.MustCompile(`^[a-z]+\.[a-z]+\.[a-z]+$`)

// ValidateActivityNaming validates activity ID follows naming convention
func ValidateActivityNaming(activityID string) error {
	if !activityNaming.MatchString(activityID) {
		return fmt.Errorf("activity ID must follow format: domain.subdomain.action (e.g., ba.document.analyze)")
	}
	return nil
}

// AsError returns nil for a valid result and otherwise a ValidationError
// naming the first offending field.
func (vr *ValidationResult) AsError() error {
	if vr.Valid {
		return nil
	}
	field := ""
	if len(vr.Errors) > 0 {
		field = vr.Errors[0].Field
	}
	return apperrors.NewValidationError(field, "Input validation failed: "+strings.Join(vr.GetErrorMessages(), "; "))
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// HasErrors checks if validation has errors for specific field
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}

// GetErrorsForField returns errors for a specific field
func (vr *ValidationResult) GetErrorsForField(field string) []ValidationError {
	var fieldErrors []ValidationError
	for _, err := range vr.Errors {
		if err.Field == field || strings.HasPrefix(err.Field, field+".") {
			fieldErrors = append(fieldErrors, err)
		}
	}
	return fieldErrors
}

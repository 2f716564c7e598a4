// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Client-caused errors: thrown as BPMN errors, never retried.
	ErrCodeValidation         ErrorCode = "VALIDATION_ERROR"
	ErrCodeUnknownAgent       ErrorCode = "UNKNOWN_AGENT"
	ErrCodeNotFound           ErrorCode = "RESOURCE_NOT_FOUND"
	ErrCodeUnsupportedFormat  ErrorCode = "UNSUPPORTED_FORMAT"
	ErrCodeParse              ErrorCode = "PARSE_ERROR"
	ErrCodeAnalysisInProgress ErrorCode = "ANALYSIS_IN_PROGRESS"

	// Technical errors: failed with retries.
	ErrCodeAgentFailure    ErrorCode = "AGENT_FAILURE"
	ErrCodeDatabase        ErrorCode = "DATABASE_ERROR"
	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTimeout         ErrorCode = "TIMEOUT_ERROR"
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// Is reports whether target is a StandardError with the same code, so the
// exported sentinels below work with errors.Is.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is checks. Never returned directly.
var (
	ErrValidation         = &StandardError{Code: ErrCodeValidation}
	ErrUnknownAgent       = &StandardError{Code: ErrCodeUnknownAgent}
	ErrNotFound           = &StandardError{Code: ErrCodeNotFound}
	ErrUnsupportedFormat  = &StandardError{Code: ErrCodeUnsupportedFormat}
	ErrParse              = &StandardError{Code: ErrCodeParse}
	ErrAgentFailure       = &StandardError{Code: ErrCodeAgentFailure}
	ErrAnalysisInProgress = &StandardError{Code: ErrCodeAnalysisInProgress}
	ErrDatabase           = &StandardError{Code: ErrCodeDatabase}
)

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewValidationError reports malformed input. field names the offending input.
func NewValidationError(field, message string) *StandardError {
	e := newError(ErrCodeValidation, message, "", false, nil)
	if field != "" {
		e.Metadata = map[string]interface{}{"field": field}
	}
	return e
}

// NewUnknownAgentError reports an agent id outside the known persona set.
func NewUnknownAgentError(agentID string) *StandardError {
	return newError(ErrCodeUnknownAgent, "Unknown agent", fmt.Sprintf("agentId: %s", agentID), false, nil)
}

// NewNotFoundError reports a missing file or row.
func NewNotFoundError(resource, details string) *StandardError {
	return newError(ErrCodeNotFound, fmt.Sprintf("%s not found", resource), details, false, nil)
}

// NewUnsupportedFormatError reports a file type the parser cannot read.
func NewUnsupportedFormatError(ext string) *StandardError {
	return newError(ErrCodeUnsupportedFormat, "Unsupported file format", fmt.Sprintf("extension: %s", ext), false, nil)
}

// NewParseError wraps an extraction failure from a document library.
func NewParseError(filename string, err error) *StandardError {
	return newError(ErrCodeParse, "Document could not be parsed", fmt.Sprintf("file: %s, error: %v", filename, err), false, err)
}

// NewAgentFailureError wraps a failed chat or completion call.
func NewAgentFailureError(err error) *StandardError {
	return newError(ErrCodeAgentFailure, "Agent call failed", err.Error(), true, err)
}

// NewAnalysisInProgressError reports a run already holding the lock for a document.
func NewAnalysisInProgressError(documentID int64) *StandardError {
	return newError(ErrCodeAnalysisInProgress, "Analysis already running for document", fmt.Sprintf("documentId: %d", documentID), false, nil)
}

// NewDatabaseError wraps a store failure.
func NewDatabaseError(operation string, err error) *StandardError {
	return newError(ErrCodeDatabase, "Database operation failed", fmt.Sprintf("operation: %s, error: %v", operation, err), true, err)
}

func NewExternalServiceError(service string, err error) *StandardError {
	return newError(ErrCodeExternalService, fmt.Sprintf("External service '%s' error", service), err.Error(), true, err)
}

func NewTimeoutError(service string, err error) *StandardError {
	return newError(ErrCodeTimeout, fmt.Sprintf("Service '%s' timeout", service), err.Error(), true, err)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the recommended retry count for an error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabase, ErrCodeExternalService:
		return 3
	case ErrCodeAgentFailure, ErrCodeTimeout:
		return 2
	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	if field, ok := stdErr.Metadata["field"]; ok {
		vars["errorField"] = field
	}

	return &BPMNError{
		Code:           string(stdErr.Code),
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeValidation, ErrCodeUnknownAgent, ErrCodeNotFound:
		return "VALIDATION"
	case ErrCodeUnsupportedFormat, ErrCodeParse:
		return "DOCUMENT"
	case ErrCodeAgentFailure:
		return "AI"
	case ErrCodeDatabase, ErrCodeAnalysisInProgress:
		return "DATABASE"
	case ErrCodeExternalService, ErrCodeTimeout:
		return "INTEGRATION"
	default:
		return "OTHER"
	}
}

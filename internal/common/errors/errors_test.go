package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinelMatching(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		want     bool
	}{
		{"validation", NewValidationError("content", "content is required"), ErrValidation, true},
		{"wrapped validation", fmt.Errorf("normalize: %w", NewValidationError("content", "bad")), ErrValidation, true},
		{"unknown agent", NewUnknownAgentError("zed"), ErrUnknownAgent, true},
		{"not found is not validation", NewNotFoundError("Document", "id=3"), ErrValidation, false},
		{"agent failure", NewAgentFailureError(stderrors.New("quota")), ErrAgentFailure, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stderrors.Is(tt.err, tt.sentinel))
		})
	}
}

func TestAgentFailureUnwrapsCause(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := NewAgentFailureError(cause)

	assert.True(t, stderrors.Is(err, cause))
	assert.Contains(t, err.Error(), "connection reset")
}

func TestNormalize(t *testing.T) {
	t.Run("standard error passes through", func(t *testing.T) {
		orig := NewParseError("a.pdf", stderrors.New("bad xref"))
		assert.Same(t, orig, Normalize(fmt.Errorf("wrap: %w", orig)))
	})

	t.Run("deadline becomes timeout", func(t *testing.T) {
		got := Normalize(fmt.Errorf("call: %w", context.DeadlineExceeded))
		assert.Equal(t, ErrCodeTimeout, got.Code)
		assert.True(t, got.Retryable)
	})

	t.Run("plain error becomes internal", func(t *testing.T) {
		got := Normalize(stderrors.New("boom"))
		assert.Equal(t, ErrCodeInternal, got.Code)
		assert.False(t, got.Retryable)
	})
}

func TestConvertToBPMNError(t *testing.T) {
	bpmn := ConvertToBPMNError(NewValidationError("content.parts", "content.parts must be an array of strings"))
	require.NotNil(t, bpmn)

	assert.Equal(t, "VALIDATION_ERROR", bpmn.Code)
	assert.Equal(t, 0, bpmn.Retries)
	vars := bpmn.ToErrorVariables()
	assert.Equal(t, "content.parts", vars["errorField"])
	assert.Equal(t, "VALIDATION_ERROR", vars["originalErrorCode"])

	db := ConvertToBPMNError(NewDatabaseError("append turn", stderrors.New("conn refused")))
	assert.Equal(t, 3, db.Retries)
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeUnknownAgent))
	assert.Equal(t, "DOCUMENT", GetErrorCategory(ErrCodeParse))
	assert.Equal(t, "AI", GetErrorCategory(ErrCodeAgentFailure))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeInternal))
	assert.False(t, IsRetryableErrorCode(ErrCodeValidation))
	assert.True(t, IsRetryableErrorCode(ErrCodeTimeout))
}

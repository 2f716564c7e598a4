// Package content turns raw user message payloads into prompt-ready text
// and recognises requests to export a reply as a file.
package content

import (
	"fmt"
	"strings"

	apperrors "baws-workers/internal/common/errors"
)

const (
	MaxParts            = 50
	MaxNormalizedLength = 50000
)

// Normalize accepts a decoded JSON value: either a string or an object
// {content_type: "text", parts: [string, ...]}. The result is trimmed and
// capped at MaxNormalizedLength characters.
func Normalize(raw interface{}) (string, error) {
	switch v := raw.(type) {
	case nil:
		return "", apperrors.NewValidationError("content", "content is required")
	case string:
		return truncate(strings.TrimSpace(v)), nil
	case map[string]interface{}:
		return normalizeStructured(v)
	default:
		return "", apperrors.NewValidationError("content", "content must be a string or an object { content_type, parts }")
	}
}

func normalizeStructured(v map[string]interface{}) (string, error) {
	if ct, _ := v["content_type"].(string); ct != "text" {
		return "", apperrors.NewValidationError("content.content_type",
			`content.content_type must be "text". Other types may be supported later.`)
	}

	var raw []interface{}
	switch p := v["parts"].(type) {
	case []interface{}:
		raw = p
	case []string:
		raw = make([]interface{}, len(p))
		for i, s := range p {
			raw[i] = s
		}
	default:
		return "", apperrors.NewValidationError("content.parts", "content.parts must be an array of strings")
	}
	if len(raw) > MaxParts {
		return "", apperrors.NewValidationError("content.parts",
			fmt.Sprintf("content.parts must have at most %d items", MaxParts))
	}

	parts := make([]string, 0, len(raw))
	for i, p := range raw {
		s, ok := p.(string)
		if !ok {
			field := fmt.Sprintf("content.parts[%d]", i)
			return "", apperrors.NewValidationError(field, field+" must be a string")
		}
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return truncate(strings.Join(parts, "\n\n")), nil
}

func truncate(s string) string {
	if len(s) <= MaxNormalizedLength {
		return s
	}
	r := []rune(s)
	if len(r) <= MaxNormalizedLength {
		return s
	}
	return string(r[:MaxNormalizedLength])
}

// Package export turns Markdown replies into downloadable office files and
// stores them under the project's documents folder.
package export

import (
	"strings"

	apperrors "baws-workers/internal/common/errors"
	"baws-workers/internal/models"
)

var mimeTypes = map[models.ExportFormat]string{
	models.FormatDOCX:     "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	models.FormatXLSX:     "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	models.FormatMarkdown: "text/markdown",
}

// ParseFormat trims and lower-cases format and rejects anything that
// cannot be converted.
func ParseFormat(format string) (models.ExportFormat, error) {
	f := models.ExportFormat(strings.ToLower(strings.TrimSpace(format)))
	if !f.Convertible() {
		return "", apperrors.NewValidationError("format",
			"Unsupported format: "+string(f)+". Allowed: docx, xlsx, md")
	}
	return f, nil
}

// MIMEType returns the content type served for a converted file.
func MIMEType(f models.ExportFormat) string {
	return mimeTypes[f]
}

// Convert renders markdown in the requested format.
func Convert(markdown, format string) ([]byte, error) {
	f, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}
	switch f {
	case models.FormatMarkdown:
		return []byte(markdown), nil
	case models.FormatDOCX:
		return encodeDOCX(ParseMarkdown(markdown))
	default:
		return encodeXLSX(ParseMarkdown(markdown), markdown)
	}
}

package models

type ExportFormat string

const (
	FormatDOCX     ExportFormat = "docx"
	FormatXLSX     ExportFormat = "xlsx"
	FormatMarkdown ExportFormat = "md"
	// FormatPDF can be requested in chat but has no converter.
	FormatPDF ExportFormat = "pdf"
)

// Convertible reports whether the export converter can produce f.
func (f ExportFormat) Convertible() bool {
	switch f {
	case FormatDOCX, FormatXLSX, FormatMarkdown:
		return true
	}
	return false
}

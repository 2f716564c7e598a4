package content

import (
	"regexp"
	"strings"

	"baws-workers/internal/models"
)

type formatRule struct {
	pattern *regexp.Regexp
	format  models.ExportFormat
}

// Word boundaries are Unicode-aware so that Vietnamese letters count as
// word characters.
const (
	wordStart = `(?:^|[^\p{L}\p{N}_])`
	wordEnd   = `(?:$|[^\p{L}\p{N}_])`
)

func word(alternatives string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + wordStart + `(?:` + alternatives + `)` + wordEnd)
}

// Checked in order; any match means the user asked for a file.
var exportIntentRules = []*regexp.Regexp{
	regexp.MustCompile(`(?i)xuất\s*(ra|file|cho)?`),
	regexp.MustCompile(`(?i)export`),
	regexp.MustCompile(`(?i)tải\s*(về|file)?`),
	regexp.MustCompile(`(?i)cho\s*tôi\s*file`),
	regexp.MustCompile(`(?i)download`),
	regexp.MustCompile(`(?i)lưu\s*(ra|thành)\s*file`),
}

// First match wins.
var formatRules = []formatRule{
	{word(`word|docx|doc\s*file`), models.FormatDOCX},
	{word(`excel|xlsx`), models.FormatXLSX},
	{word(`pdf`), models.FormatPDF},
	{word(`markdown|md`), models.FormatMarkdown},
}

// DetectExportFormat returns the requested format and true when text both
// asks for an export and names a format.
func DetectExportFormat(text string) (models.ExportFormat, bool) {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return "", false
	}

	intent := false
	for _, re := range exportIntentRules {
		if re.MatchString(text) {
			intent = true
			break
		}
	}
	if !intent {
		return "", false
	}

	for _, r := range formatRules {
		if r.pattern.MatchString(text) {
			return r.format, true
		}
	}
	return "", false
}

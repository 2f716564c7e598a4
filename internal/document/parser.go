// Package document extracts plain text from uploaded PDF, Word and text files.
package document

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	apperrors "baws-workers/internal/common/errors"
	"baws-workers/internal/models"
)

// AllowedExtensions are the lower-cased suffixes Parse accepts.
var AllowedExtensions = []string{".pdf", ".docx", ".doc", ".txt"}

// Parse reads the file at path and returns its text and metadata.
func Parse(path string) (string, *models.DocumentMetadata, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil, apperrors.NewNotFoundError("File", path)
		}
		return "", nil, apperrors.NewParseError(filepath.Base(path), err)
	}
	if info.IsDir() {
		return "", nil, apperrors.NewNotFoundError("File", path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if !allowed(ext) {
		return "", nil, apperrors.NewUnsupportedFormatError(ext)
	}

	meta := &models.DocumentMetadata{
		Filename: filepath.Base(path),
		Type:     strings.TrimPrefix(ext, "."),
		Size:     info.Size(),
	}

	var text string
	switch ext {
	case ".pdf":
		var pages int
		text, pages, err = readPDF(path)
		meta.PageCount = &pages
	case ".docx", ".doc":
		var paragraphs []string
		paragraphs, err = readWordParagraphs(path)
		n := len(paragraphs)
		meta.ParagraphCount = &n
		text = strings.Join(paragraphs, "\n")
	case ".txt":
		text, err = readText(path)
	}
	if err != nil {
		return "", nil, apperrors.NewParseError(meta.Filename, err)
	}
	return text, meta, nil
}

func allowed(ext string) bool {
	for _, e := range AllowedExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

func readPDF(path string) (string, int, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	n := r.NumPage()
	pages := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return "", 0, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return strings.Join(pages, "\n"), n, nil
}

const wordNS = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

// readWordParagraphs returns the text of each top-level body paragraph.
// Paragraphs inside tables are skipped.
func readWordParagraphs(path string) ([]string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return nil, errors.New("word/document.xml not found")
	}

	rc, err := doc.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return decodeParagraphs(rc)
}

func decodeParagraphs(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)
	var (
		paragraphs []string
		current    strings.Builder
		inPara     bool
		inText     bool
		tableDepth int
		nested     int
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return paragraphs, nil
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != wordNS {
				continue
			}
			switch t.Name.Local {
			case "tbl":
				tableDepth++
			case "p":
				switch {
				case inPara:
					nested++
				case tableDepth == 0:
					inPara = true
					current.Reset()
				}
			case "t":
				inText = inPara && nested == 0
			case "tab":
				if inPara {
					current.WriteByte('\t')
				}
			case "br", "cr":
				if inPara {
					current.WriteByte('\n')
				}
			}
		case xml.EndElement:
			if t.Name.Space != wordNS {
				continue
			}
			switch t.Name.Local {
			case "tbl":
				tableDepth--
			case "p":
				switch {
				case nested > 0:
					nested--
				case inPara:
					paragraphs = append(paragraphs, current.String())
					inPara = false
				}
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
}

// readText decodes UTF-8, replacing invalid sequences with U+FFFD.
func readText(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.Grow(len(raw))
	// Ranging over a string yields utf8.RuneError for each invalid byte.
	for _, r := range string(raw) {
		b.WriteRune(r)
	}
	return b.String(), nil
}

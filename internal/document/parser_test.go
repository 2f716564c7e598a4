package document

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "baws-workers/internal/common/errors"
)

const docxBody = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Project </w:t></w:r><w:r><w:t>Scope</w:t></w:r></w:p>
    <w:p/>
    <w:tbl><w:tr><w:tc><w:p><w:r><w:t>cell</w:t></w:r></w:p></w:tc></w:tr></w:tbl>
    <w:p><w:r><w:t>a</w:t><w:tab/><w:t>b</w:t></w:r></w:p>
    <w:sectPr/>
  </w:body>
</w:document>`

func writeDocx(t *testing.T, dir, name, documentXML string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

// writePDF builds a minimal PDF with one text page per entry in pages.
func writePDF(t *testing.T, dir, name string, pages ...string) string {
	t.Helper()
	const fontObj = 3
	var objects []string
	objects = append(objects, "<< /Type /Catalog /Pages 2 0 R >>")

	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	objects = append(objects,
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	)
	for i, text := range pages {
		stream := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 %d 0 R >> >> /Contents %d 0 R >>", fontObj, 5+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

func TestParsePDFJoinsPages(t *testing.T) {
	path := writePDF(t, t.TempDir(), "brief.pdf", "p1", "p2")

	text, meta, err := Parse(path)
	require.NoError(t, err)
	assert.Equal(t, "p1\np2", text)
	assert.Equal(t, "pdf", meta.Type)
	require.NotNil(t, meta.PageCount)
	assert.Equal(t, 2, *meta.PageCount)
	assert.Nil(t, meta.ParagraphCount)
}

func TestParseDocx(t *testing.T) {
	path := writeDocx(t, t.TempDir(), "brief.docx", docxBody)

	text, meta, err := Parse(path)
	require.NoError(t, err)

	assert.Equal(t, "Project Scope\n\na\tb", text)
	assert.Equal(t, "brief.docx", meta.Filename)
	assert.Equal(t, "docx", meta.Type)
	require.NotNil(t, meta.ParagraphCount)
	assert.Equal(t, 3, *meta.ParagraphCount)
	assert.Nil(t, meta.PageCount)
}

func TestParseUppercaseExtension(t *testing.T) {
	path := writeDocx(t, t.TempDir(), "BRIEF.DOCX", docxBody)

	_, meta, err := Parse(path)
	require.NoError(t, err)
	assert.Equal(t, "docx", meta.Type)
}

func TestParseTxtReplacesInvalidBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("ok\xffend"), 0o600))

	text, meta, err := Parse(path)
	require.NoError(t, err)
	assert.Equal(t, "ok�end", text)
	assert.Equal(t, "txt", meta.Type)
	assert.Nil(t, meta.PageCount)
	assert.Nil(t, meta.ParagraphCount)
}

func TestParseErrors(t *testing.T) {
	dir := t.TempDir()

	_, _, err := Parse(filepath.Join(dir, "missing.pdf"))
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	xls := filepath.Join(dir, "sheet.xls")
	require.NoError(t, os.WriteFile(xls, []byte("x"), 0o600))
	_, _, err = Parse(xls)
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedFormat)

	legacy := filepath.Join(dir, "old.doc")
	require.NoError(t, os.WriteFile(legacy, []byte("\xd0\xcf\x11\xe0 binary"), 0o600))
	_, _, err = Parse(legacy)
	assert.ErrorIs(t, err, apperrors.ErrParse)

	broken := filepath.Join(dir, "broken.pdf")
	require.NoError(t, os.WriteFile(broken, []byte("not a pdf"), 0o600))
	_, _, err = Parse(broken)
	assert.ErrorIs(t, err, apperrors.ErrParse)

	noBody := writeDocx(t, dir, "empty.docx", "")
	_, _, err = Parse(noBody)
	require.NoError(t, err, "an empty document part has no paragraphs")
}

func TestDecodeParagraphsSkipsTextBoxes(t *testing.T) {
	xmlDoc := `<w:document xmlns:w="` + wordNS + `"><w:body>
<w:p><w:r><w:t>outer</w:t><w:txbxContent><w:p><w:r><w:t>inner</w:t></w:r></w:p></w:txbxContent></w:r></w:p>
</w:body></w:document>`

	paras, err := decodeParagraphs(strings.NewReader(xmlDoc))
	require.NoError(t, err)
	assert.Equal(t, []string{"outer"}, paras)
}

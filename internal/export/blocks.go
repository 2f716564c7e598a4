package export

import (
	"regexp"
	"strings"
)

type BlockKind int

const (
	BlockParagraph BlockKind = iota
	BlockHeading
	BlockListItem
	BlockTable
)

// Block is one structural element of a Markdown reply.
type Block struct {
	Kind BlockKind
	// Level is 0, 1 or 2 for headings.
	Level int
	Text  string
	// Rows holds table cells; the first row is the header.
	Rows [][]string
}

// Document is the line-oriented structure shared by the docx and xlsx
// encoders.
type Document struct {
	Blocks []Block
}

var (
	listItem     = regexp.MustCompile(`^[-*]\s+`)
	numberedItem = regexp.MustCompile(`^\d+\.\s+`)
	separator    = regexp.MustCompile(`^[-:\s]+$`)
)

// Tables returns the table blocks in order.
func (d *Document) Tables() []Block {
	var out []Block
	for _, b := range d.Blocks {
		if b.Kind == BlockTable {
			out = append(out, b)
		}
	}
	return out
}

// ParseMarkdown classifies each line of markdown. Blank lines are dropped.
func ParseMarkdown(markdown string) *Document {
	lines := strings.Split(markdown, "\n")
	doc := &Document{}

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		stripped := strings.TrimSpace(line)
		if stripped == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "# "):
			doc.Blocks = append(doc.Blocks, Block{Kind: BlockHeading, Level: 0, Text: strings.TrimSpace(stripped[2:])})
		case strings.HasPrefix(line, "## "):
			doc.Blocks = append(doc.Blocks, Block{Kind: BlockHeading, Level: 1, Text: strings.TrimSpace(stripped[3:])})
		case strings.HasPrefix(line, "### "):
			doc.Blocks = append(doc.Blocks, Block{Kind: BlockHeading, Level: 2, Text: strings.TrimSpace(stripped[4:])})
		case listItem.MatchString(stripped) || numberedItem.MatchString(stripped):
			doc.Blocks = append(doc.Blocks, Block{Kind: BlockListItem, Text: stripped})
		case isTableLine(stripped):
			header := splitRow(stripped)
			if isSeparatorRow(header) {
				// A table cannot start with its separator row.
				continue
			}
			rows := [][]string{header}
			for i+1 < len(lines) && strings.HasPrefix(strings.TrimSpace(lines[i+1]), "|") {
				i++
				if row := splitRow(strings.TrimSpace(lines[i])); !isSeparatorRow(row) {
					rows = append(rows, row)
				}
			}
			doc.Blocks = append(doc.Blocks, Block{Kind: BlockTable, Rows: rows})
		default:
			doc.Blocks = append(doc.Blocks, Block{Kind: BlockParagraph, Text: stripped})
		}
	}
	return doc
}

func isTableLine(stripped string) bool {
	return strings.HasPrefix(stripped, "|") && strings.Contains(stripped[1:], "|")
}

// splitRow splits on "|" and drops the segments before the first and after
// the last pipe.
func splitRow(stripped string) []string {
	parts := strings.Split(stripped, "|")
	if len(parts) < 2 {
		return nil
	}
	cells := make([]string, 0, len(parts)-2)
	for _, c := range parts[1 : len(parts)-1] {
		cells = append(cells, strings.TrimSpace(c))
	}
	return cells
}

// isSeparatorRow reports rows such as "|---|:--:|". Empty rows count as
// separators so they are never emitted.
func isSeparatorRow(cells []string) bool {
	for _, c := range cells {
		if !separator.MatchString(c) {
			return false
		}
	}
	return true
}

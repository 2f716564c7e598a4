package export

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

const (
	firstSheet   = "Sheet1"
	contentSheet = "Content"
	tableSheet   = "Table"
)

// encodeXLSX puts every table on its own worksheet with a bold header row.
// Without tables the raw lines go to column A of a "Content" sheet.
func encodeXLSX(doc *Document, markdown string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	tables := doc.Tables()
	if len(tables) == 0 {
		if err := f.SetSheetName(firstSheet, contentSheet); err != nil {
			return nil, fmt.Errorf("rename sheet: %w", err)
		}
		for i, line := range strings.Split(markdown, "\n") {
			if line == "" {
				continue
			}
			if err := f.SetCellValue(contentSheet, fmt.Sprintf("A%d", i+1), line); err != nil {
				return nil, fmt.Errorf("write content row %d: %w", i+1, err)
			}
		}
		return writeWorkbook(f)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	for n, t := range tables {
		sheet := sheetName(n)
		if n > 0 {
			if _, err := f.NewSheet(sheet); err != nil {
				return nil, fmt.Errorf("create sheet %s: %w", sheet, err)
			}
		}
		if err := writeTableSheet(f, sheet, t.Rows, bold); err != nil {
			return nil, err
		}
	}
	return writeWorkbook(f)
}

// sheetName returns Sheet1, Table, Table 2, Table 3, ...
func sheetName(n int) string {
	switch n {
	case 0:
		return firstSheet
	case 1:
		return tableSheet
	default:
		return fmt.Sprintf("%s %d", tableSheet, n)
	}
}

func writeTableSheet(f *excelize.File, sheet string, rows [][]string, headerStyle int) error {
	for r, row := range rows {
		for c, val := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, val); err != nil {
				return fmt.Errorf("write %s!%s: %w", sheet, cell, err)
			}
		}
	}

	if header := rows[0]; len(header) > 0 {
		last, err := excelize.CoordinatesToCellName(len(header), 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
			return fmt.Errorf("style header of %s: %w", sheet, err)
		}
	}
	return nil
}

func writeWorkbook(f *excelize.File) ([]byte, error) {
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

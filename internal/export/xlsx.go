package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/zombor/doc-digitizer/internal/document"
)

const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// pixelsPerChar approximates how many pixels one Excel width unit covers
const pixelsPerChar = 7

// WriteXLSX writes the items as a single-sheet workbook with the same column
// order and labels as the CSV export
func WriteXLSX(w io.Writer, items []document.Item, columns []document.Column, sheet string) error {
	f := excelize.NewFile()
	defer f.Close()

	if sheet == "" {
		sheet = "Sheet1"
	}
	if sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			return fmt.Errorf("naming sheet: %w", err)
		}
	}

	for i, col := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStr(sheet, cell, col.Label); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}

		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if col.MinWidth > 0 {
			if err := f.SetColWidth(sheet, name, name, float64(col.MinWidth)/pixelsPerChar); err != nil {
				return fmt.Errorf("sizing column: %w", err)
			}
		}
	}

	for r, item := range items {
		for c, col := range columns {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			// Values stay text so part numbers like "007" keep their zeros
			if err := f.SetCellStr(sheet, cell, item.Get(col.Key)); err != nil {
				return fmt.Errorf("writing row %d: %w", r+1, err)
			}
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing xlsx: %w", err)
	}
	return nil
}

// XLSXFilename returns the download name, e.g. BOM_Export_2024-01-15.xlsx
func XLSXFilename(docType document.Type, t time.Time) string {
	return filename(docType, t, "xlsx")
}

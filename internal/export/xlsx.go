package export

import (
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"invoiceocr/internal/domain"
)

const sheetName = "Invoices"

// numericColumns are written as numbers so spreadsheet formulas work on them.
var numericColumns = map[int]bool{0: true, 8: true, 9: true, 10: true, 12: true, 14: true, 15: true, 16: true}

// WriteXLSX writes a single-sheet workbook with the same layout as WriteCSV.
func WriteXLSX(w io.Writer, details []domain.DocumentDetail) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("export.WriteXLSX: %w", err)
	}

	if err := f.SetSheetRow(sheetName, "A1", &columns); err != nil {
		return fmt.Errorf("export.WriteXLSX header: %w", err)
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		last, _ := excelize.CoordinatesToCellName(len(columns), 1)
		_ = f.SetCellStyle(sheetName, "A1", last, style)
	}

	row := 2
	for i := range details {
		for _, r := range rows(&details[i]) {
			values := make([]interface{}, len(r))
			for col, v := range r {
				values[col] = cellValue(col, v)
			}
			cell, _ := excelize.CoordinatesToCellName(1, row)
			if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
				return fmt.Errorf("export.WriteXLSX row %d: %w", row, err)
			}
			row++
		}
	}

	_ = f.SetColWidth(sheetName, "B", "B", 28)
	_ = f.SetColWidth(sheetName, "C", "C", 22)
	_ = f.SetColWidth(sheetName, "H", "H", 28)
	_ = f.SetColWidth(sheetName, "N", "N", 40)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("export.WriteXLSX write: %w", err)
	}
	return nil
}

func cellValue(col int, v string) interface{} {
	if v == "" || !numericColumns[col] {
		return v
	}
	if n, err := strconv.ParseFloat(v, 64); err == nil {
		return n
	}
	return v
}

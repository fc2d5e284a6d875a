package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"invoiceocr/internal/domain"
)

// BOM is the UTF-8 byte order mark Excel on Windows needs to detect UTF-8.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// WriteCSV writes a BOM, the header row, and one row per line item.
func WriteCSV(w io.Writer, details []domain.DocumentDetail) error {
	if _, err := w.Write(BOM); err != nil {
		return fmt.Errorf("export.WriteCSV: %w", err)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("export.WriteCSV header: %w", err)
	}
	for i := range details {
		if err := cw.WriteAll(rows(&details[i])); err != nil {
			return fmt.Errorf("export.WriteCSV document %d: %w", details[i].ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

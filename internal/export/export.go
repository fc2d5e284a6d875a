// Package export renders stored documents and their line items as CSV or
// XLSX, one row per line item.
package export

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"invoiceocr/internal/domain"
)

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat validates a requested format. Empty means CSV.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatCSV, nil
	case FormatCSV, FormatXLSX:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Write renders details in format f to w.
func Write(w io.Writer, f Format, details []domain.DocumentDetail) error {
	switch f {
	case FormatXLSX:
		return WriteXLSX(w, details)
	default:
		return WriteCSV(w, details)
	}
}

// columns defines the header row shared by both formats.
var columns = []string{
	"Document ID",
	"Filename",
	"Upload Date",
	"Processing Status",
	"Invoice Number",
	"Invoice Date",
	"Due Date",
	"Vendor Name",
	"Subtotal",
	"Tax",
	"Total",
	"Currency",
	"Line",
	"Description",
	"Quantity",
	"Unit Price",
	"Line Total",
}

// Columns returns the header names in order.
func Columns() []string {
	out := make([]string, len(columns))
	copy(out, columns)
	return out
}

// rows flattens a document into one row per line item. A document without
// line items still yields one row with the item columns blank.
func rows(d *domain.DocumentDetail) [][]string {
	header := []string{
		strconv.FormatInt(d.ID, 10),
		d.Filename,
		d.UploadDate.UTC().Format(time.RFC3339),
		string(d.ProcessingStatus),
		str(d.InvoiceNumber),
		str(d.Date),
		str(d.DueDate),
		str(d.VendorName),
		money(d.Subtotal),
		money(d.TaxAmount),
		money(d.TotalAmount),
		str(d.Currency),
	}

	if len(d.LineItems) == 0 {
		row := append(append([]string{}, header...), "", "", "", "", "")
		return [][]string{row}
	}

	out := make([][]string, 0, len(d.LineItems))
	for i, li := range d.LineItems {
		row := append(append([]string{}, header...),
			strconv.Itoa(i+1),
			str(li.Description),
			number(li.Quantity),
			money(li.UnitPrice),
			money(li.LineTotal),
		)
		out = append(out, row)
	}
	return out
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func money(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

func number(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// nonAlphanumeric matches characters that are not alphanumeric, hyphen, or underscore.
var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// multiUnderscore matches consecutive underscores.
var multiUnderscore = regexp.MustCompile(`_{2,}`)

// SanitizeFilename cleans a name for use in Content-Disposition.
func SanitizeFilename(name string) string {
	s := nonAlphanumeric.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

// BuildFilename returns {prefix}_{YYYY-MM-DD}.{ext} for Content-Disposition.
func BuildFilename(prefix string, f Format, now time.Time) string {
	return fmt.Sprintf("%s_%s.%s", SanitizeFilename(prefix), now.Format("2006-01-02"), f)
}

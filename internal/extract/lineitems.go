package extract

import (
	"fmt"
	"math"
	"unicode/utf8"

	"go.uber.org/zap"

	"invoiceocr/internal/domain"
)

// Positional columns of a line-item row. Columns past colLineTotal are ignored.
const (
	colDescription = iota
	colQuantity
	colUnitPrice
	colLineTotal
)

// RowResult records what happened to one table row.
type RowResult struct {
	Index   int      `json:"index"`
	Cells   []string `json:"cells"`
	Skipped bool     `json:"skipped"`
	Reason  string   `json:"reason,omitempty"`
}

// NormalizeReport aggregates per-row results so callers can inspect which
// rows were dropped and why.
type NormalizeReport struct {
	Rows []RowResult `json:"rows"`
}

// Accepted returns the number of rows that produced a line item.
func (r NormalizeReport) Accepted() int {
	n := 0
	for _, row := range r.Rows {
		if !row.Skipped {
			n++
		}
	}
	return n
}

// Skipped returns the results of rows that were dropped.
func (r NormalizeReport) Skipped() []RowResult {
	var out []RowResult
	for _, row := range r.Rows {
		if row.Skipped {
			out = append(out, row)
		}
	}
	return out
}

// Normalizer maps reconstructed table rows onto line items.
type Normalizer struct {
	logger *zap.Logger
}

// NewNormalizer creates a Normalizer. A nil logger disables row warnings.
func NewNormalizer(logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{logger: logger}
}

// NormalizeLineItems normalizes t without logging.
func NormalizeLineItems(t Table) ([]domain.LineItem, NormalizeReport) {
	return NewNormalizer(nil).Normalize(t)
}

// Normalize maps each row positionally: description, quantity, unit price,
// line total. A cell that is not a number leaves its field nil. A row that
// cannot be normalized is skipped and recorded in the report; the remaining
// rows are still processed.
func (n *Normalizer) Normalize(t Table) ([]domain.LineItem, NormalizeReport) {
	items := make([]domain.LineItem, 0, t.Len())
	report := NormalizeReport{Rows: make([]RowResult, 0, t.Len())}

	for i, cells := range t.Rows {
		res := RowResult{Index: i, Cells: cells}
		item, err := normalizeRow(cells)
		if err != nil {
			res.Skipped = true
			res.Reason = err.Error()
			n.logger.Warn("skipping line item row",
				zap.Int("row", i),
				zap.Strings("cells", cells),
				zap.Error(err),
			)
			report.Rows = append(report.Rows, res)
			continue
		}
		items = append(items, item)
		report.Rows = append(report.Rows, res)
	}
	return items, report
}

func normalizeRow(cells []string) (domain.LineItem, error) {
	var item domain.LineItem
	for _, c := range cells {
		if !utf8.ValidString(c) {
			return item, ErrInvalidEncoding
		}
	}

	if len(cells) > colDescription {
		item.Description = domain.StringPtr(cells[colDescription])
	}

	var err error
	if item.Quantity, err = numericCell(cells, colQuantity); err != nil {
		return item, fmt.Errorf("quantity: %w", err)
	}
	if item.UnitPrice, err = numericCell(cells, colUnitPrice); err != nil {
		return item, fmt.Errorf("unit_price: %w", err)
	}
	if item.LineTotal, err = numericCell(cells, colLineTotal); err != nil {
		return item, fmt.Errorf("line_total: %w", err)
	}

	item.DeriveTotal()
	if item.LineTotal != nil && math.IsInf(*item.LineTotal, 0) {
		return item, fmt.Errorf("line_total: %w", ErrValueOutOfRange)
	}
	return item, nil
}

func numericCell(cells []string, col int) (*float64, error) {
	if col >= len(cells) {
		return nil, nil
	}
	return parseNumber(cells[col])
}

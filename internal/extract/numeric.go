package extract

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrValueOutOfRange marks a numeric cell that is syntactically valid but
	// does not fit in a float64.
	ErrValueOutOfRange = errors.New("numeric value out of range")
	// ErrInvalidEncoding marks a cell that is not valid UTF-8.
	ErrInvalidEncoding = errors.New("cell is not valid UTF-8")
)

var reDecimal = regexp.MustCompile(`^[+-]?(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?$`)

// ParseAmount converts an OCR'd money or quantity string to a float64.
// Thousands separators and a leading currency symbol are ignored. It reports
// false for anything that is not a plain finite decimal.
func ParseAmount(s string) (float64, bool) {
	v, err := parseNumber(s)
	if err != nil || v == nil {
		return 0, false
	}
	return *v, true
}

// parseNumber returns nil (and no error) for cells that are not numbers, and
// ErrValueOutOfRange for numbers that overflow.
func parseNumber(cell string) (*float64, error) {
	s := strings.TrimSpace(cell)
	s = strings.TrimLeft(s, "$€£¥₹")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" || !reDecimal.MatchString(s) {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return nil, ErrValueOutOfRange
		}
		return nil, nil
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil, ErrValueOutOfRange
	}
	return &v, nil
}

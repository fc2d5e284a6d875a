package extract

import (
	"fmt"
	"regexp"
	"strings"
)

// SplitMode selects how a line is cut into cells.
type SplitMode string

const (
	// SplitAuto uses SplitGap when any line of the block has an interior
	// wide gap and SplitWhitespace otherwise. The choice is made once per
	// block so every row is cut by the same rule.
	SplitAuto SplitMode = "auto"
	// SplitWhitespace cuts on every run of one or more whitespace characters.
	SplitWhitespace SplitMode = "whitespace"
	// SplitGap cuts on runs of two or more spaces or on any tab, so single
	// spaces stay inside a cell ("Widget A").
	SplitGap SplitMode = "gap"
)

// ParseSplitMode validates a configured split mode. Empty means SplitAuto.
func ParseSplitMode(s string) (SplitMode, error) {
	switch m := SplitMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return SplitAuto, nil
	case SplitAuto, SplitWhitespace, SplitGap:
		return m, nil
	default:
		return "", fmt.Errorf("unknown table split mode %q", s)
	}
}

var (
	reWhitespaceRun = regexp.MustCompile(`\s+`)
	reGapRun        = regexp.MustCompile(`[\t ]{2,}|\t`)
	reLineBreak     = regexp.MustCompile(`\r?\n`)
)

// Table is an ordered sequence of rows of string cells. Rows may have
// different lengths; use Cell for bounds-checked access.
type Table struct {
	Rows [][]string `json:"rows"`
}

// Len returns the number of rows.
func (t Table) Len() int { return len(t.Rows) }

// Width returns the length of the longest row.
func (t Table) Width() int {
	w := 0
	for _, r := range t.Rows {
		if len(r) > w {
			w = len(r)
		}
	}
	return w
}

// Cell returns the cell at (row, col) and whether it exists.
func (t Table) Cell(row, col int) (string, bool) {
	if row < 0 || row >= len(t.Rows) || col < 0 || col >= len(t.Rows[row]) {
		return "", false
	}
	return t.Rows[row][col], true
}

// Reconstructor rebuilds a row/column grid from a block of OCR text.
type Reconstructor struct {
	Mode SplitMode
}

// ReconstructTable reconstructs block with SplitAuto.
func ReconstructTable(block string) Table {
	return Reconstructor{Mode: SplitAuto}.Reconstruct(block)
}

// Reconstruct splits block into lines and lines into cells, then drops rows
// with no content and columns that are empty in every remaining row. It
// never fails; text with no delimiters yields one cell per row.
func (r Reconstructor) Reconstruct(block string) Table {
	if strings.TrimSpace(block) == "" {
		return Table{Rows: [][]string{}}
	}

	lines := reLineBreak.Split(block, -1)
	splitter := r.splitterFor(lines)

	rows := make([][]string, 0, len(lines))
	for _, line := range lines {
		cells := splitter.Split(strings.TrimSpace(line), -1)
		for i := range cells {
			cells[i] = strings.TrimSpace(cells[i])
		}
		if isBlankRow(cells) {
			continue
		}
		rows = append(rows, cells)
	}

	return Table{Rows: dropEmptyColumns(rows)}
}

func (r Reconstructor) splitterFor(lines []string) *regexp.Regexp {
	switch r.Mode {
	case SplitWhitespace:
		return reWhitespaceRun
	case SplitGap:
		return reGapRun
	}
	for _, line := range lines {
		if reGapRun.MatchString(strings.TrimSpace(line)) {
			return reGapRun
		}
	}
	return reWhitespaceRun
}

func isBlankRow(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}

func dropEmptyColumns(rows [][]string) [][]string {
	width := 0
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}

	keep := make([]bool, width)
	dropped := 0
	for c := 0; c < width; c++ {
		for _, r := range rows {
			if c < len(r) && r[c] != "" {
				keep[c] = true
				break
			}
		}
		if !keep[c] {
			dropped++
		}
	}
	if dropped == 0 {
		return rows
	}

	out := make([][]string, len(rows))
	for i, r := range rows {
		row := make([]string, 0, len(r))
		for c, cell := range r {
			if keep[c] {
				row = append(row, cell)
			}
		}
		out[i] = row
	}
	return out
}

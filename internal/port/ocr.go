package port

import "context"

// Layout tells the OCR engine what kind of region it is reading.
type Layout int

const (
	// LayoutAuto lets the engine segment the page itself. Used for header fields.
	LayoutAuto Layout = iota
	// LayoutBlock treats the page as one uniform block of text, which keeps
	// table rows on single lines.
	LayoutBlock
)

func (l Layout) String() string {
	switch l {
	case LayoutBlock:
		return "block"
	default:
		return "auto"
	}
}

// OCRResult is the text recognized from one input.
type OCRResult struct {
	Text string
	// Confidence is in [0, 1], or nil when the engine does not report one.
	Confidence *float64
}

// OCREngine turns an image or PDF on disk into text.
type OCREngine interface {
	Recognize(ctx context.Context, path string, layout Layout) (*OCRResult, error)
}

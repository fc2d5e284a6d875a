package ocr

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"invoiceocr/internal/port"
)

// readPDFText returns the text layer of the first page. Rows come out top to
// bottom; in LayoutBlock the text runs of a row are joined with a wide gap
// so table columns survive reconstruction.
func readPDFText(path string, layout port.Layout) (res *port.OCRResult, err error) {
	// The parser panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, unreadable("ocr.readPDFText", fmt.Errorf("malformed pdf: %v", r))
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, unreadable("ocr.readPDFText open", err)
	}
	defer f.Close()

	if r.NumPage() == 0 {
		return nil, unreadable("ocr.readPDFText", fmt.Errorf("pdf has no pages"))
	}
	page := r.Page(1)
	if page.V.IsNull() {
		return nil, unreadable("ocr.readPDFText", fmt.Errorf("first page is empty"))
	}

	rows, err := page.GetTextByRow()
	if err != nil {
		return nil, unreadable("ocr.readPDFText rows", err)
	}

	sep := " "
	if layout == port.LayoutBlock {
		sep = "   "
	}

	var b strings.Builder
	for _, row := range rows {
		words := make([]string, 0, len(row.Content))
		for _, w := range row.Content {
			if s := strings.TrimSpace(w.S); s != "" {
				words = append(words, s)
			}
		}
		if len(words) == 0 {
			continue
		}
		b.WriteString(strings.Join(words, sep))
		b.WriteByte('\n')
	}

	text := b.String()
	if strings.TrimSpace(text) == "" {
		return nil, unreadable("ocr.readPDFText", fmt.Errorf("pdf has no text layer"))
	}
	return &port.OCRResult{Text: text}, nil
}

package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/heic"

	"invoiceocr/internal/port"
)

func (e *Engine) recognizeImage(ctx context.Context, path string, layout port.Layout) (*port.OCRResult, error) {
	// Decode first so a corrupt upload is reported as such rather than as
	// an opaque tesseract exit status.
	if _, err := imaging.Open(path); err != nil {
		return nil, unreadable("ocr.recognizeImage decode", err)
	}
	return e.tesseract(ctx, path, layout)
}

// recognizeHEIC converts the image to PNG because tesseract's image library
// cannot read HEIC.
func (e *Engine) recognizeHEIC(ctx context.Context, path string, layout port.Layout) (*port.OCRResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ocr.recognizeHEIC open: %w", err)
	}
	img, err := heic.Decode(f)
	_ = f.Close()
	if err != nil {
		return nil, unreadable("ocr.recognizeHEIC decode", err)
	}

	tmpDir, err := os.MkdirTemp(e.cfg.WorkDir, "heic-*")
	if err != nil {
		return nil, fmt.Errorf("ocr.recognizeHEIC temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	out := filepath.Join(tmpDir, "page.png")
	if err := imaging.Save(img, out); err != nil {
		return nil, fmt.Errorf("ocr.recognizeHEIC encode: %w", err)
	}
	return e.tesseract(ctx, out, layout)
}

func (e *Engine) baseArgs(path string, layout port.Layout) []string {
	args := []string{path, "stdout", "-l", e.cfg.Lang, "--psm", strconv.Itoa(e.psm(layout))}
	if e.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(e.cfg.OEM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	return args
}

func (e *Engine) tesseract(ctx context.Context, path string, layout port.Layout) (*port.OCRResult, error) {
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, e.baseArgs(path, layout)...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("ocr.tesseract: %w", ctx.Err())
		}
		return nil, unreadable("ocr.tesseract", fmt.Errorf("%w: %s", err, strings.TrimSpace(string(errb))))
	}

	res := &port.OCRResult{Text: string(out)}
	if e.cfg.Confidence {
		conf, err := e.tsvConfidence(ctx, path, layout)
		if err != nil {
			// Text is still usable without a confidence score.
			e.logger.Sugar().Warnw("tesseract tsv confidence failed", "path", path, "error", err)
		} else {
			res.Confidence = conf
		}
	}
	return res, nil
}

// tsvConfidence runs tesseract in TSV mode and returns the mean word
// confidence scaled to 0..1, or nil when no word carries a confidence.
func (e *Engine) tsvConfidence(ctx context.Context, path string, layout port.Layout) (*float64, error) {
	args := append(e.baseArgs(path, layout), "tsv")
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return nil, fmt.Errorf("tesseract tsv: %w: %s", err, strings.TrimSpace(string(errb)))
	}
	return meanTSVConfidence(string(out)), nil
}

func meanTSVConfidence(tsv string) *float64 {
	var sum, n float64
	for i, ln := range strings.Split(tsv, "\n") {
		if i == 0 || ln == "" {
			continue
		}
		cols := strings.Split(strings.TrimRight(ln, "\r"), "\t")
		if len(cols) < 12 {
			continue
		}
		v, err := strconv.ParseFloat(cols[10], 64)
		if err != nil || v < 0 {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return nil
	}
	mean := sum / n / 100
	if mean > 1 {
		mean = 1
	}
	return &mean
}

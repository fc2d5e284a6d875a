// Package ocr turns uploaded invoice files into text. Images go through the
// tesseract CLI; PDFs are read from their embedded text layer.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"invoiceocr/internal/config"
	"invoiceocr/internal/domain"
	"invoiceocr/internal/port"
)

// Config is the explicit OCR configuration. Zero values fall back to the
// defaults applied by New.
type Config struct {
	Tesseract   string
	Lang        string
	TessdataDir string
	HeaderPSM   int
	TablePSM    int
	OEM         int
	// Confidence enables a second tesseract pass in TSV mode to compute a
	// mean word confidence.
	Confidence bool
	Timeout    time.Duration
	// WorkDir holds intermediate files such as converted HEIC images.
	WorkDir string
}

// ConfigFrom maps application settings onto an OCR Config.
func ConfigFrom(cfg *config.OCRConfig, workDir string) Config {
	return Config{
		Tesseract:   cfg.Binary,
		Lang:        cfg.Lang,
		TessdataDir: cfg.TessdataDir,
		HeaderPSM:   cfg.HeaderPSM,
		TablePSM:    cfg.TablePSM,
		OEM:         cfg.OEM,
		Confidence:  cfg.Confidence,
		Timeout:     cfg.Timeout,
		WorkDir:     workDir,
	}
}

// Engine implements port.OCREngine.
type Engine struct {
	cfg    Config
	runner Runner
	logger *zap.Logger
}

var _ port.OCREngine = (*Engine)(nil)

// Option customizes an Engine.
type Option func(*Engine)

// WithRunner replaces the command runner.
func WithRunner(r Runner) Option {
	return func(e *Engine) { e.runner = r }
}

// New creates an Engine.
func New(cfg Config, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Lang == "" {
		cfg.Lang = "eng"
	}
	if cfg.HeaderPSM <= 0 {
		cfg.HeaderPSM = 3
	}
	if cfg.TablePSM <= 0 {
		cfg.TablePSM = 6
	}
	e := &Engine{cfg: cfg, runner: execRunner{logger: logger}, logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Recognize reads the file at path. Failures caused by the input itself
// (undecodable image, PDF without text) wrap domain.ErrInputUnreadable.
func (e *Engine) Recognize(ctx context.Context, path string, layout port.Layout) (*port.OCRResult, error) {
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	ft, ok := domain.AllowedExtensions[ext]
	if !ok {
		return nil, fmt.Errorf("ocr.Recognize: %w: %q", domain.ErrUnsupportedFileType, ext)
	}

	start := time.Now()
	var (
		res *port.OCRResult
		err error
	)
	switch ft {
	case domain.FileTypePDF:
		res, err = readPDFText(path, layout)
	case domain.FileTypeHEIC:
		res, err = e.recognizeHEIC(ctx, path, layout)
	default:
		res, err = e.recognizeImage(ctx, path, layout)
	}
	if err != nil {
		return nil, err
	}

	e.logger.Debug("ocr complete",
		zap.String("path", path),
		zap.Stringer("layout", layout),
		zap.Int("chars", len(res.Text)),
		zap.Duration("duration", time.Since(start)),
	)
	return res, nil
}

func (e *Engine) psm(layout port.Layout) int {
	if layout == port.LayoutBlock {
		return e.cfg.TablePSM
	}
	return e.cfg.HeaderPSM
}

// unreadable marks err as an input problem unless the context ran out.
func unreadable(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrInputUnreadable, err)
}

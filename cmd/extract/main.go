// Command extract runs field extraction and line-item normalization on one
// invoice without touching the database. The argument may be OCR text (.txt
// or stdin) or an image/PDF, which is first run through tesseract.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"invoiceocr/internal/config"
	"invoiceocr/internal/domain"
	"invoiceocr/internal/extract"
	"invoiceocr/internal/logging"
	"invoiceocr/internal/ocr"
	"invoiceocr/internal/port"
)

type output struct {
	Fields    extract.DocumentFields  `json:"fields"`
	LineItems []domain.LineItem       `json:"line_items"`
	Report    extract.NormalizeReport `json:"report"`
}

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	flags := config.Flags("extract")
	flags.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: extract [flags] [file|-]")
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(flags)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	split, err := extract.ParseSplitMode(cfg.Extract.TableSplit)
	if err != nil {
		return err
	}

	header, block, err := readInput(context.Background(), cfg, logger, flags.Arg(0), stdin)
	if err != nil {
		return err
	}

	normalizer := extract.NewNormalizer(logger)
	items, report := normalizer.Normalize(extract.Reconstructor{Mode: split}.Reconstruct(block))
	if items == nil {
		items = []domain.LineItem{}
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(output{
		Fields:    extract.ExtractDocumentFields(header),
		LineItems: items,
		Report:    report,
	})
}

// readInput returns the header-pass and table-pass text. Plain text input
// serves as both.
func readInput(ctx context.Context, cfg *config.Config, logger *zap.Logger, path string, stdin io.Reader) (string, string, error) {
	if path == "" || path == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(b), string(b), nil
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if _, ok := domain.AllowedExtensions[ext]; !ok {
		b, err := os.ReadFile(path)
		if err != nil {
			return "", "", err
		}
		return string(b), string(b), nil
	}

	engine := ocr.New(ocr.ConfigFrom(&cfg.OCR, os.TempDir()), logger)
	header, err := engine.Recognize(ctx, path, port.LayoutAuto)
	if err != nil {
		return "", "", err
	}
	block, err := engine.Recognize(ctx, path, port.LayoutBlock)
	if err != nil {
		return "", "", err
	}
	return header.Text, block.Text, nil
}

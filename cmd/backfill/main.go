// Command backfill re-runs the header field rules over the raw OCR text of
// every stored document and updates the fields that changed. Use it after
// the extraction rules change.
// Usage: go run ./cmd/backfill [--dry-run] [--batch-size N]
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"invoiceocr/internal/config"
	"invoiceocr/internal/logging"
	"invoiceocr/internal/repository/sqlstore"
	"invoiceocr/internal/service"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	flags := config.Flags("backfill")
	dryRun := flags.Bool("dry-run", false, "report changes without writing them")
	batchSize := flags.Int("batch-size", 100, "documents read per query")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(flags)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlstore.NewDB(ctx, &cfg.DB)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer func() { _ = db.Close() }()

	docSvc := service.NewDocumentService(sqlstore.NewDocumentRepo(db, cfg.DB.Driver), nil, 0, logger)

	start := time.Now()
	res, err := docSvc.ReextractFields(ctx, *batchSize, *dryRun)
	logger.Info("backfill finished",
		zap.Bool("dry_run", *dryRun),
		zap.Int("scanned", res.Scanned),
		zap.Int("changed", res.Changed),
		zap.Int("updated", res.Updated),
		zap.Duration("took", time.Since(start)),
	)
	return err
}

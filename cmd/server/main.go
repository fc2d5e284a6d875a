package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"invoiceocr/internal/config"
	"invoiceocr/internal/extract"
	"invoiceocr/internal/handler"
	"invoiceocr/internal/logging"
	"invoiceocr/internal/ocr"
	"invoiceocr/internal/port"
	"invoiceocr/internal/repository/sqlstore"
	"invoiceocr/internal/router"
	"invoiceocr/internal/service"
	s3storage "invoiceocr/internal/storage/s3"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	flags := config.Flags("server")
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

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.DB.AutoMigrate {
		if err := sqlstore.Migrate(&cfg.DB); err != nil {
			return fmt.Errorf("failed to apply migrations: %w", err)
		}
		logger.Info("migrations applied", zap.String("driver", cfg.DB.Driver))
	}

	db, err := sqlstore.NewDB(ctx, &cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	// Initialize repositories
	docRepo := sqlstore.NewDocumentRepo(db, cfg.DB.Driver)

	// Initialize storage
	var archive port.ObjectStorage
	if cfg.S3.Enabled {
		archive, err = s3storage.NewArchive(ctx, &cfg.S3)
		if err != nil {
			return fmt.Errorf("failed to initialize S3 archive: %w", err)
		}
		logger.Info("archiving originals", zap.String("bucket", cfg.S3.Bucket))
	}

	split, err := extract.ParseSplitMode(cfg.Extract.TableSplit)
	if err != nil {
		return fmt.Errorf("invalid extract.table_split: %w", err)
	}
	if err := os.MkdirAll(cfg.Upload.Dir, 0o750); err != nil {
		return fmt.Errorf("failed to create upload dir: %w", err)
	}

	engine := ocr.New(ocr.ConfigFrom(&cfg.OCR, cfg.Upload.Dir), logger)

	// Initialize services
	ingestSvc := service.NewIngestService(docRepo, engine, archive, service.IngestConfig{
		UploadDir:   cfg.Upload.Dir,
		MaxBytes:    cfg.Upload.MaxBytes(),
		SaveRetries: cfg.DB.SaveRetries,
		RetryDelay:  100 * time.Millisecond,
		SaveTimeout: cfg.DB.SaveTimeout,
		TableSplit:  split,
	}, logger)
	docSvc := service.NewDocumentService(docRepo, archive, time.Duration(cfg.S3.PresignExpiry)*time.Second, logger)

	// Initialize handlers
	docH := handler.NewDocumentHandler(ingestSvc, docSvc, logger)
	healthH := handler.NewHealthHandler(docSvc, logger)

	// Setup router
	r := router.Setup(logger, cfg.CORS.AllowedOrigins, cfg.Upload.MaxBytes(), docH, healthH)

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", cfg.Server.Port), zap.String("db", cfg.DB.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

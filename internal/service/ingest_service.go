package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"invoiceocr/internal/domain"
	"invoiceocr/internal/extract"
	"invoiceocr/internal/port"
)

// IngestInput is the DTO for one uploaded invoice file.
type IngestInput struct {
	Filename string
	Body     io.Reader
	// Size is the declared size in bytes, or -1 when unknown.
	Size int64
}

// IngestResult describes the record an ingestion attempt left behind.
type IngestResult struct {
	DocumentID int64                   `json:"document_id"`
	Status     domain.ProcessingStatus `json:"status"`
	Document   *domain.Document        `json:"-"`
	LineItems  []domain.LineItem       `json:"line_items"`
	Report     extract.NormalizeReport `json:"-"`
	Archived   bool                    `json:"archived"`
}

// IngestService defines the upload-to-record pipeline.
type IngestService interface {
	// Ingest always persists a record for the attempt unless even the
	// fallback save fails, in which case the error wraps
	// domain.ErrPersistenceFailed.
	Ingest(ctx context.Context, input IngestInput) (*IngestResult, error)
}

// IngestConfig holds the tunables of the ingestion pipeline.
type IngestConfig struct {
	UploadDir   string
	MaxBytes    int64
	SaveRetries int
	RetryDelay  time.Duration
	// SaveTimeout bounds the retried save and, separately, the fallback
	// save. Both run detached from the request context.
	SaveTimeout time.Duration
	TableSplit  extract.SplitMode
}

const defaultSaveTimeout = 30 * time.Second

type ingestService struct {
	repo          port.DocumentRepository
	ocr           port.OCREngine
	archive       port.ObjectStorage // nil when archiving is disabled
	cfg           IngestConfig
	reconstructor extract.Reconstructor
	normalizer    *extract.Normalizer
	logger        *zap.Logger
}

// NewIngestService creates a new IngestService implementation. archive may be nil.
func NewIngestService(
	repo port.DocumentRepository,
	ocr port.OCREngine,
	archive port.ObjectStorage,
	cfg IngestConfig,
	logger *zap.Logger,
) IngestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SaveRetries < 0 {
		cfg.SaveRetries = 0
	}
	if cfg.SaveTimeout <= 0 {
		cfg.SaveTimeout = defaultSaveTimeout
	}
	if cfg.TableSplit == "" {
		cfg.TableSplit = extract.SplitAuto
	}
	return &ingestService{
		repo:          repo,
		ocr:           ocr,
		archive:       archive,
		cfg:           cfg,
		reconstructor: extract.Reconstructor{Mode: cfg.TableSplit},
		normalizer:    extract.NewNormalizer(logger.Named("normalizer")),
		logger:        logger.Named("ingest"),
	}
}

func (s *ingestService) Ingest(ctx context.Context, input IngestInput) (*IngestResult, error) {
	filename := sanitizeUploadName(input.Filename)
	doc := &domain.Document{
		Filename:         filename,
		UploadDate:       time.Now().UTC(),
		ProcessingStatus: domain.StatusPending,
	}
	log := s.logger.With(zap.String("filename", filename))

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	fileType, ok := domain.AllowedExtensions[ext]
	if !ok {
		log.Warn("rejecting unsupported file type", zap.String("ext", ext))
		return s.fail(ctx, doc, domain.ErrUnsupportedFileType)
	}
	if s.cfg.MaxBytes > 0 && input.Size > s.cfg.MaxBytes {
		log.Warn("rejecting oversized upload", zap.Int64("size", input.Size))
		return s.fail(ctx, doc, domain.ErrFileTooLarge)
	}

	tmpPath, err := s.spool(input.Body, ext)
	if tmpPath != "" {
		defer func() {
			if rmErr := os.Remove(tmpPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				log.Warn("removing temp upload", zap.String("path", tmpPath), zap.Error(rmErr))
			}
		}()
	}
	if err != nil {
		log.Warn("spooling upload failed", zap.Error(err))
		return s.fail(ctx, doc, err)
	}

	header, err := s.ocr.Recognize(ctx, tmpPath, port.LayoutAuto)
	if err != nil {
		log.Warn("ocr header pass failed", zap.Error(err))
		return s.fail(ctx, doc, err)
	}
	doc.RawText = header.Text
	doc.OCRConfidence = header.Confidence

	extract.ExtractDocumentFields(header.Text).ApplyTo(doc)

	// The table pass re-reads the page as one block so rows stay intact. If
	// it fails the header fields are still worth keeping.
	var items []domain.LineItem
	var report extract.NormalizeReport
	block, err := s.ocr.Recognize(ctx, tmpPath, port.LayoutBlock)
	if err != nil {
		log.Warn("ocr table pass failed", zap.Error(err))
		doc.AppendErrorLog("Table OCR Error: " + err.Error())
	} else {
		items, report = s.normalizer.Normalize(s.reconstructor.Reconstruct(block.Text))
		if skipped := report.Skipped(); len(skipped) > 0 {
			log.Info("line item rows skipped", zap.Int("skipped", len(skipped)), zap.Int("accepted", report.Accepted()))
		}
	}
	doc.ProcessingStatus = domain.StatusProcessed

	id, err := s.save(ctx, doc, items)
	if err != nil {
		return nil, err
	}

	result := &IngestResult{
		DocumentID: id,
		Status:     doc.ProcessingStatus,
		Document:   doc,
		LineItems:  items,
		Report:     report,
	}
	if doc.ProcessingStatus == domain.StatusFailedDBSave {
		result.LineItems = []domain.LineItem{}
	}
	result.Archived = s.archiveOriginal(ctx, id, filename, tmpPath, fileType)

	log.Info("document ingested",
		zap.Int64("document_id", id),
		zap.String("status", string(doc.ProcessingStatus)),
		zap.Int("line_items", len(result.LineItems)),
	)
	return result, nil
}

// fail persists doc with status failed and cause as its error log.
func (s *ingestService) fail(ctx context.Context, doc *domain.Document, cause error) (*IngestResult, error) {
	doc.ProcessingStatus = domain.StatusFailed
	doc.AppendErrorLog(cause.Error())

	id, err := s.save(ctx, doc, nil)
	if err != nil {
		return nil, err
	}
	return &IngestResult{
		DocumentID: id,
		Status:     doc.ProcessingStatus,
		Document:   doc,
		LineItems:  []domain.LineItem{},
	}, nil
}

// save retries the full save, then falls back to a header-only record with
// status failed_db_save. Only when that also fails does it return an error.
// Cancellation of ctx does not stop it; only SaveTimeout does.
func (s *ingestService) save(ctx context.Context, doc *domain.Document, items []domain.LineItem) (int64, error) {
	base := context.WithoutCancel(ctx)
	ctx, cancel := context.WithTimeout(base, s.cfg.SaveTimeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt <= s.cfg.SaveRetries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, s.cfg.RetryDelay*time.Duration(attempt)); err != nil {
				lastErr = errors.Join(lastErr, err)
				break
			}
		}
		id, err := s.repo.Save(ctx, doc, items)
		if err == nil {
			return id, nil
		}
		lastErr = err
		s.logger.Warn("save attempt failed",
			zap.Int("attempt", attempt+1),
			zap.String("filename", doc.Filename),
			zap.Error(err),
		)
	}

	fallback := *doc
	fallback.ID = 0
	fallback.ProcessingStatus = domain.StatusFailedDBSave
	fallback.AppendErrorLog("DB Save Error: " + lastErr.Error())

	fbCtx, fbCancel := context.WithTimeout(base, s.cfg.SaveTimeout)
	defer fbCancel()
	id, err := s.repo.Save(fbCtx, &fallback, nil)
	if err != nil {
		s.logger.Error("fallback save failed", zap.String("filename", doc.Filename), zap.Error(err))
		return 0, fmt.Errorf("ingestService.save: %w: %w", domain.ErrPersistenceFailed, errors.Join(lastErr, err))
	}
	*doc = fallback
	doc.ID = id
	return id, nil
}

// spool copies body into a temp file under the upload dir. It returns the
// path whenever a file was created so the caller can remove it.
func (s *ingestService) spool(body io.Reader, ext string) (string, error) {
	f, err := os.CreateTemp(s.cfg.UploadDir, "upload-*."+ext)
	if err != nil {
		return "", fmt.Errorf("ingestService.spool: %w", err)
	}
	path := f.Name()

	src := body
	if s.cfg.MaxBytes > 0 {
		src = io.LimitReader(body, s.cfg.MaxBytes+1)
	}
	n, copyErr := io.Copy(f, src)
	closeErr := f.Close()

	switch {
	case copyErr != nil:
		return path, fmt.Errorf("%w: %w", domain.ErrInputUnreadable, copyErr)
	case closeErr != nil:
		return path, fmt.Errorf("ingestService.spool: %w", closeErr)
	case s.cfg.MaxBytes > 0 && n > s.cfg.MaxBytes:
		return path, domain.ErrFileTooLarge
	case n == 0:
		return path, fmt.Errorf("%w: empty file", domain.ErrInputUnreadable)
	}
	return path, nil
}

// archiveOriginal copies the upload to object storage. Failures are logged
// and never affect the stored record.
func (s *ingestService) archiveOriginal(ctx context.Context, id int64, filename, path string, ft domain.FileType) bool {
	if s.archive == nil {
		return false
	}
	f, err := os.Open(path)
	if err != nil {
		s.logger.Warn("archive open failed", zap.Int64("document_id", id), zap.Error(err))
		return false
	}
	defer f.Close()

	key := ArchiveKey(id, filename)
	if err := s.archive.Put(ctx, key, f, domain.ContentTypes[ft]); err != nil {
		s.logger.Warn("archive upload failed", zap.Int64("document_id", id), zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// ArchiveKey is the object key of a document's original upload.
func ArchiveKey(id int64, filename string) string {
	return fmt.Sprintf("%s%s", ArchivePrefix(id), filename)
}

// ArchivePrefix is the key prefix holding everything archived for a document.
func ArchivePrefix(id int64) string {
	return fmt.Sprintf("documents/%d/", id)
}

func sanitizeUploadName(name string) string {
	name = filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "upload"
	}
	return name
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

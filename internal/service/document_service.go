package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"go.uber.org/zap"

	"invoiceocr/internal/domain"
	"invoiceocr/internal/export"
	"invoiceocr/internal/extract"
	"invoiceocr/internal/port"
)

// DocumentService defines read and administrative access to stored documents.
type DocumentService interface {
	List(ctx context.Context, opts port.ListOptions) ([]domain.Document, error)
	GetByID(ctx context.Context, id int64) (*domain.DocumentDetail, error)
	Delete(ctx context.Context, id int64) error
	Export(ctx context.Context, w io.Writer, format export.Format) (int, error)
	OriginalURL(ctx context.Context, id int64) (string, error)
	ReextractFields(ctx context.Context, batchSize int, dryRun bool) (ReextractResult, error)
	Ready(ctx context.Context) error
}

// ReextractResult summarizes a ReextractFields run.
type ReextractResult struct {
	Scanned int `json:"scanned"`
	Changed int `json:"changed"`
	Updated int `json:"updated"`
}

type documentService struct {
	repo          port.DocumentRepository
	archive       port.ObjectStorage // nil when archiving is disabled
	presignExpiry time.Duration
	logger        *zap.Logger
}

// NewDocumentService creates a new DocumentService implementation. archive may be nil.
func NewDocumentService(
	repo port.DocumentRepository,
	archive port.ObjectStorage,
	presignExpiry time.Duration,
	logger *zap.Logger,
) DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if presignExpiry <= 0 {
		presignExpiry = time.Hour
	}
	return &documentService{
		repo:          repo,
		archive:       archive,
		presignExpiry: presignExpiry,
		logger:        logger.Named("documents"),
	}
}

func (s *documentService) List(ctx context.Context, opts port.ListOptions) ([]domain.Document, error) {
	if opts.Limit < 0 {
		opts.Limit = 0
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	return s.repo.List(ctx, opts)
}

func (s *documentService) GetByID(ctx context.Context, id int64) (*domain.DocumentDetail, error) {
	return s.repo.GetByID(ctx, id)
}

// Delete removes the record and its line items, then best-effort removes any
// archived original.
func (s *documentService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if s.archive == nil {
		return nil
	}

	keys, err := s.archive.ListKeys(ctx, ArchivePrefix(id))
	if err != nil {
		s.logger.Warn("listing archived originals failed", zap.Int64("document_id", id), zap.Error(err))
		return nil
	}
	for _, key := range keys {
		if err := s.archive.Delete(ctx, key); err != nil {
			s.logger.Warn("deleting archived original failed", zap.String("key", key), zap.Error(err))
		}
	}
	return nil
}

// Export writes every stored document with its line items and returns the
// number of documents written.
func (s *documentService) Export(ctx context.Context, w io.Writer, format export.Format) (int, error) {
	docs, err := s.repo.List(ctx, port.ListOptions{})
	if err != nil {
		return 0, fmt.Errorf("documentService.Export: %w", err)
	}

	details := make([]domain.DocumentDetail, 0, len(docs))
	for i := range docs {
		d, err := s.repo.GetByID(ctx, docs[i].ID)
		if err != nil {
			if errors.Is(err, domain.ErrDocumentNotFound) {
				// deleted since the list was read
				continue
			}
			return 0, fmt.Errorf("documentService.Export: %w", err)
		}
		details = append(details, *d)
	}

	if err := export.Write(w, format, details); err != nil {
		return 0, fmt.Errorf("documentService.Export: %w", err)
	}
	return len(details), nil
}

func (s *documentService) OriginalURL(ctx context.Context, id int64) (string, error) {
	if s.archive == nil {
		return "", domain.ErrArchiveDisabled
	}
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}

	keys, err := s.archive.ListKeys(ctx, ArchivePrefix(id))
	if err != nil {
		return "", fmt.Errorf("documentService.OriginalURL: %w", err)
	}
	want := ArchiveKey(id, doc.Filename)
	found := false
	for _, k := range keys {
		if k == want {
			found = true
			break
		}
	}
	if !found {
		return "", domain.ErrNotFound
	}

	url, err := s.archive.PresignGet(ctx, want, s.presignExpiry)
	if err != nil {
		return "", fmt.Errorf("documentService.OriginalURL: %w", err)
	}
	return url, nil
}

// ReextractFields re-runs the header pattern rules over the stored raw text of
// every document and writes back those whose fields changed. With dryRun
// nothing is written. Documents without raw text are skipped.
func (s *documentService) ReextractFields(ctx context.Context, batchSize int, dryRun bool) (ReextractResult, error) {
	if batchSize <= 0 {
		batchSize = 100
	}
	var res ReextractResult

	// Keyset paging by id: uploads arriving mid-run get higher ids and never
	// shift the pages still to come.
	for before := int64(math.MaxInt64); ; {
		docs, err := s.repo.List(ctx, port.ListOptions{Limit: batchSize, BeforeID: before})
		if err != nil {
			return res, fmt.Errorf("documentService.ReextractFields: before id %d: %w", before, err)
		}

		for i := range docs {
			doc := &docs[i]
			if doc.RawText == "" {
				continue
			}
			res.Scanned++

			updated := *doc
			extract.ExtractDocumentFields(doc.RawText).ApplyTo(&updated)
			if sameFields(doc, &updated) {
				continue
			}
			res.Changed++
			if dryRun {
				s.logger.Info("fields would change", zap.Int64("document_id", doc.ID))
				continue
			}
			if err := s.repo.UpdateFields(ctx, &updated); err != nil {
				if errors.Is(err, domain.ErrDocumentNotFound) {
					continue
				}
				return res, fmt.Errorf("documentService.ReextractFields: document %d: %w", doc.ID, err)
			}
			res.Updated++
		}

		if len(docs) < batchSize {
			return res, nil
		}
		before = docs[len(docs)-1].ID
	}
}

func sameFields(a, b *domain.Document) bool {
	strs := [][2]*string{
		{a.InvoiceNumber, b.InvoiceNumber},
		{a.Date, b.Date},
		{a.DueDate, b.DueDate},
		{a.VendorName, b.VendorName},
		{a.VendorAddress, b.VendorAddress},
		{a.VendorPhone, b.VendorPhone},
		{a.VendorEmail, b.VendorEmail},
		{a.Currency, b.Currency},
		{a.PaymentTerms, b.PaymentTerms},
		{a.PONumber, b.PONumber},
	}
	for _, p := range strs {
		if !equalPtr(p[0], p[1]) {
			return false
		}
	}
	return equalPtr(a.Subtotal, b.Subtotal) &&
		equalPtr(a.TaxAmount, b.TaxAmount) &&
		equalPtr(a.TotalAmount, b.TotalAmount)
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (s *documentService) Ready(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

package port

import (
	"context"

	"invoiceocr/internal/domain"
)

// ListOptions controls paging for DocumentRepository.List. A zero Limit
// means no limit.
type ListOptions struct {
	Limit  int
	Offset int
	// BeforeID, when positive, switches to keyset paging: only documents
	// with a smaller id are returned, highest id first. Rows inserted while
	// paging cannot shift later pages.
	BeforeID int64
}

// DocumentRepository defines the contract for document persistence.
type DocumentRepository interface {
	// Save inserts the header and every line item in one transaction and
	// returns the new document id. Nothing is written if any insert fails.
	Save(ctx context.Context, doc *domain.Document, items []domain.LineItem) (int64, error)
	List(ctx context.Context, opts ListOptions) ([]domain.Document, error)
	GetByID(ctx context.Context, id int64) (*domain.DocumentDetail, error)
	// UpdateFields rewrites the extracted header columns of an existing
	// document. Status, raw text and line items are left untouched.
	UpdateFields(ctx context.Context, doc *domain.Document) error
	Delete(ctx context.Context, id int64) error
	Ping(ctx context.Context) error
}

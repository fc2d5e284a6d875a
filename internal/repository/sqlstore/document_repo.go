package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"invoiceocr/internal/config"
	"invoiceocr/internal/domain"
	"invoiceocr/internal/port"
)

const documentColumns = `id, filename, upload_date, processing_status, ocr_confidence, raw_text, error_log,
	invoice_number, date, due_date, vendor_name, vendor_address, vendor_phone, vendor_email,
	subtotal, tax_amount, total_amount, currency, payment_terms, po_number`

const lineItemColumns = `id, document_id, description, quantity, unit_price, line_total`

type documentRepo struct {
	db      *sqlx.DB
	dialect string
}

// NewDocumentRepo creates a DocumentRepository for db. dialect is
// config.DriverPostgres or config.DriverSQLite.
func NewDocumentRepo(db *sqlx.DB, dialect string) port.DocumentRepository {
	return &documentRepo{db: db, dialect: dialect}
}

func (r *documentRepo) Save(ctx context.Context, doc *domain.Document, items []domain.LineItem) (int64, error) {
	if !doc.ProcessingStatus.Valid() {
		return 0, fmt.Errorf("documentRepo.Save: %w: %q", domain.ErrInvalidStatus, doc.ProcessingStatus)
	}
	if doc.UploadDate.IsZero() {
		doc.UploadDate = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("documentRepo.Save begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := tx.Rebind(`INSERT INTO documents (
		filename, upload_date, processing_status, ocr_confidence, raw_text, error_log,
		invoice_number, date, due_date,
		vendor_name, vendor_address, vendor_phone, vendor_email,
		subtotal, tax_amount, total_amount, currency,
		payment_terms, po_number
	) VALUES (
		?, ?, ?, ?, ?, ?,
		?, ?, ?,
		?, ?, ?, ?,
		?, ?, ?, ?,
		?, ?
	) RETURNING id`)

	var id int64
	err = tx.QueryRowxContext(ctx, query,
		doc.Filename, doc.UploadDate, doc.ProcessingStatus, doc.OCRConfidence, doc.RawText, doc.ErrorLog,
		doc.InvoiceNumber, doc.Date, doc.DueDate,
		doc.VendorName, doc.VendorAddress, doc.VendorPhone, doc.VendorEmail,
		doc.Subtotal, doc.TaxAmount, doc.TotalAmount, doc.Currency,
		doc.PaymentTerms, doc.PONumber,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("documentRepo.Save insert document: %w", err)
	}

	itemIDs := make([]int64, len(items))
	if len(items) > 0 {
		stmt, err := tx.PreparexContext(ctx, tx.Rebind(`INSERT INTO line_items (
			document_id, description, quantity, unit_price, line_total
		) VALUES (?, ?, ?, ?, ?) RETURNING id`))
		if err != nil {
			return 0, fmt.Errorf("documentRepo.Save prepare line items: %w", err)
		}
		defer stmt.Close()

		for i := range items {
			item := &items[i]
			if err := stmt.QueryRowxContext(ctx,
				id, item.Description, item.Quantity, item.UnitPrice, item.LineTotal,
			).Scan(&itemIDs[i]); err != nil {
				return 0, fmt.Errorf("documentRepo.Save insert line item %d: %w", i, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("documentRepo.Save commit: %w", err)
	}

	// ids are only handed back once they exist.
	doc.ID = id
	for i := range items {
		items[i].ID = itemIDs[i]
		items[i].DocumentID = id
	}
	return id, nil
}

func (r *documentRepo) List(ctx context.Context, opts port.ListOptions) ([]domain.Document, error) {
	query := "SELECT " + documentColumns + " FROM documents ORDER BY upload_date DESC, id DESC"
	var args []interface{}
	if opts.BeforeID > 0 {
		query = "SELECT " + documentColumns + " FROM documents WHERE id < ? ORDER BY id DESC"
		args = append(args, opts.BeforeID)
	}

	switch {
	case opts.Limit > 0:
		query += " LIMIT ? OFFSET ?"
		args = append(args, opts.Limit, opts.Offset)
	case opts.Offset > 0:
		// Neither dialect accepts OFFSET without some LIMIT.
		if r.dialect == config.DriverSQLite {
			query += " LIMIT -1 OFFSET ?"
		} else {
			query += " LIMIT ALL OFFSET ?"
		}
		args = append(args, opts.Offset)
	}

	docs := []domain.Document{}
	if err := r.db.SelectContext(ctx, &docs, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("documentRepo.List: %w", err)
	}
	return docs, nil
}

func (r *documentRepo) GetByID(ctx context.Context, id int64) (*domain.DocumentDetail, error) {
	// Header and items come from one transaction so a concurrent delete
	// cannot leave a header without its items.
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("documentRepo.GetByID begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var detail domain.DocumentDetail
	err = tx.GetContext(ctx, &detail.Document,
		tx.Rebind("SELECT "+documentColumns+" FROM documents WHERE id = ?"), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("documentRepo.GetByID: %w", err)
	}

	detail.LineItems = []domain.LineItem{}
	err = tx.SelectContext(ctx, &detail.LineItems,
		tx.Rebind("SELECT "+lineItemColumns+" FROM line_items WHERE document_id = ? ORDER BY id"), id)
	if err != nil {
		return nil, fmt.Errorf("documentRepo.GetByID line items: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("documentRepo.GetByID commit: %w", err)
	}
	return &detail, nil
}

func (r *documentRepo) UpdateFields(ctx context.Context, doc *domain.Document) error {
	query := r.db.Rebind(`UPDATE documents SET
		invoice_number = ?, date = ?, due_date = ?,
		vendor_name = ?, vendor_address = ?, vendor_phone = ?, vendor_email = ?,
		subtotal = ?, tax_amount = ?, total_amount = ?, currency = ?,
		payment_terms = ?, po_number = ?
	WHERE id = ?`)
	result, err := r.db.ExecContext(ctx, query,
		doc.InvoiceNumber, doc.Date, doc.DueDate,
		doc.VendorName, doc.VendorAddress, doc.VendorPhone, doc.VendorEmail,
		doc.Subtotal, doc.TaxAmount, doc.TotalAmount, doc.Currency,
		doc.PaymentTerms, doc.PONumber,
		doc.ID,
	)
	if err != nil {
		return fmt.Errorf("documentRepo.UpdateFields: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("documentRepo.UpdateFields rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *documentRepo) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind("DELETE FROM documents WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("documentRepo.Delete: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("documentRepo.Delete rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *documentRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

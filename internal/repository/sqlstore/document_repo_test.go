package sqlstore

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoiceocr/internal/config"
	"invoiceocr/internal/domain"
	"invoiceocr/internal/port"
)

func newTestStore(t *testing.T) (port.DocumentRepository, *sqlx.DB) {
	t.Helper()
	cfg := &config.DBConfig{
		Driver:      config.DriverSQLite,
		Path:        filepath.Join(t.TempDir(), "invoices.db"),
		BusyTimeout: time.Second,
		MaxIdle:     1,
	}
	require.NoError(t, Migrate(cfg))

	db, err := NewDB(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewDocumentRepo(db, cfg.Driver), db
}

func sampleItems(n int) []domain.LineItem {
	items := make([]domain.LineItem, n)
	for i := range items {
		items[i] = domain.LineItem{
			Description: domain.StringPtr("item"),
			Quantity:    domain.Float64Ptr(float64(i + 1)),
			UnitPrice:   domain.Float64Ptr(2.5),
		}
		items[i].DeriveTotal()
	}
	return items
}

func TestDocumentRepo_SaveAndGet(t *testing.T) {
	repo, _ := newTestStore(t)
	ctx := context.Background()

	doc := &domain.Document{
		Filename:         "invoice.png",
		ProcessingStatus: domain.StatusProcessed,
		RawText:          "Invoice Number: INV-1\nTotal: 7.50",
		InvoiceNumber:    domain.StringPtr("INV-1"),
		TotalAmount:      domain.Float64Ptr(7.5),
		OCRConfidence:    domain.Float64Ptr(0.87),
	}
	items := sampleItems(3)

	id, err := repo.Save(ctx, doc, items)
	require.NoError(t, err)
	assert.Positive(t, id)
	assert.Equal(t, id, doc.ID)

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "invoice.png", got.Filename)
	assert.Equal(t, domain.StatusProcessed, got.ProcessingStatus)
	assert.Equal(t, "INV-1", *got.InvoiceNumber)
	assert.Equal(t, 7.5, *got.TotalAmount)
	assert.InDelta(t, 0.87, *got.OCRConfidence, 1e-9)
	assert.Nil(t, got.VendorName)
	assert.Nil(t, got.ErrorLog)
	assert.WithinDuration(t, doc.UploadDate, got.UploadDate, time.Second)

	require.Len(t, got.LineItems, 3)
	for i, li := range got.LineItems {
		assert.Equal(t, id, li.DocumentID)
		assert.Equal(t, items[i].ID, li.ID)
		assert.Equal(t, float64(i+1), *li.Quantity)
		assert.Equal(t, float64(i+1)*2.5, *li.LineTotal)
	}
}

func TestDocumentRepo_SaveWithoutItems(t *testing.T) {
	repo, _ := newTestStore(t)
	ctx := context.Background()

	id, err := repo.Save(ctx, &domain.Document{Filename: "empty.pdf", ProcessingStatus: domain.StatusProcessed}, nil)
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.NotNil(t, got.LineItems)
	assert.Empty(t, got.LineItems)
	assert.Equal(t, "", got.RawText)
}

func TestDocumentRepo_SaveFailedStatus(t *testing.T) {
	repo, _ := newTestStore(t)
	ctx := context.Background()

	doc := &domain.Document{Filename: "broken.jpg", ProcessingStatus: domain.StatusFailed}
	doc.AppendErrorLog("tesseract: exit status 1")

	id, err := repo.Save(ctx, doc, nil)
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, got.ProcessingStatus)
	require.NotNil(t, got.ErrorLog)
	assert.Equal(t, "tesseract: exit status 1", *got.ErrorLog)
}

func TestDocumentRepo_SaveRejectsUnknownStatus(t *testing.T) {
	repo, _ := newTestStore(t)

	_, err := repo.Save(context.Background(), &domain.Document{Filename: "x", ProcessingStatus: "done"}, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestDocumentRepo_SaveIsAtomic(t *testing.T) {
	repo, db := newTestStore(t)
	ctx := context.Background()

	_, err := db.Exec("DROP TABLE line_items")
	require.NoError(t, err)

	_, err = repo.Save(ctx, &domain.Document{Filename: "a.png", ProcessingStatus: domain.StatusProcessed}, sampleItems(2))
	require.Error(t, err)

	var count int
	require.NoError(t, db.Get(&count, "SELECT COUNT(*) FROM documents"))
	assert.Zero(t, count)
}

func TestDocumentRepo_SaveRollbackLeavesIDsUnset(t *testing.T) {
	repo, db := newTestStore(t)
	ctx := context.Background()

	_, err := db.Exec(`CREATE TRIGGER reject_item BEFORE INSERT ON line_items
		WHEN NEW.description = 'reject'
		BEGIN SELECT RAISE(ABORT, 'rejected'); END`)
	require.NoError(t, err)

	items := sampleItems(2)
	items[1].Description = domain.StringPtr("reject")
	doc := &domain.Document{Filename: "a.png", ProcessingStatus: domain.StatusProcessed}

	_, err = repo.Save(ctx, doc, items)
	require.Error(t, err)

	assert.Zero(t, doc.ID)
	for _, item := range items {
		assert.Zero(t, item.ID)
		assert.Zero(t, item.DocumentID)
	}
	var count int
	require.NoError(t, db.Get(&count, "SELECT COUNT(*) FROM line_items"))
	assert.Zero(t, count)
}

func TestDocumentRepo_SaveAssignsItemIDsAfterCommit(t *testing.T) {
	repo, _ := newTestStore(t)

	items := sampleItems(2)
	id, err := repo.Save(context.Background(), &domain.Document{Filename: "a.png", ProcessingStatus: domain.StatusProcessed}, items)
	require.NoError(t, err)

	for _, item := range items {
		assert.Positive(t, item.ID)
		assert.Equal(t, id, item.DocumentID)
	}
	assert.Less(t, items[0].ID, items[1].ID)
}

func TestDocumentRepo_GetByID_NotFound(t *testing.T) {
	repo, _ := newTestStore(t)

	_, err := repo.GetByID(context.Background(), 42)
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestDocumentRepo_DeleteCascades(t *testing.T) {
	repo, db := newTestStore(t)
	ctx := context.Background()

	id, err := repo.Save(ctx, &domain.Document{Filename: "a.png", ProcessingStatus: domain.StatusProcessed}, sampleItems(4))
	require.NoError(t, err)
	keep, err := repo.Save(ctx, &domain.Document{Filename: "b.png", ProcessingStatus: domain.StatusProcessed}, sampleItems(1))
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, id))

	_, err = repo.GetByID(ctx, id)
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)

	var orphans int
	require.NoError(t, db.Get(&orphans, "SELECT COUNT(*) FROM line_items WHERE document_id = ?", id))
	assert.Zero(t, orphans)

	other, err := repo.GetByID(ctx, keep)
	require.NoError(t, err)
	assert.Len(t, other.LineItems, 1)

	assert.ErrorIs(t, repo.Delete(ctx, id), domain.ErrDocumentNotFound)
}

func TestDocumentRepo_UpdateFields(t *testing.T) {
	repo, _ := newTestStore(t)
	ctx := context.Background()

	errLog := "Table OCR Error: timeout"
	doc := &domain.Document{
		Filename:         "a.png",
		ProcessingStatus: domain.StatusProcessed,
		RawText:          "Invoice Number: A-1",
		ErrorLog:         &errLog,
		InvoiceNumber:    domain.StringPtr("A-0"),
		Currency:         domain.StringPtr("EUR"),
	}
	id, err := repo.Save(ctx, doc, sampleItems(2))
	require.NoError(t, err)

	doc.InvoiceNumber = domain.StringPtr("A-1")
	doc.TotalAmount = domain.Float64Ptr(99.5)
	doc.Currency = nil
	doc.ProcessingStatus = domain.StatusFailed
	require.NoError(t, repo.UpdateFields(ctx, doc))

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "A-1", *got.InvoiceNumber)
	assert.Equal(t, 99.5, *got.TotalAmount)
	assert.Nil(t, got.Currency)
	assert.Equal(t, domain.StatusProcessed, got.ProcessingStatus)
	assert.Equal(t, errLog, *got.ErrorLog)
	assert.Len(t, got.LineItems, 2)

	assert.ErrorIs(t, repo.UpdateFields(ctx, &domain.Document{ID: id + 100}), domain.ErrDocumentNotFound)
}

func TestDocumentRepo_ListOrdering(t *testing.T) {
	repo, _ := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	names := []string{"oldest.png", "middle.png", "newest.png"}
	for i, name := range names {
		_, err := repo.Save(ctx, &domain.Document{
			Filename:         name,
			UploadDate:       base.Add(time.Duration(i) * time.Hour),
			ProcessingStatus: domain.StatusProcessed,
		}, nil)
		require.NoError(t, err)
	}
	// Same timestamp as "newest": the higher id sorts first.
	_, err := repo.Save(ctx, &domain.Document{
		Filename:         "tie.png",
		UploadDate:       base.Add(2 * time.Hour),
		ProcessingStatus: domain.StatusFailed,
	}, nil)
	require.NoError(t, err)

	all, err := repo.List(ctx, port.ListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "tie.png", all[0].Filename)
	assert.Equal(t, "newest.png", all[1].Filename)
	assert.Equal(t, "middle.png", all[2].Filename)
	assert.Equal(t, "oldest.png", all[3].Filename)

	page, err := repo.List(ctx, port.ListOptions{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "newest.png", page[0].Filename)
	assert.Equal(t, "middle.png", page[1].Filename)

	tail, err := repo.List(ctx, port.ListOptions{Offset: 3})
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, "oldest.png", tail[0].Filename)
}

func TestDocumentRepo_ListBeforeID(t *testing.T) {
	repo, _ := newTestStore(t)
	ctx := context.Background()

	// Upload dates run opposite to ids so keyset order is visibly by id.
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	ids := make([]int64, 3)
	for i := range ids {
		id, err := repo.Save(ctx, &domain.Document{
			Filename:         "doc.png",
			UploadDate:       base.Add(-time.Duration(i) * time.Hour),
			ProcessingStatus: domain.StatusProcessed,
		}, nil)
		require.NoError(t, err)
		ids[i] = id
	}

	first, err := repo.List(ctx, port.ListOptions{Limit: 2, BeforeID: math.MaxInt64})
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, ids[2], first[0].ID)
	assert.Equal(t, ids[1], first[1].ID)

	// A document saved between pages does not shift the next one.
	_, err = repo.Save(ctx, &domain.Document{Filename: "late.png", ProcessingStatus: domain.StatusProcessed}, nil)
	require.NoError(t, err)

	second, err := repo.List(ctx, port.ListOptions{Limit: 2, BeforeID: first[1].ID})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, ids[0], second[0].ID)
}

func TestDocumentRepo_ListEmpty(t *testing.T) {
	repo, _ := newTestStore(t)

	docs, err := repo.List(context.Background(), port.ListOptions{})
	require.NoError(t, err)
	assert.NotNil(t, docs)
	assert.Empty(t, docs)
}

func TestMigrator_DownRemovesSchema(t *testing.T) {
	cfg := &config.DBConfig{Driver: config.DriverSQLite, Path: filepath.Join(t.TempDir(), "m.db"), BusyTimeout: time.Second}
	require.NoError(t, Migrate(cfg))
	// Re-running is a no-op.
	require.NoError(t, Migrate(cfg))

	m, err := NewMigrator(cfg)
	require.NoError(t, err)
	version, dirty, err := m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)
	require.NoError(t, m.Down())
	srcErr, dbErr := m.Close()
	require.NoError(t, srcErr)
	require.NoError(t, dbErr)

	db, err := NewDB(context.Background(), cfg)
	require.NoError(t, err)
	defer db.Close()
	var n int
	require.NoError(t, db.Get(&n, "SELECT COUNT(*) FROM sqlite_master WHERE name IN ('documents', 'line_items')"))
	assert.Zero(t, n)
}

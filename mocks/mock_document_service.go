package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"invoiceocr/internal/domain"
	"invoiceocr/internal/export"
	"invoiceocr/internal/port"
	"invoiceocr/internal/service"
)

// MockDocumentService is a mock implementation of service.DocumentService.
type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) List(ctx context.Context, opts port.ListOptions) ([]domain.Document, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Document), args.Error(1)
}

func (m *MockDocumentService) GetByID(ctx context.Context, id int64) (*domain.DocumentDetail, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DocumentDetail), args.Error(1)
}

func (m *MockDocumentService) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// Export writes the string in the first return value to w, if any.
func (m *MockDocumentService) Export(ctx context.Context, w io.Writer, format export.Format) (int, error) {
	args := m.Called(ctx, w, format)
	if body, ok := args.Get(2).(string); ok {
		_, _ = io.WriteString(w, body)
	}
	return args.Int(0), args.Error(1)
}

func (m *MockDocumentService) OriginalURL(ctx context.Context, id int64) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}

func (m *MockDocumentService) ReextractFields(ctx context.Context, batchSize int, dryRun bool) (service.ReextractResult, error) {
	args := m.Called(ctx, batchSize, dryRun)
	return args.Get(0).(service.ReextractResult), args.Error(1)
}

func (m *MockDocumentService) Ready(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

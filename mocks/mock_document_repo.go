package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"invoiceocr/internal/domain"
	"invoiceocr/internal/port"
)

// MockDocumentRepo is a mock implementation of port.DocumentRepository.
type MockDocumentRepo struct {
	mock.Mock
}

func (m *MockDocumentRepo) Save(ctx context.Context, doc *domain.Document, items []domain.LineItem) (int64, error) {
	args := m.Called(ctx, doc, items)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDocumentRepo) List(ctx context.Context, opts port.ListOptions) ([]domain.Document, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Document), args.Error(1)
}

func (m *MockDocumentRepo) GetByID(ctx context.Context, id int64) (*domain.DocumentDetail, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DocumentDetail), args.Error(1)
}

func (m *MockDocumentRepo) UpdateFields(ctx context.Context, doc *domain.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockDocumentRepo) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDocumentRepo) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

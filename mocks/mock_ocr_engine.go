package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"invoiceocr/internal/port"
)

// MockOCREngine is a mock implementation of port.OCREngine.
type MockOCREngine struct {
	mock.Mock
}

func (m *MockOCREngine) Recognize(ctx context.Context, path string, layout port.Layout) (*port.OCRResult, error) {
	args := m.Called(ctx, path, layout)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*port.OCRResult), args.Error(1)
}

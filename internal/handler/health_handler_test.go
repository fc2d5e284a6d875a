package handler_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"invoiceocr/internal/domain"
	"invoiceocr/internal/handler"
	"invoiceocr/mocks"
)

func TestHealthHandler_Liveness(t *testing.T) {
	h := handler.NewHealthHandler(new(mocks.MockDocumentService), nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/healthz", nil)

	h.Liveness(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestHealthHandler_Readiness(t *testing.T) {
	docs := new(mocks.MockDocumentService)
	h := handler.NewHealthHandler(docs, nil)

	docs.On("Ready", mock.Anything).Return(nil).Once()
	docs.On("Ready", mock.Anything).Return(errors.New("sql: database is closed")).Once()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/readyz", nil)
	h.Readiness(c)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/readyz", nil)
	h.Readiness(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.NotContains(t, w.Body.String(), "closed")
}

func TestMapDomainError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"document not found", fmt.Errorf("repo.GetByID: %w", domain.ErrDocumentNotFound), http.StatusNotFound, "DOCUMENT_NOT_FOUND"},
		{"not archived", domain.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"archive disabled", domain.ErrArchiveDisabled, http.StatusNotFound, "ARCHIVE_DISABLED"},
		{"unsupported", domain.ErrUnsupportedFileType, http.StatusBadRequest, "UNSUPPORTED_FILE_TYPE"},
		{"too large", domain.ErrFileTooLarge, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE"},
		{"unreadable", fmt.Errorf("ocr.pdf: %w: eof", domain.ErrInputUnreadable), http.StatusUnprocessableEntity, "INPUT_UNREADABLE"},
		{"persistence", fmt.Errorf("ingestService.save: %w: locked", domain.ErrPersistenceFailed), http.StatusInternalServerError, "PERSISTENCE_FAILED"},
		{"invalid status", fmt.Errorf("documentRepo.Save: %w: %q", domain.ErrInvalidStatus, "done"), http.StatusBadRequest, "INVALID_STATUS"},
		{"storage error", fmt.Errorf("s3.Put: %w", errors.New("access denied")), http.StatusInternalServerError, "INTERNAL_ERROR"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code, _ := handler.MapDomainError(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}

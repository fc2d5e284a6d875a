package router_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"invoiceocr/internal/domain"
	"invoiceocr/internal/export"
	"invoiceocr/internal/handler"
	"invoiceocr/internal/router"
	"invoiceocr/mocks"
)

func setupRouter() (*gin.Engine, *mocks.MockDocumentService) {
	gin.SetMode(gin.TestMode)
	docs := new(mocks.MockDocumentService)
	ingest := new(mocks.MockIngestService)
	logger := zap.NewNop()
	r := router.Setup(
		logger,
		[]string{"http://localhost:3000"},
		1<<20,
		handler.NewDocumentHandler(ingest, docs, logger),
		handler.NewHealthHandler(docs, logger),
	)
	return r, docs
}

func TestRouter_Healthz(t *testing.T) {
	r, _ := setupRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/healthz", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRouter_RequestIDPropagated(t *testing.T) {
	r, _ := setupRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	r.ServeHTTP(w, req)

	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
}

func TestRouter_ExportIsNotAnID(t *testing.T) {
	r, docs := setupRouter()

	docs.On("Export", mock.Anything, mock.Anything, export.FormatCSV).Return(0, nil, "Document ID\n")

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/v1/documents/export", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	docs.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestRouter_GetByID(t *testing.T) {
	r, docs := setupRouter()

	docs.On("GetByID", mock.Anything, int64(12)).Return(nil, domain.ErrDocumentNotFound)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/v1/documents/12", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_CORSPreflight(t *testing.T) {
	r, _ := setupRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodOptions, "/api/v1/documents/upload", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_CORSDisallowedOrigin(t *testing.T) {
	r, _ := setupRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://evil.example")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_RecoversFromPanic(t *testing.T) {
	r, docs := setupRouter()

	docs.On("Delete", mock.Anything, int64(5)).Run(func(mock.Arguments) { panic("boom") })

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodDelete, "/api/v1/documents/5", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

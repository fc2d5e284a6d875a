package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"invoiceocr/internal/domain"
	"invoiceocr/internal/export"
	"invoiceocr/internal/extract"
	"invoiceocr/internal/port"
	"invoiceocr/internal/service"
)

// DocumentHandler handles document ingestion and retrieval endpoints.
type DocumentHandler struct {
	ingest service.IngestService
	docs   service.DocumentService
	logger *zap.Logger
}

// NewDocumentHandler creates a new DocumentHandler.
func NewDocumentHandler(ingest service.IngestService, docs service.DocumentService, logger *zap.Logger) *DocumentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentHandler{ingest: ingest, docs: docs, logger: logger.Named("http")}
}

// Upload handles POST /api/v1/documents/upload
// @Summary Upload an invoice
// @Description OCR an invoice (PDF, JPG, PNG, TIFF, HEIC), extract header fields and line items, and store the result
// @Tags documents
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Invoice file"
// @Success 201 {object} Response{data=UploadResponse} "Document processed"
// @Failure 400 {object} ErrorResponseBody "Missing file"
// @Failure 422 {object} Response{data=UploadResponse} "Document stored with status failed"
// @Failure 500 {object} ErrorResponseBody "Document could not be persisted"
// @Router /documents/upload [post]
func (h *DocumentHandler) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "MISSING_FILE", "file field is required")
		return
	}
	defer func() { _ = file.Close() }()

	result, err := h.ingest.Ingest(c.Request.Context(), service.IngestInput{
		Filename: header.Filename,
		Body:     file,
		Size:     header.Size,
	})
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}

	resp := UploadResponse{
		DocumentID:  result.DocumentID,
		Status:      result.Status,
		LineItems:   result.LineItems,
		SkippedRows: result.Report.Skipped(),
		Archived:    result.Archived,
	}
	if resp.LineItems == nil {
		resp.LineItems = []domain.LineItem{}
	}
	if resp.SkippedRows == nil {
		resp.SkippedRows = []extract.RowResult{}
	}
	if result.Document != nil {
		resp.ErrorLog = result.Document.ErrorLog
	}

	if result.Status == domain.StatusFailed {
		msg := "document could not be processed"
		if resp.ErrorLog != nil {
			msg = *resp.ErrorLog
		}
		c.JSON(http.StatusUnprocessableEntity, APIResponse{
			Success: false,
			Data:    resp,
			Error:   &APIError{Code: "PROCESSING_FAILED", Message: msg},
		})
		return
	}

	RespondCreated(c, resp)
}

// List handles GET /api/v1/documents
// @Summary List documents
// @Description List stored documents, newest upload first
// @Tags documents
// @Produce json
// @Param offset query int false "Offset for pagination" default(0)
// @Param limit query int false "Limit for pagination (max 100)" default(20)
// @Success 200 {object} Response{data=[]domain.Document,meta=PagMeta} "List of documents"
// @Router /documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	offset, limit := parsePagination(c)

	docs, err := h.docs.List(c.Request.Context(), port.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}

	RespondPaginated(c, docs, PagMeta{Count: len(docs), Offset: offset, Limit: limit})
}

// GetByID handles GET /api/v1/documents/:id
// @Summary Get document by ID
// @Description Get a document with its line items
// @Tags documents
// @Produce json
// @Param id path int true "Document ID"
// @Success 200 {object} Response{data=domain.DocumentDetail} "Document details"
// @Failure 400 {object} ErrorResponseBody "Invalid ID"
// @Failure 404 {object} ErrorResponseBody "Document not found"
// @Router /documents/{id} [get]
func (h *DocumentHandler) GetByID(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	doc, err := h.docs.GetByID(c.Request.Context(), id)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}

	RespondOK(c, doc)
}

// Delete handles DELETE /api/v1/documents/:id
// @Summary Delete a document
// @Description Delete a document, its line items and any archived original
// @Tags documents
// @Produce json
// @Param id path int true "Document ID"
// @Success 200 {object} Response "Document deleted"
// @Failure 400 {object} ErrorResponseBody "Invalid ID"
// @Failure 404 {object} ErrorResponseBody "Document not found"
// @Router /documents/{id} [delete]
func (h *DocumentHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.docs.Delete(c.Request.Context(), id); err != nil {
		HandleError(c, h.logger, err)
		return
	}

	RespondOK(c, gin.H{"message": "document deleted"})
}

// Original handles GET /api/v1/documents/:id/original
// @Summary Get the original upload
// @Description Returns a presigned URL for the archived original file
// @Tags documents
// @Produce json
// @Param id path int true "Document ID"
// @Success 200 {object} Response{data=OriginalURLResponse} "Presigned URL"
// @Failure 404 {object} ErrorResponseBody "Document missing, not archived, or archiving disabled"
// @Router /documents/{id}/original [get]
func (h *DocumentHandler) Original(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	url, err := h.docs.OriginalURL(c.Request.Context(), id)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}

	RespondOK(c, OriginalURLResponse{URL: url})
}

// Export handles GET /api/v1/documents/export
// @Summary Export documents
// @Description Download every document with its line items as CSV or XLSX, one row per line item
// @Tags documents
// @Produce text/csv
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param format query string false "csv or xlsx" default(csv)
// @Success 200 {file} file "Export file"
// @Failure 400 {object} ErrorResponseBody "Unknown format"
// @Router /documents/export [get]
func (h *DocumentHandler) Export(c *gin.Context) {
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_FORMAT", "format must be csv or xlsx")
		return
	}

	// Buffered so a failure mid-export still gets a JSON error response.
	var buf bytes.Buffer
	n, err := h.docs.Export(c.Request.Context(), &buf, format)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}

	filename := export.BuildFilename("invoices", format, time.Now())
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Header("X-Document-Count", strconv.Itoa(n))
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}

// parsePagination extracts offset and limit from query params with defaults.
func parsePagination(c *gin.Context) (offset, limit int) {
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return offset, limit
}

// parseID reads the :id path param. It writes a 400 response and returns
// false when the param is not a positive integer.
func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid document ID")
		return 0, false
	}
	return id, true
}

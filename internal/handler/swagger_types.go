package handler

import (
	"invoiceocr/internal/domain"
	"invoiceocr/internal/extract"
)

// Swagger type definitions for API documentation.
// These types are used by swag to generate OpenAPI documentation.

// Response is the generic success envelope.
type Response struct {
	Success bool        `json:"success" example:"true"`
	Data    interface{} `json:"data"`
	Meta    *PagMeta    `json:"meta,omitempty"`
}

// ErrorResponseBody is the error envelope.
type ErrorResponseBody struct {
	Success bool     `json:"success" example:"false"`
	Error   APIError `json:"error"`
}

// UploadResponse is the payload of POST /documents/upload.
type UploadResponse struct {
	DocumentID  int64                   `json:"document_id" example:"42"`
	Status      domain.ProcessingStatus `json:"status" example:"processed"`
	ErrorLog    *string                 `json:"error_log"`
	LineItems   []domain.LineItem       `json:"line_items"`
	SkippedRows []extract.RowResult     `json:"skipped_rows"`
	Archived    bool                    `json:"archived" example:"false"`
}

// OriginalURLResponse is the payload of GET /documents/{id}/original.
type OriginalURLResponse struct {
	URL string `json:"url" example:"https://invoices.s3.amazonaws.com/documents/42/scan.pdf?X-Amz-Signature=..."`
}

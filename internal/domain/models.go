package domain

import (
	"strings"
	"time"
)

// Document is one ingested invoice: the header fields extracted from OCR text
// plus enough state (status, error log, raw text) to diagnose a failed attempt.
type Document struct {
	ID               int64            `db:"id" json:"id"`
	Filename         string           `db:"filename" json:"filename"`
	UploadDate       time.Time        `db:"upload_date" json:"upload_date"`
	ProcessingStatus ProcessingStatus `db:"processing_status" json:"processing_status"`
	OCRConfidence    *float64         `db:"ocr_confidence" json:"ocr_confidence"`
	RawText          string           `db:"raw_text" json:"raw_text"`
	ErrorLog         *string          `db:"error_log" json:"error_log"`

	InvoiceNumber *string `db:"invoice_number" json:"invoice_number"`
	Date          *string `db:"date" json:"date"`
	DueDate       *string `db:"due_date" json:"due_date"`

	VendorName    *string `db:"vendor_name" json:"vendor_name"`
	VendorAddress *string `db:"vendor_address" json:"vendor_address"`
	VendorPhone   *string `db:"vendor_phone" json:"vendor_phone"`
	VendorEmail   *string `db:"vendor_email" json:"vendor_email"`

	Subtotal    *float64 `db:"subtotal" json:"subtotal"`
	TaxAmount   *float64 `db:"tax_amount" json:"tax_amount"`
	TotalAmount *float64 `db:"total_amount" json:"total_amount"`
	Currency    *string  `db:"currency" json:"currency"`

	PaymentTerms *string `db:"payment_terms" json:"payment_terms"`
	PONumber     *string `db:"po_number" json:"po_number"`
}

// LineItem is one itemized charge owned by a Document.
type LineItem struct {
	ID          int64    `db:"id" json:"id"`
	DocumentID  int64    `db:"document_id" json:"document_id"`
	Description *string  `db:"description" json:"description"`
	Quantity    *float64 `db:"quantity" json:"quantity"`
	UnitPrice   *float64 `db:"unit_price" json:"unit_price"`
	LineTotal   *float64 `db:"line_total" json:"line_total"`
}

// DeriveTotal fills LineTotal with Quantity × UnitPrice when it is absent and
// both factors are present. It never overwrites an existing total.
func (li *LineItem) DeriveTotal() {
	if li.LineTotal != nil || li.Quantity == nil || li.UnitPrice == nil {
		return
	}
	total := *li.Quantity * *li.UnitPrice
	li.LineTotal = &total
}

// DocumentDetail is a Document together with its full line-item set.
type DocumentDetail struct {
	Document
	LineItems []LineItem `json:"line_items"`
}

// AppendErrorLog appends msg to the document's error log, keeping any prior
// failure reason in front.
func (d *Document) AppendErrorLog(msg string) {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return
	}
	if d.ErrorLog == nil || strings.TrimSpace(*d.ErrorLog) == "" {
		d.ErrorLog = &msg
		return
	}
	joined := *d.ErrorLog + " | " + msg
	d.ErrorLog = &joined
}

// StringPtr returns a pointer to s, or nil when s is blank.
func StringPtr(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

// Float64Ptr returns a pointer to v.
func Float64Ptr(v float64) *float64 {
	return &v
}

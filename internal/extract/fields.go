package extract

import (
	"regexp"
	"strings"

	"invoiceocr/internal/domain"
)

// Field names produced by ExtractFields.
const (
	FieldInvoiceNumber = "invoice_number"
	FieldDate          = "date"
	FieldTotalAmount   = "total_amount"
	FieldVendorName    = "vendor_name"
)

// HeaderFieldNames lists the keys of HeaderFields.Map in a stable order.
var HeaderFieldNames = []string{FieldInvoiceNumber, FieldDate, FieldTotalAmount, FieldVendorName}

// HeaderFields is the fixed-shape result of the core pattern rules. A nil
// member means the rule found no match.
type HeaderFields struct {
	InvoiceNumber *string `json:"invoice_number"`
	Date          *string `json:"date"`
	TotalAmount   *string `json:"total_amount"`
	VendorName    *string `json:"vendor_name"`
}

// Map returns exactly the four header keys.
func (h HeaderFields) Map() map[string]*string {
	return map[string]*string{
		FieldInvoiceNumber: h.InvoiceNumber,
		FieldDate:          h.Date,
		FieldTotalAmount:   h.TotalAmount,
		FieldVendorName:    h.VendorName,
	}
}

// Core rules. Each captures the value right after its label; the first
// occurrence in document order wins.
var (
	reInvoiceNumber = regexp.MustCompile(`(?i)Invoice\s*Number[:\s]*([\w-]+)`)
	reDate          = regexp.MustCompile(`(?i)Date[:\s]*([\d/-]+)`)
	reTotalAmount   = regexp.MustCompile(`(?i)Total[:\s]*([\d,.]+)`)
	reVendorName    = regexp.MustCompile(`(?i)(?:From|Vendor|Supplier)[:\s]*(.+)`)
)

// Extended rules for the remaining header columns.
var (
	reDueDate       = regexp.MustCompile(`(?i)Due\s*Date[:\s]*([\d/-]+)`)
	reSubtotal      = regexp.MustCompile(`(?i)Sub\s*-?\s*Total[:\s]*[$€£¥₹]?\s*([\d,.]+)`)
	reTaxAmount     = regexp.MustCompile(`(?i)\b(?:Tax|VAT|GST)(?:\s*Amount)?[:\s]*[$€£¥₹]?\s*([\d,.]+)`)
	reCurrencyLabel = regexp.MustCompile(`(?i)Currency[:\s]*([A-Za-z]{3})\b`)
	reCurrencyCode  = regexp.MustCompile(`\b(USD|EUR|GBP|CAD|AUD|INR|JPY|CHF|CNY)\b`)
	reCurrencySym   = regexp.MustCompile(`[$€£¥₹]`)
	rePaymentTerms  = regexp.MustCompile(`(?i)Payment\s*Terms[:\s]*(.+)|\b(Net\s*\d{1,3})\b`)
	rePONumber      = regexp.MustCompile(`(?i)\b(?:P\.?O\.?|Purchase\s+Order)(?:\s*(?:Number|No\.?))?\s*[:#]\s*([\w-]+)`)
	reVendorEmail   = regexp.MustCompile(`([\w.+-]+@[\w-]+(?:\.[\w-]+)+)`)
	reVendorPhone   = regexp.MustCompile(`(?i)\b(?:Phone|Tel|Telephone|Ph)\.?[:\s]*(\+?[\d(][\d\s().-]{5,}\d)`)
	reVendorAddress = regexp.MustCompile(`(?i)\bAddress[:\s]*(.+)`)
)

var currencySymbols = map[string]string{
	"$": "USD",
	"€": "EUR",
	"£": "GBP",
	"¥": "JPY",
	"₹": "INR",
}

// ExtractFields applies the four core rules to text. It never fails: a rule
// that does not match leaves its field nil.
func ExtractFields(text string) HeaderFields {
	return HeaderFields{
		InvoiceNumber: firstMatch(reInvoiceNumber, text),
		Date:          firstMatch(reDate, text),
		TotalAmount:   firstMatch(reTotalAmount, text),
		VendorName:    firstMatch(reVendorName, text),
	}
}

// DocumentFields holds raw string captures for every header column of a
// document. Money members stay unparsed until ApplyTo.
type DocumentFields struct {
	HeaderFields

	DueDate       *string `json:"due_date"`
	VendorAddress *string `json:"vendor_address"`
	VendorPhone   *string `json:"vendor_phone"`
	VendorEmail   *string `json:"vendor_email"`
	Subtotal      *string `json:"subtotal"`
	TaxAmount     *string `json:"tax_amount"`
	Currency      *string `json:"currency"`
	PaymentTerms  *string `json:"payment_terms"`
	PONumber      *string `json:"po_number"`
}

// ExtractDocumentFields runs the core rules plus the extended header rules.
func ExtractDocumentFields(text string) DocumentFields {
	return DocumentFields{
		HeaderFields:  ExtractFields(text),
		DueDate:       firstMatch(reDueDate, text),
		VendorAddress: firstMatch(reVendorAddress, text),
		VendorPhone:   firstMatch(reVendorPhone, text),
		VendorEmail:   firstMatch(reVendorEmail, text),
		Subtotal:      firstMatch(reSubtotal, text),
		TaxAmount:     firstMatch(reTaxAmount, text),
		Currency:      detectCurrency(text),
		PaymentTerms:  firstMatch(rePaymentTerms, text),
		PONumber:      firstMatch(rePONumber, text),
	}
}

// ApplyTo copies the captured fields onto doc. Money captures that do not
// parse as numbers are left nil.
func (f DocumentFields) ApplyTo(doc *domain.Document) {
	doc.InvoiceNumber = f.InvoiceNumber
	doc.Date = f.Date
	doc.DueDate = f.DueDate
	doc.VendorName = f.VendorName
	doc.VendorAddress = f.VendorAddress
	doc.VendorPhone = f.VendorPhone
	doc.VendorEmail = f.VendorEmail
	doc.Subtotal = amountPtr(f.Subtotal)
	doc.TaxAmount = amountPtr(f.TaxAmount)
	doc.TotalAmount = amountPtr(f.TotalAmount)
	doc.Currency = f.Currency
	doc.PaymentTerms = f.PaymentTerms
	doc.PONumber = f.PONumber
}

func amountPtr(s *string) *float64 {
	if s == nil {
		return nil
	}
	v, ok := ParseAmount(*s)
	if !ok {
		return nil
	}
	return &v
}

func detectCurrency(text string) *string {
	if c := firstMatch(reCurrencyLabel, text); c != nil {
		code := strings.ToUpper(*c)
		return &code
	}
	if c := firstMatch(reCurrencyCode, text); c != nil {
		return c
	}
	if sym := reCurrencySym.FindString(text); sym != "" {
		code := currencySymbols[sym]
		return &code
	}
	return nil
}

// firstMatch returns the first non-empty capture group of the leftmost match.
func firstMatch(re *regexp.Regexp, text string) *string {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	for _, g := range m[1:] {
		if v := strings.TrimSpace(g); v != "" {
			return &v
		}
	}
	return nil
}

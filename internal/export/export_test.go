package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"invoiceocr/internal/domain"
)

func sampleDetails() []domain.DocumentDetail {
	uploaded := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	return []domain.DocumentDetail{
		{
			Document: domain.Document{
				ID:               7,
				Filename:         "acme.png",
				UploadDate:       uploaded,
				ProcessingStatus: domain.StatusProcessed,
				InvoiceNumber:    domain.StringPtr("INV-7"),
				VendorName:       domain.StringPtr("Acme, Inc."),
				TotalAmount:      domain.Float64Ptr(25),
			},
			LineItems: []domain.LineItem{
				{Description: domain.StringPtr("Widget A"), Quantity: domain.Float64Ptr(2), UnitPrice: domain.Float64Ptr(10), LineTotal: domain.Float64Ptr(20)},
				{Description: domain.StringPtr("Widget B"), Quantity: domain.Float64Ptr(1), UnitPrice: domain.Float64Ptr(5), LineTotal: domain.Float64Ptr(5)},
			},
		},
		{
			Document: domain.Document{
				ID:               8,
				Filename:         "blurry.jpg",
				UploadDate:       uploaded,
				ProcessingStatus: domain.StatusFailed,
			},
		},
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseFormat("XLSX")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)

	_, err = ParseFormat("pdf")
	assert.Error(t, err)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleDetails()))

	require.True(t, bytes.HasPrefix(buf.Bytes(), BOM))
	records, err := csv.NewReader(bytes.NewReader(buf.Bytes()[len(BOM):])).ReadAll()
	require.NoError(t, err)

	require.Len(t, records, 4)
	assert.Equal(t, Columns(), records[0])

	assert.Equal(t, "7", records[1][0])
	assert.Equal(t, "Acme, Inc.", records[1][7])
	assert.Equal(t, "25.00", records[1][10])
	assert.Equal(t, "1", records[1][12])
	assert.Equal(t, "Widget A", records[1][13])
	assert.Equal(t, "2", records[1][14])
	assert.Equal(t, "20.00", records[1][16])
	assert.Equal(t, "2", records[2][12])

	// no line items: one row, item columns blank
	assert.Equal(t, "8", records[3][0])
	assert.Equal(t, "failed", records[3][3])
	assert.Equal(t, "", records[3][13])
	assert.Equal(t, "", records[3][10])
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatXLSX, sampleDetails()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Document ID", rows[0][0])
	assert.Equal(t, "Widget B", rows[2][13])

	v, err := f.GetCellValue(sheetName, "Q2")
	require.NoError(t, err)
	assert.Equal(t, "20", v)
}

func TestBuildFilename(t *testing.T) {
	now := time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "invoices_2024-05-06.xlsx", BuildFilename("invoices", FormatXLSX, now))
	assert.Equal(t, "my_invoices_2024-05-06.csv", BuildFilename("my  invoices!", FormatCSV, now))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "a_b-c", SanitizeFilename("__a b-c__"))
	assert.Len(t, SanitizeFilename(string(bytes.Repeat([]byte("x"), 150))), 100)
}

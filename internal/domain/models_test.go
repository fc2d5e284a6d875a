package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineItem_DeriveTotal(t *testing.T) {
	li := LineItem{Quantity: Float64Ptr(3), UnitPrice: Float64Ptr(2.5)}
	li.DeriveTotal()
	require.NotNil(t, li.LineTotal)
	assert.Equal(t, 7.5, *li.LineTotal)
}

func TestLineItem_DeriveTotal_KeepsExisting(t *testing.T) {
	li := LineItem{Quantity: Float64Ptr(3), UnitPrice: Float64Ptr(2.5), LineTotal: Float64Ptr(8)}
	li.DeriveTotal()
	assert.Equal(t, 8.0, *li.LineTotal)
}

func TestLineItem_DeriveTotal_MissingFactor(t *testing.T) {
	li := LineItem{Quantity: Float64Ptr(3)}
	li.DeriveTotal()
	assert.Nil(t, li.LineTotal)
}

func TestDocument_AppendErrorLog(t *testing.T) {
	var d Document
	d.AppendErrorLog("")
	assert.Nil(t, d.ErrorLog)

	d.AppendErrorLog("could not read image")
	require.NotNil(t, d.ErrorLog)
	assert.Equal(t, "could not read image", *d.ErrorLog)

	d.AppendErrorLog("DB Save Error: disk full")
	assert.Equal(t, "could not read image | DB Save Error: disk full", *d.ErrorLog)
}

func TestProcessingStatus_Valid(t *testing.T) {
	assert.True(t, StatusFailedDBSave.Valid())
	assert.False(t, ProcessingStatus("done").Valid())
}

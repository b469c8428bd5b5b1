package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/bartek5186/woo2mag/internal/db"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteInventory(t *testing.T) {
	parent := int64(1)
	items := []db.InventoryItem{
		{ID: 1, ExternalID: 1, Title: "Shirt", Price: decimal.RequireFromString("19.99"), Stock: 10, LowStockThreshold: 5, Notes: db.NoteVariableParent},
		{ID: 2, ExternalID: 77, Title: "Shirt - Red", Stock: 0, LowStockThreshold: 5, IsLowStock: true, ParentExternalID: &parent, Notes: "variation-of:1",
			LastUpdated: time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteInventory(&buf, items))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())
	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Title", rows[0][2])
	assert.Equal(t, "Shirt", rows[1][2])
	assert.Equal(t, "19.99", rows[1][5])
	assert.Equal(t, "YES", rows[2][8])
	assert.Equal(t, "1", rows[2][9])
	assert.Equal(t, "2026-05-01 08:00:00", rows[2][11])

	lowStyle, err := f.GetCellStyle(SheetName, "C3")
	require.NoError(t, err)
	plainStyle, err := f.GetCellStyle(SheetName, "C2")
	require.NoError(t, err)
	assert.NotEqual(t, lowStyle, plainStyle)
}

func TestWriteInventory_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteInventory(&buf, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

// Package export zapisuje magazyn do arkusza xlsx.
package export

import (
	"fmt"
	"io"

	"github.com/bartek5186/woo2mag/internal/db"
	"github.com/xuri/excelize/v2"
)

const SheetName = "Inventory"

type column struct {
	title string
	width float64
	value func(it db.InventoryItem) any
}

var columns = []column{
	{"ID", 8, func(it db.InventoryItem) any { return it.ID }},
	{"External ID", 12, func(it db.InventoryItem) any { return it.ExternalID }},
	{"Title", 48, func(it db.InventoryItem) any { return it.Title }},
	{"SKU", 18, func(it db.InventoryItem) any { return it.SKU }},
	{"Category", 22, func(it db.InventoryItem) any { return it.Category }},
	{"Price", 12, func(it db.InventoryItem) any { return it.Price.InexactFloat64() }},
	{"Stock", 10, func(it db.InventoryItem) any { return it.Stock }},
	{"Low stock threshold", 12, func(it db.InventoryItem) any { return it.LowStockThreshold }},
	{"Low stock", 10, func(it db.InventoryItem) any {
		if it.IsLowStock {
			return "YES"
		}
		return ""
	}},
	{"Parent ID", 12, func(it db.InventoryItem) any {
		if it.ParentExternalID == nil {
			return ""
		}
		return *it.ParentExternalID
	}},
	{"Notes", 24, func(it db.InventoryItem) any { return it.Notes }},
	{"Last updated", 20, func(it db.InventoryItem) any {
		if it.LastUpdated.IsZero() {
			return ""
		}
		return it.LastUpdated.UTC().Format("2006-01-02 15:04:05")
	}},
}

// WriteInventory - nagłówek pogrubiony, wiersze z niskim stanem podświetlone
func WriteInventory(w io.Writer, items []db.InventoryItem) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
	})
	if err != nil {
		return err
	}
	lowStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"F8CBAD"}, Pattern: 1},
	})
	if err != nil {
		return err
	}
	priceFmt := "0.00"
	priceStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &priceFmt})
	if err != nil {
		return err
	}

	for i, col := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(SheetName, cell, col.title); err != nil {
			return err
		}
		colName, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(SheetName, colName, colName, col.width)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(columns))
	if err := f.SetCellStyle(SheetName, "A1", lastCol+"1", headerStyle); err != nil {
		return err
	}

	priceCol, _ := excelize.ColumnNumberToName(6)
	for r, it := range items {
		row := r + 2
		for c, col := range columns {
			cell, _ := excelize.CoordinatesToCellName(c+1, row)
			if err := f.SetCellValue(SheetName, cell, col.value(it)); err != nil {
				return fmt.Errorf("row %d: %w", row, err)
			}
		}
		first, last := fmt.Sprintf("A%d", row), fmt.Sprintf("%s%d", lastCol, row)
		if it.IsLowStock {
			_ = f.SetCellStyle(SheetName, first, last, lowStyle)
		} else {
			_ = f.SetCellStyle(SheetName, fmt.Sprintf("%s%d", priceCol, row), fmt.Sprintf("%s%d", priceCol, row), priceStyle)
		}
	}

	// zamrożony nagłówek + autofiltr
	_ = f.SetPanes(SheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
	if len(items) > 0 {
		_ = f.AutoFilter(SheetName, fmt.Sprintf("A1:%s%d", lastCol, len(items)+1), nil)
	}

	idx, _ := f.GetSheetIndex(SheetName)
	f.SetActiveSheet(idx)
	_, err = f.WriteTo(w)
	return err
}

// Package export renders a batch of document records into an Excel report.
package export

import (
	"bytes"
	"fmt"

	"github.com/talkoren/invoice-intake/internal/models"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const sheetName = "Invoices"

var headers = []string{
	"File", "Supplier", "Invoice Number", "Invoice Date", "Due Date",
	"Currency", "Subtotal", "VAT", "Total", "Type", "Status", "Confidence",
}

// Exporter writes batch reports.
type Exporter struct {
	logger *zap.Logger
}

// NewExporter creates an exporter.
func NewExporter(logger *zap.Logger) *Exporter {
	return &Exporter{logger: logger}
}

// BuildReport renders the records into an xlsx workbook, one row per
// document, and returns the serialized file.
func (e *Exporter) BuildReport(records []models.DocumentRecord) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to drop default sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		e.setCell(f, cell, h)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for i, rec := range records {
		row := i + 2
		values := []interface{}{
			rec.FileName,
			rec.SupplierName,
			rec.InvoiceNumber,
			rec.InvoiceDate,
			rec.DueDate,
			rec.Currency,
			amountCell(rec.Subtotal),
			amountCell(rec.TaxAmount),
			amountCell(rec.Total),
			string(rec.DocumentType),
			string(rec.Status),
			amountCell(rec.Confidence),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			e.setCell(f, cell, v)
		}
	}

	_ = f.SetColWidth(sheetName, "A", "C", 24)
	_ = f.SetColWidth(sheetName, "D", "L", 14)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize report: %w", err)
	}

	e.logger.Info("Batch report built", zap.Int("records", len(records)))
	return buf, nil
}

func (e *Exporter) setCell(f *excelize.File, cell string, value interface{}) {
	if err := f.SetCellValue(sheetName, cell, value); err != nil {
		e.logger.Warn("Failed to set cell",
			zap.String("cell", cell),
			zap.Error(err))
	}
}

// amountCell keeps absent amounts as empty cells rather than zeros.
func amountCell(v *float64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/talkoren/invoice-intake/internal/models"
	"github.com/talkoren/invoice-intake/pkg/database"
	"github.com/talkoren/invoice-intake/pkg/utils"
	"go.uber.org/zap"
)

// BatchWriter implements the persistence service's two operations: the
// conflict pre-check and the upserting batch write. A conflict is a business
// rule, not a storage error: the same invoice number for the same customer.
type BatchWriter struct {
	db        *database.DB
	suppliers *SupplierRepository
	invoices  *InvoiceRepository
	logger    *zap.Logger
}

// NewBatchWriter creates a batch writer over the repositories.
func NewBatchWriter(db *database.DB, suppliers *SupplierRepository, invoices *InvoiceRepository, logger *zap.Logger) *BatchWriter {
	return &BatchWriter{
		db:        db,
		suppliers: suppliers,
		invoices:  invoices,
		logger:    logger,
	}
}

// CheckConflicts evaluates the candidate batch without writing anything.
// A duplicate number under the same supplier reports as "duplicate"; the
// same number under a different supplier reports as "number_reuse".
func (w *BatchWriter) CheckConflicts(ctx context.Context, req models.ConflictCheckRequest) (*models.ConflictReport, error) {
	report := &models.ConflictReport{Conflicts: []models.Conflict{}}

	for _, p := range req.Invoices {
		if p.InvoiceNumber == "" {
			continue
		}
		existing, err := w.invoices.findByNumber(nil, req.CustomerID, p.InvoiceNumber)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			continue
		}

		conflict := models.Conflict{
			InvoiceNumber: p.InvoiceNumber,
			Type:          models.ConflictTypeNumberReuse,
			Message: fmt.Sprintf("invoice number %q already recorded under supplier %q",
				p.InvoiceNumber, existing.SupplierName),
		}
		if sameSupplier(existing, p) {
			conflict.Type = models.ConflictTypeDuplicate
			conflict.Message = fmt.Sprintf("invoice %q from %q is already recorded",
				p.InvoiceNumber, existing.SupplierName)
		}
		report.Conflicts = append(report.Conflicts, conflict)
	}

	report.HasConflicts = len(report.Conflicts) > 0
	if report.HasConflicts {
		w.logger.Info("Conflict check found matches",
			zap.Int64("customer_id", req.CustomerID),
			zap.Int("conflicts", len(report.Conflicts)))
	}
	return report, nil
}

// CommitBatch persists the batch row by row. Each row gets its own transaction so
// one bad document never poisons the rest: failures come back as per-row
// errors in the response, not as a failed request. Rows whose invoice number
// already exists for the customer are updated in place.
func (w *BatchWriter) CommitBatch(ctx context.Context, req models.CommitRequest) (*models.CommitResponse, error) {
	resp := &models.CommitResponse{Results: make([]models.CommitRow, 0, len(req.Invoices))}

	for i, p := range req.Invoices {
		row := models.CommitRow{Index: i, InvoiceNumber: p.InvoiceNumber}

		if err := validatePayload(p); err != nil {
			row.Error = err.Error()
			resp.Results = append(resp.Results, row)
			continue
		}

		err := w.db.WithTransaction(func(tx *sql.Tx) error {
			return w.writeRow(tx, req.CustomerID, p, &row)
		})
		if err != nil {
			w.logger.Warn("Invoice row failed to persist",
				zap.Int("index", i),
				zap.String("invoice_number", p.InvoiceNumber),
				zap.Error(err))
			row.Error = err.Error()
		}
		resp.Results = append(resp.Results, row)
	}
	return resp, nil
}

// writeRow upserts one invoice inside tx, filling the row result.
func (w *BatchWriter) writeRow(tx *sql.Tx, customerID int64, p models.InvoicePayload, row *models.CommitRow) error {
	supplierID := p.SupplierID
	if supplierID == nil && p.SupplierName != "" {
		id, created, err := w.suppliers.FindOrCreate(tx, customerID, p.SupplierName)
		if err != nil {
			return err
		}
		supplierID = &id
		row.SupplierCreated = created
	}
	row.SupplierID = supplierID

	existing, err := w.invoices.findByNumber(tx, customerID, p.InvoiceNumber)
	if err != nil {
		return err
	}

	if existing != nil {
		if err := w.invoices.Update(tx, existing.ID, supplierID, p); err != nil {
			return err
		}
		row.InsertedID = &existing.ID
		row.IsUpdate = true
		return nil
	}

	id, err := w.invoices.Insert(tx, customerID, supplierID, p)
	if err != nil {
		return err
	}
	row.InsertedID = &id
	return nil
}

// sameSupplier decides whether a candidate and an existing invoice belong to
// the same supplier, by id when both sides carry one, by name otherwise.
func sameSupplier(existing *existingInvoice, p models.InvoicePayload) bool {
	if p.SupplierID != nil && existing.SupplierID != nil {
		return *p.SupplierID == *existing.SupplierID
	}
	return p.SupplierName != "" && p.SupplierName == existing.SupplierName
}

// validatePayload enforces the fields the schema cannot default.
func validatePayload(p models.InvoicePayload) error {
	if p.InvoiceNumber == "" {
		return fmt.Errorf("invoice number is required")
	}
	if p.InvoiceDate == "" {
		return fmt.Errorf("invoice date is required")
	}
	if err := utils.ValidateISODate(p.InvoiceDate); err != nil {
		return fmt.Errorf("invoice date: %w", err)
	}
	if p.DueDate != "" {
		if err := utils.ValidateISODate(p.DueDate); err != nil {
			return fmt.Errorf("due date: %w", err)
		}
	}
	if p.Currency == "" {
		return fmt.Errorf("currency is required")
	}
	if err := utils.ValidateCurrency(p.Currency); err != nil {
		return err
	}
	if err := utils.ValidateAmount(p.Total); err != nil {
		return fmt.Errorf("total: %w", err)
	}
	return nil
}

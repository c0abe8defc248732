package repository

import (
	"database/sql"
	"fmt"

	"github.com/talkoren/invoice-intake/internal/models"
	"go.uber.org/zap"
)

// InvoiceRepository handles invoice database operations.
type InvoiceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInvoiceRepository creates a new invoice repository.
func NewInvoiceRepository(db *sql.DB, logger *zap.Logger) *InvoiceRepository {
	return &InvoiceRepository{
		db:     db,
		logger: logger,
	}
}

// existingInvoice is what the conflict query needs to know about a match.
type existingInvoice struct {
	ID           int64
	SupplierID   *int64
	SupplierName string
}

// findByNumber returns the invoice with this number for the customer, if any.
func (r *InvoiceRepository) findByNumber(tx *sql.Tx, customerID int64, number string) (*existingInvoice, error) {
	query := `
		SELECT i.id, i.supplier_id, COALESCE(s.name, '')
		FROM invoices i
		LEFT JOIN suppliers s ON s.id = i.supplier_id
		WHERE i.customer_id = ? AND i.invoice_number = ?
		LIMIT 1
	`

	var inv existingInvoice
	err := r.queryRow(tx, query, customerID, number).
		Scan(&inv.ID, &inv.SupplierID, &inv.SupplierName)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to query invoice by number", zap.Error(err))
		return nil, fmt.Errorf("failed to query invoice by number: %w", err)
	}
	return &inv, nil
}

// Insert persists a new invoice row and returns its id.
func (r *InvoiceRepository) Insert(tx *sql.Tx, customerID int64, supplierID *int64, p models.InvoicePayload) (int64, error) {
	query := `
		INSERT INTO invoices (
			customer_id, supplier_id, invoice_number, invoice_date, due_date,
			payment_terms, currency, subtotal, vat_amount, total,
			expense_account_id, deductible_pct, doc_name, doc_full_path,
			document_type, status, ocr_confidence, ocr_language, ocr_metadata,
			needs_review
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.exec(tx, query,
		customerID,
		supplierID,
		p.InvoiceNumber,
		p.InvoiceDate,
		p.DueDate,
		p.PaymentTerms,
		p.Currency,
		p.Subtotal,
		p.VATAmount,
		p.Total,
		p.ExpenseAccountID,
		p.DeductiblePct,
		p.DocName,
		p.DocFullPath,
		p.DocumentType,
		p.Status,
		p.OCRConfidence,
		p.OCRLanguage,
		string(p.OCRMetadata),
		p.NeedsReview,
	)
	if err != nil {
		r.logger.Error("Failed to insert invoice",
			zap.String("invoice_number", p.InvoiceNumber),
			zap.Error(err))
		return 0, fmt.Errorf("failed to insert invoice: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get invoice id: %w", err)
	}
	return id, nil
}

// Update overwrites the mutable fields of an existing invoice row.
func (r *InvoiceRepository) Update(tx *sql.Tx, id int64, supplierID *int64, p models.InvoicePayload) error {
	query := `
		UPDATE invoices SET
			supplier_id = ?, invoice_date = ?, due_date = ?, payment_terms = ?,
			currency = ?, subtotal = ?, vat_amount = ?, total = ?,
			expense_account_id = ?, deductible_pct = ?, doc_name = ?,
			doc_full_path = ?, document_type = ?, status = ?,
			ocr_confidence = ?, ocr_language = ?, ocr_metadata = ?,
			needs_review = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	_, err := r.exec(tx, query,
		supplierID,
		p.InvoiceDate,
		p.DueDate,
		p.PaymentTerms,
		p.Currency,
		p.Subtotal,
		p.VATAmount,
		p.Total,
		p.ExpenseAccountID,
		p.DeductiblePct,
		p.DocName,
		p.DocFullPath,
		p.DocumentType,
		p.Status,
		p.OCRConfidence,
		p.OCRLanguage,
		string(p.OCRMetadata),
		p.NeedsReview,
		id,
	)
	if err != nil {
		r.logger.Error("Failed to update invoice",
			zap.Int64("invoice_id", id),
			zap.Error(err))
		return fmt.Errorf("failed to update invoice: %w", err)
	}
	return nil
}

// ListByCustomer returns a customer's invoices, newest first.
func (r *InvoiceRepository) ListByCustomer(customerID int64) ([]models.Invoice, error) {
	query := `
		SELECT id, customer_id, supplier_id, invoice_number, invoice_date,
			COALESCE(due_date, ''), COALESCE(payment_terms, ''), currency,
			subtotal, vat_amount, total, expense_account_id, deductible_pct,
			COALESCE(doc_name, ''), COALESCE(doc_full_path, ''),
			document_type, status, ocr_confidence, COALESCE(ocr_language, ''),
			needs_review, created_at, updated_at
		FROM invoices
		WHERE customer_id = ?
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.db.Query(query, customerID)
	if err != nil {
		r.logger.Error("Failed to list invoices", zap.Error(err))
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []models.Invoice
	for rows.Next() {
		var inv models.Invoice
		if err := rows.Scan(
			&inv.ID, &inv.CustomerID, &inv.SupplierID, &inv.InvoiceNumber,
			&inv.InvoiceDate, &inv.DueDate, &inv.PaymentTerms, &inv.Currency,
			&inv.Subtotal, &inv.VATAmount, &inv.Total, &inv.ExpenseAccountID,
			&inv.DeductiblePct, &inv.DocName, &inv.DocFullPath,
			&inv.DocumentType, &inv.Status, &inv.OCRConfidence,
			&inv.OCRLanguage, &inv.NeedsReview, &inv.CreatedAt, &inv.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan invoice row: %w", err)
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

func (r *InvoiceRepository) queryRow(tx *sql.Tx, query string, args ...interface{}) *sql.Row {
	if tx != nil {
		return tx.QueryRow(query, args...)
	}
	return r.db.QueryRow(query, args...)
}

func (r *InvoiceRepository) exec(tx *sql.Tx, query string, args ...interface{}) (sql.Result, error) {
	if tx != nil {
		return tx.Exec(query, args...)
	}
	return r.db.Exec(query, args...)
}

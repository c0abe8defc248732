package models

import "time"

// Invoice is a persisted invoice row.
type Invoice struct {
	ID               int64     `json:"id"`
	CustomerID       int64     `json:"customerId"`
	SupplierID       *int64    `json:"supplierId,omitempty"`
	InvoiceNumber    string    `json:"invoiceNumber"`
	InvoiceDate      string    `json:"invoiceDate"`
	DueDate          string    `json:"dueDate,omitempty"`
	PaymentTerms     string    `json:"paymentTerms,omitempty"`
	Currency         string    `json:"currency"`
	Subtotal         float64   `json:"subtotal"`
	VATAmount        float64   `json:"vatAmount"`
	Total            float64   `json:"total"`
	ExpenseAccountID *int64    `json:"expenseAccountId,omitempty"`
	DeductiblePct    *float64  `json:"deductiblePct,omitempty"`
	DocName          string    `json:"docName,omitempty"`
	DocFullPath      string    `json:"docFullPath,omitempty"`
	DocumentType     string    `json:"documentType"`
	Status           string    `json:"status"`
	OCRConfidence    *float64  `json:"ocrConfidence,omitempty"`
	OCRLanguage      string    `json:"ocrLanguage,omitempty"`
	NeedsReview      bool      `json:"needsReview"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Supplier is a persisted supplier row, scoped to a customer.
type Supplier struct {
	ID         int64     `json:"id"`
	CustomerID int64     `json:"customerId"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Conflict type constants reported by the conflict check.
const (
	ConflictTypeDuplicate   = "duplicate"
	ConflictTypeNumberReuse = "number_reuse"
)

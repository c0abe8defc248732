package models

import "encoding/json"

// ExtractionPage is one response from the extraction service covering a
// contiguous slice of the discovered document set.
type ExtractionPage struct {
	Results      []DocumentRecord `json:"results"`
	Errors       []string         `json:"errors"`
	TotalFiles   int              `json:"totalFiles"`
	FilesHandled int              `json:"filesHandled"`
	VATRate      *float64         `json:"vatRate,omitempty"`
}

// ExtractionRequest is the per-page request sent to the extraction service.
type ExtractionRequest struct {
	Path              string `json:"path"`
	Recursive         bool   `json:"recursive"`
	LanguageDetection bool   `json:"languageDetection"`
	StartingPoint     int    `json:"startingPoint"`
}

// OCRMetadata is the opaque extraction detail persisted alongside an invoice.
type OCRMetadata struct {
	FieldConfidence map[string]float64     `json:"fieldConfidence,omitempty"`
	BoundingBoxes   map[string]BoundingBox `json:"boundingBoxes,omitempty"`
	PageCount       int                    `json:"pageCount,omitempty"`
}

// InvoicePayload is one row of a persistence request.
type InvoicePayload struct {
	SupplierID       *int64          `json:"supplierId,omitempty"`
	SupplierName     string          `json:"supplierName,omitempty"`
	InvoiceNumber    string          `json:"invoiceNumber"`
	InvoiceDate      string          `json:"invoiceDate"`
	DueDate          string          `json:"dueDate,omitempty"`
	PaymentTerms     string          `json:"paymentTerms,omitempty"`
	Currency         string          `json:"currency"`
	Subtotal         float64         `json:"subtotal"`
	VATAmount        float64         `json:"vatAmount"`
	Total            float64         `json:"total"`
	ExpenseAccountID *int64          `json:"expenseAccountId,omitempty"`
	DeductiblePct    *float64        `json:"deductiblePct,omitempty"`
	DocName          string          `json:"docName,omitempty"`
	DocFullPath      string          `json:"docFullPath,omitempty"`
	DocumentType     string          `json:"documentType,omitempty"`
	Status           string          `json:"status,omitempty"`
	OCRConfidence    *float64        `json:"ocrConfidence,omitempty"`
	OCRLanguage      string          `json:"ocrLanguage,omitempty"`
	OCRMetadata      json.RawMessage `json:"ocrMetadata,omitempty"`
	NeedsReview      bool            `json:"needsReview,omitempty"`
}

// Conflict is one business-rule rejection reported by the conflict check.
type Conflict struct {
	InvoiceNumber string `json:"invoiceNumber"`
	Type          string `json:"type"`
	Message       string `json:"message"`
}

// ConflictReport is the result of a pre-commit conflict check. It is
// transient: discarded once the user dismisses or resolves it.
type ConflictReport struct {
	HasConflicts bool       `json:"hasConflicts"`
	Conflicts    []Conflict `json:"conflicts"`
}

// CommitRow is one per-record result inside a batch write response.
type CommitRow struct {
	Index           int    `json:"index"`
	InvoiceNumber   string `json:"invoiceNumber"`
	InsertedID      *int64 `json:"insertedId,omitempty"`
	SupplierID      *int64 `json:"supplierId,omitempty"`
	SupplierCreated bool   `json:"supplierCreated,omitempty"`
	IsUpdate        bool   `json:"isUpdate,omitempty"`
	Conflict        bool   `json:"conflict,omitempty"`
	Error           string `json:"error,omitempty"`
}

// CommitResponse is the persistence service's batch write response.
type CommitResponse struct {
	Results []CommitRow `json:"results"`
}

// ConflictCheckRequest is the body of a conflict pre-check call.
type ConflictCheckRequest struct {
	CustomerID int64            `json:"customerId"`
	Invoices   []InvoicePayload `json:"invoices"`
}

// CommitRequest is the body of a batch write call.
type CommitRequest struct {
	CustomerID int64            `json:"customerId"`
	Invoices   []InvoicePayload `json:"invoices"`
}

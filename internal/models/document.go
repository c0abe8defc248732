package models

// Language is the detected document language, which drives text direction.
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageHebrew  Language = "he"
)

// DocumentType classifies an extracted document.
type DocumentType string

const (
	DocumentTypeInvoice   DocumentType = "invoice"
	DocumentTypeReceipt   DocumentType = "receipt"
	DocumentTypeOther     DocumentType = "other"
	DocumentTypeUncertain DocumentType = "uncertain"
)

// DocumentStatus is the review lifecycle state of a record.
type DocumentStatus string

const (
	StatusPending  DocumentStatus = "pending"
	StatusApproved DocumentStatus = "approved"
	StatusExported DocumentStatus = "exported"
	StatusRejected DocumentStatus = "rejected"
)

// Point is a normalized (x, y) coordinate in [0, 1] page space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// BoundingBox locates an extracted field on a document page. The polygon
// holds four normalized points in reading order.
type BoundingBox struct {
	Polygon    []Point `json:"polygon"`
	PageNumber int     `json:"pageNumber"`
}

// LineItem is one itemized row extracted from a document.
type LineItem struct {
	Description string   `json:"description"`
	Quantity    *float64 `json:"quantity,omitempty"`
	UnitPrice   *float64 `json:"unitPrice,omitempty"`
	LineTotal   *float64 `json:"lineTotal,omitempty"`
}

// DocumentRecord is one extracted document held in a batch session.
// Subtotal, TaxAmount and Total are nil when the value is absent; a value
// that is not a finite number is never stored.
type DocumentRecord struct {
	FileName        string                 `json:"fileName"`
	SourcePath      string                 `json:"sourcePath"`
	FileURL         string                 `json:"fileUrl,omitempty"`
	Language        Language               `json:"language,omitempty"`
	DocumentType    DocumentType           `json:"documentType,omitempty"`
	SupplierName    string                 `json:"supplierName,omitempty"`
	InvoiceNumber   string                 `json:"invoiceNumber,omitempty"`
	InvoiceDate     string                 `json:"invoiceDate,omitempty"`
	DueDate         string                 `json:"dueDate,omitempty"`
	PaymentTerms    string                 `json:"paymentTerms,omitempty"`
	Currency        string                 `json:"currency,omitempty"`
	Subtotal        *float64               `json:"subtotal,omitempty"`
	TaxAmount       *float64               `json:"taxAmount,omitempty"`
	Total           *float64               `json:"total,omitempty"`
	Status          DocumentStatus         `json:"status,omitempty"`
	LineItems       []LineItem             `json:"lineItems,omitempty"`
	Confidence      *float64               `json:"confidence,omitempty"`
	FieldConfidence map[string]float64     `json:"fieldConfidence,omitempty"`
	BoundingBoxes   map[string]BoundingBox `json:"boundingBoxes,omitempty"`
	PageCount       int                    `json:"pageCount,omitempty"`
	SupplierID      *int64                 `json:"supplierId,omitempty"`
}

// Float returns a pointer to v, for building optional money fields.
func Float(v float64) *float64 {
	return &v
}

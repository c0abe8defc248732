// Package commit implements the conflict-aware two-phase batch commit: a
// pre-write conflict check over the candidate set, the persistence write, and
// the merge of server-assigned identifiers back into the session.
package commit

import (
	"encoding/json"

	"github.com/talkoren/invoice-intake/internal/models"
)

// Review thresholds applied when flagging a payload for manual review.
const reviewConfidenceFloor = 0.7

// PayloadDefaults are the fallbacks applied when a record is missing values
// the persistence contract requires.
type PayloadDefaults struct {
	Currency string
}

// BuildPayload translates one session record into a persistence row,
// applying the commit-time defaults.
func BuildPayload(rec models.DocumentRecord, defaults PayloadDefaults) models.InvoicePayload {
	p := models.InvoicePayload{
		SupplierID:    rec.SupplierID,
		SupplierName:  rec.SupplierName,
		InvoiceNumber: rec.InvoiceNumber,
		InvoiceDate:   rec.InvoiceDate,
		DueDate:       rec.DueDate,
		PaymentTerms:  rec.PaymentTerms,
		Currency:      rec.Currency,
		Subtotal:      amountOrZero(rec.Subtotal),
		VATAmount:     amountOrZero(rec.TaxAmount),
		Total:         amountOrZero(rec.Total),
		DocName:       rec.FileName,
		DocFullPath:   rec.SourcePath,
		DocumentType:  string(rec.DocumentType),
		Status:        string(rec.Status),
		OCRLanguage:   string(rec.Language),
	}

	if p.Currency == "" {
		p.Currency = defaults.Currency
	}
	if p.DocumentType == "" || p.DocumentType == string(models.DocumentTypeUncertain) {
		p.DocumentType = string(models.DocumentTypeInvoice)
	}
	if p.Status == "" {
		p.Status = string(models.StatusPending)
	}

	p.OCRConfidence = resolveConfidence(rec)
	p.NeedsReview = rec.DocumentType == models.DocumentTypeUncertain ||
		(p.OCRConfidence != nil && *p.OCRConfidence < reviewConfidenceFloor)

	if meta := buildMetadata(rec); meta != nil {
		p.OCRMetadata = meta
	}
	return p
}

// resolveConfidence prefers the record's overall score and falls back to the
// mean of the per-field scores.
func resolveConfidence(rec models.DocumentRecord) *float64 {
	if rec.Confidence != nil {
		return rec.Confidence
	}
	if len(rec.FieldConfidence) == 0 {
		return nil
	}
	var sum float64
	for _, v := range rec.FieldConfidence {
		sum += v
	}
	mean := sum / float64(len(rec.FieldConfidence))
	return &mean
}

// buildMetadata packs the extraction detail the persistence service stores
// opaquely. Returns nil when there is nothing worth keeping.
func buildMetadata(rec models.DocumentRecord) json.RawMessage {
	if len(rec.FieldConfidence) == 0 && len(rec.BoundingBoxes) == 0 && rec.PageCount == 0 {
		return nil
	}
	meta := models.OCRMetadata{
		FieldConfidence: rec.FieldConfidence,
		BoundingBoxes:   rec.BoundingBoxes,
		PageCount:       rec.PageCount,
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil
	}
	return raw
}

func amountOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

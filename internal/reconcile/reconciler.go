// Package reconcile maintains the subtotal + tax = total invariant on a
// document record as individual fields are edited.
package reconcile

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/talkoren/invoice-intake/internal/models"
)

// Field identifies an editable document field. The set is closed: editing an
// unknown field is a programming error, not a silent no-op.
type Field string

const (
	FieldSupplierName  Field = "supplierName"
	FieldInvoiceNumber Field = "invoiceNumber"
	FieldInvoiceDate   Field = "invoiceDate"
	FieldDueDate       Field = "dueDate"
	FieldPaymentTerms  Field = "paymentTerms"
	FieldCurrency      Field = "currency"
	FieldDocumentType  Field = "documentType"
	FieldStatus        Field = "status"
	FieldSubtotal      Field = "subtotal"
	FieldTaxAmount     Field = "taxAmount"
	FieldTotal         Field = "total"
)

// Round2 rounds a money value to 2 decimal places. Every derived amount goes
// through this to keep floating-point drift out of the invariant.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// parseAmount converts raw user input to a money value. Empty input and
// anything that does not parse to a finite number count as absent.
func parseAmount(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// finite returns a pointer to v, or nil when v is not a finite number.
// Derived values are never stored as NaN or Infinity.
func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Reconciler applies single-field edits to a record and recomputes the
// dependent financial fields. It is stateless and safe to share.
type Reconciler struct{}

// New creates a reconciler.
func New() *Reconciler {
	return &Reconciler{}
}

// Reconcile applies value to field on rec, recomputing dependent amounts so
// that total = Round2(subtotal + taxAmount) holds whenever all three are
// present. taxRate is a ratio (0.18 for 18% VAT). The record is mutated in
// place; no other record is touched.
func (r *Reconciler) Reconcile(rec *models.DocumentRecord, field Field, value string, taxRate float64) error {
	switch field {
	case FieldSupplierName:
		rec.SupplierName = value
	case FieldInvoiceNumber:
		rec.InvoiceNumber = value
	case FieldInvoiceDate:
		rec.InvoiceDate = value
	case FieldDueDate:
		rec.DueDate = value
	case FieldPaymentTerms:
		rec.PaymentTerms = value
	case FieldCurrency:
		rec.Currency = value
	case FieldDocumentType:
		rec.DocumentType = models.DocumentType(value)
	case FieldStatus:
		rec.Status = models.DocumentStatus(value)
	case FieldSubtotal:
		r.editSubtotal(rec, value, taxRate)
	case FieldTaxAmount:
		r.editTaxAmount(rec, value, taxRate)
	case FieldTotal:
		r.editTotal(rec, value, taxRate)
	default:
		return fmt.Errorf("unknown editable field %q", field)
	}
	return nil
}

// editSubtotal derives tax from the rate and total from the sum.
func (r *Reconciler) editSubtotal(rec *models.DocumentRecord, value string, taxRate float64) {
	v, ok := parseAmount(value)
	if !ok {
		rec.Subtotal = nil
		return
	}
	subtotal := Round2(v)
	rec.Subtotal = finite(subtotal)
	if rec.Subtotal == nil {
		return
	}
	tax := Round2(subtotal * taxRate)
	rec.TaxAmount = finite(tax)
	if rec.TaxAmount != nil {
		rec.Total = finite(Round2(subtotal + tax))
	}
}

// editTaxAmount inverts the rate to derive the subtotal. A zero rate cannot
// be inverted, so the subtotal is left as-is and only the total is refreshed.
func (r *Reconciler) editTaxAmount(rec *models.DocumentRecord, value string, taxRate float64) {
	v, ok := parseAmount(value)
	if !ok {
		rec.TaxAmount = nil
		return
	}
	tax := Round2(v)
	rec.TaxAmount = finite(tax)
	if rec.TaxAmount == nil {
		return
	}
	if taxRate != 0 {
		rec.Subtotal = finite(Round2(tax / taxRate))
	}
	if rec.Subtotal != nil {
		rec.Total = finite(Round2(*rec.Subtotal + tax))
	}
}

// editTotal reconstructs the split. With no tax amount present the total is
// treated as tax-inclusive and split by the rate; with a tax amount already
// set, the subtotal absorbs the difference.
func (r *Reconciler) editTotal(rec *models.DocumentRecord, value string, taxRate float64) {
	v, ok := parseAmount(value)
	if !ok {
		rec.Total = nil
		return
	}
	total := Round2(v)
	rec.Total = finite(total)
	if rec.Total == nil {
		return
	}
	if rec.TaxAmount == nil {
		subtotal := Round2(total / (1 + taxRate))
		rec.Subtotal = finite(subtotal)
		if rec.Subtotal == nil {
			return
		}
		rec.TaxAmount = finite(Round2(total - subtotal))
		return
	}
	rec.Subtotal = finite(Round2(total - *rec.TaxAmount))
}

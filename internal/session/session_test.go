package session

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkoren/invoice-intake/internal/models"
	"go.uber.org/zap"
)

func newTestSession(records ...models.DocumentRecord) *Session {
	s := newSession("test", 0.18)
	s.Append(records...)
	return s
}

func rec(number string) models.DocumentRecord {
	return models.DocumentRecord{InvoiceNumber: number}
}

func TestRecordsReturnsCopies(t *testing.T) {
	s := newTestSession(rec("INV-1"), rec("INV-2"))

	records := s.Records()
	records[0].InvoiceNumber = "mutated"

	got, err := s.Record(0)
	require.NoError(t, err)
	assert.Equal(t, "INV-1", got.InvoiceNumber)
}

func TestRecordOutOfRange(t *testing.T) {
	s := newTestSession(rec("INV-1"))

	_, err := s.Record(1)
	assert.Error(t, err)
	_, err = s.Record(-1)
	assert.Error(t, err)
}

func TestEditMutatesInPlace(t *testing.T) {
	s := newTestSession(rec("INV-1"))

	err := s.Edit(0, func(r *models.DocumentRecord) error {
		r.SupplierName = "Acme"
		return nil
	})
	require.NoError(t, err)

	got, err := s.Record(0)
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.SupplierName)
}

func TestEditErrorLeavesRecordVisible(t *testing.T) {
	s := newTestSession(rec("INV-1"))

	err := s.Edit(0, func(r *models.DocumentRecord) error {
		return fmt.Errorf("bad edit")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, s.Len())
}

func TestMarkSavedAndUnsavedIndices(t *testing.T) {
	s := newTestSession(rec("INV-1"), rec("INV-2"), rec("INV-3"))

	supplierID := int64(7)
	s.MarkSaved(1, 42, &supplierID)

	id, ok := s.SavedID(1)
	require.True(t, ok)
	assert.Equal(t, int64(42), id)

	got, err := s.Record(1)
	require.NoError(t, err)
	require.NotNil(t, got.SupplierID)
	assert.Equal(t, int64(7), *got.SupplierID)

	assert.Equal(t, []int{0, 2}, s.UnsavedIndices())
}

func TestRetainFailedReindexes(t *testing.T) {
	s := newTestSession(rec("INV-1"), rec("INV-2"), rec("INV-3"), rec("INV-4"))
	s.MarkSaved(0, 10, nil)
	s.MarkSaved(2, 30, nil)

	// Rows 1 and 3 failed; only they survive, renumbered from zero.
	s.RetainFailed([]int{1, 3})

	require.Equal(t, 2, s.Len())
	first, _ := s.Record(0)
	second, _ := s.Record(1)
	assert.Equal(t, "INV-2", first.InvoiceNumber)
	assert.Equal(t, "INV-4", second.InvoiceNumber)

	_, ok := s.SavedID(0)
	assert.False(t, ok)
	assert.Equal(t, []int{0, 1}, s.UnsavedIndices())
}

func TestRetainFailedKeepsSavedMapping(t *testing.T) {
	s := newTestSession(rec("INV-1"), rec("INV-2"))
	s.MarkSaved(1, 42, nil)

	s.RetainFailed([]int{1})

	id, ok := s.SavedID(0)
	require.True(t, ok)
	assert.Equal(t, int64(42), id)
}

func TestClear(t *testing.T) {
	s := newTestSession(rec("INV-1"))
	s.MarkSaved(0, 10, nil)
	s.SetPendingFiles(3)

	s.Clear()

	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 0, s.PendingFiles())
	_, ok := s.SavedID(0)
	assert.False(t, ok)
}

func TestVATRate(t *testing.T) {
	s := newTestSession()
	assert.Equal(t, 0.18, s.VATRate())

	s.SetVATRate(0.17)
	assert.Equal(t, 0.17, s.VATRate())
}

func TestManagerLifecycle(t *testing.T) {
	m := NewManager(0.18, zap.NewNop())

	a := m.Create()
	b := m.Create()
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, 2, m.Count())

	got, err := m.Get(a.ID())
	require.NoError(t, err)
	assert.Same(t, a, got)

	m.Delete(a.ID())
	assert.Equal(t, 1, m.Count())

	_, err = m.Get(a.ID())
	assert.Error(t, err)
}

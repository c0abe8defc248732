package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkoren/invoice-intake/internal/models"
	"github.com/talkoren/invoice-intake/pkg/database"
	"go.uber.org/zap"
)

func newWriter(t *testing.T) *BatchWriter {
	t.Helper()
	logger := zap.NewNop()

	db, err := database.New(database.Config{
		Path:         filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.NewMigrator(db, logger).RunMigrations())

	return NewBatchWriter(db,
		NewSupplierRepository(db.DB, logger),
		NewInvoiceRepository(db.DB, logger),
		logger)
}

func payload(number, supplier string) models.InvoicePayload {
	return models.InvoicePayload{
		SupplierName:  supplier,
		InvoiceNumber: number,
		InvoiceDate:   "2026-07-01",
		Currency:      "ILS",
		Subtotal:      100,
		VATAmount:     18,
		Total:         118,
		DocumentType:  "invoice",
		Status:        "pending",
	}
}

func TestWriteInsertsAndCreatesSupplier(t *testing.T) {
	w := newWriter(t)

	resp, err := w.CommitBatch(context.Background(), models.CommitRequest{
		CustomerID: 1,
		Invoices:   []models.InvoicePayload{payload("INV-1", "Acme Ltd")},
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)

	row := resp.Results[0]
	assert.Empty(t, row.Error)
	require.NotNil(t, row.InsertedID)
	require.NotNil(t, row.SupplierID)
	assert.True(t, row.SupplierCreated)
	assert.False(t, row.IsUpdate)
}

func TestWriteUpsertsExistingNumber(t *testing.T) {
	w := newWriter(t)
	ctx := context.Background()

	first, err := w.CommitBatch(ctx, models.CommitRequest{
		CustomerID: 1,
		Invoices:   []models.InvoicePayload{payload("INV-1", "Acme Ltd")},
	})
	require.NoError(t, err)

	updated := payload("INV-1", "Acme Ltd")
	updated.Total = 236
	second, err := w.CommitBatch(ctx, models.CommitRequest{
		CustomerID: 1,
		Invoices:   []models.InvoicePayload{updated},
	})
	require.NoError(t, err)

	row := second.Results[0]
	assert.Empty(t, row.Error)
	assert.True(t, row.IsUpdate)
	require.NotNil(t, row.InsertedID)
	assert.Equal(t, *first.Results[0].InsertedID, *row.InsertedID)
	assert.False(t, row.SupplierCreated, "existing supplier is reused")
}

func TestWriteRowLevelErrors(t *testing.T) {
	w := newWriter(t)

	bad := payload("", "Acme Ltd")
	badDate := payload("INV-2", "Acme Ltd")
	badDate.InvoiceDate = "01/07/2026"
	good := payload("INV-3", "Acme Ltd")

	resp, err := w.CommitBatch(context.Background(), models.CommitRequest{
		CustomerID: 1,
		Invoices:   []models.InvoicePayload{bad, badDate, good},
	})
	require.NoError(t, err, "row failures never fail the request")
	require.Len(t, resp.Results, 3)

	assert.Contains(t, resp.Results[0].Error, "invoice number is required")
	assert.Contains(t, resp.Results[1].Error, "not YYYY-MM-DD")
	assert.Empty(t, resp.Results[2].Error)
	require.NotNil(t, resp.Results[2].InsertedID)
}

func TestCheckConflicts(t *testing.T) {
	w := newWriter(t)
	ctx := context.Background()

	_, err := w.CommitBatch(ctx, models.CommitRequest{
		CustomerID: 1,
		Invoices:   []models.InvoicePayload{payload("INV-1", "Acme Ltd")},
	})
	require.NoError(t, err)

	t.Run("same supplier duplicates", func(t *testing.T) {
		report, err := w.CheckConflicts(ctx, models.ConflictCheckRequest{
			CustomerID: 1,
			Invoices:   []models.InvoicePayload{payload("INV-1", "Acme Ltd")},
		})
		require.NoError(t, err)
		require.True(t, report.HasConflicts)
		require.Len(t, report.Conflicts, 1)
		assert.Equal(t, models.ConflictTypeDuplicate, report.Conflicts[0].Type)
	})

	t.Run("different supplier reuses number", func(t *testing.T) {
		report, err := w.CheckConflicts(ctx, models.ConflictCheckRequest{
			CustomerID: 1,
			Invoices:   []models.InvoicePayload{payload("INV-1", "Other Corp")},
		})
		require.NoError(t, err)
		require.True(t, report.HasConflicts)
		assert.Equal(t, models.ConflictTypeNumberReuse, report.Conflicts[0].Type)
	})

	t.Run("other customers never conflict", func(t *testing.T) {
		report, err := w.CheckConflicts(ctx, models.ConflictCheckRequest{
			CustomerID: 2,
			Invoices:   []models.InvoicePayload{payload("INV-1", "Acme Ltd")},
		})
		require.NoError(t, err)
		assert.False(t, report.HasConflicts)
	})

	t.Run("fresh number is clear", func(t *testing.T) {
		report, err := w.CheckConflicts(ctx, models.ConflictCheckRequest{
			CustomerID: 1,
			Invoices:   []models.InvoicePayload{payload("INV-99", "Acme Ltd")},
		})
		require.NoError(t, err)
		assert.False(t, report.HasConflicts)
	})
}

func TestListByCustomer(t *testing.T) {
	w := newWriter(t)
	ctx := context.Background()

	_, err := w.CommitBatch(ctx, models.CommitRequest{
		CustomerID: 1,
		Invoices: []models.InvoicePayload{
			payload("INV-1", "Acme Ltd"),
			payload("INV-2", "Other Corp"),
		},
	})
	require.NoError(t, err)

	invoices, err := w.invoices.ListByCustomer(1)
	require.NoError(t, err)
	assert.Len(t, invoices, 2)

	invoices, err = w.invoices.ListByCustomer(7)
	require.NoError(t, err)
	assert.Empty(t, invoices)
}

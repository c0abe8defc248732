package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkoren/invoice-intake/internal/models"
	"go.uber.org/zap"
)

func TestExtractionClientFetchPage(t *testing.T) {
	var got models.ExtractionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/extract", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		json.NewEncoder(w).Encode(models.ExtractionPage{
			Results:      []models.DocumentRecord{{FileName: "a.pdf"}},
			TotalFiles:   3,
			FilesHandled: 1,
		})
	}))
	defer srv.Close()

	c := NewExtractionClient(ExtractionConfig{BaseURL: srv.URL}, zap.NewNop())
	page, err := c.FetchPage(context.Background(), models.ExtractionRequest{
		Path:              "/scans/batch-1",
		LanguageDetection: true,
		StartingPoint:     2,
	})
	require.NoError(t, err)

	assert.Equal(t, "/scans/batch-1", got.Path)
	assert.Equal(t, 2, got.StartingPoint)
	assert.True(t, got.LanguageDetection)
	assert.False(t, got.Recursive)
	assert.Equal(t, 3, page.TotalFiles)
	require.Len(t, page.Results, 1)
}

func TestExtractionClientServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewExtractionClient(ExtractionConfig{BaseURL: srv.URL}, zap.NewNop())
	_, err := c.FetchPage(context.Background(), models.ExtractionRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestPersistenceClientConflictCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/invoices/check-conflicts", r.URL.Path)
		json.NewEncoder(w).Encode(models.ConflictReport{
			HasConflicts: true,
			Conflicts:    []models.Conflict{{InvoiceNumber: "INV-1", Type: "duplicate", Message: "seen before"}},
		})
	}))
	defer srv.Close()

	c := NewPersistenceClient(PersistenceConfig{BaseURL: srv.URL}, zap.NewNop())
	report, err := c.CheckConflicts(context.Background(), models.ConflictCheckRequest{CustomerID: 12})
	require.NoError(t, err)
	assert.True(t, report.HasConflicts)
	require.Len(t, report.Conflicts, 1)
	assert.Equal(t, "duplicate", report.Conflicts[0].Type)
}

func TestPersistenceClientCommitBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/invoices/batch", r.URL.Path)
		var req models.CommitRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Invoices, 1)

		inserted := int64(55)
		json.NewEncoder(w).Encode(models.CommitResponse{Results: []models.CommitRow{
			{Index: 0, InvoiceNumber: req.Invoices[0].InvoiceNumber, InsertedID: &inserted},
		}})
	}))
	defer srv.Close()

	c := NewPersistenceClient(PersistenceConfig{BaseURL: srv.URL}, zap.NewNop())
	resp, err := c.CommitBatch(context.Background(), models.CommitRequest{
		CustomerID: 12,
		Invoices:   []models.InvoicePayload{{InvoiceNumber: "INV-1"}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	require.NotNil(t, resp.Results[0].InsertedID)
	assert.Equal(t, int64(55), *resp.Results[0].InsertedID)
}

package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkoren/invoice-intake/internal/export"
	"github.com/talkoren/invoice-intake/internal/models"
	"github.com/talkoren/invoice-intake/internal/reconcile"
	"github.com/talkoren/invoice-intake/internal/session"
	"github.com/talkoren/invoice-intake/internal/staging"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) (*Server, *session.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := staging.NewStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	sessions := session.NewManager(0.18, zap.NewNop())
	srv := New(
		Config{Host: "127.0.0.1", Port: 0},
		sessions,
		store,
		nil, // extraction not exercised here
		reconcile.New(),
		nil, // commit not exercised here
		export.NewExporter(zap.NewNop()),
		nil,
		nil,
		zap.NewNop(),
	)
	return srv, sessions
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateAndGetBatch(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/api/v1/batches", nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		SessionID string  `json:"sessionId"`
		VATRate   float64 `json:"vatRate"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotEmpty(t, created.SessionID)
	assert.Equal(t, 0.18, created.VATRate)

	w = doJSON(t, srv, http.MethodGet, "/api/v1/batches/"+created.SessionID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetUnknownBatch(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodGet, "/api/v1/batches/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUploadFiles(t *testing.T) {
	srv, sessions := newTestServer(t)
	sess := sessions.Create()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("files", "invoice.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4 fake"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/batches/"+sess.ID()+"/files", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, sess.PendingFiles())
}

func TestEditRecordReconciles(t *testing.T) {
	srv, sessions := newTestServer(t)
	sess := sessions.Create()
	sess.Append(models.DocumentRecord{FileName: "a.pdf"})

	w := doJSON(t, srv, http.MethodPatch,
		fmt.Sprintf("/api/v1/batches/%s/records/0", sess.ID()),
		map[string]string{"field": "subtotal", "value": "100"})
	require.Equal(t, http.StatusOK, w.Code)

	var got models.DocumentRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.NotNil(t, got.Total)
	assert.InDelta(t, 118.0, *got.Total, 0.001)
}

func TestEditRecordUnknownField(t *testing.T) {
	srv, sessions := newTestServer(t)
	sess := sessions.Create()
	sess.Append(models.DocumentRecord{FileName: "a.pdf"})

	w := doJSON(t, srv, http.MethodPatch,
		fmt.Sprintf("/api/v1/batches/%s/records/0", sess.ID()),
		map[string]string{"field": "color", "value": "blue"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEditRecordBadIndex(t *testing.T) {
	srv, sessions := newTestServer(t)
	sess := sessions.Create()

	w := doJSON(t, srv, http.MethodPatch,
		fmt.Sprintf("/api/v1/batches/%s/records/abc", sess.ID()),
		map[string]string{"field": "subtotal", "value": "100"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecordBoxes(t *testing.T) {
	srv, sessions := newTestServer(t)
	sess := sessions.Create()
	sess.Append(models.DocumentRecord{
		FileName: "a.pdf",
		BoundingBoxes: map[string]models.BoundingBox{
			"total": {
				PageNumber: 1,
				Polygon: []models.Point{
					{X: 0.1, Y: 0.2}, {X: 0.5, Y: 0.2},
					{X: 0.5, Y: 0.3}, {X: 0.1, Y: 0.3},
				},
			},
			"dueDate": {PageNumber: 2, Polygon: []models.Point{{X: 0.1, Y: 0.1}}},
		},
	})

	w := doJSON(t, srv, http.MethodGet,
		fmt.Sprintf("/api/v1/batches/%s/records/0/boxes?page=1&width=1000&height=500", sess.ID()), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var got struct {
		Page  int `json:"page"`
		Boxes map[string]struct {
			X, Y, Width, Height float64
		} `json:"boxes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got.Boxes, 1, "boxes on other pages are skipped")
	box := got.Boxes["total"]
	assert.InDelta(t, 100.0, box.X, 0.001)
	assert.InDelta(t, 100.0, box.Y, 0.001)
	assert.InDelta(t, 400.0, box.Width, 0.001)
	assert.InDelta(t, 50.0, box.Height, 0.001)
}

func TestRecordBoxesMissingDimensions(t *testing.T) {
	srv, sessions := newTestServer(t)
	sess := sessions.Create()
	sess.Append(models.DocumentRecord{FileName: "a.pdf"})

	w := doJSON(t, srv, http.MethodGet,
		fmt.Sprintf("/api/v1/batches/%s/records/0/boxes", sess.ID()), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportEmptyBatch(t *testing.T) {
	srv, sessions := newTestServer(t)
	sess := sessions.Create()

	w := doJSON(t, srv, http.MethodGet, "/api/v1/batches/"+sess.ID()+"/export", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExportMarksRecords(t *testing.T) {
	srv, sessions := newTestServer(t)
	sess := sessions.Create()
	sess.Append(models.DocumentRecord{
		FileName:      "a.pdf",
		InvoiceNumber: "INV-1",
		Total:         models.Float(118),
	})

	w := doJSON(t, srv, http.MethodGet, "/api/v1/batches/"+sess.ID()+"/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")

	rec, err := sess.Record(0)
	require.NoError(t, err)
	assert.Equal(t, models.StatusExported, rec.Status)
}

func TestDeleteBatch(t *testing.T) {
	srv, sessions := newTestServer(t)
	sess := sessions.Create()

	w := doJSON(t, srv, http.MethodDelete, "/api/v1/batches/"+sess.ID(), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 0, sessions.Count())
}

package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/talkoren/invoice-intake/internal/commit"
	"github.com/talkoren/invoice-intake/internal/extraction"
	"github.com/talkoren/invoice-intake/internal/geometry"
	"github.com/talkoren/invoice-intake/internal/models"
	"github.com/talkoren/invoice-intake/internal/reconcile"
	"github.com/talkoren/invoice-intake/internal/session"
	"github.com/talkoren/invoice-intake/internal/staging"
	"go.uber.org/zap"
)

// sessionSink appends extraction pages to a session as they arrive.
type sessionSink struct {
	sess *session.Session
}

func (s *sessionSink) AppendPage(records []models.DocumentRecord) {
	s.sess.Append(records...)
}

func (s *Server) lookupSession(c *gin.Context) (*session.Session, bool) {
	sess, err := s.sessions.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return nil, false
	}
	return sess, true
}

func (s *Server) recordIndex(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid record index %q", c.Param("index"))})
		return 0, false
	}
	return index, true
}

func (s *Server) createBatch(c *gin.Context) {
	sess := s.sessions.Create()
	c.JSON(http.StatusCreated, gin.H{
		"sessionId": sess.ID(),
		"vatRate":   sess.VATRate(),
	})
}

func (s *Server) getBatch(c *gin.Context) {
	sess, ok := s.lookupSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sessionId":    sess.ID(),
		"records":      sess.Records(),
		"vatRate":      sess.VATRate(),
		"pendingFiles": sess.PendingFiles(),
	})
}

func (s *Server) deleteBatch(c *gin.Context) {
	sess, ok := s.lookupSession(c)
	if !ok {
		return
	}
	if err := s.store.Discard(sess.ID()); err != nil {
		s.logger.Warn("Failed to discard staged files",
			zap.String("session_id", sess.ID()),
			zap.Error(err))
	}
	s.sessions.Delete(sess.ID())
	c.Status(http.StatusNoContent)
}

func (s *Server) uploadFiles(c *gin.Context) {
	sess, ok := s.lookupSession(c)
	if !ok {
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "expected multipart form upload"})
		return
	}
	uploads := form.File["files"]
	if len(uploads) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files in upload"})
		return
	}

	staged := make([]staging.StagedFile, 0, len(uploads))
	for _, header := range uploads {
		f, err := header.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("failed to open upload %q: %v", header.Filename, err)})
			return
		}
		content, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("failed to read upload %q: %v", header.Filename, err)})
			return
		}

		file, err := s.store.Stage(sess.ID(), header.Filename, content)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		staged = append(staged, *file)
	}

	sess.SetPendingFiles(len(staged))
	c.JSON(http.StatusOK, gin.H{"staged": staged})
}

type extractRequest struct {
	Path string `json:"path"`
}

func (s *Server) runExtraction(c *gin.Context) {
	sess, ok := s.lookupSession(c)
	if !ok {
		return
	}

	var req extractRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	sel := extraction.Selection{Path: req.Path, BatchID: sess.ID()}
	result, err := s.orchestrator.Run(c.Request.Context(), sel, &sessionSink{sess: sess})

	if result.VATRate != nil {
		sess.SetVATRate(*result.VATRate)
	}
	sess.SetPendingFiles(0)

	if err != nil {
		// Partial progress stays in the session; the transport failure is
		// surfaced distinctly from per-document error strings.
		c.JSON(http.StatusBadGateway, gin.H{
			"error":      err.Error(),
			"records":    len(result.Records),
			"errors":     result.Errors,
			"pages":      result.Pages,
			"totalFiles": result.TotalFiles,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"records":    result.Records,
		"errors":     result.Errors,
		"pages":      result.Pages,
		"totalFiles": result.TotalFiles,
		"vatRate":    sess.VATRate(),
	})
}

type editRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

func (s *Server) editRecord(c *gin.Context) {
	sess, ok := s.lookupSession(c)
	if !ok {
		return
	}
	index, ok := s.recordIndex(c)
	if !ok {
		return
	}

	var req editRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := sess.Edit(index, func(rec *models.DocumentRecord) error {
		return s.reconciler.Reconcile(rec, reconcile.Field(req.Field), req.Value, sess.VATRate())
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rec, err := sess.Record(index)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// recordBoxes maps a record's field bounding boxes onto a rendered page,
// returning pixel rects for overlay drawing. Boxes on other pages are
// skipped.
func (s *Server) recordBoxes(c *gin.Context) {
	sess, ok := s.lookupSession(c)
	if !ok {
		return
	}
	index, ok := s.recordIndex(c)
	if !ok {
		return
	}

	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page must be a positive integer"})
		return
	}
	width, errW := strconv.ParseFloat(c.Query("width"), 64)
	height, errH := strconv.ParseFloat(c.Query("height"), 64)
	if errW != nil || errH != nil || width <= 0 || height <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "width and height query parameters are required"})
		return
	}

	rec, err := sess.Record(index)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	boxes := make(map[string]geometry.Rect, len(rec.BoundingBoxes))
	for field, box := range rec.BoundingBoxes {
		if rect, onPage := geometry.BoxOnPage(box, page, width, height); onPage {
			boxes[field] = rect
		}
	}
	c.JSON(http.StatusOK, gin.H{"page": page, "boxes": boxes})
}

type commitRequest struct {
	CustomerID int64 `json:"customerId"`
}

func (s *Server) commitAll(c *gin.Context) {
	sess, ok := s.lookupSession(c)
	if !ok {
		return
	}

	var req commitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	outcome, err := s.committer.CommitAll(c.Request.Context(), sess, req.CustomerID)
	s.respondCommit(c, outcome, err)
}

func (s *Server) commitOne(c *gin.Context) {
	sess, ok := s.lookupSession(c)
	if !ok {
		return
	}
	index, ok := s.recordIndex(c)
	if !ok {
		return
	}

	var req commitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	outcome, err := s.committer.CommitOne(c.Request.Context(), sess, req.CustomerID, index)
	s.respondCommit(c, outcome, err)
}

func (s *Server) respondCommit(c *gin.Context, outcome *commit.Outcome, err error) {
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, commit.ErrNoCustomer) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	if outcome.Blocked() {
		c.JSON(http.StatusConflict, outcome)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

func (s *Server) exportBatch(c *gin.Context) {
	sess, ok := s.lookupSession(c)
	if !ok {
		return
	}

	records := sess.Records()
	if len(records) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "batch has no records to export"})
		return
	}

	buf, err := s.exporter.BuildReport(records)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	for i := range records {
		_ = sess.Edit(i, func(rec *models.DocumentRecord) error {
			rec.Status = models.StatusExported
			return nil
		})
	}

	filename := fmt.Sprintf("batch-%s.xlsx", sess.ID())
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		buf.Bytes())
}

func (s *Server) checkConflicts(c *gin.Context) {
	var req models.ConflictCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := s.writer.CheckConflicts(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) writeBatch(c *gin.Context) {
	var req models.CommitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := s.writer.CommitBatch(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) listInvoices(c *gin.Context) {
	customerID, err := strconv.ParseInt(c.Query("customerId"), 10, 64)
	if err != nil || customerID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "customerId query parameter is required"})
		return
	}

	invoices, err := s.invoices.ListByCustomer(customerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoices": invoices})
}

package commit

import (
	"context"
	"errors"
	"fmt"

	"github.com/talkoren/invoice-intake/internal/models"
	"github.com/talkoren/invoice-intake/internal/session"
	"go.uber.org/zap"
)

// ErrNoCustomer is returned when a commit is attempted without a selected
// customer context.
var ErrNoCustomer = errors.New("no customer selected for commit")

// Persister is the persistence-side collaborator that writes a batch. It
// must tolerate already-persisted rows, upserting rather than duplicating.
type Persister interface {
	CommitBatch(ctx context.Context, req models.CommitRequest) (*models.CommitResponse, error)
}

// Outcome reports what a commit attempt did. When Report has conflicts, the
// write never ran and the counts are zero.
type Outcome struct {
	Report         *models.ConflictReport `json:"report,omitempty"`
	Inserted       int                    `json:"inserted"`
	Updated        int                    `json:"updated"`
	Errored        int                    `json:"errored"`
	Rows           []models.CommitRow     `json:"rows,omitempty"`
	SessionCleared bool                   `json:"sessionCleared"`
}

// Blocked reports whether the conflict gate stopped the write.
func (o *Outcome) Blocked() bool {
	return o.Report != nil && o.Report.HasConflicts
}

// Committer runs the two-phase check-then-write commit protocol and merges
// server-assigned identifiers back into the session. It performs no
// automatic retries: a failed attempt is surfaced and re-running it is the
// user's decision.
type Committer struct {
	gate      *Gate
	persister Persister
	defaults  PayloadDefaults
	logger    *zap.Logger
}

// NewCommitter creates a committer.
func NewCommitter(gate *Gate, persister Persister, defaults PayloadDefaults, logger *zap.Logger) *Committer {
	return &Committer{
		gate:      gate,
		persister: persister,
		defaults:  defaults,
		logger:    logger,
	}
}

// CommitOne persists the single record at index. Records already persisted
// skip the conflict gate (the write upserts them); fresh records that trip
// the gate block the write and surface the report.
func (c *Committer) CommitOne(ctx context.Context, sess *session.Session, customerID int64, index int) (*Outcome, error) {
	if customerID == 0 {
		return nil, ErrNoCustomer
	}

	rec, err := sess.Record(index)
	if err != nil {
		return nil, err
	}
	payload := BuildPayload(rec, c.defaults)

	if _, saved := sess.SavedID(index); !saved {
		report, err := c.gate.Check(ctx, customerID, []models.InvoicePayload{payload})
		if err != nil {
			return nil, err
		}
		if report.HasConflicts {
			return &Outcome{Report: report}, nil
		}
	}

	resp, err := c.persister.CommitBatch(ctx, models.CommitRequest{
		CustomerID: customerID,
		Invoices:   []models.InvoicePayload{payload},
	})
	if err != nil {
		return nil, fmt.Errorf("commit write failed: %w", err)
	}
	if len(resp.Results) == 0 {
		return nil, fmt.Errorf("commit write returned no row for invoice %q", payload.InvoiceNumber)
	}

	row := resp.Results[0]
	outcome := &Outcome{Rows: []models.CommitRow{row}}
	c.mergeRow(sess, index, row, outcome)

	c.logger.Info("Single record committed",
		zap.String("session_id", sess.ID()),
		zap.Int("index", index),
		zap.String("invoice_number", row.InvoiceNumber),
		zap.Int("errored", outcome.Errored))
	return outcome, nil
}

// CommitAll persists the whole session. Only records without a persisted id
// go through the conflict gate; the write itself carries the full batch in
// session order and upserts rows that already exist. On zero row errors the
// session is cleared; otherwise only the failing rows are retained for
// correction and re-commit.
func (c *Committer) CommitAll(ctx context.Context, sess *session.Session, customerID int64) (*Outcome, error) {
	if customerID == 0 {
		return nil, ErrNoCustomer
	}

	records := sess.Records()
	if len(records) == 0 {
		return &Outcome{}, nil
	}

	payloads := make([]models.InvoicePayload, len(records))
	for i, rec := range records {
		payloads[i] = BuildPayload(rec, c.defaults)
	}

	unsaved := sess.UnsavedIndices()
	candidates := make([]models.InvoicePayload, 0, len(unsaved))
	for _, i := range unsaved {
		candidates = append(candidates, payloads[i])
	}

	report, err := c.gate.Check(ctx, customerID, candidates)
	if err != nil {
		return nil, err
	}
	if report.HasConflicts {
		return &Outcome{Report: report}, nil
	}

	resp, err := c.persister.CommitBatch(ctx, models.CommitRequest{
		CustomerID: customerID,
		Invoices:   payloads,
	})
	if err != nil {
		return nil, fmt.Errorf("commit write failed: %w", err)
	}

	outcome := &Outcome{Rows: resp.Results}
	succeeded := make(map[int]bool, len(resp.Results))
	for _, row := range resp.Results {
		c.mergeRow(sess, row.Index, row, outcome)
		if row.Error == "" && !row.Conflict {
			succeeded[row.Index] = true
		}
	}

	// Rows the response never mentioned were not persisted either.
	failed := make([]int, 0)
	for i := range records {
		if !succeeded[i] {
			failed = append(failed, i)
		}
	}

	if len(failed) == 0 {
		sess.Clear()
		outcome.SessionCleared = true
	} else {
		sess.RetainFailed(failed)
		outcome.Errored = len(failed)
	}

	c.logger.Info("Batch committed",
		zap.String("session_id", sess.ID()),
		zap.Int64("customer_id", customerID),
		zap.Int("inserted", outcome.Inserted),
		zap.Int("updated", outcome.Updated),
		zap.Int("errored", outcome.Errored),
		zap.Bool("session_cleared", outcome.SessionCleared))
	return outcome, nil
}

// mergeRow folds one write-response row into the outcome counts and the
// session's identifier mapping.
func (c *Committer) mergeRow(sess *session.Session, index int, row models.CommitRow, outcome *Outcome) {
	if row.Error != "" || row.Conflict {
		outcome.Errored++
		return
	}
	switch {
	case row.IsUpdate:
		outcome.Updated++
	default:
		outcome.Inserted++
	}
	if row.InsertedID != nil {
		sess.MarkSaved(index, *row.InsertedID, row.SupplierID)
	}
}

package commit

import (
	"context"
	"fmt"

	"github.com/talkoren/invoice-intake/internal/models"
	"go.uber.org/zap"
)

// ConflictChecker is the persistence-side collaborator that evaluates a
// candidate batch against its business rules.
type ConflictChecker interface {
	CheckConflicts(ctx context.Context, req models.ConflictCheckRequest) (*models.ConflictReport, error)
}

// Gate runs the pre-write conflict check. It is policy-free: it transports
// the candidate set out and the verdict back. Callers must only pass records
// not already known to be persisted, otherwise a record would conflict with
// its own prior commit.
type Gate struct {
	checker ConflictChecker
	logger  *zap.Logger
}

// NewGate creates a conflict gate.
func NewGate(checker ConflictChecker, logger *zap.Logger) *Gate {
	return &Gate{
		checker: checker,
		logger:  logger,
	}
}

// Check submits the candidate payloads for conflict evaluation. An empty
// candidate set is trivially clear and skips the round-trip.
func (g *Gate) Check(ctx context.Context, customerID int64, candidates []models.InvoicePayload) (*models.ConflictReport, error) {
	if len(candidates) == 0 {
		return &models.ConflictReport{}, nil
	}

	report, err := g.checker.CheckConflicts(ctx, models.ConflictCheckRequest{
		CustomerID: customerID,
		Invoices:   candidates,
	})
	if err != nil {
		g.logger.Error("Conflict check failed", zap.Int64("customer_id", customerID), zap.Error(err))
		return nil, fmt.Errorf("conflict check failed: %w", err)
	}

	if report.HasConflicts {
		g.logger.Warn("Conflicts detected, blocking write",
			zap.Int64("customer_id", customerID),
			zap.Int("conflicts", len(report.Conflicts)))
	}
	return report, nil
}

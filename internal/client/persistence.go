package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/talkoren/invoice-intake/internal/models"
	"go.uber.org/zap"
)

// PersistenceConfig holds persistence service connection settings.
type PersistenceConfig struct {
	BaseURL string
	Timeout time.Duration
}

// PersistenceClient calls the invoice persistence service: the conflict
// pre-check and the batch write.
type PersistenceClient struct {
	baseURL string
	doer    httpDoer
	logger  *zap.Logger
}

// NewPersistenceClient creates a persistence service client.
func NewPersistenceClient(cfg PersistenceConfig, logger *zap.Logger) *PersistenceClient {
	return &PersistenceClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		doer:    newHTTPClient(cfg.Timeout),
		logger:  logger,
	}
}

// CheckConflicts submits the candidate batch for conflict evaluation.
func (c *PersistenceClient) CheckConflicts(ctx context.Context, req models.ConflictCheckRequest) (*models.ConflictReport, error) {
	var report models.ConflictReport
	url := c.baseURL + "/api/v1/invoices/check-conflicts"

	c.logger.Debug("Checking batch for conflicts",
		zap.Int64("customer_id", req.CustomerID),
		zap.Int("candidates", len(req.Invoices)))

	if err := postJSON(ctx, c.doer, url, req, &report); err != nil {
		return nil, fmt.Errorf("conflict check request failed: %w", err)
	}
	return &report, nil
}

// CommitBatch writes the batch and returns the per-row results.
func (c *PersistenceClient) CommitBatch(ctx context.Context, req models.CommitRequest) (*models.CommitResponse, error) {
	var resp models.CommitResponse
	url := c.baseURL + "/api/v1/invoices/batch"

	c.logger.Info("Writing invoice batch",
		zap.Int64("customer_id", req.CustomerID),
		zap.Int("rows", len(req.Invoices)))

	if err := postJSON(ctx, c.doer, url, req, &resp); err != nil {
		return nil, fmt.Errorf("batch write request failed: %w", err)
	}
	return &resp, nil
}

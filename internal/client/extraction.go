package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/talkoren/invoice-intake/internal/models"
	"go.uber.org/zap"
)

// ExtractionConfig holds extraction service connection settings.
type ExtractionConfig struct {
	BaseURL string
	Timeout time.Duration
}

// ExtractionClient calls the external batch extraction service. It issues one
// page request at a time; pacing and cursor state belong to the orchestrator.
type ExtractionClient struct {
	baseURL string
	doer    httpDoer
	logger  *zap.Logger
}

// NewExtractionClient creates an extraction service client.
func NewExtractionClient(cfg ExtractionConfig, logger *zap.Logger) *ExtractionClient {
	return &ExtractionClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		doer:    newHTTPClient(cfg.Timeout),
		logger:  logger,
	}
}

// FetchPage requests one extraction page starting at req.StartingPoint.
func (c *ExtractionClient) FetchPage(ctx context.Context, req models.ExtractionRequest) (*models.ExtractionPage, error) {
	var page models.ExtractionPage
	url := c.baseURL + "/api/extract"

	c.logger.Debug("Requesting extraction page",
		zap.String("path", req.Path),
		zap.Int("starting_point", req.StartingPoint))

	if err := postJSON(ctx, c.doer, url, req, &page); err != nil {
		return nil, fmt.Errorf("extraction request failed: %w", err)
	}
	return &page, nil
}

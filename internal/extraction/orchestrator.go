package extraction

import (
	"context"
	"fmt"

	"github.com/talkoren/invoice-intake/internal/models"
	"go.uber.org/zap"
)

// Selection names the documents to extract: either a pre-existing canonical
// source path, or a staged upload batch that still needs resolving to one.
type Selection struct {
	Path    string
	BatchID string
}

// Resolver turns a selection into the single canonical source path the
// extraction service understands. This is one round-trip and the first
// suspension point of a run.
type Resolver interface {
	Resolve(ctx context.Context, sel Selection) (string, error)
}

// Fetcher issues one extraction page request.
type Fetcher interface {
	FetchPage(ctx context.Context, req models.ExtractionRequest) (*models.ExtractionPage, error)
}

// PageSink receives each page's records as it arrives, in arrival order.
type PageSink interface {
	AppendPage(records []models.DocumentRecord)
}

// Result is the outcome of an extraction run. On a failed run it still
// carries everything accumulated before the failure.
type Result struct {
	Records    []models.DocumentRecord
	Errors     []string
	Pages      int
	TotalFiles int
	VATRate    *float64
}

// Orchestrator runs the sequential page loop. Pages are strictly one at a
// time: the starting point of page n+1 depends on the filesHandled result of
// page n.
type Orchestrator struct {
	resolver Resolver
	fetcher  Fetcher
	logger   *zap.Logger
}

// NewOrchestrator creates an orchestrator over the given collaborators.
func NewOrchestrator(resolver Resolver, fetcher Fetcher, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		resolver: resolver,
		fetcher:  fetcher,
		logger:   logger,
	}
}

// Run resolves the selection and fetches pages until the discovered set is
// exhausted. Records and error strings accumulate in arrival order; sink, if
// non-nil, receives each page's records as they arrive. A transport failure
// aborts the loop and is returned alongside the partial result; page-level
// error strings are not failures and never stop the loop. Cancellation is
// checked before each page request.
func (o *Orchestrator) Run(ctx context.Context, sel Selection, sink PageSink) (*Result, error) {
	result := &Result{}

	path, err := o.resolver.Resolve(ctx, sel)
	if err != nil {
		return result, fmt.Errorf("failed to resolve selection: %w", err)
	}

	o.logger.Info("Starting extraction run", zap.String("path", path))

	cursor := NewCursor()
	for {
		if err := ctx.Err(); err != nil {
			return o.finish(result, cursor), fmt.Errorf("extraction cancelled: %w", err)
		}

		page, err := o.fetcher.FetchPage(ctx, models.ExtractionRequest{
			Path:              path,
			Recursive:         false,
			LanguageDetection: true,
			StartingPoint:     cursor.StartingPoint,
		})
		if err != nil {
			o.logger.Error("Extraction page request failed",
				zap.Int("starting_point", cursor.StartingPoint),
				zap.Error(err))
			return o.finish(result, cursor), fmt.Errorf("extraction page at offset %d failed: %w", cursor.StartingPoint, err)
		}

		cursor.LatchTotal(page.TotalFiles)
		if page.VATRate != nil {
			result.VATRate = page.VATRate
		}

		result.Records = append(result.Records, page.Results...)
		if sink != nil {
			sink.AppendPage(page.Results)
		}
		cursor.AppendErrors(page.Errors)
		result.Pages++

		o.logger.Debug("Extraction page received",
			zap.Int("page", result.Pages),
			zap.Int("records", len(page.Results)),
			zap.Int("files_handled", page.FilesHandled),
			zap.Int("total_files", cursor.TotalFiles),
			zap.Int("page_errors", len(page.Errors)))

		if cursor.Done() {
			break
		}
		if err := cursor.Advance(page.FilesHandled); err != nil {
			return o.finish(result, cursor), err
		}
		if cursor.Done() {
			break
		}
		// The total caps the page count: with filesHandled >= 1 per page the
		// loop can never take more than TotalFiles iterations.
		if result.Pages >= cursor.TotalFiles {
			return o.finish(result, cursor), fmt.Errorf("extraction exceeded page budget of %d", cursor.TotalFiles)
		}
	}

	o.logger.Info("Extraction run completed",
		zap.Int("records", len(result.Records)),
		zap.Int("pages", result.Pages),
		zap.Int("document_errors", len(cursor.Errors)))

	return o.finish(result, cursor), nil
}

// finish copies the cursor's accumulated state into the result. The cursor
// itself is discarded with the run.
func (o *Orchestrator) finish(result *Result, cursor *Cursor) *Result {
	result.Errors = cursor.Errors
	result.TotalFiles = cursor.TotalFiles
	return result
}

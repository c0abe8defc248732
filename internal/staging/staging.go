// Package staging stores uploaded documents under a per-batch directory and
// resolves a file selection to the single canonical source path the
// extraction service is pointed at.
package staging

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/talkoren/invoice-intake/internal/extraction"
	"go.uber.org/zap"
)

// StagedFile describes one stored upload.
type StagedFile struct {
	FileName   string  `json:"fileName"`
	Path       string  `json:"path"`
	Size       int64   `json:"size"`
	PageCount  int     `json:"pageCount,omitempty"`
	PageWidth  float64 `json:"pageWidth,omitempty"`
	PageHeight float64 `json:"pageHeight,omitempty"`
}

// Store keeps staged uploads on the local filesystem, one directory per
// batch.
type Store struct {
	baseDir string
	logger  *zap.Logger
}

// NewStore creates a staging store rooted at baseDir.
func NewStore(baseDir string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	return &Store{baseDir: baseDir, logger: logger}, nil
}

// Stage writes one uploaded file into the batch directory. PDF uploads also
// get their page count and first-page dimensions read, which later feed the
// record's pageCount and overlay scaling.
func (s *Store) Stage(batchID, fileName string, content []byte) (*StagedFile, error) {
	cleanName := filepath.Base(fileName)
	if cleanName == "." || cleanName == string(filepath.Separator) || cleanName == "" {
		return nil, fmt.Errorf("invalid file name %q", fileName)
	}

	dir := s.batchDir(batchID)
	fullPath := filepath.Join(dir, cleanName)
	if err := s.validatePath(fullPath); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create batch directory: %w", err)
	}
	if err := os.WriteFile(fullPath, content, 0644); err != nil {
		s.logger.Error("Failed to write staged file",
			zap.String("path", fullPath),
			zap.Error(err))
		return nil, fmt.Errorf("failed to write staged file: %w", err)
	}

	staged := &StagedFile{
		FileName: cleanName,
		Path:     fullPath,
		Size:     int64(len(content)),
	}

	if strings.EqualFold(filepath.Ext(cleanName), ".pdf") {
		if err := s.readPDFGeometry(staged); err != nil {
			// The upload itself succeeded: a broken PDF surfaces later as an
			// extraction-side error, not here.
			s.logger.Warn("Failed to read PDF geometry",
				zap.String("file", cleanName),
				zap.Error(err))
		}
	}

	s.logger.Debug("File staged",
		zap.String("batch_id", batchID),
		zap.String("file", cleanName),
		zap.Int64("size", staged.Size),
		zap.Int("pages", staged.PageCount))
	return staged, nil
}

// readPDFGeometry fills the page count and first-page pixel dimensions.
func (s *Store) readPDFGeometry(staged *StagedFile) error {
	doc, err := fitz.New(staged.Path)
	if err != nil {
		return fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	staged.PageCount = doc.NumPage()
	if staged.PageCount == 0 {
		return nil
	}

	img, err := doc.Image(0)
	if err != nil {
		return fmt.Errorf("failed to render first page: %w", err)
	}
	bounds := img.Bounds()
	staged.PageWidth = float64(bounds.Dx())
	staged.PageHeight = float64(bounds.Dy())
	return nil
}

// List returns the staged files of a batch in name order.
func (s *Store) List(batchID string) ([]StagedFile, error) {
	dir := s.batchDir(batchID)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read batch directory: %w", err)
	}

	files := make([]StagedFile, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, StagedFile{
			FileName: e.Name(),
			Path:     filepath.Join(dir, e.Name()),
			Size:     info.Size(),
		})
	}
	return files, nil
}

// Resolve turns a selection into the canonical source path: an explicit path
// wins, otherwise the batch must have staged files and its directory is the
// path. This is the single resolution step that precedes any extraction call.
func (s *Store) Resolve(ctx context.Context, sel extraction.Selection) (string, error) {
	if sel.Path != "" {
		return sel.Path, nil
	}
	if sel.BatchID == "" {
		return "", fmt.Errorf("selection names neither a path nor a staged batch")
	}

	files, err := s.List(sel.BatchID)
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", fmt.Errorf("batch %q has no staged files", sel.BatchID)
	}
	return s.batchDir(sel.BatchID), nil
}

// Discard removes a batch's staged files.
func (s *Store) Discard(batchID string) error {
	dir := s.batchDir(batchID)
	if err := s.validatePath(dir); err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to discard staged batch: %w", err)
	}
	return nil
}

func (s *Store) batchDir(batchID string) string {
	return filepath.Join(s.baseDir, filepath.Base(batchID))
}

// validatePath rejects anything escaping the staging root.
func (s *Store) validatePath(fullPath string) error {
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base path: %w", err)
	}
	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) && absPath != absBase {
		return fmt.Errorf("path escapes staging directory: %s", fullPath)
	}
	return nil
}

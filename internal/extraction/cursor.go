// Package extraction drives the paged fetch loop against the batch
// extraction service, accumulating partial results until the discovered
// document set is exhausted.
package extraction

import "fmt"

// Cursor tracks progress through one extraction run: how many of how many
// discovered files have been covered. It lives for a single run and is
// discarded when the loop terminates.
type Cursor struct {
	// StartingPoint is the 0-based offset into the discovered file set.
	StartingPoint int
	// TotalFiles is the size of the discovered set; 0 means unknown until
	// the first page latches it.
	TotalFiles int
	// Errors accumulates per-document error strings across pages.
	Errors []string

	latched bool
}

// NewCursor returns a cursor positioned before the first page.
func NewCursor() *Cursor {
	return &Cursor{}
}

// LatchTotal records the discovered total from the first page response. The
// server is the sole source of truth for the total, so later pages never
// overwrite it.
func (c *Cursor) LatchTotal(total int) {
	if c.latched {
		return
	}
	c.TotalFiles = total
	c.latched = true
}

// Latched reports whether the total has been learned from the server.
func (c *Cursor) Latched() bool {
	return c.latched
}

// Advance moves the cursor past the files a page covered. A page that covers
// no files while more remain would loop forever, so it is rejected as a
// protocol violation.
func (c *Cursor) Advance(filesHandled int) error {
	if filesHandled <= 0 && c.StartingPoint < c.TotalFiles {
		return fmt.Errorf("extraction page advanced %d files with %d of %d remaining: non-advancing cursor",
			filesHandled, c.TotalFiles-c.StartingPoint, c.TotalFiles)
	}
	c.StartingPoint += filesHandled
	return nil
}

// AppendErrors adds a page's per-document error strings in order.
func (c *Cursor) AppendErrors(errs []string) {
	c.Errors = append(c.Errors, errs...)
}

// Done reports whether the discovered set is exhausted. Before the first
// page latches the total, the cursor is never done.
func (c *Cursor) Done() bool {
	return c.latched && c.StartingPoint >= c.TotalFiles
}

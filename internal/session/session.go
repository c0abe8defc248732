// Package session holds the client-side state of one intake batch: the
// ordered extracted records, the mapping to server-assigned identifiers and
// the active VAT rate.
package session

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/talkoren/invoice-intake/internal/models"
)

// Session is the ordered set of document records for one batch. All access
// goes through its methods; callers must not retain record pointers across
// network round-trips, they re-read from the session after each one.
type Session struct {
	mu sync.Mutex

	id        string
	createdAt time.Time
	vatRate   float64

	records []models.DocumentRecord
	// savedIDs maps record index to the persisted invoice id. Entries are
	// added incrementally and never removed once set.
	savedIDs map[int]int64
	// pendingFiles is a user-facing notice snapshot only, never authoritative.
	pendingFiles int
}

// newSession creates an empty session with the given default VAT rate.
func newSession(id string, vatRate float64) *Session {
	return &Session{
		id:        id,
		createdAt: time.Now(),
		vatRate:   vatRate,
		savedIDs:  make(map[int]int64),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// CreatedAt returns the session creation time.
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// VATRate returns the active tax rate ratio.
func (s *Session) VATRate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vatRate
}

// SetVATRate replaces the active tax rate, typically with the rate reported
// by the extraction service.
func (s *Session) SetVATRate(rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vatRate = rate
}

// Len returns the number of records held.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Append adds records in arrival order.
func (s *Session) Append(records ...models.DocumentRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
}

// Records returns a copy of the record list in order.
func (s *Session) Records() []models.DocumentRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.DocumentRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Record returns a copy of the record at index.
func (s *Session) Record(index int) (models.DocumentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.records) {
		return models.DocumentRecord{}, fmt.Errorf("record index %d out of range (have %d records)", index, len(s.records))
	}
	return s.records[index], nil
}

// Edit applies fn to the record at index under the session lock. fn must not
// block on I/O.
func (s *Session) Edit(index int, fn func(*models.DocumentRecord) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.records) {
		return fmt.Errorf("record index %d out of range (have %d records)", index, len(s.records))
	}
	return fn(&s.records[index])
}

// MarkSaved records the server-assigned invoice id for a record, and the
// supplier id when the write created or matched one.
func (s *Session) MarkSaved(index int, invoiceID int64, supplierID *int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.records) {
		return
	}
	s.savedIDs[index] = invoiceID
	if supplierID != nil {
		s.records[index].SupplierID = supplierID
	}
}

// SavedID returns the persisted invoice id for a record, if any.
func (s *Session) SavedID(index int) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.savedIDs[index]
	return id, ok
}

// UnsavedIndices returns the indices of records with no persisted id yet, in
// ascending order.
func (s *Session) UnsavedIndices() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, 0, len(s.records))
	for i := range s.records {
		if _, ok := s.savedIDs[i]; !ok {
			out = append(out, i)
		}
	}
	sort.Ints(out)
	return out
}

// RetainFailed keeps only the records at the given indices, re-indexing the
// session so the user can correct and retry just the failing rows. The saved
// id mapping is rebuilt for the surviving records.
func (s *Session) RetainFailed(indices []int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keep := make(map[int]bool, len(indices))
	for _, i := range indices {
		keep[i] = true
	}
	records := make([]models.DocumentRecord, 0, len(indices))
	saved := make(map[int]int64)
	for i, rec := range s.records {
		if !keep[i] {
			continue
		}
		if id, ok := s.savedIDs[i]; ok {
			saved[len(records)] = id
		}
		records = append(records, rec)
	}
	s.records = records
	s.savedIDs = saved
}

// Clear wipes all records and identifier mappings, ending the batch.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	s.savedIDs = make(map[int]int64)
	s.pendingFiles = 0
}

// SetPendingFiles stores the "files still pending" notice snapshot.
func (s *Session) SetPendingFiles(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingFiles = n
}

// PendingFiles returns the notice snapshot.
func (s *Session) PendingFiles() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingFiles
}

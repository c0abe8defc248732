package session

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Manager owns the live batch sessions, keyed by id.
type Manager struct {
	mu             sync.RWMutex
	sessions       map[string]*Session
	defaultVATRate float64
	logger         *zap.Logger
}

// NewManager creates a session manager. defaultVATRate is used until the
// extraction service reports a rate.
func NewManager(defaultVATRate float64, logger *zap.Logger) *Manager {
	return &Manager{
		sessions:       make(map[string]*Session),
		defaultVATRate: defaultVATRate,
		logger:         logger,
	}
}

// Create starts a new empty session and returns it.
func (m *Manager) Create() *Session {
	s := newSession(uuid.NewString(), m.defaultVATRate)

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	m.logger.Info("Batch session created", zap.String("session_id", s.ID()))
	return s
}

// Get returns the session with the given id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("unknown session %q", id)
	}
	return s, nil
}

// Delete discards a session.
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()

	m.logger.Info("Batch session discarded", zap.String("session_id", id))
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

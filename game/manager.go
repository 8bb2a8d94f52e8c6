// game/manager.go
package game

import (
	"sync"

	"github.com/wfunc/matchserver/models"
	"github.com/wfunc/matchserver/session"
)

// Manager tracks live matches and funnels their completion reports onto one
// channel for the server's control loop.
type Manager struct {
	matches     map[string]*Match
	completions chan *models.MatchResult
	mutex       sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		matches:     make(map[string]*Match),
		completions: make(chan *models.MatchResult, 16),
	}
}

// StartMatch constructs a match for the pair, registers it and launches its
// goroutine.
func (m *Manager) StartMatch(id string, inviter, acceptor *session.Session, cfg Config) *Match {
	match := NewMatch(id, inviter, acceptor, cfg, m.completions)

	m.mutex.Lock()
	m.matches[id] = match
	m.mutex.Unlock()

	match.Start()
	return match
}

func (m *Manager) Get(id string) (*Match, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	match, exists := m.matches[id]
	return match, exists
}

// Remove drops a finished match from tracking.
func (m *Manager) Remove(id string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.matches, id)
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.matches)
}

// StopAll aborts every live match. Used during server shutdown.
func (m *Manager) StopAll() {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	for _, match := range m.matches {
		match.Stop()
	}
}

// Completions delivers one result per terminated match.
func (m *Manager) Completions() <-chan *models.MatchResult {
	return m.completions
}

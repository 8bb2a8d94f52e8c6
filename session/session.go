// session/session.go
package session

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/wfunc/matchserver/network"
)

// State tracks where a connection is in its lifecycle. Auth sessions are not
// yet on the roster; InMatch sessions are excluded from lobby multiplexing.
type State int

const (
	StateAuth State = iota
	StateLobby
	StateInMatch
)

var (
	ErrServerFull      = errors.New("server full")
	ErrAlreadyLoggedIn = errors.New("username already has a live session")
)

type Session struct {
	ID         string
	Conn       network.Conn
	CreatedAt  time.Time
	LastActive time.Time

	username string
	state    State
	matchID  string
	mutex    sync.RWMutex
}

func NewSession(id string, conn network.Conn) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		Conn:       conn,
		CreatedAt:  now,
		LastActive: now,
		state:      StateAuth,
	}
}

func (s *Session) Username() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.username
}

func (s *Session) SetUsername(name string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.username = name
}

func (s *Session) State() State {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.state
}

func (s *Session) SetState(state State) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.state = state
	if state != StateInMatch {
		s.matchID = ""
	}
}

// EnterMatch binds the session to a match, keeping state and matchID
// consistent in one step.
func (s *Session) EnterMatch(matchID string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.state = StateInMatch
	s.matchID = matchID
}

func (s *Session) MatchID() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.matchID
}

func (s *Session) GetID() string {
	return s.ID
}

// WriteLine sends one protocol line. Errors are returned, not fatal: a dead
// peer is detected by its reader, the writer just stops mattering.
func (s *Session) WriteLine(line string) error {
	s.mutex.Lock()
	s.LastActive = time.Now()
	s.mutex.Unlock()
	return s.Conn.WriteLine(line)
}

// WriteText sends a raw text block (the board render spans several lines).
func (s *Session) WriteText(text string) error {
	s.mutex.Lock()
	s.LastActive = time.Now()
	s.mutex.Unlock()
	return s.Conn.WriteText(text)
}

func (s *Session) Close() error {
	return s.Conn.Close()
}

// Registry is the roster of authenticated sessions. All mutation happens on
// the server's control goroutine; reads may come from anywhere.
type Registry struct {
	sessions   map[string]*Session // session ID -> session
	byUsername map[string]*Session
	max        int
	mutex      sync.RWMutex
}

func NewRegistry(maxSessions int) *Registry {
	return &Registry{
		sessions:   make(map[string]*Session),
		byUsername: make(map[string]*Session),
		max:        maxSessions,
	}
}

// Add admits an authenticated session to the roster. Capacity and the
// one-live-session-per-username invariant are enforced here.
func (r *Registry) Add(session *Session) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.max > 0 && len(r.sessions) >= r.max {
		return ErrServerFull
	}
	name := session.Username()
	if _, exists := r.byUsername[name]; exists {
		return ErrAlreadyLoggedIn
	}
	r.sessions[session.ID] = session
	r.byUsername[name] = session
	return nil
}

// Remove drops the session from the roster and reports whether it was still
// present. A QUIT and the trailing transport error of the closed connection
// both land here; only the first caller observes true.
func (r *Registry) Remove(sessionID string) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	session, exists := r.sessions[sessionID]
	if !exists {
		return false
	}
	delete(r.sessions, sessionID)
	delete(r.byUsername, session.Username())
	return true
}

func (r *Registry) Get(sessionID string) (*Session, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	session, exists := r.sessions[sessionID]
	return session, exists
}

func (r *Registry) GetByUsername(name string) (*Session, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	session, exists := r.byUsername[name]
	return session, exists
}

func (r *Registry) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.sessions)
}

// Sessions returns every roster session regardless of state.
func (r *Registry) Sessions() []*Session {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := make([]*Session, 0, len(r.sessions))
	for _, session := range r.sessions {
		result = append(result, session)
	}
	return result
}

// LobbySessions returns the sessions currently eligible for lobby traffic.
func (r *Registry) LobbySessions() []*Session {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := make([]*Session, 0, len(r.sessions))
	for _, session := range r.sessions {
		if session.State() == StateLobby {
			result = append(result, session)
		}
	}
	return result
}

// LobbyUsernames returns the lobby roster sorted for deterministic output.
func (r *Registry) LobbyUsernames() []string {
	sessions := r.LobbySessions()
	names := make([]string, 0, len(sessions))
	for _, session := range sessions {
		names = append(names, session.Username())
	}
	sort.Strings(names)
	return names
}

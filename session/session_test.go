package session

import (
	"net"
	"testing"
)

// MockConnection is a test double for the network.Conn interface.
type MockConnection struct{}

func (m *MockConnection) ReadLine() (string, error)   { return "", nil }
func (m *MockConnection) WriteLine(line string) error { return nil }
func (m *MockConnection) WriteText(text string) error { return nil }
func (m *MockConnection) RemoteAddr() net.Addr        { return &net.TCPAddr{} }
func (m *MockConnection) Close() error                { return nil }

func newLobbySession(id, username string) *Session {
	s := NewSession(id, &MockConnection{})
	s.SetUsername(username)
	s.SetState(StateLobby)
	return s
}

func TestNewRegistry(t *testing.T) {
	registry := NewRegistry(10)
	if registry == nil {
		t.Fatal("NewRegistry should not return nil")
	}
	if registry.Count() != 0 {
		t.Fatalf("Fresh registry should be empty, got %d", registry.Count())
	}
}

func TestRegistry_Add_Get_Remove(t *testing.T) {
	registry := NewRegistry(10)
	sess := newLobbySession("sess1", "alice")

	if err := registry.Add(sess); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if registry.Count() != 1 {
		t.Fatalf("Expected count 1, got %d", registry.Count())
	}

	retrieved, exists := registry.Get("sess1")
	if !exists || retrieved != sess {
		t.Fatal("Get should return the added session")
	}

	byName, exists := registry.GetByUsername("alice")
	if !exists || byName != sess {
		t.Fatal("GetByUsername should return the added session")
	}

	registry.Remove("sess1")
	if registry.Count() != 0 {
		t.Fatalf("Expected count 0 after removal, got %d", registry.Count())
	}
	if _, exists := registry.GetByUsername("alice"); exists {
		t.Fatal("Username index should be cleared on removal")
	}
}

func TestRegistry_RemoveReportsPresence(t *testing.T) {
	registry := NewRegistry(10)
	registry.Add(newLobbySession("sess1", "alice"))

	if !registry.Remove("sess1") {
		t.Error("First removal should find the session")
	}
	if registry.Remove("sess1") {
		t.Error("Second removal of the same session should find nothing")
	}
	if registry.Remove("ghost") {
		t.Error("Removing an unknown id should find nothing")
	}
}

func TestRegistry_UsernameUniqueness(t *testing.T) {
	registry := NewRegistry(10)

	if err := registry.Add(newLobbySession("sess1", "alice")); err != nil {
		t.Fatalf("First add failed: %v", err)
	}
	err := registry.Add(newLobbySession("sess2", "alice"))
	if err != ErrAlreadyLoggedIn {
		t.Fatalf("Expected ErrAlreadyLoggedIn, got %v", err)
	}

	// The name frees up once the first session leaves.
	registry.Remove("sess1")
	if err := registry.Add(newLobbySession("sess3", "alice")); err != nil {
		t.Fatalf("Add after removal failed: %v", err)
	}
}

func TestRegistry_Capacity(t *testing.T) {
	registry := NewRegistry(2)

	registry.Add(newLobbySession("sess1", "alice"))
	registry.Add(newLobbySession("sess2", "bob"))

	err := registry.Add(newLobbySession("sess3", "carol"))
	if err != ErrServerFull {
		t.Fatalf("Expected ErrServerFull, got %v", err)
	}
}

func TestRegistry_LobbyUsernames(t *testing.T) {
	registry := NewRegistry(10)

	registry.Add(newLobbySession("sess1", "carol"))
	registry.Add(newLobbySession("sess2", "alice"))

	inMatch := newLobbySession("sess3", "bob")
	registry.Add(inMatch)
	inMatch.EnterMatch("match1")

	names := registry.LobbyUsernames()
	if len(names) != 2 {
		t.Fatalf("Expected 2 lobby names, got %v", names)
	}
	if names[0] != "alice" || names[1] != "carol" {
		t.Errorf("Expected sorted [alice carol], got %v", names)
	}
}

func TestSession_MatchBinding(t *testing.T) {
	sess := newLobbySession("sess1", "alice")

	sess.EnterMatch("match42")
	if sess.State() != StateInMatch {
		t.Error("EnterMatch should set StateInMatch")
	}
	if sess.MatchID() != "match42" {
		t.Errorf("Expected matchID match42, got %q", sess.MatchID())
	}

	sess.SetState(StateLobby)
	if sess.MatchID() != "" {
		t.Error("Leaving a match must clear the matchID")
	}
}

// broadcast/broadcast.go
package broadcast

import (
	"github.com/wfunc/matchserver/logger"
	"github.com/wfunc/matchserver/network"
	"github.com/wfunc/matchserver/session"
)

// Broadcaster pushes roster updates to lobby sessions. Send failures are
// logged and skipped; a dead connection is the reader goroutine's problem.
type Broadcaster interface {
	BroadcastLobby()
	SendLobbyTo(s *session.Session)
}

// LobbyBroadcaster renders the LOBBY: line from the registry.
type LobbyBroadcaster struct {
	registry *session.Registry
}

func NewLobbyBroadcaster(registry *session.Registry) *LobbyBroadcaster {
	return &LobbyBroadcaster{registry: registry}
}

// BroadcastLobby sends the current lobby roster to every lobby session,
// recipient included.
func (b *LobbyBroadcaster) BroadcastLobby() {
	line := network.FormatLobby(b.registry.LobbyUsernames())
	for _, s := range b.registry.LobbySessions() {
		if err := s.WriteLine(line); err != nil {
			logger.Log.Warnf("lobby broadcast to %s failed: %v", s.Username(), err)
			continue
		}
	}
}

// SendLobbyTo sends the roster to one session.
func (b *LobbyBroadcaster) SendLobbyTo(s *session.Session) {
	line := network.FormatLobby(b.registry.LobbyUsernames())
	if err := s.WriteLine(line); err != nil {
		logger.Log.Warnf("lobby send to %s failed: %v", s.Username(), err)
	}
}

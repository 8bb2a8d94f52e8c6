package network

import "testing"

func TestFormatLobby(t *testing.T) {
	if got := FormatLobby(nil); got != "LOBBY:No players available" {
		t.Errorf("Empty lobby: got %q", got)
	}
	if got := FormatLobby([]string{"alice", "bob"}); got != "LOBBY:alice,bob" {
		t.Errorf("Roster lobby: got %q", got)
	}
}

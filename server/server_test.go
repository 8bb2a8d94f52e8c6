package server

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wfunc/matchserver/config"
	"github.com/wfunc/matchserver/store"
)

// startTestServer boots a full server on an ephemeral port backed by a
// throwaway file store. RPC, metrics and websocket transports stay off so
// parallel tests never fight over ports or registries.
func startTestServer(t *testing.T, mutate func(*config.Config)) string {
	t.Helper()

	cfg := &config.Config{}
	cfg.Server.ListenAddress = "127.0.0.1:0"
	cfg.Server.MaxClients = 20
	cfg.Server.TurnTimeout = 5 * time.Second
	cfg.Notify.Mode = "nop"
	if mutate != nil {
		mutate(cfg)
	}

	db, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}

	srv := NewGameServer(cfg, db)
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	go srv.Serve()
	t.Cleanup(srv.Shutdown)

	return srv.Addr().String()
}

// testClient is a line-oriented client for driving the protocol.
type testClient struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func dial(t *testing.T, addr string) *testClient {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &testClient{t: t, conn: conn, r: bufio.NewReader(conn)}
}

func (c *testClient) send(line string) {
	c.t.Helper()
	if _, err := fmt.Fprintf(c.conn, "%s\n", line); err != nil {
		c.t.Fatalf("send %q failed: %v", line, err)
	}
}

// expect reads lines until one starts with prefix, skipping unrelated traffic
// such as lobby broadcasts. It fails the test after the read deadline.
func (c *testClient) expect(prefix string) string {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		line, err := c.r.ReadString('\n')
		if err != nil {
			c.t.Fatalf("waiting for %q: %v", prefix, err)
		}
		line = strings.TrimRight(line, "\r\n")
		if strings.HasPrefix(line, prefix) {
			return line
		}
	}
}

// expectClosed asserts the server hangs up.
func (c *testClient) expectClosed() {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		if _, err := c.r.ReadString('\n'); err != nil {
			return
		}
	}
}

func register(t *testing.T, addr, user string) *testClient {
	t.Helper()
	c := dial(t, addr)
	c.send("REGISTER " + user + " pass")
	c.expect("REGISTER_OK")
	return c
}

func TestAuth_RegisterAndLogin(t *testing.T) {
	addr := startTestServer(t, nil)

	c := dial(t, addr)
	c.send("REGISTER alice secret")
	c.expect("REGISTER_OK")
	c.send("QUIT")
	c.expect("GOODBYE")

	// Duplicate registration is refused and the connection closed.
	c = dial(t, addr)
	c.send("REGISTER alice other")
	c.expect("USER_EXISTS")
	c.expectClosed()

	c = dial(t, addr)
	c.send("LOGIN alice wrong")
	c.expect("INVALID_LOGIN")
	c.expectClosed()

	c = dial(t, addr)
	c.send("LOGIN alice secret")
	c.expect("LOGIN_OK")

	// A second login for a live user is refused.
	c2 := dial(t, addr)
	c2.send("LOGIN alice secret")
	c2.expect("ALREADY_LOGGED_IN")
	c2.expectClosed()
}

func TestAuth_Malformed(t *testing.T) {
	addr := startTestServer(t, nil)

	c := dial(t, addr)
	c.send("REGISTER alice")
	c.expect("INVALID_FORMAT")
	c.expectClosed()

	c = dial(t, addr)
	c.send("HELLO alice pass")
	c.expect("INVALID_COMMAND")
	c.expectClosed()

	c = dial(t, addr)
	c.send("REGISTER " + strings.Repeat("x", 64) + " pass")
	c.expect("USERNAME_OR_PASSWORD_TOO_LONG")
	c.expectClosed()
}

func TestAuth_ServerFull(t *testing.T) {
	addr := startTestServer(t, func(cfg *config.Config) {
		cfg.Server.MaxClients = 1
	})

	register(t, addr, "alice")

	// The success reply still precedes the capacity rejection.
	c := dial(t, addr)
	c.send("REGISTER bob pass")
	c.expect("REGISTER_OK")
	c.expect("SERVER_FULL")
	c.expectClosed()
}

func TestLobby_LeaderboardBeforeAnyGame(t *testing.T) {
	addr := startTestServer(t, nil)

	alice := register(t, addr, "alice")
	alice.send("LEADERBOARD")
	alice.expect("No statistics available yet.")
}

func onlinePlayersGauge(t *testing.T) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == "matchserver_online_players" {
			return mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatal("online_players gauge not registered")
	return 0
}

func waitForGauge(t *testing.T, want float64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		v := onlinePlayersGauge(t)
		if v == want {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("Gauge stuck at %v, want %v", v, want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// The only test that enables the monitor: prometheus collectors register on
// the process-global default registry exactly once.
func TestQuit_OnlinePlayersGauge(t *testing.T) {
	addr := startTestServer(t, func(cfg *config.Config) {
		cfg.Server.MetricsAddress = "127.0.0.1:0"
	})

	c := dial(t, addr)
	c.send("REGISTER alice pass")
	c.expect("REGISTER_OK")
	waitForGauge(t, 1)

	c.send("QUIT")
	c.expect("GOODBYE")
	waitForGauge(t, 0)

	// The closed connection's reader surfaces one final error event for a
	// session the roster already forgot; the gauge must not move again.
	settle := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(settle) {
		if v := onlinePlayersGauge(t); v != 0 {
			t.Fatalf("Gauge drifted to %v after quit", v)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestLobby_InviteDeclineAndErrors(t *testing.T) {
	addr := startTestServer(t, nil)

	alice := register(t, addr, "alice")
	bob := register(t, addr, "bob")

	alice.send("INVITE ghost")
	alice.expect("PLAYER_NOT_AVAILABLE")

	alice.send("INVITE alice")
	alice.expect("PLAYER_NOT_AVAILABLE")

	alice.send("INVITE")
	alice.expect("INVALID_INVITE_FORMAT")

	alice.send("INVITE bob")
	alice.expect("INVITE_SENT to bob")
	bob.expect("INVITE_FROM alice")

	bob.send("DECLINE alice")
	alice.expect("INVITE_DECLINED_BY bob")

	alice.send("DANCE")
	alice.expect("UNKNOWN_COMMAND")
}

func TestMatch_FullGame(t *testing.T) {
	addr := startTestServer(t, nil)

	alice := register(t, addr, "alice")
	bob := register(t, addr, "bob")

	alice.send("INVITE bob")
	bob.expect("INVITE_FROM alice")
	bob.send("ACCEPT alice")

	alice.expect("GAME_START: YOU_ARE_PLAYER_1 (X)")
	bob.expect("GAME_START: YOU_ARE_PLAYER_2 (O)")

	// Top row win for X: 1, 2, 3 against O on 4, 5.
	moves := []struct {
		who *testClient
		pos string
	}{
		{alice, "1"}, {bob, "4"}, {alice, "2"}, {bob, "5"},
	}
	for _, m := range moves {
		m.who.expect("YOUR_TURN")
		m.who.send(m.pos)
		m.who.expect("MOVE_MADE:")
	}
	alice.expect("YOUR_TURN")
	alice.send("3")

	alice.expect("GAME_OVER: PLAYER_1_WINS (alice wins!)")
	bob.expect("GAME_OVER: PLAYER_1_WINS (alice wins!)")
	alice.expect("RETURN_TO_LOBBY")
	bob.expect("RETURN_TO_LOBBY")

	// The result lands on the ledger.
	alice.send("LEADERBOARD")
	row := alice.expect(" 1. alice")
	if !strings.Contains(row, "W:  1") {
		t.Errorf("Expected one win for alice, got %q", row)
	}

	// Both are playable again.
	bob.send("INVITE alice")
	bob.expect("INVITE_SENT to alice")
	alice.expect("INVITE_FROM bob")
}

func TestMatch_InvalidMoves(t *testing.T) {
	addr := startTestServer(t, nil)

	alice := register(t, addr, "alice")
	bob := register(t, addr, "bob")

	alice.send("INVITE bob")
	bob.expect("INVITE_FROM alice")
	bob.send("ACCEPT alice")

	alice.expect("YOUR_TURN")
	alice.send("banana")
	alice.expect("INVALID_MOVE: Must be a number 1-9")
	alice.expect("YOUR_TURN")
	alice.send("12")
	alice.expect("INVALID_MOVE: Number must be between 1-9")
	alice.expect("YOUR_TURN")
	alice.send("5")
	alice.expect("MOVE_MADE: alice played position 5")

	bob.expect("YOUR_TURN")
	bob.send("5")
	bob.expect("INVALID_MOVE: Position already taken")
	bob.expect("YOUR_TURN")
	bob.send("1")
	bob.expect("MOVE_MADE: bob played position 1")
}

func TestMatch_Timeout(t *testing.T) {
	addr := startTestServer(t, func(cfg *config.Config) {
		cfg.Server.TurnTimeout = 150 * time.Millisecond
	})

	alice := register(t, addr, "alice")
	bob := register(t, addr, "bob")

	alice.send("INVITE bob")
	bob.expect("INVITE_FROM alice")
	bob.send("ACCEPT alice")

	alice.expect("YOUR_TURN")
	// alice never moves.
	alice.expect("TIMEOUT: You failed to move in time. YOU_LOSE!")
	bob.expect("OPPONENT_TIMEOUT: alice failed to move in time. YOU_WIN!")
	alice.expect("RETURN_TO_LOBBY")
	bob.expect("RETURN_TO_LOBBY")
}

func TestShutdown_ClosesInMatchConnections(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.ListenAddress = "127.0.0.1:0"
	cfg.Server.MaxClients = 20
	cfg.Server.TurnTimeout = 5 * time.Second
	cfg.Notify.Mode = "nop"

	db, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	srv := NewGameServer(cfg, db)
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	go srv.Serve()
	t.Cleanup(srv.Shutdown)
	addr := srv.Addr().String()

	alice := register(t, addr, "alice")
	bob := register(t, addr, "bob")

	alice.send("INVITE bob")
	bob.expect("INVITE_FROM alice")
	bob.send("ACCEPT alice")
	alice.expect("YOUR_TURN")

	srv.Shutdown()

	// In-match connections are closed too, not just lobby ones.
	alice.expectClosed()
	bob.expectClosed()
}

func TestMatch_Disconnect(t *testing.T) {
	addr := startTestServer(t, nil)

	alice := register(t, addr, "alice")
	bob := register(t, addr, "bob")

	alice.send("INVITE bob")
	bob.expect("INVITE_FROM alice")
	bob.send("ACCEPT alice")

	alice.expect("YOUR_TURN")
	alice.conn.Close()

	bob.expect("OPPONENT_DISCONNECTED: alice left the game. YOU_WIN!")
	bob.expect("RETURN_TO_LOBBY")

	// alice's seat and name are free again.
	c := dial(t, addr)
	c.send("LOGIN alice pass")
	c.expect("LOGIN_OK")
}

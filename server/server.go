package server

import (
	"net"
	"net/http"
	"net/rpc"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wfunc/matchserver/broadcast"
	"github.com/wfunc/matchserver/config"
	"github.com/wfunc/matchserver/game"
	"github.com/wfunc/matchserver/logger"
	"github.com/wfunc/matchserver/models"
	"github.com/wfunc/matchserver/monitor"
	"github.com/wfunc/matchserver/network"
	"github.com/wfunc/matchserver/notify"
	gamerpc "github.com/wfunc/matchserver/rpc"
	"github.com/wfunc/matchserver/services"
	"github.com/wfunc/matchserver/session"
	"github.com/wfunc/matchserver/store"
	"github.com/wfunc/matchserver/timer"
)

// event is one unit of input from a client connection: a protocol line or a
// transport failure. Reader goroutines produce these; only the control loop
// consumes them.
type event struct {
	sess *session.Session
	line string
	err  error
}

// GameServer is the session manager: authentication gateway, lobby roster,
// invitation routing and match lifecycle. All roster state is owned by the
// single control goroutine; match engines communicate back exclusively
// through the match manager's completions channel.
type GameServer struct {
	cfg         *config.Config
	listener    net.Listener
	upgrader    websocket.Upgrader
	registry    *session.Registry
	matches     *game.Manager
	timers      *timer.Manager
	db          store.Store
	stats       *services.StatsService
	broadcaster broadcast.Broadcaster
	notifier    notify.Notifier
	monitor     *monitor.Monitor
	rpcServer   *gamerpc.Server

	events       chan event
	shutdownChan chan struct{}
	shutdownOnce sync.Once
}

func NewGameServer(cfg *config.Config, db store.Store) *GameServer {
	registry := session.NewRegistry(cfg.Server.MaxClients)
	s := &GameServer{
		cfg:          cfg,
		registry:     registry,
		matches:      game.NewManager(),
		timers:       timer.NewManager(),
		db:           db,
		stats:        services.NewStatsService(db),
		broadcaster:  broadcast.NewLobbyBroadcaster(registry),
		notifier:     notify.ForMode(cfg.Notify.Mode),
		events:       make(chan event, 64),
		shutdownChan: make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	if cfg.Server.MetricsAddress != "" {
		s.monitor = monitor.NewMonitor("matchserver")
	}
	if cfg.Server.RPCAddress != "" {
		rpcServer, err := gamerpc.NewServer(cfg.Server.RPCAddress)
		if err != nil {
			logger.Log.Fatalf("Failed to create RPC server: %v", err)
		}
		s.rpcServer = rpcServer
		rpc.Register(gamerpc.NewStatsQuery(s.stats))
	}

	return s
}

// Listen binds the client listener. Failing to bind is fatal to startup.
func (s *GameServer) Listen() error {
	listener, err := net.Listen("tcp", s.cfg.Server.ListenAddress)
	if err != nil {
		return err
	}
	s.listener = listener
	return nil
}

// Addr returns the bound client listener address.
func (s *GameServer) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve runs the accept loop, optional transports and the control loop.
// Blocks until Shutdown.
func (s *GameServer) Serve() {
	logger.Log.Infof("Game server listening on %s", s.listener.Addr())

	go s.acceptLoop()
	if s.rpcServer != nil {
		go s.rpcServer.Start()
	}
	if s.monitor != nil {
		s.monitor.StartServer(s.cfg.Server.MetricsAddress)
	}
	if s.cfg.Server.WSAddress != "" {
		go s.serveWebSocket()
	}

	s.controlLoop()
}

// Start binds and serves.
func (s *GameServer) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	s.Serve()
	return nil
}

func (s *GameServer) Shutdown() {
	s.shutdownOnce.Do(func() {
		close(s.shutdownChan)
		if s.listener != nil {
			s.listener.Close()
		}
		if s.rpcServer != nil {
			s.rpcServer.Stop()
		}
		s.timers.Stop()
		s.matches.StopAll()
		for _, sess := range s.registry.Sessions() {
			sess.Close()
		}
	})
}

func (s *GameServer) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.shutdownChan:
				return
			default:
			}
			logger.Log.Errorf("accept failed: %v", err)
			continue
		}
		s.handleConnection(network.NewTCPConn(conn))
	}
}

func (s *GameServer) serveWebSocket() {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Log.Infof("Failed to upgrade connection: %v", err)
			return
		}
		s.handleConnection(network.NewWSConn(conn))
	})
	logger.Log.Infof("WebSocket transport listening on %s", s.cfg.Server.WSAddress)
	if err := http.ListenAndServe(s.cfg.Server.WSAddress, mux); err != nil {
		logger.Log.Errorf("WebSocket listener failed: %v", err)
	}
}

// handleConnection wraps a fresh transport in an unauthenticated session and
// starts its reader. The session joins the roster only after a successful
// handshake.
func (s *GameServer) handleConnection(conn network.Conn) {
	sess := session.NewSession(uuid.New().String(), conn)
	logger.Log.Infof("New connection from %s, session ID: %s", conn.RemoteAddr(), sess.ID)
	go s.readLoop(sess)
}

func (s *GameServer) readLoop(sess *session.Session) {
	for {
		line, err := sess.Conn.ReadLine()
		select {
		case s.events <- event{sess: sess, line: line, err: err}:
		case <-s.shutdownChan:
			return
		}
		if err != nil {
			return
		}
	}
}

// controlLoop is the only goroutine that mutates roster state. It multiplexes
// client events, match completions and shutdown uniformly.
func (s *GameServer) controlLoop() {
	for {
		select {
		case ev := <-s.events:
			s.handleEvent(ev)
		case result := <-s.matches.Completions():
			s.handleMatchComplete(result)
		case <-s.shutdownChan:
			return
		}
	}
}

func (s *GameServer) handleEvent(ev event) {
	if s.monitor != nil {
		s.monitor.IncCommandsReceived()
		defer func(start time.Time) {
			s.monitor.ObserveCommandLatency(time.Since(start))
		}(time.Now())
	}

	if ev.err != nil {
		s.handleTransportError(ev.sess)
		return
	}

	switch ev.sess.State() {
	case session.StateAuth:
		s.handleAuth(ev.sess, ev.line)
	case session.StateLobby:
		s.handleLobbyCommand(ev.sess, ev.line)
	case session.StateInMatch:
		if match, ok := s.matches.Get(ev.sess.MatchID()); ok {
			match.Deliver(ev.sess.ID, ev.line)
		}
	}
}

func (s *GameServer) handleTransportError(sess *session.Session) {
	switch sess.State() {
	case session.StateAuth:
		sess.Close()
	case session.StateLobby:
		// A QUIT already closed this connection; its reader reports one final
		// error for a session the roster has forgotten.
		if s.removeSession(sess) {
			logger.Log.Infof("Client '%s' disconnected", sess.Username())
		}
	case session.StateInMatch:
		// The owning engine detects the loss and finalizes the match; the
		// roster just forgets the session.
		logger.Log.Infof("Client '%s' disconnected mid-match", sess.Username())
		if match, ok := s.matches.Get(sess.MatchID()); ok {
			match.DeliverError(sess.ID)
		}
		if s.registry.Remove(sess.ID) && s.monitor != nil {
			s.monitor.DecOnlinePlayers()
		}
		sess.Close()
	}
}

// handleAuth processes the first line of a connection: REGISTER or LOGIN.
// Every failure closes the connection.
func (s *GameServer) handleAuth(sess *session.Session, line string) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		s.rejectAuth(sess, network.MsgInvalidFormat)
		return
	}
	command, user, pass := fields[0], fields[1], fields[2]

	if len(user) > network.MaxNameLen || len(pass) > network.MaxNameLen {
		s.rejectAuth(sess, network.MsgNameTooLong)
		return
	}

	switch command {
	case "REGISTER":
		exists, err := s.db.UserExists(user)
		if err != nil {
			logger.Log.Errorf("user lookup for '%s' failed: %v", user, err)
			sess.Close()
			return
		}
		if exists {
			s.rejectAuth(sess, network.MsgUserExists)
			return
		}
		if err := s.db.RegisterUser(user, pass); err != nil {
			logger.Log.Errorf("register '%s' failed: %v", user, err)
			s.rejectAuth(sess, network.MsgUserExists)
			return
		}
		logger.Log.Infof("User '%s' registered", user)
		s.admit(sess, user, network.MsgRegisterOK)

	case "LOGIN":
		valid, err := s.db.ValidateLogin(user, pass)
		if err != nil {
			logger.Log.Errorf("login lookup for '%s' failed: %v", user, err)
			sess.Close()
			return
		}
		if !valid {
			s.rejectAuth(sess, network.MsgInvalidLogin)
			return
		}
		if _, live := s.registry.GetByUsername(user); live {
			s.rejectAuth(sess, network.MsgAlreadyLoggedIn)
			return
		}
		s.admit(sess, user, network.MsgLoginOK)

	default:
		s.rejectAuth(sess, network.MsgInvalidCommand)
	}
}

func (s *GameServer) rejectAuth(sess *session.Session, reply string) {
	sess.WriteLine(reply)
	sess.Close()
}

// admit sends the success reply, then places the session on the roster. The
// reply precedes the capacity check, so a full server answers OK then
// SERVER_FULL before closing.
func (s *GameServer) admit(sess *session.Session, user, reply string) {
	sess.WriteLine(reply)
	sess.SetUsername(user)
	sess.SetState(session.StateLobby)

	if err := s.registry.Add(sess); err != nil {
		sess.SetState(session.StateAuth)
		switch err {
		case session.ErrServerFull:
			s.rejectAuth(sess, network.MsgServerFull)
		default:
			s.rejectAuth(sess, network.MsgAlreadyLoggedIn)
		}
		return
	}

	logger.Log.Infof("Added '%s' to lobby (session %s, total %d)", user, sess.ID, s.registry.Count())
	if s.monitor != nil {
		s.monitor.IncOnlinePlayers()
	}
	s.broadcaster.BroadcastLobby()
}

func (s *GameServer) handleLobbyCommand(sess *session.Session, line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		sess.WriteLine(network.MsgUnknownCommand)
		return
	}
	logger.Log.Infof("From '%s': '%s'", sess.Username(), line)

	switch fields[0] {
	case "INVITE":
		if len(fields) < 2 {
			sess.WriteLine(network.MsgInvalidInviteFormat)
			return
		}
		s.handleInvite(sess, fields[1])

	case "ACCEPT":
		if len(fields) < 2 {
			sess.WriteLine(network.MsgInvalidAcceptFormat)
			return
		}
		s.handleAccept(sess, fields[1])

	case "DECLINE":
		if len(fields) < 2 {
			sess.WriteLine(network.MsgInvalidDeclineFormat)
			return
		}
		if target, ok := s.registry.GetByUsername(fields[1]); ok {
			target.WriteLine(network.FormatInviteDeclinedBy(sess.Username()))
		}

	case "LEADERBOARD":
		sess.WriteText(s.stats.FormatLeaderboard())

	case "QUIT":
		sess.WriteLine(network.MsgGoodbye)
		s.removeSession(sess)

	default:
		sess.WriteLine(network.MsgUnknownCommand)
	}
}

func (s *GameServer) handleInvite(sess *session.Session, targetName string) {
	target, ok := s.registry.GetByUsername(targetName)
	if !ok || target.State() != session.StateLobby || target.ID == sess.ID {
		sess.WriteLine(network.MsgPlayerNotAvailable)
		return
	}
	target.WriteLine(network.FormatInviteFrom(sess.Username()))
	sess.WriteLine(network.FormatInviteSent(targetName))
}

// handleAccept pairs the acceptor with the named inviter. The inviter must be
// lobby-eligible; the inviter is player 1.
func (s *GameServer) handleAccept(sess *session.Session, inviterName string) {
	inviter, ok := s.registry.GetByUsername(inviterName)
	if !ok || inviter.State() != session.StateLobby || inviter.ID == sess.ID {
		sess.WriteLine(network.MsgPlayerNotAvailable)
		return
	}
	s.startMatch(inviter, sess)
}

func (s *GameServer) startMatch(inviter, acceptor *session.Session) {
	matchID := uuid.New().String()

	// Both leave lobby multiplexing atomically from the control loop's point
	// of view: no further lines from either are treated as lobby commands.
	inviter.EnterMatch(matchID)
	acceptor.EnterMatch(matchID)

	s.matches.StartMatch(matchID, inviter, acceptor, game.Config{
		Store:       s.db,
		Notifier:    s.notifier,
		Timers:      s.timers,
		TurnTimeout: s.cfg.Server.TurnTimeout,
	})

	logger.Log.Infof("Starting match %s between %s and %s", matchID, inviter.Username(), acceptor.Username())
	if s.monitor != nil {
		s.monitor.SetActiveMatches(s.matches.Count())
	}
	s.broadcaster.BroadcastLobby()
}

// handleMatchComplete returns the surviving participants to the lobby and
// rebroadcasts the roster. Invoked exactly once per match.
func (s *GameServer) handleMatchComplete(result *models.MatchResult) {
	s.matches.Remove(result.MatchID)
	logger.Log.Infof("Match %s complete (%s)", result.MatchID, result.Reason)
	if s.monitor != nil {
		s.monitor.SetActiveMatches(s.matches.Count())
		s.monitor.IncMatchesCompleted()
	}

	for _, name := range []string{result.Player1, result.Player2} {
		sess, ok := s.registry.GetByUsername(name)
		if !ok || sess.MatchID() != result.MatchID {
			continue
		}
		sess.SetState(session.StateLobby)
		sess.WriteLine(network.MsgReturnToLobby)
		s.broadcaster.SendLobbyTo(sess)
	}
	s.broadcaster.BroadcastLobby()
}

// removeSession drops the session from the roster and closes it. The gauge
// decrement and lobby rebroadcast happen only for the call that actually
// removed it, so the closed connection's trailing read error is a no-op.
func (s *GameServer) removeSession(sess *session.Session) bool {
	removed := s.registry.Remove(sess.ID)
	sess.Close()
	if !removed {
		return false
	}
	if s.monitor != nil {
		s.monitor.DecOnlinePlayers()
	}
	s.broadcaster.BroadcastLobby()
	return true
}

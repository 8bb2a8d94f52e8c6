// game/match.go
package game

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/wfunc/matchserver/logger"
	"github.com/wfunc/matchserver/models"
	"github.com/wfunc/matchserver/network"
	"github.com/wfunc/matchserver/notify"
	"github.com/wfunc/matchserver/session"
	"github.com/wfunc/matchserver/state"
	"github.com/wfunc/matchserver/store"
	"github.com/wfunc/matchserver/timer"
)

// Match statuses. ACTIVE has exactly one transition to each terminal status
// and the terminals have none, so a match ends exactly once.
const (
	StatusActive       state.Status = "ACTIVE"
	StatusWon          state.Status = "WON"
	StatusDraw         state.Status = "DRAW"
	StatusTimeout      state.Status = "TIMEOUT"
	StatusDisconnected state.Status = "DISCONNECTED"
)

func matchTransitions() map[state.Status][]state.Status {
	return map[state.Status][]state.Status{
		StatusActive: {StatusWon, StatusDraw, StatusTimeout, StatusDisconnected},
	}
}

type inputKind int

const (
	inputMove inputKind = iota
	inputError
	inputTimeout
)

type input struct {
	kind   inputKind
	player int // 1 or 2; unused for timeouts
	line   string
	seq    int64 // turn sequence a timeout was armed for
}

// Config carries the collaborators a match engine needs.
type Config struct {
	Store       store.Store
	Notifier    notify.Notifier
	Timers      *timer.Manager
	TurnTimeout time.Duration
}

// Match owns one game: board, turn order and deadline. It runs as its own
// goroutine fed through Deliver/DeliverError and never touches the roster;
// completion is reported once on the completions channel.
type Match struct {
	ID      string
	players [2]*session.Session

	board   Board
	turn    int
	machine *state.Machine
	pending [2][]string

	cfg         Config
	inputs      chan input
	done        chan struct{}
	stop        chan struct{}
	stopOnce    sync.Once
	completions chan<- *models.MatchResult
	turnSeq     int64
	timerID     int64
}

// NewMatch pairs the two sessions. The inviter is player 1 and plays X.
func NewMatch(id string, inviter, acceptor *session.Session, cfg Config, completions chan<- *models.MatchResult) *Match {
	return &Match{
		ID:          id,
		players:     [2]*session.Session{inviter, acceptor},
		board:       NewBoard(),
		turn:        1,
		machine:     state.NewMachine(StatusActive, matchTransitions()),
		cfg:         cfg,
		inputs:      make(chan input, 32),
		done:        make(chan struct{}),
		stop:        make(chan struct{}),
		completions: completions,
	}
}

func (m *Match) Start() {
	go m.run()
}

// Stop aborts the match during server shutdown: the engine goroutine unwinds
// without a terminal transition, ledger commit or completion report.
func (m *Match) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
	})
}

// Status returns the match's current status.
func (m *Match) Status() state.Status {
	return m.machine.Current()
}

// Deliver routes a line read from one of the players into the engine. Lines
// arriving after the match ended are dropped.
func (m *Match) Deliver(sessionID, line string) {
	player := m.playerIndex(sessionID)
	if player == 0 {
		return
	}
	select {
	case m.inputs <- input{kind: inputMove, player: player, line: line}:
	case <-m.done:
	}
}

// DeliverError reports a transport failure on one player's connection.
func (m *Match) DeliverError(sessionID string) {
	player := m.playerIndex(sessionID)
	if player == 0 {
		return
	}
	select {
	case m.inputs <- input{kind: inputError, player: player}:
	case <-m.done:
	}
}

func (m *Match) playerIndex(sessionID string) int {
	for i, p := range m.players {
		if p.ID == sessionID {
			return i + 1
		}
	}
	return 0
}

func (m *Match) run() {
	defer close(m.done)

	p1, p2 := m.username(1), m.username(2)
	logger.Log.Infof("match %s started: %s (P1) vs %s (P2)", m.ID, p1, p2)
	m.cfg.Notifier.Publish(fmt.Sprintf("Game started: %s vs %s", p1, p2))

	m.send(1, network.FormatGameStart(1, "X"))
	m.send(2, network.FormatGameStart(2, "O"))
	m.broadcastBoard()
	m.promptTurn()

	for {
		// A line the off-turn player sent early is their move once the turn
		// reaches them.
		if buffered := m.pending[m.turn-1]; len(buffered) > 0 {
			line := buffered[0]
			m.pending[m.turn-1] = buffered[1:]
			if m.handleMove(line) {
				return
			}
			continue
		}

		var in input
		select {
		case in = <-m.inputs:
		case <-m.stop:
			m.cfg.Timers.Cancel(m.timerID)
			return
		}
		switch in.kind {
		case inputTimeout:
			if in.seq != m.turnSeq {
				continue // superseded deadline
			}
			m.finishTimeout()
			return
		case inputError:
			m.finishDisconnect(in.player)
			return
		case inputMove:
			if in.player != m.turn {
				m.pending[in.player-1] = append(m.pending[in.player-1], in.line)
				continue
			}
			if m.handleMove(in.line) {
				return
			}
		}
	}
}

// handleMove applies one line from the current player. Returns true when the
// match reached a terminal status.
func (m *Match) handleMove(line string) bool {
	position, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		m.reprompt("Must be a number 1-9")
		return false
	}

	switch err := m.board.Place(position, m.mark(m.turn)); {
	case errors.Is(err, ErrOutOfRange):
		m.reprompt("Number must be between 1-9")
		return false
	case errors.Is(err, ErrOccupied):
		m.reprompt("Position already taken")
		return false
	}

	m.cfg.Timers.Cancel(m.timerID)
	logger.Log.Infof("match %s: player %d (%s) played %d", m.ID, m.turn, m.username(m.turn), position)

	// Board always follows the move announcement; the next turn prompt only
	// goes out after both.
	m.broadcast(network.FormatMoveMade(m.username(m.turn), position))
	m.broadcastBoard()

	if m.board.HasWin(m.mark(m.turn)) {
		m.finishWin(m.turn)
		return true
	}
	if m.board.Full() {
		m.finishDraw()
		return true
	}

	m.turn = opponent(m.turn)
	m.promptTurn()
	return false
}

// reprompt rejects an input, keeps the turn with the same player and re-arms
// their deadline.
func (m *Match) reprompt(reason string) {
	m.send(m.turn, network.FormatInvalidMove(reason))
	m.promptTurn()
}

// promptTurn notifies the current player and arms a fresh deadline. The
// sequence number lets the engine ignore a deadline that fired for an earlier
// turn.
func (m *Match) promptTurn() {
	m.cfg.Timers.Cancel(m.timerID)
	m.turnSeq++
	seq := m.turnSeq
	m.send(m.turn, network.MsgYourTurn)
	m.timerID = m.cfg.Timers.Schedule(m.cfg.TurnTimeout, func() {
		select {
		case m.inputs <- input{kind: inputTimeout, seq: seq}:
		case <-m.done:
		}
	})
}

func (m *Match) finishWin(winner int) {
	if !m.transition(StatusWon) {
		return
	}
	loser := opponent(winner)
	m.broadcast(network.FormatGameOverWin(winner, m.username(winner)))
	m.record(m.username(winner), m.username(loser))
	m.cfg.Notifier.Publish(fmt.Sprintf("Game ended: %s defeats %s", m.username(winner), m.username(loser)))
	m.complete(&models.MatchResult{
		MatchID: m.ID,
		Winner:  m.username(winner),
		Loser:   m.username(loser),
		Reason:  models.ReasonLine,
		Player1: m.username(1),
		Player2: m.username(2),
	})
}

func (m *Match) finishDraw() {
	if !m.transition(StatusDraw) {
		return
	}
	m.broadcast(network.MsgGameOverDraw)
	m.appendResult(m.username(1), models.OutcomeDraw)
	m.appendResult(m.username(2), models.OutcomeDraw)
	m.cfg.Notifier.Publish(fmt.Sprintf("Game ended: %s vs %s - Draw", m.username(1), m.username(2)))
	m.complete(&models.MatchResult{
		MatchID: m.ID,
		Draw:    true,
		Reason:  models.ReasonDraw,
		Player1: m.username(1),
		Player2: m.username(2),
	})
}

func (m *Match) finishTimeout() {
	if !m.transition(StatusTimeout) {
		return
	}
	loser := m.turn
	winner := opponent(loser)
	m.send(winner, network.FormatOpponentTimeout(m.username(loser)))
	m.send(loser, network.FormatTimeout())
	m.record(m.username(winner), m.username(loser))
	m.cfg.Notifier.Publish(fmt.Sprintf("Game timeout: %s wins by default", m.username(winner)))
	m.complete(&models.MatchResult{
		MatchID: m.ID,
		Winner:  m.username(winner),
		Loser:   m.username(loser),
		Reason:  models.ReasonTimeout,
		Player1: m.username(1),
		Player2: m.username(2),
	})
}

func (m *Match) finishDisconnect(gone int) {
	if !m.transition(StatusDisconnected) {
		return
	}
	winner := opponent(gone)
	m.send(winner, network.FormatOpponentDisconnected(m.username(gone)))
	m.record(m.username(winner), m.username(gone))
	m.cfg.Notifier.Publish(fmt.Sprintf("Player disconnect: %s wins by default", m.username(winner)))
	m.complete(&models.MatchResult{
		MatchID: m.ID,
		Winner:  m.username(winner),
		Loser:   m.username(gone),
		Reason:  models.ReasonDisconnect,
		Player1: m.username(1),
		Player2: m.username(2),
	})
}

// transition makes the single ACTIVE -> terminal move. A second terminal
// attempt is refused by the machine, which keeps the result commit unique.
func (m *Match) transition(to state.Status) bool {
	if err := m.machine.Transition(to); err != nil {
		logger.Log.Errorf("match %s: refused transition to %s: %v", m.ID, to, err)
		return false
	}
	m.cfg.Timers.Cancel(m.timerID)
	return true
}

func (m *Match) record(winner, loser string) {
	m.appendResult(winner, models.OutcomeWin)
	m.appendResult(loser, models.OutcomeLoss)
}

func (m *Match) appendResult(user string, outcome models.Outcome) {
	if err := m.cfg.Store.AppendResult(user, outcome); err != nil {
		logger.Log.Errorf("match %s: record %s for %s: %v", m.ID, outcome, user, err)
	}
}

func (m *Match) complete(result *models.MatchResult) {
	logger.Log.Infof("match %s ended (%s)", m.ID, result.Reason)
	m.completions <- result
}

func (m *Match) send(player int, line string) {
	if err := m.players[player-1].WriteLine(line); err != nil {
		logger.Log.Warnf("match %s: send to %s failed: %v", m.ID, m.username(player), err)
	}
}

func (m *Match) broadcast(line string) {
	m.send(1, line)
	m.send(2, line)
}

func (m *Match) broadcastBoard() {
	text := "BOARD:\n" + m.board.String()
	for i, p := range m.players {
		if err := p.WriteText(text); err != nil {
			logger.Log.Warnf("match %s: board to %s failed: %v", m.ID, m.username(i+1), err)
		}
	}
}

func (m *Match) username(player int) string {
	return m.players[player-1].Username()
}

func (m *Match) mark(player int) Cell {
	if player == 1 {
		return MarkX
	}
	return MarkO
}

func opponent(player int) int {
	return 3 - player
}

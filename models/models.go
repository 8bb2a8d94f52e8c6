// models/models.go
package models

// Outcome is the recorded result for one participant of a completed match.
type Outcome string

const (
	OutcomeWin  Outcome = "WIN"
	OutcomeLoss Outcome = "LOSS"
	OutcomeDraw Outcome = "DRAW"
)

// Valid reports whether o is one of the three ledger outcomes.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeWin, OutcomeLoss, OutcomeDraw:
		return true
	}
	return false
}

// LeaderboardEntry is one aggregated row of the leaderboard, in ranking order.
type LeaderboardEntry struct {
	Username string `json:"username"`
	Wins     int    `json:"wins"`
	Losses   int    `json:"losses"`
	Draws    int    `json:"draws"`
}

// Total returns the number of completed matches the player took part in.
func (e LeaderboardEntry) Total() int {
	return e.Wins + e.Losses + e.Draws
}

// WinRate returns the win fraction over decisive games in [0,1]. Draws do not
// dilute the rate; a player with no decisive games rates 0.
func (e LeaderboardEntry) WinRate() float64 {
	decisive := e.Wins + e.Losses
	if decisive == 0 {
		return 0
	}
	return float64(e.Wins) / float64(decisive)
}

// MatchResult describes how a match ended, reported by the engine to the
// session manager when the match goroutine unwinds.
type MatchResult struct {
	MatchID string
	Winner  string // empty on draw
	Loser   string // empty on draw
	Draw    bool
	Reason  ResultReason
	Player1 string
	Player2 string
}

// ResultReason distinguishes the terminal paths of a match.
type ResultReason string

const (
	ReasonLine       ResultReason = "line"
	ReasonDraw       ResultReason = "draw"
	ReasonTimeout    ResultReason = "timeout"
	ReasonDisconnect ResultReason = "disconnect"
)

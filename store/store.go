// store/store.go
package store

import (
	"errors"
	"sort"

	"github.com/wfunc/matchserver/models"
)

// Store is durable credential and result storage. Implementations must be
// safe for concurrent use from the session manager and any number of match
// engines.
type Store interface {
	UserExists(name string) (bool, error)
	ValidateLogin(name, pass string) (bool, error)
	RegisterUser(name, pass string) error
	AppendResult(name string, outcome models.Outcome) error
	Leaderboard(limit int) ([]models.LeaderboardEntry, error)
	Close() error
}

var (
	// ErrUserExists is returned by RegisterUser on a duplicate username.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidOutcome is returned when a result outside WIN/LOSS/DRAW is appended.
	ErrInvalidOutcome = errors.New("invalid outcome")
	// ErrNoStats is returned by Leaderboard when no result has ever been
	// recorded, as opposed to a ledger that exists but aggregates to nothing.
	ErrNoStats = errors.New("no statistics recorded")
)

// rankEntries orders aggregated entries by wins descending then win rate
// descending. The sort is stable so ledger first-seen order breaks ties.
func rankEntries(entries []models.LeaderboardEntry, limit int) []models.LeaderboardEntry {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Wins != entries[j].Wins {
			return entries[i].Wins > entries[j].Wins
		}
		return entries[i].WinRate() > entries[j].WinRate()
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

// services/stats_service.go
package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/wfunc/matchserver/models"
	"github.com/wfunc/matchserver/store"
)

// LeaderboardLimit is how many entries the lobby leaderboard shows.
const LeaderboardLimit = 10

const leaderboardBanner = "==========================================\n"

// StatsService renders leaderboard and per-player views over the store.
type StatsService struct {
	db store.Store
}

func NewStatsService(db store.Store) *StatsService {
	return &StatsService{db: db}
}

// Leaderboard returns the ranked top entries. A never-written ledger is an
// empty ranking here; only the rendered table distinguishes the two.
func (s *StatsService) Leaderboard(limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = LeaderboardLimit
	}
	entries, err := s.db.Leaderboard(limit)
	if errors.Is(err, store.ErrNoStats) {
		return nil, nil
	}
	return entries, err
}

// FormatLeaderboard renders the fixed-width table sent to lobby clients. With
// no result ever recorded there is no table at all, only the bare notice; a
// ledger that aggregates to nothing still gets the banner.
func (s *StatsService) FormatLeaderboard() string {
	entries, err := s.db.Leaderboard(LeaderboardLimit)
	if err != nil {
		return "No statistics available yet.\n"
	}

	var b strings.Builder
	b.WriteString(leaderboardBanner)
	b.WriteString("           LEADERBOARD (Top 10)          \n")
	b.WriteString(leaderboardBanner)

	if len(entries) == 0 {
		b.WriteString("No games played yet.\n")
	} else {
		for i, e := range entries {
			fmt.Fprintf(&b, "%2d. %-20s | W:%3d L:%3d D:%3d | Rate: %.1f%%\n",
				i+1, e.Username, e.Wins, e.Losses, e.Draws, e.WinRate()*100)
		}
	}
	b.WriteString(leaderboardBanner)
	return b.String()
}

// PlayerRecord returns one player's aggregated ledger line. A player absent
// from the ledger gets a zero record.
func (s *StatsService) PlayerRecord(name string) (models.LeaderboardEntry, error) {
	entries, err := s.db.Leaderboard(0)
	if err != nil && !errors.Is(err, store.ErrNoStats) {
		return models.LeaderboardEntry{}, err
	}
	for _, e := range entries {
		if e.Username == name {
			return e, nil
		}
	}
	return models.LeaderboardEntry{Username: name}, nil
}

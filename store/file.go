// store/file.go
package store

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/wfunc/matchserver/logger"
	"github.com/wfunc/matchserver/models"
)

const (
	usersFile   = "users.db"
	resultsFile = "results.db"
)

// FileStore keeps credentials and the result ledger as flat append-only
// files: one "user:pass" line per account, one "user OUTCOME" line per
// completed-match participant. Each file has its own shared/exclusive lock,
// held only for the duration of a scan or an append.
type FileStore struct {
	usersPath   string
	resultsPath string
	usersMu     sync.RWMutex
	resultsMu   sync.RWMutex
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &FileStore{
		usersPath:   filepath.Join(dir, usersFile),
		resultsPath: filepath.Join(dir, resultsFile),
	}, nil
}

func (s *FileStore) UserExists(name string) (bool, error) {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()
	return s.scanUsers(func(user, _ string) bool {
		return user == name
	})
}

func (s *FileStore) ValidateLogin(name, pass string) (bool, error) {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()
	return s.scanUsers(func(user, password string) bool {
		return user == name && password == pass
	})
}

// scanUsers must be called with usersMu held. A missing file means no users.
func (s *FileStore) scanUsers(match func(user, pass string) bool) (bool, error) {
	f, err := os.Open(s.usersPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("open %s: %w", s.usersPath, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		user, pass, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		if match(user, pass) {
			return true, nil
		}
	}
	return false, scanner.Err()
}

// RegisterUser appends a credential line. The duplicate check runs under the
// same exclusive lock as the append, so two concurrent registrations of one
// name serialize and the loser gets ErrUserExists.
func (s *FileStore) RegisterUser(name, pass string) error {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()

	exists, err := s.scanUsers(func(user, _ string) bool {
		return user == name
	})
	if err != nil {
		return err
	}
	if exists {
		logger.Log.Warnf("register conflict for user %q", name)
		return ErrUserExists
	}

	return appendLine(s.usersPath, fmt.Sprintf("%s:%s", name, pass))
}

func (s *FileStore) AppendResult(name string, outcome models.Outcome) error {
	if !outcome.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidOutcome, outcome)
	}

	s.resultsMu.Lock()
	defer s.resultsMu.Unlock()
	return appendLine(s.resultsPath, fmt.Sprintf("%s %s", name, outcome))
}

func (s *FileStore) Leaderboard(limit int) ([]models.LeaderboardEntry, error) {
	s.resultsMu.RLock()
	entries, err := s.aggregate()
	s.resultsMu.RUnlock()
	if err != nil {
		return nil, err
	}
	return rankEntries(entries, limit), nil
}

// aggregate must be called with resultsMu held. Entries come back in
// first-seen ledger order; a ledger file that was never created is ErrNoStats.
func (s *FileStore) aggregate() ([]models.LeaderboardEntry, error) {
	f, err := os.Open(s.resultsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoStats
		}
		return nil, fmt.Errorf("open %s: %w", s.resultsPath, err)
	}
	defer f.Close()

	var entries []models.LeaderboardEntry
	index := make(map[string]int)

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		user, outcome, ok := strings.Cut(scanner.Text(), " ")
		if !ok {
			continue
		}
		i, seen := index[user]
		if !seen {
			i = len(entries)
			index[user] = i
			entries = append(entries, models.LeaderboardEntry{Username: user})
		}
		switch models.Outcome(outcome) {
		case models.OutcomeWin:
			entries[i].Wins++
		case models.OutcomeLoss:
			entries[i].Losses++
		case models.OutcomeDraw:
			entries[i].Draws++
		}
	}
	return entries, scanner.Err()
}

func (s *FileStore) Close() error {
	return nil
}

func appendLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s for append: %w", path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("append to %s: %w", path, err)
	}
	return nil
}

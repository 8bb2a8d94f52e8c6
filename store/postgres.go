// store/postgres.go
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/wfunc/matchserver/models"
)

// PostgresStore is the raw database/sql backend. The schema mirrors the flat
// files: a credential row per account, an append-only result row per
// completed-match participant (the id sequence preserves append order).
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(host string, port int, user, password, dbname string) (*PostgresStore, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(100)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func createTables(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id SERIAL PRIMARY KEY,
			username TEXT UNIQUE NOT NULL,
			password TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS results (
			id SERIAL PRIMARY KEY,
			username TEXT NOT NULL,
			outcome TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_results_username ON results (username)`,
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("create tables: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) UserExists(name string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(
		`SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`, name,
	).Scan(&exists)
	return exists, err
}

func (s *PostgresStore) ValidateLogin(name, pass string) (bool, error) {
	var valid bool
	err := s.db.QueryRow(
		`SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 AND password = $2)`,
		name, pass,
	).Scan(&valid)
	return valid, err
}

func (s *PostgresStore) RegisterUser(name, pass string) error {
	res, err := s.db.Exec(
		`INSERT INTO users (username, password) VALUES ($1, $2)
		 ON CONFLICT (username) DO NOTHING`,
		name, pass,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrUserExists
	}
	return nil
}

func (s *PostgresStore) AppendResult(name string, outcome models.Outcome) error {
	if !outcome.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidOutcome, outcome)
	}
	_, err := s.db.Exec(
		`INSERT INTO results (username, outcome) VALUES ($1, $2)`,
		name, string(outcome),
	)
	return err
}

func (s *PostgresStore) Leaderboard(limit int) ([]models.LeaderboardEntry, error) {
	rows, err := s.db.Query(
		`SELECT username,
		        COUNT(*) FILTER (WHERE outcome = 'WIN')  AS wins,
		        COUNT(*) FILTER (WHERE outcome = 'LOSS') AS losses,
		        COUNT(*) FILTER (WHERE outcome = 'DRAW') AS draws
		 FROM results
		 GROUP BY username
		 ORDER BY MIN(id)`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.LeaderboardEntry
	for rows.Next() {
		var e models.LeaderboardEntry
		if err := rows.Scan(&e.Username, &e.Wins, &e.Losses, &e.Draws); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rankEntries(entries, limit), nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

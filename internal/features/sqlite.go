package features

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// #region schema

const schema = `
CREATE TABLE IF NOT EXISTS daily_checkins (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id       TEXT NOT NULL,
	mood          REAL NOT NULL,
	stress        REAL NOT NULL,
	energy        REAL NOT NULL,
	sleep_quality REAL NOT NULL,
	created_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_daily_checkins_user_time
ON daily_checkins(user_id, created_at);

CREATE TABLE IF NOT EXISTS tool_completions (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id    TEXT NOT NULL,
	tool_id    TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tool_completions_user_time
ON tool_completions(user_id, created_at);
`

// #endregion schema

// #region store

// Store is the SQLite-backed feature source: check-in and completion history
// shared with the rest of the application.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStoreWithDB wraps an already-open database, running migrations. Used
// when the feature tables share a file with the outcome log.
func NewStoreWithDB(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for packages sharing the file.
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion store

// #region writes

// RecordObservation appends a check-in row. A zero CreatedAt is stamped now.
func (s *Store) RecordObservation(ctx context.Context, obs Observation) error {
	if obs.CreatedAt.IsZero() {
		obs.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO daily_checkins (user_id, mood, stress, energy, sleep_quality, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		obs.UserID, obs.Mood, obs.Stress, obs.Energy, obs.SleepQuality,
		obs.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert checkin: %w", err)
	}
	return nil
}

// RecordCompletion appends a completion row. A zero CreatedAt is stamped now.
func (s *Store) RecordCompletion(ctx context.Context, c Completion) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tool_completions (user_id, tool_id, created_at)
		 VALUES (?, ?, ?)`,
		c.UserID, c.ToolID, c.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert completion: %w", err)
	}
	return nil
}

// #endregion writes

// #region reads

// LatestObservation implements ObservationSource.
func (s *Store) LatestObservation(ctx context.Context, userID string, since time.Time) (*Observation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, mood, stress, energy, sleep_quality, created_at
		 FROM daily_checkins
		 WHERE user_id = ? AND created_at >= ?
		 ORDER BY created_at DESC LIMIT 1`,
		userID, since.UTC().Format(time.RFC3339Nano),
	)
	obs, err := scanObservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest observation: %w", err)
	}
	return &obs, nil
}

// Observations implements ObservationSource.
func (s *Store) Observations(ctx context.Context, userID string, since time.Time) ([]Observation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, mood, stress, energy, sleep_quality, created_at
		 FROM daily_checkins
		 WHERE user_id = ? AND created_at >= ?
		 ORDER BY created_at ASC`,
		userID, since.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("list observations: %w", err)
	}
	defer rows.Close()

	var out []Observation
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		out = append(out, obs)
	}
	return out, rows.Err()
}

// Completions implements CompletionSource.
func (s *Store) Completions(ctx context.Context, userID string, since time.Time) ([]Completion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, tool_id, created_at
		 FROM tool_completions
		 WHERE user_id = ? AND created_at >= ?
		 ORDER BY created_at DESC`,
		userID, since.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	defer rows.Close()

	var out []Completion
	for rows.Next() {
		var c Completion
		var createdStr string
		if err := rows.Scan(&c.UserID, &c.ToolID, &createdStr); err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		c.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, c)
	}
	return out, rows.Err()
}

// LatestCompletion implements CompletionSource.
func (s *Store) LatestCompletion(ctx context.Context, userID string) (*Completion, error) {
	var c Completion
	var createdStr string
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, tool_id, created_at
		 FROM tool_completions
		 WHERE user_id = ?
		 ORDER BY created_at DESC LIMIT 1`,
		userID,
	).Scan(&c.UserID, &c.ToolID, &createdStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest completion: %w", err)
	}
	c.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return &c, nil
}

// #endregion reads

// #region scan

type rowScanner interface {
	Scan(dest ...any) error
}

func scanObservation(row rowScanner) (Observation, error) {
	var obs Observation
	var createdStr string
	if err := row.Scan(&obs.UserID, &obs.Mood, &obs.Stress, &obs.Energy, &obs.SleepQuality, &createdStr); err != nil {
		return Observation{}, err
	}
	obs.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return obs, nil
}

// #endregion scan

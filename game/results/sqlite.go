package results

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS results (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		config_name TEXT NOT NULL,
		score INTEGER NOT NULL,
		highest_tile INTEGER NOT NULL DEFAULT 0,
		moves INTEGER NOT NULL DEFAULT 0,
		finished_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_results_config_score ON results(config_name, score DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_results_session ON results(session_id, score DESC)`,
}

const resultColumns = `id, session_id, config_name, score, highest_tile, moves, finished_at`

// SQLiteStore implements Store on a SQLite database
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore opens (or creates) the database at path and runs migrations.
// Use ":memory:" for a throwaway store.
func NewSQLiteStore(path string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection keeps ":memory:" databases shared and serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("results store ready", zap.String("path", path))
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Save inserts a finished game
func (s *SQLiteStore) Save(ctx context.Context, r *Result) error {
	if r == nil {
		return fmt.Errorf("result cannot be nil")
	}
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.FinishedAt.IsZero() {
		r.FinishedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO results (`+resultColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.SessionID, r.ConfigName, r.Score, r.HighestTile, r.Moves, r.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}

	s.logger.Debug("result saved",
		zap.String("id", r.ID),
		zap.String("session_id", r.SessionID),
		zap.Int("score", r.Score),
	)
	return nil
}

// Get returns a single result by ID
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Result, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+resultColumns+` FROM results WHERE id = ?`, id)
	return scanResult(row)
}

// Top returns the highest scores, optionally for one configuration
func (s *SQLiteStore) Top(ctx context.Context, configName string, limit int) ([]*Result, error) {
	if limit <= 0 {
		limit = DefaultTopLimit
	}

	query := `SELECT ` + resultColumns + ` FROM results`
	args := []any{}
	if configName != "" {
		query += ` WHERE config_name = ?`
		args = append(args, configName)
	}
	query += ` ORDER BY score DESC, finished_at ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	top := []*Result{}
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		top = append(top, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate results: %w", err)
	}
	return top, nil
}

// BestFor returns a session's best game
func (s *SQLiteStore) BestFor(ctx context.Context, sessionID string) (*Result, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+resultColumns+` FROM results WHERE session_id = ? ORDER BY score DESC, finished_at ASC LIMIT 1`,
		sessionID,
	)
	return scanResult(row)
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResult(row scanner) (*Result, error) {
	var r Result
	err := row.Scan(&r.ID, &r.SessionID, &r.ConfigName, &r.Score, &r.HighestTile, &r.Moves, &r.FinishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan result: %w", err)
	}
	return &r, nil
}

package results

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no result matches a lookup.
var ErrNotFound = errors.New("result not found")

// DefaultTopLimit is used by Top when limit is not positive.
const DefaultTopLimit = 10

// Result is the record of one finished game.
type Result struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	ConfigName  string    `json:"config_name"`
	Score       int       `json:"score"`
	HighestTile int       `json:"highest_tile"`
	Moves       int       `json:"moves"`
	FinishedAt  time.Time `json:"finished_at"`
}

// Store persists finished games and answers leaderboard queries.
type Store interface {
	// Save stores r, assigning an ID and FinishedAt when they are empty.
	Save(ctx context.Context, r *Result) error

	// Get returns the result with the given ID or ErrNotFound.
	Get(ctx context.Context, id string) (*Result, error)

	// Top returns the best results for a configuration, highest score first.
	// An empty configName ranks across all configurations.
	Top(ctx context.Context, configName string, limit int) ([]*Result, error)

	// BestFor returns the highest scoring result of a session or ErrNotFound.
	BestFor(ctx context.Context, sessionID string) (*Result, error)

	Close() error
}

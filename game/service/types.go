package service

import (
	"time"

	"github.com/wricardo/mcp-training/dropmerge/game/engine"
	"github.com/wricardo/mcp-training/dropmerge/game/results"
)

// Event types emitted by the service
const (
	EventDrop     = "drop"
	EventDetonate = "detonate"
	EventMerge    = "merge"
	EventEnergy   = "energy"
	EventReset    = "reset"
	EventGameOver = "game_over"
)

// SessionInfo provides information about a game session
type SessionInfo struct {
	ID             string             `json:"id"`
	ConfigName     string             `json:"config_name"`
	CreatedAt      time.Time          `json:"created_at"`
	LastAccessedAt time.Time          `json:"last_accessed_at"`
	GameState      *engine.GameState  `json:"game_state"`
	GameConfig     *engine.GameConfig `json:"game_config"`
}

// ActionResult contains the result of a drop or detonation
type ActionResult struct {
	Success   bool              `json:"success"`
	Outcome   *engine.Outcome   `json:"outcome,omitempty"`
	GameState *engine.GameState `json:"game_state"`
	Message   string            `json:"message"`
	Events    []GameEvent       `json:"events,omitempty"`

	// Decision aids for the next action
	PossibleDrops     []int                     `json:"possible_drops"`
	DetonationTargets []engine.DetonationTarget `json:"detonation_targets,omitempty"`
	Board             string                    `json:"board"`
}

// GameEvent represents an event that occurred during gameplay
type GameEvent struct {
	Type      string             `json:"type" msgpack:"type"` // "drop", "detonate", "merge", "energy", "reset", "game_over"
	Message   string             `json:"message" msgpack:"message"`
	Timestamp time.Time          `json:"timestamp" msgpack:"timestamp"`
	Position  *engine.Coordinate `json:"position,omitempty" msgpack:"position,omitempty"`
	Value     int                `json:"value,omitempty" msgpack:"value,omitempty"`
	Energy    float64            `json:"energy,omitempty" msgpack:"energy,omitempty"`
}

// HistoryOptions configures move history retrieval
type HistoryOptions struct {
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Order string `json:"order"` // "asc" or "desc"
}

// HistoryResponse contains paginated move history
type HistoryResponse struct {
	Moves       []engine.MoveHistoryEntry `json:"moves"`
	TotalMoves  int                       `json:"total_moves"`
	Page        int                       `json:"page"`
	PageSize    int                       `json:"page_size"`
	TotalPages  int                       `json:"total_pages"`
	HasNext     bool                      `json:"has_next"`
	HasPrevious bool                      `json:"has_previous"`
}

// ConfigInfo provides information about a game configuration
type ConfigInfo struct {
	Filename    string  `json:"filename"`
	ConfigID    string  `json:"config_id"` // The identifier to use for session creation
	Name        string  `json:"name"`      // Display name
	Description string  `json:"description"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	DestroyCost float64 `json:"destroy_cost"`
}

// Leaderboard lists the best finished games, optionally for one configuration
type Leaderboard struct {
	ConfigName string            `json:"config_name,omitempty"`
	Results    []*results.Result `json:"results"`
}

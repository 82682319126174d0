package session

import (
	"fmt"
	"time"

	"github.com/wricardo/mcp-training/dropmerge/game/engine"
	"github.com/wricardo/mcp-training/dropmerge/game/service"
)

// RecordVersion is the layout version written by this package. Version 1
// records carry no rules and are resolved through the config manager.
const RecordVersion = 2

// SessionPersistence defines the interface for persisting sessions
type SessionPersistence interface {
	// Save persists a session to storage. The caller holds the session lock.
	Save(session *service.Session) error

	// Load retrieves a session from storage by ID
	Load(id string) (*service.Session, error)

	// Delete removes a session from storage
	Delete(id string) error

	// ListAll returns all persisted session IDs
	ListAll() ([]string, error)

	// Exists checks if a session exists in storage
	Exists(id string) bool
}

// Record is the stored form of a session. Rules is the config the game
// started with, so editing a config file never changes a game in progress.
type Record struct {
	Version        int                `json:"version"`
	ID             string             `json:"id"`
	ConfigID       string             `json:"config_id"`
	Rules          *engine.GameConfig `json:"rules,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	LastAccessedAt time.Time          `json:"last_accessed_at"`
	GameState      *engine.GameState  `json:"game_state"`
}

func newRecord(s *service.Session, configID string) *Record {
	return &Record{
		Version:        RecordVersion,
		ID:             s.ID,
		ConfigID:       configID,
		Rules:          s.Config,
		CreatedAt:      s.CreatedAt,
		LastAccessedAt: s.LastAccessedAt,
		GameState:      s.Engine.GetState(),
	}
}

// check rejects records this version cannot restore
func (r *Record) check() error {
	switch {
	case r.Version > RecordVersion:
		return fmt.Errorf("record version %d is newer than %d", r.Version, RecordVersion)
	case r.GameState == nil:
		return fmt.Errorf("record has no game state")
	case r.Rules == nil && r.ConfigID == "":
		return fmt.Errorf("record names no rules")
	}
	return nil
}

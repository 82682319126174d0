package service

import (
	"context"
	"sync"
	"time"

	"github.com/wricardo/mcp-training/dropmerge/game/engine"
	"github.com/wricardo/mcp-training/dropmerge/game/results"
)

// GameService defines all game-related operations
type GameService interface {
	// Session Management
	CreateSession(ctx context.Context, configName string) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Game Operations
	DropTile(ctx context.Context, sessionID string, column int) (*ActionResult, error)
	Detonate(ctx context.Context, sessionID string, x, y int) (*ActionResult, error)
	ResetGame(ctx context.Context, sessionID string) (*engine.GameState, error)

	// Game State
	GetGameState(ctx context.Context, sessionID string) (*engine.GameState, error)
	GetMoveHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error)

	// Configuration
	ListConfigs(ctx context.Context) ([]*ConfigInfo, error)
	GetConfig(ctx context.Context, configName string) (*engine.GameConfig, error)

	// Results
	GetLeaderboard(ctx context.Context, configName string, limit int) (*Leaderboard, error)
}

// SessionManager defines session storage operations
type SessionManager interface {
	Create(id string, config *engine.GameConfig) (*Session, error)
	Get(id string) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
	Save(id string) error
}

// ConfigManager handles game configuration loading
type ConfigManager interface {
	LoadConfig(name string) (*engine.GameConfig, error)
	ListConfigs() ([]*ConfigInfo, error)
	GetDefault() *engine.GameConfig
	SaveConfig(name string, config *engine.GameConfig) error
}

// Broadcaster pushes session updates to connected clients
type Broadcaster interface {
	BroadcastToSession(sessionID string, state *engine.GameState)
	BroadcastEvent(sessionID string, event string, data any)
}

// Session represents an active game session. The engine is not safe for
// concurrent use; hold the session lock around every engine call.
type Session struct {
	ID             string
	Engine         *engine.GameEngine
	Config         *engine.GameConfig
	ConfigID       string
	CreatedAt      time.Time
	LastAccessedAt time.Time

	mu       sync.Mutex
	observed bool
	pending  []GameEvent
}

// Lock serializes access to the session's engine
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the session lock
func (s *Session) Unlock() { s.mu.Unlock() }

// Option configures the game service
type Option func(*gameServiceImpl)

// WithResults records finished games in store. Without it nothing is recorded
// and the leaderboard is empty.
func WithResults(store results.Store) Option {
	return func(s *gameServiceImpl) { s.results = store }
}

// WithBroadcaster pushes state updates and events to b after every action
func WithBroadcaster(b Broadcaster) Option {
	return func(s *gameServiceImpl) { s.broadcaster = b }
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wricardo/mcp-training/dropmerge/game/engine"
	"github.com/wricardo/mcp-training/dropmerge/game/results"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrConfigNotFound  = errors.New("configuration not found")
)

// Default page size for move history
const defaultHistoryLimit = 20

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	sessions    SessionManager
	configs     ConfigManager
	results     results.Store
	broadcaster Broadcaster
	logger      *zap.Logger
}

// WithLogger sets the service logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *gameServiceImpl) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewGameService creates a new game service instance
func NewGameService(sessions SessionManager, configs ConfigManager, opts ...Option) GameService {
	s := &gameServiceImpl{
		sessions: sessions,
		configs:  configs,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// getConfigID returns the config_id for a given config name, used for consistent API responses
func (s *gameServiceImpl) getConfigID(sess *Session) string {
	if sess.ConfigID != "" {
		return sess.ConfigID
	}
	availableConfigs, err := s.configs.ListConfigs()
	if err == nil {
		for _, cfg := range availableConfigs {
			if cfg.Name == sess.Config.Name {
				return cfg.ConfigID
			}
		}
	}
	if sess.Config.Name == "" {
		return "default"
	}
	return sess.Config.Name
}

// CreateSession creates a new game session
func (s *gameServiceImpl) CreateSession(ctx context.Context, configName string) (*SessionInfo, error) {
	var config *engine.GameConfig
	var err error
	if configName != "" {
		config, err = s.configs.LoadConfig(configName)
		if err != nil {
			if errors.Is(err, ErrConfigNotFound) {
				availableConfigs, listErr := s.configs.ListConfigs()
				if listErr == nil && len(availableConfigs) > 0 {
					var configIDs []string
					for _, cfg := range availableConfigs {
						configIDs = append(configIDs, cfg.ConfigID)
					}
					return nil, fmt.Errorf("%w: '%s'. Available configs: %v", ErrConfigNotFound, configName, configIDs)
				}
				return nil, fmt.Errorf("%w: '%s'. Use /api/configs to list available configurations", ErrConfigNotFound, configName)
			}
			return nil, fmt.Errorf("failed to load config %s: %w", configName, err)
		}
	} else {
		config = s.configs.GetDefault()
	}

	// Let session manager generate a proper 4-character ID
	sess, err := s.sessions.Create("", config)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	if configName != "" {
		sess.ConfigID = configName
	}
	s.attach(sess)

	s.logger.Info("session created",
		zap.String("session_id", sess.ID),
		zap.String("config", config.Name),
	)
	return s.sessionInfo(sess), nil
}

// GetSession retrieves session information
func (s *gameServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	return s.sessionInfo(sess), nil
}

// ListSessions returns all active sessions
func (s *gameServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, s.sessionInfo(sess))
	}
	return result, nil
}

// DeleteSession removes a session
func (s *gameServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	if err := s.sessions.Delete(sessionID); err != nil {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	s.logger.Info("session deleted", zap.String("session_id", sessionID))
	return nil
}

// DropTile drops the session's pending value into column
func (s *gameServiceImpl) DropTile(ctx context.Context, sessionID string, column int) (*ActionResult, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	sess.Lock()
	defer sess.Unlock()
	sess.pending = nil

	value := sess.Engine.GetNextValue()
	out, err := sess.Engine.Drop(column)
	if err != nil && !errors.Is(err, engine.ErrColumnFull) {
		s.logAction(sess, "drop failed", err, zap.Int("column", column))
		if out != nil {
			s.persist(sess)
		}
		return nil, err
	}

	result := s.actionResult(sess, out)
	if out == nil {
		s.persist(sess)
		return result, nil
	}

	at := out.Origin
	result.Events = append(result.Events, GameEvent{
		Type:      EventDrop,
		Message:   fmt.Sprintf("Dropped %d into column %d", value, column),
		Timestamp: time.Now(),
		Position:  &at,
		Value:     value,
	})
	s.finishAction(ctx, sess, result)
	return result, nil
}

// Detonate spends energy to remove the tile at (x, y)
func (s *gameServiceImpl) Detonate(ctx context.Context, sessionID string, x, y int) (*ActionResult, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	sess.Lock()
	defer sess.Unlock()
	sess.pending = nil

	out, err := sess.Engine.Detonate(x, y)
	if err != nil && !errors.Is(err, engine.ErrNotDestroyable) && !errors.Is(err, engine.ErrNotEnoughEnergy) {
		s.logAction(sess, "detonate failed", err, zap.Int("x", x), zap.Int("y", y))
		if out != nil {
			s.persist(sess)
		}
		return nil, err
	}

	result := s.actionResult(sess, out)
	if out == nil {
		s.persist(sess)
		return result, nil
	}

	at := out.Origin
	result.Events = append(result.Events, GameEvent{
		Type:      EventDetonate,
		Message:   fmt.Sprintf("Detonated %d at (%d,%d) for %d", out.Value, x, y, out.DestroyScore),
		Timestamp: time.Now(),
		Position:  &at,
		Value:     out.Value,
	})
	s.finishAction(ctx, sess, result)
	return result, nil
}

// ResetGame starts a new game in the session
func (s *gameServiceImpl) ResetGame(ctx context.Context, sessionID string) (*engine.GameState, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	sess.Lock()
	defer sess.Unlock()

	state := sess.Engine.Reset()
	// the drained gauge is implied by the reset event
	sess.pending = nil
	s.persist(sess)
	s.broadcast(sess.ID, state, []GameEvent{{
		Type:      EventReset,
		Message:   "Game reset to initial state",
		Timestamp: time.Now(),
	}})

	s.logger.Info("game reset", zap.String("session_id", sess.ID))
	return state, nil
}

// GetGameState retrieves the current game state
func (s *gameServiceImpl) GetGameState(ctx context.Context, sessionID string) (*engine.GameState, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	sess.Lock()
	defer sess.Unlock()
	return sess.Engine.GetState(), nil
}

// GetMoveHistory returns paginated move history
func (s *gameServiceImpl) GetMoveHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	sess.Lock()
	history := append([]engine.MoveHistoryEntry(nil), sess.Engine.GetMoveHistory()...)
	sess.Unlock()

	return paginate(history, opts), nil
}

// paginate slices history according to opts, applying defaults
func paginate(history []engine.MoveHistoryEntry, opts HistoryOptions) *HistoryResponse {
	total := len(history)

	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit <= 0 {
		opts.Limit = defaultHistoryLimit
	}
	if opts.Limit > engine.MaxHistoryPage {
		opts.Limit = engine.MaxHistoryPage
	}
	if opts.Order != "asc" {
		opts.Order = "desc"
	}

	totalPages := (total + opts.Limit - 1) / opts.Limit
	if totalPages == 0 {
		totalPages = 1
	}

	start := min((opts.Page-1)*opts.Limit, total)
	end := min(start+opts.Limit, total)

	moves := []engine.MoveHistoryEntry{}
	if opts.Order == "desc" {
		// Most recent first
		for i := total - 1 - start; i >= total-end; i-- {
			moves = append(moves, history[i])
		}
	} else {
		moves = append(moves, history[start:end]...)
	}

	return &HistoryResponse{
		Moves:       moves,
		TotalMoves:  total,
		Page:        opts.Page,
		PageSize:    opts.Limit,
		TotalPages:  totalPages,
		HasNext:     opts.Page < totalPages,
		HasPrevious: opts.Page > 1,
	}
}

// ListConfigs returns available game configurations
func (s *gameServiceImpl) ListConfigs(ctx context.Context) ([]*ConfigInfo, error) {
	return s.configs.ListConfigs()
}

// GetConfig loads a specific game configuration
func (s *gameServiceImpl) GetConfig(ctx context.Context, configName string) (*engine.GameConfig, error) {
	return s.configs.LoadConfig(configName)
}

// GetLeaderboard returns the best finished games
func (s *gameServiceImpl) GetLeaderboard(ctx context.Context, configName string, limit int) (*Leaderboard, error) {
	board := &Leaderboard{ConfigName: configName, Results: []*results.Result{}}
	if s.results == nil {
		return board, nil
	}

	top, err := s.results.Top(ctx, configName, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load leaderboard: %w", err)
	}
	board.Results = top
	return board, nil
}

// session looks up a session and marks it accessed
func (s *gameServiceImpl) session(sessionID string) (*Session, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	s.sessions.UpdateLastAccessed(sess.ID)
	s.attach(sess)
	return sess, nil
}

// attach registers the energy observer once per session
func (s *gameServiceImpl) attach(sess *Session) {
	sess.Lock()
	defer sess.Unlock()
	if sess.observed {
		return
	}
	sess.observed = true
	sess.Engine.OnEnergyChange(func(energy float64) {
		sess.pending = append(sess.pending, GameEvent{
			Type:      EventEnergy,
			Message:   fmt.Sprintf("Energy %.1f", energy),
			Timestamp: time.Now(),
			Energy:    energy,
		})
	})
}

func (s *gameServiceImpl) sessionInfo(sess *Session) *SessionInfo {
	sess.Lock()
	defer sess.Unlock()

	return &SessionInfo{
		ID:             sess.ID,
		ConfigName:     s.getConfigID(sess),
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessedAt,
		GameState:      sess.Engine.GetState(),
		GameConfig:     sess.Config,
	}
}

// actionResult builds the response for an action; the session lock is held
func (s *gameServiceImpl) actionResult(sess *Session, out *engine.Outcome) *ActionResult {
	state := sess.Engine.GetState()
	return &ActionResult{
		Success:           out != nil,
		Outcome:           out,
		GameState:         state,
		Message:           state.Message,
		Events:            []GameEvent{},
		PossibleDrops:     sess.Engine.GetPossibleDrops(),
		DetonationTargets: sess.Engine.GetDetonationTargets(),
		Board:             engine.RenderGrid(state.Grid),
	}
}

// finishAction appends merge, energy and game-over events, records a finished
// game, persists and broadcasts. The session lock is held.
func (s *gameServiceImpl) finishAction(ctx context.Context, sess *Session, result *ActionResult) {
	for _, m := range result.Outcome.Merges {
		at := m.At
		result.Events = append(result.Events, GameEvent{
			Type:      EventMerge,
			Message:   fmt.Sprintf("Merged %s into %d", m.Direction, m.Value),
			Timestamp: time.Now(),
			Position:  &at,
			Value:     m.Value,
		})
	}
	result.Events = append(result.Events, sess.pending...)
	sess.pending = nil

	state := result.GameState
	if state.GameOver {
		result.Events = append(result.Events, GameEvent{
			Type:      EventGameOver,
			Message:   state.Message,
			Timestamp: time.Now(),
			Value:     state.Score,
		})
		s.recordResult(ctx, sess, state)
	}

	s.persist(sess)
	s.broadcast(sess.ID, state, result.Events)
}

func (s *gameServiceImpl) recordResult(ctx context.Context, sess *Session, state *engine.GameState) {
	if s.results == nil {
		return
	}
	r := &results.Result{
		SessionID:   sess.ID,
		ConfigName:  s.getConfigID(sess),
		Score:       state.Score,
		HighestTile: state.HighestTile,
		Moves:       state.CurrentMovesCount,
	}
	if err := s.results.Save(ctx, r); err != nil {
		s.logger.Warn("failed to record result",
			zap.String("session_id", sess.ID),
			zap.Error(err),
		)
		return
	}
	s.logger.Info("result recorded",
		zap.String("session_id", sess.ID),
		zap.String("result_id", r.ID),
		zap.Int("score", r.Score),
	)
}

func (s *gameServiceImpl) persist(sess *Session) {
	if err := s.sessions.Save(sess.ID); err != nil {
		s.logger.Warn("failed to persist session",
			zap.String("session_id", sess.ID),
			zap.Error(err),
		)
	}
}

func (s *gameServiceImpl) broadcast(sessionID string, state *engine.GameState, events []GameEvent) {
	if s.broadcaster == nil {
		return
	}
	for _, ev := range events {
		s.broadcaster.BroadcastEvent(sessionID, ev.Type, ev)
	}
	s.broadcaster.BroadcastToSession(sessionID, state)
}

func (s *gameServiceImpl) logAction(sess *Session, msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.String("session_id", sess.ID), zap.Error(err))
	if errors.Is(err, engine.ErrResolutionDivergence) {
		s.logger.Error(msg, fields...)
		return
	}
	s.logger.Debug(msg, fields...)
}

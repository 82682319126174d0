package engine

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var (
	ErrGameOver        = errors.New("game is over")
	ErrNotEnoughEnergy = errors.New("not enough energy")
	ErrNotDestroyable  = errors.New("tile cannot be detonated")
)

// Engine provides the main interface for game operations
type Engine interface {
	// Game state management
	GetState() *GameState
	SetState(state *GameState) error
	Reset() *GameState
	IsGameOver() bool
	GetScore() int
	GetEnergy() float64
	GetNextValue() int

	// Player actions
	Drop(column int) (*Outcome, error)
	Detonate(x, y int) (*Outcome, error)
	CanDrop(column int) bool
	GetPossibleDrops() []int
	GetDetonationTargets() []DetonationTarget

	// Configuration
	GetConfig() *GameConfig
	SetConfig(config *GameConfig) error

	// History
	GetMoveHistory() []MoveHistoryEntry
	GetLastMove() *MoveHistoryEntry

	// Gauge notifications
	OnEnergyChange(o EnergyObserver)
}

// DetonationTarget is a tile the player may detonate and what it pays.
type DetonationTarget struct {
	X     int `json:"x"`
	Y     int `json:"y"`
	Value int `json:"value"`
	Score int `json:"score"`
}

// GameEngine implements the Engine interface on top of a Board
type GameEngine struct {
	board     *Board
	state     *GameState
	config    *GameConfig
	opts      []Option
	observers []EnergyObserver
	logger    *zap.Logger
}

// NewEngine creates a new game engine with the provided configuration.
// opts are applied to every Board the engine creates, after the config-derived ones.
func NewEngine(config *GameConfig, opts ...Option) (*GameEngine, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := ValidateGameConfig(config); err != nil {
		return nil, err
	}

	e := &GameEngine{config: config, opts: opts}
	if err := e.newGame(); err != nil {
		return nil, err
	}
	e.state = InitGameStateFromConfig(config)
	e.syncState()
	return e, nil
}

// NewEngineWithDefaults creates a new game engine with the classic configuration
func NewEngineWithDefaults(opts ...Option) *GameEngine {
	e, err := NewEngine(DefaultConfig(), opts...)
	if err != nil {
		// DefaultConfig always validates
		panic(err)
	}
	return e
}

// newGame replaces the board with an empty one built from the current config.
func (e *GameEngine) newGame() error {
	opts := []Option{
		WithDestroyCost(e.config.DestroyCost),
		WithSpawnWeights(e.config.SpawnWeights),
		WithMaxIterations(e.config.MaxIterations),
		WithEnergyObserver(e.notify),
	}
	opts = append(opts, e.opts...)

	board, err := New(e.config.Width, e.config.Height, opts...)
	if err != nil {
		return err
	}
	board.GenerateNextValue()

	e.board = board
	e.logger = board.logger
	return nil
}

func (e *GameEngine) notify(energy float64) {
	for _, o := range e.observers {
		o(energy)
	}
}

// OnEnergyChange registers an observer that survives Reset and SetConfig.
func (e *GameEngine) OnEnergyChange(o EnergyObserver) {
	if o != nil {
		e.observers = append(e.observers, o)
	}
}

// Board returns the live board. It shares the engine's state: mutating it
// (Drop, Load, SetEnergy) bypasses scoring and history, and it carries the
// same locking obligations as the engine.
func (e *GameEngine) Board() *Board {
	return e.board
}

// GetState returns a snapshot of the current game state. The snapshot is a
// copy; later moves do not change it.
func (e *GameEngine) GetState() *GameState {
	e.syncState()
	return e.state.Clone()
}

// syncState copies the board-derived fields into the state snapshot.
func (e *GameEngine) syncState() {
	s := e.state
	s.Grid = e.board.Cells()
	s.Width = e.board.Width()
	s.Height = e.board.Height()
	s.NextValue = e.board.NextValue()
	s.Energy = e.board.Energy()
	s.DestroyCost = e.board.DestroyCost()
	s.GaugeTier = e.board.GaugeTier()
	s.CanDestroy = e.board.CanDestroy()
	s.HighestTile = e.board.HighestTile()
	s.ConfigName = e.config.Name
}

// SetState restores a saved game state (used for persistence loading)
func (e *GameEngine) SetState(state *GameState) error {
	if state == nil {
		return fmt.Errorf("state cannot be nil")
	}
	if state.Width != e.config.Width || state.Height != e.config.Height {
		return fmt.Errorf("state is %dx%d but config %q is %dx%d",
			state.Width, state.Height, e.config.Name, e.config.Width, e.config.Height)
	}
	if err := e.board.Load(state.Grid); err != nil {
		return fmt.Errorf("restore grid: %w", err)
	}
	e.board.SetEnergy(state.Energy)
	if state.NextValue != 0 {
		if err := e.board.SetNextValue(state.NextValue); err != nil {
			return fmt.Errorf("restore next value: %w", err)
		}
	}
	state = state.Clone()
	if state.MoveHistory == nil {
		state.MoveHistory = []MoveHistoryEntry{}
	}
	if state.CurrentMoves == nil {
		state.CurrentMoves = []MoveHistoryEntry{}
	}

	e.state = state
	e.syncState()
	return nil
}

// Reset starts a new game on the same configuration
func (e *GameEngine) Reset() *GameState {
	// Preserve cumulative history and totals across resets
	prevHistory := e.state.MoveHistory
	prevTotal := e.state.TotalMoves

	e.board.Clear()
	e.board.GenerateNextValue()
	e.state = InitGameStateFromConfig(e.config)

	// Restore cumulative history and totals; clear only the current segment
	e.state.MoveHistory = prevHistory
	e.state.TotalMoves = prevTotal
	e.state.CurrentMoves = []MoveHistoryEntry{}
	e.state.CurrentMovesCount = 0

	e.syncState()
	return e.state.Clone()
}

// IsGameOver returns whether the game is over
func (e *GameEngine) IsGameOver() bool {
	return e.state.GameOver
}

// GetScore returns the total score
func (e *GameEngine) GetScore() int {
	return e.state.Score
}

// GetEnergy returns the destroy gauge level
func (e *GameEngine) GetEnergy() float64 {
	return e.board.Energy()
}

// GetNextValue returns the value the next drop will place
func (e *GameEngine) GetNextValue() int {
	return e.board.NextValue()
}

// Drop drops the pending value into column and resolves the cascade.
func (e *GameEngine) Drop(column int) (*Outcome, error) {
	if e.state.GameOver {
		return nil, ErrGameOver
	}

	value := e.board.NextValue()
	out, err := e.board.Drop(column, value)
	if out == nil {
		if errors.Is(err, ErrColumnFull) {
			e.state.Message = e.config.Messages.ColumnFull
			e.state.AddMoveToHistory(ActionDrop, Coordinate{X: column, Y: e.board.Height()}, value, 0, false)
		}
		return nil, err
	}

	e.addScore(out.ChainScore)
	e.state.LastChain = out.ChainScore
	if out.ChainScore > 0 {
		e.state.Message = fmt.Sprintf(e.config.Messages.Merged, out.ChainScore)
	} else {
		e.state.Message = e.config.Messages.NoMerge
	}

	e.board.GenerateNextValue()
	e.state.Energy = e.board.Energy()
	e.state.AddMoveToHistory(ActionDrop, out.Origin, value, out.ChainScore, true)
	e.checkGameOver()

	e.logger.Debug("drop",
		zap.Int("column", column),
		zap.Int("value", value),
		zap.Int("chain_score", out.ChainScore),
		zap.Int("merges", len(out.Merges)),
		zap.Int("score", e.state.Score),
	)
	return out, err
}

// CanDrop reports whether column accepts another tile.
func (e *GameEngine) CanDrop(column int) bool {
	if e.state.GameOver || !e.board.InBounds(column, 0) {
		return false
	}
	return e.board.at(column, e.board.Height()-1) == 0
}

// GetPossibleDrops returns the columns that accept another tile
func (e *GameEngine) GetPossibleDrops() []int {
	possible := []int{}
	for x := 0; x < e.board.Width(); x++ {
		if e.CanDrop(x) {
			possible = append(possible, x)
		}
	}
	return possible
}

// Detonate spends one destroy cost of energy to remove an eligible tile.
func (e *GameEngine) Detonate(x, y int) (*Outcome, error) {
	if e.state.GameOver {
		return nil, ErrGameOver
	}
	if !e.board.InBounds(x, y) {
		return nil, fmt.Errorf("%w: (%d,%d)", ErrOutOfBounds, x, y)
	}

	target := Coordinate{X: x, Y: y}
	value := e.board.at(x, y)
	score := e.board.DestroyScore(x, y)
	if score == 0 {
		e.state.Message = e.config.Messages.NotDestroyable
		e.state.AddMoveToHistory(ActionDetonate, target, value, 0, false)
		return nil, fmt.Errorf("%w: (%d,%d) holds %d", ErrNotDestroyable, x, y, value)
	}

	cost := e.board.DestroyCost()
	if !e.board.CanConsume(cost) {
		e.state.Message = e.config.Messages.NotEnoughEnergy
		e.state.AddMoveToHistory(ActionDetonate, target, value, 0, false)
		return nil, fmt.Errorf("%w: have %.1f, need %.1f", ErrNotEnoughEnergy, e.board.Energy(), cost)
	}

	energyBefore := e.board.Energy()
	e.board.ConsumeGauge(cost)
	out, err := e.board.Destroy(x, y)
	if out == nil {
		return nil, err
	}
	out.EnergyBefore = energyBefore

	gained := score + out.ChainScore
	e.addScore(gained)
	e.state.LastChain = out.ChainScore
	e.state.Message = fmt.Sprintf(e.config.Messages.Detonated, gained)
	e.state.Energy = e.board.Energy()
	e.state.AddMoveToHistory(ActionDetonate, target, value, gained, true)
	e.checkGameOver()

	e.logger.Debug("detonate",
		zap.Int("x", x),
		zap.Int("y", y),
		zap.Int("value", value),
		zap.Int("destroy_score", score),
		zap.Int("chain_score", out.ChainScore),
		zap.Float64("energy", e.board.Energy()),
	)
	return out, err
}

// GetDetonationTargets lists eligible tiles with their payout
func (e *GameEngine) GetDetonationTargets() []DetonationTarget {
	targets := []DetonationTarget{}
	for _, c := range e.board.DestroyTargets() {
		targets = append(targets, DetonationTarget{
			X:     c.X,
			Y:     c.Y,
			Value: e.board.at(c.X, c.Y),
			Score: e.board.DestroyScore(c.X, c.Y),
		})
	}
	return targets
}

// addScore adds to the total, saturating at MaxTotalScore.
func (e *GameEngine) addScore(delta int) {
	if delta <= 0 {
		return
	}
	e.state.Score = min(e.state.Score+delta, MaxTotalScore)
}

// checkGameOver ends the game when no drop fits and nothing can be detonated.
func (e *GameEngine) checkGameOver() {
	if e.board.IsBoardFull() && !e.board.CanDestroy() {
		e.state.GameOver = true
		e.state.Message = fmt.Sprintf(e.config.Messages.GameOver, e.state.Score)
		e.logger.Info("game over",
			zap.String("config", e.config.Name),
			zap.Int("score", e.state.Score),
			zap.Int("highest_tile", e.board.HighestTile()),
			zap.Int("moves", e.state.CurrentMovesCount),
		)
	}
}

// GetConfig returns the current game configuration
func (e *GameEngine) GetConfig() *GameConfig {
	return e.config
}

// SetConfig sets a new game configuration and starts a new game
func (e *GameEngine) SetConfig(config *GameConfig) error {
	if err := ValidateGameConfig(config); err != nil {
		return err
	}

	prev := e.config
	e.config = config
	if err := e.newGame(); err != nil {
		e.config = prev
		return err
	}
	e.state = InitGameStateFromConfig(config)
	e.syncState()
	return nil
}

// GetMoveHistory returns a copy of the complete move history
func (e *GameEngine) GetMoveHistory() []MoveHistoryEntry {
	return append([]MoveHistoryEntry{}, e.state.MoveHistory...)
}

// GetLastMove returns the last move made, or nil if no moves
func (e *GameEngine) GetLastMove() *MoveHistoryEntry {
	if len(e.state.MoveHistory) == 0 {
		return nil
	}
	last := e.state.MoveHistory[len(e.state.MoveHistory)-1]
	return &last
}

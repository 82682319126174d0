package engine

import "math/bits"

const (
	// Validation constants
	MinGridSize = 3
	MaxGridSize = 12

	// Board rules
	MaxEnergy          = 100.0
	DefaultDestroyCost = 33.3
	MinDestroyLevel    = 5
	MinIterations      = 100
	MaxTotalScore      = 1_000_000_000

	MaxHistoryPage      = 100
	WebSocketBufferSize = 256
)

// Coordinate is a cell position. X is the column, Y the row counted from the ground row.
type Coordinate struct {
	X int `json:"x" msgpack:"x"`
	Y int `json:"y" msgpack:"y"`
}

// ActiveCell is the tile driving the current cascade: either none or a coordinate.
type ActiveCell struct {
	at    Coordinate
	valid bool
}

// NoActive returns the empty ActiveCell.
func NoActive() ActiveCell { return ActiveCell{} }

// ActiveAt returns an ActiveCell pointing at (x, y).
func ActiveAt(x, y int) ActiveCell {
	return ActiveCell{at: Coordinate{X: x, Y: y}, valid: true}
}

// Get returns the coordinate and whether one is set.
func (a ActiveCell) Get() (Coordinate, bool) { return a.at, a.valid }

// IsNone reports whether no coordinate is active.
func (a ActiveCell) IsNone() bool { return !a.valid }

// MergeDirection names the neighbour a merge consumed, in priority order.
type MergeDirection string

const (
	MergeDown  MergeDirection = "down"
	MergeLeft  MergeDirection = "left"
	MergeRight MergeDirection = "right"
)

// Merge records one merge of a resolution. At holds the doubled value, Cleared
// is the cell the merge emptied and Value is the post-merge value.
type Merge struct {
	At        Coordinate     `json:"at"`
	Cleared   Coordinate     `json:"cleared"`
	Direction MergeDirection `json:"direction"`
	Value     int            `json:"value"`
}

// CellChange is one entry of a before/after grid diff.
type CellChange struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Before int `json:"before"`
	After  int `json:"after"`
}

// Outcome is the structured result of a board command.
type Outcome struct {
	Placed       bool         `json:"placed"`
	Origin       Coordinate   `json:"origin"`
	Value        int          `json:"value,omitempty"`
	ChainScore   int          `json:"chain_score"`
	DestroyScore int          `json:"destroy_score,omitempty"`
	Merges       []Merge      `json:"merges"`
	EnergyBefore float64      `json:"energy_before"`
	EnergyAfter  float64      `json:"energy_after"`
	Changes      []CellChange `json:"changes"`
}

// ValueWeight is one entry of the next-value distribution.
type ValueWeight struct {
	Value  int `json:"value" yaml:"value"`
	Weight int `json:"weight" yaml:"weight"`
}

// DefaultSpawnWeights is the standard next-value distribution, in percent.
func DefaultSpawnWeights() []ValueWeight {
	return []ValueWeight{
		{Value: 2, Weight: 60},
		{Value: 4, Weight: 25},
		{Value: 8, Weight: 10},
		{Value: 16, Weight: 5},
	}
}

// Messages holds the player-facing texts of a configuration.
type Messages struct {
	Welcome         string `json:"welcome" yaml:"welcome"`
	Merged          string `json:"merged" yaml:"merged"`
	NoMerge         string `json:"no_merge" yaml:"no_merge"`
	ColumnFull      string `json:"column_full" yaml:"column_full"`
	Detonated       string `json:"detonated" yaml:"detonated"`
	NotEnoughEnergy string `json:"not_enough_energy" yaml:"not_enough_energy"`
	NotDestroyable  string `json:"not_destroyable" yaml:"not_destroyable"`
	GameOver        string `json:"game_over" yaml:"game_over"`
}

// GameConfig represents the game configuration loaded from JSON or YAML
type GameConfig struct {
	Name          string        `json:"name" yaml:"name"`
	Description   string        `json:"description" yaml:"description"`
	Width         int           `json:"width" yaml:"width"`
	Height        int           `json:"height" yaml:"height"`
	DestroyCost   float64       `json:"destroy_cost" yaml:"destroy_cost"`
	SpawnWeights  []ValueWeight `json:"spawn_weights" yaml:"spawn_weights"`
	MaxIterations int           `json:"max_iterations,omitempty" yaml:"max_iterations,omitempty"`
	Messages      Messages      `json:"messages" yaml:"messages"`
}

// GameState represents the complete game state
type GameState struct {
	// Grid rows, Grid[y][x]; row 0 is the ground row.
	Grid        [][]int `json:"grid" msgpack:"grid"`
	Width       int     `json:"width" msgpack:"width"`
	Height      int     `json:"height" msgpack:"height"`
	NextValue   int     `json:"next_value" msgpack:"next_value"`
	Score       int     `json:"score" msgpack:"score"`
	LastChain   int     `json:"last_chain" msgpack:"last_chain"`
	Energy      float64 `json:"energy" msgpack:"energy"`
	DestroyCost float64 `json:"destroy_cost" msgpack:"destroy_cost"`
	GaugeTier   int     `json:"gauge_tier" msgpack:"gauge_tier"`
	CanDestroy  bool    `json:"can_destroy" msgpack:"can_destroy"`
	HighestTile int     `json:"highest_tile" msgpack:"highest_tile"`
	Message     string  `json:"message" msgpack:"message"`
	GameOver    bool    `json:"game_over" msgpack:"game_over"`
	ConfigName  string  `json:"config_name" msgpack:"config_name"`

	MoveHistory []MoveHistoryEntry `json:"move_history" msgpack:"move_history"`
	TotalMoves  int                `json:"total_moves" msgpack:"total_moves"`

	// CurrentMoves tracks only the moves since the last reset. It mirrors MoveHistory entries
	// but gets cleared on reset while MoveHistory remains cumulative.
	CurrentMoves      []MoveHistoryEntry `json:"current_moves" msgpack:"current_moves"`
	CurrentMovesCount int                `json:"current_moves_count" msgpack:"current_moves_count"`
}

// Clone returns a deep copy. Snapshots handed out of the engine are clones so
// they stay valid after the lock serializing the engine is released.
func (s *GameState) Clone() *GameState {
	if s == nil {
		return nil
	}
	c := *s
	if s.Grid != nil {
		c.Grid = make([][]int, len(s.Grid))
		for y, row := range s.Grid {
			c.Grid[y] = append([]int(nil), row...)
		}
	}
	if s.MoveHistory != nil {
		c.MoveHistory = append([]MoveHistoryEntry{}, s.MoveHistory...)
	}
	if s.CurrentMoves != nil {
		c.CurrentMoves = append([]MoveHistoryEntry{}, s.CurrentMoves...)
	}
	return &c
}

// Action names recorded in the move history
const (
	ActionDrop     = "drop"
	ActionDetonate = "detonate"
)

// MoveHistoryEntry represents a single player action in the game history
type MoveHistoryEntry struct {
	Action     string     `json:"action" msgpack:"action"`
	Target     Coordinate `json:"target" msgpack:"target"`
	Value      int        `json:"value" msgpack:"value"`
	ChainScore int        `json:"chain_score" msgpack:"chain_score"`
	Score      int        `json:"score" msgpack:"score"`
	Energy     float64    `json:"energy" msgpack:"energy"`
	Timestamp  int64      `json:"timestamp" msgpack:"timestamp"`
	Success    bool       `json:"success" msgpack:"success"`
	MoveNumber int        `json:"move_number" msgpack:"move_number"`
}

// IsPowerOfTwo reports whether v is a tile value (a power of two >= 2).
func IsPowerOfTwo(v int) bool {
	return v >= 2 && v&(v-1) == 0
}

// Level returns log2 of a tile value, 0 for empty or invalid values.
func Level(v int) int {
	if !IsPowerOfTwo(v) {
		return 0
	}
	return bits.TrailingZeros(uint(v))
}

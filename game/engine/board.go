package engine

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var (
	ErrInvalidDimensions    = errors.New("invalid board dimensions")
	ErrOutOfBounds          = errors.New("coordinate out of bounds")
	ErrInvalidValue         = errors.New("tile value must be a power of two >= 2")
	ErrColumnFull           = errors.New("column is full")
	ErrResolutionDivergence = errors.New("cascade did not reach a fixed point")
)

// Board owns the tile grid and resolves drops and destroys to a stable state.
//
// A Board is not safe for concurrent use. Callers serialize commands; every
// command runs its cascade to completion before returning.
type Board struct {
	width  int
	height int
	cells  []int // cells[y*width+x]

	active     ActiveCell
	energy     float64
	chainScore int
	nextValue  int
	merges     []Merge

	destroyCost   float64
	weights       []ValueWeight
	maxIterations int
	rng           RandomSource
	logger        *zap.Logger

	observers []EnergyObserver
	pending   []float64
}

// Option configures a Board.
type Option func(*Board)

// WithRandomSource sets the source used by GenerateNextValue.
func WithRandomSource(src RandomSource) Option {
	return func(b *Board) { b.rng = src }
}

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Board) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithDestroyCost sets the energy CanDestroy requires.
func WithDestroyCost(cost float64) Option {
	return func(b *Board) {
		if cost > 0 {
			b.destroyCost = cost
		}
	}
}

// WithSpawnWeights replaces the next-value distribution.
func WithSpawnWeights(weights []ValueWeight) Option {
	return func(b *Board) {
		if len(weights) > 0 {
			b.weights = append([]ValueWeight(nil), weights...)
		}
	}
}

// WithMaxIterations overrides the cascade step ceiling. Configs cannot set
// it below MinIterations; lower values only suit tests.
func WithMaxIterations(n int) Option {
	return func(b *Board) { b.maxIterations = n }
}

// WithEnergyObserver registers an observer at construction.
func WithEnergyObserver(o EnergyObserver) Option {
	return func(b *Board) { b.OnEnergyChange(o) }
}

// New creates an empty width x height board.
func New(width, height int, opts ...Option) (*Board, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}

	b := &Board{
		width:       width,
		height:      height,
		cells:       make([]int, width*height),
		destroyCost: DefaultDestroyCost,
		weights:     DefaultSpawnWeights(),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.rng == nil {
		b.rng = DefaultSource()
	}
	if b.maxIterations <= 0 {
		// each merge removes a tile and costs at most a handful of steps
		b.maxIterations = max(MinIterations, 8*width*height)
	}
	return b, nil
}

// Width returns the number of columns.
func (b *Board) Width() int { return b.width }

// Height returns the number of rows.
func (b *Board) Height() int { return b.height }

// InBounds reports whether (x, y) is on the board.
func (b *Board) InBounds(x, y int) bool {
	return x >= 0 && x < b.width && y >= 0 && y < b.height
}

func (b *Board) mustBeInBounds(x, y int) {
	if !b.InBounds(x, y) {
		panic(fmt.Errorf("%w: (%d,%d) on %dx%d board", ErrOutOfBounds, x, y, b.width, b.height))
	}
}

func (b *Board) at(x, y int) int { return b.cells[y*b.width+x] }

func (b *Board) set(c Coordinate, v int) { b.cells[c.Y*b.width+c.X] = v }

// GetValue returns the tile at (x, y); 0 means empty. Panics when out of bounds.
func (b *Board) GetValue(x, y int) int {
	b.mustBeInBounds(x, y)
	return b.at(x, y)
}

// IsBoardFull reports whether every cell holds a tile.
func (b *Board) IsBoardFull() bool {
	for _, v := range b.cells {
		if v == 0 {
			return false
		}
	}
	return true
}

// ChainScore returns the score accumulated by the last command.
func (b *Board) ChainScore() int { return b.chainScore }

// NextValue returns the value produced by the last GenerateNextValue.
func (b *Board) NextValue() int { return b.nextValue }

// Active returns the active cell. It is none whenever no command is running.
func (b *Board) Active() ActiveCell { return b.active }

// HighestTile returns the largest value on the board.
func (b *Board) HighestTile() int {
	highest := 0
	for _, v := range b.cells {
		highest = max(highest, v)
	}
	return highest
}

// Cells returns a copy of the grid as rows, Cells()[y][x].
func (b *Board) Cells() [][]int {
	rows := make([][]int, b.height)
	for y := range rows {
		rows[y] = make([]int, b.width)
		copy(rows[y], b.cells[y*b.width:(y+1)*b.width])
	}
	return rows
}

// Load replaces the grid with rows given as rows[y][x]. Energy is untouched.
func (b *Board) Load(rows [][]int) error {
	if len(rows) != b.height {
		return fmt.Errorf("%w: expected %d rows, got %d", ErrInvalidDimensions, b.height, len(rows))
	}
	for y, row := range rows {
		if len(row) != b.width {
			return fmt.Errorf("%w: row %d has %d cells, expected %d", ErrInvalidDimensions, y, len(row), b.width)
		}
		for x, v := range row {
			if v != 0 && !IsPowerOfTwo(v) {
				return fmt.Errorf("%w: %d at (%d,%d)", ErrInvalidValue, v, x, y)
			}
		}
	}
	for y, row := range rows {
		copy(b.cells[y*b.width:(y+1)*b.width], row)
	}
	b.active = NoActive()
	return nil
}

// Clear empties the grid and drains the energy gauge.
func (b *Board) Clear() {
	clear(b.cells)
	b.active = NoActive()
	b.chainScore = 0
	b.merges = nil
	b.setEnergy(0)
	b.flush()
}

// GenerateNextValue draws the next spawn value from the configured weights.
func (b *Board) GenerateNextValue() {
	b.nextValue = DrawValue(b.rng, b.weights)
}

// SetNextValue restores a pending value, e.g. from a saved game.
func (b *Board) SetNextValue(v int) error {
	if !IsPowerOfTwo(v) {
		return fmt.Errorf("%w: got %d", ErrInvalidValue, v)
	}
	b.nextValue = v
	return nil
}

// SpawnAndResolve drops value into column and resolves the cascade.
// It returns false, changing nothing, when the column is full.
// Panics when column is out of range, value is not a tile value or the
// cascade diverges.
func (b *Board) SpawnAndResolve(column, value int) bool {
	b.mustBeInBounds(column, 0)
	if !IsPowerOfTwo(value) {
		panic(fmt.Errorf("%w: got %d", ErrInvalidValue, value))
	}
	out, err := b.Drop(column, value)
	if err != nil && !errors.Is(err, ErrColumnFull) {
		panic(err)
	}
	return out != nil && out.Placed
}

// Drop places value on the lowest empty cell of column and resolves.
// A divergent cascade returns the partial outcome together with ErrResolutionDivergence.
func (b *Board) Drop(column, value int) (*Outcome, error) {
	if !b.InBounds(column, 0) {
		return nil, fmt.Errorf("%w: column %d", ErrOutOfBounds, column)
	}
	if !IsPowerOfTwo(value) {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidValue, value)
	}

	row := -1
	for y := 0; y < b.height; y++ {
		if b.at(column, y) == 0 {
			row = y
			break
		}
	}
	if row < 0 {
		return nil, fmt.Errorf("%w: column %d", ErrColumnFull, column)
	}

	origin := Coordinate{X: column, Y: row}
	before := b.begin()
	out := &Outcome{Placed: true, Origin: origin, Value: value, EnergyBefore: b.energy}

	b.set(origin, value)
	b.active = ActiveAt(origin.X, origin.Y)
	err := b.resolve()

	b.finish(out, before)
	return out, err
}

// DestroyCell empties (x, y) and resolves the cascade from the cell above.
// Energy and eligibility are not checked; see DestroyScore and CanConsume.
// Panics when the cascade diverges.
func (b *Board) DestroyCell(x, y int) {
	b.mustBeInBounds(x, y)
	if _, err := b.Destroy(x, y); err != nil {
		panic(err)
	}
}

// Destroy is DestroyCell with a structured result. DestroyScore holds the
// score the cell was worth before removal.
func (b *Board) Destroy(x, y int) (*Outcome, error) {
	if !b.InBounds(x, y) {
		return nil, fmt.Errorf("%w: (%d,%d)", ErrOutOfBounds, x, y)
	}

	origin := Coordinate{X: x, Y: y}
	before := b.begin()
	out := &Outcome{Origin: origin, Value: b.at(x, y), DestroyScore: b.DestroyScore(x, y), EnergyBefore: b.energy}

	b.set(origin, 0)
	if y+1 < b.height {
		b.active = ActiveAt(x, y+1)
	} else {
		b.active = NoActive()
	}
	err := b.resolve()

	b.finish(out, before)
	return out, err
}

// begin resets the per-command accumulators and returns a copy of the grid.
func (b *Board) begin() []int {
	b.chainScore = 0
	b.merges = nil
	return append([]int(nil), b.cells...)
}

func (b *Board) finish(out *Outcome, before []int) {
	out.ChainScore = b.chainScore
	out.Merges = b.merges
	if out.Merges == nil {
		out.Merges = []Merge{}
	}
	out.EnergyAfter = b.energy
	out.Changes = b.diff(before)
	b.merges = nil
	b.flush()
}

func (b *Board) diff(before []int) []CellChange {
	changes := []CellChange{}
	for i, v := range b.cells {
		if before[i] != v {
			changes = append(changes, CellChange{X: i % b.width, Y: i / b.width, Before: before[i], After: v})
		}
	}
	return changes
}

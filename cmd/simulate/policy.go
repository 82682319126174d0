package main

import (
	"fmt"
	"math/rand/v2"

	"github.com/wricardo/mcp-training/dropmerge/game/engine"
)

// View is what a policy sees of a game: the grid, the pending value and
// whether a detonation is affordable.
type View struct {
	Grid        [][]int
	Width       int
	Height      int
	NextValue   int
	CanDetonate bool
}

// viewFromState builds a View from a full game state, local or fetched over HTTP
func viewFromState(state *engine.GameState) View {
	return View{
		Grid:        state.Grid,
		Width:       state.Width,
		Height:      state.Height,
		NextValue:   state.NextValue,
		CanDetonate: state.CanDestroy,
	}
}

// OpenColumns lists the columns whose top cell is empty
func (v View) OpenColumns() []int {
	open := []int{}
	if v.Height == 0 {
		return open
	}
	top := v.Grid[v.Height-1]
	for x := 0; x < v.Width; x++ {
		if top[x] == 0 {
			open = append(open, x)
		}
	}
	return open
}

// Action is a single move chosen by a policy
type Action struct {
	Detonate bool
	Column   int
	X, Y     int
}

func (a Action) String() string {
	if a.Detonate {
		return fmt.Sprintf("detonate (%d,%d)", a.X, a.Y)
	}
	return fmt.Sprintf("drop %d", a.Column)
}

// Policy picks the next action. ok is false when no move is possible.
type Policy interface {
	Name() string
	Choose(v View) (a Action, ok bool)
}

// NewPolicy returns the policy registered under name
func NewPolicy(name string, seed uint64) (Policy, error) {
	switch name {
	case "greedy":
		return newGreedyPolicy(), nil
	case "random":
		return &randomPolicy{rng: rand.New(rand.NewPCG(seed, seed^0x5bd1e995))}, nil
	case "first":
		return firstPolicy{}, nil
	}
	return nil, fmt.Errorf("unknown policy %q (greedy, random, first)", name)
}

// firstPolicy always drops into the leftmost open column. Like every policy
// it detonates when the board is full and the gauge allows it.
type firstPolicy struct{}

func (firstPolicy) Name() string { return "first" }

func (firstPolicy) Choose(v View) (Action, bool) {
	open := v.OpenColumns()
	if len(open) == 0 {
		return firstTarget(v)
	}
	return Action{Column: open[0]}, true
}

// firstTarget detonates the lowest eligible tile, if the gauge allows it
func firstTarget(v View) (Action, bool) {
	if !v.CanDetonate {
		return Action{}, false
	}
	for y, row := range v.Grid {
		for x, value := range row {
			if engine.Level(value) >= engine.MinDestroyLevel {
				return Action{Detonate: true, X: x, Y: y}, true
			}
		}
	}
	return Action{}, false
}

// randomPolicy drops into a uniformly chosen open column
type randomPolicy struct {
	rng *rand.Rand
}

func (p *randomPolicy) Name() string { return "random" }

func (p *randomPolicy) Choose(v View) (Action, bool) {
	open := v.OpenColumns()
	if len(open) == 0 {
		return firstTarget(v)
	}
	return Action{Column: open[p.rng.IntN(len(open))]}, true
}

// greedyPolicy tries every open column on a scratch board and keeps the one
// with the best chain score, then the fewest tiles left, then the leftmost.
// With at most one open column and energy to spare it detonates the tile
// worth the most points.
type greedyPolicy struct {
	scratch map[[2]int]*engine.Board
}

func newGreedyPolicy() *greedyPolicy {
	return &greedyPolicy{scratch: make(map[[2]int]*engine.Board)}
}

func (p *greedyPolicy) Name() string { return "greedy" }

func (p *greedyPolicy) board(v View) (*engine.Board, error) {
	key := [2]int{v.Width, v.Height}
	b, ok := p.scratch[key]
	if !ok {
		var err error
		b, err = engine.New(v.Width, v.Height, engine.WithRandomSource(engine.NewSeededSource(0)))
		if err != nil {
			return nil, err
		}
		p.scratch[key] = b
	}
	return b, b.Load(v.Grid)
}

func (p *greedyPolicy) Choose(v View) (Action, bool) {
	open := v.OpenColumns()
	b, err := p.board(v)
	if err != nil {
		return firstPolicy{}.Choose(v)
	}

	if v.CanDetonate && len(open) <= 1 {
		best, bestScore := Action{}, 0
		for _, c := range b.DestroyTargets() {
			if score := b.DestroyScore(c.X, c.Y); score > bestScore {
				best, bestScore = Action{Detonate: true, X: c.X, Y: c.Y}, score
			}
		}
		if bestScore > 0 {
			return best, true
		}
	}

	if len(open) == 0 {
		return Action{}, false
	}

	best := Action{Column: open[0]}
	bestChain, bestTiles := -1, 0
	for _, column := range open {
		if err := b.Load(v.Grid); err != nil {
			break
		}
		out, err := b.Drop(column, v.NextValue)
		if out == nil || err != nil {
			continue
		}
		tiles := countTiles(b.Cells())
		if out.ChainScore > bestChain || (out.ChainScore == bestChain && tiles < bestTiles) {
			best, bestChain, bestTiles = Action{Column: column}, out.ChainScore, tiles
		}
	}
	return best, true
}

func countTiles(grid [][]int) int {
	n := 0
	for _, row := range grid {
		for _, v := range row {
			if v != 0 {
				n++
			}
		}
	}
	return n
}

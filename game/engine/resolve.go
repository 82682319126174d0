package engine

import (
	"fmt"

	"go.uber.org/zap"
)

// phase is a state of the cascade state machine.
//
//	gravity -> merge -> merge ... -> gravity (pass changed something)
//	                              -> scan    (pass changed nothing)
//	scan -> gravity (mergeable pair found) | done
type phase int

const (
	phaseGravity phase = iota
	phaseMerge
	phaseScan
	phaseDone
)

func (p phase) String() string {
	switch p {
	case phaseGravity:
		return "gravity"
	case phaseMerge:
		return "merge"
	case phaseScan:
		return "scan"
	default:
		return "done"
	}
}

// resolve runs the cascade until the board is stable or the step ceiling is hit.
func (b *Board) resolve() error {
	p := phaseGravity
	changed := false

	for steps := 0; p != phaseDone; steps++ {
		if steps >= b.maxIterations {
			b.active = NoActive()
			b.logger.DPanic("cascade exceeded step ceiling",
				zap.Int("limit", b.maxIterations),
				zap.Stringer("phase", p),
				zap.Int("width", b.width),
				zap.Int("height", b.height),
				zap.Int("chain_score", b.chainScore),
				zap.Ints("cells", b.cells),
			)
			return fmt.Errorf("%w after %d steps", ErrResolutionDivergence, steps)
		}
		p, changed = b.step(p, changed)
	}
	return nil
}

// step performs one transition. changed tracks whether the current pass
// moved or merged anything.
func (b *Board) step(p phase, changed bool) (phase, bool) {
	switch p {
	case phaseGravity:
		return phaseMerge, b.applyGravity()

	case phaseMerge:
		if b.mergeActive() {
			b.applyGravity()
			return phaseMerge, true
		}
		b.active = NoActive()
		if changed {
			return phaseGravity, false
		}
		return phaseScan, false

	case phaseScan:
		if c, ok := b.findMergeable(); ok {
			b.active = ActiveAt(c.X, c.Y)
			return phaseGravity, false
		}
		return phaseDone, false
	}
	return phaseDone, false
}

// applyGravity drops every tile one row per sweep, left to right and bottom
// to top, until a sweep moves nothing. The last tile to fall becomes active.
func (b *Board) applyGravity() bool {
	moved := false
	for {
		swept := false
		for x := 0; x < b.width; x++ {
			for y := 1; y < b.height; y++ {
				if b.at(x, y) == 0 || b.at(x, y-1) != 0 {
					continue
				}
				b.set(Coordinate{X: x, Y: y - 1}, b.at(x, y))
				b.set(Coordinate{X: x, Y: y}, 0)
				b.active = ActiveAt(x, y-1)
				swept = true
			}
		}
		if !swept {
			return moved
		}
		moved = true
	}
}

// mergeActive tries down, left, then right from the active cell.
func (b *Board) mergeActive() bool {
	c, ok := b.active.Get()
	if !ok || !b.InBounds(c.X, c.Y) {
		return false
	}
	v := b.at(c.X, c.Y)
	if v == 0 {
		return false
	}

	switch {
	case c.Y > 0 && b.at(c.X, c.Y-1) == v:
		below := Coordinate{X: c.X, Y: c.Y - 1}
		b.set(below, v*2)
		b.set(c, 0)
		b.active = ActiveAt(below.X, below.Y)
		b.recordMerge(Merge{At: below, Cleared: c, Direction: MergeDown, Value: v * 2})

	case c.X > 0 && b.at(c.X-1, c.Y) == v:
		left := Coordinate{X: c.X - 1, Y: c.Y}
		b.set(c, v*2)
		b.set(left, 0)
		b.recordMerge(Merge{At: c, Cleared: left, Direction: MergeLeft, Value: v * 2})

	case c.X < b.width-1 && b.at(c.X+1, c.Y) == v:
		right := Coordinate{X: c.X + 1, Y: c.Y}
		b.set(c, v*2)
		b.set(right, 0)
		b.recordMerge(Merge{At: c, Cleared: right, Direction: MergeRight, Value: v * 2})

	default:
		return false
	}
	return true
}

func (b *Board) recordMerge(m Merge) {
	b.chainScore += m.Value
	b.merges = append(b.merges, m)
	b.setEnergy(b.energy + mergeEnergy(m.Value))
	b.logger.Debug("merge",
		zap.Int("x", m.At.X),
		zap.Int("y", m.At.Y),
		zap.String("direction", string(m.Direction)),
		zap.Int("value", m.Value),
		zap.Int("chain_score", b.chainScore),
	)
}

// findMergeable scans bottom to top, left to right for a tile with an equal
// neighbour below, left or right.
func (b *Board) findMergeable() (Coordinate, bool) {
	for y := 0; y < b.height; y++ {
		for x := 0; x < b.width; x++ {
			v := b.at(x, y)
			if v == 0 {
				continue
			}
			if (y > 0 && b.at(x, y-1) == v) ||
				(x > 0 && b.at(x-1, y) == v) ||
				(x < b.width-1 && b.at(x+1, y) == v) {
				return Coordinate{X: x, Y: y}, true
			}
		}
	}
	return Coordinate{}, false
}

package engine

// EnergyObserver receives the destroy energy after every change.
// Observers run after the command that caused the change has returned its
// board to a stable state, so they may call back into the Board.
type EnergyObserver func(energy float64)

// OnEnergyChange registers an observer. A nil observer is ignored.
func (b *Board) OnEnergyChange(o EnergyObserver) {
	if o != nil {
		b.observers = append(b.observers, o)
	}
}

// Energy returns the destroy energy, always within [0, MaxEnergy].
func (b *Board) Energy() float64 { return b.energy }

// SetEnergy overwrites the destroy energy, clamped to [0, MaxEnergy].
func (b *Board) SetEnergy(e float64) {
	b.setEnergy(e)
	b.flush()
}

// DestroyCost returns the energy a detonation consumes.
func (b *Board) DestroyCost() float64 { return b.destroyCost }

// CanConsume reports whether at least cost energy is stored.
func (b *Board) CanConsume(cost float64) bool {
	return b.energy >= cost
}

// ConsumeGauge spends cost energy, never going below zero.
func (b *Board) ConsumeGauge(cost float64) {
	if cost < 0 {
		cost = 0
	}
	b.setEnergy(b.energy - cost)
	b.flush()
}

// DestroyScore returns value*level^2 for tiles of level MinDestroyLevel or
// more and 0 otherwise. Panics when out of bounds.
func (b *Board) DestroyScore(x, y int) int {
	v := b.GetValue(x, y)
	lv := Level(v)
	if lv < MinDestroyLevel {
		return 0
	}
	return v * lv * lv
}

// DestroyTargets lists every cell DestroyScore accepts, bottom row first.
func (b *Board) DestroyTargets() []Coordinate {
	var targets []Coordinate
	for y := 0; y < b.height; y++ {
		for x := 0; x < b.width; x++ {
			if Level(b.at(x, y)) >= MinDestroyLevel {
				targets = append(targets, Coordinate{X: x, Y: y})
			}
		}
	}
	return targets
}

// CanDestroy reports whether the gauge covers the destroy cost and some tile is eligible.
func (b *Board) CanDestroy() bool {
	if !b.CanConsume(b.destroyCost) {
		return false
	}
	for _, v := range b.cells {
		if Level(v) >= MinDestroyLevel {
			return true
		}
	}
	return false
}

// GaugeTier returns how many whole destroy costs the gauge holds.
func (b *Board) GaugeTier() int {
	if b.destroyCost <= 0 {
		return 0
	}
	return int(b.energy / b.destroyCost)
}

// mergeEnergy is the gauge gain of one merge: level^2 / 4.
func mergeEnergy(value int) float64 {
	lv := Level(value)
	return float64(lv*lv) / 4
}

func (b *Board) setEnergy(e float64) {
	e = min(max(e, 0), MaxEnergy)
	if e == b.energy {
		return
	}
	b.energy = e
	b.pending = append(b.pending, e)
}

// flush delivers queued energy changes in order.
func (b *Board) flush() {
	pending := b.pending
	b.pending = nil
	for _, e := range pending {
		for _, o := range b.observers {
			o(e)
		}
	}
}

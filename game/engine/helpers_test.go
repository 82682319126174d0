package engine

import (
	"testing"
)

// scriptedSource replays draws in [1, n] and wraps around.
type scriptedSource struct {
	draws []int
	next  int
}

func (s *scriptedSource) IntN(n int) int {
	r := s.draws[s.next%len(s.draws)]
	s.next++
	return r - 1
}

// countingSource yields 0, 1, 2, ... modulo n.
type countingSource struct{ next int }

func (s *countingSource) IntN(n int) int {
	v := s.next % n
	s.next++
	return v
}

func newTestBoard(t *testing.T, width, height int, opts ...Option) *Board {
	t.Helper()
	opts = append([]Option{WithRandomSource(NewSeededSource(42))}, opts...)
	b, err := New(width, height, opts...)
	if err != nil {
		t.Fatalf("Failed to create board: %v", err)
	}
	return b
}

// loadRows loads rows given bottom row first.
func loadRows(t *testing.T, b *Board, rows ...[]int) {
	t.Helper()
	full := make([][]int, b.Height())
	for y := range full {
		full[y] = make([]int, b.Width())
		if y < len(rows) {
			copy(full[y], rows[y])
		}
	}
	if err := b.Load(full); err != nil {
		t.Fatalf("Failed to load rows: %v", err)
	}
}

func gridSum(b *Board) int {
	sum := 0
	for _, v := range b.cells {
		sum += v
	}
	return sum
}

// assertStable checks that no equal neighbours remain and every column is compacted.
func assertStable(t *testing.T, b *Board) {
	t.Helper()
	for y := 0; y < b.Height(); y++ {
		for x := 0; x < b.Width(); x++ {
			v := b.GetValue(x, y)
			if v != 0 && !IsPowerOfTwo(v) {
				t.Fatalf("Cell (%d,%d) holds %d, not a tile value", x, y, v)
			}
			if v == 0 {
				if y+1 < b.Height() && b.GetValue(x, y+1) != 0 {
					t.Fatalf("Column %d has a gap at row %d below a tile\n%s", x, y, RenderGrid(b.Cells()))
				}
				continue
			}
			if x+1 < b.Width() && b.GetValue(x+1, y) == v {
				t.Fatalf("Cells (%d,%d) and (%d,%d) both hold %d\n%s", x, y, x+1, y, v, RenderGrid(b.Cells()))
			}
			if y+1 < b.Height() && b.GetValue(x, y+1) == v {
				t.Fatalf("Cells (%d,%d) and (%d,%d) both hold %d\n%s", x, y, x, y+1, v, RenderGrid(b.Cells()))
			}
		}
	}
	if !b.Active().IsNone() {
		t.Fatal("Expected no active cell after a command")
	}
}

func createTestConfig() *GameConfig {
	return &GameConfig{
		Name:         "Engine Test Config",
		Description:  "Configuration for engine tests",
		Width:        4,
		Height:       4,
		DestroyCost:  DefaultDestroyCost,
		SpawnWeights: DefaultSpawnWeights(),
		Messages:     DefaultMessages(),
	}
}

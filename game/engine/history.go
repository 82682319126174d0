package engine

import (
	"fmt"
	"strings"
	"time"
)

// AddMoveToHistory adds a player action to the game's move history
func (gs *GameState) AddMoveToHistory(action string, target Coordinate, value, chainScore int, success bool) {
	entry := MoveHistoryEntry{
		Action:     action,
		Target:     target,
		Value:      value,
		ChainScore: chainScore,
		Score:      gs.Score,
		Energy:     gs.Energy,
		Timestamp:  time.Now().Unix(),
		Success:    success,
		MoveNumber: gs.TotalMoves + 1,
	}
	// Append to cumulative history (never cleared by reset) and increment total
	gs.MoveHistory = append(gs.MoveHistory, entry)
	gs.TotalMoves++

	// Append to current segment history and increment its counter
	gs.CurrentMoves = append(gs.CurrentMoves, entry)
	gs.CurrentMovesCount++
}

// RenderGrid draws rows top row first, one cell per fixed-width column, "." for empty.
func RenderGrid(grid [][]int) string {
	width := 1
	for _, row := range grid {
		for _, v := range row {
			width = max(width, len(fmt.Sprint(v)))
		}
	}

	var sb strings.Builder
	for y := len(grid) - 1; y >= 0; y-- {
		for x, v := range grid[y] {
			if x > 0 {
				sb.WriteByte(' ')
			}
			cell := "."
			if v != 0 {
				cell = fmt.Sprint(v)
			}
			sb.WriteString(strings.Repeat(" ", width-len(cell)))
			sb.WriteString(cell)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Package engine provides the core game logic for the drop-merge puzzle.
//
// The engine package implements the game mechanics including:
//   - Column drops with gravity and priority-ordered merges
//   - Cascade resolution to a stable board
//   - The destroy gauge and tile detonation
//   - Weighted next-value generation with an injectable random source
//   - Game state snapshots, history and configuration loading
//
// Core Types:
//
// Board owns the grid and resolves every command to a fixed point. GameEngine
// wraps a Board with the surrounding game: total score, the pending next value,
// move history and game-over detection. GameConfig defines board size, destroy
// cost and spawn weights, loaded from JSON or YAML files.
//
// Usage:
//
//	board, err := engine.New(4, 4, engine.WithRandomSource(engine.NewSeededSource(1)))
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	board.GenerateNextValue()
//	placed := board.SpawnAndResolve(0, board.NextValue())
//	fmt.Println(placed, board.ChainScore(), board.Energy())
//
// Game Rules:
//
// A tile dropped into a column lands on the lowest empty cell. It merges with an
// equal tile below it first, then left, then right; the merged tile doubles and
// gravity closes the gaps, which may trigger further merges. Every merge of a
// tile of level L (value 2^L) scores its value and fills the destroy gauge by
// L*L/4, up to 100. Tiles of level 5 or more can be detonated for value*L*L
// once the gauge holds the destroy cost. The game ends when the board is full
// and nothing can be detonated.
package engine

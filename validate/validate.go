// Command validate checks the game configuration files in a directory
// (default ../configs). For every .json, .yaml or .yml file it checks:
//   - The file decodes and passes engine validation (board size, detonation
//     cost, spawn distribution, message format verbs)
//   - The file name is a usable config ID
//   - A seeded smoke game plays without a resolution error
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/wricardo/mcp-training/dropmerge/game/engine"
)

// smokeMoveLimit caps the smoke game
const smokeMoveLimit = 500

var validConfigID = regexp.MustCompile(`^[a-z0-9_-]+$`)

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Errors contains informational messages; otherwise it
// accumulates the validation errors that were found.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
}

func (r *ValidationResult) fail(format string, args ...any) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) info(format string, args ...any) {
	r.Errors = append(r.Errors, "✓ "+fmt.Sprintf(format, args...))
}

// validateConfig loads and validates a single configuration file, then plays
// a seeded smoke game on it.
func validateConfig(filePath string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.fail("Failed to read file: %v", err)
		return result
	}

	config, err := engine.ParseGameConfig(data, filePath)
	if err != nil {
		result.fail("Invalid %s: %v", formatName(filePath), err)
		return result
	}

	id := strings.TrimSuffix(result.File, filepath.Ext(result.File))
	if !validConfigID.MatchString(id) {
		result.fail("File name %q is not a valid config ID (lowercase letters, digits, _ and -)", id)
	}

	if err := engine.ValidateGameConfig(config); err != nil {
		result.fail("%v", err)
		return result
	}

	smoke := smokeGame(config)
	if !smoke.Valid {
		result.Valid = false
		result.Errors = append(result.Errors, smoke.Errors...)
		return result
	}

	if result.Valid {
		result.info("Name: %s", config.Name)
		result.info("Board: %dx%d", config.Width, config.Height)
		result.info("Detonation cost: %.1f energy", config.DestroyCost)
		result.info("Spawn: %s", describeSpawn(config.SpawnWeights))
		result.Errors = append(result.Errors, smoke.Errors...)
	}
	return result
}

func formatName(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "YAML"
	}
	return "JSON"
}

// describeSpawn renders the distribution as percentages, lowest value first
func describeSpawn(weights []engine.ValueWeight) string {
	sorted := append([]engine.ValueWeight(nil), weights...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Value < sorted[j].Value })

	total := 0
	for _, w := range sorted {
		total += w.Weight
	}
	parts := make([]string, 0, len(sorted))
	for _, w := range sorted {
		parts = append(parts, fmt.Sprintf("%d=%.0f%%", w.Value, 100*float64(w.Weight)/float64(total)))
	}
	return strings.Join(parts, " ")
}

// smokeGame plays a deterministic game, always dropping into the first open
// column, and reports any engine failure other than a rejected move.
func smokeGame(config *engine.GameConfig) ValidationResult {
	result := ValidationResult{Valid: true, Errors: []string{}}

	eng, err := engine.NewEngine(config, engine.WithRandomSource(engine.NewSeededSource(1)))
	if err != nil {
		result.fail("Smoke game: failed to create engine: %v", err)
		return result
	}

	moves := 0
	for !eng.IsGameOver() && moves < smokeMoveLimit {
		open := eng.GetPossibleDrops()
		if len(open) == 0 {
			result.fail("Smoke game: no open column but the game is not over")
			return result
		}
		if _, err := eng.Drop(open[0]); err != nil && !errors.Is(err, engine.ErrColumnFull) {
			result.fail("Smoke game: move %d failed: %v", moves+1, err)
			return result
		}
		moves++
	}

	status := "game over"
	if !eng.IsGameOver() {
		status = "still running"
	}
	result.info("Smoke game: %d moves, %s, score %d, highest tile %d", moves, status, eng.GetScore(), eng.GetState().HighestTile)
	return result
}

// configFiles lists every configuration file in dir, sorted by name
func configFiles(dir string) ([]string, error) {
	var files []string
	for _, ext := range engine.ConfigExtensions {
		matches, err := filepath.Glob(filepath.Join(dir, "*"+ext))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	return files, nil
}

// main validates every configuration in the directory given as the first
// argument, printing a concise report and exiting non-zero if any is invalid.
func main() {
	configDir := "../configs"
	if len(os.Args) > 1 {
		configDir = os.Args[1]
	}

	files, err := configFiles(configDir)
	if err != nil {
		fmt.Printf("Error finding config files: %v\n", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Printf("No configuration files in %s\n", configDir)
		os.Exit(1)
	}

	allValid := true
	for _, file := range files {
		result := validateConfig(file)

		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Println("✅ VALID")
			for _, info := range result.Errors {
				fmt.Println("  " + info)
			}
		} else {
			fmt.Println("❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				if !strings.HasPrefix(err, "✓") {
					fmt.Println("  ❌ " + err)
				}
			}
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Println("✅ All configurations are valid!")
	} else {
		fmt.Println("❌ Some configurations have errors")
		os.Exit(1)
	}
}

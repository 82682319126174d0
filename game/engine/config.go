package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigExtensions lists the file extensions a configuration may use, in lookup order.
var ConfigExtensions = []string{".json", ".yaml", ".yml"}

// DefaultMessages returns the stock player-facing texts.
func DefaultMessages() Messages {
	return Messages{
		Welcome:         "Drop tiles, merge equal values and keep the board from filling up!",
		Merged:          "Chain! +%d",
		NoMerge:         "Tile placed.",
		ColumnFull:      "That column is full.",
		Detonated:       "Boom! +%d",
		NotEnoughEnergy: "Not enough energy to detonate.",
		NotDestroyable:  "Only tiles of 32 or more can be detonated.",
		GameOver:        "Board full! Final score: %d",
	}
}

// DefaultConfig returns the classic 4x4 configuration.
func DefaultConfig() *GameConfig {
	return &GameConfig{
		Name:         "classic",
		Description:  "Classic 4x4 board",
		Width:        4,
		Height:       4,
		DestroyCost:  DefaultDestroyCost,
		SpawnWeights: DefaultSpawnWeights(),
		Messages:     DefaultMessages(),
	}
}

// ApplyDefaults fills unset optional fields of a configuration.
func ApplyDefaults(config *GameConfig) {
	if config.DestroyCost == 0 {
		config.DestroyCost = DefaultDestroyCost
	}
	if len(config.SpawnWeights) == 0 {
		config.SpawnWeights = DefaultSpawnWeights()
	}

	defaults := DefaultMessages()
	m := &config.Messages
	for _, f := range []struct {
		field *string
		def   string
	}{
		{&m.Welcome, defaults.Welcome},
		{&m.Merged, defaults.Merged},
		{&m.NoMerge, defaults.NoMerge},
		{&m.ColumnFull, defaults.ColumnFull},
		{&m.Detonated, defaults.Detonated},
		{&m.NotEnoughEnergy, defaults.NotEnoughEnergy},
		{&m.NotDestroyable, defaults.NotDestroyable},
		{&m.GameOver, defaults.GameOver},
	} {
		if *f.field == "" {
			*f.field = f.def
		}
	}
}

// ValidateGameConfig validates a game configuration for correctness and playability
func ValidateGameConfig(config *GameConfig) error {
	if config == nil {
		return fmt.Errorf("config validation: config is nil")
	}

	// Validate required fields
	if config.Name == "" {
		return fmt.Errorf("config validation: name is required")
	}
	if config.Description == "" {
		return fmt.Errorf("config validation: description is required")
	}

	// Validate grid size
	if config.Width < MinGridSize || config.Width > MaxGridSize {
		return fmt.Errorf("config validation: width must be between %d and %d, got %d", MinGridSize, MaxGridSize, config.Width)
	}
	if config.Height < MinGridSize || config.Height > MaxGridSize {
		return fmt.Errorf("config validation: height must be between %d and %d, got %d", MinGridSize, MaxGridSize, config.Height)
	}

	if config.DestroyCost <= 0 || config.DestroyCost > MaxEnergy {
		return fmt.Errorf("config validation: destroy_cost must be in (0, %.0f], got %g", MaxEnergy, config.DestroyCost)
	}
	if config.MaxIterations < 0 || (config.MaxIterations > 0 && config.MaxIterations < MinIterations) {
		return fmt.Errorf("config validation: max_iterations must be 0 (automatic) or at least %d, got %d", MinIterations, config.MaxIterations)
	}

	// Validate spawn distribution
	if len(config.SpawnWeights) == 0 {
		return fmt.Errorf("config validation: spawn_weights must not be empty")
	}
	seen := make(map[int]bool)
	for i, w := range config.SpawnWeights {
		if !IsPowerOfTwo(w.Value) {
			return fmt.Errorf("config validation: spawn_weights[%d].value must be a power of two >= 2, got %d", i, w.Value)
		}
		if w.Weight <= 0 {
			return fmt.Errorf("config validation: spawn_weights[%d].weight must be positive, got %d", i, w.Weight)
		}
		if seen[w.Value] {
			return fmt.Errorf("config validation: spawn_weights lists value %d twice", w.Value)
		}
		seen[w.Value] = true
	}

	// Validate format strings
	if config.Messages.Merged != "" && !strings.Contains(config.Messages.Merged, "%d") {
		return fmt.Errorf("config validation: messages.merged must contain %%d for chain score")
	}
	if config.Messages.Detonated != "" && !strings.Contains(config.Messages.Detonated, "%d") {
		return fmt.Errorf("config validation: messages.detonated must contain %%d for gained score")
	}
	if config.Messages.GameOver != "" && !strings.Contains(config.Messages.GameOver, "%d") {
		return fmt.Errorf("config validation: messages.game_over must contain %%d for final score")
	}

	return nil
}

// ParseGameConfig decodes a configuration, choosing YAML or JSON by the file
// extension, then applies defaults. It does not validate.
func ParseGameConfig(data []byte, filename string) (*GameConfig, error) {
	var config GameConfig
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, err
		}
	default:
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, err
		}
	}
	ApplyDefaults(&config)
	return &config, nil
}

// MarshalGameConfig encodes a configuration as YAML or JSON by the file extension.
func MarshalGameConfig(config *GameConfig, filename string) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return yaml.Marshal(config)
	default:
		return json.MarshalIndent(config, "", "  ")
	}
}

// LoadGameConfig loads a game configuration from a JSON or YAML file
func LoadGameConfig(filename string) (*GameConfig, error) {
	// Support CONFIG_DIR environment variable for alternative config directory
	configPath := filename
	if configDir := os.Getenv("CONFIG_DIR"); configDir != "" {
		if strings.HasPrefix(filename, "configs/") {
			configPath = filepath.Join(configDir, strings.TrimPrefix(filename, "configs/"))
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	config, err := ParseGameConfig(data, configPath)
	if err != nil {
		return nil, err
	}

	if err := ValidateGameConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadConfigByName loads a game configuration by name from the configs directory,
// trying each of ConfigExtensions when name has none.
func LoadConfigByName(configName string) (*GameConfig, error) {
	dir := "configs"
	if configDir := os.Getenv("CONFIG_DIR"); configDir != "" {
		dir = configDir
	}

	candidates := []string{configName}
	if filepath.Ext(configName) == "" {
		candidates = candidates[:0]
		for _, ext := range ConfigExtensions {
			candidates = append(candidates, configName+ext)
		}
	}

	for _, candidate := range candidates {
		configPath := filepath.Join(dir, candidate)
		data, err := os.ReadFile(configPath)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read config file '%s': %v", candidate, err)
		}

		config, err := ParseGameConfig(data, candidate)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file '%s': %v", candidate, err)
		}
		if err := ValidateGameConfig(config); err != nil {
			return nil, fmt.Errorf("invalid config '%s': %v", candidate, err)
		}
		return config, nil
	}

	return nil, fmt.Errorf("config file '%s' not found", configName)
}

// InitGameStateFromConfig creates a fresh game state for the provided configuration
func InitGameStateFromConfig(config *GameConfig) *GameState {
	if config == nil {
		config = DefaultConfig()
	}

	grid := make([][]int, config.Height)
	for y := range grid {
		grid[y] = make([]int, config.Width)
	}

	return &GameState{
		Grid:              grid,
		Width:             config.Width,
		Height:            config.Height,
		DestroyCost:       config.DestroyCost,
		Message:           config.Messages.Welcome,
		ConfigName:        config.Name,
		MoveHistory:       []MoveHistoryEntry{},
		CurrentMoves:      []MoveHistoryEntry{},
		CurrentMovesCount: 0,
	}
}

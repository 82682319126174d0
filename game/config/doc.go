// Package config provides configuration management for the drop-merge game.
//
// The config package handles:
//   - Loading game configurations from JSON or YAML files
//   - Configuration validation
//   - Default configuration management
//   - Configuration discovery and listing
//
// Configuration Format:
//
// Configurations live in one directory, one file per configuration. The file
// name without extension is the config ID used to create sessions; the
// extension (.json, .yaml or .yml) picks the decoder. Each configuration
// defines:
//   - Board width and height
//   - The energy a detonation costs
//   - The spawn distribution of next values
//   - Player-facing messages
//
// Usage:
//
//	manager, err := config.NewManager("configs", config.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//
//	gameConfig, err := manager.LoadConfig("tall")
//	defaultConfig := manager.GetDefault()
//	configs, err := manager.ListConfigs()
//
// Loaded configurations are cached. ReloadConfigs drops the cache and picks
// the default again: "classic" when present, else the first valid file, else
// the built-in 4x4 board.
package config

// Command simulate plays many seeded games per configuration with a fixed
// column policy and prints score percentiles and a highest-tile histogram.
//
// Games run in process by default. With --api-url they are played against a
// running server through its REST API instead.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/wricardo/mcp-training/dropmerge/game/engine"
	"github.com/wricardo/mcp-training/dropmerge/logging"
)

// namedConfig is a configuration and the ID it is known by
type namedConfig struct {
	ID     string
	Config *engine.GameConfig

	// Builtin marks the compiled-in board, which a server knows as its default
	Builtin bool
}

// options holds the parsed flags
type options struct {
	ConfigDir string
	Configs   []string
	Games     int
	Seed      uint64
	Policy    string
	MaxMoves  int
	APIURL    string
}

func newApp(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "simulate",
		Usage: "Play seeded games per configuration and report score statistics",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config-dir", Value: "configs", Usage: "Directory containing game configurations", Sources: cli.EnvVars("CONFIG_DIR")},
			&cli.StringSliceFlag{Name: "config", Aliases: []string{"c"}, Usage: "Config ID to simulate (repeatable; default all)"},
			&cli.IntFlag{Name: "games", Aliases: []string{"n"}, Value: 100, Usage: "Games per configuration"},
			&cli.Uint64Flag{Name: "seed", Value: 1, Usage: "Seed of the first game; game i uses seed+i"},
			&cli.StringFlag{Name: "policy", Value: "greedy", Usage: "greedy, random or first"},
			&cli.IntFlag{Name: "max-moves", Value: 5000, Usage: "Stop a game after this many moves"},
			&cli.StringFlag{Name: "api-url", Usage: "Play against a running server instead of in process", Sources: cli.EnvVars("API_URL")},
			&cli.StringFlag{Name: "log-level", Value: "warn", Usage: "debug, info, warn or error", Sources: cli.EnvVars("LOG_LEVEL")},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			logger, err := logging.New(logging.Options{Level: cmd.String("log-level"), Encoding: "console", Stderr: true})
			if err != nil {
				return err
			}
			defer logger.Sync()

			opts := options{
				ConfigDir: cmd.String("config-dir"),
				Configs:   cmd.StringSlice("config"),
				Games:     cmd.Int("games"),
				Seed:      cmd.Uint64("seed"),
				Policy:    cmd.String("policy"),
				MaxMoves:  cmd.Int("max-moves"),
				APIURL:    cmd.String("api-url"),
			}
			return run(ctx, opts, stdout, logger)
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout).Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "simulate: %v\n", err)
		os.Exit(1)
	}
}

// run simulates every selected configuration and writes one report each
func run(ctx context.Context, opts options, w io.Writer, logger *zap.Logger) error {
	if opts.Games <= 0 {
		return fmt.Errorf("games must be positive, got %d", opts.Games)
	}
	if opts.MaxMoves <= 0 {
		return fmt.Errorf("max-moves must be positive, got %d", opts.MaxMoves)
	}

	configs, err := loadConfigs(opts.ConfigDir, opts.Configs)
	if err != nil {
		return err
	}

	for _, nc := range configs {
		report, err := simulate(ctx, nc, opts, logger)
		if err != nil {
			return fmt.Errorf("%s: %w", nc.ID, err)
		}
		report.Write(w)
	}
	return nil
}

// simulate plays opts.Games games of one configuration
func simulate(ctx context.Context, nc namedConfig, opts options, logger *zap.Logger) (*Report, error) {
	policy, err := NewPolicy(opts.Policy, opts.Seed)
	if err != nil {
		return nil, err
	}

	var remote *remoteClient
	if opts.APIURL != "" {
		remote = newRemoteClient(opts.APIURL)
	}

	games := make([]GameResult, 0, opts.Games)
	for i := 0; i < opts.Games; i++ {
		var result GameResult
		if remote != nil {
			configID := nc.ID
			if nc.Builtin {
				configID = ""
			}
			result, err = remote.playRemote(ctx, configID, policy, opts.MaxMoves)
		} else {
			result, err = playLocal(ctx, nc.Config, policy, opts.Seed+uint64(i), opts.MaxMoves)
		}
		if err != nil {
			return nil, fmt.Errorf("game %d: %w", i+1, err)
		}
		logger.Debug("game finished",
			zap.String("config", nc.ID),
			zap.Int("game", i+1),
			zap.Int("score", result.Score),
			zap.Int("highest_tile", result.HighestTile),
			zap.Int("moves", result.Moves))
		games = append(games, result)
	}

	return newReport(nc.ID, policy.Name(), games), nil
}

// loadConfigs reads the requested configurations from dir, or all of them
// when ids is empty. An empty directory yields the built-in classic board.
func loadConfigs(dir string, ids []string) ([]namedConfig, error) {
	if len(ids) == 0 {
		seen := make(map[string]bool)
		for _, ext := range engine.ConfigExtensions {
			matches, err := filepath.Glob(filepath.Join(dir, "*"+ext))
			if err != nil {
				return nil, err
			}
			for _, m := range matches {
				id := strings.TrimSuffix(filepath.Base(m), ext)
				if !seen[id] {
					seen[id] = true
					ids = append(ids, id)
				}
			}
		}
		sort.Strings(ids)
	}

	if len(ids) == 0 {
		return []namedConfig{{ID: "classic", Config: engine.DefaultConfig(), Builtin: true}}, nil
	}

	configs := make([]namedConfig, 0, len(ids))
	for _, id := range ids {
		config, builtin, err := loadConfig(dir, id)
		if err != nil {
			return nil, err
		}
		configs = append(configs, namedConfig{ID: id, Config: config, Builtin: builtin})
	}
	return configs, nil
}

func loadConfig(dir, id string) (config *engine.GameConfig, builtin bool, err error) {
	for _, ext := range engine.ConfigExtensions {
		data, err := os.ReadFile(filepath.Join(dir, id+ext))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, false, err
		}
		config, err := engine.ParseGameConfig(data, id+ext)
		if err != nil {
			return nil, false, fmt.Errorf("parse %s%s: %w", id, ext, err)
		}
		if err := engine.ValidateGameConfig(config); err != nil {
			return nil, false, fmt.Errorf("%s%s: %w", id, ext, err)
		}
		return config, false, nil
	}
	if id == "classic" {
		return engine.DefaultConfig(), true, nil
	}
	return nil, false, fmt.Errorf("config %q not found in %s", id, dir)
}

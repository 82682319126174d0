package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap/zaptest"

	"github.com/wricardo/mcp-training/dropmerge/game/engine"
)

func TestConstants(t *testing.T) {
	if Version == "" {
		t.Error("Version should not be empty")
	}
	if AppName != "Drop Merge Game Server" {
		t.Errorf("Expected app name Drop Merge Game Server, got %s", AppName)
	}
}

// parseSettings runs the app with every action replaced by a capture
func parseSettings(t *testing.T, args ...string) (settings, string) {
	t.Helper()
	app := newApp()

	var got settings
	var mode string
	capture := func(name string) cli.ActionFunc {
		return func(ctx context.Context, cmd *cli.Command) error {
			got = settingsFromCommand(cmd)
			mode = name
			return nil
		}
	}
	app.Action = capture("server")
	for _, sub := range app.Commands {
		sub.Action = capture(sub.Name)
	}

	if err := app.Run(context.Background(), append([]string{"dropmerge"}, args...)); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return got, mode
}

func TestFlagDefaults(t *testing.T) {
	cfg, mode := parseSettings(t)

	if mode != "server" {
		t.Errorf("Expected default mode server, got %s", mode)
	}
	if cfg.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Port)
	}
	if cfg.Host != "localhost" {
		t.Errorf("Expected default host localhost, got %s", cfg.Host)
	}
	if cfg.ConfigDir != "configs" || cfg.SessionDir != "sessions" || cfg.ResultsDB != "results.db" {
		t.Errorf("Unexpected storage defaults %+v", cfg)
	}
	if cfg.WSEncoding != "json" || cfg.LogLevel != "info" {
		t.Errorf("Unexpected defaults %+v", cfg)
	}
}

func TestFlagsAndEnvironment(t *testing.T) {
	t.Setenv("CONFIG_DIR", "/etc/dropmerge")
	t.Setenv("WS_ENCODING", "msgpack")
	t.Setenv("NGROK_AUTHTOKEN", "secret")

	cfg, mode := parseSettings(t, "--port", "9090", "stdio-mcp", "--api-url", "http://example.test:8080")

	if mode != "stdio-mcp" {
		t.Errorf("Expected mode stdio-mcp, got %s", mode)
	}
	if cfg.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Port)
	}
	if cfg.ConfigDir != "/etc/dropmerge" {
		t.Errorf("Expected config dir from env, got %s", cfg.ConfigDir)
	}
	if cfg.WSEncoding != "msgpack" {
		t.Errorf("Expected msgpack from env, got %s", cfg.WSEncoding)
	}
	if cfg.NgrokAuth != "secret" {
		t.Errorf("Expected ngrok token from env, got %q", cfg.NgrokAuth)
	}
	if cfg.APIURL != "http://example.test:8080" {
		t.Errorf("Expected api url, got %s", cfg.APIURL)
	}
}

func TestModeAliases(t *testing.T) {
	for alias, want := range map[string]string{"http": "server", "mcp": "stdio-mcp", "mcp-stdio": "stdio-mcp"} {
		if _, mode := parseSettings(t, alias); mode != want {
			t.Errorf("%s: expected mode %s, got %s", alias, want, mode)
		}
	}
}

func testSettings(t *testing.T) settings {
	dir := t.TempDir()
	configDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(configDir, 0755); err != nil {
		t.Fatalf("Failed to create config dir: %v", err)
	}
	return settings{
		ConfigDir:  configDir,
		SessionDir: filepath.Join(dir, "sessions"),
		ResultsDB:  filepath.Join(dir, "results.db"),
		WSEncoding: "json",
	}
}

func TestInitializeServices(t *testing.T) {
	logger := zaptest.NewLogger(t)

	t.Run("full stack", func(t *testing.T) {
		svc, err := initializeServices(testSettings(t), logger)
		if err != nil {
			t.Fatalf("Failed to initialize services: %v", err)
		}
		defer svc.Close()

		if svc.game == nil || svc.hub == nil || svc.store == nil {
			t.Fatalf("Expected every service to be wired, got %+v", svc)
		}

		info, err := svc.game.CreateSession(context.Background(), "")
		if err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}
		if !svc.persistence.Exists(info.ID) {
			t.Error("Session should be persisted on creation")
		}
	})

	t.Run("results disabled", func(t *testing.T) {
		cfg := testSettings(t)
		cfg.ResultsDB = ""
		svc, err := initializeServices(cfg, logger)
		if err != nil {
			t.Fatalf("Failed to initialize services: %v", err)
		}
		defer svc.Close()
		if svc.store != nil {
			t.Error("Expected no results store")
		}
	})

	t.Run("invalid config dir", func(t *testing.T) {
		cfg := testSettings(t)
		cfg.ConfigDir = "/non/existent/path"
		if _, err := initializeServices(cfg, logger); err == nil {
			t.Error("Expected error for non-existent config directory")
		}
	})

	t.Run("invalid websocket encoding", func(t *testing.T) {
		cfg := testSettings(t)
		cfg.WSEncoding = "xml"
		if _, err := initializeServices(cfg, logger); err == nil {
			t.Error("Expected error for unknown encoding")
		}
	})
}

func TestSyncWithFilesystem(t *testing.T) {
	logger := zaptest.NewLogger(t)
	svc, err := initializeServices(testSettings(t), logger)
	if err != nil {
		t.Fatalf("Failed to initialize services: %v", err)
	}
	defer svc.Close()

	for _, id := range []string{"keep", "gone"} {
		if _, err := svc.sessions.Create(id, engine.DefaultConfig()); err != nil {
			t.Fatalf("Failed to create session %s: %v", id, err)
		}
	}
	if err := svc.persistence.Delete("gone"); err != nil {
		t.Fatalf("Failed to delete session file: %v", err)
	}

	if pruned := syncWithFilesystem(svc.sessions, svc.persistence, logger); pruned != 1 {
		t.Errorf("Expected 1 pruned session, got %d", pruned)
	}
	if svc.sessions.Count() != 1 {
		t.Errorf("Expected 1 session in memory, got %d", svc.sessions.Count())
	}
	if _, err := svc.sessions.Get("keep"); err != nil {
		t.Errorf("Expected kept session: %v", err)
	}
}

func TestAPIReachable(t *testing.T) {
	if apiReachable(context.Background(), "http://127.0.0.1:1") {
		t.Error("Nothing listens on port 1")
	}
}

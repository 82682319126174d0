// Command dropmerge starts the drop-merge game server.
//
// It supports two modes:
//  1. "server" (default) – runs the HTTP server exposing REST API, WebSocket, and an /mcp HTTP endpoint
//  2. "stdio-mcp" – runs an MCP stdio server against an existing API or an internal one
//
// Every flag can also be set from the environment (see the flag help), and a
// .env file in the working directory is loaded first.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/mcp-training/dropmerge/api"
	"github.com/wricardo/mcp-training/dropmerge/game/config"
	"github.com/wricardo/mcp-training/dropmerge/game/results"
	"github.com/wricardo/mcp-training/dropmerge/game/service"
	"github.com/wricardo/mcp-training/dropmerge/game/session"
	"github.com/wricardo/mcp-training/dropmerge/logging"
	"github.com/wricardo/mcp-training/dropmerge/transport/mcp"
	"github.com/wricardo/mcp-training/dropmerge/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Drop Merge Game Server"
)

const (
	sessionMaxAge        = 24 * time.Hour
	sessionCleanupPeriod = time.Hour
	filesystemSyncPeriod = 5 * time.Second
	shutdownTimeout      = 10 * time.Second
)

// settings holds the resolved command line and environment configuration
type settings struct {
	Host        string
	Port        int
	ConfigDir   string
	SessionDir  string
	ResultsDB   string
	LogLevel    string
	LogDev      bool
	APIURL      string
	WSEncoding  string
	NgrokAuth   string
	NgrokDomain string
	Ngrok       bool
}

func (s settings) addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "host", Value: "localhost", Usage: "HTTP server host", Sources: cli.EnvVars("HOST")},
		&cli.IntFlag{Name: "port", Value: 8080, Usage: "HTTP server port", Sources: cli.EnvVars("PORT")},
		&cli.StringFlag{Name: "config-dir", Value: "configs", Usage: "Directory containing game configurations", Sources: cli.EnvVars("CONFIG_DIR")},
		&cli.StringFlag{Name: "session-dir", Value: "sessions", Usage: "Directory for persisted sessions", Sources: cli.EnvVars("SESSION_DIR")},
		&cli.StringFlag{Name: "results-db", Value: "results.db", Usage: "SQLite file for finished games (empty disables the leaderboard)", Sources: cli.EnvVars("RESULTS_DB")},
		&cli.StringFlag{Name: "log-level", Value: "info", Usage: "debug, info, warn or error", Sources: cli.EnvVars("LOG_LEVEL")},
		&cli.BoolFlag{Name: "log-dev", Usage: "Human readable development logging", Sources: cli.EnvVars("LOG_DEV")},
		&cli.StringFlag{Name: "ws-encoding", Value: "json", Usage: "Default websocket encoding: json or msgpack", Sources: cli.EnvVars("WS_ENCODING")},
	}
}

func serverFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{Name: "ngrok", Usage: "Enable ngrok tunnel", Sources: cli.EnvVars("NGROK_ENABLED")},
		&cli.StringFlag{Name: "ngrok-auth", Usage: "Ngrok auth token", Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN")},
		&cli.StringFlag{Name: "ngrok-domain", Usage: "Custom ngrok domain (optional)", Sources: cli.EnvVars("NGROK_DOMAIN")},
	}
}

// newApp builds the command tree
func newApp() *cli.Command {
	return &cli.Command{
		Name:    "dropmerge",
		Usage:   AppName,
		Version: Version,
		Flags:   append(globalFlags(), serverFlags()...),
		Action:  runServer,
		Commands: []*cli.Command{
			{
				Name:    "server",
				Aliases: []string{"http"},
				Usage:   "Run HTTP server with API, WebSocket, and MCP endpoint (default)",
				Action:  runServer,
			},
			{
				Name:    "stdio-mcp",
				Aliases: []string{"mcp-stdio", "mcp"},
				Usage:   "Run MCP stdio server, starting an internal HTTP API when none is reachable",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "api-url", Usage: "Existing API to drive (default: probe localhost on --port)", Sources: cli.EnvVars("API_URL")},
				},
				Action: runStdioMCP,
			},
		},
	}
}

func settingsFromCommand(cmd *cli.Command) settings {
	return settings{
		Host:        cmd.String("host"),
		Port:        cmd.Int("port"),
		ConfigDir:   cmd.String("config-dir"),
		SessionDir:  cmd.String("session-dir"),
		ResultsDB:   cmd.String("results-db"),
		LogLevel:    cmd.String("log-level"),
		LogDev:      cmd.Bool("log-dev"),
		APIURL:      cmd.String("api-url"),
		WSEncoding:  cmd.String("ws-encoding"),
		NgrokAuth:   cmd.String("ngrok-auth"),
		NgrokDomain: cmd.String("ngrok-domain"),
		Ngrok:       cmd.Bool("ngrok"),
	}
}

// main loads .env, parses flags and runs the selected mode until a signal arrives.
func main() {
	envErr := godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if envErr != nil && !os.IsNotExist(envErr) {
		fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", envErr)
	}

	if err := newApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", AppName, err)
		os.Exit(1)
	}
}

// services groups everything initializeServices wires together
type services struct {
	game        service.GameService
	sessions    *session.Manager
	persistence session.SessionPersistence
	hub         *websocket.Hub
	store       *results.SQLiteStore
}

func (s *services) Close() error {
	if s.sessions != nil {
		if err := s.sessions.SaveAllSessions(); err != nil {
			return err
		}
	}
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

// initializeServices wires config, session and results storage, the websocket
// hub and the game service. Nothing is started.
func initializeServices(cfg settings, logger *zap.Logger) (*services, error) {
	configManager, err := config.NewManager(cfg.ConfigDir, config.WithLogger(logger.Named("config")))
	if err != nil {
		return nil, fmt.Errorf("failed to create config manager: %w", err)
	}

	persistence, err := session.NewFilePersistence(cfg.SessionDir, configManager)
	if err != nil {
		return nil, fmt.Errorf("failed to create session persistence: %w", err)
	}

	sessionManager := session.NewManagerWithPersistence(persistence, session.WithLogger(logger.Named("session")))
	if err := sessionManager.LoadPersistedSessions(); err != nil {
		logger.Warn("failed to load persisted sessions", zap.Error(err))
	}

	encoding, err := websocket.ParseEncoding(cfg.WSEncoding)
	if err != nil {
		return nil, err
	}
	hub := websocket.NewHub(
		websocket.WithLogger(logger.Named("websocket")),
		websocket.WithDefaultEncoding(encoding),
	)

	svc := &services{
		sessions:    sessionManager,
		persistence: persistence,
		hub:         hub,
	}

	opts := []service.Option{
		service.WithBroadcaster(hub),
		service.WithLogger(logger.Named("service")),
	}
	if cfg.ResultsDB != "" {
		store, err := results.NewSQLiteStore(cfg.ResultsDB, logger.Named("results"))
		if err != nil {
			return nil, fmt.Errorf("failed to open results store: %w", err)
		}
		svc.store = store
		opts = append(opts, service.WithResults(store))
	}

	svc.game = service.NewGameService(sessionManager, configManager, opts...)
	return svc, nil
}

// start launches the hub and the session maintenance routines; they stop with ctx
func (s *services) start(ctx context.Context, wg *sync.WaitGroup, logger *zap.Logger) {
	wg.Add(3)
	go func() {
		defer wg.Done()
		s.hub.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		sessionCleanupRoutine(ctx, s.sessions, sessionCleanupPeriod, logger)
	}()
	go func() {
		defer wg.Done()
		filesystemSyncRoutine(ctx, s.sessions, s.persistence, filesystemSyncPeriod, logger)
	}()
}

func setup(cmd *cli.Command, stderr bool) (settings, *zap.Logger, *services, error) {
	cfg := settingsFromCommand(cmd)
	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Development: cfg.LogDev, Stderr: stderr})
	if err != nil {
		return cfg, nil, nil, err
	}

	svc, err := initializeServices(cfg, logger)
	if err != nil {
		logger.Sync()
		return cfg, nil, nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	return cfg, logger, svc, nil
}

// runServer starts the HTTP server with REST API, WebSocket hub, and the /mcp endpoint.
// If ngrok is enabled it also provisions a public tunnel.
func runServer(ctx context.Context, cmd *cli.Command) error {
	cfg, logger, svc, err := setup(cmd, false)
	if err != nil {
		return err
	}
	defer logger.Sync()

	addr := cfg.addr()
	logger.Info("starting", zap.String("app", AppName), zap.String("version", Version), zap.String("mode", "server"))

	// The MCP tools call the REST API over loopback
	mcpClient := mcp.NewClient(fmt.Sprintf("http://%s", addr), mcp.WithLogger(logger.Named("mcp")))
	handler := api.NewServer(svc.game, svc.hub,
		api.WithLogger(logger.Named("api")),
		api.WithMCP(mcpClient.GetMCPServer()))

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	svc.start(ctx, &wg, logger)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening",
			zap.String("api", fmt.Sprintf("http://%s/api", addr)),
			zap.String("websocket", fmt.Sprintf("ws://%s/ws?session=<session_id>", addr)),
			zap.String("mcp", fmt.Sprintf("http://%s/mcp", addr)))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	if cfg.Ngrok {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrok(ctx, cfg, handler, logger.Named("ngrok"))
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			cancel()
			wg.Wait()
			svc.Close()
			return fmt.Errorf("HTTP server failed: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown error", zap.Error(err))
	}

	cancel()
	wg.Wait()
	if err := svc.Close(); err != nil {
		logger.Warn("failed to close services", zap.Error(err))
	}
	logger.Info("server stopped")
	return nil
}

// runNgrok serves handler through an ngrok tunnel until ctx is done
func runNgrok(ctx context.Context, cfg settings, handler http.Handler, logger *zap.Logger) {
	if cfg.NgrokAuth == "" {
		logger.Warn("ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN)")
		return
	}

	var tunnel ngrokConfig.Tunnel
	if cfg.NgrokDomain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(cfg.NgrokDomain))
		logger.Info("using custom ngrok domain", zap.String("domain", cfg.NgrokDomain))
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(cfg.NgrokAuth))
	if err != nil {
		logger.Error("failed to start ngrok tunnel", zap.Error(err))
		return
	}

	srv := &http.Server{Handler: handler}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	ngrokURL := tun.URL()
	logger.Info("ngrok tunnel established",
		zap.String("url", ngrokURL),
		zap.String("api", ngrokURL+"/api"),
		zap.String("mcp", ngrokURL+"/mcp"))

	if err := srv.Serve(tun); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn("ngrok server error", zap.Error(err))
	}
	logger.Info("ngrok tunnel closed")
}

// sessionCleanupRoutine periodically evicts sessions that have not been
// accessed within sessionMaxAge. Evicted sessions stay on disk.
func sessionCleanupRoutine(ctx context.Context, manager *session.Manager, period time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := manager.CleanupExpiredSessions(sessionMaxAge); removed > 0 {
				logger.Info("cleaned up expired sessions", zap.Int("count", removed))
			}
		}
	}
}

// filesystemSyncRoutine periodically drops in-memory sessions whose files
// were deleted out from under the server.
func filesystemSyncRoutine(ctx context.Context, manager *session.Manager, persistence session.SessionPersistence, period time.Duration, logger *zap.Logger) {
	if persistence == nil {
		return
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if pruned := syncWithFilesystem(manager, persistence, logger); pruned > 0 {
				logger.Info("filesystem sync pruned orphaned sessions", zap.Int("count", pruned))
			}
		}
	}
}

func syncWithFilesystem(manager *session.Manager, persistence session.SessionPersistence, logger *zap.Logger) int {
	pruned := 0
	for _, sess := range manager.List() {
		if persistence.Exists(sess.ID) {
			continue
		}
		if err := manager.DeleteFromMemory(sess.ID); err == nil {
			pruned++
			logger.Debug("pruned session from memory (file deleted)", zap.String("session_id", sess.ID))
		}
	}
	return pruned
}

// apiReachable reports whether baseURL answers the health check
func apiReachable(ctx context.Context, baseURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+"/api/health", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// runStdioMCP runs an MCP stdio server. It drives --api-url, or an API
// already listening on --port, and otherwise starts an internal HTTP API on a
// random loopback port. Logs go to stderr; stdout carries the protocol.
func runStdioMCP(ctx context.Context, cmd *cli.Command) error {
	cfg := settingsFromCommand(cmd)
	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Development: cfg.LogDev, Stderr: true})
	if err != nil {
		return err
	}
	defer logger.Sync()

	baseURL := cfg.APIURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://%s", cfg.addr())
	}

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	// background routines only exit once ctx is cancelled
	defer func() {
		cancel()
		wg.Wait()
	}()

	if apiReachable(ctx, baseURL) {
		logger.Info("using external API server", zap.String("url", baseURL))
	} else {
		logger.Info("no API server reachable, starting internal HTTP server", zap.String("probed", baseURL))

		svc, err := initializeServices(cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize services: %w", err)
		}

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}

		svc.start(ctx, &wg, logger)
		httpServer := &http.Server{Handler: api.NewServer(svc.game, svc.hub, api.WithLogger(logger.Named("api")))}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("internal HTTP server error", zap.Error(err))
			}
		}()
		defer func() {
			httpServer.Close()
			cancel()
			wg.Wait()
			if err := svc.Close(); err != nil {
				logger.Warn("failed to close services", zap.Error(err))
			}
		}()

		baseURL = fmt.Sprintf("http://%s", listener.Addr().String())
		logger.Info("internal HTTP server listening", zap.String("url", baseURL))
	}

	mcpClient := mcp.NewClient(baseURL, mcp.WithLogger(logger.Named("mcp")))
	logger.Info("MCP stdio server ready")

	stdio := server.NewStdioServer(mcpClient.GetMCPServer())
	if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}

package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/wricardo/mcp-training/dropmerge/game/engine"
	"github.com/wricardo/mcp-training/dropmerge/game/service"
)

// ServerVersion is reported to MCP clients
const ServerVersion = "1.0.0"

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
	logger     *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithLogger sets the client's logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a new MCP client that calls the REST API at baseURL
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Drop Merge",
		ServerVersion,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(`Drop Merge - MCP Interface

This is a thin client that proxies all requests to the REST API server.

GAME OBJECTIVE:
Drop numbered tiles into columns. Equal neighbours merge into their double and
merges chain. Score as much as possible before every column is full.

AVAILABLE TOOLS:
- create_session: Create a new game session
- list_sessions / get_session: Inspect sessions
- game_state: Board, next value, energy and score
- drop: Drop the next value into a column - requires intent explanation
- detonate: Spend energy to destroy a tile of value 32 or more
- reset_game: Start the session over
- move_history: View past actions
- list_configs: List board configurations
- leaderboard: Best finished games
- game_instructions: Full rules

NOTE: The 'intent' parameter on drop/detonate serves as rubber duck debugging - explain your reasoning!`),
	)

	c.registerTools()
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	sessionID := mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID"))

	// Session management
	c.mcpServer.AddTool(mcp.NewTool("create_session",
		mcp.WithDescription("Create a new game session with optional config selection"),
		mcp.WithString("config_id", mcp.Description("ID of the config to use (optional, see list_configs)")),
	), c.handleCreateSession)

	c.mcpServer.AddTool(mcp.NewTool("list_sessions",
		mcp.WithDescription("List all active game sessions"),
	), c.handleListSessions)

	c.mcpServer.AddTool(mcp.NewTool("get_session",
		mcp.WithDescription("Get details of a specific session"),
		sessionID,
	), c.handleGetSession)

	// Game operations
	c.mcpServer.AddTool(mcp.NewTool("game_state",
		mcp.WithDescription("Get the current game state"),
		sessionID,
	), c.handleGameState)

	c.mcpServer.AddTool(mcp.NewTool("drop",
		mcp.WithDescription("Drop the next value into a column. The tile falls to the lowest empty cell and merges resolve."),
		sessionID,
		mcp.WithNumber("column", mcp.Required(), mcp.Description("Column index, 0 is the leftmost column")),
		mcp.WithString("intent", mcp.Description("Brief explanation of the intent behind this drop (serves as a rubber duck to help explain your reasoning)")),
	), c.handleDrop)

	c.mcpServer.AddTool(mcp.NewTool("detonate",
		mcp.WithDescription("Spend the destroy cost in energy to remove a tile of value 32 or more; tiles above fall and merge"),
		sessionID,
		mcp.WithNumber("x", mcp.Required(), mcp.Description("Column of the tile (0-based)")),
		mcp.WithNumber("y", mcp.Required(), mcp.Description("Row of the tile, 0 is the bottom row")),
		mcp.WithString("intent", mcp.Description("Brief explanation of the intent behind this detonation")),
	), c.handleDetonate)

	c.mcpServer.AddTool(mcp.NewTool("reset_game",
		mcp.WithDescription("Reset the game to an empty board"),
		sessionID,
	), c.handleReset)

	c.mcpServer.AddTool(mcp.NewTool("move_history",
		mcp.WithDescription("Get action history for a session"),
		sessionID,
		mcp.WithNumber("page", mcp.Description("Page number")),
		mcp.WithNumber("limit", mcp.Description("Items per page")),
		mcp.WithString("order", mcp.Enum("asc", "desc"), mcp.Description("Oldest or newest first")),
	), c.handleMoveHistory)

	// Configuration and results
	c.mcpServer.AddTool(mcp.NewTool("list_configs",
		mcp.WithDescription("List available game configurations"),
	), c.handleListConfigs)

	c.mcpServer.AddTool(mcp.NewTool("leaderboard",
		mcp.WithDescription("Best finished games, optionally for one configuration"),
		mcp.WithString("config", mcp.Description("Config ID to filter by (optional)")),
		mcp.WithNumber("limit", mcp.Description("Number of results")),
	), c.handleLeaderboard)

	c.mcpServer.AddTool(mcp.NewTool("game_instructions",
		mcp.WithDescription("Get comprehensive game instructions and rules"),
	), c.handleGameInstructions)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// apiError carries the REST API's error message
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("API error: %d", e.Status)
}

func (c *Client) apiCall(ctx context.Context, method, path string, body any, result any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("api call failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		return &apiError{Status: resp.StatusCode, Message: errResp["error"]}
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

func sessionPath(sessionID, suffix string) string {
	return "/api/sessions/" + url.PathEscape(sessionID) + suffix
}

// Tool handlers

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	body := map[string]string{}
	if configID := request.GetString("config_id", ""); configID != "" {
		body["config_id"] = configID
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions", body, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Created session: %s\nConfig: %s\n\n%s",
		session.ID, session.ConfigName, formatGameState(session.GameState))), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                    `json:"count"`
		Sessions []*service.SessionInfo `json:"sessions"`
	}
	if err := c.apiCall(ctx, "GET", "/api/sessions", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Active sessions: %d\n\n", response.Count)
	for _, s := range response.Sessions {
		score, over := 0, false
		if s.GameState != nil {
			score, over = s.GameState.Score, s.GameState.GameOver
		}
		status := "playing"
		if over {
			status = "game over"
		}
		fmt.Fprintf(&b, "• %s (%s) score %d, %s\n", s.ID, s.ConfigName, score, status)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, ""), nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSessionInfo(&session)), nil
}

func (c *Client) handleGameState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var state engine.GameState
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, "/state"), nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatGameState(&state)), nil
}

func (c *Client) handleDrop(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	column, err := request.RequireInt("column")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	c.logger.Debug("drop", zap.String("session_id", sessionID), zap.Int("column", column),
		zap.String("intent", request.GetString("intent", "")))

	var result service.ActionResult
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/drop"), map[string]int{"column": column}, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatActionResult(&result)), nil
}

func (c *Client) handleDetonate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	x, err := request.RequireInt("x")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	y, err := request.RequireInt("y")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	c.logger.Debug("detonate", zap.String("session_id", sessionID), zap.Int("x", x), zap.Int("y", y),
		zap.String("intent", request.GetString("intent", "")))

	var result service.ActionResult
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/detonate"), map[string]int{"x": x, "y": y}, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatActionResult(&result)), nil
}

func (c *Client) handleReset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var response struct {
		Message string            `json:"message"`
		State   *engine.GameState `json:"state"`
	}
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/reset"), nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("%s\n\n%s", response.Message, formatGameState(response.State))), nil
}

func (c *Client) handleMoveHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	params := url.Values{}
	if page := request.GetInt("page", 0); page > 0 {
		params.Set("page", strconv.Itoa(page))
	}
	if limit := request.GetInt("limit", 0); limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	if order := request.GetString("order", ""); order != "" {
		params.Set("order", order)
	}
	path := sessionPath(sessionID, "/history")
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var history service.HistoryResponse
	if err := c.apiCall(ctx, "GET", path, nil, &history); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatHistory(&history)), nil
}

func (c *Client) handleListConfigs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var configs []service.ConfigInfo
	if err := c.apiCall(ctx, "GET", "/api/configs", nil, &configs); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	b.WriteString("Available Configurations:\n\n")
	for _, config := range configs {
		fmt.Fprintf(&b, "• %s (id: %s)\n  %s\n  Board: %dx%d, Destroy cost: %.1f\n\n",
			config.Name, config.ConfigID, config.Description, config.Width, config.Height, config.DestroyCost)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleLeaderboard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := url.Values{}
	if config := request.GetString("config", ""); config != "" {
		params.Set("config", config)
	}
	if limit := request.GetInt("limit", 0); limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/leaderboard"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var board service.Leaderboard
	if err := c.apiCall(ctx, "GET", path, nil, &board); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatLeaderboard(&board)), nil
}

func (c *Client) handleGameInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(gameInstructions), nil
}

const gameInstructions = `DROP MERGE - RULES

BOARD
- A grid of columns. Row 0 is the bottom row; y grows upward.
- Cells hold 0 (empty) or a power of two (2, 4, 8, ...).

DROPPING
- Every turn shows the next value (2, 4, 8 or 16; small values are likelier).
- drop puts it in the lowest empty cell of a column. A full column rejects the drop.

MERGING
- The dropped tile is the active tile. It merges with an equal neighbour,
  checking below first, then left, then right. The pair becomes one tile of
  double value at the active tile's position and the neighbour cell empties.
- Tiles fall after every merge and the merged tile keeps merging, so one drop
  can chain several merges. When the active tile is stuck, the whole board is
  scanned for any remaining equal neighbours.
- Chain score = sum of the merged values of one drop. It is added to your score.

ENERGY
- Every merge charges energy by level²/4, where level = log2 of the merged value.
  Energy is capped at 100.
- detonate spends the destroy cost (default 33.3) to remove a tile of value 32
  or more. The detonation scores value x level². Tiles above fall and merge.

GAME OVER
- The game ends when no column can take a tile and no detonation is possible.

STRATEGY TIPS
- Keep big tiles low and in a corner so merges chain into them.
- Save energy to blow up a blocking large tile when the board fills.
`

// Formatting helpers

func formatSessionInfo(session *service.SessionInfo) string {
	return fmt.Sprintf("Session: %s\nConfig: %s\nCreated: %s\n\n%s",
		session.ID, session.ConfigName,
		session.CreatedAt.Format("2006-01-02 15:04:05"),
		formatGameState(session.GameState))
}

func formatGameState(state *engine.GameState) string {
	if state == nil {
		return "No game state available"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Score: %d | Next: %d | Energy: %.1f/%.0f (tier %d) | Moves: %d\n\n",
		state.Score, state.NextValue, state.Energy, engine.MaxEnergy, state.GaugeTier, state.TotalMoves)

	b.WriteString(engine.RenderGrid(state.Grid))

	if state.CanDestroy {
		fmt.Fprintf(&b, "\nDetonation available (cost %.1f)", state.DestroyCost)
	}
	if state.GameOver {
		fmt.Fprintf(&b, "\n💀 GAME OVER - final score %d, highest tile %d", state.Score, state.HighestTile)
	}
	if state.Message != "" {
		fmt.Fprintf(&b, "\nMessage: %s", state.Message)
	}
	return b.String()
}

func formatActionResult(result *service.ActionResult) string {
	var b strings.Builder

	if !result.Success {
		fmt.Fprintf(&b, "❌ %s\n\n", result.Message)
	} else if out := result.Outcome; out != nil {
		if out.DestroyScore > 0 {
			fmt.Fprintf(&b, "✓ Detonated (%d,%d) for %d points\n", out.Origin.X, out.Origin.Y, out.DestroyScore)
		} else {
			fmt.Fprintf(&b, "✓ Dropped %d at (%d,%d)\n", out.Value, out.Origin.X, out.Origin.Y)
		}
		for _, m := range out.Merges {
			fmt.Fprintf(&b, "  merge %s -> %d at (%d,%d)\n", m.Direction, m.Value, m.At.X, m.At.Y)
		}
		fmt.Fprintf(&b, "Chain: %d | Energy: %.1f -> %.1f\n\n", out.ChainScore, out.EnergyBefore, out.EnergyAfter)
	}

	b.WriteString(formatGameState(result.GameState))

	if len(result.PossibleDrops) > 0 {
		fmt.Fprintf(&b, "\nOpen columns: %v", result.PossibleDrops)
	}
	if len(result.DetonationTargets) > 0 {
		targets := make([]string, 0, len(result.DetonationTargets))
		for _, t := range result.DetonationTargets {
			targets = append(targets, fmt.Sprintf("(%d,%d)=%d", t.X, t.Y, t.Value))
		}
		fmt.Fprintf(&b, "\nDetonation targets: %s", strings.Join(targets, " "))
	}
	return b.String()
}

func formatHistory(history *service.HistoryResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Move History (Page %d/%d) - Total: %d\n\n",
		history.Page, history.TotalPages, history.TotalMoves)

	for _, move := range history.Moves {
		status := "✓"
		if !move.Success {
			status = "✗"
		}
		fmt.Fprintf(&b, "%d. %s %s (%d,%d) value %d chain %d [Score: %d, Energy: %.1f]\n",
			move.MoveNumber, move.Action, status, move.Target.X, move.Target.Y,
			move.Value, move.ChainScore, move.Score, move.Energy)
	}
	return b.String()
}

func formatLeaderboard(board *service.Leaderboard) string {
	title := "all configs"
	if board.ConfigName != "" {
		title = board.ConfigName
	}
	if len(board.Results) == 0 {
		return fmt.Sprintf("Leaderboard (%s): no finished games yet", title)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Leaderboard (%s)\n\n", title)
	for i, r := range board.Results {
		fmt.Fprintf(&b, "%d. %d points, highest %d, %d moves (session %s, %s)\n",
			i+1, r.Score, r.HighestTile, r.Moves, r.SessionID, r.ConfigName)
	}
	return b.String()
}

package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap/zaptest"

	"github.com/wricardo/mcp-training/dropmerge/game/engine"
	"github.com/wricardo/mcp-training/dropmerge/game/results"
	"github.com/wricardo/mcp-training/dropmerge/game/service"
)

// fakeAPI records requests and answers with canned JSON per "METHOD path"
type fakeAPI struct {
	mu        sync.Mutex
	responses map[string]any
	requests  []string
	bodies    []map[string]any
}

func newFakeAPI(t *testing.T, responses map[string]any) (*fakeAPI, *httptest.Server) {
	t.Helper()
	f := &fakeAPI{responses: responses}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path
	if r.URL.RawQuery != "" {
		key += "?" + r.URL.RawQuery
	}

	var body map[string]any
	json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	f.requests = append(f.requests, key)
	f.bodies = append(f.bodies, body)
	resp, ok := f.responses[key]
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "session not found: " + key})
		return
	}
	json.NewEncoder(w).Encode(resp)
}

func (f *fakeAPI) last() (string, map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return "", nil
	}
	return f.requests[len(f.requests)-1], f.bodies[len(f.bodies)-1]
}

func callTool(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil || len(result.Content) == 0 {
		t.Fatal("Expected tool result content")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("Expected text content, got %T", result.Content[0])
	}
	return text.Text
}

func sampleState() *engine.GameState {
	state := engine.InitGameStateFromConfig(engine.DefaultConfig())
	state.Grid[0][0] = 64
	state.Grid[0][1] = 2
	state.NextValue = 4
	state.Score = 120
	state.Energy = 40
	state.DestroyCost = engine.DefaultDestroyCost
	state.CanDestroy = true
	return state
}

func TestNewClient(t *testing.T) {
	client := NewClient("http://localhost:8080/", WithLogger(zaptest.NewLogger(t)))

	if client.baseURL != "http://localhost:8080" {
		t.Errorf("Expected trailing slash trimmed, got %s", client.baseURL)
	}
	if client.httpClient == nil {
		t.Error("Expected HTTP client to be initialized")
	}
	if client.GetMCPServer() == nil {
		t.Error("Expected MCP server to be initialized")
	}

	custom := &http.Client{Timeout: time.Second}
	if NewClient("http://x", WithHTTPClient(custom)).httpClient != custom {
		t.Error("Expected custom HTTP client")
	}
}

func TestToolsList(t *testing.T) {
	client := NewClient("http://localhost:8080")

	response := client.GetMCPServer().HandleMessage(context.Background(),
		[]byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	data, err := json.Marshal(response)
	if err != nil {
		t.Fatalf("Failed to marshal response: %v", err)
	}

	for _, tool := range []string{
		"create_session", "list_sessions", "get_session", "game_state", "drop",
		"detonate", "reset_game", "move_history", "list_configs", "leaderboard", "game_instructions",
	} {
		if !strings.Contains(string(data), `"`+tool+`"`) {
			t.Errorf("Expected tool %s in tools/list", tool)
		}
	}
}

func TestClient_apiCall(t *testing.T) {
	api, srv := newFakeAPI(t, map[string]any{
		"GET /api/sessions/ab12/state": sampleState(),
	})
	client := NewClient(srv.URL)

	var state engine.GameState
	if err := client.apiCall(context.Background(), "GET", sessionPath("ab12", "/state"), nil, &state); err != nil {
		t.Fatalf("apiCall failed: %v", err)
	}
	if state.Score != 120 || state.Grid[0][0] != 64 {
		t.Errorf("Unexpected state %+v", state)
	}

	err := client.apiCall(context.Background(), "GET", "/api/missing", nil, nil)
	apiErr, ok := err.(*apiError)
	if !ok {
		t.Fatalf("Expected *apiError, got %T %v", err, err)
	}
	if apiErr.Status != http.StatusNotFound || !strings.Contains(apiErr.Error(), "session not found") {
		t.Errorf("Unexpected error %+v", apiErr)
	}

	if key, _ := api.last(); key != "GET /api/missing" {
		t.Errorf("Expected last request GET /api/missing, got %s", key)
	}
}

func TestClient_apiCall_Unreachable(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", WithHTTPClient(&http.Client{Timeout: time.Second}))

	if err := client.apiCall(context.Background(), "GET", "/api/health", nil, nil); err == nil {
		t.Error("Expected error for unreachable API")
	}
}

func TestDropTool(t *testing.T) {
	action := &service.ActionResult{
		Success: true,
		Outcome: &engine.Outcome{
			Placed:     true,
			Origin:     engine.Coordinate{X: 1, Y: 0},
			Value:      2,
			ChainScore: 4,
			Merges: []engine.Merge{{
				At:        engine.Coordinate{X: 1, Y: 0},
				Cleared:   engine.Coordinate{X: 1, Y: 1},
				Direction: engine.MergeDown,
				Value:     4,
			}},
			EnergyBefore: 39,
			EnergyAfter:  40,
		},
		GameState:     sampleState(),
		PossibleDrops: []int{0, 1, 2, 3},
		DetonationTargets: []engine.DetonationTarget{
			{X: 0, Y: 0, Value: 64, Score: 2304},
		},
	}
	api, srv := newFakeAPI(t, map[string]any{
		"POST /api/sessions/ab12/drop": action,
	})
	client := NewClient(srv.URL)

	result, err := client.handleDrop(context.Background(), callTool("drop", map[string]any{
		"session_id": "ab12",
		"column":     float64(1),
		"intent":     "merge the twos",
	}))
	if err != nil {
		t.Fatalf("handleDrop returned error: %v", err)
	}
	if result.IsError {
		t.Fatalf("Unexpected tool error: %s", resultText(t, result))
	}

	_, body := api.last()
	if body["column"] != float64(1) {
		t.Errorf("Expected column 1 in request body, got %v", body["column"])
	}

	text := resultText(t, result)
	for _, want := range []string{"Dropped 2 at (1,0)", "merge down -> 4", "Chain: 4", "Open columns: [0 1 2 3]", "(0,0)=64", "Score: 120"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in output:\n%s", want, text)
		}
	}
}

func TestDropToolValidation(t *testing.T) {
	_, srv := newFakeAPI(t, nil)
	client := NewClient(srv.URL)

	tests := []struct {
		name string
		args map[string]any
	}{
		{"missing session", map[string]any{"column": float64(0)}},
		{"missing column", map[string]any{"session_id": "ab12"}},
		{"unknown session", map[string]any{"session_id": "zz99", "column": float64(0)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := client.handleDrop(context.Background(), callTool("drop", tt.args))
			if err != nil {
				t.Fatalf("Handlers report failures as tool errors, got %v", err)
			}
			if !result.IsError {
				t.Error("Expected tool error result")
			}
		})
	}
}

func TestRejectedDrop(t *testing.T) {
	state := sampleState()
	_, srv := newFakeAPI(t, map[string]any{
		"POST /api/sessions/ab12/drop": &service.ActionResult{
			Success:   false,
			Message:   "Column 0 is full",
			GameState: state,
		},
	})
	client := NewClient(srv.URL)

	result, _ := client.handleDrop(context.Background(), callTool("drop", map[string]any{
		"session_id": "ab12", "column": float64(0),
	}))
	if result.IsError {
		t.Error("A rejected drop is a normal result, not a tool error")
	}
	if text := resultText(t, result); !strings.Contains(text, "❌ Column 0 is full") {
		t.Errorf("Expected rejection message, got:\n%s", text)
	}
}

func TestDetonateTool(t *testing.T) {
	api, srv := newFakeAPI(t, map[string]any{
		"POST /api/sessions/ab12/detonate": &service.ActionResult{
			Success: true,
			Outcome: &engine.Outcome{
				Origin:       engine.Coordinate{X: 0, Y: 0},
				DestroyScore: 2304,
				EnergyBefore: 40,
				EnergyAfter:  6.7,
			},
			GameState: sampleState(),
		},
	})
	client := NewClient(srv.URL)

	result, _ := client.handleDetonate(context.Background(), callTool("detonate", map[string]any{
		"session_id": "ab12", "x": float64(0), "y": float64(0),
	}))
	if result.IsError {
		t.Fatalf("Unexpected tool error: %s", resultText(t, result))
	}

	_, body := api.last()
	if body["x"] != float64(0) || body["y"] != float64(0) {
		t.Errorf("Unexpected request body %v", body)
	}
	if text := resultText(t, result); !strings.Contains(text, "Detonated (0,0) for 2304 points") {
		t.Errorf("Unexpected output:\n%s", text)
	}
}

func TestSessionTools(t *testing.T) {
	info := &service.SessionInfo{
		ID:         "ab12",
		ConfigName: "classic",
		CreatedAt:  time.Now(),
		GameState:  sampleState(),
	}
	api, srv := newFakeAPI(t, map[string]any{
		"POST /api/sessions":            info,
		"GET /api/sessions/ab12":        info,
		"GET /api/sessions":             map[string]any{"count": 1, "sessions": []*service.SessionInfo{info}},
		"POST /api/sessions/ab12/reset": map[string]any{"message": "Game reset successfully", "state": engine.InitGameStateFromConfig(nil)},
	})
	client := NewClient(srv.URL)
	ctx := context.Background()

	t.Run("create_session", func(t *testing.T) {
		result, _ := client.handleCreateSession(ctx, callTool("create_session", map[string]any{"config_id": "classic"}))
		if text := resultText(t, result); !strings.Contains(text, "Created session: ab12") {
			t.Errorf("Unexpected output:\n%s", text)
		}
		if _, body := api.last(); body["config_id"] != "classic" {
			t.Errorf("Expected config_id in body, got %v", body)
		}
	})

	t.Run("get_session", func(t *testing.T) {
		result, _ := client.handleGetSession(ctx, callTool("get_session", map[string]any{"session_id": "ab12"}))
		if text := resultText(t, result); !strings.Contains(text, "Session: ab12") || !strings.Contains(text, "Next: 4") {
			t.Errorf("Unexpected output:\n%s", text)
		}
	})

	t.Run("list_sessions", func(t *testing.T) {
		result, _ := client.handleListSessions(ctx, callTool("list_sessions", nil))
		if text := resultText(t, result); !strings.Contains(text, "ab12 (classic) score 120, playing") {
			t.Errorf("Unexpected output:\n%s", text)
		}
	})

	t.Run("reset_game", func(t *testing.T) {
		result, _ := client.handleReset(ctx, callTool("reset_game", map[string]any{"session_id": "ab12"}))
		if text := resultText(t, result); !strings.Contains(text, "Game reset successfully") {
			t.Errorf("Unexpected output:\n%s", text)
		}
	})
}

func TestMoveHistoryTool(t *testing.T) {
	api, srv := newFakeAPI(t, map[string]any{
		"GET /api/sessions/ab12/history?limit=5&order=asc&page=2": &service.HistoryResponse{
			Moves: []engine.MoveHistoryEntry{
				{Action: engine.ActionDrop, Target: engine.Coordinate{X: 2, Y: 0}, Value: 4, Score: 8, Success: true, MoveNumber: 6},
			},
			TotalMoves: 6,
			Page:       2,
			PageSize:   5,
			TotalPages: 2,
		},
	})
	client := NewClient(srv.URL)

	result, _ := client.handleMoveHistory(context.Background(), callTool("move_history", map[string]any{
		"session_id": "ab12", "page": float64(2), "limit": float64(5), "order": "asc",
	}))
	if result.IsError {
		key, _ := api.last()
		t.Fatalf("Unexpected tool error for %s: %s", key, resultText(t, result))
	}
	text := resultText(t, result)
	if !strings.Contains(text, "Page 2/2") || !strings.Contains(text, "6. drop ✓ (2,0) value 4") {
		t.Errorf("Unexpected output:\n%s", text)
	}
}

func TestConfigAndLeaderboardTools(t *testing.T) {
	_, srv := newFakeAPI(t, map[string]any{
		"GET /api/configs": []service.ConfigInfo{
			{ConfigID: "classic", Name: "classic", Description: "Classic 4x4 board", Width: 4, Height: 4, DestroyCost: 33.3},
		},
		"GET /api/leaderboard?config=classic&limit=3": &service.Leaderboard{
			ConfigName: "classic",
			Results: []*results.Result{
				{SessionID: "ab12", ConfigName: "classic", Score: 900, HighestTile: 128, Moves: 40},
			},
		},
		"GET /api/leaderboard": &service.Leaderboard{Results: []*results.Result{}},
	})
	client := NewClient(srv.URL)
	ctx := context.Background()

	result, _ := client.handleListConfigs(ctx, callTool("list_configs", nil))
	if text := resultText(t, result); !strings.Contains(text, "Board: 4x4, Destroy cost: 33.3") {
		t.Errorf("Unexpected configs output:\n%s", text)
	}

	result, _ = client.handleLeaderboard(ctx, callTool("leaderboard", map[string]any{"config": "classic", "limit": float64(3)}))
	if text := resultText(t, result); !strings.Contains(text, "1. 900 points, highest 128, 40 moves") {
		t.Errorf("Unexpected leaderboard output:\n%s", text)
	}

	result, _ = client.handleLeaderboard(ctx, callTool("leaderboard", nil))
	if text := resultText(t, result); !strings.Contains(text, "no finished games yet") {
		t.Errorf("Unexpected empty leaderboard output:\n%s", text)
	}
}

func TestGameInstructions(t *testing.T) {
	client := NewClient("http://localhost:8080")
	result, err := client.handleGameInstructions(context.Background(), callTool("game_instructions", nil))
	if err != nil {
		t.Fatal(err)
	}
	text := resultText(t, result)
	for _, want := range []string{"below first, then left, then right", "level²/4", "value x level²"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected instructions to mention %q", want)
		}
	}
}

func TestFormatGameState(t *testing.T) {
	if got := formatGameState(nil); got != "No game state available" {
		t.Errorf("Unexpected nil output %q", got)
	}

	state := sampleState()
	state.GameOver = true
	state.HighestTile = 64
	text := formatGameState(state)

	lines := strings.Split(text, "\n")
	// Header, blank line, then the top row first and the ground row last
	if len(lines) < 6 || !strings.HasPrefix(strings.TrimSpace(lines[5]), "64") {
		t.Errorf("Expected the ground row last in the grid:\n%s", text)
	}
	if !strings.Contains(text, "GAME OVER - final score 120, highest tile 64") {
		t.Errorf("Expected game over line:\n%s", text)
	}
	if !strings.Contains(text, "Detonation available (cost 33.3)") {
		t.Errorf("Expected detonation hint:\n%s", text)
	}
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wricardo/mcp-training/dropmerge/game/engine"
	"github.com/wricardo/mcp-training/dropmerge/game/service"
)

// localView reads the policy view straight off the engine's board
func localView(eng *engine.GameEngine) View {
	b := eng.Board()
	return View{
		Grid:        b.Cells(),
		Width:       b.Width(),
		Height:      b.Height(),
		NextValue:   eng.GetNextValue(),
		CanDetonate: b.CanDestroy(),
	}
}

// playLocal plays one seeded game in process
func playLocal(ctx context.Context, config *engine.GameConfig, policy Policy, seed uint64, maxMoves int) (GameResult, error) {
	eng, err := engine.NewEngine(config, engine.WithRandomSource(engine.NewSeededSource(seed)))
	if err != nil {
		return GameResult{}, err
	}

	var result GameResult
	for !eng.IsGameOver() && result.Moves < maxMoves {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		action, ok := policy.Choose(localView(eng))
		if !ok {
			break
		}

		if action.Detonate {
			_, err = eng.Detonate(action.X, action.Y)
			if err == nil {
				result.Detonations++
			}
		} else {
			_, err = eng.Drop(action.Column)
		}
		if err != nil && !isRejection(err) {
			return result, fmt.Errorf("move %d (%s): %w", result.Moves+1, action, err)
		}
		result.Moves++
	}

	result.Score = eng.GetScore()
	result.HighestTile = eng.Board().HighestTile()
	result.GameOver = eng.IsGameOver()
	return result, nil
}

// isRejection reports whether err is a move the rules refused
func isRejection(err error) bool {
	return errors.Is(err, engine.ErrColumnFull) ||
		errors.Is(err, engine.ErrNotDestroyable) ||
		errors.Is(err, engine.ErrNotEnoughEnergy)
}

// remoteClient drives a running game server through its REST API
type remoteClient struct {
	baseURL string
	client  *http.Client
}

func newRemoteClient(baseURL string) *remoteClient {
	return &remoteClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *remoteClient) call(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s failed: %s - %s", method, path, resp.Status, strings.TrimSpace(string(data)))
	}
	if result == nil {
		return nil
	}
	return json.Unmarshal(data, result)
}

func (c *remoteClient) createSession(ctx context.Context, configID string) (*service.SessionInfo, error) {
	var session service.SessionInfo
	err := c.call(ctx, http.MethodPost, "/api/sessions", map[string]string{"config_id": configID}, &session)
	return &session, err
}

func (c *remoteClient) act(ctx context.Context, sessionID string, action Action) (*service.ActionResult, error) {
	var result service.ActionResult
	path := "/api/sessions/" + url.PathEscape(sessionID)
	var err error
	if action.Detonate {
		err = c.call(ctx, http.MethodPost, path+"/detonate", map[string]int{"x": action.X, "y": action.Y}, &result)
	} else {
		err = c.call(ctx, http.MethodPost, path+"/drop", map[string]int{"column": action.Column}, &result)
	}
	return &result, err
}

func (c *remoteClient) deleteSession(ctx context.Context, sessionID string) error {
	return c.call(ctx, http.MethodDelete, "/api/sessions/"+url.PathEscape(sessionID), nil, nil)
}

// playRemote plays one game on a fresh server session and deletes it afterwards
func (c *remoteClient) playRemote(ctx context.Context, configID string, policy Policy, maxMoves int) (GameResult, error) {
	session, err := c.createSession(ctx, configID)
	if err != nil {
		return GameResult{}, err
	}
	defer c.deleteSession(context.WithoutCancel(ctx), session.ID)

	state := session.GameState
	var result GameResult
	for state != nil && !state.GameOver && result.Moves < maxMoves {
		action, ok := policy.Choose(viewFromState(state))
		if !ok {
			break
		}
		res, err := c.act(ctx, session.ID, action)
		if err != nil {
			return result, fmt.Errorf("move %d (%s): %w", result.Moves+1, action, err)
		}
		if action.Detonate && res.Success {
			result.Detonations++
		}
		result.Moves++
		state = res.GameState
	}

	if state != nil {
		result.Score = state.Score
		result.HighestTile = state.HighestTile
		result.GameOver = state.GameOver
	}
	return result, nil
}

// Package mcp exposes the game to AI agents over the Model Context Protocol.
//
// Client is a thin proxy: every tool call becomes a REST request against the
// game server, and the JSON response is rendered as text for the agent.
//
// Tools:
//   - create_session, list_sessions, get_session
//   - game_state: board (top row first), next value, energy and score
//   - drop: drop the next value into a column
//   - detonate: destroy a tile of value 32 or more for energy
//   - reset_game, move_history
//   - list_configs, leaderboard, game_instructions
//
// A rejected drop or detonation (full column, not enough energy) is a normal
// result; REST failures such as an unknown session come back as tool errors.
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080", mcp.WithLogger(logger))
//
//	// Stdio mode
//	server.ServeStdio(client.GetMCPServer())
//
//	// HTTP mode, mounted by the api package at POST /mcp
//	api.NewServer(svc, hub, api.WithMCP(client.GetMCPServer()))
package mcp

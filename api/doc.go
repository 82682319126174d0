// Package api provides the HTTP REST API for the drop-merge game.
//
// Endpoints:
//
// Session Management:
//   - POST /api/sessions - Create new session ({"config_id": "tall"}, body optional)
//   - GET /api/sessions - List sessions (sort=created|accessed|score, order, limit)
//   - GET /api/sessions/{id} - Get specific session
//   - DELETE /api/sessions/{id} - Delete session
//
// Game Operations:
//   - GET /api/sessions/{id}/state - Current game state
//   - POST /api/sessions/{id}/drop - Drop the next value ({"column": 2})
//   - POST /api/sessions/{id}/detonate - Spend energy on a tile ({"x": 1, "y": 0})
//   - POST /api/sessions/{id}/reset - Start over
//   - GET /api/sessions/{id}/history - Move history (page, limit, order)
//
// Configuration and Results:
//   - GET /api/configs - List available configurations
//   - GET /api/configs/{name} - Full configuration
//   - GET /api/leaderboard - Best finished games (config, limit)
//
// Realtime and tooling:
//   - GET /ws?session={id}&encoding=json|msgpack - Live updates
//   - POST /mcp - JSON-RPC endpoint of the MCP tool server, when attached
//
// A move the rules refuse (full column, tile too small, not enough energy)
// is answered 200 with "success": false and the reason in "message". Errors
// are JSON objects with an "error" field:
//
//	404 unknown session, config or result
//	400 malformed body, missing field, coordinate off the board
//	409 the game is over
//	500 anything else
package api

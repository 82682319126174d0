// Package service provides the business logic layer for the drop-merge game server.
//
// The service package implements:
//   - Multi-session game management
//   - Drops, detonations and resets with structured results and events
//   - Move history pagination
//   - Recording finished games and serving the leaderboard
//
// Core Interfaces:
//
// GameService is the main service interface providing high-level game operations.
// SessionManager handles session creation, retrieval, and lifecycle.
// ConfigManager manages game configuration loading and validation.
// Broadcaster pushes state and events to connected clients.
//
// Architecture:
//
// The service layer sits between the transport layer (HTTP/WebSocket/MCP) and
// the game engine. Each session owns an engine that is not safe for concurrent
// use; the service holds the session lock for the whole of every action, so
// concurrent requests against one session are applied one after another while
// different sessions proceed in parallel.
//
// Usage:
//
//	store, _ := results.NewSQLiteStore("results.db", logger)
//	gameService := service.NewGameService(sessionMgr, configMgr,
//		service.WithLogger(logger),
//		service.WithResults(store),
//		service.WithBroadcaster(hub),
//	)
//
//	info, err := gameService.CreateSession(ctx, "classic")
//	if err != nil {
//		return err
//	}
//	result, err := gameService.DropTile(ctx, info.ID, 2)
//
// Rejected actions (a full column, a tile too small to detonate, too little
// energy) are not errors: they come back with Success false and are recorded
// in the move history as unsuccessful.
package service

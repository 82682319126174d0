// Package websocket pushes game updates to browser and bot clients.
//
// A Hub keeps the connected clients per session. Clients connect with
// /ws?session=ID and may add encoding=msgpack to receive binary MessagePack
// frames instead of JSON text frames. Every message has the shape
//
//	{session_id, event, game_state?, data?}
//
// where event is "state_update" for full state pushes or the service event
// type (drop, merge, energy, detonate, reset, game_over) with the event as
// data. JSON messages queued together are sent in one frame separated by
// newlines.
//
// The Hub satisfies service.Broadcaster:
//
//	hub := websocket.NewHub(websocket.WithLogger(logger))
//	go hub.Run(ctx)
//	svc := service.NewGameService(sessions, configs, service.WithBroadcaster(hub))
//
// Only the Run goroutine changes the client set; broadcasts are queued on a
// channel and encoded once per encoding.
package websocket

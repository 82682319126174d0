// Package session provides session management for the drop-merge game.
//
// The session package implements:
//   - Thread-safe session storage and retrieval
//   - Unique session ID generation
//   - Session lifecycle management
//   - Optional file persistence with lazy reload
//   - Session eviction after inactivity
//
// Manager owns the in-memory sessions. Each service.Session carries its own
// engine and a mutex; callers lock the session, never the manager, around
// engine calls.
//
// Session IDs are either supplied by the caller (letters, digits, '-' and
// '_') or generated as 4 hex characters from crypto/rand. Lookups are case
// insensitive.
//
// Usage:
//
//	persistence, err := session.NewFilePersistence("sessions", configManager)
//	manager := session.NewManagerWithPersistence(persistence, session.WithLogger(logger))
//
//	sess, err := manager.Create("", config)
//	sess, err = manager.Get(sess.ID)
//
// Evicted sessions stay on disk and are reloaded by the next Get.
package session

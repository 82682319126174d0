// Package results records finished games and serves the leaderboard.
//
// A Result is written once, when a session's game ends. SQLiteStore keeps
// them in a single SQLite table (pure Go driver, WAL journal) with indexes for
// per-configuration ranking and per-session bests:
//
//	store, err := results.NewSQLiteStore("results.db", logger)
//	if err != nil {
//		return err
//	}
//	defer store.Close()
//
//	top, err := store.Top(ctx, "classic", 10)
package results

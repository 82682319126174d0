package session

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/wricardo/mcp-training/dropmerge/game/engine"
)

func createTestConfig() *engine.GameConfig {
	return &engine.GameConfig{
		Name:         "Test Config",
		Description:  "Test configuration",
		Width:        4,
		Height:       5,
		DestroyCost:  engine.DefaultDestroyCost,
		SpawnWeights: engine.DefaultSpawnWeights(),
		Messages:     engine.DefaultMessages(),
	}
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(
		WithLogger(zaptest.NewLogger(t)),
		WithEngineOptions(engine.WithRandomSource(engine.NewSeededSource(3))),
	)
}

func TestManager_Create(t *testing.T) {
	manager := newTestManager(t)
	config := createTestConfig()

	t.Run("create with custom ID", func(t *testing.T) {
		session, err := manager.Create("test-session", config)
		if err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}
		if session.ID != "test-session" {
			t.Errorf("Expected session ID 'test-session', got '%s'", session.ID)
		}
		if session.Engine == nil {
			t.Fatal("Expected engine to be initialized")
		}
		if session.Engine.GetState().Height != 5 {
			t.Errorf("Expected engine built from config, got height %d", session.Engine.GetState().Height)
		}
	})

	t.Run("create with auto-generated ID", func(t *testing.T) {
		session, err := manager.Create("", config)
		if err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}
		if len(session.ID) != 4 {
			t.Errorf("Expected 4-character session ID, got %q", session.ID)
		}
	})

	t.Run("duplicate session ID", func(t *testing.T) {
		_, err := manager.Create("test-session", config)
		if !errors.Is(err, ErrSessionAlreadyExists) {
			t.Errorf("Expected ErrSessionAlreadyExists, got %v", err)
		}
	})

	t.Run("case-insensitive duplicate check", func(t *testing.T) {
		_, err := manager.Create("TEST-SESSION", config)
		if !errors.Is(err, ErrSessionAlreadyExists) {
			t.Errorf("Expected ErrSessionAlreadyExists for case variant, got %v", err)
		}
	})

	t.Run("invalid config", func(t *testing.T) {
		invalidConfig := createTestConfig()
		invalidConfig.Name = ""
		if _, err := manager.Create("invalid-test", invalidConfig); err == nil {
			t.Error("Expected error for invalid config")
		}
	})
}

func TestManager_Get(t *testing.T) {
	manager := newTestManager(t)
	created, _ := manager.Create("get-test", createTestConfig())

	t.Run("get existing session", func(t *testing.T) {
		session, err := manager.Get("get-test")
		if err != nil {
			t.Fatalf("Failed to get session: %v", err)
		}
		if session != created {
			t.Errorf("Expected the created session")
		}
	})

	t.Run("case-insensitive get", func(t *testing.T) {
		session, err := manager.Get("GET-TEST")
		if err != nil {
			t.Fatalf("Failed to get session with different case: %v", err)
		}
		if session != created {
			t.Errorf("Expected same session regardless of case")
		}
	})

	t.Run("get non-existent session", func(t *testing.T) {
		_, err := manager.Get("non-existent")
		if !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("Expected ErrSessionNotFound, got %v", err)
		}
	})
}

func TestManager_GetOrCreate(t *testing.T) {
	manager := newTestManager(t)
	config := createTestConfig()

	first, err := manager.GetOrCreate("new-session", config)
	if err != nil {
		t.Fatalf("Failed to get or create session: %v", err)
	}
	second, err := manager.GetOrCreate("new-session", config)
	if err != nil {
		t.Fatalf("Failed to get existing session: %v", err)
	}
	if first != second {
		t.Error("Expected the same session on second call")
	}
}

func TestManager_Delete(t *testing.T) {
	manager := newTestManager(t)
	config := createTestConfig()

	manager.Create("delete-test", config)

	t.Run("delete existing session", func(t *testing.T) {
		if err := manager.Delete("delete-test"); err != nil {
			t.Fatalf("Failed to delete session: %v", err)
		}
		if _, err := manager.Get("delete-test"); !errors.Is(err, ErrSessionNotFound) {
			t.Error("Expected session to be deleted")
		}
	})

	t.Run("delete non-existent session", func(t *testing.T) {
		if err := manager.Delete("non-existent"); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("Expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("case-insensitive delete", func(t *testing.T) {
		manager.Create("case-test", config)
		if err := manager.Delete("CASE-TEST"); err != nil {
			t.Fatalf("Failed to delete with different case: %v", err)
		}
		if _, err := manager.Get("case-test"); !errors.Is(err, ErrSessionNotFound) {
			t.Error("Expected session to be deleted regardless of case")
		}
	})

	t.Run("delete from memory", func(t *testing.T) {
		manager.Create("mem-test", config)
		if err := manager.DeleteFromMemory("mem-test"); err != nil {
			t.Fatalf("DeleteFromMemory failed: %v", err)
		}
		if err := manager.DeleteFromMemory("mem-test"); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("Expected ErrSessionNotFound, got %v", err)
		}
	})
}

func TestManager_List(t *testing.T) {
	manager := newTestManager(t)
	config := createTestConfig()

	ids := []string{"list-1", "list-2", "list-3"}
	for _, id := range ids {
		if _, err := manager.Create(id, config); err != nil {
			t.Fatal(err)
		}
	}

	sessions := manager.List()
	if len(sessions) != 3 || manager.Count() != 3 {
		t.Errorf("Expected 3 sessions, got %d", len(sessions))
	}

	found := make(map[string]bool)
	for _, s := range sessions {
		found[s.ID] = true
	}
	for _, id := range ids {
		if !found[id] {
			t.Errorf("Session %s not found in list", id)
		}
	}
}

func TestManager_CleanupExpired(t *testing.T) {
	manager := newTestManager(t)
	config := createTestConfig()

	active, _ := manager.Create("active", config)
	expired, _ := manager.Create("expired", config)

	// Simulate expired session
	expired.LastAccessedAt = time.Now().Add(-2 * time.Hour)
	active.LastAccessedAt = time.Now()

	deleted := manager.CleanupExpiredSessions(1 * time.Hour)
	if deleted != 1 {
		t.Errorf("Expected 1 session to be deleted, got %d", deleted)
	}

	if _, err := manager.Get("expired"); !errors.Is(err, ErrSessionNotFound) {
		t.Error("Expected expired session to be deleted")
	}
	if _, err := manager.Get("active"); err != nil {
		t.Error("Expected active session to still exist")
	}
}

func TestManager_UpdateLastAccessed(t *testing.T) {
	manager := newTestManager(t)

	session, _ := manager.Create("access-test", createTestConfig())
	originalTime := session.LastAccessedAt

	time.Sleep(10 * time.Millisecond)

	if err := manager.UpdateLastAccessed("ACCESS-TEST"); err != nil {
		t.Fatalf("Failed to update last accessed: %v", err)
	}
	if !session.LastAccessedAt.After(originalTime) {
		t.Error("Expected LastAccessedAt to be updated")
	}

	if err := manager.UpdateLastAccessed("missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestManager_Exists(t *testing.T) {
	manager := newTestManager(t)
	manager.Create("exists-test", createTestConfig())

	tests := []struct {
		id   string
		want bool
	}{
		{"exists-test", true},
		{"EXISTS-TEST", true},
		{"non-existent", false},
	}

	for _, tt := range tests {
		if got := manager.sessionExists(tt.id); got != tt.want {
			t.Errorf("sessionExists(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestManager_ConcurrentAccess(t *testing.T) {
	manager := newTestManager(t)
	config := createTestConfig()

	var wg sync.WaitGroup
	errs := make(chan error, 100)

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			// ids repeat so some creations collide
			sessionID := fmt.Sprintf("c%02d", id%40)
			if _, err := manager.Create(sessionID, config); err != nil && !errors.Is(err, ErrSessionAlreadyExists) {
				errs <- err
			}
			if _, err := manager.Get(sessionID); err != nil {
				errs <- err
			}
			manager.UpdateLastAccessed(sessionID)
		}(i)
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Unexpected error during concurrent access: %v", err)
	}
	if manager.Count() != 40 {
		t.Errorf("Expected 40 sessions, got %d", manager.Count())
	}
}

func TestManager_SessionIsolation(t *testing.T) {
	manager := newTestManager(t)
	config := createTestConfig()

	session1, _ := manager.Create("iso-1", config)
	session2, _ := manager.Create("iso-2", config)

	if _, err := session1.Engine.Drop(0); err != nil {
		t.Fatalf("Drop failed: %v", err)
	}

	if session2.Engine.GetState().Grid[0][0] != 0 {
		t.Error("Session 2 should not be affected by session 1 drops")
	}
	if session1.Engine.GetState().Grid[0][0] == 0 {
		t.Error("Session 1 should hold the dropped tile")
	}
}

func TestManager_SessionIDGeneration(t *testing.T) {
	manager := newTestManager(t)
	config := createTestConfig()

	generatedIDs := make(map[string]bool)

	for i := 0; i < 50; i++ {
		session, err := manager.Create("", config)
		if err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}

		if generatedIDs[session.ID] {
			t.Errorf("Duplicate session ID generated: %s", session.ID)
		}
		generatedIDs[session.ID] = true

		if len(session.ID) != 4 {
			t.Errorf("Expected 4-character ID, got %d", len(session.ID))
		}
	}
}

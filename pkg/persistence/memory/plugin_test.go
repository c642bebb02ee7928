package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/osvaldoandrade/leaderboards/pkg/domain"
	"github.com/osvaldoandrade/leaderboards/pkg/persistence"
)

func newTestPlugin(t *testing.T) persistence.PluginPersistence {
	t.Helper()
	plugin, err := NewPlugin(persistence.PluginConfig{Config: []byte("{}"), Timezone: time.UTC})
	if err != nil {
		t.Fatalf("Failed to create plugin: %v", err)
	}
	t.Cleanup(func() { _ = plugin.Close() })
	return plugin
}

func TestMemoryPluginUsers(t *testing.T) {
	plugin := newTestPlugin(t)
	ctx := context.Background()

	if err := plugin.Health(ctx); err != nil {
		t.Errorf("Health check failed: %v", err)
	}

	users := plugin.UserStorage()
	u := &domain.User{Username: "RageCage", Email: "X@Y.com"}
	if err := users.Save(ctx, u); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if u.ID == "" {
		t.Fatal("Expected Save to assign an ID")
	}
	if u.CreatedAt.IsZero() {
		t.Fatal("Expected Save to stamp CreatedAt")
	}

	got, err := users.FindByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if got.Username != "RageCage" {
		t.Errorf("Expected username RageCage, got %s", got.Username)
	}

	byEmail, err := users.FindByEmail(ctx, "x@y.com")
	if err != nil {
		t.Fatalf("FindByEmail failed: %v", err)
	}
	if byEmail.ID != u.ID {
		t.Errorf("Expected %s, got %s", u.ID, byEmail.ID)
	}

	if _, err := users.FindByID(ctx, "missing"); !errors.Is(err, persistence.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	dup := &domain.User{Username: "Other", Email: "x@y.COM"}
	if err := users.Save(ctx, dup); !errors.Is(err, persistence.ErrAlreadyExists) {
		t.Errorf("Expected ErrAlreadyExists for duplicate email, got %v", err)
	}
}

func TestMemoryPluginReturnsCopies(t *testing.T) {
	plugin := newTestPlugin(t)
	ctx := context.Background()

	u := &domain.User{ID: "u1", Email: "a@b.c"}
	if err := plugin.UserStorage().Save(ctx, u); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, _ := plugin.UserStorage().FindByID(ctx, "u1")
	got.Admin = true

	again, _ := plugin.UserStorage().FindByID(ctx, "u1")
	if again.Admin {
		t.Fatal("Mutating a returned user must not change stored state")
	}
}

func TestMemoryPluginModships(t *testing.T) {
	plugin := newTestPlugin(t)
	ctx := context.Background()
	mods := plugin.ModshipStorage()

	list, err := mods.ListByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("Expected no modships, got %d", len(list))
	}

	first := &domain.Modship{UserID: "u1", LeaderboardID: "lb1"}
	if err := mods.Save(ctx, first); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	again := &domain.Modship{UserID: "u1", LeaderboardID: "lb1"}
	if err := mods.Save(ctx, again); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if again.ID != first.ID {
		t.Errorf("Expected duplicate save to return existing modship %s, got %s", first.ID, again.ID)
	}
	if err := mods.Save(ctx, &domain.Modship{UserID: "u1", LeaderboardID: "lb2"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	list, _ = mods.ListByUser(ctx, "u1")
	if len(list) != 2 {
		t.Fatalf("Expected 2 modships, got %d", len(list))
	}
}

func TestMemoryPluginHonoursCancellation(t *testing.T) {
	plugin := newTestPlugin(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := plugin.UserStorage().FindByID(ctx, "u1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if _, err := plugin.ModshipStorage().ListByUser(ctx, "u1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
}

package repository

import (
	"testing"
	"time"

	"github.com/osvaldoandrade/leaderboards/pkg/domain"
)

func TestModshipListEmpty(t *testing.T) {
	ctx, _, rdb := setupRedis(t)
	repo := NewModshipRepository(rdb, time.UTC)

	list, err := repo.ListByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if len(list) != 0 {
		t.Errorf("ListByUser() len = %d, want 0", len(list))
	}
}

func TestModshipSaveIdempotent(t *testing.T) {
	ctx, _, rdb := setupRedis(t)
	repo := NewModshipRepository(rdb, time.UTC)

	first := &domain.Modship{UserID: "u1", LeaderboardID: "lb1"}
	if err := repo.Save(ctx, first); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	second := &domain.Modship{UserID: "u1", LeaderboardID: "lb1"}
	if err := repo.Save(ctx, second); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("duplicate Save() ID = %v, want %v", second.ID, first.ID)
	}

	list, err := repo.ListByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("ListByUser() len = %d, want 1", len(list))
	}
}

func TestModshipListOrdered(t *testing.T) {
	ctx, _, rdb := setupRedis(t)
	repo := NewModshipRepository(rdb, time.UTC)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_ = repo.Save(ctx, &domain.Modship{UserID: "u1", LeaderboardID: "late", CreatedAt: base.Add(time.Hour)})
	_ = repo.Save(ctx, &domain.Modship{UserID: "u1", LeaderboardID: "early", CreatedAt: base})
	_ = repo.Save(ctx, &domain.Modship{UserID: "u2", LeaderboardID: "other", CreatedAt: base})

	list, err := repo.ListByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("ListByUser() len = %d, want 2", len(list))
	}
	if list[0].LeaderboardID != "early" || list[1].LeaderboardID != "late" {
		t.Errorf("ListByUser() order = %v, %v", list[0].LeaderboardID, list[1].LeaderboardID)
	}
}

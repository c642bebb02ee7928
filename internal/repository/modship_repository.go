package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/osvaldoandrade/leaderboards/pkg/domain"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

type ModshipRepository interface {
	Save(ctx context.Context, modship *domain.Modship) error
	ListByUser(ctx context.Context, userID string) ([]domain.Modship, error)
}

type modshipRedisRepo struct {
	rdb *redis.Client
	tz  *time.Location
}

func NewModshipRepository(rdb *redis.Client, tz *time.Location) ModshipRepository {
	if tz == nil {
		tz = time.UTC
	}
	return &modshipRedisRepo{rdb: rdb, tz: tz}
}

// one hash per user: leaderboard id -> modship json
func (r *modshipRedisRepo) keyUserModships(userID string) string {
	return fmt.Sprintf("lb:modships:%s", userID)
}

func (r *modshipRedisRepo) Save(ctx context.Context, modship *domain.Modship) error {
	if modship.ID == "" {
		modship.ID = uuid.NewString()
	}
	if modship.CreatedAt.IsZero() {
		modship.CreatedAt = time.Now().In(r.tz)
	}
	b, err := json.Marshal(modship)
	if err != nil {
		return fmt.Errorf("marshal modship: %w", err)
	}
	key := r.keyUserModships(modship.UserID)
	created, err := r.rdb.HSetNX(ctx, key, modship.LeaderboardID, string(b)).Result()
	if err != nil {
		return fmt.Errorf("redis HSETNX modship: %w", err)
	}
	if created {
		return nil
	}

	js, err := r.rdb.HGet(ctx, key, modship.LeaderboardID).Result()
	if err != nil {
		return fmt.Errorf("redis HGET modship: %w", err)
	}
	if err := json.Unmarshal([]byte(js), modship); err != nil {
		return fmt.Errorf("unmarshal modship: %w", err)
	}
	return nil
}

func (r *modshipRedisRepo) ListByUser(ctx context.Context, userID string) ([]domain.Modship, error) {
	vals, err := r.rdb.HVals(ctx, r.keyUserModships(userID)).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("redis HVALS modships: %w", err)
	}
	out := make([]domain.Modship, 0, len(vals))
	for _, js := range vals {
		var m domain.Modship
		if err := json.Unmarshal([]byte(js), &m); err != nil {
			return nil, fmt.Errorf("unmarshal modship: %w", err)
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].LeaderboardID < out[j].LeaderboardID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

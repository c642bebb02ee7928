package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/osvaldoandrade/leaderboards/pkg/domain"
	"github.com/osvaldoandrade/leaderboards/pkg/persistence"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

type UserRepository interface {
	Save(ctx context.Context, user *domain.User) error
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
}

type userRedisRepo struct {
	rdb *redis.Client
	tz  *time.Location
}

func NewUserRepository(rdb *redis.Client, tz *time.Location) UserRepository {
	if tz == nil {
		tz = time.UTC
	}
	return &userRedisRepo{rdb: rdb, tz: tz}
}

func (r *userRedisRepo) keyUsers() string { return "lb:users" }

func (r *userRedisRepo) keyEmailIndex() string { return "lb:users:email" }

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *userRedisRepo) Save(ctx context.Context, user *domain.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().In(r.tz)
	}
	b, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}

	res, err := saveUserScript.Run(ctx, r.rdb,
		[]string{r.keyUsers(), r.keyEmailIndex()},
		user.ID, normalizeEmail(user.Email), string(b),
	).Int()
	if err != nil {
		return fmt.Errorf("redis save user: %w", err)
	}
	if res == 0 {
		return persistence.ErrAlreadyExists
	}
	return nil
}

// KEYS: users hash, email index; ARGV: id, email, user json.
// The email is indexed only after the record is written, so a failed write
// never leaves a claim behind. Returns 0 when another user owns the email.
var saveUserScript = redis.NewScript(`
local owner = redis.call("HGET", KEYS[2], ARGV[2])
if owner and owner ~= ARGV[1] then
  return 0
end
redis.call("HSET", KEYS[1], ARGV[1], ARGV[3])
redis.call("HSET", KEYS[2], ARGV[2], ARGV[1])
return 1
`)

func (r *userRedisRepo) FindByID(ctx context.Context, id string) (*domain.User, error) {
	js, err := r.rdb.HGet(ctx, r.keyUsers(), id).Result()
	if err == redis.Nil || (err == nil && js == "") {
		return nil, persistence.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis HGET user: %w", err)
	}
	var u domain.User
	if err := json.Unmarshal([]byte(js), &u); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	return &u, nil
}

func (r *userRedisRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	id, err := r.rdb.HGet(ctx, r.keyEmailIndex(), normalizeEmail(email)).Result()
	if err == redis.Nil || (err == nil && id == "") {
		return nil, persistence.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis HGET email: %w", err)
	}
	return r.FindByID(ctx, id)
}

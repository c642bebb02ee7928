package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// KeyPrefix namespaces bucket state in Redis.
const KeyPrefix = "lb:rl:"

const (
	minBucketTTL = 30 * time.Second
	maxBucketTTL = time.Hour
)

// Bucket is a token bucket refilled at RequestsPerMinute and capped at BurstSize.
type Bucket struct {
	RequestsPerMinute int `yaml:"requestsPerMinute"`
	BurstSize         int `yaml:"burstSize"`
}

func (b Bucket) Enabled() bool {
	return b.RequestsPerMinute > 0 && b.BurstSize > 0
}

// refillInterval is the time one token takes to come back.
func (b Bucket) refillInterval() time.Duration {
	return time.Minute / time.Duration(b.RequestsPerMinute)
}

// ttl keeps idle state around for two full refills, within fixed bounds.
func (b Bucket) ttl() time.Duration {
	if !b.Enabled() {
		return 2 * time.Minute
	}
	d := 2*b.refillInterval()*time.Duration(b.BurstSize) + 5*time.Second
	if d < minBucketTTL {
		return minBucketTTL
	}
	if d > maxBucketTTL {
		return maxBucketTTL
	}
	return d
}

type Decision struct {
	Allowed    bool
	// Remaining is the whole number of tokens left after this request.
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether subject may make one more request within scope.
type Limiter interface {
	Allow(ctx context.Context, scope string, subject string, bucket Bucket) (Decision, error)
}

type TokenBucketLimiter struct {
	rdb *redis.Client
	now func() time.Time
}

type LimiterOption func(*TokenBucketLimiter)

// WithClock overrides the time source used to refill buckets.
func WithClock(now func() time.Time) LimiterOption {
	return func(l *TokenBucketLimiter) { l.now = now }
}

func NewTokenBucketLimiter(rdb *redis.Client, opts ...LimiterOption) *TokenBucketLimiter {
	l := &TokenBucketLimiter{rdb: rdb, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// KEYS[1] bucket; ARGV: refill interval ms, capacity, now ms, ttl ms.
// Returns {allowed, remaining, retry_ms}.
var takeTokenScript = redis.NewScript(`
local interval = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local state = redis.call("HMGET", KEYS[1], "tokens", "at")
local tokens = tonumber(state[1]) or capacity
local at = tonumber(state[2]) or now
if at > now then at = now end

tokens = math.min(capacity, tokens + (now - at) / interval)

local allowed = 0
local retry_ms = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
else
  retry_ms = math.ceil((1 - tokens) * interval)
end

redis.call("HSET", KEYS[1], "tokens", tokens, "at", now)
redis.call("PEXPIRE", KEYS[1], ARGV[4])
return {allowed, math.floor(tokens), retry_ms}
`)

func (l *TokenBucketLimiter) Allow(ctx context.Context, scope string, subject string, bucket Bucket) (Decision, error) {
	if l == nil || l.rdb == nil || !bucket.Enabled() {
		return Decision{Allowed: true, Remaining: bucket.BurstSize}, nil
	}

	res, err := takeTokenScript.Run(ctx, l.rdb, []string{bucketKey(scope, subject)},
		bucket.refillInterval().Milliseconds(),
		bucket.BurstSize,
		l.now().UnixMilli(),
		bucket.ttl().Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("redis token bucket: %w", err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("redis token bucket: unexpected reply %v", res)
	}

	dec := Decision{Allowed: res[0] == 1, Remaining: int(res[1])}
	if !dec.Allowed {
		dec.RetryAfter = time.Duration(res[2]) * time.Millisecond
	}
	return dec, nil
}

// bucketKey hashes the subject so client addresses never land in Redis verbatim.
func bucketKey(scope, subject string) string {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		scope = "default"
	}
	subject = strings.ToLower(strings.TrimSpace(subject))
	if subject == "" {
		subject = "unknown"
	}
	return fmt.Sprintf("%s%s:%s", KeyPrefix, scope, sha256Hex(subject))
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

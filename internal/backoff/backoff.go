package backoff

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Delay returns how long to wait before retry number attempt (0-based).
// Unknown policies use exp_full_jitter. A nil rng draws from the
// process-wide source.
func Delay(policy string, base, max time.Duration, attempt int, rng *rand.Rand) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if base <= 0 {
		base = time.Second
	}
	if max <= 0 {
		max = base
	}
	int63n := rand.Int63n
	if rng != nil {
		int63n = rng.Int63n
	}
	switch policy {
	case "fixed":
		return minDuration(base, max)
	case "linear":
		return minDuration(base*time.Duration(maxInt(1, attempt)), max)
	case "exponential":
		return exp(base, max, attempt)
	case "exp_equal_jitter":
		ceil := exp(base, max, attempt)
		half := ceil / 2
		return half + time.Duration(int63n(int64(half)+1))
	default: // exp_full_jitter
		ceil := exp(base, max, attempt)
		if ceil <= 0 {
			return 0
		}
		return time.Duration(int63n(int64(ceil) + 1))
	}
}

// Retry calls fn until it returns nil, attempts run out or ctx is done.
// The last error from fn is returned.
func Retry(ctx context.Context, attempts int, policy string, base, max time.Duration, rng *rand.Rand, fn func(context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		t := time.NewTimer(Delay(policy, base, max, i, rng))
		select {
		case <-ctx.Done():
			t.Stop()
			return err
		case <-t.C:
		}
	}
	return err
}

func exp(base, max time.Duration, attempt int) time.Duration {
	f := float64(base) * math.Pow(2, float64(attempt))
	if f >= float64(max) {
		return max
	}
	return time.Duration(f)
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

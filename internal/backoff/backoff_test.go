package backoff

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"
)

const ms = time.Millisecond

func TestDelayDeterministicPolicies(t *testing.T) {
	tests := []struct {
		name    string
		policy  string
		base    time.Duration
		max     time.Duration
		attempt int
		want    time.Duration
	}{
		{"fixed", "fixed", 200 * ms, time.Second, 7, 200 * ms},
		{"fixed base over max", "fixed", 2 * time.Second, time.Second, 0, time.Second},
		{"fixed zero base", "fixed", 0, 10 * time.Second, 0, time.Second},
		{"fixed zero max", "fixed", 300 * ms, 0, 3, 300 * ms},
		{"linear first", "linear", 100 * ms, time.Second, 0, 100 * ms},
		{"linear third", "linear", 100 * ms, time.Second, 3, 300 * ms},
		{"linear capped", "linear", 100 * ms, 250 * ms, 9, 250 * ms},
		{"exponential first", "exponential", 100 * ms, time.Second, 0, 100 * ms},
		{"exponential third", "exponential", 100 * ms, time.Second, 2, 400 * ms},
		{"exponential capped", "exponential", 100 * ms, time.Second, 30, time.Second},
		{"negative attempt", "exponential", 100 * ms, time.Second, -4, 100 * ms},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Delay(tt.policy, tt.base, tt.max, tt.attempt, rand.New(rand.NewSource(42)))
			if got != tt.want {
				t.Errorf("Delay(%s) = %v, want %v", tt.policy, got, tt.want)
			}
		})
	}
}

func TestDelayJitterBounds(t *testing.T) {
	tests := []struct {
		policy  string
		attempt int
		lo, hi  time.Duration
	}{
		{"exp_equal_jitter", 0, 50 * ms, 100 * ms},
		{"exp_equal_jitter", 2, 200 * ms, 400 * ms},
		{"exp_equal_jitter", 20, 500 * ms, time.Second},
		{"exp_full_jitter", 0, 0, 100 * ms},
		{"exp_full_jitter", 3, 0, 800 * ms},
		{"exp_full_jitter", 20, 0, time.Second},
		{"", 1, 0, 200 * ms},
	}

	rng := rand.New(rand.NewSource(7))
	for _, tt := range tests {
		for i := 0; i < 50; i++ {
			got := Delay(tt.policy, 100*ms, time.Second, tt.attempt, rng)
			if got < tt.lo || got > tt.hi {
				t.Fatalf("Delay(%q, attempt=%d) = %v, want within [%v, %v]", tt.policy, tt.attempt, got, tt.lo, tt.hi)
			}
		}
	}
}

func TestDelayNilRng(t *testing.T) {
	if got := Delay("exp_full_jitter", 10*ms, 10*ms, 0, nil); got < 0 || got > 10*ms {
		t.Fatalf("Delay with nil rng = %v", got)
	}
}

func TestDelayNilRngVaries(t *testing.T) {
	seen := map[time.Duration]bool{}
	for i := 0; i < 50; i++ {
		seen[Delay("exp_full_jitter", 200*ms, 3*time.Second, 2, nil)] = true
	}
	if len(seen) < 2 {
		t.Fatalf("expected jittered delays to vary, got %d distinct value(s)", len(seen))
	}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 5, "fixed", ms, ms, nil, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetryReturnsLastError(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, "fixed", ms, ms, nil, func(context.Context) error {
		calls++
		return errors.New("down")
	})
	if err == nil || err.Error() != "down" {
		t.Fatalf("expected last error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Retry(ctx, 10, "fixed", time.Hour, time.Hour, nil, func(context.Context) error {
		calls++
		cancel()
		return errors.New("down")
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	if calls != 1 {
		t.Fatalf("expected a single call before cancellation, got %d", calls)
	}
}

func TestRetryZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_ = Retry(context.Background(), 0, "fixed", ms, ms, nil, func(context.Context) error {
		calls++
		return nil
	})
	if calls != 1 {
		t.Fatalf("expected one call, got %d", calls)
	}
}

package bench

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"

	"github.com/osvaldoandrade/leaderboards/internal/authz"
	"github.com/osvaldoandrade/leaderboards/pkg/app"
	"github.com/osvaldoandrade/leaderboards/pkg/auth"
	"github.com/osvaldoandrade/leaderboards/pkg/config"
	"github.com/osvaldoandrade/leaderboards/pkg/domain"
	_ "github.com/osvaldoandrade/leaderboards/pkg/persistence/redis" // Register redis store.
)

const (
	benchSecret   = "bench-secret-bench-secret-bench-secret"
	benchPassword = "bench-password"
)

func newBenchApp(b *testing.B, provider string) *app.Application {
	b.Helper()
	gin.SetMode(gin.ReleaseMode)

	cfg := &config.Config{
		Env:             "bench",
		Timezone:        "UTC",
		LogLevel:        "error",
		LogFormat:       "json",
		JwtKey:          benchSecret,
		JwtIssuer:       "leaderboards.gg",
		TokenTTLMinutes: 30,
		StoreProvider:   provider,

		// Benchmarks keep rate limiting disabled.
		RateLimit: config.RateLimitConfig{},
	}
	if provider == "redis" {
		mr, err := miniredis.Run()
		if err != nil {
			b.Fatalf("miniredis start: %v", err)
		}
		b.Cleanup(mr.Close)
		cfg.RedisAddr = mr.Addr()
	}

	application, err := app.NewApplication(cfg)
	if err != nil {
		b.Fatalf("new application: %v", err)
	}
	app.SetupMappings(application)
	b.Cleanup(func() { _ = application.Close(context.Background()) })
	return application
}

func seedModerator(b *testing.B, application *app.Application) string {
	b.Helper()
	ctx := context.Background()
	u, err := application.Accounts.CreateUser(ctx, "benchmod", "mod@bench.local", benchPassword, false)
	if err != nil {
		b.Fatalf("create user: %v", err)
	}
	if _, err := application.Modships.Grant(ctx, u.ID, "sm64"); err != nil {
		b.Fatalf("grant: %v", err)
	}
	token, err := application.Codec.Issue(auth.Identity{UserID: u.ID, Email: u.Email})
	if err != nil {
		b.Fatalf("issue: %v", err)
	}
	return token
}

func doJSONRequest(b *testing.B, h http.Handler, method, path, bearerToken string, body []byte) (int, []byte) {
	b.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+bearerToken)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w.Code, w.Body.Bytes()
}

func benchmarkModRoute(b *testing.B, provider string) {
	application := newBenchApp(b, provider)
	token := seedModerator(b, application)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		code, body := doJSONRequest(b, application.Engine, http.MethodGet, "/api/modships/me", token, nil)
		if code != http.StatusOK {
			b.Fatalf("modships/me: expected 200, got %d: %s", code, string(body))
		}
	}
}

func BenchmarkHTTP_ModRoute_Memory(b *testing.B) { benchmarkModRoute(b, "memory") }

func BenchmarkHTTP_ModRoute_Redis(b *testing.B) { benchmarkModRoute(b, "redis") }

func BenchmarkHTTP_Unauthorized(b *testing.B) {
	application := newBenchApp(b, "memory")

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		code, _ := doJSONRequest(b, application.Engine, http.MethodGet, "/api/users/me", "not-a-token", nil)
		if code != http.StatusUnauthorized {
			b.Fatalf("expected 401, got %d", code)
		}
	}
}

func BenchmarkHTTP_Login(b *testing.B) {
	application := newBenchApp(b, "memory")
	seedModerator(b, application)
	body, _ := json.Marshal(map[string]string{"email": "mod@bench.local", "password": benchPassword})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		code, resp := doJSONRequest(b, application.Engine, http.MethodPost, "/api/login", "", body)
		if code != http.StatusOK {
			b.Fatalf("login: expected 200, got %d: %s", code, string(resp))
		}
	}
}

func BenchmarkEvaluator_Parallel(b *testing.B) {
	application := newBenchApp(b, "memory")
	header := "Bearer " + seedModerator(b, application)
	req := authz.NewRequirement(domain.RoleMod)

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		ctx := context.Background()
		for pb.Next() {
			if outcome, _ := application.Authorizer.Evaluate(ctx, req, header); !outcome.Succeeded() {
				b.Errorf("expected success, got %s", outcome.Label())
				return
			}
		}
	})
}

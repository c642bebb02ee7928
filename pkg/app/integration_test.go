package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/osvaldoandrade/leaderboards/pkg/config"
	"github.com/osvaldoandrade/leaderboards/pkg/domain"
	"github.com/osvaldoandrade/leaderboards/pkg/persistence"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
)

const (
	testIssuer = "leaderboards.gg"
	testSecret = "testkeythatsatisfiesthecharacterminimum"
)

func testConfig() *config.Config {
	return &config.Config{
		Env:             "test",
		LogLevel:        "error",
		Timezone:        "UTC",
		JwtKey:          testSecret,
		JwtIssuer:       testIssuer,
		TokenTTLMinutes: 30,
		StoreProvider:   "memory",
	}
}

func newTestServer(t *testing.T, cfg *config.Config) (*Application, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config: %v", err)
	}
	application, err := NewApplication(cfg)
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	SetupMappings(application)
	srv := httptest.NewServer(application.Engine)
	t.Cleanup(func() {
		srv.Close()
		_ = application.Close(context.Background())
	})
	return application, srv
}

func doJSON(t *testing.T, method, url, token string, body any) (int, map[string]any) {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, rdr)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	out := map[string]any{}
	_ = json.Unmarshal(raw, &out)
	return resp.StatusCode, out
}

func TestHTTPIntegrationFlow(t *testing.T) {
	application, srv := newTestServer(t, testConfig())
	ctx := context.Background()

	// register + login
	code, body := doJSON(t, http.MethodPost, srv.URL+"/api/users/register", "", map[string]string{
		"username": "RageCage", "email": "x@y.com", "password": "correct horse",
	})
	if code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d %v", code, body)
	}
	user, _ := body["user"].(map[string]any)
	userID, _ := user["id"].(string)
	if userID == "" || user["email"] != nil {
		t.Fatalf("register returned unexpected user view: %v", user)
	}

	code, body = doJSON(t, http.MethodPost, srv.URL+"/api/login", "", map[string]string{"email": "x@y.com", "password": "correct horse"})
	if code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", code)
	}
	userToken, _ := body["token"].(string)

	code, _ = doJSON(t, http.MethodPost, srv.URL+"/api/login", "", map[string]string{"email": "x@y.com", "password": "nope"})
	if code != http.StatusUnauthorized {
		t.Fatalf("bad login: expected 401, got %d", code)
	}

	// anonymous public profile
	code, body = doJSON(t, http.MethodGet, srv.URL+"/api/users/"+userID, "", nil)
	if code != http.StatusOK || body["username"] != "RageCage" || body["email"] != nil {
		t.Fatalf("public profile: %d %v", code, body)
	}

	// User route
	code, body = doJSON(t, http.MethodGet, srv.URL+"/api/users/me", userToken, nil)
	if code != http.StatusOK || body["email"] != "x@y.com" {
		t.Fatalf("me: %d %v", code, body)
	}
	code, _ = doJSON(t, http.MethodGet, srv.URL+"/api/users/me", "", nil)
	if code != http.StatusUnauthorized {
		t.Fatalf("me anonymous: expected 401, got %d", code)
	}

	// Mod route: 401 without a token, 403 for a plain user
	code, body = doJSON(t, http.MethodGet, srv.URL+"/api/modships/me", "", nil)
	if code != http.StatusUnauthorized || body["error"] != "Unauthorized" {
		t.Fatalf("mod anonymous: %d %v", code, body)
	}
	code, body = doJSON(t, http.MethodGet, srv.URL+"/api/modships/me", userToken, nil)
	if code != http.StatusForbidden || body["error"] != "Forbidden" {
		t.Fatalf("mod as user: %d %v", code, body)
	}

	// an admin grants a modship; the same token now passes the Mod gate
	admin, err := application.Accounts.CreateUser(ctx, "root", "root@example.com", "adminpass", true)
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}
	code, body = doJSON(t, http.MethodPost, srv.URL+"/api/login", "", map[string]string{"email": admin.Email, "password": "adminpass"})
	if code != http.StatusOK {
		t.Fatalf("admin login: %d", code)
	}
	adminToken, _ := body["token"].(string)

	grant := map[string]string{"userId": userID, "leaderboardId": "sm64"}
	code, _ = doJSON(t, http.MethodPost, srv.URL+"/api/modships", userToken, grant)
	if code != http.StatusForbidden {
		t.Fatalf("grant as user: expected 403, got %d", code)
	}
	code, body = doJSON(t, http.MethodPost, srv.URL+"/api/modships", adminToken, grant)
	if code != http.StatusCreated || body["leaderboardId"] != "sm64" {
		t.Fatalf("grant as admin: %d %v", code, body)
	}

	code, body = doJSON(t, http.MethodGet, srv.URL+"/api/modships/me", userToken, nil)
	if code != http.StatusOK {
		t.Fatalf("mod after grant: expected 200, got %d", code)
	}
	if list, _ := body["modships"].([]any); len(list) != 1 {
		t.Fatalf("expected one modship, got %v", body)
	}

	// admin passes the Mod gate without holding a modship
	code, _ = doJSON(t, http.MethodGet, srv.URL+"/api/modships/me", adminToken, nil)
	if code != http.StatusOK {
		t.Fatalf("admin on mod route: expected 200, got %d", code)
	}

	// a token with a mangled signature is anonymous
	code, _ = doJSON(t, http.MethodGet, srv.URL+"/api/users/me", userToken[:len(userToken)-4]+"AAAA", nil)
	if code != http.StatusUnauthorized {
		t.Fatalf("tampered token: expected 401, got %d", code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	_, srv := newTestServer(t, testConfig())

	code, body := doJSON(t, http.MethodGet, srv.URL+"/healthz", "", nil)
	if code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("healthz: %d %v", code, body)
	}

	doJSON(t, http.MethodGet, srv.URL+"/api/users/me", "", nil)

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(raw), "leaderboards_auth_decisions_total") {
		t.Fatalf("expected auth decision metric in /metrics output")
	}
}

func TestRedisStoreWithLoginRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.StoreProvider = "redis"
	cfg.RedisAddr = mr.Addr()
	cfg.RateLimit.Login = config.RateLimitBucketConfig{RequestsPerMinute: 1, BurstSize: 2}

	application, srv := newTestServer(t, cfg)
	if application.RateLimiter == nil {
		t.Fatal("expected the redis limiter to be wired")
	}
	if _, err := application.Accounts.CreateUser(context.Background(), "p", "p@example.com", "pw", false); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if !mr.Exists("lb:users") {
		t.Fatal("expected the user to land in redis")
	}

	creds := map[string]string{"email": "p@example.com", "password": "pw"}
	for i := 0; i < 2; i++ {
		if code, _ := doJSON(t, http.MethodPost, srv.URL+"/api/login", "", creds); code != http.StatusOK {
			t.Fatalf("login %d: expected 200, got %d", i, code)
		}
	}
	code, body := doJSON(t, http.MethodPost, srv.URL+"/api/login", "", creds)
	if code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after the burst, got %d %v", code, body)
	}
}

func TestUnknownStoreProvider(t *testing.T) {
	cfg := testConfig()
	cfg.StoreProvider = "cassandra"
	if _, err := NewApplication(cfg); err == nil {
		t.Fatal("expected an error for an unregistered store")
	}
}

func TestAdminSatisfiesEveryGate(t *testing.T) {
	application, srv := newTestServer(t, testConfig())
	admin, err := application.Accounts.CreateUser(context.Background(), "root", "root@example.com", "pw", true)
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}
	code, body := doJSON(t, http.MethodPost, srv.URL+"/api/login", "", map[string]string{"email": admin.Email, "password": "pw"})
	if code != http.StatusOK {
		t.Fatalf("login: %d", code)
	}
	token, _ := body["token"].(string)

	code, body = doJSON(t, http.MethodGet, srv.URL+"/api/users/me", token, nil)
	if code != http.StatusOK {
		t.Fatalf("me: %d", code)
	}
	roles, _ := body["roles"].([]any)
	var hasAdmin bool
	for _, r := range roles {
		if r == string(domain.RoleAdmin) {
			hasAdmin = true
		}
	}
	if !hasAdmin {
		t.Fatalf("expected Admin in roles, got %v", roles)
	}
}

type flakyStore struct {
	persistence.PluginPersistence
	failures int
	probes   int
}

func (s *flakyStore) Health(context.Context) error {
	s.probes++
	if s.probes <= s.failures {
		return errors.New("connection refused")
	}
	return nil
}

func TestWaitForStore(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ok := &flakyStore{failures: 2}
	if err := WaitForStore(context.Background(), ok, 5, logger); err != nil {
		t.Fatalf("expected the store to come up, got %v", err)
	}
	if ok.probes != 3 {
		t.Fatalf("expected 3 probes, got %d", ok.probes)
	}

	down := &flakyStore{failures: 100}
	err := WaitForStore(context.Background(), down, 2, logger)
	if err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("expected the last probe error, got %v", err)
	}
	if down.probes != 2 {
		t.Fatalf("expected 2 probes, got %d", down.probes)
	}
}

func TestRedisStoreUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := testConfig()
	cfg.StoreProvider = "redis"
	cfg.RedisAddr = addr
	cfg.StoreConnectAttempts = 1
	if _, err := NewApplication(cfg); err == nil {
		t.Fatal("expected startup to fail when redis is down")
	}
}

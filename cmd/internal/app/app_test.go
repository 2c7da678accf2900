package app

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	authapi "chatbot/cmd/internal/auth/api"
	"chatbot/cmd/internal/auth/session"
	"chatbot/cmd/security/password"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testConfig() Config {
	pw := password.DefaultConfig()
	pw.Cost = bcrypt.MinCost

	return Config{
		Env:                "test",
		HTTPAddr:           "127.0.0.1:0",
		RateLimitWindow:    time.Minute,
		RateLimitMax:       5,
		RateLimitBackend:   BackendMemory,
		RateLimitFailOpen:  true,
		CORSAllowedOrigins: []string{"http://localhost:5173"},
		JWT:                session.DefaultConfig(),
		Auth:               authapi.Config{MaxBodyBytes: 1 << 20},
		Password:           pw,
	}
}

func newTestServer(t *testing.T, cfg Config) *httptest.Server {
	t.Helper()

	a, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	srv := httptest.NewServer(a.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, srv *httptest.Server, path string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	res, err := srv.Client().Post(srv.URL+path, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Body.Close() })
	return res
}

func TestApp_RegisterThroughAdmissionGate(t *testing.T) {
	srv := newTestServer(t, testConfig())

	res := postJSON(t, srv, "/api/auth/register", map[string]string{
		"email": "a@b.com", "username": "abc", "password": "password1", "confirmPassword": "password1",
	})
	require.Equal(t, http.StatusCreated, res.StatusCode)
	assert.Equal(t, "5", res.Header.Get("X-RateLimit-Limit"))
	assert.Equal(t, "4", res.Header.Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, res.Header.Get("X-RateLimit-Reset"))
	assert.NotEmpty(t, res.Header.Get("X-Request-ID"))
	assert.Equal(t, "nosniff", res.Header.Get("X-Content-Type-Options"))

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			AccessToken string `json:"accessToken"`
			ExpiresIn   int64  `json:"expiresIn"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.True(t, body.Success)
	assert.NotEmpty(t, body.Data.AccessToken)
	assert.Equal(t, int64(604800), body.Data.ExpiresIn)
}

func TestApp_RateLimitRejects(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitMax = 2
	srv := newTestServer(t, cfg)

	for i := 0; i < 2; i++ {
		res := postJSON(t, srv, "/api/auth/login", map[string]string{"email": "x@y.com", "password": "nope-nope"})
		require.Equal(t, http.StatusUnauthorized, res.StatusCode)
	}

	res := postJSON(t, srv, "/api/auth/login", map[string]string{"email": "x@y.com", "password": "nope-nope"})
	require.Equal(t, http.StatusTooManyRequests, res.StatusCode)
	assert.NotEmpty(t, res.Header.Get("Retry-After"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", body["error"])

	// Operational endpoints sit outside the gate.
	hres, err := srv.Client().Get(srv.URL + "/healthz")
	require.NoError(t, err)
	_ = hres.Body.Close()
	assert.Equal(t, http.StatusOK, hres.StatusCode)

	mres, err := srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer mres.Body.Close()
	raw, err := io.ReadAll(mres.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `chatbot_ratelimit_decisions_total{backend="memory",result="rejected"} 1`)
	assert.Contains(t, string(raw), "chatbot_http_requests_total")
}

func TestApp_HealthAndReady(t *testing.T) {
	srv := newTestServer(t, testConfig())

	res, err := srv.Client().Get(srv.URL + "/health")
	require.NoError(t, err)
	defer res.Body.Close()
	var health map[string]string
	require.NoError(t, json.NewDecoder(res.Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])

	rres, err := srv.Client().Get(srv.URL + "/readyz")
	require.NoError(t, err)
	_ = rres.Body.Close()
	assert.Equal(t, http.StatusOK, rres.StatusCode)

	cfg := testConfig()
	cfg.ReadinessRequireDB = true
	srv2 := newTestServer(t, cfg)
	rres, err = srv2.Client().Get(srv2.URL + "/readyz")
	require.NoError(t, err)
	_ = rres.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, rres.StatusCode)
}

func TestApp_UnreachableRedis(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitBackend = BackendRedis
	cfg.RedisURL = "redis://127.0.0.1:1/0"

	cfg.RateLimitFailOpen = false
	_, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err, "fail-closed limiter must not start without redis")

	cfg.RateLimitFailOpen = true
	srv := newTestServer(t, cfg)

	res := postJSON(t, srv, "/api/auth/login", map[string]string{"email": "x@y.com", "password": "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode, "degraded limiter admits the request")
	assert.Equal(t, "5", res.Header.Get("X-RateLimit-Limit"))

	rres, err := srv.Client().Get(srv.URL + "/readyz")
	require.NoError(t, err)
	_ = rres.Body.Close()
	assert.Equal(t, http.StatusOK, rres.StatusCode)
}

func TestValidateSecurityConfig(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	require.NoError(t, ValidateSecurityConfig(cfg))

	prod := testConfig()
	prod.Env = "production"
	assert.Error(t, ValidateSecurityConfig(prod), "dev secret must be rejected in production")

	prod.JWT.Secret = "short-secret"
	assert.Error(t, ValidateSecurityConfig(prod))

	prod.JWT.Secret = strings.Repeat("k", 32)
	assert.NoError(t, ValidateSecurityConfig(prod))

	redisNoURL := testConfig()
	redisNoURL.RateLimitBackend = BackendRedis
	assert.Error(t, ValidateSecurityConfig(redisNoURL))

	unknown := testConfig()
	unknown.RateLimitBackend = "memcached"
	assert.Error(t, ValidateSecurityConfig(unknown))

	blank := testConfig()
	blank.JWT.Secret = "  "
	assert.Error(t, ValidateSecurityConfig(blank))
}

func TestLoadConfig_Defaults(t *testing.T) {
	for _, k := range []string{
		"HTTP_ADDR", "APP_ENV", "NODE_ENV", "RATE_LIMIT_WINDOW_MS", "RATE_LIMIT_MAX_REQUESTS",
		"RATE_LIMIT_BACKEND", "RATE_LIMIT_FAIL_OPEN", "ALLOWED_ORIGINS", "JWT_SECRET", "JWT_EXPIRES_IN",
		"BCRYPT_COST", "DATABASE_URL", "REDIS_URL",
	} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:3000", cfg.HTTPAddr)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, 15*time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, int64(100), cfg.RateLimitMax)
	assert.Equal(t, BackendMemory, cfg.RateLimitBackend)
	assert.True(t, cfg.RateLimitFailOpen)
	assert.Equal(t, defaultAllowedOrigins, cfg.CORSAllowedOrigins)
	assert.Equal(t, "7d", cfg.JWT.AccessTTL)
	assert.Equal(t, password.MinCost, cfg.Password.Cost)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("NODE_ENV", "Production")
	t.Setenv("RATE_LIMIT_WINDOW_MS", "60000")
	t.Setenv("RATE_LIMIT_BACKEND", "REDIS")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, ,https://b.example.com")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, BackendRedis, cfg.RateLimitBackend)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSAllowedOrigins)
}

func TestJanitorInterval(t *testing.T) {
	t.Parallel()

	assert.Equal(t, time.Minute, janitorInterval(0))
	assert.Equal(t, 10*time.Second, janitorInterval(time.Second))
	assert.Equal(t, 30*time.Second, janitorInterval(30*time.Second))
	assert.Equal(t, 5*time.Minute, janitorInterval(15*time.Minute))
}

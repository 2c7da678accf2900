package authapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chatbot/cmd/identity"
	"chatbot/cmd/internal/auth/account"
	"chatbot/cmd/internal/auth/session"
	"chatbot/cmd/security/password"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testEnv struct {
	srv   *httptest.Server
	store *identity.MemoryStore
	codec *session.Codec
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := identity.NewMemoryStore()

	codec, err := session.NewCodec(session.DefaultConfig())
	require.NoError(t, err)

	hasher := password.DefaultConfig()
	hasher.Cost = bcrypt.MinCost

	svc, err := account.NewService(store, codec, hasher, account.WithLogger(log))
	require.NoError(t, err)

	h, err := NewHandler(log, svc, codec, Config{MaxBodyBytes: 4096})
	require.NoError(t, err)

	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, store: store, codec: codec}
}

type envelope struct {
	Success   bool            `json:"success"`
	Error     string          `json:"error"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp"`
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()

	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, e.srv.URL+path, rdr)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(res.Body).Decode(&env))
	return res.StatusCode, env
}

func (e *testEnv) register(t *testing.T, email, username string) authResponse {
	t.Helper()
	status, env := e.do(t, http.MethodPost, "/auth/register", "", registerRequest{
		Email: email, Username: username, Password: "password1", ConfirmPassword: "password1",
	})
	require.Equal(t, http.StatusCreated, status, "register: %+v", env)

	var out authResponse
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func TestRegisterAndLogin(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	reg := env.register(t, "a@b.com", "abc")
	assert.Equal(t, "a@b.com", reg.User.Email)
	assert.True(t, reg.User.IsActive)
	assert.Equal(t, int64(604800), reg.ExpiresIn)
	assert.NotEmpty(t, reg.AccessToken)

	status, body := env.do(t, http.MethodPost, "/auth/login", "", loginRequest{Email: "a@b.com", Password: "password1"})
	require.Equal(t, http.StatusOK, status)
	assert.True(t, body.Success)
	assert.Equal(t, "Login successful", body.Message)
	assert.NotContains(t, string(body.Data), "password")
}

func TestRegister_ErrorEnvelope(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodPost, "/auth/register", "", registerRequest{
		Email: "a@b.com", Username: "abc", Password: "abc12", ConfirmPassword: "abc12",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.False(t, body.Success)
	assert.Equal(t, "WEAK_PASSWORD", body.Error)
	assert.NotEmpty(t, body.Message)
	_, err := time.Parse(time.RFC3339, body.Timestamp)
	assert.NoError(t, err)

	env.register(t, "a@b.com", "abc")
	status, body = env.do(t, http.MethodPost, "/auth/register", "", registerRequest{
		Email: "A@B.com", Username: "other", Password: "password1", ConfirmPassword: "password1",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "EMAIL_EXISTS", body.Error)
}

func TestMalformedJSON(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	for _, raw := range []string{"{", `{"email":"a@b.com"} {}`, `{"unknown":1}`} {
		status, body := env.do(t, http.MethodPost, "/auth/login", "", raw)
		assert.Equal(t, http.StatusBadRequest, status, raw)
		assert.Equal(t, "INVALID_JSON", body.Error, raw)
	}

	big := `{"email":"` + strings.Repeat("x", 8192) + `","password":"p"}`
	status, body := env.do(t, http.MethodPost, "/auth/login", "", big)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_JSON", body.Error)
}

func TestEmptyBody_ReportsMissingFields(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	cases := []struct {
		path string
		body any
		want string
	}{
		{path: "/auth/login", body: nil, want: "MISSING_FIELDS"},
		{path: "/auth/login", body: "", want: "MISSING_FIELDS"},
		{path: "/auth/register", body: " ", want: "MISSING_FIELDS"},
		{path: "/auth/refresh", body: nil, want: "MISSING_REFRESH_TOKEN"},
		{path: "/auth/refresh", body: "", want: "MISSING_REFRESH_TOKEN"},
	}

	for _, tc := range cases {
		status, body := env.do(t, http.MethodPost, tc.path, "", tc.body)
		assert.Equal(t, http.StatusBadRequest, status, tc.path)
		assert.Equal(t, tc.want, body.Error, tc.path)
	}
}

func TestLogin_NoEnumeration(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.register(t, "a@b.com", "abc")

	statusA, a := env.do(t, http.MethodPost, "/auth/login", "", loginRequest{Email: "nobody@b.com", Password: "password1"})
	statusB, b := env.do(t, http.MethodPost, "/auth/login", "", loginRequest{Email: "a@b.com", Password: "wrong-one"})

	assert.Equal(t, http.StatusUnauthorized, statusA)
	assert.Equal(t, statusA, statusB)
	assert.Equal(t, a.Error, b.Error)
	assert.Equal(t, a.Message, b.Message)
	assert.Equal(t, "INVALID_CREDENTIALS", a.Error)
}

func TestRefreshFlow(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	reg := env.register(t, "a@b.com", "abc")

	status, body := env.do(t, http.MethodPost, "/auth/refresh", "", refreshRequest{})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "MISSING_REFRESH_TOKEN", body.Error)

	status, body = env.do(t, http.MethodPost, "/auth/refresh", "", refreshRequest{RefreshToken: reg.AccessToken})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "INVALID_REFRESH_TOKEN", body.Error)

	status, body = env.do(t, http.MethodPost, "/auth/refresh", "", refreshRequest{RefreshToken: reg.RefreshToken})
	require.Equal(t, http.StatusOK, status)
	var out authResponse
	require.NoError(t, json.Unmarshal(body.Data, &out))
	assert.Equal(t, reg.User.ID, out.User.ID)

	env.store.Delete(reg.User.ID)
	status, body = env.do(t, http.MethodPost, "/auth/refresh", "", refreshRequest{RefreshToken: reg.RefreshToken})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "USER_NOT_FOUND", body.Error)
}

func TestProtectedRoutes(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	reg := env.register(t, "a@b.com", "abc")

	status, body := env.do(t, http.MethodGet, "/users/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "MISSING_TOKEN", body.Error)

	status, body = env.do(t, http.MethodGet, "/users/profile", reg.RefreshToken, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "INVALID_TOKEN", body.Error)

	expired, _, err := env.codec.Issue(session.Subject{ID: reg.User.ID, Email: "a@b.com", Username: "abc"},
		session.KindAccess, time.Now().Add(-8*24*time.Hour))
	require.NoError(t, err)
	status, body = env.do(t, http.MethodGet, "/users/profile", expired, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "TOKEN_EXPIRED", body.Error)

	status, body = env.do(t, http.MethodGet, "/users/profile", reg.AccessToken, nil)
	require.Equal(t, http.StatusOK, status)
	var prof profileResponse
	require.NoError(t, json.Unmarshal(body.Data, &prof))
	assert.Equal(t, reg.User.ID, prof.User.ID)

	name := "renamed"
	status, body = env.do(t, http.MethodPut, "/users/profile", reg.AccessToken, profileUpdateRequest{Username: &name})
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body.Data, &prof))
	assert.Equal(t, "renamed", prof.User.Username)

	status, body = env.do(t, http.MethodPut, "/users/password", reg.AccessToken, changePasswordRequest{
		CurrentPassword: "wrong-pass", NewPassword: "newpass1", ConfirmPassword: "newpass1",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_PASSWORD", body.Error)

	status, body = env.do(t, http.MethodPut, "/users/password", reg.AccessToken, changePasswordRequest{
		CurrentPassword: "password1", NewPassword: "newpass1", ConfirmPassword: "newpass1",
	})
	require.Equal(t, http.StatusOK, status)
	assert.True(t, body.Success)

	status, _ = env.do(t, http.MethodPost, "/auth/login", "", loginRequest{Email: "a@b.com", Password: "newpass1"})
	assert.Equal(t, http.StatusOK, status)
}

func TestLogout_AlwaysSucceeds(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	reg := env.register(t, "a@b.com", "abc")

	for _, token := range []string{"", "garbage", reg.AccessToken} {
		status, body := env.do(t, http.MethodPost, "/auth/logout", token, nil)
		assert.Equal(t, http.StatusOK, status)
		assert.True(t, body.Success)
	}
}

package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"smarthub-backend/internal/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager() *auth.Manager {
	return auth.NewManager("secret", time.Hour, "smarthub")
}

func identityEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		if !ok {
			w.Write([]byte("public"))
			return
		}
		w.Write([]byte(id.AdminID + ":" + id.Role))
	})
}

func TestRequireAuth(t *testing.T) {
	m := newManager()
	token, _, err := m.NewToken("a1", "admin")
	require.NoError(t, err)
	h := RequireAuth(m)(identityEcho())

	tests := []struct {
		name   string
		header string
		code   int
		body   string
	}{
		{name: "missing header", header: "", code: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic " + token, code: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer nope", code: http.StatusUnauthorized},
		{name: "valid token", header: "Bearer " + token, code: http.StatusOK, body: "a1:admin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.code, rec.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, rec.Body.String())
			}
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	m := newManager()
	token, _, err := m.NewToken("a1", "editor")
	require.NoError(t, err)
	h := OptionalAuth(m)(identityEcho())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "public", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer broken")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "public", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "a1:editor", rec.Body.String())
}

func TestRequireRole(t *testing.T) {
	m := newManager()
	token, _, err := m.NewToken("a1", "editor")
	require.NoError(t, err)
	h := RequireAuth(m)(RequireRole("admin")(identityEcho()))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRecovererWritesJSON(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := Recoverer(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("ip"))
	assert.True(t, rl.Allow("ip"))
	assert.False(t, rl.Allow("ip"))
	assert.True(t, rl.Allow("other"))

	now = now.Add(2 * time.Minute)
	assert.True(t, rl.Allow("ip"))
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"http://site.test"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodOptions, "/api/projects", nil)
	req.Header.Set("Origin", "http://site.test")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://site.test", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	req.Header.Set("Origin", "http://evil.test")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestLevelFor(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, levelFor("/api/health", http.StatusOK))
	assert.Equal(t, slog.LevelInfo, levelFor("/api/projects", http.StatusNotFound))
	assert.Equal(t, slog.LevelWarn, levelFor("/api/contact", http.StatusTooManyRequests))
	assert.Equal(t, slog.LevelError, levelFor("/api/health", http.StatusInternalServerError))
}

func TestRequireActive(t *testing.T) {
	m := newManager()
	token, _, err := m.NewToken("a1", "admin")
	require.NoError(t, err)

	accounts := map[string]string{"a1": "admin"}
	check := func(ctx context.Context, adminID string) (string, error) {
		role, ok := accounts[adminID]
		if !ok {
			return "", ErrAccountDisabled
		}
		return role, nil
	}
	h := RequireAuth(m)(RequireActive(check)(identityEcho()))
	call := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	rec := call()
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a1:admin", rec.Body.String())

	// a demoted account is served with its stored role
	accounts["a1"] = "editor"
	assert.Equal(t, "a1:editor", call().Body.String())

	// a disabled account keeps a valid token but loses access
	delete(accounts, "a1")
	rec = call()
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "account disabled")
}

func TestRequireActiveDatabaseError(t *testing.T) {
	check := func(ctx context.Context, adminID string) (string, error) {
		return "", errors.New("connection reset")
	}
	h := RequireActive(check)(identityEcho())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithIdentity(req.Context(), Identity{AdminID: "a1", Role: "admin"}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

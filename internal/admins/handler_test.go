package admins

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"smarthub-backend/internal/middleware"
	"smarthub-backend/internal/validation"
)

func newTestHandler(t *testing.T) (*Handler, *Service, *memoryRepo) {
	t.Helper()
	repo := newMemoryRepo()
	svc := newTestService(t, repo)
	return NewHandler(svc, validation.New(), slog.New(slog.NewJSONHandler(io.Discard, nil))), svc, repo
}

func postJSON(h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestLoginHandlerStatuses(t *testing.T) {
	h, svc, _ := newTestHandler(t)
	seedAdmin(t, svc)

	rec := postJSON(h.Login, `{"email":"admin@example.com","password":"nope-nope"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postJSON(h.Login, `{"email":"not-an-email","password":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"email"`)

	rec = postJSON(h.Login, `{"email":"admin@example.com","password":"correct-horse"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Token string          `json:"token"`
		Admin json.RawMessage `json:"admin"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Token)
	assert.NotContains(t, string(body.Admin), "password")
}

func TestLoginHandlerLockedAccount(t *testing.T) {
	h, svc, _ := newTestHandler(t)
	seedAdmin(t, svc)

	for i := 0; i < MaxLoginAttempts; i++ {
		postJSON(h.Login, `{"email":"admin@example.com","password":"wrong-pass"}`)
	}
	rec := postJSON(h.Login, `{"email":"admin@example.com","password":"correct-horse"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSetupHandler(t *testing.T) {
	h, _, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/", http.NoBody)
	rec := httptest.NewRecorder()
	h.Setup(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = postJSON(h.Setup, `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "already initialized")
}

func TestRegisterHandlerDuplicate(t *testing.T) {
	h, svc, _ := newTestHandler(t)
	seedAdmin(t, svc)

	rec := postJSON(h.Register, `{"email":"admin@example.com","password":"password1","name":"Dup"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(h.Register, `{"email":"editor@example.com","password":"password1","name":"Ed","role":"editor"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"role":"editor"`)
}

func TestVerifyHandler(t *testing.T) {
	h, svc, _ := newTestHandler(t)
	admin := seedAdmin(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(middleware.WithIdentity(req.Context(), middleware.Identity{AdminID: admin.ID, Role: admin.Role}))
	rec := httptest.NewRecorder()
	h.Verify(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"valid":true`)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(middleware.WithIdentity(req.Context(), middleware.Identity{AdminID: "missing", Role: "admin"}))
	rec = httptest.NewRecorder()
	h.Verify(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

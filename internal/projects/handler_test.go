package projects

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"smarthub-backend/internal/cache"
	"smarthub-backend/internal/middleware"
	"smarthub-backend/internal/uploads"
	"smarthub-backend/internal/validation"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 64)...)

type memoryCache struct {
	data map[string][]byte
}

func (c *memoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.data[key] = value
	return nil
}

func (c *memoryCache) Delete(ctx context.Context, key string) error {
	delete(c.data, key)
	return nil
}

func (c *memoryCache) DeletePrefix(ctx context.Context, prefix string) error {
	for k := range c.data {
		if strings.HasPrefix(k, prefix) {
			delete(c.data, k)
		}
	}
	return nil
}

func (c *memoryCache) Name() string { return "memory" }

var _ cache.Cache = (*memoryCache)(nil)

func newTestRouter(t *testing.T) (http.Handler, *memoryRepo, *memoryCache) {
	t.Helper()
	return newRouterWithStorage(t, uploads.NewInlineStorage())
}

func newRouterWithStorage(t *testing.T, storage uploads.Storage) (http.Handler, *memoryRepo, *memoryCache) {
	t.Helper()
	svc, repo := newTestService()
	mc := &memoryCache{data: map[string][]byte{}}
	h := NewHandler(svc, storage, 1<<20, mc, time.Minute, validation.New(), slog.New(slog.NewJSONHandler(io.Discard, nil)))

	admin := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-Test-Admin") != "" {
				r = r.WithContext(middleware.WithIdentity(r.Context(), middleware.Identity{AdminID: "a1", Role: "admin"}))
			}
			next.ServeHTTP(w, r)
		})
	}

	r := chi.NewRouter()
	r.Use(admin)
	r.Get("/projects", h.List)
	r.Get("/projects/{id}", h.Get)
	r.Post("/projects", h.Create)
	r.Put("/projects/{id}", h.Update)
	r.Delete("/projects/{id}", h.Delete)
	return r, repo, mc
}

func multipartBody(t *testing.T, fields map[string]string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for name, data := range files {
		fw, err := mw.CreateFormFile("images", name)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestCreateProjectHandler(t *testing.T) {
	router, repo, _ := newTestRouter(t)

	body, ct := multipartBody(t, map[string]string{
		"title":            "Harbor Cafe",
		"shortDescription": "Menu and booking site",
		"tags":             `["web","food"]`,
		"featured":         "true",
	}, map[string][]byte{"cover.png": pngBytes})
	req := httptest.NewRequest(http.MethodPost, "/projects", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var item Project
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &item))
	assert.Equal(t, "harbor-cafe", item.ID)
	assert.True(t, strings.HasPrefix(item.Image, "data:image/png;base64,"))
	assert.Equal(t, item.Images[0], item.Image)
	assert.Equal(t, []string{"web", "food"}, item.Tags)
	assert.True(t, item.Featured)
	assert.Contains(t, repo.items, "harbor-cafe")

	body, ct = multipartBody(t, map[string]string{"title": "Harbor Cafe", "shortDescription": "again"},
		map[string][]byte{"cover.png": pngBytes})
	req = httptest.NewRequest(http.MethodPost, "/projects", body)
	req.Header.Set("Content-Type", ct)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "already exists")
}

func TestCreateProjectRejectsBadUploads(t *testing.T) {
	router, _, _ := newTestRouter(t)

	body, ct := multipartBody(t, map[string]string{"title": "No image", "shortDescription": "x"}, nil)
	req := httptest.NewRequest(http.MethodPost, "/projects", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"images":"required"`)

	body, ct = multipartBody(t, map[string]string{"title": "Text file", "shortDescription": "x"},
		map[string][]byte{"notes.txt": []byte("just some plain text")})
	req = httptest.NewRequest(http.MethodPost, "/projects", body)
	req.Header.Set("Content-Type", ct)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unsupported file type")
}

func TestPublicGetIncrementsViews(t *testing.T) {
	router, repo, _ := newTestRouter(t)
	repo.items["draft"] = Project{ID: "draft", Status: StatusDraft}
	repo.items["live"] = Project{ID: "live", Status: StatusPublished}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/projects/live", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, repo.items["live"].ViewCount)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/projects/draft", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/projects/draft", nil)
	req.Header.Set("X-Test-Admin", "1")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListCachesPublicResponses(t *testing.T) {
	router, repo, mc := newTestRouter(t)
	repo.items["live"] = Project{ID: "live", Status: StatusPublished, CreatedAt: time.Now()}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/projects", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, mc.data, 1)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/projects", nil))
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))

	req := httptest.NewRequest(http.MethodDelete, "/projects/live", nil)
	req.Header.Set("X-Test-Admin", "1")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, mc.data)
}

func adminRequest(method, path string, body io.Reader, contentType string) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Test-Admin", "1")
	return req
}

func TestCreateDuplicateLeavesNoFiles(t *testing.T) {
	dir := t.TempDir()
	disk, err := uploads.NewDiskStorage(dir, "/uploads")
	require.NoError(t, err)
	router, repo, _ := newRouterWithStorage(t, disk)
	repo.items["harbor-cafe"] = Project{ID: "harbor-cafe", Status: StatusPublished}

	body, ct := multipartBody(t, map[string]string{"title": "Harbor Cafe", "shortDescription": "again"},
		map[string][]byte{"cover.png": pngBytes})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, adminRequest(http.MethodPost, "/projects", body, ct))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "already exists")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUpdateMissingProjectRemovesNewFiles(t *testing.T) {
	dir := t.TempDir()
	disk, err := uploads.NewDiskStorage(dir, "/uploads")
	require.NoError(t, err)
	router, _, _ := newRouterWithStorage(t, disk)

	body, ct := multipartBody(t, map[string]string{"title": "Ghost"}, map[string][]byte{"cover.png": pngBytes})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, adminRequest(http.MethodPut, "/projects/ghost", body, ct))
	require.Equal(t, http.StatusNotFound, rec.Code)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUpdateRejectsBlankTitle(t *testing.T) {
	router, repo, _ := newTestRouter(t)
	repo.items["shop"] = Project{ID: "shop", Title: "Shop", ShortDescription: "Original", Status: StatusPublished}

	body, ct := multipartBody(t, map[string]string{"title": "", "shortDescription": ""}, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, adminRequest(http.MethodPut, "/projects/shop", body, ct))
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"title":"required"`)
	assert.Contains(t, rec.Body.String(), `"shortDescription":"required"`)
	assert.Equal(t, "Shop", repo.items["shop"].Title)
}

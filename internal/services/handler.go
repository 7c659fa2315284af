package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"smarthub-backend/internal/cache"
	"smarthub-backend/internal/httpx"
	"smarthub-backend/internal/middleware"
	"smarthub-backend/internal/transport"
	"smarthub-backend/internal/validation"
)

const (
	cachePrefix     = "services:"
	publicListCache = cachePrefix + "public"
)

type Handler struct {
	manager  *Manager
	cache    cache.Cache
	cacheTTL time.Duration
	val      *validation.Validator
	log      *slog.Logger
}

func NewHandler(manager *Manager, c cache.Cache, cacheTTL time.Duration, val *validation.Validator, log *slog.Logger) *Handler {
	if c == nil {
		c = cache.NewNoop()
	}
	return &Handler{
		manager:  manager,
		cache:    c,
		cacheTTL: cacheTTL,
		val:      val,
		log:      log,
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	_, admin := middleware.IdentityFromContext(r.Context())

	if !admin {
		if cached, ok, err := h.cache.Get(r.Context(), publicListCache); err == nil && ok {
			log.Info("services list: cache hit")
			transport.WriteCachedJSON(w, http.StatusOK, cached)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	items, err := h.manager.List(ctx, admin)
	if err != nil {
		log.Error("services list: database error", slog.String("error", err.Error()))
		transport.WriteInternal(w)
		return
	}

	response := map[string]interface{}{
		"items": items,
	}
	if !admin {
		if payload, err := json.Marshal(response); err == nil {
			_ = h.cache.Set(r.Context(), publicListCache, payload, h.cacheTTL)
		}
	}

	log.Info("services list: ok", slog.Int("count", len(items)), slog.Bool("admin", admin))
	transport.WriteJSON(w, http.StatusOK, response)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		transport.WriteError(w, http.StatusBadRequest, "missing id", nil)
		return
	}
	_, admin := middleware.IdentityFromContext(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	item, err := h.manager.Get(ctx, id, admin)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Warn("services get: not found", slog.String("service_id", id))
			transport.WriteError(w, http.StatusNotFound, "service not found", nil)
			return
		}
		log.Error("services get: database error", slog.String("error", err.Error()))
		transport.WriteInternal(w)
		return
	}

	log.Info("services get: ok", slog.String("service_id", id))
	transport.WriteJSON(w, http.StatusOK, item)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)

	var in Input
	if err := httpx.DecodeJSON(r.Body, &in); err != nil {
		log.Warn("admin services create: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(in); err != nil {
		log.Warn("admin services create: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}
	if missing := in.MissingForCreate(); missing != nil {
		log.Warn("admin services create: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", missing)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	item, err := h.manager.Create(ctx, in)
	if err != nil {
		switch {
		case errors.Is(err, ErrDuplicateID):
			log.Warn("admin services create: duplicate id")
			transport.WriteError(w, http.StatusBadRequest, "service id already exists", map[string]string{"id": "unique"})
		case errors.Is(err, ErrInvalidID):
			transport.WriteError(w, http.StatusBadRequest, "validation error", map[string]string{"id": "slug"})
		default:
			log.Error("admin services create: database error", slog.String("error", err.Error()))
			transport.WriteInternal(w)
		}
		return
	}

	h.invalidate(r.Context())
	log.Info("admin services create: ok", slog.String("service_id", item.ID))
	transport.WriteJSON(w, http.StatusCreated, item)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		transport.WriteError(w, http.StatusBadRequest, "missing id", nil)
		return
	}

	var in Input
	if err := httpx.DecodeJSON(r.Body, &in); err != nil {
		log.Warn("admin services update: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(in); err != nil {
		log.Warn("admin services update: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	item, err := h.manager.Update(ctx, id, in)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Warn("admin services update: not found", slog.String("service_id", id))
			transport.WriteError(w, http.StatusNotFound, "service not found", nil)
			return
		}
		log.Error("admin services update: database error", slog.String("error", err.Error()))
		transport.WriteInternal(w)
		return
	}

	h.invalidate(r.Context())
	log.Info("admin services update: ok", slog.String("service_id", id))
	transport.WriteJSON(w, http.StatusOK, item)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		transport.WriteError(w, http.StatusBadRequest, "missing id", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.manager.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Warn("admin services delete: not found", slog.String("service_id", id))
			transport.WriteError(w, http.StatusNotFound, "service not found", nil)
			return
		}
		log.Error("admin services delete: database error", slog.String("error", err.Error()))
		transport.WriteInternal(w)
		return
	}

	h.invalidate(r.Context())
	log.Info("admin services delete: ok", slog.String("service_id", id))
	transport.WriteMessage(w, http.StatusOK, "service deleted")
}

func (h *Handler) invalidate(ctx context.Context) {
	if err := h.cache.DeletePrefix(ctx, cachePrefix); err != nil {
		h.log.Warn("services cache: invalidate failed", slog.String("error", err.Error()))
	}
}

func (h *Handler) logWithRequest(r *http.Request) *slog.Logger {
	if r == nil {
		return h.log
	}
	if id := middleware.RequestIDFromContext(r.Context()); id != "" {
		return h.log.With(slog.String("request_id", id))
	}
	return h.log
}

package profile

import (
	"context"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"smarthub-backend/internal/cache"
	"smarthub-backend/internal/httpx"
	"smarthub-backend/internal/middleware"
	"smarthub-backend/internal/transport"
	"smarthub-backend/internal/uploads"
	"smarthub-backend/internal/validation"
)

const cacheKey = "profile:" + ID

type Handler struct {
	service  *Service
	storage  uploads.InlineStorage
	limits   uploads.Limits
	cache    cache.Cache
	cacheTTL time.Duration
	val      *validation.Validator
	log      *slog.Logger
}

func NewHandler(service *Service, maxFileBytes int64, c cache.Cache, cacheTTL time.Duration, val *validation.Validator, log *slog.Logger) *Handler {
	if c == nil {
		c = cache.NewNoop()
	}
	return &Handler{
		service: service,
		storage: uploads.NewInlineStorage(),
		limits: uploads.Limits{
			MaxFileBytes:  maxFileBytes,
			MaxFiles:      1,
			MaxTotalBytes: uploads.InlineBudgetBytes,
			AllowedTypes:  uploads.ImageTypes,
		},
		cache:    c,
		cacheTTL: cacheTTL,
		val:      val,
		log:      log,
	}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)

	if cached, ok, err := h.cache.Get(r.Context(), cacheKey); err == nil && ok {
		log.Info("profile get: cache hit")
		transport.WriteCachedJSON(w, http.StatusOK, cached)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	item, err := h.service.Get(ctx)
	if err != nil {
		log.Error("profile get: database error", slog.String("error", err.Error()))
		transport.WriteInternal(w)
		return
	}

	if payload, err := json.Marshal(item); err == nil {
		_ = h.cache.Set(r.Context(), cacheKey, payload, h.cacheTTL)
	}
	log.Info("profile get: ok")
	transport.WriteJSON(w, http.StatusOK, item)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)

	perFile := h.limits.MaxFileBytes
	if perFile <= 0 {
		perFile = uploads.DefaultMaxFileBytes
	}
	form, err := uploads.ParseForm(w, r, perFile+1<<20)
	if err != nil {
		log.Warn("admin profile update: invalid form", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	defer form.RemoveAll()

	in, details := parseInput(form)
	if details != nil {
		log.Warn("admin profile update: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", details)
		return
	}
	if err := h.val.Struct(in); err != nil {
		log.Warn("admin profile update: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	files, err := uploads.ReadFiles(form, "avatar", h.limits)
	if err != nil {
		log.Warn("admin profile update: rejected upload", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	avatar := ""
	if len(files) > 0 {
		if avatar, err = h.storage.Save(ctx, files[0]); err != nil {
			log.Error("admin profile update: storage error", slog.String("error", err.Error()))
			transport.WriteInternal(w)
			return
		}
	}

	item, err := h.service.Update(ctx, in, avatar)
	if err != nil {
		log.Error("admin profile update: database error", slog.String("error", err.Error()))
		transport.WriteInternal(w)
		return
	}

	if err := h.cache.Delete(r.Context(), cacheKey); err != nil {
		log.Warn("profile cache: invalidate failed", slog.String("error", err.Error()))
	}
	log.Info("admin profile update: ok", slog.Bool("avatar", avatar != ""))
	transport.WriteJSON(w, http.StatusOK, item)
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

// parseInput reads the text fields of a profile form. socialLinks, stats and
// team are JSON encoded fields.
func parseInput(form *multipart.Form) (Input, map[string]string) {
	in := Input{Present: map[string]bool{}}

	textFields := map[string]*string{
		"name":         &in.Name,
		"title":        &in.Title,
		"bio":          &in.Bio,
		"email":        &in.Email,
		"phone":        &in.Phone,
		"location":     &in.Location,
		"resumeUrl":    &in.ResumeURL,
		"availability": &in.Availability,
	}
	for key, dst := range textFields {
		if v := httpx.FormString(form, key); v != nil {
			*dst = *v
			in.Present[key] = true
		}
	}

	details := map[string]string{}
	jsonFields := map[string]interface{}{
		"socialLinks": &in.SocialLinks,
		"stats":       &in.Stats,
		"team":        &in.Team,
	}
	for key, dst := range jsonFields {
		present, err := httpx.FormJSON(form, key, dst)
		if err != nil {
			details[key] = "invalid"
			continue
		}
		if present {
			in.Present[key] = true
		}
	}

	remove, err := httpx.FormBool(form, "removeAvatar")
	if err != nil {
		details["removeAvatar"] = "boolean"
	} else if remove != nil {
		in.RemoveAvatar = *remove
	}

	if len(details) == 0 {
		return in, nil
	}
	return in, details
}

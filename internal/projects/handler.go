package projects

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"smarthub-backend/internal/cache"
	"smarthub-backend/internal/httpx"
	"smarthub-backend/internal/middleware"
	"smarthub-backend/internal/transport"
	"smarthub-backend/internal/uploads"
	"smarthub-backend/internal/validation"
)

const cachePrefix = "projects:"

type Handler struct {
	service  *Service
	storage  uploads.Storage
	limits   uploads.Limits
	cache    cache.Cache
	cacheTTL time.Duration
	val      *validation.Validator
	log      *slog.Logger
}

func NewHandler(service *Service, storage uploads.Storage, maxFileBytes int64, c cache.Cache, cacheTTL time.Duration, val *validation.Validator, log *slog.Logger) *Handler {
	if c == nil {
		c = cache.NewNoop()
	}
	return &Handler{
		service: service,
		storage: storage,
		limits: uploads.Limits{
			MaxFileBytes: maxFileBytes,
			MaxFiles:     MaxImages,
			AllowedTypes: uploads.ImageTypes,
		}.ForStorage(storage),
		cache:    c,
		cacheTTL: cacheTTL,
		val:      val,
		log:      log,
	}
}

func (h *Handler) maxBody() int64 {
	perFile := h.limits.MaxFileBytes
	if perFile <= 0 {
		perFile = uploads.DefaultMaxFileBytes
	}
	return int64(MaxImages)*perFile + 1<<20
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	query := r.URL.Query()
	page, err := httpx.ParsePage(query, 12, 50)
	if err != nil {
		log.Warn("projects list: invalid query", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	_, admin := middleware.IdentityFromContext(r.Context())
	filter := ListFilter{
		Search:      query.Get("search"),
		Tag:         query.Get("tag"),
		AllStatuses: admin,
	}
	if admin {
		filter.Status = query.Get("status")
	}
	if raw := strings.TrimSpace(query.Get("featured")); raw != "" {
		featured, err := strconv.ParseBool(raw)
		if err != nil {
			transport.WriteError(w, http.StatusBadRequest, "invalid query", map[string]string{"featured": "boolean"})
			return
		}
		filter.Featured = &featured
	}

	cacheKey := ""
	if !admin {
		cacheKey = listCacheKey(filter, page)
		if cached, ok, err := h.cache.Get(r.Context(), cacheKey); err == nil && ok {
			log.Info("projects list: cache hit")
			transport.WriteCachedJSON(w, http.StatusOK, cached)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	items, page, err := h.service.List(ctx, filter, page)
	if err != nil {
		if errors.Is(err, ErrInvalidStatus) {
			transport.WriteError(w, http.StatusBadRequest, "invalid query", map[string]string{"status": "oneof"})
			return
		}
		log.Error("projects list: database error", slog.String("error", err.Error()))
		transport.WriteInternal(w)
		return
	}

	response := map[string]interface{}{
		"items":      items,
		"pagination": page,
	}
	if cacheKey != "" {
		if payload, err := json.Marshal(response); err == nil {
			_ = h.cache.Set(r.Context(), cacheKey, payload, h.cacheTTL)
		}
	}

	log.Info("projects list: ok", slog.Int("count", len(items)), slog.Bool("admin", admin))
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

	item, err := h.service.Get(ctx, id, admin)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Warn("projects get: not found", slog.String("project_id", id))
			transport.WriteError(w, http.StatusNotFound, "project not found", nil)
			return
		}
		log.Error("projects get: database error", slog.String("error", err.Error()))
		transport.WriteInternal(w)
		return
	}

	log.Info("projects get: ok", slog.String("project_id", id))
	transport.WriteJSON(w, http.StatusOK, item)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)

	form, err := uploads.ParseForm(w, r, h.maxBody())
	if err != nil {
		log.Warn("admin projects create: invalid form", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	defer form.RemoveAll()

	in, details := parseInput(form)
	if details != nil {
		transport.WriteError(w, http.StatusBadRequest, "validation error", details)
		return
	}
	if err := h.val.Struct(in); err != nil {
		log.Warn("admin projects create: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}
	if missing := in.MissingForCreate(); missing != nil {
		log.Warn("admin projects create: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", missing)
		return
	}

	files, err := h.readImages(form)
	if err != nil {
		log.Warn("admin projects create: rejected upload", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if len(files) == 0 {
		transport.WriteError(w, http.StatusBadRequest, "validation error", map[string]string{"images": "required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	if _, err := h.service.ResolveID(ctx, in); err != nil {
		h.writeCreateError(w, log, err)
		return
	}

	refs, err := uploads.SaveAll(ctx, h.storage, files)
	if err != nil {
		h.writeUploadError(w, log, "admin projects create", err)
		return
	}

	item, err := h.service.Create(ctx, in, refs)
	if err != nil {
		h.discard(log, "admin projects create", refs)
		h.writeCreateError(w, log, err)
		return
	}

	h.invalidate(r.Context())
	log.Info("admin projects create: ok", slog.String("project_id", item.ID), slog.Int("images", len(item.Images)))
	transport.WriteJSON(w, http.StatusCreated, item)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		transport.WriteError(w, http.StatusBadRequest, "missing id", nil)
		return
	}

	form, err := uploads.ParseForm(w, r, h.maxBody())
	if err != nil {
		log.Warn("admin projects update: invalid form", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	defer form.RemoveAll()

	in, details := parseInput(form)
	if details != nil {
		transport.WriteError(w, http.StatusBadRequest, "validation error", details)
		return
	}
	if err := h.val.Struct(in); err != nil {
		log.Warn("admin projects update: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}
	if blank := in.BlankRequired(); blank != nil {
		log.Warn("admin projects update: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", blank)
		return
	}

	files, err := h.readImages(form)
	if err != nil {
		log.Warn("admin projects update: rejected upload", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	refs, err := uploads.SaveAll(ctx, h.storage, files)
	if err != nil {
		h.writeUploadError(w, log, "admin projects update", err)
		return
	}

	item, err := h.service.Update(ctx, id, in, refs)
	if err != nil {
		h.discard(log, "admin projects update", refs)
		switch {
		case errors.Is(err, ErrNotFound):
			log.Warn("admin projects update: not found", slog.String("project_id", id))
			transport.WriteError(w, http.StatusNotFound, "project not found", nil)
		case errors.Is(err, ErrRequired):
			transport.WriteError(w, http.StatusBadRequest, "validation error", in.BlankRequired())
		case errors.Is(err, ErrImageRequired):
			transport.WriteError(w, http.StatusBadRequest, "validation error", map[string]string{"images": "required"})
		case errors.Is(err, ErrTooManyImages):
			transport.WriteError(w, http.StatusBadRequest, "validation error", map[string]string{"images": "max"})
		case errors.Is(err, ErrImagesTooLarge):
			transport.WriteError(w, http.StatusBadRequest, "validation error", map[string]string{"images": "size"})
		default:
			log.Error("admin projects update: database error", slog.String("error", err.Error()))
			transport.WriteInternal(w)
		}
		return
	}

	h.invalidate(r.Context())
	log.Info("admin projects update: ok", slog.String("project_id", item.ID))
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

	if err := h.service.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Warn("admin projects delete: not found", slog.String("project_id", id))
			transport.WriteError(w, http.StatusNotFound, "project not found", nil)
			return
		}
		log.Error("admin projects delete: database error", slog.String("error", err.Error()))
		transport.WriteInternal(w)
		return
	}

	h.invalidate(r.Context())
	log.Info("admin projects delete: ok", slog.String("project_id", id))
	transport.WriteMessage(w, http.StatusOK, "project deleted")
}

func (h *Handler) readImages(form *multipart.Form) ([]uploads.File, error) {
	files, err := uploads.ReadFiles(form, "images", h.limits)
	if err != nil {
		return nil, err
	}
	single, err := uploads.ReadFiles(form, "image", h.limits)
	if err != nil {
		return nil, err
	}
	files = append(files, single...)
	if len(files) > MaxImages {
		return nil, uploads.ErrTooManyFiles
	}
	if err := uploads.CheckTotal(files, h.limits.MaxTotalBytes); err != nil {
		return nil, err
	}
	return files, nil
}

func (h *Handler) writeCreateError(w http.ResponseWriter, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, ErrDuplicateID):
		log.Warn("admin projects create: duplicate id")
		transport.WriteError(w, http.StatusBadRequest, "project id already exists", map[string]string{"id": "unique"})
	case errors.Is(err, ErrInvalidID):
		transport.WriteError(w, http.StatusBadRequest, "validation error", map[string]string{"id": "slug"})
	case errors.Is(err, ErrImageRequired):
		transport.WriteError(w, http.StatusBadRequest, "validation error", map[string]string{"images": "required"})
	case errors.Is(err, ErrTooManyImages):
		transport.WriteError(w, http.StatusBadRequest, "validation error", map[string]string{"images": "max"})
	case errors.Is(err, ErrImagesTooLarge):
		transport.WriteError(w, http.StatusBadRequest, "validation error", map[string]string{"images": "size"})
	default:
		log.Error("admin projects create: database error", slog.String("error", err.Error()))
		transport.WriteInternal(w)
	}
}

// discard removes files saved for a write that did not happen. It runs on a
// fresh context so a timed out request still cleans up.
func (h *Handler) discard(log *slog.Logger, op string, refs []string) {
	if len(refs) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := uploads.DeleteAll(ctx, h.storage, refs); err != nil {
		log.Warn(op+": cleanup failed", slog.String("error", err.Error()))
	}
}

func (h *Handler) writeUploadError(w http.ResponseWriter, log *slog.Logger, op string, err error) {
	if uploads.IsClientError(err) {
		log.Warn(op+": upload failed", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	log.Error(op+": storage error", slog.String("error", err.Error()))
	transport.WriteInternal(w)
}

func (h *Handler) invalidate(ctx context.Context) {
	if err := h.cache.DeletePrefix(ctx, cachePrefix); err != nil {
		h.log.Warn("projects cache: invalidate failed", slog.String("error", err.Error()))
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

func listCacheKey(filter ListFilter, page httpx.Page) string {
	v := url.Values{}
	v.Set("search", strings.ToLower(strings.TrimSpace(filter.Search)))
	v.Set("tag", strings.TrimSpace(filter.Tag))
	if filter.Featured != nil {
		v.Set("featured", strconv.FormatBool(*filter.Featured))
	}
	v.Set("page", strconv.FormatInt(page.Page, 10))
	v.Set("limit", strconv.FormatInt(page.Limit, 10))
	return cachePrefix + "list:" + v.Encode()
}

// parseInput reads the text fields of a project form.
func parseInput(form *multipart.Form) (Input, map[string]string) {
	in := Input{Present: map[string]bool{}}

	textFields := map[string]*string{
		"id":               &in.ID,
		"title":            &in.Title,
		"shortDescription": &in.ShortDescription,
		"fullDescription":  &in.FullDescription,
		"client":           &in.Client,
		"liveUrl":          &in.LiveURL,
		"repoUrl":          &in.RepoURL,
		"status":           &in.Status,
	}
	for key, dst := range textFields {
		if v := httpx.FormString(form, key); v != nil {
			*dst = *v
			in.Present[key] = true
		}
	}
	in.ID = strings.ToLower(in.ID)
	in.Status = strings.ToLower(in.Status)

	details := map[string]string{}
	lists := map[string]*[]string{
		"tags":           &in.Tags,
		"tools":          &in.Tools,
		"existingImages": &in.KeepImages,
	}
	for key, dst := range lists {
		v, err := httpx.FormList(form, key)
		if err != nil {
			details[key] = "invalid"
			continue
		}
		if v != nil {
			*dst = *v
			in.Present[key] = true
		}
	}

	if year, err := httpx.FormInt(form, "year"); err != nil {
		details["year"] = "number"
	} else if year != nil {
		in.Year = *year
		in.Present["year"] = true
	}
	if featured, err := httpx.FormBool(form, "featured"); err != nil {
		details["featured"] = "boolean"
	} else if featured != nil {
		in.Featured = *featured
		in.Present["featured"] = true
	}

	if len(details) > 0 {
		return in, details
	}
	return in, nil
}

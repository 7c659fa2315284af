package admins

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"smarthub-backend/internal/auth"
	"smarthub-backend/internal/httpx"
	"smarthub-backend/internal/middleware"
	"smarthub-backend/internal/transport"
	"smarthub-backend/internal/validation"
)

type Handler struct {
	service *Service
	val     *validation.Validator
	log     *slog.Logger
}

func NewHandler(service *Service, val *validation.Validator, log *slog.Logger) *Handler {
	return &Handler{
		service: service,
		val:     val,
		log:     log,
	}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)

	var req LoginRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("auth login: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("auth login: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, err := h.service.Login(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			log.Warn("auth login: invalid credentials", slog.String("email", req.Email))
			transport.WriteError(w, http.StatusUnauthorized, "invalid credentials", nil)
		case errors.Is(err, ErrAccountLocked):
			log.Warn("auth login: account locked", slog.String("email", req.Email))
			transport.WriteError(w, http.StatusForbidden, "account temporarily locked, try again later", nil)
		default:
			log.Error("auth login: database error", slog.String("error", err.Error()))
			transport.WriteInternal(w)
		}
		return
	}

	log.Info("auth login: ok", slog.String("admin_id", res.Admin.ID))
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"token":     res.Token,
		"expiresAt": res.ExpiresAt,
		"admin":     res.Admin,
	})
}

func (h *Handler) Setup(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)

	var req SetupRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil && !errors.Is(err, io.EOF) {
		log.Warn("auth setup: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("auth setup: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 40*time.Second)
	defer cancel()

	admin, err := h.service.Setup(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, ErrDatabaseUnavailable):
			log.Error("auth setup: database unavailable")
			transport.WriteError(w, http.StatusServiceUnavailable, "database unavailable", nil)
		case errors.Is(err, ErrAlreadyInitialized):
			log.Warn("auth setup: already initialized")
			transport.WriteError(w, http.StatusBadRequest, "admin already initialized", nil)
		case errors.Is(err, ErrSetupNotConfigured), errors.Is(err, auth.ErrPasswordTooShort):
			log.Warn("auth setup: missing password", slog.String("error", err.Error()))
			transport.WriteError(w, http.StatusBadRequest, "validation error", map[string]string{"password": "min"})
		default:
			log.Error("auth setup: database error", slog.String("error", err.Error()))
			transport.WriteInternal(w)
		}
		return
	}

	log.Info("auth setup: ok", slog.String("admin_id", admin.ID))
	transport.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"message": "admin account created",
		"admin":   admin,
	})
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)

	var req RegisterRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("auth register: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("auth register: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	admin, err := h.service.Register(ctx, req)
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			log.Warn("auth register: duplicate email")
			transport.WriteError(w, http.StatusBadRequest, "email already registered", map[string]string{"email": "unique"})
			return
		}
		log.Error("auth register: database error", slog.String("error", err.Error()))
		transport.WriteInternal(w)
		return
	}

	log.Info("auth register: ok", slog.String("admin_id", admin.ID), slog.String("role", admin.Role))
	transport.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"admin":   admin,
	})
}

func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	admin, err := h.service.Verify(ctx, identity.AdminID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			log.Warn("auth verify: unknown admin", slog.String("admin_id", identity.AdminID))
			transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
		case errors.Is(err, ErrInactive):
			log.Warn("auth verify: inactive admin", slog.String("admin_id", identity.AdminID))
			transport.WriteError(w, http.StatusForbidden, "account disabled", nil)
		default:
			log.Error("auth verify: database error", slog.String("error", err.Error()))
			transport.WriteInternal(w)
		}
		return
	}

	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"valid": true,
		"admin": admin,
	})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.logWithRequest(r).Info("auth logout: ok")
	transport.WriteMessage(w, http.StatusOK, "logged out")
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

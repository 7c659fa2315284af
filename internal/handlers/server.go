package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"smarthub-backend/internal/cache"
	"smarthub-backend/internal/config"
	"smarthub-backend/internal/db"
	"smarthub-backend/internal/middleware"
	"smarthub-backend/internal/notifications"
	"smarthub-backend/internal/validation"
)

// Mailer is the part of notifications.Mailer the shared handlers use.
type Mailer interface {
	Send(ctx context.Context, account notifications.Account, msg notifications.Message) notifications.Result
	SendAsync(account notifications.Account, msg notifications.Message)
	AdminEmail() string
	Status() []notifications.Status
}

// Server carries the dependencies of the routes that do not belong to a
// single resource package: contact, health and admin settings.
type Server struct {
	Cfg      *config.Config
	Contacts ContactStore
	Pinger   db.Pinger
	Val      *validation.Validator
	Log      *slog.Logger
	Cache    cache.Cache
	Mailer   Mailer
}

func (s *Server) logWithRequest(r *http.Request) *slog.Logger {
	if r == nil {
		return s.Log
	}
	if id := middleware.RequestIDFromContext(r.Context()); id != "" {
		return s.Log.With(slog.String("request_id", id))
	}
	return s.Log
}

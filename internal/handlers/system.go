package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"smarthub-backend/internal/config"
	"smarthub-backend/internal/httpx"
	"smarthub-backend/internal/notifications"
	"smarthub-backend/internal/transport"
)

// Health answers liveness checks; a database outage is reported, not failed.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	database := "down"
	if s.Pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.Pinger.Ping(ctx); err == nil {
			database = "up"
		} else {
			s.logWithRequest(r).Warn("health: database ping failed", slog.String("error", err.Error()))
		}
	}

	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"time":     time.Now().In(s.Cfg.Timezone).Format(time.RFC3339),
		"database": database,
	})
}

type mailAccountSummary struct {
	Driver     string `json:"driver"`
	Configured bool   `json:"configured"`
	From       string `json:"from,omitempty"`
	Host       string `json:"host,omitempty"`
}

func summarize(acc config.MailAccount) mailAccountSummary {
	summary := mailAccountSummary{
		Driver:     acc.Driver,
		Configured: acc.Configured(),
		From:       acc.From,
	}
	if acc.Driver == config.MailDriverSMTP {
		summary.Host = acc.Host
	}
	return summary
}

func (s *Server) AdminSettings(w http.ResponseWriter, r *http.Request) {
	cacheBackend := "none"
	if s.Cache != nil {
		cacheBackend = s.Cache.Name()
	}
	adminEmail := s.Cfg.AdminEmail
	if s.Mailer != nil && s.Mailer.AdminEmail() != "" {
		adminEmail = s.Mailer.AdminEmail()
	}

	s.logWithRequest(r).Info("admin settings: ok")
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"environment":    s.Cfg.Env,
		"uploadMode":     s.Cfg.UploadMode,
		"maxUploadBytes": s.Cfg.MaxUploadBytes,
		"cacheBackend":   cacheBackend,
		"adminEmail":     adminEmail,
		"timezone":       s.Cfg.Timezone.String(),
		"mail": map[string]interface{}{
			"retries":   s.Cfg.MailRetries,
			"primary":   summarize(s.Cfg.MailPrimary),
			"secondary": summarize(s.Cfg.MailSecondary),
		},
	})
}

func (s *Server) AdminEmailStatus(w http.ResponseWriter, r *http.Request) {
	statuses := []notifications.Status{}
	if s.Mailer != nil {
		statuses = s.Mailer.Status()
	}
	ready := false
	for _, st := range statuses {
		ready = ready || st.Ready
	}

	s.logWithRequest(r).Info("admin email status: ok", slog.Bool("ready", ready))
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"ready":      ready,
		"transports": statuses,
	})
}

type TestEmailRequest struct {
	Account string `json:"account" validate:"omitempty,oneof=primary secondary"`
	To      string `json:"to" validate:"omitempty,email"`
}

// AdminTestEmail sends a test message synchronously and returns the result.
func (s *Server) AdminTestEmail(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	var req TestEmailRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("admin test email: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	req.Account = strings.ToLower(strings.TrimSpace(req.Account))
	req.To = strings.TrimSpace(req.To)
	if err := s.Val.Struct(req); err != nil {
		log.Warn("admin test email: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(s.Val.ValidationErrors(err)))
		return
	}
	if s.Mailer == nil {
		transport.WriteError(w, http.StatusServiceUnavailable, "mailer disabled", nil)
		return
	}

	account := notifications.Primary
	if req.Account != "" {
		account = notifications.Account(req.Account)
	}
	to := req.To
	if to == "" {
		to = s.Mailer.AdminEmail()
	}
	if to == "" {
		transport.WriteError(w, http.StatusBadRequest, "validation error", map[string]string{"to": "required"})
		return
	}

	email, err := notifications.TestMessage(account, time.Now().In(s.Cfg.Timezone))
	if err != nil {
		log.Error("admin test email: render failed", slog.String("error", err.Error()))
		transport.WriteInternal(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 45*time.Second)
	defer cancel()

	result := s.Mailer.Send(ctx, account, email.Message(to, ""))
	if result.Success {
		log.Info("admin test email: sent", slog.String("account", string(result.Account)), slog.Int("attempts", result.Attempts))
	} else {
		log.Warn("admin test email: failed", slog.String("error", result.Error))
	}
	transport.WriteJSON(w, http.StatusOK, result)
}

package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"smarthub-backend/internal/httpx"
	"smarthub-backend/internal/models"
	"smarthub-backend/internal/notifications"
	"smarthub-backend/internal/transport"
)

type ContactRequest struct {
	Name    string `json:"name" validate:"required,min=2,max=100"`
	Email   string `json:"email" validate:"required,email,max=200"`
	Phone   string `json:"phone" validate:"omitempty,phone"`
	Subject string `json:"subject" validate:"omitempty,max=200"`
	Message string `json:"message" validate:"required,min=10,max=5000"`
}

func (req *ContactRequest) trim() {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Phone = strings.TrimSpace(req.Phone)
	req.Subject = strings.TrimSpace(req.Subject)
	req.Message = strings.TrimSpace(req.Message)
}

func (s *Server) CreateContact(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	var req ContactRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("contact create: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	req.trim()

	if err := s.Val.Struct(req); err != nil {
		log.Warn("contact create: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(s.Val.ValidationErrors(err)))
		return
	}

	msg := models.ContactMessage{
		ID:        primitive.NewObjectID().Hex(),
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Subject:   req.Subject,
		Message:   req.Message,
		IPAddress: httpx.ClientIP(r),
		UserAgent: r.UserAgent(),
		CreatedAt: time.Now().In(s.Cfg.Timezone),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.Contacts.Insert(ctx, msg); err != nil {
		log.Error("contact create: database error", slog.String("error", err.Error()))
		transport.WriteInternal(w)
		return
	}

	s.notifyContact(log, msg)

	log.Info("contact create: stored", slog.String("contact_id", msg.ID))
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Thanks, your message has been received.",
	})
}

// notifyContact queues the sender confirmation and the admin notice without
// waiting for delivery.
func (s *Server) notifyContact(log *slog.Logger, msg models.ContactMessage) {
	if s.Mailer == nil {
		log.Warn("contact notify: mailer disabled")
		return
	}
	data := notifications.ContactData{
		Name:       msg.Name,
		Email:      msg.Email,
		Phone:      msg.Phone,
		Subject:    msg.Subject,
		Message:    msg.Message,
		ReceivedAt: msg.CreatedAt,
	}

	if email, err := notifications.ContactConfirmation(data); err != nil {
		log.Error("contact notify: render confirmation failed", slog.String("error", err.Error()))
	} else {
		s.Mailer.SendAsync(notifications.Primary, email.Message(msg.Email, msg.Name))
	}

	admin := s.Mailer.AdminEmail()
	if admin == "" {
		log.Warn("contact notify: admin email not configured")
		return
	}
	notice, err := notifications.ContactAdminNotice(data)
	if err != nil {
		log.Error("contact notify: render admin notice failed", slog.String("error", err.Error()))
		return
	}
	out := notice.Message(admin, "")
	out.ReplyTo = msg.Email
	s.Mailer.SendAsync(notifications.Secondary, out)
}

func (s *Server) AdminListContacts(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	page, err := httpx.ParsePage(r.URL.Query(), 20, 100)
	if err != nil {
		log.Warn("admin contacts list: invalid query", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	items, err := s.Contacts.List(ctx, page.Limit, page.Skip())
	if err != nil {
		log.Error("admin contacts list: database error", slog.String("error", err.Error()))
		transport.WriteInternal(w)
		return
	}
	total, err := s.Contacts.Count(ctx)
	if err != nil {
		log.Error("admin contacts list: database error", slog.String("error", err.Error()))
		transport.WriteInternal(w)
		return
	}

	log.Info("admin contacts list: ok", slog.Int("count", len(items)))
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"items":      items,
		"pagination": page.WithTotal(total),
	})
}

package requests

import (
	"context"
	"errors"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"smarthub-backend/internal/httpx"
	"smarthub-backend/internal/middleware"
	"smarthub-backend/internal/transport"
	"smarthub-backend/internal/uploads"
	"smarthub-backend/internal/validation"
)

// AttachmentTypes extends the image allow-list with PDF briefs.
var AttachmentTypes = append(append([]string{}, uploads.ImageTypes...), "application/pdf")

type Handler struct {
	service *Service
	storage uploads.InlineStorage
	limits  uploads.Limits
	val     *validation.Validator
	log     *slog.Logger
}

func NewHandler(service *Service, maxFileBytes int64, val *validation.Validator, log *slog.Logger) *Handler {
	return &Handler{
		service: service,
		storage: uploads.NewInlineStorage(),
		limits: uploads.Limits{
			MaxFileBytes:  maxFileBytes,
			MaxFiles:      MaxAttachments,
			MaxTotalBytes: uploads.InlineBudgetBytes,
			AllowedTypes:  AttachmentTypes,
		},
		val: val,
		log: log,
	}
}

func (h *Handler) maxBody() int64 {
	perFile := h.limits.MaxFileBytes
	if perFile <= 0 {
		perFile = uploads.DefaultMaxFileBytes
	}
	total := int64(MaxAttachments) * perFile
	if total > h.limits.MaxTotalBytes {
		total = h.limits.MaxTotalBytes
	}
	return total + 1<<20
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)

	var (
		in          SubmitInput
		attachments []Attachment
	)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		form, err := uploads.ParseForm(w, r, h.maxBody())
		if err != nil {
			log.Warn("requests submit: invalid form", slog.String("error", err.Error()))
			transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		defer form.RemoveAll()

		var details map[string]string
		in, details = parseSubmitForm(form)
		if details != nil {
			log.Warn("requests submit: validation error")
			transport.WriteError(w, http.StatusBadRequest, "validation error", details)
			return
		}
		attachments, err = h.readAttachments(r.Context(), form)
		if err != nil {
			if uploads.IsClientError(err) {
				log.Warn("requests submit: rejected upload", slog.String("error", err.Error()))
				transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
				return
			}
			log.Error("requests submit: attachment error", slog.String("error", err.Error()))
			transport.WriteInternal(w)
			return
		}
	} else if err := httpx.DecodeJSON(r.Body, &in); err != nil {
		log.Warn("requests submit: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}

	if err := h.val.Struct(in); err != nil {
		log.Warn("requests submit: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	item, err := h.service.Submit(ctx, in, attachments, ClientMeta{
		IPAddress: httpx.ClientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		var invalid *InvalidDataError
		switch {
		case errors.As(err, &invalid):
			log.Warn("requests submit: invalid additional data")
			transport.WriteError(w, http.StatusBadRequest, "validation error", invalid.Details)
		case errors.Is(err, ErrInvalidServiceType):
			transport.WriteError(w, http.StatusBadRequest, "validation error", map[string]string{"serviceType": "servicetype"})
		default:
			log.Error("requests submit: database error", slog.String("error", err.Error()))
			transport.WriteInternal(w)
		}
		return
	}

	log.Info("requests submit: ok",
		slog.String("reference", item.Reference),
		slog.String("service_type", item.ServiceType),
		slog.Int("attachments", len(item.Attachments)),
	)
	transport.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"success":   true,
		"id":        item.ID,
		"reference": item.Reference,
		"status":    item.Status,
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	query := r.URL.Query()
	page, err := httpx.ParsePage(query, 20, 100)
	if err != nil {
		log.Warn("admin requests list: invalid query", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	filter := ListFilter{
		Status:      query.Get("status"),
		ServiceType: query.Get("serviceType"),
		Search:      query.Get("search"),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	items, page, err := h.service.List(ctx, filter, page)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidStatus):
			transport.WriteError(w, http.StatusBadRequest, "invalid status", nil)
		case errors.Is(err, ErrInvalidServiceType):
			transport.WriteError(w, http.StatusBadRequest, "invalid service type", nil)
		default:
			log.Error("admin requests list: database error", slog.String("error", err.Error()))
			transport.WriteInternal(w)
		}
		return
	}

	log.Info("admin requests list: ok", slog.Int("count", len(items)), slog.Int64("total", page.Total))
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"items":      items,
		"pagination": page,
	})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		transport.WriteError(w, http.StatusBadRequest, "missing id", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	item, err := h.service.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Warn("admin requests get: not found", slog.String("request_id_param", id))
			transport.WriteError(w, http.StatusNotFound, "service request not found", nil)
			return
		}
		log.Error("admin requests get: database error", slog.String("error", err.Error()))
		transport.WriteInternal(w)
		return
	}

	log.Info("admin requests get: ok", slog.String("reference", item.Reference))
	transport.WriteJSON(w, http.StatusOK, item)
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		transport.WriteError(w, http.StatusBadRequest, "missing id", nil)
		return
	}

	var req StatusUpdateRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("admin requests status: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	req.Status = strings.ToLower(strings.TrimSpace(req.Status))
	if err := h.val.Struct(req); err != nil {
		log.Warn("admin requests status: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	identity, _ := middleware.IdentityFromContext(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	updated, err := h.service.UpdateStatus(ctx, id, req, identity.AdminID)
	if err != nil {
		switch {
		case errors.Is(err, ErrMessageRequired):
			log.Warn("admin requests status: message required")
			transport.WriteError(w, http.StatusBadRequest, "validation error", map[string]string{"message": "required"})
		case errors.Is(err, ErrInvalidStatus):
			transport.WriteError(w, http.StatusBadRequest, "validation error", map[string]string{"status": "oneof"})
		case errors.Is(err, ErrNotFound):
			log.Warn("admin requests status: not found", slog.String("request_id_param", id))
			transport.WriteError(w, http.StatusNotFound, "service request not found", nil)
		case errors.Is(err, ErrConflict):
			log.Warn("admin requests status: conflict", slog.String("request_id_param", id))
			transport.WriteError(w, http.StatusConflict, err.Error(), nil)
		default:
			log.Error("admin requests status: database error", slog.String("error", err.Error()))
			transport.WriteInternal(w)
		}
		return
	}

	notifyCtx, cancelNotify := context.WithTimeout(r.Context(), 45*time.Second)
	defer cancelNotify()

	result := h.service.NotifyStatus(notifyCtx, updated)
	if !result.Success {
		log.Warn("admin requests status: notification failed",
			slog.String("reference", updated.Reference),
			slog.String("error", result.Error),
		)
	}

	log.Info("admin requests status: ok",
		slog.String("reference", updated.Reference),
		slog.String("status", updated.Status),
		slog.Bool("notified", result.Success),
	)
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"request":      updated,
		"notification": result,
	})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	stats, err := h.service.Stats(ctx)
	if err != nil {
		log.Error("admin requests stats: database error", slog.String("error", err.Error()))
		transport.WriteInternal(w)
		return
	}
	transport.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) readAttachments(ctx context.Context, form *multipart.Form) ([]Attachment, error) {
	files, err := uploads.ReadFiles(form, "attachments", h.limits)
	if err != nil {
		return nil, err
	}
	attachments := make([]Attachment, 0, len(files))
	for _, f := range files {
		data, err := h.storage.Save(ctx, f)
		if err != nil {
			return nil, err
		}
		attachments = append(attachments, Attachment{
			Name:     f.Name,
			MimeType: f.ContentType,
			Size:     f.Size,
			Data:     data,
		})
	}
	return attachments, nil
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

// parseSubmitForm reads the text fields of a submission. additionalData may be
// sent as one JSON field or as additionalData[key] fields.
func parseSubmitForm(form *multipart.Form) (SubmitInput, map[string]string) {
	var in SubmitInput
	textFields := map[string]*string{
		"serviceType":    &in.ServiceType,
		"clientName":     &in.ClientName,
		"clientEmail":    &in.ClientEmail,
		"clientPhone":    &in.ClientPhone,
		"company":        &in.Company,
		"projectDetails": &in.ProjectDetails,
		"budget":         &in.Budget,
		"timeline":       &in.Timeline,
	}
	for key, dst := range textFields {
		if v := httpx.FormString(form, key); v != nil {
			*dst = *v
		}
	}

	if _, err := httpx.FormJSON(form, "additionalData", &in.AdditionalData); err != nil {
		return in, map[string]string{"additionalData": "invalid"}
	}
	for key, values := range form.Value {
		if !strings.HasPrefix(key, "additionalData[") || !strings.HasSuffix(key, "]") || len(values) == 0 {
			continue
		}
		name := strings.TrimSuffix(strings.TrimPrefix(key, "additionalData["), "]")
		if name == "" {
			continue
		}
		if in.AdditionalData == nil {
			in.AdditionalData = AdditionalData{}
		}
		in.AdditionalData[name] = strings.TrimSpace(values[0])
	}
	return in, nil
}

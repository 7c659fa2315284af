package requests

import (
	"context"
	"log/slog"

	"smarthub-backend/internal/notifications"
)

// Mailer is the part of notifications.Mailer the request flow uses.
type Mailer interface {
	Send(ctx context.Context, account notifications.Account, msg notifications.Message) notifications.Result
	SendAsync(account notifications.Account, msg notifications.Message)
	AdminEmail() string
}

// MailNotifier renders request emails and hands them to the mailer. Client
// mail goes through the primary account, admin notices through the secondary.
type MailNotifier struct {
	mailer Mailer
	log    *slog.Logger
}

func NewMailNotifier(mailer Mailer, log *slog.Logger) *MailNotifier {
	return &MailNotifier{mailer: mailer, log: log}
}

func (n *MailNotifier) RequestSubmitted(item ServiceRequest) {
	data := requestData(item)

	confirmation, err := notifications.RequestConfirmation(data)
	if err != nil {
		n.log.Error("requests notify: render confirmation failed", slog.String("error", err.Error()))
	} else {
		n.mailer.SendAsync(notifications.Primary, confirmation.Message(item.ClientEmail, item.ClientName))
	}

	admin := n.mailer.AdminEmail()
	if admin == "" {
		n.log.Warn("requests notify: admin email not configured", slog.String("reference", item.Reference))
		return
	}
	notice, err := notifications.RequestAdminNotice(data)
	if err != nil {
		n.log.Error("requests notify: render admin notice failed", slog.String("error", err.Error()))
		return
	}
	msg := notice.Message(admin, "")
	msg.ReplyTo = item.ClientEmail
	n.mailer.SendAsync(notifications.Secondary, msg)
}

func (n *MailNotifier) StatusChanged(ctx context.Context, item ServiceRequest) notifications.Result {
	email, err := notifications.StatusUpdate(notifications.StatusData{
		Reference:   item.Reference,
		ClientName:  item.ClientName,
		ServiceType: item.ServiceType,
		Status:      item.Status,
		Message:     item.StatusMessage,
		UpdatedAt:   item.StatusUpdatedAt,
	})
	if err != nil {
		n.log.Error("requests notify: render status update failed", slog.String("error", err.Error()))
		return notifications.Result{Error: err.Error()}
	}
	return n.mailer.Send(ctx, notifications.Primary, email.Message(item.ClientEmail, item.ClientName))
}

func requestData(item ServiceRequest) notifications.RequestData {
	return notifications.RequestData{
		Reference:      item.Reference,
		ClientName:     item.ClientName,
		ClientEmail:    item.ClientEmail,
		ClientPhone:    item.ClientPhone,
		Company:        item.Company,
		ServiceType:    item.ServiceType,
		ProjectDetails: item.ProjectDetails,
		Budget:         item.Budget,
		Timeline:       item.Timeline,
		Attachments:    len(item.Attachments),
		AdditionalData: item.AdditionalData,
		SubmittedAt:    item.CreatedAt,
	}
}

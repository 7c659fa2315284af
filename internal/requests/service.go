package requests

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"smarthub-backend/internal/httpx"
	"smarthub-backend/internal/notifications"
)

var (
	ErrNotFound           = errors.New("service request not found")
	ErrInvalidStatus      = errors.New("invalid status")
	ErrInvalidServiceType = errors.New("invalid service type")
	ErrMessageRequired    = errors.New("a message is required when rejecting a request")
	ErrConflict           = errors.New("service request was modified concurrently")
)

const (
	referenceAttempts = 3
	updateAttempts    = 3
)

// InvalidDataError reports additionalData entries that failed validation.
type InvalidDataError struct {
	Details map[string]string
}

func (e *InvalidDataError) Error() string {
	return fmt.Sprintf("invalid additional data (%d fields)", len(e.Details))
}

type Notifier interface {
	RequestSubmitted(item ServiceRequest)
	StatusChanged(ctx context.Context, item ServiceRequest) notifications.Result
}

type Service struct {
	repo     Repository
	location *time.Location
	notifier Notifier
	now      func() time.Time
}

func NewService(repo Repository, location *time.Location, notifier Notifier) *Service {
	return &Service{
		repo:     repo,
		location: location,
		notifier: notifier,
		now:      time.Now,
	}
}

// clock returns the current time at the precision the database keeps.
func (s *Service) clock() time.Time {
	return s.now().In(s.location).Truncate(time.Millisecond)
}

// Submit stores a new request in pending state and queues the client
// confirmation and admin notice.
func (s *Service) Submit(ctx context.Context, in SubmitInput, attachments []Attachment, meta ClientMeta) (ServiceRequest, error) {
	serviceType := strings.ToLower(strings.TrimSpace(in.ServiceType))
	if !IsValidServiceType(serviceType) {
		return ServiceRequest{}, ErrInvalidServiceType
	}
	data := in.AdditionalData.Compact()
	if details := data.Validate(serviceType); details != nil {
		return ServiceRequest{}, &InvalidDataError{Details: details}
	}
	if attachments == nil {
		attachments = []Attachment{}
	}

	now := s.clock()
	item := ServiceRequest{
		ID:              primitive.NewObjectID().Hex(),
		ServiceType:     serviceType,
		ClientName:      strings.TrimSpace(in.ClientName),
		ClientEmail:     strings.ToLower(strings.TrimSpace(in.ClientEmail)),
		ClientPhone:     strings.TrimSpace(in.ClientPhone),
		Company:         strings.TrimSpace(in.Company),
		ProjectDetails:  strings.TrimSpace(in.ProjectDetails),
		Budget:          strings.TrimSpace(in.Budget),
		Timeline:        strings.TrimSpace(in.Timeline),
		AdditionalData:  data,
		Attachments:     attachments,
		Status:          StatusPending,
		StatusUpdatedAt: now,
		StatusHistory: []HistoryEntry{
			{Status: StatusPending, ChangedAt: now},
		},
		IPAddress: meta.IPAddress,
		UserAgent: truncate(meta.UserAgent, 500),
		CreatedAt: now,
		UpdatedAt: now,
	}

	var err error
	for attempt := 0; attempt < referenceAttempts; attempt++ {
		item.Reference = newReference()
		if err = s.repo.Create(ctx, item); err == nil {
			break
		}
		if !mongo.IsDuplicateKeyError(err) {
			return ServiceRequest{}, err
		}
	}
	if err != nil {
		return ServiceRequest{}, err
	}

	if s.notifier != nil {
		s.notifier.RequestSubmitted(item)
	}
	return item, nil
}

func (s *Service) List(ctx context.Context, filter ListFilter, page httpx.Page) ([]ServiceRequest, httpx.Page, error) {
	filter.Status = strings.ToLower(strings.TrimSpace(filter.Status))
	filter.ServiceType = strings.ToLower(strings.TrimSpace(filter.ServiceType))
	filter.Search = strings.TrimSpace(filter.Search)
	if filter.Status != "" && !IsValidStatus(filter.Status) {
		return nil, page, ErrInvalidStatus
	}
	if filter.ServiceType != "" && !IsValidServiceType(filter.ServiceType) {
		return nil, page, ErrInvalidServiceType
	}

	items, err := s.repo.List(ctx, filter, page.Limit, page.Skip())
	if err != nil {
		return nil, page, err
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, page, err
	}
	return items, page.WithTotal(total), nil
}

// Get accepts either the document id or the REQ- reference.
func (s *Service) Get(ctx context.Context, id string) (ServiceRequest, error) {
	id = strings.TrimSpace(id)
	var (
		item ServiceRequest
		err  error
	)
	if strings.HasPrefix(strings.ToUpper(id), referencePrefix) {
		item, err = s.repo.GetByReference(ctx, strings.ToUpper(id))
	} else {
		item, err = s.repo.GetByID(ctx, id)
	}
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ServiceRequest{}, ErrNotFound
		}
		return ServiceRequest{}, err
	}
	return item, nil
}

// UpdateStatus moves a request to a new status. Any source status is
// accepted. statusUpdatedAt always moves forward, even when the clock
// has not advanced past the stored value.
func (s *Service) UpdateStatus(ctx context.Context, id string, req StatusUpdateRequest, changedBy string) (ServiceRequest, error) {
	status := strings.ToLower(strings.TrimSpace(req.Status))
	if !IsValidStatus(status) {
		return ServiceRequest{}, ErrInvalidStatus
	}
	message := strings.TrimSpace(req.Message)
	if status == StatusRejected && message == "" {
		return ServiceRequest{}, ErrMessageRequired
	}

	for attempt := 0; attempt < updateAttempts; attempt++ {
		current, err := s.Get(ctx, id)
		if err != nil {
			return ServiceRequest{}, err
		}

		now := s.clock()
		if !now.After(current.StatusUpdatedAt) {
			now = current.StatusUpdatedAt.Add(time.Millisecond)
		}
		set := bson.M{
			"status":          status,
			"statusMessage":   message,
			"statusUpdatedAt": now,
			"updatedAt":       now,
		}
		entry := HistoryEntry{
			Status:    status,
			Message:   message,
			ChangedBy: changedBy,
			ChangedAt: now,
		}

		updated, err := s.repo.UpdateStatus(ctx, current.ID, current.StatusUpdatedAt, set, entry)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return ServiceRequest{}, err
		}
	}
	return ServiceRequest{}, ErrConflict
}

// NotifyStatus sends the status email for item and reports the outcome.
func (s *Service) NotifyStatus(ctx context.Context, item ServiceRequest) notifications.Result {
	if s.notifier == nil {
		return notifications.Result{Error: notifications.ErrNoTransport.Error()}
	}
	return s.notifier.StatusChanged(ctx, item)
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{ByStatus: make(map[string]int64, len(Statuses))}
	for _, status := range Statuses {
		stats.ByStatus[status] = counts[status]
		stats.Total += counts[status]
	}
	return stats, nil
}

func newReference() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return referencePrefix + strings.ToUpper(raw[:referenceRandomSize])
}

// truncate keeps at most limit bytes without splitting a rune.
func truncate(value string, limit int) string {
	value = strings.ToValidUTF8(strings.TrimSpace(value), "")
	if len(value) <= limit {
		return value
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}
	return value[:cut]
}

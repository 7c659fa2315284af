package requests

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"smarthub-backend/internal/models"
)

const (
	StatusPending    = "pending"
	StatusReviewing  = "reviewing"
	StatusApproved   = "approved"
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
	StatusRejected   = "rejected"

	MaxAttachments      = 5
	MaxAdditionalValue  = 500
	referencePrefix     = "REQ-"
	referenceRandomSize = 8
)

// Statuses lists the lifecycle in its natural order.
var Statuses = []string{
	StatusPending,
	StatusReviewing,
	StatusApproved,
	StatusInProgress,
	StatusCompleted,
	StatusRejected,
}

func IsValidStatus(value string) bool {
	for _, s := range Statuses {
		if s == value {
			return true
		}
	}
	return false
}

// additionalKeys bounds the extra intake fields accepted per service type.
var additionalKeys = map[string][]string{
	models.ServiceTypeWebDevelopment: {"pages", "features", "hasDomain", "hasHosting", "referenceSites"},
	models.ServiceTypeMobileApp:      {"platforms", "features", "hasDesign", "backendNeeded"},
	models.ServiceTypeUIUXDesign:     {"screens", "platform", "hasBrandGuide"},
	models.ServiceTypeBranding:       {"deliverables", "hasLogo", "industry"},
	models.ServiceTypeConsulting:     {"topic", "sessions", "preferredFormat"},
	models.ServiceTypeOther:          {"category"},
}

func IsValidServiceType(value string) bool {
	return models.IsServiceType(value)
}

func AllowedKeys(serviceType string) []string {
	return additionalKeys[serviceType]
}

type Attachment struct {
	Name     string `bson:"name" json:"name"`
	MimeType string `bson:"mimeType" json:"mimeType"`
	Size     int64  `bson:"size" json:"size"`
	Data     string `bson:"data,omitempty" json:"data,omitempty"`
}

type HistoryEntry struct {
	Status    string    `bson:"status" json:"status"`
	Message   string    `bson:"message,omitempty" json:"message,omitempty"`
	ChangedBy string    `bson:"changedBy,omitempty" json:"changedBy,omitempty"`
	ChangedAt time.Time `bson:"changedAt" json:"changedAt"`
}

type ServiceRequest struct {
	ID              string         `bson:"_id" json:"id"`
	Reference       string         `bson:"reference" json:"reference"`
	ServiceType     string         `bson:"serviceType" json:"serviceType"`
	ClientName      string         `bson:"clientName" json:"clientName"`
	ClientEmail     string         `bson:"clientEmail" json:"clientEmail"`
	ClientPhone     string         `bson:"clientPhone,omitempty" json:"clientPhone,omitempty"`
	Company         string         `bson:"company,omitempty" json:"company,omitempty"`
	ProjectDetails  string         `bson:"projectDetails" json:"projectDetails"`
	Budget          string         `bson:"budget,omitempty" json:"budget,omitempty"`
	Timeline        string         `bson:"timeline,omitempty" json:"timeline,omitempty"`
	AdditionalData  AdditionalData `bson:"additionalData,omitempty" json:"additionalData,omitempty"`
	Attachments     []Attachment   `bson:"attachments" json:"attachments"`
	Status          string         `bson:"status" json:"status"`
	StatusUpdatedAt time.Time      `bson:"statusUpdatedAt" json:"statusUpdatedAt"`
	StatusMessage   string         `bson:"statusMessage,omitempty" json:"statusMessage,omitempty"`
	StatusHistory   []HistoryEntry `bson:"statusHistory" json:"statusHistory"`
	IPAddress       string         `bson:"ipAddress,omitempty" json:"ipAddress,omitempty"`
	UserAgent       string         `bson:"userAgent,omitempty" json:"userAgent,omitempty"`
	CreatedAt       time.Time      `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time      `bson:"updatedAt" json:"updatedAt"`
}

// AdditionalData holds the per service type intake answers. JSON input may use
// numbers, booleans or string lists; they are stored as strings.
type AdditionalData map[string]string

func (d *AdditionalData) UnmarshalJSON(raw []byte) error {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		*d = nil
		return nil
	}
	var generic map[string]json.RawMessage
	if err := json.Unmarshal(raw, &generic); err != nil {
		return err
	}
	out := make(AdditionalData, len(generic))
	for k, v := range generic {
		s, err := scalarString(v)
		if err != nil {
			return errors.New("additionalData." + k + ": " + err.Error())
		}
		out[k] = s
	}
	*d = out
	return nil
}

func scalarString(raw json.RawMessage) (string, error) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(t), nil
	case bool:
		return strconv.FormatBool(t), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case []interface{}:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return "", errors.New("list values must be strings")
			}
			if s = strings.TrimSpace(s); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", "), nil
	default:
		return "", errors.New("unsupported value")
	}
}

// Validate checks keys against the service type and bounds value length.
func (d AdditionalData) Validate(serviceType string) map[string]string {
	allowed := make(map[string]struct{}, len(additionalKeys[serviceType]))
	for _, k := range additionalKeys[serviceType] {
		allowed[k] = struct{}{}
	}
	details := map[string]string{}
	for k, v := range d {
		if _, ok := allowed[k]; !ok {
			details["additionalData."+k] = "unknown"
			continue
		}
		if len(v) > MaxAdditionalValue {
			details["additionalData."+k] = "max"
		}
	}
	if len(details) == 0 {
		return nil
	}
	return details
}

// Compact drops empty answers.
func (d AdditionalData) Compact() AdditionalData {
	if len(d) == 0 {
		return nil
	}
	out := make(AdditionalData, len(d))
	for k, v := range d {
		if v = strings.TrimSpace(v); v != "" {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

type SubmitInput struct {
	ServiceType    string         `json:"serviceType" validate:"required,servicetype"`
	ClientName     string         `json:"clientName" validate:"required,min=2,max=100"`
	ClientEmail    string         `json:"clientEmail" validate:"required,email,max=200"`
	ClientPhone    string         `json:"clientPhone" validate:"omitempty,phone"`
	Company        string         `json:"company" validate:"omitempty,max=200"`
	ProjectDetails string         `json:"projectDetails" validate:"required,min=10,max=5000"`
	Budget         string         `json:"budget" validate:"omitempty,max=100"`
	Timeline       string         `json:"timeline" validate:"omitempty,max=100"`
	AdditionalData AdditionalData `json:"additionalData"`
}

type ClientMeta struct {
	IPAddress string
	UserAgent string
}

type StatusUpdateRequest struct {
	Status  string `json:"status" validate:"required,oneof=pending reviewing approved in-progress completed rejected"`
	Message string `json:"message" validate:"max=2000"`
}

type ListFilter struct {
	Status      string
	ServiceType string
	Search      string
}

type Stats struct {
	Total    int64            `json:"total"`
	ByStatus map[string]int64 `json:"byStatus"`
}

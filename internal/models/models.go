package models

import "time"

const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
)

const (
	ServiceTypeWebDevelopment = "web-development"
	ServiceTypeMobileApp      = "mobile-app"
	ServiceTypeUIUXDesign     = "ui-ux-design"
	ServiceTypeBranding       = "branding"
	ServiceTypeConsulting     = "consulting"
	ServiceTypeOther          = "other"
)

// ServiceTypes are the kinds of work a client can request.
var ServiceTypes = []string{
	ServiceTypeWebDevelopment,
	ServiceTypeMobileApp,
	ServiceTypeUIUXDesign,
	ServiceTypeBranding,
	ServiceTypeConsulting,
	ServiceTypeOther,
}

func IsServiceType(value string) bool {
	for _, t := range ServiceTypes {
		if t == value {
			return true
		}
	}
	return false
}

type ContactMessage struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	Name      string    `bson:"name" json:"name"`
	Email     string    `bson:"email" json:"email"`
	Phone     string    `bson:"phone,omitempty" json:"phone,omitempty"`
	Subject   string    `bson:"subject,omitempty" json:"subject,omitempty"`
	Message   string    `bson:"message" json:"message"`
	IPAddress string    `bson:"ipAddress,omitempty" json:"ipAddress,omitempty"`
	UserAgent string    `bson:"userAgent,omitempty" json:"userAgent,omitempty"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

package services

import (
	"strings"
	"time"
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

type Service struct {
	ID          string    `bson:"_id" json:"id"`
	Title       string    `bson:"title" json:"title"`
	Description string    `bson:"description" json:"description"`
	Icon        string    `bson:"icon,omitempty" json:"icon,omitempty"`
	Features    []string  `bson:"features" json:"features"`
	Price       string    `bson:"price,omitempty" json:"price,omitempty"`
	Status      string    `bson:"status" json:"status"`
	Order       int       `bson:"order" json:"order"`
	CreatedAt   time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Input is the JSON body of create and update calls; nil fields were not sent.
type Input struct {
	ID          string    `json:"id" validate:"omitempty,slug,max=80"`
	Title       *string   `json:"title" validate:"omitempty,min=2,max=120"`
	Description *string   `json:"description" validate:"omitempty,min=1,max=2000"`
	Icon        *string   `json:"icon" validate:"omitempty,max=100"`
	Features    *[]string `json:"features" validate:"omitempty,max=30,dive,max=200"`
	Price       *string   `json:"price" validate:"omitempty,max=100"`
	Status      string    `json:"status" validate:"omitempty,oneof=active inactive"`
	Order       *int      `json:"order" validate:"omitempty,gte=0"`
}

func (in Input) MissingForCreate() map[string]string {
	missing := map[string]string{}
	if in.Title == nil || strings.TrimSpace(*in.Title) == "" {
		missing["title"] = "required"
	}
	if in.Description == nil || strings.TrimSpace(*in.Description) == "" {
		missing["description"] = "required"
	}
	if len(missing) == 0 {
		return nil
	}
	return missing
}

func value(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

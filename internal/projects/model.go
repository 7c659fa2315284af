package projects

import (
	"strings"
	"time"
)

const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusArchived  = "archived"

	MaxImages = 10
)

var validStatuses = map[string]struct{}{
	StatusDraft:     {},
	StatusPublished: {},
	StatusArchived:  {},
}

func IsValidStatus(value string) bool {
	_, ok := validStatuses[value]
	return ok
}

type Project struct {
	ID               string    `bson:"_id" json:"id"`
	Title            string    `bson:"title" json:"title"`
	ShortDescription string    `bson:"shortDescription" json:"shortDescription"`
	FullDescription  string    `bson:"fullDescription,omitempty" json:"fullDescription,omitempty"`
	Image            string    `bson:"image" json:"image"`
	Images           []string  `bson:"images" json:"images"`
	Tags             []string  `bson:"tags" json:"tags"`
	Tools            []string  `bson:"tools" json:"tools"`
	Client           string    `bson:"client,omitempty" json:"client,omitempty"`
	Year             int       `bson:"year,omitempty" json:"year,omitempty"`
	LiveURL          string    `bson:"liveUrl,omitempty" json:"liveUrl,omitempty"`
	RepoURL          string    `bson:"repoUrl,omitempty" json:"repoUrl,omitempty"`
	Status           string    `bson:"status" json:"status"`
	ViewCount        int64     `bson:"viewCount" json:"viewCount"`
	Featured         bool      `bson:"featured" json:"featured"`
	CreatedAt        time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Input carries a submitted project form. Only fields listed in Present were
// sent; the rest keep their stored value on update.
type Input struct {
	ID               string   `form:"id" validate:"omitempty,slug,max=80"`
	Title            string   `form:"title" validate:"omitempty,min=2,max=200"`
	ShortDescription string   `form:"shortDescription" validate:"omitempty,max=500"`
	FullDescription  string   `form:"fullDescription" validate:"omitempty,max=20000"`
	Tags             []string `form:"tags" validate:"omitempty,max=30,dive,max=50"`
	Tools            []string `form:"tools" validate:"omitempty,max=30,dive,max=50"`
	Client           string   `form:"client" validate:"omitempty,max=200"`
	Year             int      `form:"year" validate:"omitempty,gte=1900,lte=2100"`
	LiveURL          string   `form:"liveUrl" validate:"omitempty,url"`
	RepoURL          string   `form:"repoUrl" validate:"omitempty,url"`
	Status           string   `form:"status" validate:"omitempty,oneof=draft published archived"`
	Featured         bool     `form:"featured"`
	// KeepImages lists already stored images that survive an update, in order.
	KeepImages []string `form:"existingImages" validate:"omitempty,max=10"`

	Present map[string]bool `form:"-"`
}

func (in Input) Has(field string) bool {
	return in.Present[field]
}

// MissingForCreate reports required fields absent from a create form.
func (in Input) MissingForCreate() map[string]string {
	missing := map[string]string{}
	if strings.TrimSpace(in.Title) == "" {
		missing["title"] = "required"
	}
	if strings.TrimSpace(in.ShortDescription) == "" {
		missing["shortDescription"] = "required"
	}
	if len(missing) == 0 {
		return nil
	}
	return missing
}

// BlankRequired reports required fields that an update sends empty.
func (in Input) BlankRequired() map[string]string {
	missing := map[string]string{}
	if in.Has("title") && strings.TrimSpace(in.Title) == "" {
		missing["title"] = "required"
	}
	if in.Has("shortDescription") && strings.TrimSpace(in.ShortDescription) == "" {
		missing["shortDescription"] = "required"
	}
	if len(missing) == 0 {
		return nil
	}
	return missing
}

type ListFilter struct {
	Search   string
	Tag      string
	Featured *bool
	Status   string
	// AllStatuses lifts the published-only restriction for authenticated callers.
	AllStatuses bool
}

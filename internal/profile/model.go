package profile

import "time"

// ID is the key of the single profile document.
const ID = "main"

const (
	AvailabilityAvailable   = "available"
	AvailabilityBusy        = "busy"
	AvailabilityUnavailable = "unavailable"
)

type SocialLinks struct {
	Website   string `bson:"website,omitempty" json:"website,omitempty" validate:"omitempty,url"`
	GitHub    string `bson:"github,omitempty" json:"github,omitempty" validate:"omitempty,url"`
	LinkedIn  string `bson:"linkedin,omitempty" json:"linkedin,omitempty" validate:"omitempty,url"`
	Twitter   string `bson:"twitter,omitempty" json:"twitter,omitempty" validate:"omitempty,url"`
	Instagram string `bson:"instagram,omitempty" json:"instagram,omitempty" validate:"omitempty,url"`
	Facebook  string `bson:"facebook,omitempty" json:"facebook,omitempty" validate:"omitempty,url"`
	Dribbble  string `bson:"dribbble,omitempty" json:"dribbble,omitempty" validate:"omitempty,url"`
	Behance   string `bson:"behance,omitempty" json:"behance,omitempty" validate:"omitempty,url"`
}

type Stat struct {
	Label string `bson:"label" json:"label" validate:"required,max=60"`
	Value string `bson:"value" json:"value" validate:"required,max=30"`
}

type TeamMember struct {
	Name   string `bson:"name" json:"name" validate:"required,max=100"`
	Role   string `bson:"role" json:"role" validate:"omitempty,max=100"`
	Bio    string `bson:"bio,omitempty" json:"bio,omitempty" validate:"omitempty,max=1000"`
	Avatar string `bson:"avatar,omitempty" json:"avatar,omitempty" validate:"omitempty,max=2048"`
}

type Profile struct {
	ID           string       `bson:"_id" json:"id"`
	Name         string       `bson:"name" json:"name"`
	Title        string       `bson:"title" json:"title"`
	Bio          string       `bson:"bio" json:"bio"`
	Avatar       string       `bson:"avatar,omitempty" json:"avatar,omitempty"`
	Email        string       `bson:"email,omitempty" json:"email,omitempty"`
	Phone        string       `bson:"phone,omitempty" json:"phone,omitempty"`
	Location     string       `bson:"location,omitempty" json:"location,omitempty"`
	ResumeURL    string       `bson:"resumeUrl,omitempty" json:"resumeUrl,omitempty"`
	SocialLinks  SocialLinks  `bson:"socialLinks" json:"socialLinks"`
	Stats        []Stat       `bson:"stats" json:"stats"`
	Team         []TeamMember `bson:"team" json:"team"`
	Availability string       `bson:"availability" json:"availability"`
	CreatedAt    time.Time    `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time    `bson:"updatedAt" json:"updatedAt"`
}

// Default is the placeholder profile written on first read.
func Default(now time.Time) Profile {
	return Profile{
		ID:    ID,
		Name:  "Your Name",
		Title: "Digital Studio",
		Bio:   "Tell visitors who you are and what you build.",
		Stats: []Stat{
			{Label: "Projects delivered", Value: "0"},
			{Label: "Happy clients", Value: "0"},
		},
		Team:         []TeamMember{},
		Availability: AvailabilityAvailable,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Input is a submitted profile form; Present lists the fields that were sent.
type Input struct {
	Name         string       `form:"name" validate:"omitempty,min=2,max=100"`
	Title        string       `form:"title" validate:"omitempty,max=120"`
	Bio          string       `form:"bio" validate:"omitempty,max=5000"`
	Email        string       `form:"email" validate:"omitempty,email,max=200"`
	Phone        string       `form:"phone" validate:"omitempty,phone"`
	Location     string       `form:"location" validate:"omitempty,max=120"`
	ResumeURL    string       `form:"resumeUrl" validate:"omitempty,url"`
	Availability string       `form:"availability" validate:"omitempty,oneof=available busy unavailable"`
	SocialLinks  SocialLinks  `form:"socialLinks"`
	Stats        []Stat       `form:"stats" validate:"omitempty,max=12,dive"`
	Team         []TeamMember `form:"team" validate:"omitempty,max=50,dive"`
	RemoveAvatar bool         `form:"removeAvatar"`

	Present map[string]bool `form:"-"`
}

func (in Input) Has(field string) bool {
	return in.Present[field]
}

package profile

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type Service struct {
	repo     Repository
	location *time.Location
}

func NewService(repo Repository, location *time.Location) *Service {
	return &Service{
		repo:     repo,
		location: location,
	}
}

func (s *Service) Get(ctx context.Context) (Profile, error) {
	return s.repo.GetOrCreate(ctx, Default(time.Now().In(s.location)))
}

// Update merges the submitted fields into the profile. An empty avatar leaves
// the stored one unless RemoveAvatar is set.
func (s *Service) Update(ctx context.Context, in Input, avatar string) (Profile, error) {
	if _, err := s.Get(ctx); err != nil {
		return Profile{}, err
	}

	set := bson.M{"updatedAt": time.Now().In(s.location)}
	text := map[string]string{
		"name":         in.Name,
		"title":        in.Title,
		"bio":          in.Bio,
		"email":        strings.ToLower(in.Email),
		"phone":        in.Phone,
		"location":     in.Location,
		"resumeUrl":    in.ResumeURL,
		"availability": in.Availability,
	}
	for field, value := range text {
		if in.Has(field) {
			set[field] = strings.TrimSpace(value)
		}
	}
	// name and availability cannot be blanked
	if v, ok := set["name"]; ok && v == "" {
		delete(set, "name")
	}
	if v, ok := set["availability"]; ok && v == "" {
		delete(set, "availability")
	}

	if in.Has("socialLinks") {
		set["socialLinks"] = in.SocialLinks
	}
	if in.Has("stats") {
		set["stats"] = nonNil(in.Stats)
	}
	if in.Has("team") {
		set["team"] = nonNil(in.Team)
	}
	switch {
	case avatar != "":
		set["avatar"] = avatar
	case in.RemoveAvatar:
		set["avatar"] = ""
	}

	updated, err := s.repo.Update(ctx, set)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Profile{}, errors.New("profile vanished during update")
		}
		return Profile{}, err
	}
	return updated, nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

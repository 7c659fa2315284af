package projects

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"smarthub-backend/internal/httpx"
	"smarthub-backend/internal/uploads"
	"smarthub-backend/internal/utils"
)

var (
	ErrNotFound      = errors.New("project not found")
	ErrDuplicateID   = errors.New("project id already exists")
	ErrInvalidID     = errors.New("invalid project id")
	ErrImageRequired = errors.New("at least one image is required")
	ErrTooManyImages = errors.New("too many images")
	ErrInvalidStatus = errors.New("invalid status")
	ErrRequired      = errors.New("required field is empty")
	// ErrImagesTooLarge means the stored image references would not fit in one document.
	ErrImagesTooLarge = errors.New("images too large")
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

func (s *Service) List(ctx context.Context, filter ListFilter, page httpx.Page) ([]Project, httpx.Page, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	filter.Tag = strings.TrimSpace(filter.Tag)
	filter.Status = strings.ToLower(strings.TrimSpace(filter.Status))
	if filter.Status != "" && !IsValidStatus(filter.Status) {
		return nil, page, ErrInvalidStatus
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

// Get returns a published project and counts the view. Authenticated callers
// see any status and do not count as a view.
func (s *Service) Get(ctx context.Context, id string, admin bool) (Project, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	var (
		item Project
		err  error
	)
	if admin {
		item, err = s.repo.GetByID(ctx, id)
	} else {
		item, err = s.repo.GetPublishedAndCountView(ctx, id)
	}
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Project{}, ErrNotFound
		}
		return Project{}, err
	}
	return item, nil
}

// ResolveID returns the id a create would use, or ErrDuplicateID when a
// project already holds it. Create still maps insert conflicts for races.
func (s *Service) ResolveID(ctx context.Context, in Input) (string, error) {
	id := utils.SlugOrFallback(in.ID, in.Title)
	if id == "" {
		return "", ErrInvalidID
	}
	_, err := s.repo.GetByID(ctx, id)
	switch {
	case err == nil:
		return "", ErrDuplicateID
	case errors.Is(err, mongo.ErrNoDocuments):
		return id, nil
	default:
		return "", err
	}
}

// Create stores a new project; images holds the stored references of the
// uploaded files in submission order.
func (s *Service) Create(ctx context.Context, in Input, images []string) (Project, error) {
	id := utils.SlugOrFallback(in.ID, in.Title)
	if id == "" {
		return Project{}, ErrInvalidID
	}
	if err := checkImages(images); err != nil {
		return Project{}, err
	}

	status := StatusPublished
	if in.Status != "" {
		status = in.Status
	}

	now := time.Now().In(s.location)
	item := Project{
		ID:               id,
		Title:            strings.TrimSpace(in.Title),
		ShortDescription: strings.TrimSpace(in.ShortDescription),
		FullDescription:  strings.TrimSpace(in.FullDescription),
		Image:            images[0],
		Images:           images,
		Tags:             nonNil(in.Tags),
		Tools:            nonNil(in.Tools),
		Client:           strings.TrimSpace(in.Client),
		Year:             in.Year,
		LiveURL:          strings.TrimSpace(in.LiveURL),
		RepoURL:          strings.TrimSpace(in.RepoURL),
		Status:           status,
		Featured:         in.Featured,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.repo.Create(ctx, item); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return Project{}, ErrDuplicateID
		}
		return Project{}, err
	}
	return item, nil
}

// Update merges the submitted fields into the stored project. New images are
// appended after the kept ones and the cover always follows images[0].
func (s *Service) Update(ctx context.Context, id string, in Input, newImages []string) (Project, error) {
	if in.BlankRequired() != nil {
		return Project{}, ErrRequired
	}
	id = strings.ToLower(strings.TrimSpace(id))
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Project{}, ErrNotFound
		}
		return Project{}, err
	}

	set := bson.M{"updatedAt": time.Now().In(s.location)}
	if in.Has("title") {
		set["title"] = strings.TrimSpace(in.Title)
	}
	if in.Has("shortDescription") {
		set["shortDescription"] = strings.TrimSpace(in.ShortDescription)
	}
	if in.Has("fullDescription") {
		set["fullDescription"] = strings.TrimSpace(in.FullDescription)
	}
	if in.Has("tags") {
		set["tags"] = nonNil(in.Tags)
	}
	if in.Has("tools") {
		set["tools"] = nonNil(in.Tools)
	}
	if in.Has("client") {
		set["client"] = strings.TrimSpace(in.Client)
	}
	if in.Has("year") {
		set["year"] = in.Year
	}
	if in.Has("liveUrl") {
		set["liveUrl"] = strings.TrimSpace(in.LiveURL)
	}
	if in.Has("repoUrl") {
		set["repoUrl"] = strings.TrimSpace(in.RepoURL)
	}
	if in.Has("status") && in.Status != "" {
		set["status"] = in.Status
	}
	if in.Has("featured") {
		set["featured"] = in.Featured
	}

	if in.Has("existingImages") || len(newImages) > 0 {
		images := current.Images
		if in.Has("existingImages") {
			images = keepKnown(current.Images, in.KeepImages)
		}
		images = append(append([]string{}, images...), newImages...)
		if err := checkImages(images); err != nil {
			return Project{}, err
		}
		set["images"] = images
		set["image"] = images[0]
	}

	updated, err := s.repo.Update(ctx, id, set)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Project{}, ErrNotFound
		}
		return Project{}, err
	}
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	deleted, err := s.repo.Delete(ctx, strings.ToLower(strings.TrimSpace(id)))
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotFound
	}
	return nil
}

func checkImages(images []string) error {
	switch {
	case len(images) == 0:
		return ErrImageRequired
	case len(images) > MaxImages:
		return ErrTooManyImages
	case uploads.RefsSize(images) > uploads.MaxStoredRefBytes:
		return ErrImagesTooLarge
	}
	return nil
}

// keepKnown keeps the requested images that are actually stored on the project.
func keepKnown(stored, keep []string) []string {
	known := make(map[string]struct{}, len(stored))
	for _, img := range stored {
		known[img] = struct{}{}
	}
	out := make([]string, 0, len(keep))
	for _, img := range keep {
		if _, ok := known[img]; ok {
			out = append(out, img)
		}
	}
	return out
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

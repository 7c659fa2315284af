package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"smarthub-backend/internal/httpx"
	"smarthub-backend/internal/utils"
)

var (
	ErrNotFound    = errors.New("service not found")
	ErrDuplicateID = errors.New("service id already exists")
	ErrInvalidID   = errors.New("invalid service id")
)

// Manager holds the catalog logic; the entity itself is named Service.
type Manager struct {
	repo     Repository
	location *time.Location
}

func NewManager(repo Repository, location *time.Location) *Manager {
	return &Manager{
		repo:     repo,
		location: location,
	}
}

// List returns active services unless includeInactive is set.
func (m *Manager) List(ctx context.Context, includeInactive bool) ([]Service, error) {
	return m.repo.List(ctx, !includeInactive)
}

func (m *Manager) Get(ctx context.Context, id string, includeInactive bool) (Service, error) {
	item, err := m.repo.GetByID(ctx, strings.ToLower(strings.TrimSpace(id)), !includeInactive)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Service{}, ErrNotFound
		}
		return Service{}, err
	}
	return item, nil
}

func (m *Manager) Create(ctx context.Context, in Input) (Service, error) {
	id := utils.SlugOrFallback(strings.TrimSpace(in.ID), value(in.Title))
	if id == "" {
		return Service{}, ErrInvalidID
	}

	status := StatusActive
	if s := strings.TrimSpace(in.Status); s != "" {
		status = s
	}
	order := 0
	if in.Order != nil {
		order = *in.Order
	}
	features := []string{}
	if in.Features != nil {
		features = httpx.CleanList(*in.Features)
	}

	now := time.Now().In(m.location)
	item := Service{
		ID:          id,
		Title:       value(in.Title),
		Description: value(in.Description),
		Icon:        value(in.Icon),
		Features:    features,
		Price:       value(in.Price),
		Status:      status,
		Order:       order,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := m.repo.Create(ctx, item); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return Service{}, ErrDuplicateID
		}
		return Service{}, err
	}
	return item, nil
}

// Update writes only the fields present in the request.
func (m *Manager) Update(ctx context.Context, id string, in Input) (Service, error) {
	set := bson.M{"updatedAt": time.Now().In(m.location)}
	if in.Title != nil {
		set["title"] = value(in.Title)
	}
	if in.Description != nil {
		set["description"] = value(in.Description)
	}
	if in.Icon != nil {
		set["icon"] = value(in.Icon)
	}
	if in.Features != nil {
		set["features"] = httpx.CleanList(*in.Features)
	}
	if in.Price != nil {
		set["price"] = value(in.Price)
	}
	if s := strings.TrimSpace(in.Status); s != "" {
		set["status"] = s
	}
	if in.Order != nil {
		set["order"] = *in.Order
	}

	updated, err := m.repo.Update(ctx, strings.ToLower(strings.TrimSpace(id)), set)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Service{}, ErrNotFound
		}
		return Service{}, err
	}
	return updated, nil
}

func (m *Manager) Delete(ctx context.Context, id string) error {
	deleted, err := m.repo.Delete(ctx, strings.ToLower(strings.TrimSpace(id)))
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotFound
	}
	return nil
}

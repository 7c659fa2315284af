package projects

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"smarthub-backend/internal/httpx"
	"smarthub-backend/internal/uploads"
)

type memoryRepo struct {
	mu    sync.Mutex
	items map[string]Project
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: map[string]Project{}}
}

func (m *memoryRepo) Create(ctx context.Context, item Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[item.ID]; ok {
		return mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000}}}
	}
	m.items[item.ID] = item
	return nil
}

func (m *memoryRepo) Update(ctx context.Context, id string, set bson.M) (Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return Project{}, mongo.ErrNoDocuments
	}
	for k, v := range set {
		switch k {
		case "title":
			item.Title = v.(string)
		case "shortDescription":
			item.ShortDescription = v.(string)
		case "fullDescription":
			item.FullDescription = v.(string)
		case "tags":
			item.Tags = v.([]string)
		case "tools":
			item.Tools = v.([]string)
		case "client":
			item.Client = v.(string)
		case "year":
			item.Year = v.(int)
		case "liveUrl":
			item.LiveURL = v.(string)
		case "repoUrl":
			item.RepoURL = v.(string)
		case "status":
			item.Status = v.(string)
		case "featured":
			item.Featured = v.(bool)
		case "images":
			item.Images = v.([]string)
		case "image":
			item.Image = v.(string)
		case "updatedAt":
			item.UpdatedAt = v.(time.Time)
		}
	}
	m.items[id] = item
	return item, nil
}

func (m *memoryRepo) Delete(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.items[id]
	delete(m.items, id)
	return ok, nil
}

func (m *memoryRepo) GetByID(ctx context.Context, id string) (Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return Project{}, mongo.ErrNoDocuments
	}
	return item, nil
}

func (m *memoryRepo) GetPublishedAndCountView(ctx context.Context, id string) (Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok || item.Status != StatusPublished {
		return Project{}, mongo.ErrNoDocuments
	}
	item.ViewCount++
	m.items[id] = item
	return item, nil
}

func (m *memoryRepo) match(filter ListFilter, item Project) bool {
	if !filter.AllStatuses && item.Status != StatusPublished {
		return false
	}
	if filter.AllStatuses && filter.Status != "" && item.Status != filter.Status {
		return false
	}
	if filter.Featured != nil && item.Featured != *filter.Featured {
		return false
	}
	if filter.Tag != "" {
		found := false
		for _, t := range item.Tags {
			found = found || t == filter.Tag
		}
		if !found {
			return false
		}
	}
	if filter.Search != "" {
		hay := strings.ToLower(item.Title + " " + item.ShortDescription + " " + item.FullDescription + " " + strings.Join(item.Tags, " "))
		if !strings.Contains(hay, strings.ToLower(filter.Search)) {
			return false
		}
	}
	return true
}

func (m *memoryRepo) List(ctx context.Context, filter ListFilter, limit, offset int64) ([]Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]Project, 0)
	for _, item := range m.items {
		if m.match(filter, item) {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Featured != items[j].Featured {
			return items[i].Featured
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	if offset >= int64(len(items)) {
		return []Project{}, nil
	}
	end := offset + limit
	if end > int64(len(items)) {
		end = int64(len(items))
	}
	return items[offset:end], nil
}

func (m *memoryRepo) Count(ctx context.Context, filter ListFilter) (int64, error) {
	items, _ := m.List(ctx, filter, 1<<30, 0)
	return int64(len(items)), nil
}

func newTestService() (*Service, *memoryRepo) {
	repo := newMemoryRepo()
	return NewService(repo, time.UTC), repo
}

func TestCreateSetsCoverFromFirstImage(t *testing.T) {
	svc, _ := newTestService()
	item, err := svc.Create(context.Background(), Input{
		Title:            "Corner Bakery Site",
		ShortDescription: "Ordering site",
	}, []string{"/uploads/a.png", "/uploads/b.png"})
	require.NoError(t, err)
	assert.Equal(t, "corner-bakery-site", item.ID)
	assert.Equal(t, item.Images[0], item.Image)
	assert.Equal(t, StatusPublished, item.Status)
	assert.NotNil(t, item.Tags)
}

func TestCreateRequiresImage(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.Create(context.Background(), Input{Title: "No pics", ShortDescription: "x"}, nil)
	require.ErrorIs(t, err, ErrImageRequired)
}

func TestCreateDuplicateID(t *testing.T) {
	svc, _ := newTestService()
	in := Input{ID: "shop", Title: "Shop", ShortDescription: "x"}
	_, err := svc.Create(context.Background(), in, []string{"a"})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), in, []string{"b"})
	require.ErrorIs(t, err, ErrDuplicateID)
}

func TestGetCountsPublishedViews(t *testing.T) {
	svc, repo := newTestService()
	_, err := svc.Create(context.Background(), Input{ID: "live", Title: "Live", ShortDescription: "x"}, []string{"a"})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), Input{ID: "wip", Title: "Wip", ShortDescription: "x", Status: StatusDraft}, []string{"a"})
	require.NoError(t, err)

	item, err := svc.Get(context.Background(), "live", false)
	require.NoError(t, err)
	assert.EqualValues(t, 1, item.ViewCount)

	_, err = svc.Get(context.Background(), "wip", false)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Get(context.Background(), "missing", false)
	require.ErrorIs(t, err, ErrNotFound)

	item, err = svc.Get(context.Background(), "wip", true)
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, item.Status)

	_, err = svc.Get(context.Background(), "live", true)
	require.NoError(t, err)
	assert.EqualValues(t, 1, repo.items["live"].ViewCount)
}

func TestUpdateMergesPresentFields(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.Create(context.Background(), Input{
		ID:               "shop",
		Title:            "Shop",
		ShortDescription: "Original",
		Client:           "ACME",
	}, []string{"one", "two"})
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), "shop", Input{
		Title:      "Shop v2",
		Client:     "ignored",
		KeepImages: []string{"two", "unknown"},
		Present:    map[string]bool{"title": true, "existingImages": true},
	}, []string{"three"})
	require.NoError(t, err)
	assert.Equal(t, "Shop v2", updated.Title)
	assert.Equal(t, "ACME", updated.Client)
	assert.Equal(t, "Original", updated.ShortDescription)
	assert.Equal(t, []string{"two", "three"}, updated.Images)
	assert.Equal(t, "two", updated.Image)

	_, err = svc.Update(context.Background(), "shop", Input{
		KeepImages: []string{},
		Present:    map[string]bool{"existingImages": true},
	}, nil)
	require.ErrorIs(t, err, ErrImageRequired)

	_, err = svc.Update(context.Background(), "nope", Input{}, nil)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListPublicOnlyPublished(t *testing.T) {
	svc, _ := newTestService()
	for _, in := range []Input{
		{ID: "a", Title: "Alpha shop", ShortDescription: "x", Tags: []string{"shop"}},
		{ID: "b", Title: "Beta", ShortDescription: "x", Featured: true},
		{ID: "c", Title: "Gamma", ShortDescription: "x", Status: StatusDraft},
	} {
		_, err := svc.Create(context.Background(), in, []string{"img"})
		require.NoError(t, err)
	}

	page, _ := httpx.ParsePage(nil, 10, 50)
	items, page, err := svc.List(context.Background(), ListFilter{}, page)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "b", items[0].ID)
	assert.EqualValues(t, 2, page.Total)

	items, _, err = svc.List(context.Background(), ListFilter{Search: "SHOP"}, page)
	require.NoError(t, err)
	require.Len(t, items, 1)

	items, _, err = svc.List(context.Background(), ListFilter{AllStatuses: true, Status: "draft"}, page)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "c", items[0].ID)

	_, _, err = svc.List(context.Background(), ListFilter{AllStatuses: true, Status: "gone"}, page)
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestResolveIDChecksBeforeInsert(t *testing.T) {
	svc, _ := newTestService()
	id, err := svc.ResolveID(context.Background(), Input{Title: "Harbor Cafe"})
	require.NoError(t, err)
	assert.Equal(t, "harbor-cafe", id)

	_, err = svc.Create(context.Background(), Input{Title: "Harbor Cafe", ShortDescription: "x"}, []string{"a"})
	require.NoError(t, err)
	_, err = svc.ResolveID(context.Background(), Input{Title: "Harbor Cafe"})
	require.ErrorIs(t, err, ErrDuplicateID)
	_, err = svc.ResolveID(context.Background(), Input{Title: "!!"})
	require.ErrorIs(t, err, ErrInvalidID)
}

func TestUpdateRejectsBlankRequiredFields(t *testing.T) {
	svc, repo := newTestService()
	_, err := svc.Create(context.Background(), Input{ID: "shop", Title: "Shop", ShortDescription: "Original"}, []string{"a"})
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), "shop", Input{
		Title:            " ",
		ShortDescription: "",
		Present:          map[string]bool{"title": true, "shortDescription": true},
	}, nil)
	require.ErrorIs(t, err, ErrRequired)
	assert.Equal(t, "Shop", repo.items["shop"].Title)
	assert.Equal(t, "Original", repo.items["shop"].ShortDescription)
}

func TestImagesMustFitOneDocument(t *testing.T) {
	svc, _ := newTestService()
	huge := strings.Repeat("A", uploads.MaxStoredRefBytes/2+1)
	_, err := svc.Create(context.Background(), Input{ID: "big", Title: "Big", ShortDescription: "x"}, []string{huge, huge})
	require.ErrorIs(t, err, ErrImagesTooLarge)
}

package requests

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"smarthub-backend/internal/httpx"
	"smarthub-backend/internal/models"
	"smarthub-backend/internal/notifications"
)

type memoryRepo struct {
	mu             sync.Mutex
	items          map[string]ServiceRequest
	duplicateFirst int
	staleUpdates   int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: map[string]ServiceRequest{}}
}

func (m *memoryRepo) Create(ctx context.Context, item ServiceRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.duplicateFirst > 0 {
		m.duplicateFirst--
		return mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000}}}
	}
	for _, existing := range m.items {
		if existing.Reference == item.Reference {
			return mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000}}}
		}
	}
	m.items[item.ID] = item
	return nil
}

func (m *memoryRepo) matching(filter ListFilter) []ServiceRequest {
	items := make([]ServiceRequest, 0)
	for _, item := range m.items {
		if filter.Status != "" && item.Status != filter.Status {
			continue
		}
		if filter.ServiceType != "" && item.ServiceType != filter.ServiceType {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(item.ClientName+" "+item.ClientEmail+" "+item.Reference), strings.ToLower(filter.Search)) {
			continue
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items
}

func (m *memoryRepo) List(ctx context.Context, filter ListFilter, limit, offset int64) ([]ServiceRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := m.matching(filter)
	if offset >= int64(len(items)) {
		return []ServiceRequest{}, nil
	}
	end := offset + limit
	if end > int64(len(items)) {
		end = int64(len(items))
	}
	return items[offset:end], nil
}

func (m *memoryRepo) Count(ctx context.Context, filter ListFilter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.matching(filter))), nil
}

func (m *memoryRepo) GetByID(ctx context.Context, id string) (ServiceRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return ServiceRequest{}, mongo.ErrNoDocuments
	}
	return item, nil
}

func (m *memoryRepo) GetByReference(ctx context.Context, reference string) (ServiceRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range m.items {
		if item.Reference == reference {
			return item, nil
		}
	}
	return ServiceRequest{}, mongo.ErrNoDocuments
}

func (m *memoryRepo) UpdateStatus(ctx context.Context, id string, prev time.Time, set bson.M, entry HistoryEntry) (ServiceRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok || !item.StatusUpdatedAt.Equal(prev) {
		return ServiceRequest{}, mongo.ErrNoDocuments
	}
	if m.staleUpdates > 0 {
		m.staleUpdates--
		// another writer got there first
		item.StatusUpdatedAt = prev.Add(time.Millisecond)
		m.items[id] = item
		return ServiceRequest{}, mongo.ErrNoDocuments
	}
	item.Status = set["status"].(string)
	item.StatusMessage = set["statusMessage"].(string)
	item.StatusUpdatedAt = set["statusUpdatedAt"].(time.Time)
	item.UpdatedAt = set["updatedAt"].(time.Time)
	item.StatusHistory = append(item.StatusHistory, entry)
	m.items[id] = item
	return item, nil
}

func (m *memoryRepo) CountByStatus(ctx context.Context) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[string]int64{}
	for _, item := range m.items {
		counts[item.Status]++
	}
	return counts, nil
}

type fakeNotifier struct {
	mu        sync.Mutex
	submitted []ServiceRequest
	changed   []ServiceRequest
	result    notifications.Result
}

func (f *fakeNotifier) RequestSubmitted(item ServiceRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, item)
}

func (f *fakeNotifier) StatusChanged(ctx context.Context, item ServiceRequest) notifications.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changed = append(f.changed, item)
	return f.result
}

func validInput() SubmitInput {
	return SubmitInput{
		ServiceType:    "web-development",
		ClientName:     "Ada Lovelace",
		ClientEmail:    "Ada@Example.com",
		ProjectDetails: "A marketing site with a blog and contact form.",
		AdditionalData: AdditionalData{"pages": "8", "hasDomain": "true", "features": " "},
	}
}

func TestSubmitStoresPendingRequest(t *testing.T) {
	repo := newMemoryRepo()
	notifier := &fakeNotifier{}
	svc := NewService(repo, time.UTC, notifier)

	item, err := svc.Submit(context.Background(), validInput(), nil, ClientMeta{IPAddress: "10.0.0.1", UserAgent: "test-agent"})
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^REQ-[0-9A-F]{8}$`), item.Reference)
	assert.Equal(t, StatusPending, item.Status)
	assert.Equal(t, "ada@example.com", item.ClientEmail)
	assert.Equal(t, AdditionalData{"pages": "8", "hasDomain": "true"}, item.AdditionalData)
	assert.Equal(t, "10.0.0.1", item.IPAddress)
	assert.Equal(t, "test-agent", item.UserAgent)
	assert.Equal(t, []Attachment{}, item.Attachments)
	require.Len(t, item.StatusHistory, 1)
	assert.Equal(t, item.StatusUpdatedAt, item.CreatedAt)

	require.Len(t, notifier.submitted, 1)
	assert.Equal(t, item.Reference, notifier.submitted[0].Reference)
	assert.Contains(t, repo.items, item.ID)
}

func TestSubmitRetriesReferenceCollision(t *testing.T) {
	repo := newMemoryRepo()
	repo.duplicateFirst = 2
	svc := NewService(repo, time.UTC, nil)

	item, err := svc.Submit(context.Background(), validInput(), nil, ClientMeta{})
	require.NoError(t, err)
	assert.Contains(t, repo.items, item.ID)

	repo.duplicateFirst = referenceAttempts
	_, err = svc.Submit(context.Background(), validInput(), nil, ClientMeta{})
	assert.True(t, mongo.IsDuplicateKeyError(err))
}

func TestSubmitRejectsUnknownAdditionalKeys(t *testing.T) {
	svc := NewService(newMemoryRepo(), time.UTC, nil)

	in := validInput()
	in.AdditionalData = AdditionalData{"platforms": "ios", "pages": strings.Repeat("x", MaxAdditionalValue+1)}
	_, err := svc.Submit(context.Background(), in, nil, ClientMeta{})

	var invalid *InvalidDataError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, map[string]string{
		"additionalData.platforms": "unknown",
		"additionalData.pages":     "max",
	}, invalid.Details)

	in = validInput()
	in.ServiceType = "catering"
	_, err = svc.Submit(context.Background(), in, nil, ClientMeta{})
	assert.ErrorIs(t, err, ErrInvalidServiceType)
}

func TestUpdateStatusRequiresMessageForRejection(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, time.UTC, nil)
	item, err := svc.Submit(context.Background(), validInput(), nil, ClientMeta{})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), item.ID, StatusUpdateRequest{Status: StatusRejected, Message: "   "}, "admin-1")
	assert.ErrorIs(t, err, ErrMessageRequired)

	updated, err := svc.UpdateStatus(context.Background(), item.ID, StatusUpdateRequest{Status: StatusRejected, Message: "  Out of scope for us.  "}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, updated.Status)
	assert.Equal(t, "Out of scope for us.", updated.StatusMessage)
	require.Len(t, updated.StatusHistory, 2)
	assert.Equal(t, "admin-1", updated.StatusHistory[1].ChangedBy)
	assert.Equal(t, "Out of scope for us.", updated.StatusHistory[1].Message)
}

func TestUpdateStatusTimestampStrictlyIncreases(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, time.UTC, nil)
	frozen := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return frozen }

	item, err := svc.Submit(context.Background(), validInput(), nil, ClientMeta{})
	require.NoError(t, err)

	prev := item.StatusUpdatedAt
	for _, status := range []string{StatusReviewing, StatusApproved, StatusInProgress, StatusCompleted, StatusPending} {
		updated, err := svc.UpdateStatus(context.Background(), item.ID, StatusUpdateRequest{Status: status}, "")
		require.NoError(t, err)
		assert.Equal(t, status, updated.Status)
		assert.True(t, updated.StatusUpdatedAt.After(prev), "status %s", status)
		prev = updated.StatusUpdatedAt
	}
	assert.Len(t, repo.items[item.ID].StatusHistory, 6)
}

func TestUpdateStatusRetriesStaleWrites(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, time.UTC, nil)
	item, err := svc.Submit(context.Background(), validInput(), nil, ClientMeta{})
	require.NoError(t, err)

	repo.staleUpdates = 1
	updated, err := svc.UpdateStatus(context.Background(), item.ID, StatusUpdateRequest{Status: StatusReviewing}, "")
	require.NoError(t, err)
	assert.Equal(t, StatusReviewing, updated.Status)

	repo.staleUpdates = updateAttempts
	_, err = svc.UpdateStatus(context.Background(), item.ID, StatusUpdateRequest{Status: StatusApproved}, "")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestUpdateStatusNotFoundAndByReference(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, time.UTC, nil)

	_, err := svc.UpdateStatus(context.Background(), "missing", StatusUpdateRequest{Status: StatusReviewing}, "")
	assert.ErrorIs(t, err, ErrNotFound)

	item, err := svc.Submit(context.Background(), validInput(), nil, ClientMeta{})
	require.NoError(t, err)
	updated, err := svc.UpdateStatus(context.Background(), strings.ToLower(item.Reference), StatusUpdateRequest{Status: StatusReviewing}, "")
	require.NoError(t, err)
	assert.Equal(t, item.ID, updated.ID)
}

func TestNotifyStatusDelegatesToNotifier(t *testing.T) {
	notifier := &fakeNotifier{result: notifications.Result{Success: true, Account: notifications.Primary, Attempts: 1}}
	svc := NewService(newMemoryRepo(), time.UTC, notifier)

	result := svc.NotifyStatus(context.Background(), ServiceRequest{Reference: "REQ-00000001", Status: StatusApproved})
	assert.True(t, result.Success)
	require.Len(t, notifier.changed, 1)

	result = NewService(newMemoryRepo(), time.UTC, nil).NotifyStatus(context.Background(), ServiceRequest{})
	assert.False(t, result.Success)
}

func TestListFiltersAndStats(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, time.UTC, nil)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	svc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	for i, serviceType := range []string{"web-development", "branding", "web-development"} {
		in := validInput()
		in.ServiceType = serviceType
		in.AdditionalData = nil
		in.ClientName = []string{"Ada", "Grace", "Linus"}[i]
		_, err := svc.Submit(context.Background(), in, nil, ClientMeta{})
		require.NoError(t, err)
	}

	page, err := httpx.ParsePage(nil, 2, 10)
	require.NoError(t, err)
	items, page, err := svc.List(context.Background(), ListFilter{ServiceType: "WEB-DEVELOPMENT"}, page)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Linus", items[0].ClientName)
	assert.Equal(t, int64(2), page.Total)

	_, _, err = svc.List(context.Background(), ListFilter{Status: "archived"}, page)
	assert.ErrorIs(t, err, ErrInvalidStatus)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(3), stats.ByStatus[StatusPending])
	assert.Equal(t, int64(0), stats.ByStatus[StatusRejected])
	assert.Len(t, stats.ByStatus, len(Statuses))
}

func TestAdditionalDataAcceptsScalars(t *testing.T) {
	var in SubmitInput
	err := json.Unmarshal([]byte(`{"additionalData":{"pages":8,"hasDomain":true,"features":["blog"," shop "],"referenceSites":null}}`), &in)
	require.NoError(t, err)
	assert.Equal(t, AdditionalData{
		"pages":          "8",
		"hasDomain":      "true",
		"features":       "blog, shop",
		"referenceSites": "",
	}, in.AdditionalData)

	err = json.Unmarshal([]byte(`{"additionalData":{"pages":{"a":1}}}`), &in)
	assert.Error(t, err)
}

func TestEveryServiceTypeHasAdditionalKeys(t *testing.T) {
	for _, st := range models.ServiceTypes {
		assert.NotEmpty(t, AllowedKeys(st), st)
	}
	assert.Len(t, additionalKeys, len(models.ServiceTypes))
}

func TestTruncateKeepsValidUTF8(t *testing.T) {
	agent := strings.Repeat("a", 499) + "é" + "tail"
	out := truncate(agent, 500)
	assert.True(t, utf8.ValidString(out))
	assert.Equal(t, strings.Repeat("a", 499), out)

	assert.Equal(t, "日本", truncate("日本語", 8))
	assert.Equal(t, "short", truncate("  short  ", 500))
}

package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memoryCache) Delete(ctx context.Context, key string) error { return nil }

func (m *memoryCache) DeletePrefix(ctx context.Context, prefix string) error { return nil }

func (m *memoryCache) Name() string { return "memory" }

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	c := &memoryCache{data: map[string][]byte{}}

	SetJSON(ctx, c, "services:public", []string{"web", "brand"}, time.Minute)

	var out []string
	assert.True(t, GetJSON(ctx, c, "services:public", &out))
	assert.Equal(t, []string{"web", "brand"}, out)

	c.data["broken"] = []byte("{")
	assert.False(t, GetJSON(ctx, c, "broken", &out))
	assert.False(t, GetJSON(ctx, nil, "services:public", &out))
}

func TestNoopNeverHits(t *testing.T) {
	ctx := context.Background()
	n := NewNoop()
	SetJSON(ctx, n, "k", 1, time.Minute)
	var v int
	assert.False(t, GetJSON(ctx, n, "k", &v))
	assert.Equal(t, "none", n.Name())
}

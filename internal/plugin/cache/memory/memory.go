package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/chirino/chat-history/internal/config"
	registrycache "github.com/chirino/chat-history/internal/registry/cache"
	"github.com/dgraph-io/ristretto/v2"
)

const defaultMaxCost = 64 << 20

func init() {
	registrycache.Register(registrycache.Plugin{
		Name:   "memory",
		Loader: load,
	})
}

func load(ctx context.Context) (registrycache.BlobCache, error) {
	maxCost := int64(defaultMaxCost)
	ttl := time.Duration(0)
	if cfg := config.FromContext(ctx); cfg != nil {
		if cfg.CacheMaxCost > 0 {
			maxCost = cfg.CacheMaxCost
		}
		ttl = cfg.CacheTTL
	}
	return New(maxCost, ttl)
}

// New returns an in-process cache bounded to maxCost bytes of document data.
func New(maxCost int64, ttl time.Duration) (*MemoryCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: max(maxCost/100, 1000),
		MaxCost:     maxCost,
		BufferItems: 64,
		Cost: func(v []byte) int64 {
			return int64(len(v)) + 1
		},
	})
	if err != nil {
		return nil, fmt.Errorf("memory cache: %w", err)
	}
	return &MemoryCache{cache: c, ttl: ttl}, nil
}

// MemoryCache is a BlobCache backed by ristretto.
type MemoryCache struct {
	cache *ristretto.Cache[string, []byte]
	ttl   time.Duration
}

func (m *MemoryCache) Available() bool { return true }

func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.cache.Get(key)
	if !ok {
		return nil, nil
	}
	if v == nil {
		v = []byte{}
	}
	return v, nil
}

func (m *MemoryCache) Set(_ context.Context, key string, data []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = m.ttl
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	if ttl > 0 {
		m.cache.SetWithTTL(key, stored, 0, ttl)
	} else {
		m.cache.Set(key, stored, 0)
	}
	// Make the value visible to the next Get.
	m.cache.Wait()
	return nil
}

func (m *MemoryCache) Remove(_ context.Context, key string) error {
	m.cache.Del(key)
	return nil
}

// Close stops the cache's background goroutines.
func (m *MemoryCache) Close() error {
	m.cache.Close()
	return nil
}

var _ registrycache.BlobCache = (*MemoryCache)(nil)

package cached

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	internalmetrics "github.com/chirino/chat-history/internal/metrics"
	registryblob "github.com/chirino/chat-history/internal/registry/blob"
	registrycache "github.com/chirino/chat-history/internal/registry/cache"
)

// Wrap returns a read-through cache over inner. Cache keys are prefixed with
// namespace so the bundled and local sources never share entries. Writes go
// to inner first and then invalidate the cached copy. Cache failures are
// logged and fall back to inner.
func Wrap(inner registryblob.BlobStore, c registrycache.BlobCache, namespace string, ttl time.Duration) registryblob.BlobStore {
	if c == nil || !c.Available() {
		return inner
	}
	return &cachedStore{inner: inner, cache: c, namespace: namespace, ttl: ttl}
}

type cachedStore struct {
	inner     registryblob.BlobStore
	cache     registrycache.BlobCache
	namespace string
	ttl       time.Duration
}

func (s *cachedStore) cacheKey(key string) string {
	return "chat-blob:" + s.namespace + ":" + key
}

func (s *cachedStore) Exists(ctx context.Context, key string) (bool, error) {
	return s.inner.Exists(ctx, key)
}

func (s *cachedStore) Read(ctx context.Context, key string) ([]byte, error) {
	ck := s.cacheKey(key)
	data, err := s.cache.Get(ctx, ck)
	if err != nil {
		log.Warn("blob cache get error", "key", key, "err", err)
	} else if data != nil {
		internalmetrics.Inc(internalmetrics.CacheHitsTotal)
		return data, nil
	}
	internalmetrics.Inc(internalmetrics.CacheMissesTotal)

	data, err = s.inner.Read(ctx, key)
	if err != nil {
		return nil, err
	}
	if serr := s.cache.Set(ctx, ck, data, s.ttl); serr != nil {
		log.Warn("blob cache set error", "key", key, "err", serr)
	}
	return data, nil
}

func (s *cachedStore) Write(ctx context.Context, key string, data []byte) error {
	if err := s.inner.Write(ctx, key, data); err != nil {
		return err
	}
	s.invalidate(ctx, key)
	return nil
}

func (s *cachedStore) List(ctx context.Context, dir string) ([]string, error) {
	return s.inner.List(ctx, dir)
}

func (s *cachedStore) CreateIfAbsent(ctx context.Context, key string) error {
	if err := s.inner.CreateIfAbsent(ctx, key); err != nil {
		return err
	}
	s.invalidate(ctx, key)
	return nil
}

func (s *cachedStore) Close() error {
	return registryblob.Close(s.inner)
}

func (s *cachedStore) invalidate(ctx context.Context, key string) {
	if err := s.cache.Remove(ctx, s.cacheKey(key)); err != nil {
		log.Warn("blob cache remove error", "key", key, "err", err)
	}
}

var _ registryblob.BlobStore = (*cachedStore)(nil)

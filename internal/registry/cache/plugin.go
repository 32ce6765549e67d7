package cache

import (
	"context"
	"fmt"
	"time"
)

type blobCacheKey struct{}

// WithBlobCacheContext returns a new context carrying the given BlobCache.
func WithBlobCacheContext(ctx context.Context, c BlobCache) context.Context {
	return context.WithValue(ctx, blobCacheKey{}, c)
}

// BlobCacheFromContext retrieves the BlobCache from the context.
// Returns nil if none was set.
func BlobCacheFromContext(ctx context.Context) BlobCache {
	c, _ := ctx.Value(blobCacheKey{}).(BlobCache)
	return c
}

// BlobCache caches raw page and index documents keyed by namespaced blob key.
type BlobCache interface {
	Available() bool
	// Get returns the cached bytes, or nil with no error on a miss.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Remove(ctx context.Context, key string) error
}

// Loader creates a cache from config.
type Loader func(ctx context.Context) (BlobCache, error)

// Plugin represents a cache plugin.
type Plugin struct {
	Name   string
	Loader Loader
}

var plugins []Plugin

// Register adds a cache plugin.
func Register(p Plugin) {
	plugins = append(plugins, p)
}

// Names returns all registered cache plugin names.
func Names() []string {
	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.Name
	}
	return names
}

// Select returns the loader for the named cache plugin.
func Select(name string) (Loader, error) {
	for _, p := range plugins {
		if p.Name == name {
			return p.Loader, nil
		}
	}
	return nil, fmt.Errorf("unknown cache %q; valid: %v", name, Names())
}

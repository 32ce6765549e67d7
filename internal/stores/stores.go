// Package stores opens the bundled and local blob sources from
// configuration and decorates them with the read-only, metrics and cache
// wrappers.
package stores

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/chirino/chat-history/internal/config"
	blobcached "github.com/chirino/chat-history/internal/plugin/blob/cached"
	blobmetrics "github.com/chirino/chat-history/internal/plugin/blob/metrics"
	"github.com/chirino/chat-history/internal/plugin/blob/readonly"
	registryblob "github.com/chirino/chat-history/internal/registry/blob"
	registrycache "github.com/chirino/chat-history/internal/registry/cache"
	registrymigrate "github.com/chirino/chat-history/internal/registry/migrate"

	// Blob store and cache plugins register themselves on import.
	_ "github.com/chirino/chat-history/internal/plugin/blob/fsstore"
	_ "github.com/chirino/chat-history/internal/plugin/blob/mongostore"
	_ "github.com/chirino/chat-history/internal/plugin/blob/s3store"
	_ "github.com/chirino/chat-history/internal/plugin/blob/sqlstore"
	_ "github.com/chirino/chat-history/internal/plugin/cache/memory"
	_ "github.com/chirino/chat-history/internal/plugin/cache/noop"
	_ "github.com/chirino/chat-history/internal/plugin/cache/redis"
)

// Stores holds the two opened sources.
type Stores struct {
	Bundled registryblob.BlobStore
	Local   registryblob.BlobStore
	cache   registrycache.BlobCache
}

// Open runs the registered migrations, initializes the configured cache and
// opens both sources. The config must be carried by ctx.
func Open(ctx context.Context) (*Stores, error) {
	cfg := config.FromContext(ctx)
	if cfg == nil {
		return nil, fmt.Errorf("stores: no config in context")
	}

	if err := registrymigrate.RunAll(ctx); err != nil {
		return nil, fmt.Errorf("migrations failed: %w", err)
	}

	var cache registrycache.BlobCache
	if cacheLoader, err := registrycache.Select(cfg.CacheType); err != nil {
		log.Warn("Cache not available", "cache", cfg.CacheType, "err", err)
	} else if cache, err = cacheLoader(ctx); err != nil {
		log.Warn("Failed to initialize cache", "cache", cfg.CacheType, "err", err)
		cache = nil
	}

	bundled, err := open(ctx, config.RoleBundled, cfg.Bundled.Kind)
	if err != nil {
		closeCache(cache)
		return nil, err
	}
	local, err := open(ctx, config.RoleLocal, cfg.Local.Kind)
	if err != nil {
		_ = registryblob.Close(bundled)
		closeCache(cache)
		return nil, err
	}

	s := &Stores{
		Bundled: blobcached.Wrap(readonly.Wrap(blobmetrics.Wrap(bundled, config.RoleBundled)), cache, config.RoleBundled, cfg.CacheTTL),
		Local:   blobcached.Wrap(blobmetrics.Wrap(local, config.RoleLocal), cache, config.RoleLocal, cfg.CacheTTL),
		cache:   cache,
	}
	log.Info("Opened blob sources",
		"bundled", cfg.Bundled.Kind,
		"local", cfg.Local.Kind,
		"cache", cfg.CacheType,
	)
	return s, nil
}

func open(ctx context.Context, role, kind string) (registryblob.BlobStore, error) {
	loader, err := registryblob.Select(kind)
	if err != nil {
		return nil, fmt.Errorf("%s source: %w", role, err)
	}
	store, err := loader(config.WithRole(ctx, role))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s source: %w", role, err)
	}
	return store, nil
}

// Close releases both sources and the cache.
func (s *Stores) Close() error {
	err := errors.Join(registryblob.Close(s.Bundled), registryblob.Close(s.Local))
	closeCache(s.cache)
	return err
}

func closeCache(c registrycache.BlobCache) {
	if closer, ok := c.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			log.Warn("Failed to close cache", "err", err)
		}
	}
}

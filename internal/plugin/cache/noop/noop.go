package noop

import (
	"context"
	"time"

	"github.com/chirino/chat-history/internal/registry/cache"
)

func init() {
	cache.Register(cache.Plugin{
		Name: "none",
		Loader: func(ctx context.Context) (cache.BlobCache, error) {
			return &noopBlobCache{}, nil
		},
	})
}

type noopBlobCache struct{}

func (n *noopBlobCache) Available() bool { return false }
func (n *noopBlobCache) Get(_ context.Context, _ string) ([]byte, error) { return nil, nil }
func (n *noopBlobCache) Remove(_ context.Context, _ string) error { return nil }
func (n *noopBlobCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error {
	return nil
}

var _ cache.BlobCache = (*noopBlobCache)(nil)

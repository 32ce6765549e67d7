package readonly

import (
	"context"

	registryblob "github.com/chirino/chat-history/internal/registry/blob"
)

// Wrap returns a BlobStore that serves reads from inner and rejects every
// mutation with a *ReadOnlyError.
func Wrap(inner registryblob.BlobStore) registryblob.BlobStore {
	return &readOnlyStore{inner: inner}
}

type readOnlyStore struct {
	inner registryblob.BlobStore
}

func (r *readOnlyStore) Exists(ctx context.Context, key string) (bool, error) {
	return r.inner.Exists(ctx, key)
}

func (r *readOnlyStore) Read(ctx context.Context, key string) ([]byte, error) {
	return r.inner.Read(ctx, key)
}

func (r *readOnlyStore) List(ctx context.Context, dir string) ([]string, error) {
	return r.inner.List(ctx, dir)
}

func (r *readOnlyStore) Write(_ context.Context, key string, _ []byte) error {
	return &registryblob.ReadOnlyError{Op: "write", Key: key}
}

func (r *readOnlyStore) CreateIfAbsent(_ context.Context, key string) error {
	return &registryblob.ReadOnlyError{Op: "create", Key: key}
}

func (r *readOnlyStore) Close() error {
	return registryblob.Close(r.inner)
}

var _ registryblob.BlobStore = (*readOnlyStore)(nil)

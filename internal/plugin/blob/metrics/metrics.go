package metrics

import (
	"context"
	"time"

	internalmetrics "github.com/chirino/chat-history/internal/metrics"
	registryblob "github.com/chirino/chat-history/internal/registry/blob"
)

// Wrap returns a BlobStore that records BlobLatency for every operation,
// labelled with source.
func Wrap(inner registryblob.BlobStore, source string) registryblob.BlobStore {
	return &metricsStore{inner: inner, source: source}
}

type metricsStore struct {
	inner  registryblob.BlobStore
	source string
}

func (m *metricsStore) observe(op string, start time.Time) {
	internalmetrics.ObserveBlob(m.source, op, start)
}

func (m *metricsStore) Exists(ctx context.Context, key string) (bool, error) {
	defer m.observe("exists", time.Now())
	return m.inner.Exists(ctx, key)
}

func (m *metricsStore) Read(ctx context.Context, key string) ([]byte, error) {
	defer m.observe("read", time.Now())
	return m.inner.Read(ctx, key)
}

func (m *metricsStore) Write(ctx context.Context, key string, data []byte) error {
	defer m.observe("write", time.Now())
	return m.inner.Write(ctx, key, data)
}

func (m *metricsStore) List(ctx context.Context, dir string) ([]string, error) {
	defer m.observe("list", time.Now())
	return m.inner.List(ctx, dir)
}

func (m *metricsStore) CreateIfAbsent(ctx context.Context, key string) error {
	defer m.observe("create_if_absent", time.Now())
	return m.inner.CreateIfAbsent(ctx, key)
}

func (m *metricsStore) Close() error {
	return registryblob.Close(m.inner)
}

var _ registryblob.BlobStore = (*metricsStore)(nil)

package sqlstore_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/chirino/chat-history/internal/config"
	"github.com/chirino/chat-history/internal/plugin/blob/sqlstore"
	registryblob "github.com/chirino/chat-history/internal/registry/blob"
	registrymigrate "github.com/chirino/chat-history/internal/registry/migrate"
	"github.com/chirino/chat-history/internal/testutil/blobtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSQLite(t *testing.T) (string, context.Context) {
	t.Helper()
	_ = sqlstore.ForceImport

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	cfg := config.DefaultConfig()
	cfg.Bundled = config.SourceConfig{Kind: sqlstore.KindSQLite, DBURL: dsn}
	cfg.Local = config.SourceConfig{Kind: sqlstore.KindSQLite, DBURL: dsn}
	ctx := config.WithContext(context.Background(), &cfg)

	// Keep one connection open so the shared in-memory database survives
	// between the migrator and the stores.
	keepAlive, err := sqlstore.Open(sqlstore.KindSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlstore.New(keepAlive, "keepalive").Close() })

	require.NoError(t, registrymigrate.RunAll(ctx))
	return dsn, ctx
}

func loadStore(t *testing.T, ctx context.Context, role string) registryblob.BlobStore {
	t.Helper()
	loader, err := registryblob.Select(sqlstore.KindSQLite)
	require.NoError(t, err)
	store, err := loader(config.WithRole(ctx, role))
	require.NoError(t, err)
	return store
}

func TestWriteReadList(t *testing.T) {
	_, ctx := setupSQLite(t)
	store := loadStore(t, ctx, config.RoleLocal)

	require.NoError(t, store.Write(ctx, "chats/alice/alice_chat_0", []byte(`{"chats":[]}`)))
	require.NoError(t, store.Write(ctx, "chats/alice/alice_chat_1", []byte(`{}`)))
	require.NoError(t, store.Write(ctx, "chats/alice/alice_chat_1", []byte(`{"chats":[{"message":"x"}]}`)))
	require.NoError(t, store.Write(ctx, "userid_conversations", []byte(`{}`)))

	data, err := store.Read(ctx, "chats/alice/alice_chat_1")
	require.NoError(t, err)
	assert.Equal(t, `{"chats":[{"message":"x"}]}`, string(data))

	names, err := store.List(ctx, "chats/alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice_chat_0", "alice_chat_1"}, names)

	names, err = store.List(ctx, "chats/nobody")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestSourcesAreIsolated(t *testing.T) {
	_, ctx := setupSQLite(t)
	bundled := loadStore(t, ctx, config.RoleBundled)
	local := loadStore(t, ctx, config.RoleLocal)

	require.NoError(t, bundled.Write(ctx, "chats/bob/bob_chat_0", []byte("seed")))

	ok, err := local.Exists(ctx, "chats/bob/bob_chat_0")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = local.Read(ctx, "chats/bob/bob_chat_0")
	var nf *registryblob.NotFoundError
	assert.True(t, errors.As(err, &nf))
}

func TestCreateIfAbsentKeepsExistingData(t *testing.T) {
	_, ctx := setupSQLite(t)
	store := loadStore(t, ctx, config.RoleLocal)

	require.NoError(t, store.CreateIfAbsent(ctx, "chats/carol/carol_chat_2"))
	ok, err := store.Exists(ctx, "chats/carol/carol_chat_2")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.Write(ctx, "chats/carol/carol_chat_2", []byte("page")))
	require.NoError(t, store.CreateIfAbsent(ctx, "chats/carol/carol_chat_2"))

	data, err := store.Read(ctx, "chats/carol/carol_chat_2")
	require.NoError(t, err)
	assert.Equal(t, "page", string(data))
}

func TestBlobStoreContractSQLite(t *testing.T) {
	_, ctx := setupSQLite(t)
	blobtest.Run(t, loadStore(t, ctx, config.RoleLocal))
}

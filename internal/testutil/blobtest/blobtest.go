// Package blobtest holds behaviour every BlobStore plugin must share.
package blobtest

import (
	"context"
	"errors"
	"testing"

	registryblob "github.com/chirino/chat-history/internal/registry/blob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises store against the BlobStore contract. The store must be empty.
func Run(t *testing.T, store registryblob.BlobStore) {
	t.Run("ReadMissing", func(t *testing.T) {
		ctx := context.Background()
		_, err := store.Read(ctx, "nobody_conversations")
		var nf *registryblob.NotFoundError
		require.True(t, errors.As(err, &nf), "expected NotFoundError, got %v", err)
		assert.Equal(t, "nobody_conversations", nf.Key)

		ok, err := store.Exists(ctx, "nobody_conversations")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("WriteReadOverwrite", func(t *testing.T) {
		ctx := context.Background()
		require.NoError(t, store.Write(ctx, "chats/alice/alice_chat_0", []byte(`{"chats":[]}`)))
		require.NoError(t, store.Write(ctx, "chats/alice/alice_chat_0", []byte(`{"chats":[{"message":"hi"}]}`)))

		data, err := store.Read(ctx, "chats/alice/alice_chat_0")
		require.NoError(t, err)
		assert.JSONEq(t, `{"chats":[{"message":"hi"}]}`, string(data))
	})

	t.Run("ListDirectChildren", func(t *testing.T) {
		ctx := context.Background()
		require.NoError(t, store.Write(ctx, "chats/bob/bob_chat_0.json", []byte(`{}`)))
		require.NoError(t, store.Write(ctx, "chats/bob/bob_chat_1", []byte(`{}`)))
		require.NoError(t, store.Write(ctx, "chats/bobby/bobby_chat_0", []byte(`{}`)))

		names, err := store.List(ctx, "chats/bob")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"bob_chat_0.json", "bob_chat_1"}, names)

		names, err = store.List(ctx, "chats/nobody")
		require.NoError(t, err)
		assert.Empty(t, names)
	})

	t.Run("CreateIfAbsent", func(t *testing.T) {
		ctx := context.Background()
		require.NoError(t, store.CreateIfAbsent(ctx, "chats/carol/carol_chat_2"))
		ok, err := store.Exists(ctx, "chats/carol/carol_chat_2")
		require.NoError(t, err)
		assert.True(t, ok)

		data, err := store.Read(ctx, "chats/carol/carol_chat_2")
		require.NoError(t, err)
		assert.Empty(t, data)

		require.NoError(t, store.Write(ctx, "chats/carol/carol_chat_2", []byte("page")))
		require.NoError(t, store.CreateIfAbsent(ctx, "chats/carol/carol_chat_2"))
		data, err = store.Read(ctx, "chats/carol/carol_chat_2")
		require.NoError(t, err)
		assert.Equal(t, "page", string(data))
	})
}

package history

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/chirino/chat-history/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveBundledWinsOverLocal(t *testing.T) {
	ctx := context.Background()
	bundled, local := newMemStore(), newMemStore()
	bundled.put("chats/u/u_chat_0.json", pageJSON(t, "b0"))
	bundled.put("chats/u/u_chat_1.json", pageJSON(t, "b1"))
	local.put("chats/u/u_chat_1", pageJSON(t, "l1"))
	local.put("chats/u/u_chat_2", pageJSON(t, "l2"))

	locator, err := NewPageStore(bundled, local).Resolve(ctx, "u")
	require.NoError(t, err)
	require.Equal(t, model.PageLocator{
		0: "u_chat_0.json",
		1: "u_chat_1.json",
		2: "u_chat_2",
	}, locator)
}

func TestResolveSkipsMalformedNames(t *testing.T) {
	ctx := context.Background()
	bundled, local := newMemStore(), newMemStore()
	bundled.put("chats/u/u_chat_0", pageJSON(t, "a"))
	bundled.put("chats/u/u_chat_0.meta", "")
	bundled.put("chats/u/readme.txt", "")
	local.put("chats/u/u_chat_one", "")
	local.put("chats/u/u_chat_1_old", "")

	locator, err := NewPageStore(bundled, local).Resolve(ctx, "u")
	require.NoError(t, err)
	require.Equal(t, model.PageLocator{0: "u_chat_0"}, locator)
}

func TestResolveEmptyConversation(t *testing.T) {
	locator, err := NewPageStore(newMemStore(), newMemStore()).Resolve(context.Background(), "nobody")
	require.NoError(t, err)
	require.NotNil(t, locator)
	require.Equal(t, 0, locator.Count())
}

// Pages come back newest first, each exactly once, then no more.
func TestLoadNextPageOrdering(t *testing.T) {
	ctx := context.Background()
	bundled, local := newMemStore(), newMemStore()
	const n = 5
	for i := 0; i < n; i++ {
		store := bundled
		if i%2 == 1 {
			store = local
		}
		store.put(PageKey("u", PageName("u", i)), pageJSON(t, fmt.Sprintf("p%d", i)))
	}
	pages := NewPageStore(bundled, local)
	record := &model.ConversationRecord{ID: "u"}
	var err error
	record.Locator, err = pages.Resolve(ctx, "u")
	require.NoError(t, err)

	seen := map[string]bool{}
	for want := n - 1; want >= 0; want-- {
		require.Equal(t, want, NextPageIndexToLoad(record))
		loaded, err := pages.LoadNextPage(ctx, record)
		require.NoError(t, err)
		require.True(t, loaded)

		oldest := record.LoadedPages[len(record.LoadedPages)-1]
		body := bodies(oldest)[0]
		require.Equal(t, fmt.Sprintf("p%d", want), body)
		require.False(t, seen[body], "page %s loaded twice", body)
		seen[body] = true
	}

	loaded, err := pages.LoadNextPage(ctx, record)
	require.NoError(t, err)
	require.False(t, loaded)
	require.Equal(t, n, record.PagesLoaded)
	require.Equal(t, "p4", bodies(record.LoadedPages[0])[0], "position 0 holds the newest page")
}

func TestLoadNextPageStopsAtGap(t *testing.T) {
	ctx := context.Background()
	local := newMemStore()
	local.put("chats/u/u_chat_0", pageJSON(t, "a"))
	local.put("chats/u/u_chat_2", pageJSON(t, "c"))
	pages := NewPageStore(newMemStore(), local)

	record := &model.ConversationRecord{ID: "u"}
	var err error
	record.Locator, err = pages.Resolve(ctx, "u")
	require.NoError(t, err)
	require.Equal(t, []int{1}, record.Locator.Gaps())
	require.Equal(t, 2, NumberOfChatPages(record))

	loaded, err := pages.LoadNextPage(ctx, record)
	require.NoError(t, err)
	require.True(t, loaded, "the newest page loads despite the gap below it")
	require.Equal(t, []string{"c"}, bodies(record.LoadedPages[0]))

	loaded, err = pages.LoadNextPage(ctx, record)
	require.NoError(t, err)
	require.False(t, loaded)
	require.Equal(t, 1, record.PagesLoaded)
	require.Equal(t, -1, NextPageIndexToLoad(record))
}

func TestReadPagePrefersLocalCopy(t *testing.T) {
	ctx := context.Background()
	bundled, local := newMemStore(), newMemStore()
	bundled.put("chats/u/u_chat_0.json", pageJSON(t, "seed"))
	local.put("chats/u/u_chat_0", pageJSON(t, "seed", "edited"))

	page, err := NewPageStore(bundled, local).ReadPage(ctx, "u", "u_chat_0.json")
	require.NoError(t, err)
	require.Equal(t, []string{"seed", "edited"}, bodies(page))
}

func TestReadPageMissingEverywhere(t *testing.T) {
	_, err := NewPageStore(newMemStore(), newMemStore()).ReadPage(context.Background(), "u", "u_chat_0")
	var se *StorageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "chats/u/u_chat_0", se.Key)
}

func TestReadPageStorageFailure(t *testing.T) {
	local := newMemStore()
	local.failRead = errBoom
	_, err := NewPageStore(newMemStore(), local).ReadPage(context.Background(), "u", "u_chat_0")
	require.ErrorIs(t, err, errBoom)
}

func TestReadPageCorruptDocument(t *testing.T) {
	local := newMemStore()
	local.put("chats/u/u_chat_0", "{not json")
	_, err := NewPageStore(newMemStore(), local).ReadPage(context.Background(), "u", "u_chat_0")
	var se *StorageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "decode", se.Op)
}

func TestUnloadResetsSessionState(t *testing.T) {
	record := &model.ConversationRecord{
		ID:          "u",
		PagesLoaded: 2,
		LoadedPages: []*model.Page{{}, {}},
		Locator:     model.PageLocator{0: "u_chat_0", 1: "u_chat_1"},
	}
	Unload(record)
	require.Zero(t, record.PagesLoaded)
	require.Empty(t, record.LoadedPages)
	require.Equal(t, 2, record.Locator.Count())
}

package history

import (
	"encoding/json"
	"testing"

	"github.com/chirino/chat-history/internal/model"
	"github.com/stretchr/testify/require"
)

// pageJSON encodes a page whose messages carry the given bodies.
func pageJSON(t *testing.T, bodies ...string) string {
	t.Helper()
	page := model.Page{}
	for _, b := range bodies {
		page.Chats = append(page.Chats, model.Message{Sender: "bob", Body: b})
	}
	data, err := json.Marshal(page)
	require.NoError(t, err)
	return string(data)
}

// bodies returns the message bodies of a page.
func bodies(p *model.Page) []string {
	var out []string
	for _, m := range p.Chats {
		out = append(out, m.Body)
	}
	return out
}

// storedBodies decodes the page stored under key.
func storedBodies(t *testing.T, store *memStore, key string) []string {
	t.Helper()
	raw, ok := store.get(key)
	require.True(t, ok, "missing %s", key)
	var page model.Page
	require.NoError(t, json.Unmarshal([]byte(raw), &page))
	return bodies(&page)
}

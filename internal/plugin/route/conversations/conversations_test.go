package conversations

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chirino/chat-history/internal/history"
	"github.com/chirino/chat-history/internal/plugin/blob/fsstore"
	"github.com/chirino/chat-history/internal/plugin/blob/readonly"
	registryroute "github.com/chirino/chat-history/internal/registry/route"
	"github.com/chirino/chat-history/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func setup(t *testing.T) (*gin.Engine, string) {
	t.Helper()
	bundledDir, localDir := t.TempDir(), t.TempDir()
	writeFile(t, bundledDir, "userid_conversations", `{"conversations":[{"id":"bob","name":"Bob","photo":"bob.png"},{"id":"carol","name":"Carol"}]}`)
	writeFile(t, bundledDir, "chats/bob/bob_chat_0.json", `{"chats":[{"sender":"bob","message":"hi","timestamp":"2026-01-01T10:00:00Z"}]}`)
	writeFile(t, bundledDir, "chats/bob/bob_chat_1.json", `{"chats":[{"sender":"me","message":"hey"},{"sender":"bob","message":"how are you?"}]}`)

	svc, err := history.New(context.Background(), session.New("userid"),
		readonly.Wrap(fsstore.New(bundledDir)), fsstore.New(localDir),
		history.Options{MaxMessagesPerPage: 2, MinDisplayCount: 20})
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	for _, loader := range registryroute.Loaders(registryroute.RouteTypeMain) {
		require.NoError(t, loader(r, svc))
	}
	return r, localDir
}

func do(t *testing.T, r http.Handler, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w.Code, out
}

func TestListConversations(t *testing.T) {
	r, _ := setup(t)
	code, body := do(t, r, http.MethodGet, "/v1/conversations", "")
	require.Equal(t, http.StatusOK, code)
	list := body["conversations"].([]any)
	require.Len(t, list, 2)
	assert.Equal(t, "Bob", list[0].(map[string]any)["name"])
}

func TestOpenLoadsNewestPagesFirst(t *testing.T) {
	r, _ := setup(t)
	code, body := do(t, r, http.MethodPost, "/v1/conversations/bob/open?minDisplay=2", "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["pagesLoaded"])
	assert.EqualValues(t, 2, body["totalPages"])

	code, body = do(t, r, http.MethodPost, "/v1/conversations/bob/more", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["loaded"])
	messages := body["messages"].([]any)
	require.Len(t, messages, 3)
	assert.Equal(t, "hi", messages[0].(map[string]any)["message"])

	code, body = do(t, r, http.MethodPost, "/v1/conversations/bob/more", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["loaded"])
}

func TestAppendMessageDefaultsSender(t *testing.T) {
	r, localDir := setup(t)
	code, _ := do(t, r, http.MethodPost, "/v1/conversations/bob/open", "")
	require.Equal(t, http.StatusOK, code)

	code, body := do(t, r, http.MethodPost, "/v1/conversations/bob/messages", `{"message":"fine, thanks"}`)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, true, body["newPage"])
	assert.EqualValues(t, 2, body["pageIndex"])
	assert.NotEmpty(t, body["lastMessageDate"])

	data, err := os.ReadFile(filepath.Join(localDir, "chats", "bob", "bob_chat_2"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"sender":"me"`)
}

func TestAppendMessageValidation(t *testing.T) {
	r, _ := setup(t)
	code, body := do(t, r, http.MethodPost, "/v1/conversations/bob/messages", `{"sender":"me"}`)
	require.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "message", body["field"])
}

func TestAppendMessageIndexNotSavedStillCreated(t *testing.T) {
	r, localDir := setup(t)
	// Replace the seeded index with a directory so saving it fails.
	indexPath := filepath.Join(localDir, "userid_conversations")
	require.NoError(t, os.Remove(indexPath))
	require.NoError(t, os.MkdirAll(filepath.Join(indexPath, "blocked"), 0o755))

	code, body := do(t, r, http.MethodPost, "/v1/conversations/carol/messages", `{"message":"hello carol"}`)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "index_not_saved", body["warning"])
	assert.EqualValues(t, 0, body["pageIndex"])

	data, err := os.ReadFile(filepath.Join(localDir, "chats", "carol", "carol_chat_0"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello carol")
}

func TestOpenRejectsNonIntegerMinDisplay(t *testing.T) {
	r, _ := setup(t)
	for _, v := range []string{"3abc", "x", "1.5"} {
		code, body := do(t, r, http.MethodPost, "/v1/conversations/bob/open?minDisplay="+v, "")
		require.Equal(t, http.StatusBadRequest, code, v)
		assert.Equal(t, "minDisplay", body["field"])
	}
}

func TestAppendBeforeOpenConflicts(t *testing.T) {
	r, _ := setup(t)
	code, body := do(t, r, http.MethodPost, "/v1/conversations/bob/messages", `{"message":"too early"}`)
	require.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "not_initialized", body["code"])
}

func TestUnknownConversationIs404(t *testing.T) {
	r, _ := setup(t)
	for _, path := range []string{"/v1/conversations/ghost/open", "/v1/conversations/ghost/more", "/v1/conversations/ghost/close"} {
		code, body := do(t, r, http.MethodPost, path, "")
		require.Equal(t, http.StatusNotFound, code, path)
		assert.Equal(t, "not_found", body["code"])
	}
	code, _ := do(t, r, http.MethodGet, "/v1/conversations/ghost", "")
	require.Equal(t, http.StatusNotFound, code)
}

func TestNavigation(t *testing.T) {
	r, _ := setup(t)
	_, body := do(t, r, http.MethodGet, "/v1/navigation", "")
	assert.Equal(t, "conversations", body["current"].(map[string]any)["kind"])

	do(t, r, http.MethodPost, "/v1/conversations/carol/open", "")
	_, body = do(t, r, http.MethodPost, "/v1/navigation/profile?userId=carol", "")
	current := body["current"].(map[string]any)
	assert.Equal(t, "profile", current["kind"])
	assert.Equal(t, "carol", current["userId"])
	require.Len(t, body["stack"].([]any), 3)

	_, body = do(t, r, http.MethodPost, "/v1/navigation/back", "")
	current = body["current"].(map[string]any)
	assert.Equal(t, "conversation", current["kind"])
	assert.Equal(t, "carol", current["conversationId"])

	_, body = do(t, r, http.MethodPost, "/v1/conversations/carol/close", "")
	assert.Equal(t, "conversations", body["current"].(map[string]any)["kind"])
}

func TestLoaderNeedsService(t *testing.T) {
	gin.SetMode(gin.TestMode)
	for _, loader := range registryroute.Loaders(registryroute.RouteTypeMain) {
		require.Error(t, loader(gin.New(), nil))
	}
}

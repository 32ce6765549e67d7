package history

import (
	"strconv"
	"strings"

	registryblob "github.com/chirino/chat-history/internal/registry/blob"
)

const (
	chatsDir      = "chats"
	pageSeparator = "_chat_"
	indexSuffix   = "_conversations"
)

// PageDir is the directory holding every page of a conversation.
func PageDir(conversationID string) string {
	return registryblob.Join(chatsDir, conversationID)
}

// PageName is the canonical storage name of a page: <id>_chat_<index>.
func PageName(conversationID string, index int) string {
	return conversationID + pageSeparator + strconv.Itoa(index)
}

// PageKey is the full storage key of a named page.
func PageKey(conversationID, name string) string {
	return registryblob.Join(PageDir(conversationID), name)
}

// IndexKey is the storage key of a user's conversation index.
func IndexKey(userID string) string {
	return userID + indexSuffix
}

// isSidecar reports names that accompany pages without being pages.
func isSidecar(name string) bool {
	return strings.Contains(name, ".meta")
}

// ParsePageName extracts the page index from a name of the shape
// <conversationId>_chat_<index>, ignoring any extension. It reports false
// for anything else.
func ParsePageName(conversationID, name string) (int, bool) {
	if !strings.Contains(name, conversationID) || isSidecar(name) {
		return 0, false
	}
	base, _, _ := strings.Cut(name, ".")
	parts := strings.Split(base, "_")
	if len(parts) != 3 || parts[0] != conversationID || parts[1] != "chat" {
		return 0, false
	}
	index, err := strconv.Atoi(parts[2])
	if err != nil || index < 0 {
		return 0, false
	}
	return index, true
}

// canonicalName strips the extension from a page name.
func canonicalName(name string) string {
	base, _, _ := strings.Cut(name, ".")
	return base
}

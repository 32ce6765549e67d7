package chat

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := Command()
	cmd.Writer = &out
	require.NoError(t, cmd.Run(context.Background(), append([]string{"chat"}, args...)))
	return out.String()
}

func TestChatCommands(t *testing.T) {
	bundled, local := t.TempDir(), t.TempDir()
	writeFile(t, bundled, "userid_conversations", `{"conversations":[{"id":"bob","name":"Bob","lastMessageDate":"2026-01-01T10:00:00Z"}]}`)
	writeFile(t, bundled, "chats/bob/bob_chat_0.json", `{"chats":[{"sender":"bob","message":"hi","timestamp":"2026-01-01T10:00:00Z"}]}`)
	writeFile(t, bundled, "chats/bob/bob_chat_1.json", `{"chats":[{"sender":"bob","message":"still there?","timestamp":"2026-01-01T11:00:00Z"}]}`)
	dirs := []string{"--bundled-dir", bundled, "--local-dir", local, "--max-messages-per-page", "2", "--min-display-count", "1"}

	out := run(t, append(dirs, "list")...)
	require.Contains(t, out, "bob")
	require.Contains(t, out, "Bob")

	out = run(t, append(dirs, "show", "bob")...)
	require.Contains(t, out, "Bob (1 of 2 pages)")
	require.Contains(t, out, "still there?")
	require.NotContains(t, out, "] bob: hi")

	out = run(t, append(dirs, "show", "--all", "bob")...)
	require.Contains(t, out, "Bob (2 of 2 pages)")
	require.Contains(t, out, "] bob: hi")

	out = run(t, append(dirs, "send", "bob", "yes,", "here")...)
	require.Contains(t, out, "sent to bob (page 1)")

	data, err := os.ReadFile(filepath.Join(local, "chats", "bob", "bob_chat_1"))
	require.NoError(t, err)
	require.Contains(t, string(data), `"message":"yes, here"`)
	require.Contains(t, string(data), `"sender":"me"`)
}

func TestShowRequiresID(t *testing.T) {
	cmd := Command()
	cmd.Writer = &bytes.Buffer{}
	err := cmd.Run(context.Background(), []string{"chat", "--bundled-dir", t.TempDir(), "--local-dir", t.TempDir(), "show"})
	require.ErrorContains(t, err, "conversation id is required")
}

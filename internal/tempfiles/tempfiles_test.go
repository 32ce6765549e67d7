package tempfiles

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateMakesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "deeper")

	f, err := Create(dir, "tempfiles-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	rel, err := filepath.Rel(dir, f.Name())
	require.NoError(t, err)
	require.NotContains(t, rel, "..")
}

func TestWriteAtomicReplacesContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "alice_chat_0")

	require.NoError(t, WriteAtomic(path, []byte(`{"chats":[]}`), 0o644))
	require.NoError(t, WriteAtomic(path, []byte(`{"chats":[{"message":"hi"}]}`), 0o644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, `{"chats":[{"message":"hi"}]}`, string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp file must not be left behind")
}

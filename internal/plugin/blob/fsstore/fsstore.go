package fsstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/chirino/chat-history/internal/config"
	registryblob "github.com/chirino/chat-history/internal/registry/blob"
	"github.com/chirino/chat-history/internal/tempfiles"
)

func init() {
	registryblob.Register(registryblob.Plugin{
		Name:   "fs",
		Loader: load,
	})
}

func load(ctx context.Context) (registryblob.BlobStore, error) {
	cfg := config.FromContext(ctx)
	if cfg == nil {
		return nil, fmt.Errorf("fsstore: missing config in context")
	}
	role := config.RoleFromContext(ctx)
	dir := strings.TrimSpace(cfg.Source(role).Dir)
	if dir == "" {
		return nil, fmt.Errorf("fsstore: %s directory is required", role)
	}
	return New(dir), nil
}

// FileStore keeps one file per key below a root directory.
type FileStore struct {
	root string
}

// New returns a FileStore rooted at dir. The directory is created lazily by
// the first write.
func New(dir string) *FileStore {
	return &FileStore{root: dir}
}

// Root returns the directory the store writes to.
func (s *FileStore) Root() string {
	return s.root
}

func (s *FileStore) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.Trim(key, "/")))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || filepath.IsAbs(clean) {
		return "", fmt.Errorf("fsstore: invalid key %q", key)
	}
	return filepath.Join(s.root, clean), nil
}

func (s *FileStore) Exists(_ context.Context, key string) (bool, error) {
	p, err := s.path(key)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("fsstore: stat %s: %w", key, err)
	}
	return !info.IsDir(), nil
}

func (s *FileStore) Read(_ context.Context, key string) ([]byte, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &registryblob.NotFoundError{Key: key}
	}
	if err != nil {
		return nil, fmt.Errorf("fsstore: read %s: %w", key, err)
	}
	return data, nil
}

func (s *FileStore) Write(_ context.Context, key string, data []byte) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := tempfiles.WriteAtomic(p, data, 0o644); err != nil {
		return fmt.Errorf("fsstore: write %s: %w", key, err)
	}
	return nil
}

func (s *FileStore) List(_ context.Context, dir string) ([]string, error) {
	p := s.root
	if d := strings.Trim(dir, "/"); d != "" {
		var err error
		if p, err = s.path(d); err != nil {
			return nil, err
		}
	}
	entries, err := os.ReadDir(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fsstore: list %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.Contains(e.Name(), ".tmp-") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (s *FileStore) CreateIfAbsent(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("fsstore: create directory for %s: %w", key, err)
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("fsstore: create %s: %w", key, err)
	}
	return f.Close()
}

var _ registryblob.BlobStore = (*FileStore)(nil)

package blob

import (
	"context"
	"fmt"
	"path"
	"strings"
)

// BlobStore is the storage contract the history core relies on. Keys are
// slash-separated paths; a directory is the key prefix up to the last slash.
type BlobStore interface {
	// Exists reports whether an object is stored under key.
	Exists(ctx context.Context, key string) (bool, error)
	// Read returns the full contents stored under key, or a *NotFoundError.
	Read(ctx context.Context, key string) ([]byte, error)
	// Write replaces the contents stored under key.
	Write(ctx context.Context, key string, data []byte) error
	// List returns the base names of the objects directly inside dir.
	// A directory that does not exist yields an empty list.
	List(ctx context.Context, dir string) ([]string, error)
	// CreateIfAbsent creates an empty object under key (and any parent
	// directories the medium needs) if nothing is stored there yet.
	CreateIfAbsent(ctx context.Context, key string) error
}

// Loader creates a BlobStore from the config and role carried by ctx.
type Loader func(ctx context.Context) (BlobStore, error)

// Plugin represents a blob store plugin.
type Plugin struct {
	Name   string
	Loader Loader
}

var plugins []Plugin

// Register adds a blob store plugin.
func Register(p Plugin) {
	plugins = append(plugins, p)
}

// Names returns all registered blob store plugin names.
func Names() []string {
	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.Name
	}
	return names
}

// Select returns the loader for the named blob store plugin.
func Select(name string) (Loader, error) {
	for _, p := range plugins {
		if p.Name == name {
			return p.Loader, nil
		}
	}
	return nil, fmt.Errorf("unknown blob store %q; valid: %v", name, Names())
}

// Join builds a key from a directory and a base name.
func Join(dir, name string) string {
	dir = strings.Trim(dir, "/")
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

// Split returns the directory and base name of key.
func Split(key string) (dir, name string) {
	key = strings.Trim(key, "/")
	dir, name = path.Split(key)
	return strings.TrimSuffix(dir, "/"), name
}

// Close releases resources held by store if it implements io.Closer.
func Close(store BlobStore) error {
	if c, ok := store.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

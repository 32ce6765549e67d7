package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	internalmetrics "github.com/chirino/chat-history/internal/metrics"
	"github.com/chirino/chat-history/internal/model"
	registryblob "github.com/chirino/chat-history/internal/registry/blob"
)

// PageStore resolves and reads the pages of a conversation from the
// read-only bundled source and the mutable local store, and writes pages to
// the local store.
type PageStore struct {
	bundled registryblob.BlobStore
	local   registryblob.BlobStore
}

// NewPageStore returns a PageStore over the two sources.
func NewPageStore(bundled, local registryblob.BlobStore) *PageStore {
	return &PageStore{bundled: bundled, local: local}
}

// Resolve builds the page locator of a conversation. Bundled entries are
// inserted first and win over a local entry with the same index. Malformed
// names are skipped.
func (s *PageStore) Resolve(ctx context.Context, conversationID string) (model.PageLocator, error) {
	locator := model.PageLocator{}
	dir := PageDir(conversationID)
	for _, src := range []struct {
		name  string
		store registryblob.BlobStore
	}{
		{"bundled", s.bundled},
		{"local", s.local},
	} {
		names, err := src.store.List(ctx, dir)
		if err != nil {
			return nil, &StorageError{Op: "list " + src.name, Key: dir, Err: err}
		}
		for _, name := range names {
			if isSidecar(name) {
				continue
			}
			index, ok := ParsePageName(conversationID, name)
			if !ok {
				internalmetrics.Inc(internalmetrics.MalformedEntriesTotal)
				log.Debug("Skipping malformed page name", "conversation", conversationID, "source", src.name, "name", name)
				continue
			}
			if !locator.Add(index, name) {
				log.Debug("Ignoring shadowed page", "conversation", conversationID, "source", src.name, "index", index, "name", name)
			}
		}
	}
	if gaps := locator.Gaps(); len(gaps) > 0 {
		log.Warn("Page sequence has gaps; history ends at the newest gap", "conversation", conversationID, "missing", gaps)
	}
	return locator, nil
}

// ReadPage loads a page by its locator name. A local copy (under the exact
// name or the extension-less canonical name) takes precedence over the
// bundled page.
func (s *PageStore) ReadPage(ctx context.Context, conversationID, name string) (*model.Page, error) {
	candidates := []struct {
		store registryblob.BlobStore
		key   string
	}{
		{s.local, PageKey(conversationID, name)},
	}
	if canonical := canonicalName(name); canonical != name {
		candidates = append(candidates, struct {
			store registryblob.BlobStore
			key   string
		}{s.local, PageKey(conversationID, canonical)})
	}
	candidates = append(candidates, struct {
		store registryblob.BlobStore
		key   string
	}{s.bundled, PageKey(conversationID, name)})

	for _, c := range candidates {
		data, err := c.store.Read(ctx, c.key)
		var nf *registryblob.NotFoundError
		if errors.As(err, &nf) {
			continue
		}
		if err != nil {
			return nil, &StorageError{Op: "read", Key: c.key, Err: err}
		}
		if len(data) == 0 {
			// Created but never written; an empty page.
			return &model.Page{}, nil
		}
		var page model.Page
		if err := json.Unmarshal(data, &page); err != nil {
			return nil, &StorageError{Op: "decode", Key: c.key, Err: err}
		}
		return &page, nil
	}
	key := PageKey(conversationID, name)
	return nil, &StorageError{Op: "read", Key: key, Err: &registryblob.NotFoundError{Key: key}}
}

// WritePage persists page under its canonical name in the local store,
// creating the object first if it does not exist yet.
func (s *PageStore) WritePage(ctx context.Context, conversationID string, index int, page *model.Page) error {
	key := PageKey(conversationID, PageName(conversationID, index))
	data, err := json.Marshal(page)
	if err != nil {
		return fmt.Errorf("encode page %s: %w", key, err)
	}
	if err := s.local.CreateIfAbsent(ctx, key); err != nil {
		return &StorageError{Op: "create", Key: key, Err: err}
	}
	if err := s.local.Write(ctx, key, data); err != nil {
		return &StorageError{Op: "write", Key: key, Err: err}
	}
	return nil
}

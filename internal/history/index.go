package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/chirino/chat-history/internal/model"
	registryblob "github.com/chirino/chat-history/internal/registry/blob"
)

// IndexStore loads and saves a user's conversation index. The local copy is
// authoritative once it exists; until then the bundled index seeds it.
type IndexStore struct {
	bundled registryblob.BlobStore
	local   registryblob.BlobStore
}

// NewIndexStore returns an IndexStore over the two sources.
func NewIndexStore(bundled, local registryblob.BlobStore) *IndexStore {
	return &IndexStore{bundled: bundled, local: local}
}

// Load returns the conversation index of userID. When no local copy exists
// the bundled index is read and copied to the local store. When neither
// exists the index is empty.
func (s *IndexStore) Load(ctx context.Context, userID string) (*model.ConversationIndex, error) {
	key := IndexKey(userID)

	data, err := s.local.Read(ctx, key)
	var nf *registryblob.NotFoundError
	switch {
	case err == nil && len(data) > 0:
		return decodeIndex(key, data)
	case err != nil && !errors.As(err, &nf):
		return nil, &StorageError{Op: "read", Key: key, Err: err}
	}

	data, err = s.bundled.Read(ctx, key)
	if errors.As(err, &nf) {
		log.Warn("No conversation index found; starting empty", "user", userID)
		return &model.ConversationIndex{}, nil
	}
	if err != nil {
		return nil, &StorageError{Op: "read bundled", Key: key, Err: err}
	}
	idx, err := decodeIndex(key, data)
	if err != nil {
		return nil, err
	}
	if err := s.Save(ctx, userID, idx); err != nil {
		return nil, err
	}
	log.Info("Seeded local conversation index", "user", userID, "conversations", len(idx.Conversations))
	return idx, nil
}

// Save writes the durable fields of idx to the local store, creating the
// object on first save.
func (s *IndexStore) Save(ctx context.Context, userID string, idx *model.ConversationIndex) error {
	key := IndexKey(userID)
	data, err := json.Marshal(idx)
	if err != nil {
		return fmt.Errorf("encode index %s: %w", key, err)
	}
	if err := s.local.CreateIfAbsent(ctx, key); err != nil {
		return &StorageError{Op: "create", Key: key, Err: err}
	}
	if err := s.local.Write(ctx, key, data); err != nil {
		return &StorageError{Op: "write", Key: key, Err: err}
	}
	return nil
}

func decodeIndex(key string, data []byte) (*model.ConversationIndex, error) {
	var idx model.ConversationIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, &StorageError{Op: "decode", Key: key, Err: err}
	}
	kept := idx.Conversations[:0]
	for _, c := range idx.Conversations {
		if c != nil && c.ID != "" {
			kept = append(kept, c)
		}
	}
	idx.Conversations = kept
	return &idx, nil
}

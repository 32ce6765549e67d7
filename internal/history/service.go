package history

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/chirino/chat-history/internal/model"
	registryblob "github.com/chirino/chat-history/internal/registry/blob"
	"github.com/chirino/chat-history/internal/session"
)

// Options tunes a Service.
type Options struct {
	// MaxMessagesPerPage is the page capacity used by appends.
	MaxMessagesPerPage int
	// MinDisplayCount is the default minimum number of messages loaded when
	// a conversation is initialized.
	MinDisplayCount int
}

// Service is the consumer-facing API over one user's chat history. All
// calls are serialized; the service is safe for concurrent use.
type Service struct {
	session *session.Session
	pages   *PageStore
	indexes *IndexStore
	engine  *AppendEngine
	opts    Options

	mu    sync.Mutex
	index *model.ConversationIndex
}

// New loads the conversation index of the session's user and returns a
// Service over it.
func New(ctx context.Context, sess *session.Session, bundled, local registryblob.BlobStore, opts Options) (*Service, error) {
	pages := NewPageStore(bundled, local)
	indexes := NewIndexStore(bundled, local)
	idx, err := indexes.Load(ctx, sess.UserID())
	if err != nil {
		return nil, err
	}
	log.Debug("Loaded conversation index", "user", sess.UserID(), "conversations", len(idx.Conversations))
	return &Service{
		session: sess,
		pages:   pages,
		indexes: indexes,
		engine:  NewAppendEngine(pages, opts.MaxMessagesPerPage),
		opts:    opts,
		index:   idx,
	}, nil
}

// Session returns the session the service was created for.
func (s *Service) Session() *session.Session {
	return s.session
}

// GetConversations returns the durable fields of every conversation in
// display order.
func (s *Service) GetConversations() []model.ConversationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ConversationRecord, 0, len(s.index.Conversations))
	for _, c := range s.index.Conversations {
		out = append(out, c.Summary())
	}
	return out
}

// GetConversation returns a snapshot of the conversation, including its
// session state, or false when the id is unknown.
func (s *Service) GetConversation(id string) (model.ConversationRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record := s.index.Find(id)
	if record == nil {
		return model.ConversationRecord{}, false
	}
	return snapshot(record), true
}

// InitializeChatHistory resets the session state of the conversation,
// resolves its pages and loads them newest first until at least minDisplay
// messages are cached or the history is exhausted. A minDisplay below one
// uses the configured default.
func (s *Service) InitializeChatHistory(ctx context.Context, id string, minDisplay int) (model.ConversationRecord, error) {
	if minDisplay < 1 {
		minDisplay = s.opts.MinDisplayCount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	record, err := s.find(id)
	if err != nil {
		return model.ConversationRecord{}, err
	}
	Unload(record)
	locator, err := s.pages.Resolve(ctx, id)
	if err != nil {
		return model.ConversationRecord{}, err
	}
	record.Locator = locator
	for record.MessageCount() < minDisplay {
		loaded, err := s.pages.LoadNextPage(ctx, record)
		if err != nil {
			return model.ConversationRecord{}, err
		}
		if !loaded {
			break
		}
	}
	log.Debug("Initialized chat history", "conversation", id, "pages", record.PagesLoaded, "messages", record.MessageCount())
	return snapshot(record), nil
}

// LoadMoreChatHistory loads the next older page of the conversation. It
// reports false when there is nothing more to load.
func (s *Service) LoadMoreChatHistory(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, err := s.find(id)
	if err != nil {
		return false, err
	}
	if record.Locator == nil {
		return false, &NotInitializedError{ConversationID: id}
	}
	return s.pages.LoadNextPage(ctx, record)
}

// AppendMessage persists msg to the newest page of the conversation and
// stamps the conversation's last message date. The message is durable once
// the page write succeeds; if saving the index afterwards fails the result is
// still returned alongside an IndexNotSavedError.
func (s *Service) AppendMessage(ctx context.Context, id string, msg model.Message) (AppendResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, err := s.find(id)
	if err != nil {
		return AppendResult{}, err
	}
	if record.Locator == nil {
		// Never initialized: resolve so an empty conversation can bootstrap
		// its first page and a stored one is detected.
		locator, err := s.pages.Resolve(ctx, id)
		if err != nil {
			return AppendResult{}, err
		}
		record.Locator = locator
	}
	result, err := s.engine.Append(ctx, record, msg)
	if err != nil {
		return AppendResult{}, err
	}
	if msg.Timestamp != "" {
		record.LastMessageDate = msg.Timestamp
	}
	if err := s.indexes.Save(ctx, s.session.UserID(), s.index); err != nil {
		return result, &IndexNotSavedError{UserID: s.session.UserID(), Err: err}
	}
	return result, nil
}

// Unload drops the session state of the conversation.
func (s *Service) Unload(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, err := s.find(id)
	if err != nil {
		return err
	}
	Unload(record)
	return nil
}

// OpenConversation navigates to the conversation and initializes its history.
func (s *Service) OpenConversation(ctx context.Context, id string, minDisplay int) (model.ConversationRecord, error) {
	record, err := s.InitializeChatHistory(ctx, id, minDisplay)
	if err != nil {
		return model.ConversationRecord{}, err
	}
	s.session.Push(session.Conversation{ConversationID: id})
	return record, nil
}

// CloseConversation unloads the conversation and leaves its screen when it
// is the current one.
func (s *Service) CloseConversation(id string) error {
	if err := s.Unload(id); err != nil {
		return err
	}
	if s.session.Current() == (session.Conversation{ConversationID: id}) {
		s.session.Back()
	}
	return nil
}

func (s *Service) find(id string) (*model.ConversationRecord, error) {
	record := s.index.Find(id)
	if record == nil {
		return nil, &NotFoundError{Resource: "conversation", ID: id}
	}
	return record, nil
}

func snapshot(record *model.ConversationRecord) model.ConversationRecord {
	out := record.Summary()
	out.PagesLoaded = record.PagesLoaded
	out.LoadedPages = make([]*model.Page, len(record.LoadedPages))
	for i, p := range record.LoadedPages {
		out.LoadedPages[i] = p.Clone()
	}
	if record.Locator != nil {
		out.Locator = make(model.PageLocator, len(record.Locator))
		for k, v := range record.Locator {
			out.Locator[k] = v
		}
	}
	return out
}

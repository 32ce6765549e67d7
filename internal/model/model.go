package model

// Message is a single chat line. Immutable once created.
type Message struct {
	Sender    string `json:"sender,omitempty"`
	Body      string `json:"message,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Page is a bounded batch of messages, oldest first. It is the unit of
// storage and lazy loading.
type Page struct {
	Chats []Message `json:"chats,omitempty"`
}

// Len returns the number of messages on the page.
func (p *Page) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Chats)
}

// Clone returns a deep copy of the page.
func (p *Page) Clone() *Page {
	if p == nil {
		return nil
	}
	out := &Page{Chats: make([]Message, len(p.Chats))}
	copy(out.Chats, p.Chats)
	return out
}

// ConversationRecord is the durable metadata entry for one counterpart plus
// the per-session pagination state.
type ConversationRecord struct {
	ID              string `json:"id,omitempty"`
	Name            string `json:"name,omitempty"`
	Photo           string `json:"photo,omitempty"`
	LastMessageDate string `json:"lastMessageDate,omitempty"`

	// Session state; never persisted.
	PagesLoaded int         `json:"-"`
	LoadedPages []*Page     `json:"-"`
	Locator     PageLocator `json:"-"`
}

// Summary returns a copy of the durable fields only.
func (r *ConversationRecord) Summary() ConversationRecord {
	return ConversationRecord{
		ID:              r.ID,
		Name:            r.Name,
		Photo:           r.Photo,
		LastMessageDate: r.LastMessageDate,
	}
}

// MessageCount returns the number of messages across all loaded pages.
func (r *ConversationRecord) MessageCount() int {
	n := 0
	for _, p := range r.LoadedPages {
		n += p.Len()
	}
	return n
}

// ConversationIndex is the durable, display-ordered list of conversations
// for the active user.
type ConversationIndex struct {
	Conversations []*ConversationRecord `json:"conversations,omitempty"`
}

// Find returns the record with the given id, or nil.
func (idx *ConversationIndex) Find(id string) *ConversationRecord {
	if idx == nil {
		return nil
	}
	for _, c := range idx.Conversations {
		if c.ID == id {
			return c
		}
	}
	return nil
}

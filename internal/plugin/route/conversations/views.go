package conversations

import (
	"github.com/chirino/chat-history/internal/model"
	"github.com/chirino/chat-history/internal/session"
)

type conversationView struct {
	ID              string `json:"id"`
	Name            string `json:"name,omitempty"`
	Photo           string `json:"photo,omitempty"`
	LastMessageDate string `json:"lastMessageDate,omitempty"`
	PagesLoaded     int    `json:"pagesLoaded"`
	TotalPages      int    `json:"totalPages"`
	// Pages are the loaded pages, newest first.
	Pages [][]model.Message `json:"pages"`
	// Messages are the loaded messages, oldest first.
	Messages []model.Message `json:"messages"`

	Loaded    *bool `json:"loaded,omitempty"`
	NewPage   *bool `json:"newPage,omitempty"`
	PageIndex *int  `json:"pageIndex,omitempty"`

	// Warning is set when the message was stored but follow-up bookkeeping failed.
	Warning string `json:"warning,omitempty"`
}

func newConversationView(r model.ConversationRecord) conversationView {
	v := conversationView{
		ID:              r.ID,
		Name:            r.Name,
		Photo:           r.Photo,
		LastMessageDate: r.LastMessageDate,
		PagesLoaded:     r.PagesLoaded,
		TotalPages:      r.Locator.Count(),
		Pages:           make([][]model.Message, 0, len(r.LoadedPages)),
		Messages:        make([]model.Message, 0, r.MessageCount()),
	}
	for _, p := range r.LoadedPages {
		chats := p.Chats
		if chats == nil {
			chats = []model.Message{}
		}
		v.Pages = append(v.Pages, chats)
	}
	for i := len(r.LoadedPages) - 1; i >= 0; i-- {
		v.Messages = append(v.Messages, r.LoadedPages[i].Chats...)
	}
	return v
}

type screenView struct {
	Kind           string `json:"kind"`
	ConversationID string `json:"conversationId,omitempty"`
	UserID         string `json:"userId,omitempty"`
}

type navigationView struct {
	Current screenView   `json:"current"`
	Stack   []screenView `json:"stack"`
}

func newScreenView(s session.Screen) screenView {
	v := screenView{Kind: s.Kind()}
	switch s := s.(type) {
	case session.Conversation:
		v.ConversationID = s.ConversationID
	case session.Profile:
		v.UserID = s.UserID
	}
	return v
}

func newNavigationView(s *session.Session) navigationView {
	stack := s.Stack()
	v := navigationView{Stack: make([]screenView, 0, len(stack))}
	for _, screen := range stack {
		v.Stack = append(v.Stack, newScreenView(screen))
	}
	v.Current = v.Stack[len(v.Stack)-1]
	return v
}

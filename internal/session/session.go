// Package session holds the state of one interactive user session: the
// active user and the navigation stack of screens.
package session

import "sync"

// Screen is one entry on the navigation stack. The concrete types are
// ConversationsList, Profile and Conversation.
type Screen interface {
	// Kind names the screen variant.
	Kind() string
	isScreen()
}

// ConversationsList is the root screen listing every conversation.
type ConversationsList struct{}

func (ConversationsList) Kind() string { return "conversations" }
func (ConversationsList) isScreen() {}

// Profile shows the details of a user.
type Profile struct {
	UserID string
}

func (Profile) Kind() string { return "profile" }
func (Profile) isScreen() {}

// Conversation shows the message history of one conversation.
type Conversation struct {
	ConversationID string
}

func (Conversation) Kind() string { return "conversation" }
func (Conversation) isScreen() {}

// Session carries the active user and navigation state. It is passed to the
// components that need it rather than reached through a global.
type Session struct {
	userID string

	mu    sync.Mutex
	stack []Screen
}

// New returns a session for userID positioned on the conversations list.
func New(userID string) *Session {
	return &Session{
		userID: userID,
		stack:  []Screen{ConversationsList{}},
	}
}

// UserID returns the active user.
func (s *Session) UserID() string {
	return s.userID
}

// Push navigates to screen. Pushing the screen already on top is a no-op.
func (s *Session) Push(screen Screen) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.stack) > 0 && s.stack[len(s.stack)-1] == screen {
		return
	}
	s.stack = append(s.stack, screen)
}

// Back pops the top screen and returns it. The root screen is never popped;
// Back reports false when only the root remains.
func (s *Session) Back() (Screen, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.stack) <= 1 {
		return nil, false
	}
	top := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	return top, true
}

// Current returns the screen on top of the stack.
func (s *Session) Current() Screen {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stack[len(s.stack)-1]
}

// Stack returns a copy of the navigation stack, root first.
func (s *Session) Stack() []Screen {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Screen, len(s.stack))
	copy(out, s.stack)
	return out
}

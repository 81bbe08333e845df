// Package memory is an in-process implementation of the store contracts. It
// backs tests and the dev mode that runs without a document database.
package memory

import (
	"sync"
	"time"

	"github.com/hugomanns/realtime-chat/internal/model"
)

// Store holds users, messages and conversations behind one mutex. The
// per-contract views returned by Users, Messages and Conversations share it.
type Store struct {
	mu            sync.RWMutex
	users         map[string]model.User
	messages      map[string]model.Message
	conversations map[string]model.Conversation
	byKey         map[string]string
	now           func() time.Time
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		users:         make(map[string]model.User),
		messages:      make(map[string]model.Message),
		conversations: make(map[string]model.Conversation),
		byKey:         make(map[string]string),
		now:           time.Now,
	}
}

// Users returns the store.UserStore view.
func (s *Store) Users() *UserStore { return &UserStore{s: s} }

// Messages returns the store.MessageStore view.
func (s *Store) Messages() *MessageStore { return &MessageStore{s: s} }

// Conversations returns the store.ConversationStore view.
func (s *Store) Conversations() *ConversationStore { return &ConversationStore{s: s} }

// PutUser adds or replaces a user profile.
func (s *Store) PutUser(u model.User) {
	s.mu.Lock()
	s.users[u.ID] = u
	s.mu.Unlock()
}

// User returns a copy of the stored user.
func (s *Store) User(id string) (model.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	return u, ok
}

// Conversation returns a copy of the stored conversation.
func (s *Store) Conversation(id string) (model.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[id]
	return cloneConversation(c), ok
}

func cloneMessage(m model.Message) model.Message {
	m.Reactions = append([]model.Reaction{}, m.Reactions...)
	if m.Media != nil {
		media := *m.Media
		m.Media = &media
	}
	return m
}

func cloneConversation(c model.Conversation) model.Conversation {
	c.Participants = append([]string(nil), c.Participants...)
	return c
}

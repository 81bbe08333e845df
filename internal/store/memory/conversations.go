package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hugomanns/realtime-chat/internal/errs"
	"github.com/hugomanns/realtime-chat/internal/model"
)

// ConversationStore is the in-memory store.ConversationStore.
type ConversationStore struct {
	s *Store
}

func (cs *ConversationStore) GetOrCreate(_ context.Context, a, b string) (*model.Conversation, error) {
	key := model.PairKey(a, b)

	cs.s.mu.Lock()
	defer cs.s.mu.Unlock()
	if id, ok := cs.s.byKey[key]; ok {
		c := cloneConversation(cs.s.conversations[id])
		return &c, nil
	}
	now := cs.s.now()
	c := model.Conversation{
		ID:           uuid.NewString(),
		Key:          key,
		Participants: model.Participants(a, b),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	cs.s.conversations[c.ID] = c
	cs.s.byKey[key] = c.ID
	out := cloneConversation(c)
	return &out, nil
}

func (cs *ConversationStore) FindByID(_ context.Context, id string) (*model.Conversation, error) {
	cs.s.mu.RLock()
	defer cs.s.mu.RUnlock()
	c, ok := cs.s.conversations[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	out := cloneConversation(c)
	return &out, nil
}

func (cs *ConversationStore) RecordMessage(_ context.Context, conversationID, messageID string, at time.Time) error {
	cs.s.mu.Lock()
	defer cs.s.mu.Unlock()
	c, ok := cs.s.conversations[conversationID]
	if !ok {
		return errs.ErrNotFound
	}
	c.LastMessage = messageID
	c.UpdatedAt = at
	c.UnreadCount++
	cs.s.conversations[conversationID] = c
	return nil
}

func (cs *ConversationStore) ResetUnread(_ context.Context, conversationID string) error {
	cs.s.mu.Lock()
	defer cs.s.mu.Unlock()
	c, ok := cs.s.conversations[conversationID]
	if !ok {
		return errs.ErrNotFound
	}
	c.UnreadCount = 0
	cs.s.conversations[conversationID] = c
	return nil
}

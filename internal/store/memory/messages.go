package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hugomanns/realtime-chat/internal/errs"
	"github.com/hugomanns/realtime-chat/internal/model"
)

// MessageStore is the in-memory store.MessageStore.
type MessageStore struct {
	s *Store
}

func (ms *MessageStore) Create(_ context.Context, m *model.Message) error {
	ms.s.mu.Lock()
	defer ms.s.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if _, dup := ms.s.messages[m.ID]; dup {
		return fmt.Errorf("message %s exists: %w", m.ID, errs.ErrValidation)
	}
	if m.Reactions == nil {
		m.Reactions = []model.Reaction{}
	}
	ms.s.messages[m.ID] = cloneMessage(*m)
	return nil
}

func (ms *MessageStore) FindByID(_ context.Context, id string) (*model.Message, error) {
	ms.s.mu.RLock()
	defer ms.s.mu.RUnlock()
	m, ok := ms.s.messages[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := cloneMessage(m)
	return &c, nil
}

func (ms *MessageStore) FindByIDs(_ context.Context, ids []string) ([]model.Message, error) {
	ms.s.mu.RLock()
	defer ms.s.mu.RUnlock()
	var out []model.Message
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if m, ok := ms.s.messages[id]; ok {
			out = append(out, cloneMessage(m))
		}
	}
	return out, nil
}

func (ms *MessageStore) ListByConversation(_ context.Context, conversationID string, limit int64) ([]model.Message, error) {
	ms.s.mu.RLock()
	var out []model.Message
	for _, m := range ms.s.messages {
		if m.ConversationID == conversationID {
			out = append(out, cloneMessage(m))
		}
	}
	ms.s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && int64(len(out)) > limit {
		out = out[int64(len(out))-limit:]
	}
	return out, nil
}

func (ms *MessageStore) MarkDelivered(_ context.Context, id string) (bool, error) {
	ms.s.mu.Lock()
	defer ms.s.mu.Unlock()
	m, ok := ms.s.messages[id]
	if !ok || m.Status != model.StatusSent {
		return false, nil
	}
	m.Status = model.StatusDelivered
	ms.s.messages[id] = m
	return true, nil
}

func (ms *MessageStore) MarkRead(_ context.Context, ids []string, receiverID string, at time.Time) (int64, error) {
	ms.s.mu.Lock()
	defer ms.s.mu.Unlock()
	var n int64
	for _, id := range ids {
		m, ok := ms.s.messages[id]
		if !ok || m.ReceiverID != receiverID || m.Status == model.StatusRead {
			continue
		}
		seen := at
		m.Status = model.StatusRead
		m.SeenAt = &seen
		ms.s.messages[id] = m
		n++
	}
	return n, nil
}

func (ms *MessageStore) AddReaction(_ context.Context, messageID string, r model.Reaction) error {
	return ms.update(messageID, func(rs []model.Reaction) []model.Reaction {
		for _, existing := range rs {
			if existing.UserID == r.UserID {
				return rs
			}
		}
		return model.ApplyReaction(rs, model.ReactionAdd, r.UserID, r.Emoji, r.CreatedAt)
	})
}

func (ms *MessageStore) ReplaceReaction(_ context.Context, messageID, userID, emoji string) error {
	return ms.update(messageID, func(rs []model.Reaction) []model.Reaction {
		return model.ApplyReaction(rs, model.ReactionReplace, userID, emoji, time.Time{})
	})
}

func (ms *MessageStore) RemoveReaction(_ context.Context, messageID, userID string) error {
	return ms.update(messageID, func(rs []model.Reaction) []model.Reaction {
		return model.ApplyReaction(rs, model.ReactionRemove, userID, "", time.Time{})
	})
}

func (ms *MessageStore) update(messageID string, fn func([]model.Reaction) []model.Reaction) error {
	ms.s.mu.Lock()
	defer ms.s.mu.Unlock()
	m, ok := ms.s.messages[messageID]
	if !ok {
		return errs.ErrNotFound
	}
	m.Reactions = fn(m.Reactions)
	ms.s.messages[messageID] = m
	return nil
}

func (ms *MessageStore) Delete(_ context.Context, id string) error {
	ms.s.mu.Lock()
	defer ms.s.mu.Unlock()
	if _, ok := ms.s.messages[id]; !ok {
		return errs.ErrNotFound
	}
	delete(ms.s.messages, id)
	return nil
}

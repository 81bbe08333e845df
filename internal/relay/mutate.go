package relay

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hugomanns/realtime-chat/internal/errs"
	"github.com/hugomanns/realtime-chat/internal/events"
	"github.com/hugomanns/realtime-chat/internal/model"
)

// ToggleReaction adds, replaces or removes the caller's reaction and sends
// the full reaction list to both participants.
func (s *Service) ToggleReaction(ctx context.Context, callerID, messageID, emoji string) (*events.ReactionPayload, error) {
	if callerID == "" || messageID == "" || emoji == "" {
		return nil, fmt.Errorf("react: %w", errs.ErrValidation)
	}

	m, err := s.messages.FindByID(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("load message %s: %w", messageID, err)
	}
	if !m.IsParticipant(callerID) {
		return nil, fmt.Errorf("react to %s: %w", messageID, errs.ErrForbidden)
	}

	op := model.DecideReaction(m.Reactions, callerID, emoji)
	switch op {
	case model.ReactionAdd:
		err = s.messages.AddReaction(ctx, messageID, model.Reaction{UserID: callerID, Emoji: emoji, CreatedAt: s.now()})
	case model.ReactionReplace:
		err = s.messages.ReplaceReaction(ctx, messageID, callerID, emoji)
	case model.ReactionRemove:
		err = s.messages.RemoveReaction(ctx, messageID, callerID)
	}
	if err != nil {
		return nil, fmt.Errorf("%s reaction on %s: %w", op, messageID, err)
	}

	m, err = s.messages.FindByID(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("reload message %s: %w", messageID, err)
	}

	payload := &events.ReactionPayload{MessageID: m.ID, Reactions: s.expand(ctx, m.Reactions)}
	s.emit.EmitTo(m.SenderID, events.ReactionUpdate, payload)
	if m.ReceiverID != m.SenderID {
		s.emit.EmitTo(m.ReceiverID, events.ReactionUpdate, payload)
	}
	return payload, nil
}

// expand replaces reaction user ids with profiles. Unknown users keep a bare id.
func (s *Service) expand(ctx context.Context, reactions []model.Reaction) []events.ReactionView {
	views := make([]events.ReactionView, 0, len(reactions))
	if len(reactions) == 0 {
		return views
	}

	ids := make([]string, 0, len(reactions))
	for _, r := range reactions {
		ids = append(ids, r.UserID)
	}
	profiles, err := s.users.Profiles(ctx, ids)
	if err != nil {
		s.log.Warn("expand reaction profiles", zap.Error(err))
	}

	for _, r := range reactions {
		p, ok := profiles[r.UserID]
		if !ok {
			p = model.Profile{ID: r.UserID}
		}
		views = append(views, events.ReactionView{User: p, Emoji: r.Emoji, CreatedAt: r.CreatedAt})
	}
	return views
}

// MarkRead marks the caller's unread messages among ids as read, tells each
// sender, and resets the unread counters of the touched conversations. It
// returns the ids that changed.
func (s *Service) MarkRead(ctx context.Context, callerID string, ids []string) ([]string, error) {
	if callerID == "" {
		return nil, fmt.Errorf("mark read: %w", errs.ErrValidation)
	}
	ids = uniqueNonEmpty(ids)
	if len(ids) == 0 {
		return nil, nil
	}

	msgs, err := s.messages.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}

	var targets []model.Message
	for _, m := range msgs {
		if m.ReceiverID == callerID && m.Status != model.StatusRead {
			targets = append(targets, m)
		}
	}
	if len(targets) == 0 {
		return nil, nil
	}

	targetIDs := make([]string, 0, len(targets))
	for _, m := range targets {
		targetIDs = append(targetIDs, m.ID)
	}
	if _, err := s.messages.MarkRead(ctx, targetIDs, callerID, s.now()); err != nil {
		return nil, fmt.Errorf("mark read: %w", err)
	}

	convs := make(map[string]struct{})
	for _, m := range targets {
		s.emit.EmitTo(m.SenderID, events.MessageStatus, events.StatusUpdatePayload{
			MessageID:     m.ID,
			MessageStatus: model.StatusRead,
		})
		convs[m.ConversationID] = struct{}{}
	}
	for id := range convs {
		if id == "" {
			continue
		}
		if err := s.conversations.ResetUnread(ctx, id); err != nil {
			s.log.Warn("reset unread", zap.String("conversation_id", id), zap.Error(err))
		}
	}
	return targetIDs, nil
}

// Delete removes a message the caller sent and notifies the receiver.
func (s *Service) Delete(ctx context.Context, callerID, messageID string) error {
	if callerID == "" || messageID == "" {
		return fmt.Errorf("delete: %w", errs.ErrValidation)
	}

	m, err := s.messages.FindByID(ctx, messageID)
	if err != nil {
		return fmt.Errorf("load message %s: %w", messageID, err)
	}
	if m.SenderID != callerID {
		return fmt.Errorf("delete %s: %w", messageID, errs.ErrForbidden)
	}
	if err := s.messages.Delete(ctx, messageID); err != nil {
		return fmt.Errorf("delete %s: %w", messageID, err)
	}

	s.emit.EmitTo(m.ReceiverID, events.MessageGone, events.DeletedPayload{
		MessageID:      m.ID,
		ConversationID: m.ConversationID,
	})
	return nil
}

func uniqueNonEmpty(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

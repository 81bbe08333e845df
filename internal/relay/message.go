package relay

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hugomanns/realtime-chat/internal/errs"
	"github.com/hugomanns/realtime-chat/internal/events"
	"github.com/hugomanns/realtime-chat/internal/model"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// SendInput is a new direct message.
type SendInput struct {
	SenderID   string       `json:"-"`
	ReceiverID string       `json:"receiverId"`
	Text       string       `json:"text"`
	Media      *model.Media `json:"media,omitempty"`
}

func (in SendInput) validate() error {
	switch {
	case in.SenderID == "" || in.ReceiverID == "":
		return fmt.Errorf("sender and receiver are required: %w", errs.ErrValidation)
	case in.SenderID == in.ReceiverID:
		return fmt.Errorf("cannot message yourself: %w", errs.ErrValidation)
	case strings.TrimSpace(in.Text) == "" && (in.Media == nil || in.Media.URL == ""):
		return fmt.Errorf("text or media is required: %w", errs.ErrValidation)
	}
	return nil
}

// Relay delivers a persisted message to whichever participants are bound.
// A bound receiver upgrades the message from sent to delivered.
func (s *Service) Relay(ctx context.Context, m *model.Message) {
	s.emit.EmitTo(m.SenderID, events.MessageEcho, m)

	if !s.emit.EmitTo(m.ReceiverID, events.MessageNew, m) || m.Status != model.StatusSent {
		return
	}
	upgraded, err := s.messages.MarkDelivered(ctx, m.ID)
	if err != nil {
		s.log.Warn("mark delivered",
			zap.String("message_id", m.ID),
			zap.Error(err),
		)
		return
	}
	// the stored copy may have moved past sent since m was loaded
	if !upgraded {
		return
	}
	m.Status = model.StatusDelivered
	s.emit.EmitTo(m.SenderID, events.MessageStatus, events.StatusUpdatePayload{
		MessageID:     m.ID,
		MessageStatus: model.StatusDelivered,
	})
}

// Echo re-relays a message the caller sent.
func (s *Service) Echo(ctx context.Context, callerID, messageID string) error {
	if callerID == "" || messageID == "" {
		return fmt.Errorf("echo: %w", errs.ErrValidation)
	}
	m, err := s.messages.FindByID(ctx, messageID)
	if err != nil {
		return fmt.Errorf("load message %s: %w", messageID, err)
	}
	if m.SenderID != callerID {
		return fmt.Errorf("echo message %s: %w", messageID, errs.ErrForbidden)
	}
	s.Relay(ctx, m)
	return nil
}

// Send stores a new message, updates its conversation and relays it.
func (s *Service) Send(ctx context.Context, in SendInput) (*model.Message, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	conv, err := s.conversations.GetOrCreate(ctx, in.SenderID, in.ReceiverID)
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}

	now := s.now()
	m := &model.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		SenderID:       in.SenderID,
		ReceiverID:     in.ReceiverID,
		Text:           in.Text,
		Media:          in.Media,
		Status:         model.StatusSent,
		Reactions:      []model.Reaction{},
		CreatedAt:      now,
	}
	if err := s.messages.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	// No transaction spans both writes; a stale lastMessage is recoverable.
	if err := s.conversations.RecordMessage(ctx, conv.ID, m.ID, now); err != nil {
		s.log.Error("record message on conversation",
			zap.String("conversation_id", conv.ID),
			zap.String("message_id", m.ID),
			zap.Error(err),
		)
	}

	s.Relay(ctx, m)
	return m, nil
}

// History lists the latest messages of a conversation, oldest first.
func (s *Service) History(ctx context.Context, callerID, conversationID string, limit int) ([]model.Message, error) {
	if callerID == "" || conversationID == "" {
		return nil, fmt.Errorf("history: %w", errs.ErrValidation)
	}
	conv, err := s.conversations.FindByID(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load conversation %s: %w", conversationID, err)
	}
	if !conv.HasParticipant(callerID) {
		return nil, fmt.Errorf("history of %s: %w", conversationID, errs.ErrForbidden)
	}

	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	msgs, err := s.messages.ListByConversation(ctx, conversationID, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	return msgs, nil
}

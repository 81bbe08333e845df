// Package relay persists message mutations and fans the results out to the
// two participants of a conversation.
package relay

import (
	"time"

	"go.uber.org/zap"

	"github.com/hugomanns/realtime-chat/internal/store"
)

// Emitter delivers an event to a bound user and reports whether one was bound.
type Emitter interface {
	EmitTo(userID, event string, payload any) bool
}

// Service implements message delivery, reactions, read receipts and deletes.
type Service struct {
	messages      store.MessageStore
	conversations store.ConversationStore
	users         store.UserStore
	emit          Emitter
	log           *zap.Logger
	now           func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a relay Service.
func NewService(
	messages store.MessageStore,
	conversations store.ConversationStore,
	users store.UserStore,
	emit Emitter,
	log *zap.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		messages:      messages,
		conversations: conversations,
		users:         users,
		emit:          emit,
		log:           log,
		now:           time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Package store defines the persistence contracts the realtime core consumes.
package store

import (
	"context"
	"time"

	"github.com/hugomanns/realtime-chat/internal/model"
)

// UserStore exposes the presence fields of user profiles.
type UserStore interface {
	// SetOnline flips the online flag; lastSeen is written only when going offline.
	SetOnline(ctx context.Context, userID string, online bool, at time.Time) error
	// GetPresence returns the persisted presence of a user.
	GetPresence(ctx context.Context, userID string) (model.Presence, error)
	// Profiles loads public profiles for the given ids; unknown ids are omitted.
	Profiles(ctx context.Context, ids []string) (map[string]model.Profile, error)
	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error
}

// MessageStore provides durable access to messages.
type MessageStore interface {
	// Create inserts a new message.
	Create(ctx context.Context, m *model.Message) error
	// FindByID loads a single message.
	FindByID(ctx context.Context, id string) (*model.Message, error)
	// FindByIDs loads the messages that exist among ids.
	FindByIDs(ctx context.Context, ids []string) ([]model.Message, error)
	// ListByConversation returns up to limit messages, oldest first.
	ListByConversation(ctx context.Context, conversationID string, limit int64) ([]model.Message, error)
	// MarkDelivered upgrades a message from sent to delivered and reports
	// whether it did. Messages already delivered or read are left alone.
	MarkDelivered(ctx context.Context, id string) (bool, error)
	// MarkRead sets read status and seenAt on the messages among ids addressed
	// to receiverID that are not read yet, returning how many changed.
	MarkRead(ctx context.Context, ids []string, receiverID string, at time.Time) (int64, error)
	// AddReaction appends a reaction unless the user already has one.
	AddReaction(ctx context.Context, messageID string, r model.Reaction) error
	// ReplaceReaction changes the emoji of the user's existing reaction.
	ReplaceReaction(ctx context.Context, messageID, userID, emoji string) error
	// RemoveReaction drops the user's reaction.
	RemoveReaction(ctx context.Context, messageID, userID string) error
	// Delete removes a message permanently.
	Delete(ctx context.Context, id string) error
}

// ConversationStore provides access to one-to-one conversations.
type ConversationStore interface {
	// GetOrCreate returns the conversation of the pair, creating it lazily.
	GetOrCreate(ctx context.Context, a, b string) (*model.Conversation, error)
	// FindByID loads a conversation.
	FindByID(ctx context.Context, id string) (*model.Conversation, error)
	// RecordMessage points the conversation at messageID and bumps unreadCount by one.
	RecordMessage(ctx context.Context, conversationID, messageID string, at time.Time) error
	// ResetUnread sets unreadCount back to zero.
	ResetUnread(ctx context.Context, conversationID string) error
}

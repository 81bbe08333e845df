// Package events names the realtime events exchanged with clients and defines
// the payloads the server emits.
package events

import (
	"time"

	"github.com/hugomanns/realtime-chat/internal/model"
)

// Client -> server.
const (
	UserConnect   = "user:connect"
	StatusQuery   = "user:status"
	TypingStart   = "typing:start"
	TypingStop    = "typing:stop"
	MessageSend   = "message:send"
	MessageRead   = "message:read"
	MessageReact  = "message:react"
	MessageDelete = "message:delete"
)

// Server -> client.
const (
	StatusChanged  = "user:status-changed"
	TypingChanged  = "typing:changed"
	MessageEcho    = "message:sent-echo"
	MessageNew     = "message:received"
	MessageStatus  = "message:status"
	ReactionUpdate = "message:reaction"
	MessageGone    = "message:deleted"
	MessageError   = "message:error"
	Error          = "error"
	Ack            = "ack"
)

// StatusChangedPayload is broadcast to every connection on bind and unbind.
type StatusChangedPayload struct {
	UserID   string     `json:"userId"`
	IsOnline bool       `json:"isOnline"`
	LastSeen *time.Time `json:"lastSeen"`
}

// TypingPayload tells a peer whether userId is typing in conversationId.
type TypingPayload struct {
	UserID         string `json:"userId"`
	ConversationID string `json:"conversationId"`
	IsTyping       bool   `json:"isTyping"`
}

// StatusUpdatePayload carries a delivery or read upgrade.
type StatusUpdatePayload struct {
	MessageID     string              `json:"messageId"`
	MessageStatus model.MessageStatus `json:"messageStatus"`
}

// ReactionView is a reaction with its author expanded.
type ReactionView struct {
	User      model.Profile `json:"user"`
	Emoji     string        `json:"emoji"`
	CreatedAt time.Time     `json:"createdAt"`
}

// ReactionPayload carries the full reaction list of a message.
type ReactionPayload struct {
	MessageID string         `json:"messageId"`
	Reactions []ReactionView `json:"reactions"`
}

// DeletedPayload is the removal notice sent to the other participant.
type DeletedPayload struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
}

// ErrorPayload reports a failed operation to the caller.
type ErrorPayload struct {
	Error     string `json:"error"`
	MessageID string `json:"messageId,omitempty"`
}

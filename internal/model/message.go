package model

import "time"

// MessageStatus is the delivery state of a message.
type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
	// StatusFailed only ever exists on the client; the server never stores it.
	StatusFailed MessageStatus = "failed"
)

// Media references an uploaded attachment (image, voice clip, file).
type Media struct {
	URL  string `bson:"url" json:"url"`
	Type string `bson:"type,omitempty" json:"type,omitempty"`
}

// Message is a single direct message.
type Message struct {
	ID             string        `bson:"_id" json:"_id"`
	ConversationID string        `bson:"conversationId" json:"conversationId"`
	SenderID       string        `bson:"sender" json:"sender"`
	ReceiverID     string        `bson:"receiver" json:"receiver"`
	Text           string        `bson:"text,omitempty" json:"text,omitempty"`
	Media          *Media        `bson:"media,omitempty" json:"media,omitempty"`
	Status         MessageStatus `bson:"status" json:"messageStatus"`
	Reactions      []Reaction    `bson:"reactions" json:"reactions"`
	CreatedAt      time.Time     `bson:"createdAt" json:"createdAt"`
	SeenAt         *time.Time    `bson:"seenAt,omitempty" json:"seenAt,omitempty"`
}

// Peer returns the participant on the other side of userID.
func (m *Message) Peer(userID string) string {
	if m.SenderID == userID {
		return m.ReceiverID
	}
	return m.SenderID
}

// IsParticipant reports whether userID sent or received the message.
func (m *Message) IsParticipant(userID string) bool {
	return userID != "" && (m.SenderID == userID || m.ReceiverID == userID)
}

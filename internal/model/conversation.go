package model

import (
	"sort"
	"strings"
	"time"
)

// Conversation is a one-to-one thread between two participants.
type Conversation struct {
	ID string `bson:"_id" json:"_id"`

	// Key is the PairKey of the participants; unique per pair.
	Key          string    `bson:"key" json:"-"`
	Participants []string  `bson:"participants" json:"participants"`
	LastMessage  string    `bson:"lastMessage,omitempty" json:"lastMessage,omitempty"`
	UnreadCount  int       `bson:"unreadCount" json:"unreadCount"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}

// HasParticipant reports whether userID takes part in the conversation.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// PairKey returns an order-independent lookup key for two participants.
func PairKey(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, "_")
}

// Participants returns the two ids in PairKey order.
func Participants(a, b string) []string {
	ids := []string{a, b}
	sort.Strings(ids)
	return ids
}

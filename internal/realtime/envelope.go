// envelope.go
// Frames on the socket are JSON objects {event, data, ack}. A client that sets
// ack gets an "ack" frame back carrying the same id once the event is handled.

package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/hugomanns/realtime-chat/internal/errs"
)

// Envelope is an inbound frame.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	Ack   string          `json:"ack,omitempty"`
}

// frame is an outbound frame.
type frame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
	Ack   string `json:"ack,omitempty"`
}

// AckResult is the data of an ack frame.
type AckResult struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Data  any    `json:"data,omitempty"`
}

type connectPayload struct {
	UserID string `json:"userId"`
	Token  string `json:"token,omitempty"`
}

type statusQueryPayload struct {
	UserID string `json:"userId"`
}

type typingPayload struct {
	ConversationID string `json:"conversationId"`
	ReceiverID     string `json:"receiverId"`
}

// sendPayload accepts the client's copy of a stored message.
type sendPayload struct {
	ID        string `json:"_id"`
	MessageID string `json:"messageId"`
}

type readPayload struct {
	MessageIDs []string `json:"messageIds"`
	// SenderID is accepted for compatibility; receipts go to each message's real sender.
	SenderID string `json:"senderId"`
}

type reactPayload struct {
	MessageID string `json:"messageId"`
	Emoji     string `json:"emoji"`
	UserID    string `json:"userId"`
}

type deletePayload struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
}

func encode(event string, payload any, ack string) ([]byte, error) {
	return json.Marshal(frame{Event: event, Data: payload, Ack: ack})
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("empty payload: %w", errs.ErrValidation)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("bad payload: %v: %w", err, errs.ErrValidation)
	}
	return nil
}

// decodeUserID reads either a bare JSON string or an object with userId.
func decodeUserID(data json.RawMessage) (userID, token string, err error) {
	var s string
	if json.Unmarshal(data, &s) == nil {
		return s, "", nil
	}
	var p connectPayload
	if err := decode(data, &p); err != nil {
		return "", "", err
	}
	return p.UserID, p.Token, nil
}

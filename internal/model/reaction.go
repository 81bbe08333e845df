package model

import "time"

// Reaction is one user's emoji on a message. A user holds at most one
// reaction per message.
type Reaction struct {
	UserID    string    `bson:"user" json:"user"`
	Emoji     string    `bson:"emoji" json:"emoji"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

// ReactionOp is the mutation a toggle resolves to.
type ReactionOp int

const (
	ReactionAdd ReactionOp = iota + 1
	ReactionReplace
	ReactionRemove
)

func (op ReactionOp) String() string {
	switch op {
	case ReactionAdd:
		return "add"
	case ReactionReplace:
		return "replace"
	case ReactionRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// DecideReaction resolves a toggle of emoji by userID against the current
// reactions: absent adds, same emoji removes, different emoji replaces.
func DecideReaction(reactions []Reaction, userID, emoji string) ReactionOp {
	for _, r := range reactions {
		if r.UserID != userID {
			continue
		}
		if r.Emoji == emoji {
			return ReactionRemove
		}
		return ReactionReplace
	}
	return ReactionAdd
}

// ApplyReaction returns a copy of reactions with op applied for userID.
// Entries of other users are never touched.
func ApplyReaction(reactions []Reaction, op ReactionOp, userID, emoji string, at time.Time) []Reaction {
	out := make([]Reaction, 0, len(reactions)+1)
	found := false
	for _, r := range reactions {
		if r.UserID != userID {
			out = append(out, r)
			continue
		}
		found = true
		switch op {
		case ReactionRemove:
			// dropped
		case ReactionReplace, ReactionAdd:
			r.Emoji = emoji
			out = append(out, r)
		}
	}
	if !found && op == ReactionAdd {
		out = append(out, Reaction{UserID: userID, Emoji: emoji, CreatedAt: at})
	}
	return out
}

package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hugomanns/realtime-chat/internal/errs"
	"github.com/hugomanns/realtime-chat/internal/model"
)

// MessageRepository implements store.MessageStore over the messages collection.
type MessageRepository struct {
	coll *mongo.Collection
}

// NewMessageRepository creates a MessageRepository.
func NewMessageRepository(db *mongo.Database) *MessageRepository {
	return &MessageRepository{coll: db.Collection(messageCollection)}
}

// Create inserts a new message. Reactions are stored as an empty array so that
// later $push updates have something to append to.
func (r *MessageRepository) Create(ctx context.Context, m *model.Message) error {
	if m.Reactions == nil {
		m.Reactions = []model.Reaction{}
	}
	_, err := r.coll.InsertOne(ctx, m)
	return err
}

// FindByID loads a message by id.
func (r *MessageRepository) FindByID(ctx context.Context, id string) (*model.Message, error) {
	var m model.Message
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

// FindByIDs loads every existing message among ids.
func (r *MessageRepository) FindByIDs(ctx context.Context, ids []string) ([]model.Message, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cursor, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []model.Message
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListByConversation returns the latest limit messages ordered oldest first.
func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID string, limit int64) ([]model.Message, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(limit)
	cursor, err := r.coll.Find(ctx, bson.M{"conversationId": conversationID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []model.Message
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// MarkDelivered upgrades sent -> delivered; other states are left alone.
func (r *MessageRepository) MarkDelivered(ctx context.Context, id string) (bool, error) {
	filter := bson.M{"_id": id, "status": model.StatusSent}
	res, err := r.coll.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"status": model.StatusDelivered}})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

// MarkRead bulk-updates the unread messages among ids addressed to receiverID.
func (r *MessageRepository) MarkRead(ctx context.Context, ids []string, receiverID string, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	filter := bson.M{
		"_id":      bson.M{"$in": ids},
		"receiver": receiverID,
		"status":   bson.M{"$ne": model.StatusRead},
	}
	update := bson.M{"$set": bson.M{"status": model.StatusRead, "seenAt": at}}
	res, err := r.coll.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// AddReaction pushes r unless r.UserID already reacted. The guard in the
// filter keeps one entry per user even when two toggles race.
func (r *MessageRepository) AddReaction(ctx context.Context, messageID string, reaction model.Reaction) error {
	filter := bson.M{"_id": messageID, "reactions.user": bson.M{"$ne": reaction.UserID}}
	_, err := r.coll.UpdateOne(ctx, filter, bson.M{"$push": bson.M{"reactions": reaction}})
	return err
}

// ReplaceReaction rewrites the emoji of userID's reaction in place.
func (r *MessageRepository) ReplaceReaction(ctx context.Context, messageID, userID, emoji string) error {
	filter := bson.M{"_id": messageID, "reactions.user": userID}
	_, err := r.coll.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"reactions.$.emoji": emoji}})
	return err
}

// RemoveReaction pulls userID's reaction.
func (r *MessageRepository) RemoveReaction(ctx context.Context, messageID, userID string) error {
	update := bson.M{"$pull": bson.M{"reactions": bson.M{"user": userID}}}
	_, err := r.coll.UpdateOne(ctx, bson.M{"_id": messageID}, update)
	return err
}

// Delete removes a message.
func (r *MessageRepository) Delete(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return errs.ErrNotFound
	}
	return nil
}

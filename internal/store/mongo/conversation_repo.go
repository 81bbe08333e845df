package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hugomanns/realtime-chat/internal/errs"
	"github.com/hugomanns/realtime-chat/internal/model"
)

// ConversationRepository implements store.ConversationStore.
type ConversationRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewConversationRepository creates a ConversationRepository.
func NewConversationRepository(db *mongo.Database) *ConversationRepository {
	return &ConversationRepository{coll: db.Collection(conversationCollection), now: time.Now}
}

// GetOrCreate upserts the conversation of the pair keyed by model.PairKey.
func (r *ConversationRepository) GetOrCreate(ctx context.Context, a, b string) (*model.Conversation, error) {
	key := model.PairKey(a, b)
	now := r.now()

	// key comes from the equality filter on insert
	update := bson.M{"$setOnInsert": bson.M{
		"_id":          uuid.NewString(),
		"participants": model.Participants(a, b),
		"unreadCount":  0,
		"createdAt":    now,
		"updatedAt":    now,
	}}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var c model.Conversation
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"key": key}, update, opts).Decode(&c)
	if mongo.IsDuplicateKeyError(err) {
		// lost the upsert race against the unique index; the winner's row is there now
		err = r.coll.FindOne(ctx, bson.M{"key": key}).Decode(&c)
	}
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// FindByID loads a conversation.
func (r *ConversationRepository) FindByID(ctx context.Context, id string) (*model.Conversation, error) {
	var c model.Conversation
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// RecordMessage sets the last message pointer and increments unreadCount.
func (r *ConversationRepository) RecordMessage(ctx context.Context, conversationID, messageID string, at time.Time) error {
	update := bson.M{
		"$set": bson.M{"lastMessage": messageID, "updatedAt": at},
		"$inc": bson.M{"unreadCount": 1},
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": conversationID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// ResetUnread zeroes unreadCount.
func (r *ConversationRepository) ResetUnread(ctx context.Context, conversationID string) error {
	_, err := r.coll.UpdateOne(ctx, bson.M{"_id": conversationID}, bson.M{"$set": bson.M{"unreadCount": 0}})
	return err
}

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

// UserRepository implements store.UserStore over the users collection.
type UserRepository struct {
	coll *mongo.Collection
}

// NewUserRepository creates a UserRepository.
func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{coll: db.Collection(userCollection)}
}

// SetOnline updates isOnline and, when going offline, lastSeen.
func (r *UserRepository) SetOnline(ctx context.Context, userID string, online bool, at time.Time) error {
	set := bson.M{"isOnline": online}
	if !online {
		set["lastSeen"] = at
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// GetPresence reads the presence fields of a user.
func (r *UserRepository) GetPresence(ctx context.Context, userID string) (model.Presence, error) {
	opts := options.FindOne().SetProjection(bson.M{"isOnline": 1, "lastSeen": 1})
	var u model.User
	if err := r.coll.FindOne(ctx, bson.M{"_id": userID}, opts).Decode(&u); err != nil {
		return model.Presence{}, notFound(err)
	}
	return model.Presence{UserID: u.ID, IsOnline: u.IsOnline, LastSeen: u.LastSeen}, nil
}

// Profiles loads username and avatar for ids.
func (r *UserRepository) Profiles(ctx context.Context, ids []string) (map[string]model.Profile, error) {
	out := make(map[string]model.Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	opts := options.Find().SetProjection(bson.M{"username": 1, "avatar": 1})
	cursor, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var profiles []model.Profile
	if err := cursor.All(ctx, &profiles); err != nil {
		return nil, err
	}
	for _, p := range profiles {
		out[p.ID] = p
	}
	return out, nil
}

// Ping checks the primary is reachable.
func (r *UserRepository) Ping(ctx context.Context) error {
	return r.coll.Database().Client().Ping(ctx, nil)
}

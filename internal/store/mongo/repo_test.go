package mongo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/hugomanns/realtime-chat/internal/errs"
	"github.com/hugomanns/realtime-chat/internal/model"
)

func newMock(t *testing.T) *mtest.T {
	t.Helper()
	return mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
}

func messageDoc(id, sender, receiver string, status model.MessageStatus, at time.Time) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "conversationId", Value: "c1"},
		{Key: "sender", Value: sender},
		{Key: "receiver", Value: receiver},
		{Key: "text", Value: "hi"},
		{Key: "status", Value: string(status)},
		{Key: "reactions", Value: bson.A{
			bson.D{{Key: "user", Value: receiver}, {Key: "emoji", Value: "👍"}, {Key: "createdAt", Value: at}},
		}},
		{Key: "createdAt", Value: at},
	}
}

func TestUserRepository_SetOnline(t *testing.T) {
	mt := newMock(t)
	ctx := context.Background()

	mt.Run("matched", func(mt *mtest.T) {
		r := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1},
		))
		require.NoError(t, r.SetOnline(ctx, "u1", false, time.Now()))
	})

	mt.Run("unknown user", func(mt *mtest.T) {
		r := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0},
		))
		require.ErrorIs(t, r.SetOnline(ctx, "ghost", true, time.Now()), errs.ErrNotFound)
	})

	mt.Run("write error", func(mt *mtest.T) {
		r := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code: 91, Name: "ShutdownInProgress", Message: "shutting down",
		}))
		require.Error(t, r.SetOnline(ctx, "u1", true, time.Now()))
	})
}

func TestUserRepository_GetPresence(t *testing.T) {
	mt := newMock(t)
	ctx := context.Background()
	seen := time.Now().UTC().Truncate(time.Millisecond)

	mt.Run("found", func(mt *mtest.T) {
		r := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "chat.users", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "u1"},
			{Key: "isOnline", Value: false},
			{Key: "lastSeen", Value: seen},
		}))
		p, err := r.GetPresence(ctx, "u1")
		require.NoError(t, err)
		require.Equal(t, "u1", p.UserID)
		require.False(t, p.IsOnline)
		require.NotNil(t, p.LastSeen)
		require.True(t, p.LastSeen.Equal(seen))
	})

	mt.Run("missing", func(mt *mtest.T) {
		r := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "chat.users", mtest.FirstBatch))
		_, err := r.GetPresence(ctx, "ghost")
		require.ErrorIs(t, err, errs.ErrNotFound)
	})
}

func TestUserRepository_Profiles(t *testing.T) {
	mt := newMock(t)
	ctx := context.Background()

	mt.Run("known ids only", func(mt *mtest.T) {
		r := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "chat.users", mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "a"}, {Key: "username", Value: "alice"}},
			bson.D{{Key: "_id", Value: "b"}, {Key: "username", Value: "bob"}, {Key: "avatar", Value: "b.png"}},
		))
		got, err := r.Profiles(ctx, []string{"a", "b", "zz"})
		require.NoError(t, err)
		require.Len(t, got, 2)
		require.Equal(t, "alice", got["a"].Username)
		require.Equal(t, "b.png", got["b"].Avatar)
	})

	mt.Run("no ids skips the query", func(mt *mtest.T) {
		r := NewUserRepository(mt.DB)
		got, err := r.Profiles(ctx, nil)
		require.NoError(t, err)
		require.Empty(t, got)
	})
}

func TestMessageRepository_FindByID(t *testing.T) {
	mt := newMock(t)
	ctx := context.Background()
	at := time.Now().UTC().Truncate(time.Millisecond)

	mt.Run("found", func(mt *mtest.T) {
		r := NewMessageRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "chat.messages", mtest.FirstBatch,
			messageDoc("m1", "a", "b", model.StatusSent, at)))
		m, err := r.FindByID(ctx, "m1")
		require.NoError(t, err)
		require.Equal(t, "a", m.SenderID)
		require.Equal(t, "b", m.ReceiverID)
		require.Equal(t, model.StatusSent, m.Status)
		require.Len(t, m.Reactions, 1)
		require.Equal(t, "b", m.Reactions[0].UserID)
	})

	mt.Run("missing", func(mt *mtest.T) {
		r := NewMessageRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "chat.messages", mtest.FirstBatch))
		_, err := r.FindByID(ctx, "nope")
		require.ErrorIs(t, err, errs.ErrNotFound)
	})
}

func TestMessageRepository_Create_DefaultsReactions(t *testing.T) {
	mt := newMock(t)

	mt.Run("insert", func(mt *mtest.T) {
		r := NewMessageRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		m := &model.Message{ID: "m1", SenderID: "a", ReceiverID: "b", Status: model.StatusSent}
		require.NoError(t, r.Create(context.Background(), m))
		require.NotNil(t, m.Reactions)
	})

	mt.Run("duplicate id", func(mt *mtest.T) {
		r := NewMessageRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index: 0, Code: 11000, Message: "duplicate key error",
		}))
		err := r.Create(context.Background(), &model.Message{ID: "m1"})
		require.Error(t, err)
	})
}

func TestMessageRepository_ListByConversation_OldestFirst(t *testing.T) {
	mt := newMock(t)
	t0 := time.Now().UTC().Truncate(time.Millisecond)

	mt.Run("reversed", func(mt *mtest.T) {
		r := NewMessageRepository(mt.DB)
		// the query sorts newest first
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "chat.messages", mtest.FirstBatch,
			messageDoc("m3", "a", "b", model.StatusSent, t0.Add(2*time.Second)),
			messageDoc("m2", "b", "a", model.StatusRead, t0.Add(time.Second)),
			messageDoc("m1", "a", "b", model.StatusRead, t0),
		))
		got, err := r.ListByConversation(context.Background(), "c1", 3)
		require.NoError(t, err)
		require.Len(t, got, 3)
		require.Equal(t, "m1", got[0].ID)
		require.Equal(t, "m3", got[2].ID)
	})
}

func TestMessageRepository_MarkRead(t *testing.T) {
	mt := newMock(t)
	ctx := context.Background()

	mt.Run("modified count", func(mt *mtest.T) {
		r := NewMessageRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 2}, bson.E{Key: "nModified", Value: 2},
		))
		n, err := r.MarkRead(ctx, []string{"m1", "m2", "m3"}, "b", time.Now())
		require.NoError(t, err)
		require.Equal(t, int64(2), n)
	})

	mt.Run("empty ids", func(mt *mtest.T) {
		r := NewMessageRepository(mt.DB)
		n, err := r.MarkRead(ctx, nil, "b", time.Now())
		require.NoError(t, err)
		require.Zero(t, n)
	})
}

func TestMessageRepository_MarkDelivered(t *testing.T) {
	mt := newMock(t)
	ctx := context.Background()

	mt.Run("upgraded from sent", func(mt *mtest.T) {
		r := NewMessageRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1},
		))
		ok, err := r.MarkDelivered(ctx, "m1")
		require.NoError(t, err)
		require.True(t, ok)
	})

	mt.Run("already past sent", func(mt *mtest.T) {
		r := NewMessageRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0},
		))
		ok, err := r.MarkDelivered(ctx, "m1")
		require.NoError(t, err)
		require.False(t, ok)
	})
}

func TestMessageRepository_ReactionUpdates(t *testing.T) {
	mt := newMock(t)
	ctx := context.Background()
	ok := func() bson.D {
		return mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1})
	}

	mt.Run("add replace remove", func(mt *mtest.T) {
		r := NewMessageRepository(mt.DB)
		mt.AddMockResponses(ok(), ok(), ok())
		require.NoError(t, r.AddReaction(ctx, "m1", model.Reaction{UserID: "a", Emoji: "👍"}))
		require.NoError(t, r.ReplaceReaction(ctx, "m1", "a", "😂"))
		require.NoError(t, r.RemoveReaction(ctx, "m1", "a"))
	})
}

func TestMessageRepository_Delete(t *testing.T) {
	mt := newMock(t)
	ctx := context.Background()

	mt.Run("deleted", func(mt *mtest.T) {
		r := NewMessageRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))
		require.NoError(t, r.Delete(ctx, "m1"))
	})

	mt.Run("already gone", func(mt *mtest.T) {
		r := NewMessageRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))
		require.ErrorIs(t, r.Delete(ctx, "m1"), errs.ErrNotFound)
	})
}

func TestConversationRepository_GetOrCreate(t *testing.T) {
	mt := newMock(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)
	doc := bson.D{
		{Key: "_id", Value: "c1"},
		{Key: "key", Value: model.PairKey("a", "b")},
		{Key: "participants", Value: bson.A{"a", "b"}},
		{Key: "unreadCount", Value: 3},
		{Key: "createdAt", Value: now},
		{Key: "updatedAt", Value: now},
	}

	mt.Run("upsert returns document", func(mt *mtest.T) {
		r := NewConversationRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: doc}))
		c, err := r.GetOrCreate(ctx, "b", "a")
		require.NoError(t, err)
		require.Equal(t, "c1", c.ID)
		require.Equal(t, 3, c.UnreadCount)
		require.True(t, c.HasParticipant("a"))
	})

	mt.Run("duplicate key falls back to find", func(mt *mtest.T) {
		r := NewConversationRepository(mt.DB)
		mt.AddMockResponses(
			mtest.CreateCommandErrorResponse(mtest.CommandError{
				Code: 11000, Name: "DuplicateKey", Message: "E11000 duplicate key error",
			}),
			mtest.CreateCursorResponse(0, "chat.conversations", mtest.FirstBatch, doc),
		)
		c, err := r.GetOrCreate(ctx, "a", "b")
		require.NoError(t, err)
		require.Equal(t, "c1", c.ID)
	})
}

func TestConversationRepository_RecordMessage(t *testing.T) {
	mt := newMock(t)
	ctx := context.Background()

	mt.Run("matched", func(mt *mtest.T) {
		r := NewConversationRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1},
		))
		require.NoError(t, r.RecordMessage(ctx, "c1", "m1", time.Now()))
	})

	mt.Run("missing conversation", func(mt *mtest.T) {
		r := NewConversationRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0},
		))
		require.ErrorIs(t, r.RecordMessage(ctx, "c9", "m1", time.Now()), errs.ErrNotFound)
	})
}

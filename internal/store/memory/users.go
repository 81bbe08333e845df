package memory

import (
	"context"
	"time"

	"github.com/hugomanns/realtime-chat/internal/errs"
	"github.com/hugomanns/realtime-chat/internal/model"
)

// UserStore is the in-memory store.UserStore.
type UserStore struct {
	s *Store
}

func (u *UserStore) SetOnline(_ context.Context, userID string, online bool, at time.Time) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	user, ok := u.s.users[userID]
	if !ok {
		return errs.ErrNotFound
	}
	user.IsOnline = online
	if !online {
		seen := at
		user.LastSeen = &seen
	}
	u.s.users[userID] = user
	return nil
}

func (u *UserStore) GetPresence(_ context.Context, userID string) (model.Presence, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()
	user, ok := u.s.users[userID]
	if !ok {
		return model.Presence{}, errs.ErrNotFound
	}
	return model.Presence{UserID: user.ID, IsOnline: user.IsOnline, LastSeen: user.LastSeen}, nil
}

func (u *UserStore) Profiles(_ context.Context, ids []string) (map[string]model.Profile, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()
	out := make(map[string]model.Profile, len(ids))
	for _, id := range ids {
		if user, ok := u.s.users[id]; ok {
			out[id] = model.Profile{ID: user.ID, Username: user.Username, Avatar: user.Avatar}
		}
	}
	return out, nil
}

func (u *UserStore) Ping(context.Context) error { return nil }

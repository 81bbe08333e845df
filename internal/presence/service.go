package presence

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/hugomanns/realtime-chat/internal/errs"
	"github.com/hugomanns/realtime-chat/internal/events"
	"github.com/hugomanns/realtime-chat/internal/model"
	"github.com/hugomanns/realtime-chat/internal/store"
)

// Emitter delivers events to bound users or to every open connection.
type Emitter interface {
	// EmitTo sends to userID's bound connection and reports whether one existed.
	EmitTo(userID, event string, payload any) bool
	// Broadcast sends to every open connection, bound or not.
	Broadcast(event string, payload any)
}

// Cache mirrors presence for fast last-seen reads.
type Cache interface {
	Store(ctx context.Context, p model.Presence) error
	Load(ctx context.Context, userID string) (*model.Presence, error)
}

// Option configures a Service.
type Option func(*Service)

// WithCache enables the presence mirror.
func WithCache(c Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service binds users to connections and broadcasts their status changes.
type Service struct {
	dir   *Directory
	users store.UserStore
	emit  Emitter
	cache Cache
	log   *zap.Logger
	now   func() time.Time
}

// NewService creates a presence Service.
func NewService(dir *Directory, users store.UserStore, emit Emitter, log *zap.Logger, opts ...Option) *Service {
	s := &Service{
		dir:   dir,
		users: users,
		emit:  emit,
		log:   log,
		now:   time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Directory returns the underlying connection directory.
func (s *Service) Directory() *Directory { return s.dir }

// Connect binds userID to connID, marks the user online and tells everyone.
func (s *Service) Connect(ctx context.Context, userID, connID string) error {
	prev, err := s.dir.Bind(userID, connID)
	if err != nil {
		return err
	}
	if prev != "" {
		s.log.Debug("binding replaced",
			zap.String("user_id", userID),
			zap.String("conn_id", connID),
			zap.String("prev_conn_id", prev),
		)
	}

	// The directory is authoritative; a failed write only leaves the stored flag stale.
	if err := s.users.SetOnline(ctx, userID, true, s.now()); err != nil {
		s.log.Warn("persist online", zap.String("user_id", userID), zap.Error(err))
	}
	p := model.Presence{UserID: userID, IsOnline: true}
	s.mirror(ctx, p)

	s.emit.Broadcast(events.StatusChanged, events.StatusChangedPayload{UserID: userID, IsOnline: true})
	return nil
}

// Disconnect drops the binding of userID when it still belongs to connID and
// announces the user offline. It reports whether the user went offline.
func (s *Service) Disconnect(ctx context.Context, userID, connID string) bool {
	if userID == "" || !s.dir.Unbind(userID, connID) {
		return false
	}

	now := s.now()
	if err := s.users.SetOnline(ctx, userID, false, now); err != nil {
		s.log.Warn("persist offline", zap.String("user_id", userID), zap.Error(err))
	}
	s.mirror(ctx, model.Presence{UserID: userID, IsOnline: false, LastSeen: &now})

	s.emit.Broadcast(events.StatusChanged, events.StatusChangedPayload{
		UserID:   userID,
		IsOnline: false,
		LastSeen: &now,
	})
	return true
}

// Status answers whether peerID is online and, if not, when it was last seen.
func (s *Service) Status(ctx context.Context, peerID string) (model.Presence, error) {
	if peerID == "" {
		return model.Presence{}, errs.ErrValidation
	}
	if s.dir.IsOnline(peerID) {
		return model.Presence{UserID: peerID, IsOnline: true}, nil
	}

	if s.cache != nil {
		cached, err := s.cache.Load(ctx, peerID)
		if err != nil {
			s.log.Warn("presence cache load", zap.String("user_id", peerID), zap.Error(err))
		} else if cached != nil && cached.LastSeen != nil {
			return model.Presence{UserID: peerID, LastSeen: cached.LastSeen}, nil
		}
	}

	stored, err := s.users.GetPresence(ctx, peerID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.Presence{UserID: peerID}, err
		}
		return model.Presence{}, err
	}
	p := model.Presence{UserID: peerID, LastSeen: stored.LastSeen}
	if p.LastSeen != nil {
		s.mirror(ctx, p)
	}
	return p, nil
}

func (s *Service) mirror(ctx context.Context, p model.Presence) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Store(ctx, p); err != nil {
		s.log.Warn("presence cache store", zap.String("user_id", p.UserID), zap.Error(err))
	}
}

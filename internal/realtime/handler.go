package realtime

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hugomanns/realtime-chat/internal/auth"
	"github.com/hugomanns/realtime-chat/internal/errs"
	"github.com/hugomanns/realtime-chat/internal/events"
	"github.com/hugomanns/realtime-chat/internal/metrics"
	"github.com/hugomanns/realtime-chat/internal/presence"
	"github.com/hugomanns/realtime-chat/internal/relay"
	"github.com/hugomanns/realtime-chat/internal/typing"
)

// Handler dispatches client events to the presence, typing and relay services.
type Handler struct {
	hub      *Hub
	presence *presence.Service
	typing   *typing.Tracker
	relay    *relay.Service
	verifier *auth.Verifier
	metrics  *metrics.Metrics
	log      *zap.Logger
	opts     Options
}

// NewHandler creates a Handler. Zero fields of opts take their defaults.
func NewHandler(
	hub *Hub,
	ps *presence.Service,
	tt *typing.Tracker,
	rs *relay.Service,
	v *auth.Verifier,
	m *metrics.Metrics,
	log *zap.Logger,
	opts Options,
) *Handler {
	return &Handler{
		hub:      hub,
		presence: ps,
		typing:   tt,
		relay:    rs,
		verifier: v,
		metrics:  m,
		log:      log,
		opts:     opts.withDefaults(),
	}
}

type eventFunc func(ctx context.Context, c *Client, env Envelope) (any, error)

func (h *Handler) route(event string) (eventFunc, bool) {
	switch event {
	case events.UserConnect:
		return h.handshake, true
	case events.StatusQuery:
		return h.status, true
	case events.TypingStart:
		return h.typingStart, true
	case events.TypingStop:
		return h.typingStop, true
	case events.MessageSend:
		return h.send, true
	case events.MessageRead:
		return h.markRead, true
	case events.MessageReact:
		return h.react, true
	case events.MessageDelete:
		return h.deleteMessage, true
	}
	return nil, false
}

func (h *Handler) dispatch(ctx context.Context, c *Client, env Envelope) {
	fn, ok := h.route(env.Event)
	if !ok {
		h.log.Debug("unknown event", zap.String("conn_id", c.id), zap.String("event", env.Event))
		return
	}
	h.metrics.Inbound(env.Event)

	var (
		result any
		err    error
	)
	if env.Event != events.UserConnect && env.Event != events.StatusQuery {
		err = h.checkBinding(c, env.Event)
	}
	if err == nil {
		result, err = fn(ctx, c, env)
	}

	if env.Ack != "" {
		res := AckResult{OK: err == nil, Data: result}
		if err != nil {
			res.Error = errs.Public(err)
		}
		h.hub.sendConn(c.id, events.Ack, res, env.Ack)
	}
	if err != nil {
		h.report(c, env, err)
	}
}

// report applies the error policy: validation problems are dropped, the send
// path always answers with message:error, authorization and lookup failures
// reach the caller as an error event, anything else is only logged.
func (h *Handler) report(c *Client, env Envelope, err error) {
	log := h.log.With(
		zap.String("conn_id", c.id),
		zap.String("user_id", c.userID),
		zap.String("event", env.Event),
		zap.Error(err),
	)

	switch {
	case env.Event == events.MessageSend:
		log.Info("send failed")
		var p sendPayload
		_ = decode(env.Data, &p)
		h.hub.sendConn(c.id, events.MessageError, events.ErrorPayload{
			Error:     errs.Public(err),
			MessageID: firstNonEmpty(p.ID, p.MessageID),
		}, "")
	case errors.Is(err, errs.ErrValidation):
		log.Debug("dropped invalid event")
	case errs.IsClientVisible(err):
		log.Info("rejected")
		h.hub.sendConn(c.id, events.Error, events.ErrorPayload{Error: errs.Public(err)}, "")
	default:
		log.Error("event failed")
	}
}

// checkBinding requires c to hold the directory binding of its user. A
// connection superseded by a newer handshake for the same user loses its
// identity and has to handshake again.
func (h *Handler) checkBinding(c *Client, event string) error {
	if c.userID == "" {
		return fmt.Errorf("%s before handshake: %w", event, errs.ErrUnauthorized)
	}
	if connID, ok := h.presence.Directory().Lookup(c.userID); !ok || connID != c.id {
		h.log.Debug("superseded connection",
			zap.String("conn_id", c.id),
			zap.String("user_id", c.userID),
			zap.String("event", event),
		)
		c.userID = ""
		return fmt.Errorf("%s on superseded connection: %w", event, errs.ErrUnauthorized)
	}
	return nil
}

func (h *Handler) handshake(ctx context.Context, c *Client, env Envelope) (any, error) {
	userID, token, err := decodeUserID(env.Data)
	if err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, fmt.Errorf("handshake without user id: %w", errs.ErrValidation)
	}
	if h.verifier.Enabled() && !(token == "" && c.preauth == userID) {
		if err := h.verifier.CheckHandshake(userID, token); err != nil {
			return nil, err
		}
	}

	if c.userID != "" && c.userID != userID {
		h.release(ctx, c)
	}
	if err := h.presence.Connect(ctx, userID, c.id); err != nil {
		return nil, err
	}
	c.userID = userID
	return nil, nil
}

func (h *Handler) status(ctx context.Context, _ *Client, env Envelope) (any, error) {
	peerID, _, err := decodeUserID(env.Data)
	if err != nil {
		return nil, err
	}
	p, err := h.presence.Status(ctx, peerID)
	if errors.Is(err, errs.ErrNotFound) {
		// unknown peers read as offline
		return p, nil
	}
	return p, err
}

func (h *Handler) typingStart(_ context.Context, c *Client, env Envelope) (any, error) {
	var p typingPayload
	if err := decode(env.Data, &p); err != nil {
		return nil, err
	}
	return nil, h.typing.Start(c.userID, p.ConversationID, p.ReceiverID)
}

func (h *Handler) typingStop(_ context.Context, c *Client, env Envelope) (any, error) {
	var p typingPayload
	if err := decode(env.Data, &p); err != nil {
		return nil, err
	}
	return nil, h.typing.Stop(c.userID, p.ConversationID, p.ReceiverID)
}

func (h *Handler) send(ctx context.Context, c *Client, env Envelope) (any, error) {
	var p sendPayload
	if err := decode(env.Data, &p); err != nil {
		return nil, err
	}
	return nil, h.relay.Echo(ctx, c.userID, firstNonEmpty(p.ID, p.MessageID))
}

func (h *Handler) markRead(ctx context.Context, c *Client, env Envelope) (any, error) {
	var p readPayload
	if err := decode(env.Data, &p); err != nil {
		return nil, err
	}
	changed, err := h.relay.MarkRead(ctx, c.userID, p.MessageIDs)
	if err != nil {
		return nil, err
	}
	return map[string][]string{"messageIds": changed}, nil
}

func (h *Handler) react(ctx context.Context, c *Client, env Envelope) (any, error) {
	var p reactPayload
	if err := decode(env.Data, &p); err != nil {
		return nil, err
	}
	// the bound user reacts, whatever userId the payload names
	res, err := h.relay.ToggleReaction(ctx, c.userID, p.MessageID, p.Emoji)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (h *Handler) deleteMessage(ctx context.Context, c *Client, env Envelope) (any, error) {
	var p deletePayload
	if err := decode(env.Data, &p); err != nil {
		return nil, err
	}
	return nil, h.relay.Delete(ctx, c.userID, p.MessageID)
}

// release drops the user bound to c, if c still holds the binding.
func (h *Handler) release(ctx context.Context, c *Client) {
	if c.userID == "" {
		return
	}
	if connID, ok := h.presence.Directory().Lookup(c.userID); ok && connID == c.id {
		h.typing.Teardown(c.userID)
		h.presence.Disconnect(ctx, c.userID, c.id)
	}
	c.userID = ""
}

func (h *Handler) disconnect(ctx context.Context, c *Client) {
	// the request context may already be done; presence writes must still land
	h.release(context.WithoutCancel(ctx), c)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

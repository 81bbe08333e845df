// Package httpapi exposes the websocket endpoint and the REST collaborator
// endpoints over gorilla/mux.
package httpapi

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/hugomanns/realtime-chat/internal/auth"
	"github.com/hugomanns/realtime-chat/internal/model"
	"github.com/hugomanns/realtime-chat/internal/relay"
)

// Messages is the slice of the relay used over HTTP.
type Messages interface {
	Send(ctx context.Context, in relay.SendInput) (*model.Message, error)
	History(ctx context.Context, callerID, conversationID string, limit int) ([]model.Message, error)
}

// Presence answers status queries.
type Presence interface {
	Status(ctx context.Context, peerID string) (model.Presence, error)
}

// Counter reports a gauge-like count.
type Counter interface {
	Count() int
}

// Pinger checks a backend.
type Pinger func(ctx context.Context) error

// Deps wires the router.
type Deps struct {
	Messages    Messages
	Presence    Presence
	Verifier    *auth.Verifier
	WebSocket   http.Handler
	Metrics     http.Handler
	Connections Counter
	Bound       Counter
	// Checks are pinged by /healthz; a failing check turns the response into 503.
	Checks map[string]Pinger
	Log    *zap.Logger
}

type api struct {
	Deps
}

// NewRouter builds the HTTP handler.
func NewRouter(d Deps) http.Handler {
	a := &api{Deps: d}

	r := mux.NewRouter()
	r.Use(recoverMiddleware(d.Log), loggingMiddleware(d.Log))

	if d.WebSocket != nil {
		r.Handle("/ws", d.WebSocket).Methods(http.MethodGet)
	}
	r.HandleFunc("/healthz", a.healthz).Methods(http.MethodGet)
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics).Methods(http.MethodGet)
	}

	sub := r.PathPrefix("/api").Subrouter()
	sub.HandleFunc("/messages", a.sendMessage).Methods(http.MethodPost)
	sub.HandleFunc("/conversations/{id}/messages", a.history).Methods(http.MethodGet)
	sub.HandleFunc("/users/{id}/status", a.userStatus).Methods(http.MethodGet)

	return r
}

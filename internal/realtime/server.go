// server.go
// ServeHTTP upgrades HTTP to WebSocket, creates a client with a UUID,
// registers it with the hub and runs the per-connection goroutines.

package realtime

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Options tunes connection handling.
type Options struct {
	// SendBuffer is the number of frames queued per client before it is dropped.
	SendBuffer int
	// EventRate and EventBurst limit inbound events per connection.
	EventRate  float64
	EventBurst int

	MaxMessageSize int64
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration

	// AllowedOrigins lists accepted Origin hosts. Empty allows any origin.
	AllowedOrigins []string
}

func (o Options) withDefaults() Options {
	if o.SendBuffer <= 0 {
		o.SendBuffer = 256
	}
	if o.EventRate <= 0 {
		o.EventRate = 20
	}
	if o.EventBurst <= 0 {
		o.EventBurst = 40
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 64 << 10
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.PingPeriod <= 0 || o.PingPeriod >= o.PongWait {
		o.PingPeriod = o.PongWait * 9 / 10
	}
	return o
}

func (o Options) checkOrigin(r *http.Request) bool {
	if len(o.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, allowed := range o.AllowedOrigins {
		if strings.EqualFold(allowed, u.Host) || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// ServeHTTP handles the websocket endpoint. It blocks until the connection closes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.opts.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.log.Debug("upgrade failed", zap.Error(err))
		return
	}

	client := newClient(uuid.NewString(), conn, h.opts)
	if h.verifier.Enabled() {
		if sub, err := h.verifier.FromRequest(r); err == nil {
			client.preauth = sub
		}
	}
	if !h.hub.Register(client) {
		conn.Close()
		return
	}

	go client.write(h.opts.PingPeriod, h.opts.WriteWait)
	client.read(r.Context(), h)
}

// hub.go
// Central event loop. The hub owns the table of open connections and is the
// only goroutine that writes to a client's send channel, so each connection
// sees frames in the order they were queued.

package realtime

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/hugomanns/realtime-chat/internal/metrics"
	"github.com/hugomanns/realtime-chat/internal/presence"
)

type directFrame struct {
	connID string
	data   []byte
}

// Hub routes frames to connections.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	direct     chan directFrame
	done       chan struct{}
	open       atomic.Int64

	dir     *presence.Directory
	metrics *metrics.Metrics
	log     *zap.Logger
}

// NewHub creates a Hub resolving users through dir.
func NewHub(dir *presence.Directory, m *metrics.Metrics, log *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte),
		direct:     make(chan directFrame),
		done:       make(chan struct{}),
		dir:        dir,
		metrics:    m,
		log:        log,
	}
}

// Run processes hub traffic until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		for id, c := range h.clients {
			h.remove(id, c)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			h.clients[c.id] = c
			h.open.Add(1)
			h.metrics.ConnOpened()

		case c := <-h.unregister:
			if cur, ok := h.clients[c.id]; ok && cur == c {
				h.remove(c.id, c)
			}

		case data := <-h.broadcast:
			for id, c := range h.clients {
				h.deliver(id, c, data)
			}

		case f := <-h.direct:
			if c, ok := h.clients[f.connID]; ok {
				h.deliver(f.connID, c, f.data)
			}
		}
	}
}

// deliver never blocks the loop; a client that cannot keep up is dropped.
func (h *Hub) deliver(id string, c *Client, data []byte) {
	select {
	case c.send <- data:
	default:
		h.log.Warn("dropping slow client", zap.String("conn_id", id))
		h.metrics.Dropped()
		h.remove(id, c)
	}
}

func (h *Hub) remove(id string, c *Client) {
	close(c.send)
	delete(h.clients, id)
	h.open.Add(-1)
	h.metrics.ConnClosed()
}

// Count returns the number of open connections.
func (h *Hub) Count() int { return int(h.open.Load()) }

// Register adds c to the table. It reports false once the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes c and closes its send channel if it is still registered.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// EmitTo queues event for the connection bound to userID.
func (h *Hub) EmitTo(userID, event string, payload any) bool {
	connID, ok := h.dir.Lookup(userID)
	if !ok {
		return false
	}
	h.sendConn(connID, event, payload, "")
	return true
}

// Broadcast queues event for every open connection.
func (h *Hub) Broadcast(event string, payload any) {
	data, err := encode(event, payload, "")
	if err != nil {
		h.log.Error("encode broadcast", zap.String("event", event), zap.Error(err))
		return
	}
	h.metrics.Outbound(event)
	select {
	case h.broadcast <- data:
	case <-h.done:
	}
}

func (h *Hub) sendConn(connID, event string, payload any, ack string) {
	data, err := encode(event, payload, ack)
	if err != nil {
		h.log.Error("encode frame", zap.String("event", event), zap.Error(err))
		return
	}
	h.metrics.Outbound(event)
	select {
	case h.direct <- directFrame{connID: connID, data: data}:
	case <-h.done:
	}
}

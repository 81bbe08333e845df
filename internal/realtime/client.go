// client.go
// The read goroutine decodes frames from the browser and dispatches them one
// at a time. The write goroutine drains the client's send channel back to the
// browser and keeps the connection alive with pings.
// Separating read/write avoids head-of-line blocking when a browser is slow.

package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hugomanns/realtime-chat/internal/events"
)

// Client is a single websocket connection.
type Client struct {
	id      string
	conn    *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter

	// Touched only by the read goroutine.
	userID  string
	preauth string
}

func newClient(id string, conn *websocket.Conn, opts Options) *Client {
	return &Client{
		id:      id,
		conn:    conn,
		send:    make(chan []byte, opts.SendBuffer),
		limiter: rate.NewLimiter(rate.Limit(opts.EventRate), opts.EventBurst),
	}
}

func (c *Client) read(ctx context.Context, h *Handler) {
	defer func() {
		h.disconnect(ctx, c)
		h.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(h.opts.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("read", zap.String("conn_id", c.id), zap.Error(err))
			}
			return
		}

		if !c.limiter.Allow() {
			h.metrics.RateLimited()
			h.hub.sendConn(c.id, events.Error, events.ErrorPayload{Error: "rate limited"}, "")
			continue
		}

		var env Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			h.log.Debug("bad frame", zap.String("conn_id", c.id), zap.Error(err))
			continue
		}
		if env.Event == "" {
			h.log.Debug("frame without event", zap.String("conn_id", c.id))
			continue
		}
		h.dispatch(ctx, c, env)
	}
}

func (c *Client) write(pingPeriod, writeWait time.Duration) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Package ingest receives "message created" notifications from an external
// message-creation service over NATS and relays the stored message.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/hugomanns/realtime-chat/internal/model"
)

// DefaultSubject carries {"messageId": "..."} for every newly stored message.
const DefaultSubject = "chat.message.created"

// MessageLoader loads a stored message.
type MessageLoader interface {
	FindByID(ctx context.Context, id string) (*model.Message, error)
}

// Relayer delivers a stored message to its participants.
type Relayer interface {
	Relay(ctx context.Context, m *model.Message)
}

// Created is the notification payload.
type Created struct {
	MessageID string `json:"messageId"`
}

// Config tunes the subscriber.
type Config struct {
	Subject    string
	Queue      string
	Workers    int
	BufferSize int
}

// Connect dials NATS with reconnect logging.
func Connect(url string, log *zap.Logger) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("chatd"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(10*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			log.Info("nats connection closed")
		}),
	)
}

// Subscriber queue-subscribes to the created subject and relays on a small
// worker pool so slow store reads never stall the NATS dispatcher.
type Subscriber struct {
	nc       *nats.Conn
	messages MessageLoader
	relay    Relayer
	cfg      Config
	log      *zap.Logger

	sub    *nats.Subscription
	queue  chan []byte
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewSubscriber creates a Subscriber.
func NewSubscriber(nc *nats.Conn, messages MessageLoader, relay Relayer, cfg Config, log *zap.Logger) *Subscriber {
	if cfg.Subject == "" {
		cfg.Subject = DefaultSubject
	}
	if cfg.Queue == "" {
		cfg.Queue = "chatd"
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1024
	}
	return &Subscriber{nc: nc, messages: messages, relay: relay, cfg: cfg, log: log}
}

// Start subscribes and launches the workers.
func (s *Subscriber) Start(ctx context.Context) error {
	s.queue = make(chan []byte, s.cfg.BufferSize)
	workerCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker(workerCtx)
	}

	sub, err := s.nc.QueueSubscribe(s.cfg.Subject, s.cfg.Queue, func(msg *nats.Msg) {
		s.enqueue(msg.Data)
	})
	if err != nil {
		cancel()
		s.wg.Wait()
		return err
	}
	s.sub = sub
	s.log.Info("nats subscriber started",
		zap.String("subject", s.cfg.Subject),
		zap.String("queue", s.cfg.Queue),
		zap.Int("workers", s.cfg.Workers),
	)
	return nil
}

func (s *Subscriber) enqueue(data []byte) {
	select {
	case s.queue <- data:
	default:
		s.log.Warn("ingest buffer full, dropping notification", zap.Int("buffer", s.cfg.BufferSize))
	}
}

func (s *Subscriber) worker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-s.queue:
			if err := s.handle(ctx, data); err != nil {
				s.log.Warn("ingest", zap.Error(err))
			}
		}
	}
}

var errNoMessageID = errors.New("notification without messageId")

func (s *Subscriber) handle(ctx context.Context, data []byte) error {
	var c Created
	if err := json.Unmarshal(data, &c); err != nil {
		return err
	}
	if c.MessageID == "" {
		return errNoMessageID
	}
	m, err := s.messages.FindByID(ctx, c.MessageID)
	if err != nil {
		return err
	}
	s.relay.Relay(ctx, m)
	return nil
}

// Stop unsubscribes and waits for the workers.
func (s *Subscriber) Stop() {
	if s.sub != nil {
		if err := s.sub.Unsubscribe(); err != nil {
			s.log.Warn("nats unsubscribe", zap.Error(err))
		}
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

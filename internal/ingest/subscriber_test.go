package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/hugomanns/realtime-chat/internal/errs"
	"github.com/hugomanns/realtime-chat/internal/model"
	"github.com/hugomanns/realtime-chat/internal/store/memory"
)

type relayed struct {
	ids []string
}

func (r *relayed) Relay(_ context.Context, m *model.Message) {
	r.ids = append(r.ids, m.ID)
}

func newTestSubscriber(t *testing.T) (*Subscriber, *relayed) {
	t.Helper()
	st := memory.New()
	require.NoError(t, st.Messages().Create(context.Background(), &model.Message{ID: "m1", SenderID: "a", ReceiverID: "b"}))
	r := &relayed{}
	return NewSubscriber(nil, st.Messages(), r, Config{}, zaptest.NewLogger(t)), r
}

func TestHandle_RelaysStoredMessage(t *testing.T) {
	s, r := newTestSubscriber(t)

	require.NoError(t, s.handle(context.Background(), []byte(`{"messageId":"m1"}`)))
	require.Equal(t, []string{"m1"}, r.ids)
}

func TestHandle_Rejects(t *testing.T) {
	s, r := newTestSubscriber(t)
	ctx := context.Background()

	require.Error(t, s.handle(ctx, []byte(`not json`)))
	require.ErrorIs(t, s.handle(ctx, []byte(`{}`)), errNoMessageID)
	require.ErrorIs(t, s.handle(ctx, []byte(`{"messageId":"ghost"}`)), errs.ErrNotFound)
	require.Empty(t, r.ids)
}

func TestNewSubscriber_Defaults(t *testing.T) {
	s, _ := newTestSubscriber(t)
	require.Equal(t, DefaultSubject, s.cfg.Subject)
	require.Equal(t, "chatd", s.cfg.Queue)
	require.Positive(t, s.cfg.Workers)
	require.Positive(t, s.cfg.BufferSize)
}

func TestWorkers_DrainQueue(t *testing.T) {
	s, r := newTestSubscriber(t)
	s.cfg.Workers = 1
	s.queue = make(chan []byte, 4)
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.enqueue([]byte(`{"messageId":"m1"}`))
	s.wg.Add(1)
	go s.worker(ctx)

	require.Eventually(t, func() bool { return len(s.queue) == 0 }, time.Second, 5*time.Millisecond)
	s.Stop()
	require.Equal(t, []string{"m1"}, r.ids)
}

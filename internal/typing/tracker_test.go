package typing

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hugomanns/realtime-chat/internal/errs"
	"github.com/hugomanns/realtime-chat/internal/events"
)

type manualTimer struct {
	clock   *manualClock
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (mt *manualTimer) Stop() bool {
	mt.clock.mu.Lock()
	defer mt.clock.mu.Unlock()
	if mt.stopped || mt.fired {
		return false
	}
	mt.stopped = true
	return true
}

type manualClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*manualTimer
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	mt := &manualTimer{clock: c, at: c.now + d, f: f}
	c.timers = append(c.timers, mt)
	return mt
}

// Advance moves time forward and runs every timer that came due, in order.
func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*manualTimer
	for _, mt := range c.timers {
		if !mt.stopped && !mt.fired && mt.at <= c.now {
			mt.fired = true
			due = append(due, mt)
		}
	}
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].at < due[j].at })
	for _, mt := range due {
		mt.f()
	}
}

type recorder struct {
	mu  sync.Mutex
	out []sent
}

type sent struct {
	to string
	p  events.TypingPayload
}

func (r *recorder) EmitTo(userID, event string, payload any) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if event == events.TypingChanged {
		r.out = append(r.out, sent{to: userID, p: payload.(events.TypingPayload)})
	}
	return true
}

func (r *recorder) flags() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]bool, 0, len(r.out))
	for _, s := range r.out {
		out = append(out, s.p.IsTyping)
	}
	return out
}

func newTracker() (*Tracker, *manualClock, *recorder) {
	clock := &manualClock{}
	rec := &recorder{}
	return New(rec, WithClock(clock)), clock, rec
}

func TestTracker_StartThenSilenceExpiresOnce(t *testing.T) {
	tr, clock, rec := newTracker()

	require.NoError(t, tr.Start("a", "c1", "b"))
	require.True(t, tr.IsTyping("a", "c1"))

	clock.Advance(DefaultTimeout + time.Millisecond)
	require.False(t, tr.IsTyping("a", "c1"))
	require.Equal(t, []bool{true, false}, rec.flags())

	clock.Advance(10 * DefaultTimeout)
	require.Equal(t, []bool{true, false}, rec.flags())
}

func TestTracker_RepeatedStartRefreshesWithoutEmitting(t *testing.T) {
	tr, clock, rec := newTracker()

	require.NoError(t, tr.Start("a", "c1", "b"))
	clock.Advance(1500 * time.Millisecond)
	require.NoError(t, tr.Start("a", "c1", "b"))
	clock.Advance(1500 * time.Millisecond)

	require.True(t, tr.IsTyping("a", "c1"))
	require.Equal(t, []bool{true}, rec.flags())

	clock.Advance(time.Second)
	require.Equal(t, []bool{true, false}, rec.flags())
}

func TestTracker_StopCancelsTimer(t *testing.T) {
	tr, clock, rec := newTracker()

	require.NoError(t, tr.Start("a", "c1", "b"))
	require.NoError(t, tr.Stop("a", "c1", "b"))
	clock.Advance(time.Minute)

	require.Equal(t, []bool{true, false}, rec.flags())
	require.Equal(t, "b", rec.out[1].to)
}

func TestTracker_StopWhileIdleEmitsNothing(t *testing.T) {
	tr, clock, rec := newTracker()

	require.NoError(t, tr.Stop("a", "c1", "b"))
	require.Empty(t, rec.flags())

	require.NoError(t, tr.Start("a", "c1", "b"))
	clock.Advance(DefaultTimeout)
	require.NoError(t, tr.Stop("a", "c1", "b"))
	require.Equal(t, []bool{true, false}, rec.flags())
}

func TestTracker_SwitchingConversationEndsPrevious(t *testing.T) {
	tr, _, rec := newTracker()

	require.NoError(t, tr.Start("a", "c1", "b"))
	require.NoError(t, tr.Start("a", "c2", "d"))

	require.False(t, tr.IsTyping("a", "c1"))
	require.True(t, tr.IsTyping("a", "c2"))
	require.Len(t, rec.out, 3)
	require.Equal(t, sent{to: "b", p: events.TypingPayload{UserID: "a", ConversationID: "c1", IsTyping: false}}, rec.out[1])
	require.Equal(t, sent{to: "d", p: events.TypingPayload{UserID: "a", ConversationID: "c2", IsTyping: true}}, rec.out[2])
}

func TestTracker_TeardownIsSilent(t *testing.T) {
	tr, clock, rec := newTracker()

	require.NoError(t, tr.Start("a", "c1", "b"))
	tr.Teardown("a")
	clock.Advance(time.Minute)

	require.False(t, tr.IsTyping("a", "c1"))
	require.Equal(t, []bool{true}, rec.flags())
}

func TestTracker_UsersAreIndependent(t *testing.T) {
	tr, clock, rec := newTracker()

	require.NoError(t, tr.Start("a", "c1", "b"))
	clock.Advance(time.Second)
	require.NoError(t, tr.Start("b", "c1", "a"))
	clock.Advance(1100 * time.Millisecond)

	require.False(t, tr.IsTyping("a", "c1"))
	require.True(t, tr.IsTyping("b", "c1"))
	require.Equal(t, []bool{true, true, false}, rec.flags())
}

func TestTracker_Validation(t *testing.T) {
	tr, _, rec := newTracker()

	require.ErrorIs(t, tr.Start("", "c1", "b"), errs.ErrValidation)
	require.ErrorIs(t, tr.Start("a", "", "b"), errs.ErrValidation)
	require.ErrorIs(t, tr.Start("a", "c1", ""), errs.ErrValidation)
	require.ErrorIs(t, tr.Stop("a", "", "b"), errs.ErrValidation)
	require.Empty(t, rec.flags())
}

func TestTracker_RealClock(t *testing.T) {
	rec := &recorder{}
	tr := New(rec, WithTimeout(20*time.Millisecond))

	require.NoError(t, tr.Start("a", "c1", "b"))
	require.Eventually(t, func() bool { return !tr.IsTyping("a", "c1") }, time.Second, 5*time.Millisecond)
	require.Equal(t, []bool{true, false}, rec.flags())
}

// Package typing tracks which conversation each user is typing in and tells
// the peer when that changes.
package typing

import (
	"fmt"
	"sync"
	"time"

	"github.com/hugomanns/realtime-chat/internal/errs"
	"github.com/hugomanns/realtime-chat/internal/events"
)

// DefaultTimeout is the quiet period after which typing ends on its own.
const DefaultTimeout = 2 * time.Second

// Timer is a pending callback.
type Timer interface {
	Stop() bool
}

// Clock schedules callbacks. Tests swap in a manual clock.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Emitter delivers an event to a bound user.
type Emitter interface {
	EmitTo(userID, event string, payload any) bool
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock sets the clock used for the quiet period.
func WithClock(c Clock) Option {
	return func(t *Tracker) { t.clock = c }
}

// WithTimeout sets the quiet period.
func WithTimeout(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.timeout = d
		}
	}
}

type state struct {
	conversationID string
	peerID         string
	timer          Timer
	gen            uint64
}

// Tracker holds at most one typing state per user.
type Tracker struct {
	mu      sync.Mutex
	emit    Emitter
	clock   Clock
	timeout time.Duration
	states  map[string]*state
	gen     uint64
}

// New creates a Tracker.
func New(emit Emitter, opts ...Option) *Tracker {
	t := &Tracker{
		emit:    emit,
		clock:   realClock{},
		timeout: DefaultTimeout,
		states:  make(map[string]*state),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Start marks userID as typing in conversationID. Only the Idle -> Typing
// transition is announced; repeats just push the expiry back. Typing in a
// different conversation ends the previous one first.
func (t *Tracker) Start(userID, conversationID, peerID string) error {
	if userID == "" || conversationID == "" || peerID == "" {
		return fmt.Errorf("typing start: %w", errs.ErrValidation)
	}

	// Emits happen under the lock so a racing expiry cannot reorder true/false.
	t.mu.Lock()
	defer t.mu.Unlock()

	if st, ok := t.states[userID]; ok {
		st.timer.Stop()
		if st.conversationID == conversationID && st.peerID == peerID {
			st.gen = t.arm(userID, st)
			return nil
		}
		delete(t.states, userID)
		t.announce(userID, st, false)
	}

	st := &state{conversationID: conversationID, peerID: peerID}
	st.gen = t.arm(userID, st)
	t.states[userID] = st
	t.announce(userID, st, true)
	return nil
}

// Stop ends typing in conversationID. Stopping while idle emits nothing.
func (t *Tracker) Stop(userID, conversationID, peerID string) error {
	if userID == "" || conversationID == "" {
		return fmt.Errorf("typing stop: %w", errs.ErrValidation)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.states[userID]
	if !ok || st.conversationID != conversationID {
		return nil
	}
	if peerID != "" && peerID != st.peerID {
		return nil
	}
	st.timer.Stop()
	delete(t.states, userID)
	t.announce(userID, st, false)
	return nil
}

// Teardown discards userID's state without telling anyone.
func (t *Tracker) Teardown(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if st, ok := t.states[userID]; ok {
		st.timer.Stop()
		delete(t.states, userID)
	}
}

// IsTyping reports whether userID is typing in conversationID.
func (t *Tracker) IsTyping(userID, conversationID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.states[userID]
	return ok && st.conversationID == conversationID
}

// arm schedules expiry for st and returns the generation it belongs to.
// Must hold t.mu.
func (t *Tracker) arm(userID string, st *state) uint64 {
	t.gen++
	gen := t.gen
	st.timer = t.clock.AfterFunc(t.timeout, func() { t.expire(userID, gen) })
	return gen
}

func (t *Tracker) expire(userID string, gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.states[userID]
	if !ok || st.gen != gen {
		// stopped, re-armed or replaced after the timer was already firing
		return
	}
	delete(t.states, userID)
	t.announce(userID, st, false)
}

func (t *Tracker) announce(userID string, st *state, typing bool) {
	t.emit.EmitTo(st.peerID, events.TypingChanged, events.TypingPayload{
		UserID:         userID,
		ConversationID: st.conversationID,
		IsTyping:       typing,
	})
}

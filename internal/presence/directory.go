// Package presence keeps the in-process user -> connection directory and
// publishes online/offline changes.
package presence

import (
	"fmt"
	"sync"

	"github.com/hugomanns/realtime-chat/internal/errs"
)

// Directory maps a user id to the id of its single active connection.
// A later Bind for the same user replaces the earlier one.
type Directory struct {
	mu    sync.RWMutex
	conns map[string]string
}

// NewDirectory creates an empty Directory.
func NewDirectory() *Directory {
	return &Directory{conns: make(map[string]string)}
}

// Bind points userID at connID, returning the connection it replaced, if any.
func (d *Directory) Bind(userID, connID string) (string, error) {
	if userID == "" || connID == "" {
		return "", fmt.Errorf("bind: empty id: %w", errs.ErrValidation)
	}
	d.mu.Lock()
	prev := d.conns[userID]
	d.conns[userID] = connID
	d.mu.Unlock()
	if prev == connID {
		prev = ""
	}
	return prev, nil
}

// Unbind removes the binding of userID if it still points at connID and
// reports whether it did. Disconnects of superseded connections are no-ops.
func (d *Directory) Unbind(userID, connID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.conns[userID]; !ok || cur != connID {
		return false
	}
	delete(d.conns, userID)
	return true
}

// Lookup returns the connection bound to userID.
func (d *Directory) Lookup(userID string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.conns[userID]
	return c, ok
}

// IsOnline reports whether userID has a bound connection.
func (d *Directory) IsOnline(userID string) bool {
	_, ok := d.Lookup(userID)
	return ok
}

// Count returns the number of bound users.
func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.conns)
}

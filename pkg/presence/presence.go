// Package presence tracks online/offline state per user id, decoupled
// from message flow. Users never seen by the tracker are offline.
package presence

import (
	"sync"

	"chatcore/pkg/logger"
	"chatcore/pkg/metrics"
)

// Tracker holds last-write-wins online flags keyed by user id.
type Tracker struct {
	mu     sync.RWMutex
	online map[string]bool
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{online: make(map[string]bool)}
}

// SetOnline records the user's presence. Repeated updates with the same
// value are no-ops.
func (t *Tracker) SetOnline(userID string, online bool) {
	t.mu.Lock()
	prev, known := t.online[userID]
	t.online[userID] = online
	t.mu.Unlock()
	metrics.PresenceUpdates.Inc()
	if !known || prev != online {
		logger.Debug("presence_changed", "user", userID, "online", online)
	}
}

// IsOnline reports the last known presence for userID; unknown users are
// offline.
func (t *Tracker) IsOnline(userID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.online[userID]
}

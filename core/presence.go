package core

import (
	"sync"
	"time"
)

const (
	StatusOnline  = "online"
	StatusOffline = "offline"

	// DefaultPresenceDebounce is the quiet period a user must stay fully
	// disconnected before an offline transition is published. It absorbs
	// the reconnect flap of a page navigation.
	DefaultPresenceDebounce = 5 * time.Second
)

// PresenceRecord is the public status of one user. There is one record per
// user, not per connection. Records are created lazily and only toggled,
// never deleted; a process restart resets everything to offline.
type PresenceRecord struct {
	UserID         string    `json:"user_id"`
	Status         string    `json:"status"`
	LiveConns      int       `json:"-"`
	LastTransition time.Time `json:"last_transition"`
}

// PresenceTracker derives online/offline status from connection lifecycle
// events. Offline transitions are debounced; a reconnect inside the window
// cancels the pending transition so observers see no flap at all.
//
// notify runs while the tracker's lock is held, so a user's transitions
// reach observers in the order they happened. The callback must not call
// back into the tracker.
type PresenceTracker struct {
	mu       sync.Mutex
	records  map[string]*PresenceRecord
	timers   *TimerTable[string]
	debounce time.Duration
	notify   func(userID string, online bool)
}

func NewPresenceTracker(debounce time.Duration, notify func(userID string, online bool)) *PresenceTracker {
	if debounce <= 0 {
		debounce = DefaultPresenceDebounce
	}
	if notify == nil {
		notify = func(string, bool) {}
	}
	return &PresenceTracker{
		records:  make(map[string]*PresenceRecord),
		timers:   NewTimerTable[string](),
		debounce: debounce,
		notify:   notify,
	}
}

// OnConnectionAdded records a new live connection for a user. A pending
// offline transition is canceled; if the user was publicly offline, an
// online transition is published.
func (p *PresenceTracker) OnConnectionAdded(userID string) {
	p.mu.Lock()
	rec, ok := p.records[userID]
	if !ok {
		rec = &PresenceRecord{UserID: userID, Status: StatusOffline}
		p.records[userID] = rec
	}
	rec.LiveConns++
	p.timers.Cancel(userID)
	if rec.Status == StatusOffline {
		rec.Status = StatusOnline
		rec.LastTransition = time.Now()
		p.notify(userID, true)
	}
	p.mu.Unlock()
}

// OnConnectionRemoved records the loss of a live connection. When the last
// connection drops, the offline transition is scheduled after the debounce
// window rather than published immediately.
func (p *PresenceTracker) OnConnectionRemoved(userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rec, ok := p.records[userID]
	if !ok || rec.LiveConns == 0 {
		return
	}
	rec.LiveConns--
	if rec.LiveConns > 0 {
		return
	}
	p.timers.Schedule(userID, p.debounce, func() {
		p.mu.Lock()
		rec, ok := p.records[userID]
		if !ok || rec.LiveConns > 0 || rec.Status != StatusOnline {
			p.mu.Unlock()
			return
		}
		rec.Status = StatusOffline
		rec.LastTransition = time.Now()
		p.notify(userID, false)
		p.mu.Unlock()
	})
}

// Status returns the public presence record for a user. Users never seen by
// the tracker report as offline.
func (p *PresenceTracker) Status(userID string) PresenceRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	if rec, ok := p.records[userID]; ok {
		return *rec
	}
	return PresenceRecord{UserID: userID, Status: StatusOffline}
}

// Close cancels all pending offline transitions.
func (p *PresenceTracker) Close() {
	p.timers.CancelAll()
}

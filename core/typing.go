package core

import (
	"sync"
	"time"
)

// DefaultTypingTTL is how long a typing signal stays valid without renewal.
// Clients are expected to re-send typing_start every couple of seconds while
// the user types.
const DefaultTypingTTL = 7 * time.Second

type typingKey struct {
	roomID string
	userID string
}

// TypingCoordinator tracks per-room, per-user typing signals and reports
// state transitions only. Refreshing an active signal is silent; observers
// cannot tell an explicit stop apart from a TTL expiry.
//
// notify runs while the coordinator's lock is held, so transitions for a
// given (room, user) key reach observers in the order they happened. The
// callback must not call back into the coordinator.
type TypingCoordinator struct {
	mu      sync.Mutex
	expiry  map[typingKey]time.Time
	timers  *TimerTable[typingKey]
	ttl     time.Duration
	notify  func(roomID, userID string, typing bool)
}

func NewTypingCoordinator(ttl time.Duration, notify func(roomID, userID string, typing bool)) *TypingCoordinator {
	if ttl <= 0 {
		ttl = DefaultTypingTTL
	}
	if notify == nil {
		notify = func(string, string, bool) {}
	}
	return &TypingCoordinator{
		expiry: make(map[typingKey]time.Time),
		timers: NewTimerTable[typingKey](),
		ttl:    ttl,
		notify: notify,
	}
}

// Start creates or refreshes the typing signal for (room, user). Only the
// first call of a typing burst publishes a transition; renewals before
// expiry are de-duplicated.
func (c *TypingCoordinator) Start(roomID, userID string) {
	key := typingKey{roomID: roomID, userID: userID}
	c.mu.Lock()
	_, active := c.expiry[key]
	c.expiry[key] = time.Now().Add(c.ttl)
	c.timers.Schedule(key, c.ttl, func() {
		c.expire(key)
	})
	if !active {
		c.notify(roomID, userID, true)
	}
	c.mu.Unlock()
}

// Stop clears the typing signal immediately. No transition is published if
// the signal had already stopped or expired.
func (c *TypingCoordinator) Stop(roomID, userID string) {
	key := typingKey{roomID: roomID, userID: userID}
	c.mu.Lock()
	_, active := c.expiry[key]
	if active {
		delete(c.expiry, key)
		c.timers.Cancel(key)
		c.notify(roomID, userID, false)
	}
	c.mu.Unlock()
}

// IsTyping reports whether a non-stale signal exists for (room, user).
// A signal past its expiry is treated as absent even if the sweep has not
// fired yet.
func (c *TypingCoordinator) IsTyping(roomID, userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	exp, ok := c.expiry[typingKey{roomID: roomID, userID: userID}]
	return ok && time.Now().Before(exp)
}

func (c *TypingCoordinator) expire(key typingKey) {
	c.mu.Lock()
	exp, ok := c.expiry[key]
	// a renewal may have landed between the timer firing and this lock
	if !ok || time.Now().Before(exp) {
		c.mu.Unlock()
		return
	}
	delete(c.expiry, key)
	c.notify(key.roomID, key.userID, false)
	c.mu.Unlock()
}

// Close cancels all pending expiry timers.
func (c *TypingCoordinator) Close() {
	c.timers.CancelAll()
}

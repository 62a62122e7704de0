package core

import (
	"sync"
	"time"
)

// TimerTable is a map of per-key cancelable delayed tasks. Scheduling a key
// that already has a pending timer replaces it, so cancel-then-reschedule is
// a single atomic step relative to other operations on the same key.
//
// The callback runs on its own goroutine after the delay and must re-check
// any state it acts on, because a concurrent Cancel can lose the race with an
// already-fired timer.
type TimerTable[K comparable] struct {
	mu     sync.Mutex
	timers map[K]*time.Timer
}

func NewTimerTable[K comparable]() *TimerTable[K] {
	return &TimerTable[K]{
		timers: make(map[K]*time.Timer),
	}
}

// Schedule runs f after d, replacing any pending timer for key.
func (t *TimerTable[K]) Schedule(key K, d time.Duration, f func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.timers[key]; ok {
		existing.Stop()
	}
	t.timers[key] = time.AfterFunc(d, func() {
		t.mu.Lock()
		delete(t.timers, key)
		t.mu.Unlock()
		f()
	})
}

// Cancel stops the pending timer for key. It reports whether a timer was
// pending and successfully stopped before firing.
func (t *TimerTable[K]) Cancel(key K) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	timer, ok := t.timers[key]
	if !ok {
		return false
	}
	delete(t.timers, key)
	return timer.Stop()
}

// Len returns the number of pending timers. Cancellation on key removal
// keeps this bounded under connection churn.
func (t *TimerTable[K]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.timers)
}

// CancelAll stops every pending timer.
func (t *TimerTable[K]) CancelAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key, timer := range t.timers {
		timer.Stop()
		delete(t.timers, key)
	}
}

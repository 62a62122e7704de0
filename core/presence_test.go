package core

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type transition struct {
	userID string
	online bool
}

// transitionRecorder collects notify callbacks so tests can assert on the
// exact sequence of published transitions.
type transitionRecorder struct {
	mu          sync.Mutex
	transitions []transition
}

func (r *transitionRecorder) record(userID string, online bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, transition{userID: userID, online: online})
}

func (r *transitionRecorder) all() []transition {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]transition(nil), r.transitions...)
}

func TestPresenceOnlineTransition(t *testing.T) {
	rec := &transitionRecorder{}
	p := NewPresenceTracker(50*time.Millisecond, rec.record)
	defer p.Close()

	p.OnConnectionAdded("alice")
	assert.Equal(t, []transition{{"alice", true}}, rec.all())
	assert.Equal(t, StatusOnline, p.Status("alice").Status)

	// a second tab does not re-publish
	p.OnConnectionAdded("alice")
	assert.Equal(t, []transition{{"alice", true}}, rec.all())
}

func TestPresenceDebouncedOffline(t *testing.T) {
	rec := &transitionRecorder{}
	p := NewPresenceTracker(50*time.Millisecond, rec.record)
	defer p.Close()

	p.OnConnectionAdded("alice")
	p.OnConnectionRemoved("alice")

	// still publicly online inside the debounce window
	assert.Equal(t, StatusOnline, p.Status("alice").Status)
	assert.Equal(t, []transition{{"alice", true}}, rec.all())

	require.Eventually(t, func() bool {
		return p.Status("alice").Status == StatusOffline
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []transition{{"alice", true}, {"alice", false}}, rec.all())
}

func TestPresenceReconnectAbsorbsFlap(t *testing.T) {
	rec := &transitionRecorder{}
	p := NewPresenceTracker(100*time.Millisecond, rec.record)
	defer p.Close()

	p.OnConnectionAdded("alice")
	p.OnConnectionRemoved("alice")
	time.Sleep(20 * time.Millisecond)
	p.OnConnectionAdded("alice")

	// well past the original debounce deadline
	time.Sleep(200 * time.Millisecond)

	assert.Equal(t, StatusOnline, p.Status("alice").Status)
	assert.Equal(t, []transition{{"alice", true}}, rec.all(),
		"a reconnect inside the window must publish nothing at all")
}

func TestPresenceMultipleConnections(t *testing.T) {
	rec := &transitionRecorder{}
	p := NewPresenceTracker(30*time.Millisecond, rec.record)
	defer p.Close()

	p.OnConnectionAdded("alice")
	p.OnConnectionAdded("alice")

	// dropping one of two connections schedules nothing
	p.OnConnectionRemoved("alice")
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, StatusOnline, p.Status("alice").Status)

	p.OnConnectionRemoved("alice")
	require.Eventually(t, func() bool {
		return p.Status("alice").Status == StatusOffline
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []transition{{"alice", true}, {"alice", false}}, rec.all())
}

func TestPresenceUnknownUserIsOffline(t *testing.T) {
	p := NewPresenceTracker(0, nil)
	defer p.Close()

	rec := p.Status("ghost")
	assert.Equal(t, StatusOffline, rec.Status)
	assert.Equal(t, "ghost", rec.UserID)

	// removing a connection that was never added must not panic or underflow
	p.OnConnectionRemoved("ghost")
	assert.Equal(t, StatusOffline, p.Status("ghost").Status)
}

// A debounce expiry racing a reconnect must not leave observers on offline
// while the user is back. The recorder stalls the offline publish and issues
// a concurrent reconnect; the reconnect's online has to land after it.
func TestPresenceOfflineRaceKeepsOrder(t *testing.T) {
	rec := &transitionRecorder{}
	offlineEntered := make(chan struct{})
	releaseOffline := make(chan struct{})
	var once sync.Once
	p := NewPresenceTracker(30*time.Millisecond, func(userID string, online bool) {
		if !online {
			once.Do(func() {
				close(offlineEntered)
				<-releaseOffline
			})
		}
		rec.record(userID, online)
	})
	defer p.Close()

	p.OnConnectionAdded("alice")
	p.OnConnectionRemoved("alice")

	select {
	case <-offlineEntered:
	case <-time.After(time.Second):
		t.Fatal("debounce never fired")
	}

	reconnected := make(chan struct{})
	go func() {
		p.OnConnectionAdded("alice")
		close(reconnected)
	}()

	select {
	case <-reconnected:
		t.Fatal("reconnect published ahead of the in-flight offline")
	case <-time.After(50 * time.Millisecond):
	}

	close(releaseOffline)
	select {
	case <-reconnected:
	case <-time.After(time.Second):
		t.Fatal("reconnect never completed")
	}

	require.Equal(t, []transition{
		{"alice", true},
		{"alice", false},
		{"alice", true},
	}, rec.all())
	assert.Equal(t, StatusOnline, p.Status("alice").Status)
}

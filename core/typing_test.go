package core

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type typingTransition struct {
	roomID string
	userID string
	typing bool
}

type typingRecorder struct {
	mu          sync.Mutex
	transitions []typingTransition
}

func (r *typingRecorder) record(roomID, userID string, typing bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, typingTransition{roomID, userID, typing})
}

func (r *typingRecorder) all() []typingTransition {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]typingTransition(nil), r.transitions...)
}

func TestTypingStartDeduplicates(t *testing.T) {
	rec := &typingRecorder{}
	c := NewTypingCoordinator(time.Second, rec.record)
	defer c.Close()

	// a burst of renewals while the user types
	c.Start("support", "alice")
	c.Start("support", "alice")
	c.Start("support", "alice")

	assert.True(t, c.IsTyping("support", "alice"))
	assert.Equal(t, []typingTransition{{"support", "alice", true}}, rec.all(),
		"only the first start of a burst publishes")
}

func TestTypingStop(t *testing.T) {
	rec := &typingRecorder{}
	c := NewTypingCoordinator(time.Second, rec.record)
	defer c.Close()

	c.Start("support", "alice")
	c.Stop("support", "alice")

	assert.False(t, c.IsTyping("support", "alice"))
	assert.Equal(t, []typingTransition{
		{"support", "alice", true},
		{"support", "alice", false},
	}, rec.all())

	// stop without an active signal publishes nothing
	c.Stop("support", "alice")
	c.Stop("support", "bob")
	assert.Len(t, rec.all(), 2)
}

func TestTypingTTLExpiry(t *testing.T) {
	rec := &typingRecorder{}
	c := NewTypingCoordinator(50*time.Millisecond, rec.record)
	defer c.Close()

	c.Start("support", "alice")

	require.Eventually(t, func() bool {
		return !c.IsTyping("support", "alice")
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		return len(rec.all()) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, typingTransition{"support", "alice", false}, rec.all()[1],
		"an expiry looks exactly like an explicit stop")
}

func TestTypingRenewalExtendsTTL(t *testing.T) {
	rec := &typingRecorder{}
	c := NewTypingCoordinator(60*time.Millisecond, rec.record)
	defer c.Close()

	c.Start("support", "alice")
	time.Sleep(40 * time.Millisecond)
	c.Start("support", "alice")
	time.Sleep(40 * time.Millisecond)

	// 80ms after the first start the renewed signal is still alive
	assert.True(t, c.IsTyping("support", "alice"))
	assert.Equal(t, []typingTransition{{"support", "alice", true}}, rec.all())
}

func TestTypingPerRoomIsolation(t *testing.T) {
	rec := &typingRecorder{}
	c := NewTypingCoordinator(time.Second, rec.record)
	defer c.Close()

	c.Start("support", "alice")
	c.Start("sales", "alice")
	c.Stop("support", "alice")

	assert.False(t, c.IsTyping("support", "alice"))
	assert.True(t, c.IsTyping("sales", "alice"))
}

// A TTL expiry racing a fresh start must not leave observers on "stopped
// typing" while the coordinator holds an active signal. The recorder stalls
// the expiry's stop publish and issues a concurrent start; the start has to
// wait for the in-flight stop, so the true lands last.
func TestTypingExpiryRaceKeepsOrder(t *testing.T) {
	rec := &typingRecorder{}
	stopEntered := make(chan struct{})
	releaseStop := make(chan struct{})
	var once sync.Once
	c := NewTypingCoordinator(200*time.Millisecond, func(roomID, userID string, typing bool) {
		if !typing {
			once.Do(func() {
				close(stopEntered)
				<-releaseStop
			})
		}
		rec.record(roomID, userID, typing)
	})
	defer c.Close()

	c.Start("support", "alice")

	select {
	case <-stopEntered:
	case <-time.After(time.Second):
		t.Fatal("expiry never fired")
	}

	restarted := make(chan struct{})
	go func() {
		c.Start("support", "alice")
		close(restarted)
	}()

	select {
	case <-restarted:
		t.Fatal("restart published ahead of the in-flight stop")
	case <-time.After(50 * time.Millisecond):
	}

	close(releaseStop)
	select {
	case <-restarted:
	case <-time.After(time.Second):
		t.Fatal("restart never completed")
	}

	require.Equal(t, []typingTransition{
		{"support", "alice", true},
		{"support", "alice", false},
		{"support", "alice", true},
	}, rec.all())
	assert.True(t, c.IsTyping("support", "alice"))
}

package core

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerTableScheduleReplaces(t *testing.T) {
	tt := NewTimerTable[string]()
	defer tt.CancelAll()

	var fired atomic.Int32

	tt.Schedule("k", 20*time.Millisecond, func() { fired.Add(1) })
	tt.Schedule("k", 20*time.Millisecond, func() { fired.Add(1) })
	tt.Schedule("k", 20*time.Millisecond, func() { fired.Add(1) })

	require.Eventually(t, func() bool {
		return fired.Load() == 1
	}, time.Second, 5*time.Millisecond)

	// give the replaced timers a chance to misfire
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
	assert.Equal(t, 0, tt.Len())
}

func TestTimerTableCancel(t *testing.T) {
	tt := NewTimerTable[string]()
	defer tt.CancelAll()

	var fired atomic.Int32
	tt.Schedule("k", 20*time.Millisecond, func() { fired.Add(1) })

	assert.True(t, tt.Cancel("k"))
	assert.False(t, tt.Cancel("k"), "nothing pending")

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, fired.Load())
}

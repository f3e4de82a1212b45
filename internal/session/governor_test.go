package session

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGovernorTicks(t *testing.T) {
	gov := NewGovernor(2 * time.Millisecond)

	var ticks int32
	gov.Start(func() { atomic.AddInt32(&ticks, 1) })
	defer gov.Stop()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&ticks) >= 3
	}, time.Second, time.Millisecond)
	assert.True(t, gov.Running())
}

func TestGovernorStopIsIdempotent(t *testing.T) {
	gov := NewGovernor(time.Millisecond)

	// Safe with no tick active.
	gov.Stop()
	gov.Stop()

	gov.Start(func() {})
	gov.Stop()
	gov.Stop()
	assert.False(t, gov.Running())
}

func TestGovernorStopCancelsTicks(t *testing.T) {
	gov := NewGovernor(time.Millisecond)

	var ticks int32
	gov.Start(func() { atomic.AddInt32(&ticks, 1) })

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&ticks) >= 1
	}, time.Second, time.Millisecond)

	gov.Stop()
	settled := atomic.LoadInt32(&ticks)
	time.Sleep(20 * time.Millisecond)
	assert.LessOrEqual(t, atomic.LoadInt32(&ticks), settled+1, "at most one in-flight tick after stop")
}

func TestGovernorDoubleStartIsNoOp(t *testing.T) {
	gov := NewGovernor(time.Millisecond)

	var first, second int32
	gov.Start(func() { atomic.AddInt32(&first, 1) })
	gov.Start(func() { atomic.AddInt32(&second, 1) })
	defer gov.Stop()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&first) >= 2
	}, time.Second, time.Millisecond)
	assert.Zero(t, atomic.LoadInt32(&second), "second start must not spawn a second ticker")
}

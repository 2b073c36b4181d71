package attempt

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// Timer tests run against a millisecond-scale tick so they complete quickly;
// one "second" of attempt time is one tick interval.
const testTick = 5 * time.Millisecond

func TestCountdownTimer_ExpiresExactlyOnce(t *testing.T) {
	timer := newCountdownTimerWithInterval(testTick)

	var ticks, expiries int32
	timer.Start(3,
		func(remaining int) { atomic.AddInt32(&ticks, 1) },
		func() { atomic.AddInt32(&expiries, 1) },
	)

	// Wait well past the deadline; skipped ticks must not replay expiry.
	time.Sleep(20 * testTick)

	assert.Equal(t, int32(1), atomic.LoadInt32(&expiries))
	assert.LessOrEqual(t, atomic.LoadInt32(&ticks), int32(3))
}

func TestCountdownTimer_TickReportsDecreasingRemaining(t *testing.T) {
	timer := newCountdownTimerWithInterval(testTick)

	var lastSeen int32
	timer.Start(5,
		func(remaining int) {
			last := atomic.LoadInt32(&lastSeen)
			if last != 0 {
				assert.LessOrEqual(t, int32(remaining), last)
			}
			atomic.StoreInt32(&lastSeen, int32(remaining))
		},
		func() {},
	)

	time.Sleep(10 * testTick)
	timer.Stop()
}

func TestCountdownTimer_StopPreventsFurtherCallbacks(t *testing.T) {
	timer := newCountdownTimerWithInterval(testTick)

	var ticks, expiries int32
	timer.Start(100,
		func(remaining int) { atomic.AddInt32(&ticks, 1) },
		func() { atomic.AddInt32(&expiries, 1) },
	)

	time.Sleep(3 * testTick)
	timer.Stop()
	observed := atomic.LoadInt32(&ticks)

	time.Sleep(5 * testTick)
	assert.Equal(t, observed, atomic.LoadInt32(&ticks))
	assert.Equal(t, int32(0), atomic.LoadInt32(&expiries))
}

func TestCountdownTimer_StopIsIdempotent(t *testing.T) {
	timer := newCountdownTimerWithInterval(testTick)
	timer.Start(100, func(int) {}, func() {})

	timer.Stop()
	timer.Stop()
}

func TestCountdownTimer_StopFromWithinExpiry(t *testing.T) {
	timer := newCountdownTimerWithInterval(testTick)

	fired := make(chan struct{})
	timer.Start(1,
		func(int) {},
		func() {
			// The submission path stops the timer it is running inside of;
			// this must not deadlock.
			timer.Stop()
			close(fired)
		},
	)

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("expiry callback did not complete")
	}
}

func TestCountdownTimer_RemainingNeverNegative(t *testing.T) {
	timer := newCountdownTimerWithInterval(testTick)
	assert.Equal(t, 0, timer.Remaining())

	timer.Start(2, func(int) {}, func() {})
	time.Sleep(10 * testTick)
	assert.Equal(t, 0, timer.Remaining())
}

func TestCountdownTimer_StartIsOneShot(t *testing.T) {
	timer := newCountdownTimerWithInterval(testTick)

	var first, second int32
	timer.Start(2, func(int) { atomic.AddInt32(&first, 1) }, func() {})
	timer.Start(100, func(int) { atomic.AddInt32(&second, 1) }, func() {})

	time.Sleep(5 * testTick)
	timer.Stop()
	assert.Equal(t, int32(0), atomic.LoadInt32(&second))
}

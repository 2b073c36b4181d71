package attempt

import (
	"sync"
	"time"
)

// CountdownTimer is a pure scheduling primitive: a repeating one-second
// tick that counts down to a deadline and fires an expiry callback exactly
// once. It never touches persistence and has no error channel.
//
// Remaining time is derived from the wall-clock deadline rather than by
// decrementing a counter, so a suspended and late-resumed process observes
// remaining <= 0 and fires expiry once instead of replaying skipped ticks.
type CountdownTimer struct {
	mu       sync.Mutex
	interval time.Duration
	deadline time.Time
	started  bool
	stopped  bool
	quit     chan struct{}
	done     chan struct{}
}

func NewCountdownTimer() *CountdownTimer {
	return &CountdownTimer{interval: time.Second}
}

// newCountdownTimerWithInterval is used by tests to simulate fast clocks.
func newCountdownTimerWithInterval(interval time.Duration) *CountdownTimer {
	return &CountdownTimer{interval: interval}
}

// Start begins ticking. Each tick invokes onTick with the remaining whole
// seconds; when the deadline passes, onExpire is invoked at most once and
// ticking stops. Start is one-shot per timer.
func (t *CountdownTimer) Start(initialSeconds int, onTick func(remaining int), onExpire func()) {
	t.mu.Lock()
	if t.started || t.stopped {
		t.mu.Unlock()
		return
	}
	t.started = true
	t.deadline = time.Now().Add(time.Duration(initialSeconds) * t.interval)
	t.quit = make(chan struct{})
	t.done = make(chan struct{})
	t.mu.Unlock()

	go t.run(onTick, onExpire)
}

func (t *CountdownTimer) run(onTick func(remaining int), onExpire func()) {
	defer close(t.done)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.quit:
			return
		case <-ticker.C:
			t.mu.Lock()
			if t.stopped {
				t.mu.Unlock()
				return
			}
			remaining := t.remainingLocked()
			expired := remaining <= 0
			if expired {
				// Mark stopped before the callback so a re-entrant
				// Stop from within onExpire is a no-op rather than a
				// deadlock waiting on our own exit.
				t.stopped = true
			}
			t.mu.Unlock()

			if expired {
				onExpire()
				return
			}
			onTick(remaining)
		}
	}
}

// Stop cancels the timer. After Stop returns no further onTick call will be
// made; an expiry racing the exact moment of Stop is serialized by the
// caller's status guard. Stop is idempotent and safe to call from within
// the expiry callback.
func (t *CountdownTimer) Stop() {
	t.mu.Lock()
	if !t.started || t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	close(t.quit)
	done := t.done
	t.mu.Unlock()

	<-done
}

// Remaining returns the whole seconds left, never negative. Zero before
// Start.
func (t *CountdownTimer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.started {
		return 0
	}
	r := t.remainingLocked()
	if r < 0 {
		return 0
	}
	return r
}

// remainingLocked counts whole tick units to the deadline, rounded to the
// nearest unit. The unit is one second except under test clocks.
func (t *CountdownTimer) remainingLocked() int {
	until := time.Until(t.deadline)
	if until <= 0 {
		return 0
	}
	return int((until + t.interval/2) / t.interval)
}

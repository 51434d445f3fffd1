// Package clock abstracts time reads and one-shot delays so the scheduler
// can be driven with virtual time in tests.
package clock

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Clock is the capability the rest of the system depends on. Production
// code wraps a real wall/monotonic clock; tests drive a FakeClock instead.
type Clock interface {
	// Now returns the current time as seconds since the Unix epoch.
	Now() float64

	// After arms a one-shot callback to run delaySeconds from now. A
	// delay <= 0 still executes at the next scheduling opportunity, never
	// inline with the caller. The returned handle cancels the callback.
	After(delaySeconds float64, callback func()) TimerHandle

	// Sleep blocks the calling goroutine until delaySeconds have passed,
	// used by the throttle between a probe's requests. Unlike After, this
	// is synchronous: the real clock sleeps on the wall clock; the fake
	// clock advances virtual time in place.
	Sleep(delaySeconds float64)
}

// TimerHandle controls a single armed callback. Cancel is idempotent and
// safe to call after the callback has already run.
type TimerHandle interface {
	Cancel()
}

// real wraps github.com/benbjohnson/clock for production use. Using a real
// ecosystem clock abstraction (rather than calling time.Now/time.AfterFunc
// directly) keeps the Scheduler's only time dependency swappable without a
// hand-rolled production implementation.
type real struct {
	underlying clock.Clock
}

// New returns the production Clock, backed by the OS clock.
func New() Clock {
	return &real{underlying: clock.New()}
}

func (r *real) Now() float64 {
	return float64(r.underlying.Now().UnixNano()) / float64(time.Second)
}

func (r *real) After(delaySeconds float64, callback func()) TimerHandle {
	if delaySeconds < 0 {
		delaySeconds = 0
	}
	d := time.Duration(delaySeconds * float64(time.Second))
	t := r.underlying.AfterFunc(d, callback)
	return &realTimerHandle{timer: t}
}

func (r *real) Sleep(delaySeconds float64) {
	if delaySeconds <= 0 {
		return
	}
	r.underlying.Sleep(time.Duration(delaySeconds * float64(time.Second)))
}

type realTimerHandle struct {
	mu      sync.Mutex
	timer   *clock.Timer
	stopped bool
}

func (h *realTimerHandle) Cancel() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return
	}
	h.stopped = true
	h.timer.Stop()
}

package clock

import "sync"

// FakeClock is a deterministic, manually-driven Clock for tests. Time only
// moves when Tick is called; due callbacks fire synchronously, in the order
// they were armed (ties on fireAt broken by registration order). A callback
// that arms a new timer becomes visible only on a subsequent Tick call, even
// if armed with a non-positive delay.
type FakeClock struct {
	mu      sync.Mutex
	now     float64
	seq     uint64
	pending map[uint64]*fakeTimer
}

type fakeTimer struct {
	seq       uint64
	fireAt    float64
	callback  func()
	cancelled bool
}

// NewFake creates a FakeClock starting at the given epoch seconds.
func NewFake(startSeconds float64) *FakeClock {
	return &FakeClock{
		now:     startSeconds,
		pending: make(map[uint64]*fakeTimer),
	}
}

// Now returns the current virtual time.
func (f *FakeClock) Now() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// After arms callback to run delaySeconds of virtual time from now. A
// non-positive delay still requires a Tick call to fire.
func (f *FakeClock) After(delaySeconds float64, callback func()) TimerHandle {
	f.mu.Lock()
	defer f.mu.Unlock()

	if delaySeconds < 0 {
		delaySeconds = 0
	}
	f.seq++
	t := &fakeTimer{
		seq:      f.seq,
		fireAt:   f.now + delaySeconds,
		callback: callback,
	}
	f.pending[t.seq] = t
	return &fakeTimerHandle{clock: f, seq: t.seq}
}

// Tick advances virtual time by delta seconds and fires, synchronously and
// in armed order, every timer due at or before the new time. Timers armed
// by a fired callback are not considered until the next Tick call.
func (f *FakeClock) Tick(delta float64) {
	f.mu.Lock()
	f.now += delta
	due := f.dueLocked()
	f.mu.Unlock()

	for _, t := range due {
		t.callback()
	}
}

// Sleep advances virtual time by delaySeconds in place and fires any
// timer that becomes due, so a probe's throttle delay consumes virtual
// time synchronously rather than waiting for an external Tick call.
func (f *FakeClock) Sleep(delaySeconds float64) {
	if delaySeconds <= 0 {
		return
	}
	f.Tick(delaySeconds)
}

// dueLocked snapshots and removes timers due at or before the current time,
// in (fireAt, seq) order. Callers must hold f.mu.
func (f *FakeClock) dueLocked() []*fakeTimer {
	var due []*fakeTimer
	for seq, t := range f.pending {
		if !t.cancelled && t.fireAt <= f.now {
			due = append(due, t)
			delete(f.pending, seq)
		}
	}
	for i := 1; i < len(due); i++ {
		j := i
		for j > 0 && less(due[j], due[j-1]) {
			due[j], due[j-1] = due[j-1], due[j]
			j--
		}
	}
	return due
}

func less(a, b *fakeTimer) bool {
	if a.fireAt != b.fireAt {
		return a.fireAt < b.fireAt
	}
	return a.seq < b.seq
}

// PendingCount reports the number of armed, uncancelled timers. Test helper.
func (f *FakeClock) PendingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.pending {
		if !t.cancelled {
			n++
		}
	}
	return n
}

type fakeTimerHandle struct {
	clock *FakeClock
	seq   uint64
}

func (h *fakeTimerHandle) Cancel() {
	h.clock.mu.Lock()
	defer h.clock.mu.Unlock()
	if t, ok := h.clock.pending[h.seq]; ok {
		t.cancelled = true
		delete(h.clock.pending, h.seq)
	}
}

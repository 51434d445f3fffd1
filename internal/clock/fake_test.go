package clock_test

import (
	"testing"

	"github.com/skurt/geofence-monitor/internal/clock"
)

func TestFakeClock_FiresInArmedOrder(t *testing.T) {
	c := clock.NewFake(1000)
	var order []string

	c.After(5, func() { order = append(order, "a") })
	c.After(5, func() { order = append(order, "b") })
	c.After(10, func() { order = append(order, "c") })

	c.Tick(5)
	if got, want := order, []string{"a", "b"}; !equal(got, want) {
		t.Fatalf("order after first tick = %v, want %v", got, want)
	}

	c.Tick(5)
	if got, want := order, []string{"a", "b", "c"}; !equal(got, want) {
		t.Fatalf("order after second tick = %v, want %v", got, want)
	}
}

func TestFakeClock_CancelPreventsFiring(t *testing.T) {
	c := clock.NewFake(0)
	fired := false
	h := c.After(1, func() { fired = true })
	h.Cancel()
	c.Tick(10)
	if fired {
		t.Fatal("cancelled timer fired")
	}
}

func TestFakeClock_CancelIdempotent(t *testing.T) {
	c := clock.NewFake(0)
	h := c.After(1, func() {})
	h.Cancel()
	h.Cancel() // must not panic
}

func TestFakeClock_RearmDuringCallbackIsNotInlined(t *testing.T) {
	c := clock.NewFake(0)
	rearmed := false
	var second func()
	second = func() { rearmed = true }

	c.After(1, func() {
		// Arm with a non-positive delay; must not fire within this Tick.
		c.After(-5, second)
	})

	c.Tick(1)
	if rearmed {
		t.Fatal("timer armed during a callback fired within the same Tick call")
	}

	c.Tick(0)
	if !rearmed {
		t.Fatal("timer armed during a callback did not fire on the next Tick call")
	}
}

func TestFakeClock_NonPositiveDelayRequiresTick(t *testing.T) {
	c := clock.NewFake(0)
	fired := false
	c.After(0, func() { fired = true })
	if fired {
		t.Fatal("zero-delay timer fired before any Tick call")
	}
	c.Tick(0)
	if !fired {
		t.Fatal("zero-delay timer did not fire on Tick(0)")
	}
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

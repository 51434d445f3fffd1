// Package scheduler implements the monitoring core: the alive flag, the
// poll/silence timers, and the single-threaded cycle algorithm that drives
// every registered probe. All time reads and delays go through the
// clock.Clock abstraction so tests can drive virtual time.
package scheduler

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/skurt/geofence-monitor/internal/alertbus"
	"github.com/skurt/geofence-monitor/internal/clock"
	"github.com/skurt/geofence-monitor/internal/logging"
	"github.com/skurt/geofence-monitor/internal/metrics"
)

// ErrAlreadyStarted is returned by Register once Start has latched the
// registry.
var ErrAlreadyStarted = errors.New("scheduler: already started")

// ErrNoProbes is the fatal condition of a cycle begun with an empty
// registry. The scheduler logs it once and stops arming further cycles
// rather than looping silently.
var ErrNoProbes = errors.New("scheduler: no probes registered")

// startupDelaySeconds is the fixed delay Start() arms the first cycle
// with, covering any boot race with the ControlSurface.
const startupDelaySeconds = 1.0

// Probe is one unit of monitoring work, registered by name so the
// exception bridge can name the offending probe in its alert.
type Probe struct {
	Name string
	Run  func() error
}

// Scheduler owns all mutable monitoring state. It is constructed once by
// main and shared by the ControlSurface; there is no package-level state.
type Scheduler struct {
	mu sync.Mutex

	clk      clock.Clock
	alertBus *alertbus.AlertBus
	logger   logging.Logger
	metrics  *metrics.Metrics

	monitorName string
	pollPeriod  float64
	minPad      float64

	alive        bool
	started      bool
	pollTimer    clock.TimerHandle
	silenceTimer clock.TimerHandle
	registry     []Probe

	// OnFatal is invoked (outside the scheduler's mutex) when a cycle
	// begins with an empty registry. main wires this to an error log; the
	// scheduler itself arms no further cycle. Tests may leave it nil.
	OnFatal func(err error)
}

// New builds a Scheduler in its pre-start state (alive=false, empty
// registry). pollPeriod and minPad arrive already validated
// (0 <= minPad < pollPeriod) by internal/config.
func New(clk clock.Clock, bus *alertbus.AlertBus, logger logging.Logger, m *metrics.Metrics, monitorName string, pollPeriod, minPad float64) *Scheduler {
	return &Scheduler{
		clk:         clk,
		alertBus:    bus,
		logger:      logger,
		metrics:     m,
		monitorName: monitorName,
		pollPeriod:  pollPeriod,
		minPad:      minPad,
	}
}

// Register appends probe to the registry. Probes run in registration
// order; calling Register after Start returns ErrAlreadyStarted.
func (s *Scheduler) Register(p Probe) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}
	s.registry = append(s.registry, p)
	return nil
}

// Start latches the registry, marks the scheduler alive, and arms the
// initial cycle startupDelaySeconds from now. Non-blocking.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
	s.alive = true
	s.setAliveGaugeLocked()
	s.pollTimer = s.clk.After(startupDelaySeconds, s.cycle)
}

// Silence cancels any previous silence timer, marks the scheduler silenced,
// and arms a new auto-unsilence timer for durationSeconds from now. A zero
// duration is accepted and still resets any previously armed timer rather
// than extending it.
func (s *Scheduler) Silence(durationSeconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.silenceTimer != nil {
		s.silenceTimer.Cancel()
	}
	s.alive = false
	s.setAliveGaugeLocked()
	s.silenceTimer = s.clk.After(durationSeconds, s.onSilenceExpire)
}

// onSilenceExpire is the silence timer callback: it transitions back to
// Alive and immediately runs a cycle.
func (s *Scheduler) onSilenceExpire() {
	s.mu.Lock()
	s.silenceTimer = nil
	s.cancelStalePollTimerLocked()
	s.alive = true
	s.setAliveGaugeLocked()
	s.mu.Unlock()
	s.logger.Info("unsilenced", "monitor", s.monitorName)
	s.cycle()
}

// Unsilence returns false with no side effect if already alive. Otherwise
// it cancels the silence timer, marks the scheduler alive, synchronously
// triggers one immediate cycle, and returns true.
func (s *Scheduler) Unsilence() bool {
	s.mu.Lock()
	if s.alive {
		s.mu.Unlock()
		return false
	}
	if s.silenceTimer != nil {
		s.silenceTimer.Cancel()
		s.silenceTimer = nil
	}
	s.cancelStalePollTimerLocked()
	s.alive = true
	s.setAliveGaugeLocked()
	s.mu.Unlock()

	s.logger.Info("unsilenced", "monitor", s.monitorName)
	s.cycle()
	return true
}

// cancelStalePollTimerLocked drops any poll timer armed before the silence
// began. The immediate cycle that follows an unsilence arms its own next
// tick; letting the stale timer live would start a second polling chain.
func (s *Scheduler) cancelStalePollTimerLocked() {
	if s.pollTimer != nil {
		s.pollTimer.Cancel()
		s.pollTimer = nil
	}
}

// Reset cancels all timers, clears the registry, and leaves the scheduler
// silenced with an empty registry. Test hook.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pollTimer != nil {
		s.pollTimer.Cancel()
		s.pollTimer = nil
	}
	if s.silenceTimer != nil {
		s.silenceTimer.Cancel()
		s.silenceTimer = nil
	}
	s.registry = nil
	s.alive = false
	s.started = false
	s.setAliveGaugeLocked()
}

// Alive reports whether the scheduler is currently running cycles.
func (s *Scheduler) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alive
}

func (s *Scheduler) setAliveGaugeLocked() {
	if s.metrics == nil {
		return
	}
	if s.alive {
		s.metrics.Alive.Set(1)
	} else {
		s.metrics.Alive.Set(0)
	}
}

// cycle runs every registered probe once, measures the elapsed wall time
// against the poll period, self-alerts on overrun or near-overrun, and
// arms the next tick. It is always invoked outside s.mu (as a timer
// callback or a direct call from Unsilence/onSilenceExpire) and takes the
// lock only for the brief state reads/writes it needs.
func (s *Scheduler) cycle() {
	s.mu.Lock()
	if !s.alive {
		s.mu.Unlock()
		return
	}
	registry := s.registry
	s.mu.Unlock()

	t0 := s.clk.Now()

	if len(registry) == 0 {
		s.logger.Error("no probes registered; cycle cannot run", "monitor", s.monitorName)
		if s.OnFatal != nil {
			s.OnFatal(ErrNoProbes)
		}
		return
	}

	for i, p := range registry {
		s.runProbe(i, p)
	}

	s.mu.Lock()
	stillAlive := s.alive
	s.mu.Unlock()
	if !stillAlive {
		// A probe triggered silence (e.g. via the ControlSurface racing in
		// on another goroutine); return without arming a next tick.
		return
	}

	t1 := s.clk.Now()
	elapsed := t1 - t0
	slack := s.pollPeriod - elapsed

	if s.metrics != nil {
		s.metrics.CyclesTotal.Inc()
		s.metrics.LastCycleDuration.Set(elapsed)
	}

	switch {
	case slack < 0:
		overrun := -slack
		s.logger.Error("cycle overran poll period", "overrun_s", overrun, "poll_period_s", s.pollPeriod)
		if s.metrics != nil {
			s.metrics.OverrunsTotal.Inc()
		}
		s.alertBus.Alert(s.monitorName+" is overrunning", "monitor_overrunning", map[string]any{
			"overrun_s":     fmt.Sprintf("%.1f", overrun),
			"poll_period_s": fmt.Sprintf("%.1f", s.pollPeriod),
		})
	case slack <= s.minPad:
		s.logger.Warn("cycle is near overrun", "poll_delay_s", slack, "poll_period_s", s.pollPeriod)
		if s.metrics != nil {
			s.metrics.NearOverrunsTotal.Inc()
		}
		s.alertBus.Alert(s.monitorName+" is in danger of overrunning", "monitor_in_danger_of_overrunning", map[string]any{
			"poll_delay_s":  fmt.Sprintf("%.1f", slack),
			"poll_period_s": fmt.Sprintf("%.1f", s.pollPeriod),
		})
	default:
		// Healthy: no alert.
	}

	next := slack
	if next < 0 {
		next = 0
	}

	s.mu.Lock()
	s.pollTimer = s.clk.After(next, s.cycle)
	s.mu.Unlock()
}

// runProbe invokes one probe, converting both a panic and a returned error
// into a monitor_exception alert without letting either stop the cycle.
func (s *Scheduler) runProbe(index int, p Probe) {
	defer func() {
		if r := recover(); r != nil {
			stack := string(debug.Stack())
			s.logger.Error("probe panicked", "probe", p.Name, "index", index, "panic", r)
			s.alertBus.Alert(p.Name+" encountered an exception", "monitor_exception", map[string]any{
				"traceback": fmt.Sprintf("%v\n%s", r, stack),
			})
		}
	}()

	if err := p.Run(); err != nil {
		stack := string(debug.Stack())
		s.logger.Error("probe returned error", "probe", p.Name, "index", index, "error", err)
		s.alertBus.Alert(p.Name+" encountered an exception", "monitor_exception", map[string]any{
			"traceback": fmt.Sprintf("%v\n%s", err, stack),
		})
	}
}

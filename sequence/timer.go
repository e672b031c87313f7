package sequence

import (
	"time"

	"github.com/cadencerobotics/motioncore/scheduler"
)

// Timer arms a deadline that fires a bound Signal when it elapses. It is not
// interrupt-driven: while armed it registers itself for the post-periodic
// phase and checks the cycle timestamp, so it fires at most once per arm and
// never earlier than the requested duration.
type Timer struct {
	name  string
	sched *scheduler.Scheduler

	armed      bool
	expiration time.Time
	sig        *Signal
}

// NewTimer returns a disarmed timer driven by the given scheduler's cycles.
func NewTimer(name string, sched *scheduler.Scheduler) *Timer {
	return &Timer{name: name, sched: sched}
}

// Name implements scheduler.Task.
func (t *Timer) Name() string {
	return t.name
}

// Set arms the timer to fire sig after d. The signal is cleared so it can
// gate a fresh wait. Rearming before expiration replaces the previous
// deadline and cancels the pending signal obligation.
func (t *Timer) Set(d time.Duration, sig *Signal) {
	sig.Clear()
	t.sig = sig
	t.expiration = t.sched.Clock().Now().Add(d)
	if !t.armed {
		t.armed = true
		t.sched.Register(scheduler.PhasePostPeriodic, t)
	}
}

// Cancel disarms the timer without signaling.
func (t *Timer) Cancel() {
	if !t.armed {
		return
	}
	t.disarm()
}

// Armed reports whether a deadline is outstanding.
func (t *Timer) Armed() bool {
	return t.armed
}

// ExpiresAt returns the absolute deadline; meaningful only while armed.
func (t *Timer) ExpiresAt() time.Time {
	return t.expiration
}

// Run implements scheduler.Task. On the first cycle at or past the deadline
// it sets the bound signal and disarms.
func (t *Timer) Run(phase scheduler.Phase, mode scheduler.RunMode, now time.Time) error {
	if phase != scheduler.PhasePostPeriodic || !t.armed {
		return nil
	}
	if now.Before(t.expiration) {
		return nil
	}
	sig := t.sig
	t.disarm()
	sig.Set(nil)
	return nil
}

func (t *Timer) disarm() {
	t.armed = false
	t.sig = nil
	t.sched.Unregister(scheduler.PhasePostPeriodic, t)
}

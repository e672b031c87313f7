package sequence

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"go.viam.com/test"

	"github.com/cadencerobotics/motioncore/scheduler"
)

func timerHarness(t *testing.T) (*clock.Mock, *scheduler.Scheduler) {
	t.Helper()
	mock := clock.NewMock()
	return mock, scheduler.New(mock, golog.NewTestLogger(t))
}

func runCycle(t *testing.T, sched *scheduler.Scheduler) {
	t.Helper()
	test.That(t, sched.RunPhase(scheduler.PhasePostPeriodic, scheduler.ModeAutonomous), test.ShouldBeNil)
}

func TestTimerFiresOnceNoEarlier(t *testing.T) {
	mock, sched := timerHarness(t)
	sig := NewSignal("tick")
	tmr := NewTimer("delay", sched)

	tmr.Set(100*time.Millisecond, sig)
	test.That(t, tmr.Armed(), test.ShouldBeTrue)

	runCycle(t, sched)
	test.That(t, sig.Signaled(), test.ShouldBeFalse)

	mock.Add(99 * time.Millisecond)
	runCycle(t, sched)
	test.That(t, sig.Signaled(), test.ShouldBeFalse)

	mock.Add(1 * time.Millisecond)
	runCycle(t, sched)
	test.That(t, sig.Signaled(), test.ShouldBeTrue)
	test.That(t, tmr.Armed(), test.ShouldBeFalse)

	// firing unregisters the timer; clearing the signal must not rearm it
	sig.Clear()
	mock.Add(time.Second)
	runCycle(t, sched)
	test.That(t, sig.Signaled(), test.ShouldBeFalse)
}

func TestTimerRearmReplacesDeadline(t *testing.T) {
	mock, sched := timerHarness(t)
	sig := NewSignal("tick")
	tmr := NewTimer("delay", sched)

	tmr.Set(50*time.Millisecond, sig)
	mock.Add(30 * time.Millisecond)
	tmr.Set(100*time.Millisecond, sig)

	// the original deadline passes without firing
	mock.Add(30 * time.Millisecond)
	runCycle(t, sched)
	test.That(t, sig.Signaled(), test.ShouldBeFalse)

	mock.Add(70 * time.Millisecond)
	runCycle(t, sched)
	test.That(t, sig.Signaled(), test.ShouldBeTrue)
}

func TestTimerSetClearsSignal(t *testing.T) {
	_, sched := timerHarness(t)
	sig := NewSignal("tick")
	sig.Set(nil)
	tmr := NewTimer("delay", sched)

	tmr.Set(time.Second, sig)
	test.That(t, sig.Signaled(), test.ShouldBeFalse)
}

func TestTimerCancel(t *testing.T) {
	mock, sched := timerHarness(t)
	sig := NewSignal("tick")
	tmr := NewTimer("delay", sched)

	tmr.Set(50*time.Millisecond, sig)
	tmr.Cancel()
	test.That(t, tmr.Armed(), test.ShouldBeFalse)

	mock.Add(time.Second)
	runCycle(t, sched)
	test.That(t, sig.Signaled(), test.ShouldBeFalse)

	// canceling a disarmed timer is fine
	tmr.Cancel()
}

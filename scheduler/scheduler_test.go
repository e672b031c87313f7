package scheduler

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.viam.com/test"
)

type recordingTask struct {
	name  string
	log   *[]string
	times *[]time.Time
	err   error
	onRun func()
}

func (t *recordingTask) Name() string { return t.name }

func (t *recordingTask) Run(phase Phase, mode RunMode, now time.Time) error {
	if t.log != nil {
		*t.log = append(*t.log, t.name)
	}
	if t.times != nil {
		*t.times = append(*t.times, now)
	}
	if t.onRun != nil {
		t.onRun()
	}
	return t.err
}

func TestRegistrationOrder(t *testing.T) {
	s := New(clock.NewMock(), golog.NewTestLogger(t))

	var log []string
	a := &recordingTask{name: "a", log: &log}
	b := &recordingTask{name: "b", log: &log}
	c := &recordingTask{name: "c", log: &log}

	s.Register(PhasePostContinuous, b)
	s.Register(PhasePostContinuous, a)
	s.Register(PhasePostContinuous, c)

	test.That(t, s.RunPhase(PhasePostContinuous, ModeTeleop), test.ShouldBeNil)
	test.That(t, log, test.ShouldResemble, []string{"b", "a", "c"})
}

func TestRegisterIdempotent(t *testing.T) {
	s := New(clock.NewMock(), golog.NewTestLogger(t))

	var log []string
	a := &recordingTask{name: "a", log: &log}
	s.Register(PhasePostPeriodic, a)
	s.Register(PhasePostPeriodic, a)
	s.Register(PhasePostPeriodic, a)

	test.That(t, s.RunPhase(PhasePostPeriodic, ModeTeleop), test.ShouldBeNil)
	test.That(t, log, test.ShouldResemble, []string{"a"})
}

func TestUnregister(t *testing.T) {
	s := New(clock.NewMock(), golog.NewTestLogger(t))

	var log []string
	a := &recordingTask{name: "a", log: &log}
	b := &recordingTask{name: "b", log: &log}

	// unregistering something never registered is a no-op
	s.Unregister(PhasePostContinuous, a)

	s.Register(PhasePostContinuous, a)
	s.Register(PhasePostContinuous, b)
	s.Unregister(PhasePostContinuous, a)

	test.That(t, s.Registered(PhasePostContinuous, a), test.ShouldBeFalse)
	test.That(t, s.Registered(PhasePostContinuous, b), test.ShouldBeTrue)
	test.That(t, s.RunPhase(PhasePostContinuous, ModeTeleop), test.ShouldBeNil)
	test.That(t, log, test.ShouldResemble, []string{"b"})
}

func TestPhasesAreIndependent(t *testing.T) {
	s := New(clock.NewMock(), golog.NewTestLogger(t))

	var log []string
	a := &recordingTask{name: "a", log: &log}
	s.Register(PhaseStop, a)

	test.That(t, s.RunPhase(PhasePostContinuous, ModeTeleop), test.ShouldBeNil)
	test.That(t, log, test.ShouldHaveLength, 0)
	test.That(t, s.RunPhase(PhaseStop, ModeTeleop), test.ShouldBeNil)
	test.That(t, log, test.ShouldResemble, []string{"a"})
}

func TestCycleTimestampReadOnce(t *testing.T) {
	mock := clock.NewMock()
	s := New(mock, golog.NewTestLogger(t))

	var times []time.Time
	a := &recordingTask{name: "a", times: &times}
	b := &recordingTask{name: "b", times: &times, onRun: func() {
		// even if a task burns time, later tasks see the same stamp
		mock.Add(5 * time.Millisecond)
	}}
	c := &recordingTask{name: "c", times: &times}
	s.Register(PhasePostContinuous, a)
	s.Register(PhasePostContinuous, b)
	s.Register(PhasePostContinuous, c)

	mock.Add(20 * time.Millisecond)
	test.That(t, s.RunPhase(PhasePostContinuous, ModeTeleop), test.ShouldBeNil)
	test.That(t, times, test.ShouldHaveLength, 3)
	test.That(t, times[0], test.ShouldEqual, times[1])
	test.That(t, times[1], test.ShouldEqual, times[2])
}

func TestTaskErrorsDoNotAbortPhase(t *testing.T) {
	s := New(clock.NewMock(), golog.NewTestLogger(t))

	var log []string
	a := &recordingTask{name: "a", log: &log, err: errors.New("boom")}
	b := &recordingTask{name: "b", log: &log}
	s.Register(PhasePostContinuous, a)
	s.Register(PhasePostContinuous, b)

	err := s.RunPhase(PhasePostContinuous, ModeAutonomous)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, log, test.ShouldResemble, []string{"a", "b"})
}

func TestSelfUnregisterDuringPhase(t *testing.T) {
	s := New(clock.NewMock(), golog.NewTestLogger(t))

	var log []string
	a := &recordingTask{name: "a", log: &log}
	b := &recordingTask{name: "b", log: &log}
	a.onRun = func() { s.Unregister(PhasePostContinuous, a) }
	s.Register(PhasePostContinuous, a)
	s.Register(PhasePostContinuous, b)

	test.That(t, s.RunPhase(PhasePostContinuous, ModeTeleop), test.ShouldBeNil)
	test.That(t, log, test.ShouldResemble, []string{"a", "b"})
	test.That(t, s.Registered(PhasePostContinuous, a), test.ShouldBeFalse)

	log = nil
	test.That(t, s.RunPhase(PhasePostContinuous, ModeTeleop), test.ShouldBeNil)
	test.That(t, log, test.ShouldResemble, []string{"b"})
}

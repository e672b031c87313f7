// Package scheduler implements the cooperative per-cycle task registry that
// drives every control component in the framework. An external loop (teleop,
// autonomous, or the simulator) calls RunPhase once per robot cycle for each
// phase; registered tasks run synchronously, in registration order, on the
// caller's goroutine.
package scheduler

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"go.uber.org/multierr"
)

// RunMode identifies which competition mode is driving the cycle.
type RunMode int

// Run modes supplied by the lifecycle shell that owns the cycle cadence.
const (
	ModeDisabled RunMode = iota
	ModeAutonomous
	ModeTeleop
	ModeTest
)

func (m RunMode) String() string {
	switch m {
	case ModeDisabled:
		return "disabled"
	case ModeAutonomous:
		return "autonomous"
	case ModeTeleop:
		return "teleop"
	case ModeTest:
		return "test"
	}
	return "unknown"
}

// Phase identifies a well-defined point of the execution cycle.
type Phase int

const (
	// PhaseStop runs once when the competition mode is ending.
	PhaseStop Phase = iota
	// PhasePostPeriodic runs once per cycle for high-level bookkeeping
	// (timers, telemetry).
	PhasePostPeriodic
	// PhasePostContinuous runs once per cycle for tight control loops.
	PhasePostContinuous
)

func (p Phase) String() string {
	switch p {
	case PhaseStop:
		return "stop"
	case PhasePostPeriodic:
		return "post-periodic"
	case PhasePostContinuous:
		return "post-continuous"
	}
	return "unknown"
}

// Task is a component invoked by the Scheduler. Run is called once per cycle
// for each phase the task is registered in, with the cycle timestamp read
// exactly once at the start of the phase.
//
// A task may unregister itself from inside Run (the usual way an operation
// completes); any other mutation of the registry during a running phase is
// undefined and must be avoided by callers.
type Task interface {
	Name() string
	Run(phase Phase, mode RunMode, now time.Time) error
}

// Scheduler owns per-phase ordered task lists and the cycle clock. It is not
// safe for concurrent use; registration and RunPhase must happen on the same
// goroutine.
type Scheduler struct {
	clk    clock.Clock
	logger golog.Logger
	tasks  map[Phase][]Task
}

// New returns a Scheduler using the given clock for cycle timestamps.
func New(clk clock.Clock, logger golog.Logger) *Scheduler {
	return &Scheduler{
		clk:    clk,
		logger: logger,
		tasks:  map[Phase][]Task{},
	}
}

// Clock returns the clock shared by every component on this scheduler.
func (s *Scheduler) Clock() clock.Clock {
	return s.clk
}

// Register adds a task to the given phase. Double registration is a no-op, so
// components can re-register on every operation start without churn.
func (s *Scheduler) Register(phase Phase, t Task) {
	for _, existing := range s.tasks[phase] {
		if existing == t {
			return
		}
	}
	s.tasks[phase] = append(s.tasks[phase], t)
	s.logger.Debugw("task registered", "task", t.Name(), "phase", phase.String())
}

// Unregister removes a task from the given phase. Removing a task that was
// never registered is a no-op.
func (s *Scheduler) Unregister(phase Phase, t Task) {
	list := s.tasks[phase]
	for i, existing := range list {
		if existing == t {
			s.tasks[phase] = append(list[:i], list[i+1:]...)
			s.logger.Debugw("task unregistered", "task", t.Name(), "phase", phase.String())
			return
		}
	}
}

// Registered reports whether the task is currently registered for the phase.
func (s *Scheduler) Registered(phase Phase, t Task) bool {
	for _, existing := range s.tasks[phase] {
		if existing == t {
			return true
		}
	}
	return false
}

// RunPhase invokes every task registered for the phase, in registration
// order, passing a cycle timestamp read once from the clock. Task errors are
// logged and aggregated but never abort the phase; a motion fault must not
// take down the control loop.
func (s *Scheduler) RunPhase(phase Phase, mode RunMode) error {
	now := s.clk.Now()
	var err error
	// iterate over a copy so a task that unregisters itself mid-phase
	// (e.g. an operation completing) cannot skip its neighbors.
	list := append([]Task(nil), s.tasks[phase]...)
	for _, t := range list {
		if runErr := t.Run(phase, mode, now); runErr != nil {
			s.logger.Errorw("task failed", "task", t.Name(), "phase", phase.String(), "error", runErr)
			err = multierr.Combine(err, runErr)
		}
	}
	return err
}

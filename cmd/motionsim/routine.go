package main

import (
	"time"

	"github.com/edaniels/golog"

	"github.com/cadencerobotics/motioncore/scheduler"
	"github.com/cadencerobotics/motioncore/sequence"
)

// Routine states. Numbering starts at the sequencer's initial sentinel.
const (
	stateCalibrate = sequence.StateStarted + iota
	stateSettle
	stateRaise
	stateNudge
	stateLower
	stateDone
)

// liftRoutine is a scripted behavior exercising the whole stack on one axis:
// home against the lower limit, pause, seek a raised position with a timeout
// guard, nudge upward under bounded drive, then return to zero. It mirrors
// how an autonomous script consumes the framework: one Periodic call per
// cycle, no blocking anywhere.
type liftRoutine struct {
	axis   *axis
	logger golog.Logger

	sm    *sequence.Sequencer
	done  *sequence.Signal
	timer *sequence.Timer
	tick  *sequence.Signal

	calibrating bool
}

func newLiftRoutine(a *axis, sched *scheduler.Scheduler, logger golog.Logger) *liftRoutine {
	return &liftRoutine{
		axis:   a,
		logger: logger,
		sm:     sequence.NewSequencer(a.cfg.Name+"-routine", sched.Clock()),
		done:   sequence.NewSignal(a.cfg.Name + "-done"),
		timer:  sequence.NewTimer(a.cfg.Name+"-timer", sched),
		tick:   sequence.NewSignal(a.cfg.Name + "-tick"),
	}
}

// Start resets the script to its first state.
func (r *liftRoutine) Start() {
	r.sm.Start()
}

// Running reports whether the script still wants cycles.
func (r *liftRoutine) Running() bool {
	return r.sm.Started()
}

// Periodic advances the script by at most one state per cycle.
func (r *liftRoutine) Periodic() {
	if !r.sm.IsReady() {
		return
	}

	lift := r.axis.controller
	state := r.sm.State()
	switch state {
	case stateCalibrate:
		// Calibration has no notify signal; poll until the controller
		// deactivates itself at the limit switch.
		if !r.calibrating {
			lift.Calibrate(r.axis.cfg.CalibrationPower)
			r.calibrating = true
		} else if !lift.IsActive() {
			r.logger.Infow("homed", "axis", r.axis.cfg.Name)
			r.sm.SetState(stateSettle)
		}
	case stateSettle:
		r.timer.Set(time.Second, r.tick)
		r.sm.WaitForSignals(stateRaise, 0, r.tick)
	case stateRaise:
		// Reached-target or timed-out, whichever is first; either way the
		// signal fires and the script moves on.
		lift.SeekTarget(r.axis.cfg.MaxPosition*0.8, false, r.done, 8*time.Second)
		r.sm.WaitForSignals(stateNudge, 0, r.done)
	case stateNudge:
		lift.DriveWithinLimits(0.3, r.axis.cfg.MinPosition, r.axis.cfg.MaxPosition, true)
		r.timer.Set(2*time.Second, r.tick)
		r.sm.WaitForSignals(stateLower, 0, r.tick)
	case stateLower:
		lift.DriveWithinLimits(0, r.axis.cfg.MinPosition, r.axis.cfg.MaxPosition, false)
		lift.SeekTarget(r.axis.cfg.MinPosition, false, r.done, 8*time.Second)
		r.sm.WaitForSignals(stateDone, 0, r.done)
	default:
		r.logger.Infow("routine complete", "axis", r.axis.cfg.Name,
			"position", lift.Position())
		lift.Cancel()
		r.sm.Stop()
	}
}

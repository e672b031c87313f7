// Package motion implements the supervised motion controller: a regulator
// plus one or two actuator ports composed into target-seek, bounded manual
// drive, and zero-calibration operations, with limit-switch gating, stall
// protection, and optional dual-actuator synchronization.
//
// A Controller registers itself with the scheduler while an operation is
// outstanding and performs its control step once per cycle in the
// post-continuous phase. All methods must be called from the same goroutine
// that runs the scheduler; there is no internal locking.
package motion

import (
	"math"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/cadencerobotics/motioncore/actuator"
	"github.com/cadencerobotics/motioncore/control"
	"github.com/cadencerobotics/motioncore/scheduler"
	"github.com/cadencerobotics/motioncore/sequence"
)

const (
	minOutput = -1.0
	maxOutput = 1.0
)

// Controller supervises closed-loop motion on a single axis.
type Controller struct {
	name      string
	logger    golog.Logger
	sched     *scheduler.Scheduler
	clk       clock.Clock
	primary   actuator.Port
	secondary actuator.Port
	reg       control.Regulator

	syncGain float64
	posScale float64

	active     bool
	holding    bool
	notify     *sequence.Signal
	deadline   time.Time
	power      float64
	calPower   float64
	prevTarget float64

	// stall protection
	stallMinPower float64
	stallTimeout  time.Duration
	resetTimeout  time.Duration
	stalled       bool
	prevPos       float64
	lastMoveTime  time.Time
}

var _ scheduler.Task = (*Controller)(nil)

// NewController builds a controller for one axis. secondary may be nil; a
// missing primary port or regulator is a configuration error and fatal to
// the instance.
func NewController(
	name string,
	sched *scheduler.Scheduler,
	primary, secondary actuator.Port,
	reg control.Regulator,
	logger golog.Logger,
) (*Controller, error) {
	if primary == nil {
		return nil, errors.Errorf("motion controller %s needs at least one actuator port", name)
	}
	if reg == nil {
		return nil, errors.Errorf("motion controller %s needs a regulator", name)
	}
	return &Controller{
		name:      name,
		logger:    logger,
		sched:     sched,
		clk:       sched.Clock(),
		primary:   primary,
		secondary: secondary,
		reg:       reg,
		posScale:  1,
	}, nil
}

// Name implements scheduler.Task.
func (c *Controller) Name() string {
	return c.name
}

// SetSyncGain sets the dual-actuator synchronization gain. Ignored unless
// two ports are bound; zero disables synchronization.
func (c *Controller) SetSyncGain(gain float64) {
	if c.secondary != nil {
		c.syncGain = gain
	}
}

// SetPositionScale converts raw sensor units to engineering units (e.g.
// encoder counts to inches) for targets and Position.
func (c *Controller) SetPositionScale(scale float64) {
	c.posScale = scale
}

// SetStallProtection configures stall detection. The axis is considered
// stalled once commanded power magnitude stays at or above minPower while
// the measured position does not change for stallTimeout. A stalled axis is
// held at zero output; the condition clears after output has been zero for
// resetTimeout, or never clears automatically when resetTimeout is zero.
func (c *Controller) SetStallProtection(minPower float64, stallTimeout, resetTimeout time.Duration) {
	c.stallMinPower = math.Abs(minPower)
	c.stallTimeout = stallTimeout
	c.resetTimeout = resetTimeout
	c.lastMoveTime = time.Time{}
}

// IsActive reports whether an operation is outstanding (and the controller
// is registered for its control step).
func (c *Controller) IsActive() bool {
	return c.active
}

// IsStalled reports whether stall protection has cut power.
func (c *Controller) IsStalled() bool {
	return c.stalled
}

// Power returns the power commanded on the last step.
func (c *Controller) Power() float64 {
	return c.power
}

// Position returns the primary port's position in scaled units.
func (c *Controller) Position() float64 {
	return c.primary.Position() * c.posScale
}

// SeekTarget starts a supervised move to target (in scaled units). Any
// in-flight operation is superseded without zeroing the motor, to avoid
// jerk. When hold is false the operation completes as soon as the regulator
// reports on target; with hold it keeps regulating until canceled. notify,
// if non-nil, is cleared now and fires on completion. A nonzero timeout
// completes the operation at now+timeout even if the target was never
// reached; timeout completion is not an error.
func (c *Controller) SeekTarget(target float64, hold bool, notify *sequence.Signal, timeout time.Duration) {
	if c.active {
		c.stop(false)
	}
	c.reg.SetTarget(target)
	if notify != nil {
		notify.Clear()
	}
	c.notify = notify
	c.holding = hold
	if timeout > 0 {
		c.deadline = c.clk.Now().Add(timeout)
	} else {
		c.deadline = time.Time{}
	}
	c.setActive(true)
}

// SetPower drives the axis open-loop, bypassing the regulator. Limit-switch
// gating and stall protection still apply. Any in-flight seek is superseded
// without zeroing the motor first.
func (c *Controller) SetPower(power float64) {
	c.SetRangedPower(power, minOutput, maxOutput)
}

// SetRangedPower is SetPower with a caller-supplied clamp range.
func (c *Controller) SetRangedPower(power, rangeLow, rangeHigh float64) {
	c.applyPower(power, rangeLow, rangeHigh, true, c.clk.Now())
}

// DriveWithinLimits drives the axis under regulation between two soft
// endpoints. The power magnitude bounds the regulator output and the sign
// selects the endpoint: negative seeks minPos, positive seeks maxPos. Zero
// power holds the current position when holdAtRest is set, otherwise cancels
// the operation. Typical use is joystick-speed-bounded travel of an elevator
// between its soft limits.
func (c *Controller) DriveWithinLimits(power, minPos, maxPos float64, holdAtRest bool) {
	if c.primary.ReverseLimitActive() && power < 0 || c.primary.ForwardLimitActive() && power > 0 {
		// Hard stop in the direction of travel. The reverse limit doubles
		// as the zero reference.
		if power < 0 {
			c.primary.ResetPosition()
		}
		power = 0
	}

	var target float64
	switch {
	case power < 0:
		target = minPos
	case power > 0:
		target = maxPos
	}

	switch {
	case target != c.prevTarget:
		if power == 0 {
			// Stopping. Relax the output range so holding has full
			// authority.
			c.reg.SetOutputRange(minOutput, maxOutput)
			if holdAtRest {
				c.SeekTarget(c.Position(), true, nil, 0)
			} else {
				c.Cancel()
			}
		} else {
			mag := math.Abs(power)
			c.reg.SetOutputRange(-mag, mag)
			c.SeekTarget(target, holdAtRest, nil, 0)
		}
		c.prevTarget = target
	case power == 0:
		c.reg.SetOutputRange(minOutput, maxOutput)
	default:
		// Same direction, new speed bound.
		mag := math.Abs(power)
		c.reg.SetOutputRange(-mag, mag)
	}
}

// Calibrate starts zero calibration: the axis drives open-loop at calPower
// until the limit switch in the direction of travel engages, then stops and,
// if it was the reverse limit, resets the position sensor. calPower is
// normally negative so the axis homes against its lower stop.
func (c *Controller) Calibrate(calPower float64) {
	if calPower == 0 {
		c.logger.Warnw("ignoring calibration with zero power", "axis", c.name)
		return
	}
	if c.active {
		c.stop(false)
	}
	c.calPower = calPower
	c.setActive(true)
}

// Cancel stops any outstanding operation immediately: motor output is
// zeroed, the regulator reset, calibration abandoned, and a pending notify
// signal is canceled (not completed). A latched stall condition is cleared.
func (c *Controller) Cancel() {
	if c.active {
		c.stop(true)
		if c.notify != nil {
			c.notify.Cancel()
			c.notify = nil
		}
	}
	if c.stalled {
		c.stalled = false
		c.prevPos = c.primary.Position()
		c.lastMoveTime = c.clk.Now()
	}
}

// Run implements scheduler.Task. The control step happens in the
// post-continuous phase; the stop phase kills any outstanding operation when
// the competition mode ends.
func (c *Controller) Run(phase scheduler.Phase, mode scheduler.RunMode, now time.Time) error {
	switch phase {
	case scheduler.PhaseStop:
		c.stop(true)
	case scheduler.PhasePostContinuous:
		c.step(now)
	case scheduler.PhasePostPeriodic:
	}
	return nil
}

// step is the once-per-cycle control step.
func (c *Controller) step(now time.Time) {
	if c.calPower != 0 {
		c.stepCalibration(now)
		return
	}

	reached := !c.holding && c.reg.OnTarget()
	expired := !c.deadline.IsZero() && !now.Before(c.deadline)
	if reached || expired || c.stalled {
		// Done, by success, timeout, or stall. All three complete the
		// operation so sequencing built on top always progresses.
		c.stop(true)
		if c.notify != nil {
			c.notify.Set(nil)
			c.notify = nil
		}
		c.logger.Debugw("seek complete", "axis", c.name,
			"reached", reached, "expired", expired, "stalled", c.stalled)
		return
	}
	c.applyPower(c.reg.Output(), minOutput, maxOutput, false, now)
}

func (c *Controller) stepCalibration(now time.Time) {
	stillTraveling := c.calPower < 0 && !c.primary.ReverseLimitActive() ||
		c.calPower > 0 && !c.primary.ForwardLimitActive()
	if stillTraveling {
		c.applyPower(c.calPower, minOutput, maxOutput, false, now)
		return
	}
	c.calPower = 0
	c.power = 0
	c.writeOutputs(0)
	if c.primary.ReverseLimitActive() {
		// Only the reverse stop is a trustworthy zero reference.
		c.primary.ResetPosition()
	}
	c.setActive(false)
	c.logger.Infow("zero calibration complete", "axis", c.name)
}

// applyPower is the single choke point for motor output. Limit-switch gating
// is absolute: it forces zero for this step regardless of stall state or
// regulator output. Stall protection then runs on whatever power survives.
func (c *Controller) applyPower(power, rangeLow, rangeHigh float64, stopSeek bool, now time.Time) {
	if power > 0 && c.primary.ForwardLimitActive() || power < 0 && c.primary.ReverseLimitActive() {
		c.power = 0
		c.writeOutputs(0)
		return
	}

	if c.active && stopSeek {
		// A seek is in flight and a manual command is taking over. Stop
		// the regulation but leave the motor powered to avoid jerk.
		c.stop(false)
	}

	power = clamp(power, rangeLow, rangeHigh)

	if c.stalled {
		if power == 0 {
			if c.resetTimeout > 0 && now.Sub(c.lastMoveTime) >= c.resetTimeout {
				c.stalled = false
				c.prevPos = c.primary.Position()
				c.lastMoveTime = now
				c.logger.Infow("stall cleared", "axis", c.name)
			}
		} else {
			// Still being commanded; the zero-output window restarts.
			c.lastMoveTime = now
		}
		c.power = 0
		c.writeOutputs(0)
		return
	}

	c.power = power
	if c.stallMinPower > 0 && c.stallTimeout > 0 {
		pos := c.primary.Position()
		if c.lastMoveTime.IsZero() || math.Abs(power) < c.stallMinPower || pos != c.prevPos {
			c.prevPos = pos
			c.lastMoveTime = now
		}
		if now.Sub(c.lastMoveTime) >= c.stallTimeout {
			c.power = 0
			c.stalled = true
			// The reset window measures zero-output time from here.
			c.lastMoveTime = now
			c.logger.Warnw("stall detected, cutting power", "axis", c.name,
				"position", pos, "commanded", power)
		}
	}
	c.writeOutputs(c.power)
}

// writeOutputs drives the port(s). With two ports and a nonzero sync gain
// the outputs are biased by ±gain×(pos1−pos2) and any clamped excess is
// shifted onto the other actuator, preserving total commanded authority.
func (c *Controller) writeOutputs(power float64) {
	p1, p2 := power, power
	if c.secondary != nil && c.syncGain != 0 {
		delta := c.syncGain * (c.primary.Position() - c.secondary.Position())
		p1 -= delta
		p2 += delta
		if p1 > maxOutput {
			p2 -= p1 - maxOutput
			p1 = maxOutput
		} else if p1 < minOutput {
			p2 -= p1 - minOutput
			p1 = minOutput
		}
		if p2 > maxOutput {
			p1 -= p2 - maxOutput
			p2 = maxOutput
		} else if p2 < minOutput {
			p1 -= p2 - minOutput
			p2 = minOutput
		}
		p1 = clamp(p1, minOutput, maxOutput)
		p2 = clamp(p2, minOutput, maxOutput)
	}
	c.primary.SetPower(p1)
	if c.secondary != nil {
		c.secondary.SetPower(p2)
	}
}

// stop ends the current operation. With stopMotor false the output is left
// untouched so a superseding command can blend in without a jerk.
func (c *Controller) stop(stopMotor bool) {
	c.setActive(false)
	c.reg.Reset()
	if stopMotor {
		c.writeOutputs(0)
	}
	c.power = 0
	c.calPower = 0
	c.holding = false
	c.deadline = time.Time{}
}

func (c *Controller) setActive(active bool) {
	if active {
		c.sched.Register(scheduler.PhaseStop, c)
		c.sched.Register(scheduler.PhasePostContinuous, c)
	} else {
		c.sched.Unregister(scheduler.PhaseStop, c)
		c.sched.Unregister(scheduler.PhasePostContinuous, c)
	}
	c.active = active
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// Package actuator defines the hardware-facing contract for a single
// motor/position-sensor/limit-switch group. Concrete adapters (simulated,
// serial-bus, vendor drivers) implement Port; motion controllers consume it
// and never talk to hardware directly.
package actuator

import "github.com/pkg/errors"

// ErrSpeedUnsupported is returned by Speed when the underlying hardware has
// no way to report velocity. Callers must avoid the call path rather than
// treat it as fatal; the control loop never aborts on a missing capability.
var ErrSpeedUnsupported = errors.New("actuator does not report speed")

// Port is one actuator axis: a motor output plus its position sensor and
// optional limit switches. By convention a Port is driven by at most one
// motion controller at a time; the scheduler's single-threaded invocation is
// what makes the unsynchronized access safe.
type Port interface {
	// Name returns the axis name for diagnostics.
	Name() string
	// Position returns sensor units accumulated since the last reset.
	Position() float64
	// Speed returns the sensed velocity in sensor units per second, or
	// ErrSpeedUnsupported when the hardware cannot report it.
	Speed() (float64, error)
	// ForwardLimitActive reports whether the forward limit switch is engaged.
	ForwardLimitActive() bool
	// ReverseLimitActive reports whether the reverse limit switch is engaged.
	ReverseLimitActive() bool
	// ResetPosition zeroes the position sensor at the current location.
	ResetPosition()
	// SetPower commands motor output in [-1, 1].
	SetPower(power float64)
	// SetInverted flips the motor output direction.
	SetInverted(inverted bool)
	// SetBrakeMode selects brake (true) or coast (false) at zero power.
	SetBrakeMode(enabled bool)
	// SetPositionSensorInverted flips the sign of the position sensor.
	SetPositionSensorInverted(inverted bool)
}

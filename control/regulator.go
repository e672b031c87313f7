// Package control defines the closed-loop regulator contract consumed by
// motion controllers, plus a PID implementation of it.
package control

// Regulator computes a control output from a target and a measured input.
// A motion controller owns exactly one Regulator while an operation is
// outstanding and drives it once per cycle.
type Regulator interface {
	// SetTarget sets the position to drive toward.
	SetTarget(target float64)
	// Target returns the last target set.
	Target() float64
	// SetOutputRange bounds the computed output to [min, max].
	SetOutputRange(min, max float64)
	// OnTarget reports whether the measured input is within tolerance of
	// the target.
	OnTarget() bool
	// Output computes the control output for this cycle.
	Output() float64
	// Reset clears accumulated state between operations.
	Reset()
}

var _ Regulator = (*PID)(nil)

package control

import (
	"math"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
)

// PIDConfig holds the gains and tolerance for a PID regulator.
type PIDConfig struct {
	Name string `yaml:"name"`
	// Standard gains. At least one must be nonzero.
	Kp float64 `yaml:"kp"`
	Ki float64 `yaml:"ki"`
	Kd float64 `yaml:"kd"`
	// Tolerance is the absolute position error within which the axis is
	// considered on target.
	Tolerance float64 `yaml:"tolerance"`
}

// Validate ensures the config describes a usable regulator.
func (cfg *PIDConfig) Validate() error {
	if cfg.Kp == 0 && cfg.Ki == 0 && cfg.Kd == 0 {
		return errors.Errorf("pid %s needs at least one nonzero gain", cfg.Name)
	}
	if cfg.Tolerance < 0 {
		return errors.Errorf("pid %s tolerance cannot be negative", cfg.Name)
	}
	return nil
}

// PID is a basic position PID regulator with integral anti-windup via the
// configured output range. The input function supplies the measured position
// each step; it is read once per Output call and once per OnTarget call.
type PID struct {
	cfg    PIDConfig
	input  func() float64
	clk    clock.Clock
	logger golog.Logger

	target   float64
	minOut   float64
	maxOut   float64
	integral float64
	lastErr  float64
	lastTime time.Time
}

// NewPID returns a PID regulator reading measured position from input.
func NewPID(cfg PIDConfig, input func() float64, clk clock.Clock, logger golog.Logger) (*PID, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if input == nil {
		return nil, errors.Errorf("pid %s needs an input function", cfg.Name)
	}
	return &PID{
		cfg:    cfg,
		input:  input,
		clk:    clk,
		logger: logger,
		minOut: -1,
		maxOut: 1,
	}, nil
}

// SetTarget sets the position to drive toward.
func (p *PID) SetTarget(target float64) {
	p.target = target
}

// Target returns the last target set.
func (p *PID) Target() float64 {
	return p.target
}

// SetOutputRange bounds the output (and the integral term) to [min, max].
func (p *PID) SetOutputRange(min, max float64) {
	p.minOut = min
	p.maxOut = max
}

// OnTarget reports whether the measured position is within tolerance.
func (p *PID) OnTarget() bool {
	return math.Abs(p.target-p.input()) <= p.cfg.Tolerance
}

// Output computes the control output for this step. Call once per cycle; the
// step time comes from the shared cycle clock.
func (p *PID) Output() float64 {
	now := p.clk.Now()
	err := p.target - p.input()

	var deriv float64
	if !p.lastTime.IsZero() {
		dt := now.Sub(p.lastTime).Seconds()
		if dt > 0 {
			p.integral = clamp(p.integral+p.cfg.Ki*err*dt, p.minOut, p.maxOut)
			deriv = p.cfg.Kd * (err - p.lastErr) / dt
		}
	}
	p.lastErr = err
	p.lastTime = now

	return clamp(p.cfg.Kp*err+p.integral+deriv, p.minOut, p.maxOut)
}

// Reset clears the accumulated integral and derivative history.
func (p *PID) Reset() {
	p.integral = 0
	p.lastErr = 0
	p.lastTime = time.Time{}
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

// Package fake implements a simulated actuator port. Position integrates
// from commanded power on explicit Step calls, so tests and the simulator can
// advance it in lockstep with the scheduler cycle instead of wall time.
package fake

import (
	"math"
	"time"

	"github.com/edaniels/golog"

	"github.com/cadencerobotics/motioncore/actuator"
)

// Config describes the simulated axis.
type Config struct {
	// MaxSpeed is the travel rate in sensor units per second at full power.
	MaxSpeed float64 `yaml:"max_speed"`
	// ForwardLimitAt and ReverseLimitAt are raw positions where the travel
	// hard-stops and the corresponding limit switch engages. Zero values
	// leave that end of travel unbounded.
	ForwardLimitAt *float64 `yaml:"forward_limit_at,omitempty"`
	ReverseLimitAt *float64 `yaml:"reverse_limit_at,omitempty"`
	// ReportsSpeed controls whether Speed is supported.
	ReportsSpeed bool `yaml:"reports_speed"`
	// StartPosition is the raw position at power-up.
	StartPosition float64 `yaml:"start_position"`
}

// Port is a simulated actuator. Not safe for concurrent use; like every
// control component it lives on the scheduler's goroutine.
type Port struct {
	name   string
	cfg    Config
	logger golog.Logger

	power          float64
	rawPos         float64
	offset         float64
	velocity       float64
	inverted       bool
	sensorInverted bool
	brake          bool
	frozen         bool
	forcedFwd      bool
	forcedRev      bool
}

var _ actuator.Port = (*Port)(nil)

// New returns a simulated port at raw position zero.
func New(name string, cfg Config, logger golog.Logger) *Port {
	if cfg.MaxSpeed == 0 {
		cfg.MaxSpeed = 1
	}
	return &Port{name: name, cfg: cfg, logger: logger, rawPos: cfg.StartPosition}
}

// Step advances the simulation by dt, integrating position from the last
// commanded power and engaging limit switches at the travel bounds.
func (p *Port) Step(dt time.Duration) {
	power := p.power
	if p.inverted {
		power = -power
	}
	p.velocity = power * p.cfg.MaxSpeed
	if p.frozen {
		p.velocity = 0
		return
	}
	p.rawPos += p.velocity * dt.Seconds()
	if p.cfg.ForwardLimitAt != nil && p.rawPos > *p.cfg.ForwardLimitAt {
		p.rawPos = *p.cfg.ForwardLimitAt
	}
	if p.cfg.ReverseLimitAt != nil && p.rawPos < *p.cfg.ReverseLimitAt {
		p.rawPos = *p.cfg.ReverseLimitAt
	}
}

// Name implements actuator.Port.
func (p *Port) Name() string { return p.name }

// Position implements actuator.Port.
func (p *Port) Position() float64 {
	pos := p.rawPos - p.offset
	if p.sensorInverted {
		pos = -pos
	}
	return pos
}

// Speed implements actuator.Port.
func (p *Port) Speed() (float64, error) {
	if !p.cfg.ReportsSpeed {
		return 0, actuator.ErrSpeedUnsupported
	}
	return p.velocity, nil
}

// ForwardLimitActive implements actuator.Port.
func (p *Port) ForwardLimitActive() bool {
	if p.forcedFwd {
		return true
	}
	return p.cfg.ForwardLimitAt != nil && p.rawPos >= *p.cfg.ForwardLimitAt
}

// ReverseLimitActive implements actuator.Port.
func (p *Port) ReverseLimitActive() bool {
	if p.forcedRev {
		return true
	}
	return p.cfg.ReverseLimitAt != nil && p.rawPos <= *p.cfg.ReverseLimitAt
}

// ResetPosition implements actuator.Port.
func (p *Port) ResetPosition() {
	p.offset = p.rawPos
}

// SetPower implements actuator.Port.
func (p *Port) SetPower(power float64) {
	p.power = math.Max(-1, math.Min(1, power))
}

// SetInverted implements actuator.Port.
func (p *Port) SetInverted(inverted bool) { p.inverted = inverted }

// SetBrakeMode implements actuator.Port.
func (p *Port) SetBrakeMode(enabled bool) { p.brake = enabled }

// SetPositionSensorInverted implements actuator.Port.
func (p *Port) SetPositionSensorInverted(inverted bool) { p.sensorInverted = inverted }

// Power returns the last commanded power, for assertions.
func (p *Port) Power() float64 { return p.power }

// SetRawPosition teleports the axis, bypassing integration.
func (p *Port) SetRawPosition(pos float64) { p.rawPos = pos }

// Freeze pins the position regardless of power, simulating a stalled motor.
func (p *Port) Freeze(frozen bool) { p.frozen = frozen }

// ForceForwardLimit overrides the forward limit switch for tests.
func (p *Port) ForceForwardLimit(active bool) { p.forcedFwd = active }

// ForceReverseLimit overrides the reverse limit switch for tests.
func (p *Port) ForceReverseLimit(active bool) { p.forcedRev = active }

// Package config loads the YAML description of a robot's motion axes:
// actuator wiring, regulator gains, stall protection, and travel bounds.
package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/cadencerobotics/motioncore/actuator/fake"
	"github.com/cadencerobotics/motioncore/actuator/serialmc"
	"github.com/cadencerobotics/motioncore/control"
)

// Duration wraps time.Duration so YAML can say "20ms" or "1.5s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return errors.Wrap(err, "duration must be a string like \"250ms\"")
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return errors.Wrapf(err, "parsing duration %q", s)
	}
	*d = Duration(dur)
	return nil
}

// Unwrap returns the underlying time.Duration.
func (d Duration) Unwrap() time.Duration {
	return time.Duration(d)
}

// Actuator selects and configures one hardware adapter.
type Actuator struct {
	// Type is "fake" or "serialmc".
	Type     string           `yaml:"type"`
	Fake     *fake.Config     `yaml:"fake,omitempty"`
	Serial   *serialmc.Config `yaml:"serial,omitempty"`
	Inverted bool             `yaml:"inverted"`
	// SensorInverted flips the position sensor sign.
	SensorInverted bool `yaml:"sensor_inverted"`
	BrakeMode      bool `yaml:"brake_mode"`
}

// Validate ensures the adapter selection is complete.
func (a *Actuator) Validate(axis string) error {
	switch a.Type {
	case "fake":
		if a.Fake == nil {
			return errors.Errorf("axis %s: fake actuator needs a fake section", axis)
		}
	case "serialmc":
		if a.Serial == nil {
			return errors.Errorf("axis %s: serialmc actuator needs a serial section", axis)
		}
		if err := a.Serial.Validate(); err != nil {
			return errors.Wrapf(err, "axis %s", axis)
		}
	default:
		return errors.Errorf("axis %s: unknown actuator type %q", axis, a.Type)
	}
	return nil
}

// Axis describes one motion axis.
type Axis struct {
	Name      string            `yaml:"name"`
	Regulator control.PIDConfig `yaml:"regulator"`
	Primary   Actuator          `yaml:"primary"`
	// Secondary, when present, makes this a synchronized pair.
	Secondary *Actuator `yaml:"secondary,omitempty"`
	SyncGain  float64   `yaml:"sync_gain"`
	// PositionScale converts sensor units to engineering units.
	PositionScale float64 `yaml:"position_scale"`

	StallMinPower     float64  `yaml:"stall_min_power"`
	StallTimeout      Duration `yaml:"stall_timeout"`
	StallResetTimeout Duration `yaml:"stall_reset_timeout"`

	CalibrationPower float64 `yaml:"calibration_power"`
	// Soft travel bounds for bounded drive, in scaled units.
	MinPosition float64 `yaml:"min_position"`
	MaxPosition float64 `yaml:"max_position"`
}

// Validate ensures the axis is buildable.
func (a *Axis) Validate() error {
	if a.Name == "" {
		return errors.New("axis needs a name")
	}
	if a.Regulator.Name == "" {
		a.Regulator.Name = a.Name
	}
	if err := a.Regulator.Validate(); err != nil {
		return errors.Wrapf(err, "axis %s", a.Name)
	}
	if err := a.Primary.Validate(a.Name); err != nil {
		return err
	}
	if a.Secondary != nil {
		if err := a.Secondary.Validate(a.Name); err != nil {
			return err
		}
	}
	if a.Secondary == nil && a.SyncGain != 0 {
		return errors.Errorf("axis %s: sync_gain needs a secondary actuator", a.Name)
	}
	if a.MinPosition > a.MaxPosition {
		return errors.Errorf("axis %s: min_position above max_position", a.Name)
	}
	return nil
}

// Config is the root document.
type Config struct {
	// CycleInterval is the scheduler cadence, typically tens of
	// milliseconds.
	CycleInterval Duration `yaml:"cycle_interval"`
	Axes          []Axis   `yaml:"axes"`
}

// Validate ensures the whole document is buildable.
func (c *Config) Validate() error {
	if c.CycleInterval.Unwrap() <= 0 {
		return errors.New("cycle_interval must be positive")
	}
	if len(c.Axes) == 0 {
		return errors.New("config needs at least one axis")
	}
	seen := map[string]bool{}
	for i := range c.Axes {
		if err := c.Axes[i].Validate(); err != nil {
			return err
		}
		if seen[c.Axes[i].Name] {
			return errors.Errorf("duplicate axis name %s", c.Axes[i].Name)
		}
		seen[c.Axes[i].Name] = true
	}
	return nil
}

// Load reads and validates a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %s", path)
	}
	return Parse(data)
}

// Parse decodes and validates raw YAML.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "parsing config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

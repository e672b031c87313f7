// Package serialmc implements the actuator contract over a serial-bus motor
// controller. Commands use a compact Pololu-style framing: an optional
// address preamble (0xAA, device, command&0x7F) for shared buses, 7-bit
// payload bytes, and an optional CRC-7 trailer.
//
// The actuator contract has no error returns by design: the control loop
// must never abort mid-cycle on a transient bus fault. Bus errors are
// logged, the last good sensor reading is served, and the most recent error
// stays available via Err.
package serialmc

import (
	"io"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"github.com/tarm/serial"
	"go.uber.org/multierr"

	"github.com/cadencerobotics/motioncore/actuator"
)

// commands
const (
	cmdSetPower      = 0x85
	cmdSetBrakeMode  = 0x87
	cmdGetPosition   = 0x91
	cmdGetLimits     = 0x94
	cmdResetPosition = 0x96
)

// limit switch bits in the cmdGetLimits response
const (
	limitForwardBit = 1 << 0
	limitReverseBit = 1 << 1
)

// 14 bits of power command, offset-encoded so zero power is mid-scale.
const powerScale = 0x3fff

// Config describes the bus connection for one axis.
type Config struct {
	Name string `yaml:"name"`
	// Device is the controller's address on a shared bus.
	Device uint8 `yaml:"device"`
	// Compact drops the address preamble; valid only for a single
	// controller per serial line.
	Compact bool `yaml:"compact"`
	// CRC appends a CRC-7 trailer to outgoing commands.
	CRC bool `yaml:"crc"`
	// SerialPath and Baud locate the port, e.g. /dev/ttyUSB0 at 115200.
	SerialPath string `yaml:"serial_path"`
	Baud       int    `yaml:"baud"`
}

// Validate ensures the config can open a bus.
func (cfg *Config) Validate() error {
	if cfg.SerialPath == "" {
		return errors.Errorf("serialmc %s needs a serial_path", cfg.Name)
	}
	if cfg.Baud <= 0 {
		return errors.Errorf("serialmc %s needs a positive baud rate", cfg.Name)
	}
	return nil
}

// Port drives one axis on a serial-bus motor controller.
type Port struct {
	name    string
	bus     io.ReadWriter
	closer  io.Closer
	device  uint8
	compact bool
	crc     bool
	logger  golog.Logger

	lastPos        float64
	lastErr        error
	inverted       bool
	sensorInverted bool
}

var _ actuator.Port = (*Port)(nil)

// Open connects to the controller over a local serial port.
func Open(cfg Config, logger golog.Logger) (*Port, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sp, err := serial.OpenPort(&serial.Config{Name: cfg.SerialPath, Baud: cfg.Baud})
	if err != nil {
		return nil, errors.Wrapf(err, "serialmc %s: opening %s", cfg.Name, cfg.SerialPath)
	}
	p := New(cfg.Name, sp, cfg, logger)
	p.closer = sp
	// 0xAA lets the controller auto-detect the baud rate.
	if _, err := sp.Write([]byte{0xaa}); err != nil {
		return nil, multierr.Combine(errors.Wrap(err, "baud detection"), sp.Close())
	}
	return p, nil
}

// New wraps an already open bus, e.g. a pipe in tests.
func New(name string, bus io.ReadWriter, cfg Config, logger golog.Logger) *Port {
	return &Port{
		name:    name,
		bus:     bus,
		device:  cfg.Device,
		compact: cfg.Compact,
		crc:     cfg.CRC,
		logger:  logger,
	}
}

// Close releases the serial port if this Port opened it.
func (p *Port) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer.Close()
}

// Err returns the most recent bus error, or nil.
func (p *Port) Err() error {
	return p.lastErr
}

func (p *Port) frame(command uint8, payload ...byte) []byte {
	var cmd []byte
	if p.compact {
		cmd = []byte{command}
	} else {
		cmd = []byte{0xaa, p.device, command & 0x7f}
	}
	cmd = append(cmd, payload...)
	if p.crc {
		cmd = append(cmd, crc7(cmd))
	}
	return cmd
}

func (p *Port) write(command uint8, payload ...byte) error {
	_, err := p.bus.Write(p.frame(command, payload...))
	return err
}

func (p *Port) read(buf []byte) error {
	if _, err := io.ReadFull(p.bus, buf); err != nil {
		return err
	}
	return nil
}

func (p *Port) fail(op string, err error) {
	p.lastErr = errors.Wrapf(err, "serialmc %s: %s", p.name, op)
	p.logger.Warnw("bus command failed", "axis", p.name, "op", op, "error", err)
}

// Name implements actuator.Port.
func (p *Port) Name() string { return p.name }

// Position implements actuator.Port. On a bus fault the last good reading is
// returned so the control loop keeps a consistent view.
func (p *Port) Position() float64 {
	if err := p.write(cmdGetPosition); err != nil {
		p.fail("get position", err)
		return p.lastPos
	}
	var rsp [4]byte
	if err := p.read(rsp[:]); err != nil {
		p.fail("get position", err)
		return p.lastPos
	}
	raw := int32(rsp[0]) | int32(rsp[1])<<8 | int32(rsp[2])<<16 | int32(rsp[3])<<24
	pos := float64(raw)
	if p.sensorInverted {
		pos = -pos
	}
	p.lastPos = pos
	return pos
}

// Speed implements actuator.Port. The controller has no velocity register.
func (p *Port) Speed() (float64, error) {
	return 0, actuator.ErrSpeedUnsupported
}

// ForwardLimitActive implements actuator.Port.
func (p *Port) ForwardLimitActive() bool {
	return p.limitBits()&limitForwardBit != 0
}

// ReverseLimitActive implements actuator.Port.
func (p *Port) ReverseLimitActive() bool {
	return p.limitBits()&limitReverseBit != 0
}

func (p *Port) limitBits() uint8 {
	if err := p.write(cmdGetLimits); err != nil {
		p.fail("get limits", err)
		return 0
	}
	var rsp [1]byte
	if err := p.read(rsp[:]); err != nil {
		p.fail("get limits", err)
		return 0
	}
	return rsp[0]
}

// ResetPosition implements actuator.Port.
func (p *Port) ResetPosition() {
	if err := p.write(cmdResetPosition); err != nil {
		p.fail("reset position", err)
		return
	}
	p.lastPos = 0
}

// SetPower implements actuator.Port. Power maps to a 14-bit offset value so
// payload bytes stay 7-bit clean on the wire.
func (p *Port) SetPower(power float64) {
	if power > 1 {
		power = 1
	} else if power < -1 {
		power = -1
	}
	if p.inverted {
		power = -power
	}
	v := uint16((power + 1) / 2 * powerScale)
	if err := p.write(cmdSetPower, byte(v&0x7f), byte(v>>7)); err != nil {
		p.fail("set power", err)
	}
}

// SetInverted implements actuator.Port.
func (p *Port) SetInverted(inverted bool) { p.inverted = inverted }

// SetBrakeMode implements actuator.Port.
func (p *Port) SetBrakeMode(enabled bool) {
	var b byte
	if enabled {
		b = 1
	}
	if err := p.write(cmdSetBrakeMode, b); err != nil {
		p.fail("set brake mode", err)
	}
}

// SetPositionSensorInverted implements actuator.Port.
func (p *Port) SetPositionSensorInverted(inverted bool) { p.sensorInverted = inverted }

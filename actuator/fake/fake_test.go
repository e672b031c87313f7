package fake

import (
	"testing"
	"time"

	"github.com/edaniels/golog"
	"go.viam.com/test"

	"github.com/cadencerobotics/motioncore/actuator"
)

func f64(v float64) *float64 { return &v }

func TestStepIntegratesPower(t *testing.T) {
	logger := golog.NewTestLogger(t)
	p := New("lift", Config{MaxSpeed: 40, ReportsSpeed: true}, logger)

	p.SetPower(0.5)
	for i := 0; i < 50; i++ {
		p.Step(20 * time.Millisecond)
	}
	// 0.5 * 40 units/s for one second
	test.That(t, p.Position(), test.ShouldAlmostEqual, 20.0, 1e-9)

	speed, err := p.Speed()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, speed, test.ShouldAlmostEqual, 20.0)

	p.SetPower(-1)
	p.Step(100 * time.Millisecond)
	test.That(t, p.Position(), test.ShouldAlmostEqual, 16.0, 1e-9)
}

func TestSpeedUnsupported(t *testing.T) {
	logger := golog.NewTestLogger(t)
	p := New("lift", Config{MaxSpeed: 40}, logger)
	_, err := p.Speed()
	test.That(t, err, test.ShouldEqual, actuator.ErrSpeedUnsupported)
}

func TestPowerClamped(t *testing.T) {
	logger := golog.NewTestLogger(t)
	p := New("lift", Config{}, logger)
	p.SetPower(3)
	test.That(t, p.Power(), test.ShouldEqual, 1.0)
	p.SetPower(-3)
	test.That(t, p.Power(), test.ShouldEqual, -1.0)
}

func TestLimitSwitches(t *testing.T) {
	logger := golog.NewTestLogger(t)
	p := New("lift", Config{
		MaxSpeed:       40,
		ForwardLimitAt: f64(10),
		ReverseLimitAt: f64(0),
	}, logger)

	test.That(t, p.ForwardLimitActive(), test.ShouldBeFalse)
	test.That(t, p.ReverseLimitActive(), test.ShouldBeTrue)

	p.SetPower(1)
	for i := 0; i < 100; i++ {
		p.Step(20 * time.Millisecond)
	}
	// travel hard-stops at the switch
	test.That(t, p.Position(), test.ShouldEqual, 10.0)
	test.That(t, p.ForwardLimitActive(), test.ShouldBeTrue)
	test.That(t, p.ReverseLimitActive(), test.ShouldBeFalse)

	p.SetPower(-1)
	p.Step(20 * time.Millisecond)
	test.That(t, p.ForwardLimitActive(), test.ShouldBeFalse)
}

func TestForcedLimits(t *testing.T) {
	logger := golog.NewTestLogger(t)
	p := New("lift", Config{MaxSpeed: 40}, logger)

	test.That(t, p.ForwardLimitActive(), test.ShouldBeFalse)
	p.ForceForwardLimit(true)
	test.That(t, p.ForwardLimitActive(), test.ShouldBeTrue)
	p.ForceForwardLimit(false)

	p.ForceReverseLimit(true)
	test.That(t, p.ReverseLimitActive(), test.ShouldBeTrue)
}

func TestResetPosition(t *testing.T) {
	logger := golog.NewTestLogger(t)
	p := New("lift", Config{MaxSpeed: 40, StartPosition: 30}, logger)

	test.That(t, p.Position(), test.ShouldEqual, 30.0)
	p.ResetPosition()
	test.That(t, p.Position(), test.ShouldEqual, 0.0)

	p.SetPower(1)
	p.Step(100 * time.Millisecond)
	test.That(t, p.Position(), test.ShouldAlmostEqual, 4.0, 1e-9)
}

func TestInversion(t *testing.T) {
	logger := golog.NewTestLogger(t)
	p := New("lift", Config{MaxSpeed: 40}, logger)

	p.SetInverted(true)
	p.SetPower(1)
	p.Step(100 * time.Millisecond)
	test.That(t, p.Position(), test.ShouldAlmostEqual, -4.0, 1e-9)

	p.SetPositionSensorInverted(true)
	test.That(t, p.Position(), test.ShouldAlmostEqual, 4.0, 1e-9)
}

func TestFreezeSimulatesStall(t *testing.T) {
	logger := golog.NewTestLogger(t)
	p := New("lift", Config{MaxSpeed: 40, ReportsSpeed: true}, logger)

	p.SetPower(1)
	p.Step(100 * time.Millisecond)
	before := p.Position()

	p.Freeze(true)
	p.Step(100 * time.Millisecond)
	test.That(t, p.Position(), test.ShouldEqual, before)
	speed, err := p.Speed()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, speed, test.ShouldEqual, 0.0)

	p.Freeze(false)
	p.Step(100 * time.Millisecond)
	test.That(t, p.Position(), test.ShouldBeGreaterThan, before)
}

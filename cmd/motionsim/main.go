// Package main runs the motion framework against simulated hardware: it
// loads an axis config, drives the scheduler at the configured cadence, and
// executes a scripted autonomous-style routine until it finishes or the
// process is interrupted.
package main

import (
	"context"
	"flag"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/cadencerobotics/motioncore/actuator"
	"github.com/cadencerobotics/motioncore/actuator/fake"
	"github.com/cadencerobotics/motioncore/actuator/serialmc"
	"github.com/cadencerobotics/motioncore/config"
	"github.com/cadencerobotics/motioncore/control"
	"github.com/cadencerobotics/motioncore/motion"
	"github.com/cadencerobotics/motioncore/scheduler"
)

var logger = golog.NewDevelopmentLogger("motionsim")

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

// axis bundles one configured motion axis with its simulated ports.
type axis struct {
	cfg        config.Axis
	controller *motion.Controller
	fakes      []*fake.Port
}

func mainWithArgs(ctx context.Context, args []string, logger golog.Logger) error {
	fs := flag.NewFlagSet("motionsim", flag.ContinueOnError)
	configPath := fs.String("config", "etc/motionsim.yaml", "axis config file")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	sched := scheduler.New(clock.New(), logger)
	axes := make([]*axis, 0, len(cfg.Axes))
	for _, acfg := range cfg.Axes {
		a, err := buildAxis(acfg, sched, logger)
		if err != nil {
			return err
		}
		axes = append(axes, a)
	}

	routine := newLiftRoutine(axes[0], sched, logger)
	routine.Start()

	interval := cfg.CycleInterval.Unwrap()
	logger.Infow("simulation running", "cycle_interval", interval, "axes", len(axes))

	for routine.Running() {
		if !utils.SelectContextOrWait(ctx, interval) {
			logger.Info("interrupted")
			break
		}
		for _, a := range axes {
			for _, p := range a.fakes {
				p.Step(interval)
			}
		}
		routine.Periodic()
		if err := sched.RunPhase(scheduler.PhasePostPeriodic, scheduler.ModeAutonomous); err != nil {
			logger.Errorw("post-periodic phase", "error", err)
		}
		if err := sched.RunPhase(scheduler.PhasePostContinuous, scheduler.ModeAutonomous); err != nil {
			logger.Errorw("post-continuous phase", "error", err)
		}
	}

	return sched.RunPhase(scheduler.PhaseStop, scheduler.ModeAutonomous)
}

func buildAxis(acfg config.Axis, sched *scheduler.Scheduler, logger golog.Logger) (*axis, error) {
	a := &axis{cfg: acfg}

	primary, err := buildPort(acfg.Name, acfg.Primary, a, logger)
	if err != nil {
		return nil, err
	}
	var secondary actuator.Port
	if acfg.Secondary != nil {
		secondary, err = buildPort(acfg.Name+"-secondary", *acfg.Secondary, a, logger)
		if err != nil {
			return nil, err
		}
	}

	scale := acfg.PositionScale
	if scale == 0 {
		scale = 1
	}
	reg, err := control.NewPID(acfg.Regulator, func() float64 {
		return primary.Position() * scale
	}, sched.Clock(), logger)
	if err != nil {
		return nil, err
	}

	ctrl, err := motion.NewController(acfg.Name, sched, primary, secondary, reg, logger)
	if err != nil {
		return nil, err
	}
	ctrl.SetPositionScale(scale)
	ctrl.SetSyncGain(acfg.SyncGain)
	if acfg.StallMinPower > 0 {
		ctrl.SetStallProtection(acfg.StallMinPower,
			acfg.StallTimeout.Unwrap(), acfg.StallResetTimeout.Unwrap())
	}
	a.controller = ctrl
	return a, nil
}

func buildPort(name string, acfg config.Actuator, a *axis, logger golog.Logger) (actuator.Port, error) {
	var port actuator.Port
	switch acfg.Type {
	case "fake":
		fp := fake.New(name, *acfg.Fake, logger)
		a.fakes = append(a.fakes, fp)
		port = fp
	case "serialmc":
		sp, err := serialmc.Open(*acfg.Serial, logger)
		if err != nil {
			return nil, err
		}
		port = sp
	default:
		return nil, errors.Errorf("axis %s: unknown actuator type %q", name, acfg.Type)
	}
	port.SetInverted(acfg.Inverted)
	port.SetPositionSensorInverted(acfg.SensorInverted)
	port.SetBrakeMode(acfg.BrakeMode)
	return port, nil
}

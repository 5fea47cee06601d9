// Package main runs two axes through the original two-motor demo sequence
// against a transmitter that logs every bus word instead of driving hardware.
package main

import (
	"context"
	"time"

	"github.com/edaniels/golog"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"github.com/mechbus/shiftstepper/axis"
	"github.com/mechbus/shiftstepper/bus"
)

var logger = golog.NewDevelopmentLogger("axisdemo")

func main() {
	goutils.ContextualMainQuit(mainWithArgs, logger)
}

// Arguments for the command.
type Arguments struct {
	StepsPerRotation int  `flag:"steps,default=4096,usage=full-rotation step count"`
	StepDelayUsec    int  `flag:"delay-usec,default=1200,usage=microseconds between steps"`
	LogWords         bool `flag:"words,usage=log every transmitted bus word"`
}

// logTransmitter stands in for a wired shifter.
type logTransmitter struct {
	logger  golog.Logger
	verbose bool
}

func (lt *logTransmitter) Transmit(ctx context.Context, word uint64, bits int) error {
	if lt.verbose {
		lt.logger.Debugf("bus word %0*b", bits, word)
	}
	return nil
}

func mainWithArgs(ctx context.Context, args []string, logger golog.Logger) (err error) {
	var argsParsed Arguments
	if err := goutils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}

	b, err := bus.New(&logTransmitter{logger: logger, verbose: argsParsed.LogWords}, bus.Config{}, logger)
	if err != nil {
		return err
	}

	cfg := axis.Config{
		StepsPerRotation: argsParsed.StepsPerRotation,
		StepDelay:        time.Duration(argsParsed.StepDelayUsec) * time.Microsecond,
	}

	pan, err := axis.New(ctx, b, withIndex(cfg, 0), "pan", logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, pan.Close(ctx))
	}()

	tilt, err := axis.New(ctx, b, withIndex(cfg, 1), "tilt", logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, tilt.Close(ctx))
	}()

	if err := pan.Zero(ctx); err != nil {
		return err
	}
	if err := tilt.Zero(ctx); err != nil {
		return err
	}

	var moves []*axis.Move
	for _, target := range []float64{90, -45, -135, 135, 0} {
		m, err := pan.GoAngle(target)
		if err != nil {
			return err
		}
		moves = append(moves, m)
	}
	for _, target := range []float64{-90, 45} {
		m, err := tilt.GoAngle(target)
		if err != nil {
			return err
		}
		moves = append(moves, m)
	}

	for _, m := range moves {
		if err := m.Wait(ctx); err != nil {
			return err
		}
	}

	logger.Infow("demo done",
		"pan_angle", pan.CurrentAngle(),
		"tilt_angle", tilt.CurrentAngle(),
		"bus_word", b.Word(),
	)
	return nil
}

func withIndex(cfg axis.Config, index int) axis.Config {
	cfg.Index = index
	return cfg
}

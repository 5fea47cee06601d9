package axis

import (
	"context"
	"math"

	"github.com/pkg/errors"
)

// halfStepSequence is the commutation pattern energizing the motor coils.
// Walking it forward spins the rotor one way, backward the other; each entry
// is the nibble latched into the axis's slice of the bus word.
var halfStepSequence = [8]uint8{
	0b0001, 0b0011, 0b0010, 0b0110,
	0b0100, 0b1100, 0b1000, 0b1001,
}

// ShortestDelta returns the signed angular difference in (-180, 180] that
// moves current to target by the shorter rotational direction. A naive
// mod-360 difference would always come out non-negative and rotate the long
// way for negative differences; folding through a 540-degree window keeps the
// result symmetric around zero.
func ShortestDelta(current, target float64) float64 {
	delta := math.Mod(target-current+540, 360)
	if delta < 0 {
		delta += 360
	}
	delta -= 180
	if delta <= -180 {
		delta += 360
	}
	return delta
}

// goToAngle snapshots the angle once, resolves the shortest path, and rotates
// by it. The direction is fixed for the whole move; commands arriving during
// execution queue behind it.
func (a *Axis) goToAngle(ctx context.Context, target float64) error {
	current := a.CurrentAngle()
	delta := ShortestDelta(current, target)
	a.logger.Debugf("axis (%s) moving to %.2f from %.2f, delta %.2f", a.name, target, current, delta)
	if err := a.rotateRelative(ctx, delta); err != nil {
		return err
	}
	a.logger.Debugf("axis (%s) reached %.2f", a.name, a.CurrentAngle())
	return nil
}

// rotateRelative performs the blocking step loop: round the delta to whole
// steps and take them one at a time, pausing stepDelay after each. This is
// the only place physical motion happens. The loop checks for cancellation
// between steps, never mid-write.
func (a *Axis) rotateRelative(ctx context.Context, delta float64) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "move interrupted")
	}

	steps := int(math.Round(math.Abs(delta) * a.stepsPerDegree))
	dir := sign(delta)
	for i := 0; i < steps; i++ {
		if err := a.step(ctx, dir); err != nil {
			return err
		}
		if !a.waitStep(ctx) {
			return errors.Wrap(ctx.Err(), "move interrupted")
		}
	}
	return nil
}

// step advances the commutation sequence one entry, latches the new nibble
// into this axis's slice of the bus word, and then updates the angle under
// the axis's own lock. The bus lock is the serialization point across axes;
// it is never held while the angle lock is.
func (a *Axis) step(ctx context.Context, dir int) error {
	a.mu.Lock()
	next := (a.stepIndex + dir + len(halfStepSequence)) % len(halfStepSequence)
	a.mu.Unlock()

	if err := a.slot.Apply(ctx, halfStepSequence[next]); err != nil {
		return errors.Wrapf(err, "stepping axis (%s)", a.name)
	}

	a.mu.Lock()
	a.stepIndex = next
	a.angle = wrap360(a.angle + float64(dir)/a.stepsPerDegree)
	a.mu.Unlock()
	return nil
}

// waitStep pauses between steps; it reports false once ctx is done. The
// clock is injected so tests can drive the pacing.
func (a *Axis) waitStep(ctx context.Context) bool {
	if a.stepDelay <= 0 {
		select {
		case <-ctx.Done():
			return false
		default:
			return true
		}
	}
	timer := a.clk.Timer(a.stepDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func wrap360(angle float64) float64 {
	angle = math.Mod(angle, degreesPerRotation)
	if angle < 0 {
		angle += degreesPerRotation
	}
	return angle
}

func sign(x float64) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}

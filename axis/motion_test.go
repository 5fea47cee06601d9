package axis

import (
	"math"
	"math/rand"
	"testing"

	"go.viam.com/test"
)

func TestShortestDelta(t *testing.T) {
	for _, tc := range []struct {
		current, target, want float64
	}{
		{0, 90, 90},
		{0, 270, -90},
		{0, -90, -90},
		{10, 350, -20},
		{350, 10, 20},
		{90, 90, 0},
		{135, -135, 90},
		{0, 180, 180},
		{180, 0, 180},
		{359, 1, 2},
	} {
		test.That(t, ShortestDelta(tc.current, tc.target), test.ShouldAlmostEqual, tc.want, 1e-9)
	}
}

func TestShortestDeltaProperties(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 2000; i++ {
		current := r.Float64() * 360
		target := r.Float64()*1440 - 720
		delta := ShortestDelta(current, target)

		test.That(t, math.Abs(delta), test.ShouldBeLessThanOrEqualTo, 180)
		test.That(t, delta, test.ShouldBeGreaterThan, -180)

		// applying the delta lands on the target, mod 360
		diff := math.Abs(math.Mod(current+delta-target, 360))
		if diff > 180 {
			diff = 360 - diff
		}
		test.That(t, diff, test.ShouldAlmostEqual, 0, 1e-6)
	}
}

func TestWrap360(t *testing.T) {
	test.That(t, wrap360(0), test.ShouldEqual, 0.0)
	test.That(t, wrap360(360), test.ShouldEqual, 0.0)
	test.That(t, wrap360(-90), test.ShouldEqual, 270.0)
	test.That(t, wrap360(725), test.ShouldAlmostEqual, 5.0, 1e-9)
	test.That(t, wrap360(-725), test.ShouldAlmostEqual, 355.0, 1e-9)
}

func TestHalfStepSequence(t *testing.T) {
	test.That(t, len(halfStepSequence), test.ShouldEqual, 8)
	for i, nibble := range halfStepSequence {
		test.That(t, nibble, test.ShouldBeLessThanOrEqualTo, uint8(0xF))
		// adjacent half-step entries share no more than two energized coils
		// and never jump the pattern
		next := halfStepSequence[(i+1)%len(halfStepSequence)]
		test.That(t, next, test.ShouldNotEqual, nibble)
	}
}

func TestSign(t *testing.T) {
	test.That(t, sign(12.3), test.ShouldEqual, 1)
	test.That(t, sign(-0.4), test.ShouldEqual, -1)
	test.That(t, sign(0), test.ShouldEqual, 0)
}

// Package shifter serializes output words onto a shift register chain by
// bit-banging three GPIO lines: data, clock, and latch.
package shifter

import (
	"context"
	"sync"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"github.com/mechbus/shiftstepper/gpio"
)

// MaxBits is the widest word one transmit can carry.
const MaxBits = 64

// Config describes the pins the chain is wired to. The caller resolves pin
// names to gpio.Pin values through its platform layer before constructing a
// Shifter.
type Config struct {
	Data  gpio.Pin
	Clock gpio.Pin
	Latch gpio.Pin
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.Data == nil {
		return goutils.NewConfigValidationFieldRequiredError(path, "data")
	}
	if cfg.Clock == nil {
		return goutils.NewConfigValidationFieldRequiredError(path, "clock")
	}
	if cfg.Latch == nil {
		return goutils.NewConfigValidationFieldRequiredError(path, "latch")
	}
	return nil
}

// Shifter pushes words out LSB-first: bit 0 of the word is shifted first and
// ends up in the first output of the chain. The axis-to-output mapping relies
// on this order, so it has to match the physical wiring.
type Shifter struct {
	mu     sync.Mutex
	data   gpio.Pin
	clock  gpio.Pin
	latch  gpio.Pin
	logger golog.Logger
}

// New returns a Shifter over the configured pins.
func New(cfg Config, logger golog.Logger) (*Shifter, error) {
	if err := cfg.Validate("shifter"); err != nil {
		return nil, err
	}
	return &Shifter{
		data:   cfg.Data,
		clock:  cfg.Clock,
		latch:  cfg.Latch,
		logger: logger,
	}, nil
}

// Transmit clocks out the low bits of word, LSB first, then pulses the latch
// to commit them to the chain outputs. The registers give no acknowledgment,
// so a nil return only means every pin write succeeded.
func (s *Shifter) Transmit(ctx context.Context, word uint64, bits int) error {
	if bits <= 0 || bits > MaxBits {
		return errors.Errorf("transmit width must be between 1 and %d, got %d", MaxBits, bits)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := 0; i < bits; i++ {
		if err := s.data.Set(ctx, word&(1<<i) != 0); err != nil {
			return errors.Wrapf(err, "setting data pin for bit %d", i)
		}
		if err := s.pulse(ctx, s.clock); err != nil {
			return errors.Wrapf(err, "pulsing clock pin for bit %d", i)
		}
	}
	if err := s.pulse(ctx, s.latch); err != nil {
		return errors.Wrap(err, "pulsing latch pin")
	}
	return nil
}

func (s *Shifter) pulse(ctx context.Context, pin gpio.Pin) error {
	if err := pin.Set(ctx, true); err != nil {
		return err
	}
	return pin.Set(ctx, false)
}

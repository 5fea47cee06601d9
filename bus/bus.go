// Package bus owns the combined output word shared by every axis wired to one
// shift register chain, and the mutual exclusion that keeps concurrent axes
// from corrupting each other's bits.
package bus

import (
	"context"
	"sync"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"
)

// A Transmitter pushes a word of motor-driver inputs onto the physical chain.
// Implemented by shifter.Shifter. There is no acknowledgment channel from the
// hardware, so errors only surface from the pin layer underneath.
type Transmitter interface {
	Transmit(ctx context.Context, word uint64, bits int) error
}

const (
	// SlotBits is the width of one axis's slice of the output word.
	SlotBits = 4

	// MaxChainBits bounds the chain length to what one word can hold.
	MaxChainBits = 64

	// DefaultChainBits matches a single 8-bit register.
	DefaultChainBits = 8

	// DefaultMinBits is the narrowest transmit the chain accepts; shorter
	// words would leave stale bits latched in the registers.
	DefaultMinBits = 8
)

// Config describes the physical chain.
type Config struct {
	// ChainBits is the total number of register outputs wired up.
	ChainBits int `json:"chain_bits,omitempty"`
	// MinBits is the minimum transmit width.
	MinBits int `json:"min_bits,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.ChainBits < 0 || cfg.ChainBits > MaxChainBits {
		return goutils.NewConfigValidationError(path,
			errors.Errorf("chain_bits must be between 0 and %d, got %d", MaxChainBits, cfg.ChainBits))
	}
	if cfg.MinBits < 0 || cfg.MinBits > MaxChainBits {
		return goutils.NewConfigValidationError(path,
			errors.Errorf("min_bits must be between 0 and %d, got %d", MaxChainBits, cfg.MinBits))
	}
	return nil
}

// Bus is the authoritative copy of the chain's output word. Every
// read-modify-write of the word, together with the transmit that commits it,
// happens under one lock; two axes stepping at the same time interleave at
// per-step granularity and never observe each other's partial updates.
//
// A Bus is an ordinary value with no package-level state, so independent
// buses can coexist, one per physical chain.
type Bus struct {
	transmitter Transmitter
	chainBits   int
	minBits     int
	logger      golog.Logger

	mu      sync.Mutex
	word    uint64
	slots   map[int]bool
	maxSlot int
}

// Slot is one axis's claim on a 4-bit slice of the word. Holding a Slot is
// the only way to write to the bus, which confines every writer to its own
// slice by construction.
type Slot struct {
	bus       *Bus
	index     int
	bitOffset int
}

// New returns a Bus over the given transmitter.
func New(transmitter Transmitter, cfg Config, logger golog.Logger) (*Bus, error) {
	if transmitter == nil {
		return nil, errors.New("bus needs a transmitter")
	}
	if err := cfg.Validate("bus"); err != nil {
		return nil, err
	}
	chainBits := cfg.ChainBits
	if chainBits == 0 {
		chainBits = DefaultChainBits
	}
	minBits := cfg.MinBits
	if minBits == 0 {
		minBits = DefaultMinBits
	}
	if minBits > chainBits {
		return nil, errors.Errorf("min_bits %d exceeds chain_bits %d", minBits, chainBits)
	}
	return &Bus{
		transmitter: transmitter,
		chainBits:   chainBits,
		minBits:     minBits,
		logger:      logger,
		slots:       map[int]bool{},
		maxSlot:     -1,
	}, nil
}

// AllocateSlot claims the 4-bit slice starting at bit 4*index. Indices are
// caller supplied so that wiring is explicit and independent of construction
// order; allocating the same index twice or an index past the end of the
// chain is an error.
func (b *Bus) AllocateSlot(index int) (*Slot, error) {
	if index < 0 {
		return nil, errors.Errorf("slot index must be non-negative, got %d", index)
	}
	bitOffset := SlotBits * index
	if bitOffset+SlotBits > b.chainBits {
		return nil, errors.Errorf("slot %d needs bits [%d,%d) but the chain only has %d",
			index, bitOffset, bitOffset+SlotBits, b.chainBits)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.slots[index] {
		return nil, errors.Errorf("slot %d already allocated", index)
	}
	b.slots[index] = true
	if index > b.maxSlot {
		b.maxSlot = index
	}
	b.logger.Debugf("allocated bus slot %d (bits [%d,%d))", index, bitOffset, bitOffset+SlotBits)
	return &Slot{bus: b, index: index, bitOffset: bitOffset}, nil
}

// Apply merges nibble into this slot's slice of the word and transmits the
// result. On return the physical chain reflects the new word and no other
// slot's bits have changed.
func (s *Slot) Apply(ctx context.Context, nibble uint8) error {
	if nibble > 0xF {
		return errors.Errorf("nibble must fit in %d bits, got %#x", SlotBits, nibble)
	}
	b := s.bus

	b.mu.Lock()
	defer b.mu.Unlock()

	mask := uint64(0xF) << s.bitOffset
	b.word = (b.word &^ mask) | uint64(nibble)<<s.bitOffset
	return b.transmitter.Transmit(ctx, b.word, b.transmitWidthLocked())
}

// Index returns the slot's axis index.
func (s *Slot) Index() int {
	return s.index
}

// Word returns a snapshot of the combined output word.
func (b *Bus) Word() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.word
}

// TransmitWidth returns how many bits the next transmit will carry: enough to
// cover every allocated slot, but never less than the configured minimum.
func (b *Bus) TransmitWidth() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.transmitWidthLocked()
}

func (b *Bus) transmitWidthLocked() int {
	width := SlotBits * (b.maxSlot + 1)
	if width < b.minBits {
		width = b.minBits
	}
	return width
}

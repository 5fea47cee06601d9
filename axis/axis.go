// Package axis implements one stepper motor axis on a shared shift register
// bus: angular state, a FIFO command queue drained by a worker goroutine, and
// the motion loop that steps the motor to queued targets.
package axis

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"github.com/mechbus/shiftstepper/bus"
)

const (
	// DefaultStepDelay is the pause between consecutive steps.
	DefaultStepDelay = 1200 * time.Microsecond

	// DefaultQueueSize bounds the command queue.
	DefaultQueueSize = 16

	degreesPerRotation = 360.0
)

var (
	// ErrAxisBusy is returned by Zero while a move is in flight or queued.
	ErrAxisBusy = errors.New("axis busy: moves pending")

	// ErrAxisClosed is returned once Close has been called.
	ErrAxisClosed = errors.New("axis closed")

	// ErrQueueFull reports backpressure from a full command queue.
	ErrQueueFull = errors.New("axis command queue full")
)

// Config describes one axis.
type Config struct {
	// Index picks the axis's slot on the bus: bits [4*Index, 4*Index+4).
	Index int `json:"index"`
	// StepsPerRotation is the motor's full-rotation step count.
	StepsPerRotation int `json:"steps_per_rotation"`
	// StepDelay is the pause between steps; zero means DefaultStepDelay.
	StepDelay time.Duration `json:"step_delay,omitempty"`
	// QueueSize bounds pending commands; zero means DefaultQueueSize.
	QueueSize int `json:"queue_size,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.Index < 0 {
		return goutils.NewConfigValidationError(path, errors.Errorf("index must be non-negative, got %d", cfg.Index))
	}
	if cfg.StepsPerRotation == 0 {
		return goutils.NewConfigValidationFieldRequiredError(path, "steps_per_rotation")
	}
	if cfg.StepsPerRotation < 0 {
		return goutils.NewConfigValidationError(path,
			errors.Errorf("steps_per_rotation must be positive, got %d", cfg.StepsPerRotation))
	}
	if cfg.StepDelay < 0 {
		return goutils.NewConfigValidationError(path, errors.New("step_delay must be non-negative"))
	}
	if cfg.QueueSize < 0 {
		return goutils.NewConfigValidationError(path, errors.New("queue_size must be non-negative"))
	}
	return nil
}

// Axis is one stepper motor. GoAngle and Rotate enqueue work and return
// immediately; the axis's worker goroutine executes commands one at a time in
// submission order. An in-flight move is never retargeted: later commands
// wait their turn.
type Axis struct {
	name           string
	slot           *bus.Slot
	stepsPerDegree float64
	stepDelay      time.Duration
	clk            clock.Clock
	logger         golog.Logger

	mu        sync.Mutex
	angle     float64
	stepIndex int
	moving    bool
	pending   int
	closed    bool

	commands chan *Move

	cancelCtx               context.Context
	cancel                  context.CancelFunc
	activeBackgroundWorkers sync.WaitGroup
}

// New allocates the axis's bus slot, validates the config, and starts the
// worker goroutine. The axis starts at angle 0 with step index 0.
func New(ctx context.Context, b *bus.Bus, cfg Config, name string, logger golog.Logger) (*Axis, error) {
	return newAxis(ctx, b, cfg, name, clock.New(), logger)
}

func newAxis(_ context.Context, b *bus.Bus, cfg Config, name string, clk clock.Clock, logger golog.Logger) (*Axis, error) {
	if err := cfg.Validate(name); err != nil {
		return nil, err
	}
	slot, err := b.AllocateSlot(cfg.Index)
	if err != nil {
		return nil, errors.Wrapf(err, "allocating bus slot for axis (%s)", name)
	}

	stepDelay := cfg.StepDelay
	if stepDelay == 0 {
		stepDelay = DefaultStepDelay
	}
	queueSize := cfg.QueueSize
	if queueSize == 0 {
		queueSize = DefaultQueueSize
	}

	cancelCtx, cancel := context.WithCancel(context.Background())
	a := &Axis{
		name:           name,
		slot:           slot,
		stepsPerDegree: float64(cfg.StepsPerRotation) / degreesPerRotation,
		stepDelay:      stepDelay,
		clk:            clk,
		logger:         logger,
		commands:       make(chan *Move, queueSize),
		cancelCtx:      cancelCtx,
		cancel:         cancel,
	}

	a.activeBackgroundWorkers.Add(1)
	goutils.ManagedGo(a.runWorker, a.activeBackgroundWorkers.Done)
	return a, nil
}

// GoAngle enqueues a move to the target angle in degrees along the shortest
// rotational path. The target may lie outside [0, 360); it is folded into
// that range. Non-finite targets are rejected before anything is enqueued.
func (a *Axis) GoAngle(target float64) (*Move, error) {
	if !isFinite(target) {
		return nil, errors.Errorf("target angle must be finite, got %v", target)
	}
	return a.enqueue(&Move{kind: moveAbsolute, value: target, done: make(chan struct{})})
}

// Rotate enqueues a relative move of delta degrees, positive or negative.
func (a *Axis) Rotate(delta float64) (*Move, error) {
	if !isFinite(delta) {
		return nil, errors.Errorf("rotation delta must be finite, got %v", delta)
	}
	return a.enqueue(&Move{kind: moveRelative, value: delta, done: make(chan struct{})})
}

func (a *Axis) enqueue(m *Move) (*Move, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, ErrAxisClosed
	}
	select {
	case a.commands <- m:
		a.pending++
		return m, nil
	default:
		return nil, ErrQueueFull
	}
}

// Zero stamps the current position as the new origin: angle 0, step index 0.
// It only applies while the axis is idle; with a move in flight or queued it
// returns ErrAxisBusy rather than flushing accepted commands. Idempotent.
func (a *Axis) Zero(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrAxisClosed
	}
	if a.pending > 0 {
		return ErrAxisBusy
	}
	a.angle = 0
	a.stepIndex = 0
	a.logger.Debugf("axis (%s) zeroed", a.name)
	return nil
}

// CurrentAngle returns a snapshot of the axis angle in [0, 360). It never
// blocks on motion; mid-move it reports the position as of the last step.
func (a *Axis) CurrentAngle() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.angle
}

// IsMoving returns whether a move is currently executing.
func (a *Axis) IsMoving() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.moving
}

// Close stops the worker. An in-flight move aborts at its next inter-step
// check and queued moves fail with ErrAxisClosed. The axis's last committed
// nibble stays latched on the bus. Idempotent.
func (a *Axis) Close(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	a.cancel()
	a.activeBackgroundWorkers.Wait()
	return nil
}

func (a *Axis) runWorker() {
	for {
		select {
		case <-a.cancelCtx.Done():
			a.failPending()
			return
		case m := <-a.commands:
			if a.cancelCtx.Err() != nil {
				a.finish(m, ErrAxisClosed)
				continue
			}
			a.finish(m, a.execute(a.cancelCtx, m))
		}
	}
}

// failPending drains commands the worker will never run.
func (a *Axis) failPending() {
	for {
		select {
		case m := <-a.commands:
			a.finish(m, ErrAxisClosed)
		default:
			return
		}
	}
}

func (a *Axis) execute(ctx context.Context, m *Move) error {
	a.mu.Lock()
	a.moving = true
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		a.moving = false
		a.mu.Unlock()
	}()

	switch m.kind {
	case moveAbsolute:
		return a.goToAngle(ctx, m.value)
	case moveRelative:
		return a.rotateRelative(ctx, m.value)
	default:
		return errors.Errorf("unknown move kind %d", m.kind)
	}
}

// finish releases the move's queue slot before resolving its future, so a
// caller that sees Done can immediately Zero an otherwise idle axis.
func (a *Axis) finish(m *Move, err error) {
	a.mu.Lock()
	a.pending--
	a.mu.Unlock()
	m.err = err
	close(m.done)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

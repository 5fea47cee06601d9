package axis

import "context"

type moveKind int

const (
	moveAbsolute moveKind = iota
	moveRelative
)

// Move is the completion handle for one queued command, so callers can await
// a move instead of polling the angle.
type Move struct {
	kind  moveKind
	value float64
	done  chan struct{}
	err   error
}

// Done returns a channel closed once the move has finished or failed.
func (m *Move) Done() <-chan struct{} {
	return m.done
}

// Err returns the move's outcome. It is nil until Done is closed, and nil
// after a successful move.
func (m *Move) Err() error {
	select {
	case <-m.done:
		return m.err
	default:
		return nil
	}
}

// Wait blocks until the move finishes or ctx is done.
func (m *Move) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-m.done:
		return m.err
	}
}

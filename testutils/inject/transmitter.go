package inject

import "context"

// Transmitter is an injectable bus.Transmitter.
type Transmitter struct {
	TransmitFunc func(ctx context.Context, word uint64, bits int) error
}

// Transmit calls TransmitFunc, or is a no-op when TransmitFunc is nil.
func (t *Transmitter) Transmit(ctx context.Context, word uint64, bits int) error {
	if t.TransmitFunc == nil {
		return nil
	}
	return t.TransmitFunc(ctx, word, bits)
}

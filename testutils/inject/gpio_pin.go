// Package inject provides func-field test doubles for the hardware-facing
// interfaces of this module.
package inject

import "context"

// GPIOPin is an injectable gpio.Pin.
type GPIOPin struct {
	SetFunc func(ctx context.Context, high bool) error
}

// Set calls SetFunc, or is a no-op when SetFunc is nil.
func (p *GPIOPin) Set(ctx context.Context, high bool) error {
	if p.SetFunc == nil {
		return nil
	}
	return p.SetFunc(ctx, high)
}

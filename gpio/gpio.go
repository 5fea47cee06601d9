// Package gpio defines the output pin interface the shift register chain is
// driven through.
package gpio

import "context"

// Pin is a single digital output line. Implementations come from whatever
// platform layer owns pin setup (sysfs, a HAT driver, an I/O expander);
// tests use the func-field fake in testutils/inject.
type Pin interface {
	// Set drives the pin high or low.
	Set(ctx context.Context, high bool) error
}

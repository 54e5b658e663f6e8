package scope

import "errors"

var (
	// ErrInvalidReading marks a malformed reading. The reading is discarded
	// and the stream continues.
	ErrInvalidReading = errors.New("invalid reading")

	// ErrOutOfRange marks a valid reading beyond the configured max range.
	ErrOutOfRange = errors.New("reading out of range")

	// ErrIngressOverrun marks samples dropped because the intake queue was full.
	ErrIngressOverrun = errors.New("ingress overrun")

	// ErrInvalidConfig is wrapped by every DisplayConfig validation failure.
	ErrInvalidConfig = errors.New("invalid display config")

	// ErrStopped is returned by scheduler operations after Stop.
	ErrStopped = errors.New("scheduler stopped")
)

package client

import "errors"

// Client errors.
var (
	// ErrInvalidConfig is returned for configurations that fail validation.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrVolumeUnknown is returned by volume steps before the amplifier has
	// reported its volume. The client queries the volume in that case, so a
	// retry shortly after is expected to succeed.
	ErrVolumeUnknown = errors.New("volume not yet known")
)

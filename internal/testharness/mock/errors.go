package mock

import "errors"

// Mock package errors.
var (
	// ErrRefused is returned by Dial while the amplifier refuses connections.
	ErrRefused = errors.New("connection refused")

	// ErrTimeout is returned when an expected event does not happen in time.
	ErrTimeout = errors.New("timed out")

	// ErrNotConnected is returned when operating on a closed session.
	ErrNotConnected = errors.New("amplifier not connected")
)

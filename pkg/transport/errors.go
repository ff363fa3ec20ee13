package transport

import "errors"

// Transport errors.
var (
	// ErrConnectionClosed is returned by Send and ReadLoop after Close.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrLineTooLong is returned by ReadLine for a line longer than the
	// configured maximum. The line has been consumed; reading can continue.
	ErrLineTooLong = errors.New("line too long")

	// ErrEmptyLine is returned when sending an empty line.
	ErrEmptyLine = errors.New("line is empty")

	// ErrEmbeddedNewline is returned when a line to send contains a line
	// break before its end.
	ErrEmbeddedNewline = errors.New("line contains embedded newline")
)

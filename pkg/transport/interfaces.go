package transport

import "net"

// LineSender sends protocol lines.
// Implemented by Conn and by connection.Manager.
type LineSender interface {
	Send(line string) error
}

// LineConn is a live line-oriented session.
type LineConn interface {
	LineSender

	// ID returns the connection identifier used in protocol logs.
	ID() string

	// RemoteAddr returns the peer address.
	RemoteAddr() net.Addr

	// ReadLoop delivers lines until the connection fails or is closed.
	ReadLoop(handler func(line string)) error

	// Close closes the connection.
	Close() error
}

// Compile-time interface satisfaction checks.
var (
	_ LineConn = (*Conn)(nil)
	_ Dialer   = NetDialer{}
	_ Dialer   = DialerFunc(nil)
)

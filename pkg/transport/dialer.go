package transport

import (
	"context"
	"fmt"
	"net"
	"time"
)

// Dialer defaults.
const (
	// DefaultConnectTimeout bounds a single dial attempt.
	DefaultConnectTimeout = 10 * time.Second

	// DefaultTCPKeepAlive is the OS-level TCP keep-alive period.
	DefaultTCPKeepAlive = 30 * time.Second
)

// Dialer opens the socket to an amplifier.
type Dialer interface {
	Dial(ctx context.Context, address string) (net.Conn, error)
}

// NetDialer dials plain TCP.
type NetDialer struct {
	// Timeout bounds the dial when ctx carries no deadline
	// (default: DefaultConnectTimeout).
	Timeout time.Duration

	// KeepAlive is the TCP keep-alive period (default: DefaultTCPKeepAlive,
	// negative disables).
	KeepAlive time.Duration
}

// Dial connects to address ("host:port").
func (d NetDialer) Dial(ctx context.Context, address string) (net.Conn, error) {
	timeout := d.Timeout
	if timeout == 0 {
		timeout = DefaultConnectTimeout
	}
	keepAlive := d.KeepAlive
	if keepAlive == 0 {
		keepAlive = DefaultTCPKeepAlive
	}

	// Apply timeout from config if context doesn't have one
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	dialer := &net.Dialer{KeepAlive: keepAlive}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}
	return conn, nil
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, address string) (net.Conn, error)

// Dial calls f.
func (f DialerFunc) Dial(ctx context.Context, address string) (net.Conn, error) {
	return f(ctx, address)
}

package transport

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nadtcp/nadtcp-go/pkg/log"
)

// ConnConfig configures a Conn.
type ConnConfig struct {
	// MaxLineLength is the maximum inbound line length
	// (default: DefaultMaxLineLength).
	MaxLineLength int

	// WriteTimeout bounds each Send (0 = no timeout).
	WriteTimeout time.Duration

	// Model tags protocol log events.
	Model string

	// ProtocolLogger receives every line in both directions (nil = off).
	ProtocolLogger log.Logger
}

// Conn is one TCP session with an amplifier.
type Conn struct {
	id     string
	conn   net.Conn
	config ConnConfig
	reader *LineReader
	writer *LineWriter

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewConn wraps an established socket. The Conn takes ownership of c.
func NewConn(c net.Conn, config ConnConfig) *Conn {
	if config.MaxLineLength <= 0 {
		config.MaxLineLength = DefaultMaxLineLength
	}

	conn := &Conn{
		id:     uuid.New().String(),
		conn:   c,
		config: config,
		reader: NewLineReaderWithMax(c, config.MaxLineLength),
		writer: NewLineWriter(c),
	}

	if config.ProtocolLogger != nil {
		remote := remoteString(c)
		conn.reader.SetLogger(config.ProtocolLogger, conn.id, remote, config.Model)
		conn.writer.SetLogger(config.ProtocolLogger, conn.id, remote, config.Model)
	}

	return conn
}

// ID returns the connection's UUID.
func (c *Conn) ID() string {
	return c.id
}

// RemoteAddr returns the amplifier's address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// IsClosed reports whether Close has been called.
func (c *Conn) IsClosed() bool {
	return c.closed.Load()
}

// Send writes one line. Concurrent calls are serialized.
func (c *Conn) Send(line string) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}

	if c.config.WriteTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout)); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}

	if err := c.writer.WriteLine(line); err != nil {
		if c.closed.Load() {
			return ErrConnectionClosed
		}
		return err
	}
	return nil
}

// ReadLoop reads lines and passes each to handler until the socket fails.
// It returns the terminating error: ErrConnectionClosed after Close, the
// read error (io.EOF on peer close) otherwise. Overlong lines are skipped.
// ReadLoop must be called from a single goroutine.
func (c *Conn) ReadLoop(handler func(line string)) error {
	for {
		line, err := c.reader.ReadLine()
		if err != nil {
			if errors.Is(err, ErrLineTooLong) {
				continue
			}
			if c.closed.Load() {
				return ErrConnectionClosed
			}
			return err
		}
		handler(line)
	}
}

// Close closes the socket. Safe to call multiple times.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

func remoteString(c net.Conn) string {
	if addr := c.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

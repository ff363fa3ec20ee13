// Package mock provides a fake amplifier and a manual clock for testing.
package mock

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nadtcp/nadtcp-go/pkg/transport"
)

// DefaultZone is the zone prefix the fake amplifier answers to.
const DefaultZone = "Main"

// stateKeys is the order of the aggregate "Main?" report.
var stateKeys = []string{"Power", "Volume", "Mute", "Source"}

// Amplifier is a fake NAD amplifier. It implements transport.Dialer: every
// Dial creates an in-memory session whose far end behaves like the device,
// answering queries and echoing accepted settings as reports.
type Amplifier struct {
	// Zone is the prefix used on the wire.
	Zone string

	// OnLine, if set, replaces the built-in behavior. It receives every
	// inbound line and returns the lines to report back.
	OnLine func(line string) []string

	mu       sync.RWMutex
	state    map[string]string
	refuse   bool
	sessions []*Session
	received []string

	dials    atomic.Int32
	accepted chan *Session
}

// NewAmplifier creates a fake amplifier that is on, at -40 dB, unmuted,
// playing TV.
func NewAmplifier() *Amplifier {
	return &Amplifier{
		Zone: DefaultZone,
		state: map[string]string{
			"Power":  "On",
			"Volume": "-40",
			"Mute":   "Off",
			"Source": "TV",
		},
		accepted: make(chan *Session, 16),
	}
}

var _ transport.Dialer = (*Amplifier)(nil)

// Dial implements transport.Dialer.
func (a *Amplifier) Dial(ctx context.Context, address string) (net.Conn, error) {
	a.dials.Add(1)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	if a.refuse {
		a.mu.Unlock()
		return nil, fmt.Errorf("dial %s: %w", address, ErrRefused)
	}
	client, server := net.Pipe()
	s := &Session{
		amp:    a,
		conn:   server,
		client: &faultConn{Conn: client},
		lines:  make(chan string, 256),
		done:   make(chan struct{}),
	}
	a.sessions = append(a.sessions, s)
	a.mu.Unlock()

	go s.serve()
	select {
	case a.accepted <- s:
	default:
	}
	return s.client, nil
}

// Dials returns the number of Dial calls so far.
func (a *Amplifier) Dials() int {
	return int(a.dials.Load())
}

// SetRefuse makes Dial fail (true) or succeed (false).
func (a *Amplifier) SetRefuse(refuse bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.refuse = refuse
}

// SetState sets a device value without reporting it.
func (a *Amplifier) SetState(key, value string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state[key] = value
}

// GetState returns a device value.
func (a *Amplifier) GetState(key string) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	v, ok := a.state[key]
	return v, ok
}

// Received returns every line received across all sessions.
func (a *Amplifier) Received() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	result := make([]string, len(a.received))
	copy(result, a.received)
	return result
}

// ClearReceived forgets received lines.
func (a *Amplifier) ClearReceived() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.received = a.received[:0]
}

// Accept waits for the next session created by Dial.
func (a *Amplifier) Accept(timeout time.Duration) (*Session, error) {
	select {
	case s := <-a.accepted:
		return s, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("accept: %w", ErrTimeout)
	}
}

// Current returns the most recent session, or nil.
func (a *Amplifier) Current() *Session {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if len(a.sessions) == 0 {
		return nil
	}
	return a.sessions[len(a.sessions)-1]
}

// handle applies one inbound line the way the device does and returns the
// reports to send back.
func (a *Amplifier) handle(line string) []string {
	a.mu.Lock()
	a.received = append(a.received, line)
	onLine := a.OnLine
	a.mu.Unlock()

	if onLine != nil {
		return onLine(line)
	}

	zone := a.Zone
	if line == zone+"?" {
		a.mu.RLock()
		defer a.mu.RUnlock()
		reports := make([]string, 0, len(stateKeys))
		for _, k := range stateKeys {
			reports = append(reports, zone+"."+k+"="+a.state[k])
		}
		return reports
	}

	rest, ok := strings.CutPrefix(line, zone+".")
	if !ok {
		return nil
	}

	if key, ok := strings.CutSuffix(rest, "?"); ok {
		a.mu.RLock()
		defer a.mu.RUnlock()
		if v, ok := a.state[key]; ok {
			return []string{zone + "." + key + "=" + v}
		}
		return nil
	}

	key, value, ok := strings.Cut(rest, "=")
	if !ok {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.state[key]; !ok {
		return nil
	}
	a.state[key] = value
	return []string{zone + "." + key + "=" + value}
}

// Session is the amplifier's end of one connection.
type Session struct {
	amp    *Amplifier
	conn   net.Conn
	client *faultConn
	lines  chan string

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

func (s *Session) serve() {
	defer close(s.done)

	reader := bufio.NewReader(s.conn)
	for {
		raw, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		line := strings.TrimRight(raw, "\r\n")

		select {
		case s.lines <- line:
		default:
		}

		for _, report := range s.amp.handle(line) {
			if err := s.Report(report); err != nil {
				return
			}
		}
	}
}

// Report writes a line to the client as if the device emitted it.
func (s *Session) Report(line string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}
	_, err := io.WriteString(s.conn, line)
	return err
}

// ReportRaw writes bytes to the client unmodified.
func (s *Session) ReportRaw(data string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := io.WriteString(s.conn, data)
	return err
}

// Expect waits for the next line the client sends.
func (s *Session) Expect(timeout time.Duration) (string, error) {
	select {
	case line := <-s.lines:
		return line, nil
	case <-time.After(timeout):
		return "", fmt.Errorf("expect line: %w", ErrTimeout)
	}
}

// FailWrites makes the client's writes fail while reads keep working,
// like a socket whose send path broke first.
func (s *Session) FailWrites() {
	s.client.failWrites.Store(true)
}

// Close drops the session from the amplifier side.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.conn.Close()
	})
	return err
}

// Done is closed once the session has ended.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// faultConn is the client's end of a session with injectable write errors.
type faultConn struct {
	net.Conn
	failWrites atomic.Bool
}

func (c *faultConn) Write(b []byte) (int, error) {
	if c.failWrites.Load() {
		return 0, &net.OpError{Op: "write", Net: "pipe", Err: io.ErrClosedPipe}
	}
	return c.Conn.Write(b)
}

package connection

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/nadtcp/nadtcp-go/pkg/log"
	"github.com/nadtcp/nadtcp-go/pkg/transport"
)

// Connection errors.
var (
	ErrAlreadyConnected = errors.New("already connected")
	ErrNotConnected     = errors.New("not connected")
	ErrNoAddress        = errors.New("no address configured")
)

// State represents the connection state.
type State uint8

const (
	// StateDisconnected indicates no session; a retry may be pending.
	StateDisconnected State = iota

	// StateConnecting indicates a dial is in progress.
	StateConnecting

	// StateConnected indicates a live session.
	StateConnected

	// StateClosed indicates the manager was shut down by Disconnect.
	StateClosed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Config configures a Manager.
type Config struct {
	// Address is the amplifier's "host:port".
	Address string

	// Dialer opens sockets (default: transport.NetDialer).
	Dialer transport.Dialer

	// Clock schedules reconnect timers (default: SystemClock).
	Clock Clock

	// ReconnectInterval is the fixed delay between attempts
	// (default: DefaultReconnectInterval).
	ReconnectInterval time.Duration

	// ConnectTimeout bounds each dial (default: transport.DefaultConnectTimeout).
	ConnectTimeout time.Duration

	// WriteTimeout bounds each write (0 = no timeout).
	WriteTimeout time.Duration

	// MaxLineLength bounds inbound lines (default: transport.DefaultMaxLineLength).
	MaxLineLength int

	// KeepAliveInterval enables the probe poller while connected (0 = off).
	KeepAliveInterval time.Duration

	// KeepAliveProbe is the line sent by the poller.
	KeepAliveProbe string

	// Model tags protocol log events.
	Model string

	// Logger is the operational logger (nil = silent).
	Logger *slog.Logger

	// ProtocolLogger captures lines and state changes (nil = off).
	ProtocolLogger log.Logger
}

// DefaultConfig returns a configuration with default timings.
func DefaultConfig() Config {
	return Config{
		ReconnectInterval: DefaultReconnectInterval,
		ConnectTimeout:    transport.DefaultConnectTimeout,
		MaxLineLength:     transport.DefaultMaxLineLength,
	}
}

// Manager manages the connection lifecycle with automatic reconnection.
type Manager struct {
	config Config
	retry  *Retry

	mu sync.Mutex

	// Current state
	state   State
	running bool

	// Live session
	conn      *transport.Conn
	readDone  chan struct{}
	keepAlive *transport.KeepAlive

	// Pending reconnect timer and the generation it belongs to. Any
	// transition that invalidates pending work bumps generation.
	timer      Timer
	generation uint64

	// Lifetime of one Connect..Disconnect run
	run       uint64
	runCtx    context.Context
	runCancel context.CancelFunc
	stopWatch func() bool

	// Callbacks
	cbMu           sync.RWMutex
	onLine         func(line string)
	onStateChange  func(oldState, newState State)
	onConnected    func()
	onDisconnected func(err error)
	onReconnecting func(attempt int, delay time.Duration)
}

// NewManager creates a connection manager. It does nothing until Connect.
func NewManager(config Config) *Manager {
	if config.Dialer == nil {
		config.Dialer = transport.NetDialer{Timeout: config.ConnectTimeout}
	}
	if config.Clock == nil {
		config.Clock = SystemClock
	}
	if config.ReconnectInterval <= 0 {
		config.ReconnectInterval = DefaultReconnectInterval
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = transport.DefaultConnectTimeout
	}
	if config.MaxLineLength <= 0 {
		config.MaxLineLength = transport.DefaultMaxLineLength
	}

	return &Manager{
		config: config,
		retry:  NewRetry(config.ReconnectInterval),
		state:  StateDisconnected,
	}
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsConnected returns true if a session is live.
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateConnected
}

// ConnectionID returns the live session's ID, or "" when not connected.
func (m *Manager) ConnectionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		return ""
	}
	return m.conn.ID()
}

// ReconnectAttempts returns the number of retries since the last success.
func (m *Manager) ReconnectAttempts() int {
	return m.retry.Attempts()
}

// Address returns the configured amplifier address.
func (m *Manager) Address() string {
	return m.config.Address
}

// Connect starts the manager and makes the first attempt synchronously.
//
// A failed attempt is not an error: it is logged and a retry is scheduled.
// Connect only fails on misuse. When ctx is done the manager shuts down as
// if Disconnect had been called.
func (m *Manager) Connect(ctx context.Context) error {
	if m.config.Address == "" {
		return ErrNoAddress
	}

	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return ErrAlreadyConnected
	}
	m.running = true
	m.generation++
	gen := m.generation
	m.run++
	run := m.run
	m.runCtx, m.runCancel = context.WithCancel(context.Background())
	m.stopWatch = context.AfterFunc(ctx, func() { m.shutdown(run) })
	m.retry.Reset()
	m.mu.Unlock()

	m.attempt(gen)
	return nil
}

// Disconnect shuts the manager down: the pending retry is cancelled, the
// socket closed and the read loop drained. State becomes CLOSED.
// Safe to call multiple times. Must not be called from a Manager callback.
func (m *Manager) Disconnect() {
	m.shutdown(0)
}

// shutdown ends run, or whatever run is current if run is 0. A context
// watcher from an earlier run must not stop a later one.
func (m *Manager) shutdown(run uint64) {
	m.mu.Lock()
	if !m.running || (run != 0 && run != m.run) {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.generation++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}

	conn := m.conn
	done := m.readDone
	ka := m.keepAlive
	m.conn, m.readDone, m.keepAlive = nil, nil, nil

	oldState := m.state
	m.state = StateClosed
	cancel, stop := m.runCancel, m.stopWatch
	m.mu.Unlock()

	stop()
	cancel()
	if ka != nil {
		ka.Stop()
	}
	connID := ""
	if conn != nil {
		connID = conn.ID()
		_ = conn.Close()
	}
	if done != nil {
		<-done
	}

	m.logInfo("disconnected", "address", m.config.Address)
	m.notifyStateChange(oldState, StateClosed, connID, "shutdown")
	if oldState == StateConnected {
		m.notifyDisconnected(nil)
	}
}

// Send writes one line on the live session.
//
// Returns ErrNotConnected without side effects when there is no session.
// A write failure tears the session down, schedules a retry and is returned.
func (m *Manager) Send(line string) error {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	err := conn.Send(line)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, transport.ErrEmptyLine), errors.Is(err, transport.ErrEmbeddedNewline):
		return err
	case errors.Is(err, transport.ErrConnectionClosed):
		// Lost the race with a loss or Disconnect.
		return ErrNotConnected
	}

	m.handleLoss(conn, err)
	return err
}

// attempt performs one connection attempt for generation gen.
func (m *Manager) attempt(gen uint64) {
	m.mu.Lock()
	if gen != m.generation || !m.running || m.state == StateConnected {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	oldState := m.state
	m.state = StateConnecting
	runCtx := m.runCtx
	m.mu.Unlock()

	m.notifyStateChange(oldState, StateConnecting, "", "")
	m.logDebug("connecting", "address", m.config.Address, "attempt", m.retry.Attempts()+1)

	dialCtx, cancel := context.WithTimeout(runCtx, m.config.ConnectTimeout)
	nc, err := m.config.Dialer.Dial(dialCtx, m.config.Address)
	cancel()

	m.mu.Lock()
	if gen != m.generation || m.state != StateConnecting {
		// Disconnect won the race.
		m.mu.Unlock()
		if nc != nil {
			_ = nc.Close()
		}
		return
	}

	if err != nil {
		m.state = StateDisconnected
		delay, attempts := m.armLocked()
		m.mu.Unlock()

		m.logWarn("connect failed", "address", m.config.Address, "error", err, "retry_in", delay)
		m.notifyStateChange(StateConnecting, StateDisconnected, "", err.Error())
		m.notifyReconnecting(attempts, delay)
		return
	}

	conn := transport.NewConn(nc, transport.ConnConfig{
		MaxLineLength:  m.config.MaxLineLength,
		WriteTimeout:   m.config.WriteTimeout,
		Model:          m.config.Model,
		ProtocolLogger: m.config.ProtocolLogger,
	})
	done := make(chan struct{})
	var ka *transport.KeepAlive
	if m.config.KeepAliveInterval > 0 && m.config.KeepAliveProbe != "" {
		probe := m.config.KeepAliveProbe
		ka = transport.NewKeepAlive(m.config.KeepAliveInterval,
			func() error { return conn.Send(probe) },
			func(err error) { m.handleLoss(conn, err) },
		)
	}

	m.conn = conn
	m.readDone = done
	m.keepAlive = ka
	m.state = StateConnected
	m.retry.Reset()
	// Started under the lock so a loss reported from here on always finds
	// and stops a running poller.
	if ka != nil {
		ka.Start(runCtx)
	}
	m.mu.Unlock()

	m.logInfo("connected", "address", m.config.Address, "conn_id", conn.ID())
	m.notifyStateChange(StateConnecting, StateConnected, conn.ID(), "")
	m.notifyConnected()

	go m.readLoop(conn, done)
}

// armLocked schedules the next attempt, replacing any pending timer.
// Caller must hold m.mu.
func (m *Manager) armLocked() (time.Duration, int) {
	m.generation++
	gen := m.generation
	if m.timer != nil {
		m.timer.Stop()
	}

	delay := m.retry.Next()
	m.timer = m.config.Clock.AfterFunc(delay, func() {
		m.attempt(gen)
	})
	return delay, m.retry.Attempts()
}

// readLoop feeds inbound lines to the line handler until the socket fails.
func (m *Manager) readLoop(conn *transport.Conn, done chan struct{}) {
	defer close(done)

	err := conn.ReadLoop(m.handleLine)
	m.handleLoss(conn, err)
}

func (m *Manager) handleLine(line string) {
	m.cbMu.RLock()
	fn := m.onLine
	m.cbMu.RUnlock()

	if fn != nil {
		fn(line)
	}
}

// handleLoss tears down conn after a read or write failure. Reports about a
// connection that is no longer current are ignored, so each session is
// reported lost at most once.
func (m *Manager) handleLoss(conn *transport.Conn, err error) {
	m.mu.Lock()
	if m.conn != conn || m.state != StateConnected {
		m.mu.Unlock()
		return
	}
	ka := m.keepAlive
	m.conn, m.readDone, m.keepAlive = nil, nil, nil
	m.state = StateDisconnected
	delay, attempts := m.armLocked()
	m.mu.Unlock()

	if ka != nil {
		ka.Stop()
	}
	_ = conn.Close()

	m.logWarn("connection lost", "address", m.config.Address, "conn_id", conn.ID(), "error", err, "retry_in", delay)
	reason := ""
	if err != nil {
		reason = err.Error()
	}
	m.notifyStateChange(StateConnected, StateDisconnected, conn.ID(), reason)
	m.notifyDisconnected(err)
	m.notifyReconnecting(attempts, delay)
}

// SetLineHandler sets the callback for inbound lines.
func (m *Manager) SetLineHandler(fn func(line string)) {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	m.onLine = fn
}

// OnStateChange sets a callback for state changes.
func (m *Manager) OnStateChange(fn func(oldState, newState State)) {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	m.onStateChange = fn
}

// OnConnected sets a callback for successful connection.
func (m *Manager) OnConnected(fn func()) {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	m.onConnected = fn
}

// OnDisconnected sets a callback for the end of a session. err is nil
// after Disconnect and the failure cause otherwise.
func (m *Manager) OnDisconnected(fn func(err error)) {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	m.onDisconnected = fn
}

// OnReconnecting sets a callback for each scheduled retry.
func (m *Manager) OnReconnecting(fn func(attempt int, delay time.Duration)) {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	m.onReconnecting = fn
}

func (m *Manager) notifyStateChange(oldState, newState State, connID, reason string) {
	if m.config.ProtocolLogger != nil {
		m.config.ProtocolLogger.Log(log.Event{
			Timestamp:    time.Now(),
			ConnectionID: connID,
			Layer:        log.LayerTransport,
			Category:     log.CategoryState,
			RemoteAddr:   m.config.Address,
			Model:        m.config.Model,
			StateChange: &log.StateChangeEvent{
				Entity:   log.StateEntityConnection,
				OldState: oldState.String(),
				NewState: newState.String(),
				Reason:   reason,
			},
		})
	}

	m.cbMu.RLock()
	fn := m.onStateChange
	m.cbMu.RUnlock()
	if fn != nil {
		fn(oldState, newState)
	}
}

func (m *Manager) notifyConnected() {
	m.cbMu.RLock()
	fn := m.onConnected
	m.cbMu.RUnlock()
	if fn != nil {
		fn()
	}
}

func (m *Manager) notifyDisconnected(err error) {
	m.cbMu.RLock()
	fn := m.onDisconnected
	m.cbMu.RUnlock()
	if fn != nil {
		fn(err)
	}
}

func (m *Manager) notifyReconnecting(attempt int, delay time.Duration) {
	m.cbMu.RLock()
	fn := m.onReconnecting
	m.cbMu.RUnlock()
	if fn != nil {
		fn(attempt, delay)
	}
}

func (m *Manager) logDebug(msg string, args ...any) {
	if m.config.Logger != nil {
		m.config.Logger.Debug(msg, args...)
	}
}

func (m *Manager) logInfo(msg string, args ...any) {
	if m.config.Logger != nil {
		m.config.Logger.Info(msg, args...)
	}
}

func (m *Manager) logWarn(msg string, args ...any) {
	if m.config.Logger != nil {
		m.config.Logger.Warn(msg, args...)
	}
}

package client

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nadtcp/nadtcp-go/pkg/connection"
	"github.com/nadtcp/nadtcp-go/pkg/log"
	"github.com/nadtcp/nadtcp-go/pkg/model"
	"github.com/nadtcp/nadtcp-go/pkg/state"
	"github.com/nadtcp/nadtcp-go/pkg/wire"
)

// Client controls one amplifier over a persistent TCP session.
type Client struct {
	config  Config
	model   *model.Model
	codec   *wire.Codec
	store   *state.Store
	manager *connection.Manager

	// Logger for debug output (optional)
	logger *slog.Logger

	// Protocol logger for structured event capture (optional)
	protocolLogger log.Logger

	connMu        sync.RWMutex
	connListeners []connListener
	nextConnID    uint64
}

type connListener struct {
	id uint64
	fn func(connection.State)
}

// NewClient creates a client. It does not connect; call Connect.
func NewClient(config Config) (*Client, error) {
	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	m, err := config.Catalog.Lookup(config.Model)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if !m.Volume.Contains(config.MinVolume) || !m.Volume.Contains(config.MaxVolume) {
		return nil, fmt.Errorf("%w: volume bounds [%d, %d] outside %s range [%d, %d]",
			ErrInvalidConfig, config.MinVolume, config.MaxVolume, m.ID, m.Volume.Min, m.Volume.Max)
	}

	port := config.Port
	if port == 0 {
		port = m.Port
	}

	codec := wire.NewCodec(m)
	probe, err := codec.Encode(wire.Query(wire.KeyPower))
	if err != nil {
		return nil, err
	}

	c := &Client{
		config:         config,
		model:          m,
		codec:          codec,
		store:          state.NewStore(),
		logger:         config.Logger,
		protocolLogger: config.ProtocolLogger,
	}

	c.manager = connection.NewManager(connection.Config{
		Address:           net.JoinHostPort(config.Host, strconv.Itoa(port)),
		Dialer:            config.Dialer,
		Clock:             config.Clock,
		ReconnectInterval: config.ReconnectInterval,
		ConnectTimeout:    config.ConnectTimeout,
		WriteTimeout:      config.WriteTimeout,
		KeepAliveInterval: config.KeepAliveInterval,
		KeepAliveProbe:    strings.TrimSuffix(probe, wire.Terminator),
		Model:             m.ID,
		Logger:            config.Logger,
		ProtocolLogger:    config.ProtocolLogger,
	})
	c.manager.SetLineHandler(c.handleLine)
	c.manager.OnConnected(c.handleConnected)
	c.manager.OnStateChange(c.handleStateChange)

	return c, nil
}

// Connect starts the session. The first attempt runs before Connect returns;
// if it fails, the client keeps retrying in the background. Cancelling ctx
// has the same effect as Disconnect.
func (c *Client) Connect(ctx context.Context) error {
	return c.manager.Connect(ctx)
}

// Disconnect closes the session and stops reconnecting. The last known state
// is kept.
func (c *Client) Disconnect() {
	c.manager.Disconnect()
}

// State returns the last known amplifier state.
func (c *Client) State() state.DeviceState {
	return c.store.Snapshot()
}

// ConnectionState returns the session state.
func (c *Client) ConnectionState() connection.State {
	return c.manager.State()
}

// Address returns the amplifier's "host:port".
func (c *Client) Address() string {
	return c.manager.Address()
}

// Model returns the amplifier model.
func (c *Client) Model() *model.Model {
	return c.model
}

// AvailableSources returns the model's source labels in front-panel order.
func (c *Client) AvailableSources() []string {
	return c.model.SourceList()
}

// OnStateChanged registers fn to receive the full state after every report.
// fn runs on the connection's read loop and must not block.
func (c *Client) OnStateChanged(fn func(state.DeviceState)) (unsubscribe func()) {
	return c.store.Subscribe(fn)
}

// OnConnectionChanged registers fn to receive every session state change.
func (c *Client) OnConnectionChanged(fn func(connection.State)) (unsubscribe func()) {
	c.connMu.Lock()
	c.nextConnID++
	id := c.nextConnID
	c.connListeners = append(c.connListeners, connListener{id: id, fn: fn})
	c.connMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.connMu.Lock()
			defer c.connMu.Unlock()
			for i, l := range c.connListeners {
				if l.id == id {
					c.connListeners = append(c.connListeners[:i:i], c.connListeners[i+1:]...)
					return
				}
			}
		})
	}
}

// handleLine decodes one inbound line and applies it.
func (c *Client) handleLine(line string) {
	u, ok := c.codec.Decode(line)
	if !ok {
		c.debugLog("ignoring line", "line", line)
		c.logError("undecodable line", line)
		return
	}

	c.logMessage(log.DirectionIn, u.Key, "REPORT", wire.FormatValue(u.Value))
	before := c.store.Snapshot()
	after := c.store.Apply(u)
	c.logDeviceChange(u.Key, before, after)
}

// handleConnected asks for a full report after each (re)connect.
func (c *Client) handleConnected() {
	if err := c.QueryAll(); err != nil {
		c.debugLog("initial query failed", "error", err)
	}
}

func (c *Client) handleStateChange(_, newState connection.State) {
	c.connMu.RLock()
	listeners := make([]func(connection.State), len(c.connListeners))
	for i, l := range c.connListeners {
		listeners[i] = l.fn
	}
	c.connMu.RUnlock()

	for _, fn := range listeners {
		fn(newState)
	}
}

// debugLog logs a debug message if a logger is configured.
func (c *Client) debugLog(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

func (c *Client) logMessage(dir log.Direction, key wire.Key, op, value string) {
	if c.protocolLogger == nil {
		return
	}
	c.protocolLogger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.manager.ConnectionID(),
		Direction:    dir,
		Layer:        log.LayerWire,
		Category:     log.CategoryMessage,
		RemoteAddr:   c.manager.Address(),
		Model:        c.model.ID,
		Message:      &log.MessageEvent{Key: key.String(), Op: op, Value: value},
	})
}

func (c *Client) logError(msg, line string) {
	if c.protocolLogger == nil {
		return
	}
	c.protocolLogger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.manager.ConnectionID(),
		Direction:    log.DirectionIn,
		Layer:        log.LayerWire,
		Category:     log.CategoryError,
		RemoteAddr:   c.manager.Address(),
		Model:        c.model.ID,
		Error:        &log.ErrorEventData{Layer: log.LayerWire, Message: msg, Context: line},
	})
}

func (c *Client) logDeviceChange(key wire.Key, before, after state.DeviceState) {
	if c.protocolLogger == nil {
		return
	}
	oldValue, newValue := "unknown", "unknown"
	if v, ok := before.Value(key); ok {
		oldValue = wire.FormatValue(v)
	}
	if v, ok := after.Value(key); ok {
		newValue = wire.FormatValue(v)
	}
	if oldValue == newValue {
		return
	}
	c.protocolLogger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.manager.ConnectionID(),
		Layer:        log.LayerService,
		Category:     log.CategoryState,
		RemoteAddr:   c.manager.Address(),
		Model:        c.model.ID,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityDevice,
			OldState: key.String() + "=" + oldValue,
			NewState: key.String() + "=" + newValue,
		},
	})
}

package log

import "time"

// Event is a protocol capture event at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred.
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID identifies the TCP session (UUID). Empty for events
	// raised while no session exists.
	ConnectionID string `cbor:"2,keyasint"`

	Direction Direction `cbor:"3,keyasint"`
	Layer     Layer     `cbor:"4,keyasint"`
	Category  Category  `cbor:"5,keyasint"`

	// RemoteAddr is the amplifier address (host:port).
	RemoteAddr string `cbor:"6,keyasint,omitempty"`

	// Model is the amplifier model identifier, e.g. "C338".
	Model string `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (one of these is set).
	Line        *LineEvent        `cbor:"10,keyasint,omitempty"` // Transport layer
	Message     *MessageEvent     `cbor:"11,keyasint,omitempty"` // Wire layer
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"` // Connection/device state
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"`
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionNone marks events that are not traffic, such as state
	// changes.
	DirectionNone Direction = 0
	// DirectionIn is amplifier to client.
	DirectionIn Direction = 1
	// DirectionOut is client to amplifier.
	DirectionOut Direction = 2
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionNone:
		return "NONE"
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which layer captured the event.
type Layer uint8

const (
	// LayerTransport is the line framing layer (raw text).
	LayerTransport Layer = 0
	// LayerWire is the key/value codec layer.
	LayerWire Layer = 1
	// LayerService is the client/state layer.
	LayerService Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerService:
		return "SERVICE"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage is a protocol line or decoded message.
	CategoryMessage Category = 0
	// CategoryState is a state change.
	CategoryState Category = 1
	// CategoryError is an error.
	CategoryError Category = 2
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LineEvent captures one raw protocol line, without its terminator.
type LineEvent struct {
	Text string `cbor:"1,keyasint"`

	// Size is the number of bytes on the wire, including the terminator.
	Size int `cbor:"2,keyasint"`
}

// MessageEvent captures a decoded inbound update or an encoded outbound
// command at the wire layer.
type MessageEvent struct {
	// Key is the protocol key, e.g. "Volume".
	Key string `cbor:"1,keyasint"`

	// Op is "SET", "QUERY" or "REPORT".
	Op string `cbor:"2,keyasint"`

	// Value is the textual value, empty for queries.
	Value string `cbor:"3,keyasint,omitempty"`
}

// StateChangeEvent captures connection and device state transitions.
type StateChangeEvent struct {
	Entity   StateEntity `cbor:"1,keyasint"`
	OldState string      `cbor:"2,keyasint,omitempty"`
	NewState string      `cbor:"3,keyasint"`
	Reason   string      `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what changed state.
type StateEntity uint8

const (
	// StateEntityConnection is the TCP session lifecycle.
	StateEntityConnection StateEntity = 0
	// StateEntityDevice is the amplifier's reported state.
	StateEntityDevice StateEntity = 1
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntityDevice:
		return "DEVICE"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	Layer   Layer  `cbor:"1,keyasint"`
	Message string `cbor:"2,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"3,keyasint,omitempty"`
}

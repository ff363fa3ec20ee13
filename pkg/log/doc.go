// Package log provides structured protocol capture for NAD control sessions.
//
// This package defines the Logger interface and Event types for recording
// what crosses the wire at each layer (raw lines, decoded keys, device and
// connection state). It is separate from operational logging (slog): the
// protocol capture is a machine-readable trace that can be replayed when an
// amplifier misbehaves in the field.
//
// # Basic Usage
//
//	// Console, via slog
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// Binary capture file
//	fl, _ := log.NewFileLogger("/var/log/nadtcp/amp.nlog")
//	cfg.ProtocolLogger = fl
//
//	// Both
//	cfg.ProtocolLogger = log.NewMultiLogger(log.NewSlogAdapter(slog.Default()), fl)
//
// # Event Types
//
//   - Transport: raw ASCII lines (LineEvent)
//   - Wire: decoded or encoded key/value messages (MessageEvent)
//   - Service: connection and device state changes (StateChangeEvent)
//
// Errors at any layer use ErrorEventData.
//
// # File Format
//
// Capture files are a stream of CBOR-encoded events with integer keys,
// conventionally with the .nlog extension.
package log

// Package client is the host-facing control surface for one NAD amplifier.
//
// A Client ties the pieces together:
//
//	semantic command ──▶ wire.Codec.Encode ──▶ connection.Manager.Send
//	socket line ──▶ wire.Codec.Decode ──▶ state.Store.Apply ──▶ subscribers
//
// Commands are fire-and-forget. A command method returns an error only when
// the command cannot be encoded; a command issued while the amplifier is
// unreachable is dropped, not queued. The outcome of a command shows up later
// as a state notification, when the amplifier reports the new value.
//
// After every successful (re)connect the client asks the amplifier to report
// its whole state, so subscribers converge without polling.
//
// # Configuration
//
// Config can be built in code from DefaultConfig or loaded from YAML:
//
//	host: 192.168.1.40
//	model: C338
//	reconnect_interval: 10s
//	connect_timeout: 10s
//	keepalive_interval: 30s
//	min_volume: -80
//	max_volume: -10
//	volume_step: 4
package client

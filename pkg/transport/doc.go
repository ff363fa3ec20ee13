// Package transport carries NAD protocol lines over TCP.
//
// # Stack
//
//	┌────────────────────────────────┐
//	│   Main.<Key>=<Value> lines     │
//	├────────────────────────────────┤
//	│   "\n" line framing            │
//	├────────────────────────────────┤
//	│           TCP                  │
//	└────────────────────────────────┘
//
// There is no TLS and no authentication; the amplifier accepts any peer on
// its control port.
//
// A Conn owns one socket. Writes are serialized so concurrent callers never
// interleave partial lines; reads happen on a single loop that hands each
// complete line to a callback. Overlong lines are dropped without ending the
// session. Every line in either direction can be captured through a
// pkg/log Logger, tagged with a per-connection UUID.
//
// Dialing goes through the Dialer interface so tests can substitute an
// in-memory amplifier.
package transport

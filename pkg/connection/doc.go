// Package connection keeps a control session with an amplifier alive.
//
// The Manager owns at most one transport.Conn and moves through these states:
//
//	DISCONNECTED ──Connect──▶ CONNECTING ──ok──▶ CONNECTED
//	      ▲                       │                  │
//	      └───── fail: arm timer ─┘                  │
//	      └──────── read/write error: arm timer ─────┘
//
//	any ──Disconnect──▶ CLOSED ──Connect──▶ CONNECTING
//
// # Reconnection Strategy
//
// NAD amplifiers drop their control socket when they enter standby on some
// firmware, and refuse connections for a few seconds after power-on. The
// manager retries at a fixed interval (default 10s) for as long as it runs:
//
//  1. No growth, no jitter, no retry cap
//  2. At most one pending retry timer
//  3. A timer superseded by a newer one, or by Disconnect, does nothing
//
// # Callbacks
//
// Callbacks run on the goroutine that caused the transition: the caller of
// Connect or Disconnect, the retry timer, or the read loop. The line handler
// always runs on the read loop. Callbacks must not call Disconnect
// synchronously: Disconnect waits for the read loop to exit.
package connection

// Package state holds the last known amplifier state and notifies observers.
//
// A DeviceState starts with every field unknown. Each decoded report
// overwrites one field and marks it known; fields are never cleared, so a
// reconnect keeps showing the last known values until fresh reports arrive.
//
// The Store is written by a single goroutine (the connection read loop) and
// read by any number of others. Subscribers run synchronously on the writer's
// goroutine after the lock is released, so a subscriber may call Snapshot but
// must not block for long.
package state

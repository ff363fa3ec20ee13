package connection

import (
	"sync"
	"time"
)

// DefaultReconnectInterval is the delay between reconnect attempts.
const DefaultReconnectInterval = 10 * time.Second

// Retry hands out reconnect delays. The amplifier policy is a fixed interval;
// Retry only counts attempts for logging and callbacks.
type Retry struct {
	mu sync.Mutex

	interval time.Duration
	attempts int
}

// NewRetry creates a retry policy with the given interval
// (default: DefaultReconnectInterval).
func NewRetry(interval time.Duration) *Retry {
	if interval <= 0 {
		interval = DefaultReconnectInterval
	}
	return &Retry{interval: interval}
}

// Next returns the delay before the next attempt and counts the attempt.
func (r *Retry) Next() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts++
	return r.interval
}

// Reset clears the attempt counter.
// Call this after a successful connection.
func (r *Retry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = 0
}

// Attempts returns the number of delays handed out since the last reset.
func (r *Retry) Attempts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts
}

// Interval returns the fixed delay.
func (r *Retry) Interval() time.Duration {
	return r.interval
}

package transport

import (
	"context"
	"sync"
	"time"
)

// KeepAlive periodically sends a probe line on a live connection.
//
// The amplifier answers every query, but the answer is not awaited: the
// point is to force a write so a half-open socket (amplifier lost power)
// surfaces as a write error instead of hanging until the OS gives up.
type KeepAlive struct {
	interval time.Duration

	// Callbacks
	probe     func() error
	onFailure func(err error)

	// State
	probes    int
	lastProbe time.Time
	lastErr   error

	mu      sync.Mutex
	running bool
	stopped bool
	stopCh  chan struct{}
}

// KeepAliveStats contains keep-alive statistics.
type KeepAliveStats struct {
	Probes    int
	LastProbe time.Time
	LastError error
}

// NewKeepAlive creates a keep-alive poller. probe is called every interval;
// the first probe error is passed to onFailure and stops the poller.
func NewKeepAlive(interval time.Duration, probe func() error, onFailure func(err error)) *KeepAlive {
	return &KeepAlive{
		interval:  interval,
		probe:     probe,
		onFailure: onFailure,
		stopCh:    make(chan struct{}),
	}
}

// Start begins polling. A non-positive interval makes Start a no-op, and so
// does a prior Stop: a KeepAlive runs at most once.
func (ka *KeepAlive) Start(ctx context.Context) {
	if ka.interval <= 0 {
		return
	}

	ka.mu.Lock()
	if ka.running || ka.stopped {
		ka.mu.Unlock()
		return
	}
	ka.running = true
	ka.stopCh = make(chan struct{})
	stopCh := ka.stopCh
	ka.mu.Unlock()

	go ka.loop(ctx, stopCh)
}

// Stop stops polling and prevents any later Start. Safe to call multiple
// times, before Start and from onFailure.
func (ka *KeepAlive) Stop() {
	ka.mu.Lock()
	defer ka.mu.Unlock()

	ka.stopped = true
	if !ka.running {
		return
	}

	ka.running = false
	close(ka.stopCh)
}

// IsRunning returns true if polling is active.
func (ka *KeepAlive) IsRunning() bool {
	ka.mu.Lock()
	defer ka.mu.Unlock()
	return ka.running
}

// Stats returns current keep-alive statistics.
func (ka *KeepAlive) Stats() KeepAliveStats {
	ka.mu.Lock()
	defer ka.mu.Unlock()
	return KeepAliveStats{
		Probes:    ka.probes,
		LastProbe: ka.lastProbe,
		LastError: ka.lastErr,
	}
}

func (ka *KeepAlive) loop(ctx context.Context, stopCh <-chan struct{}) {
	ticker := time.NewTicker(ka.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			ka.Stop()
			return
		case <-stopCh:
			return
		case <-ticker.C:
			if !ka.tick(stopCh) {
				return
			}
		}
	}
}

// tick sends one probe. It returns false once the poller should exit.
func (ka *KeepAlive) tick(stopCh <-chan struct{}) bool {
	// Stop may have raced with the ticker.
	select {
	case <-stopCh:
		return false
	default:
	}

	err := ka.probe()

	ka.mu.Lock()
	ka.probes++
	ka.lastProbe = time.Now()
	ka.lastErr = err
	ka.mu.Unlock()

	if err == nil {
		return true
	}

	ka.Stop()
	if ka.onFailure != nil {
		ka.onFailure(err)
	}
	return false
}

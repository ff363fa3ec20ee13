package transport

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestKeepAliveProbes(t *testing.T) {
	var probes atomic.Int32

	ka := NewKeepAlive(10*time.Millisecond,
		func() error {
			probes.Add(1)
			return nil
		},
		func(err error) {
			t.Errorf("unexpected failure: %v", err)
		},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ka.Start(ctx)
	if !ka.IsRunning() {
		t.Fatal("IsRunning() = false after Start")
	}

	time.Sleep(80 * time.Millisecond)
	ka.Stop()

	if probes.Load() < 2 {
		t.Errorf("probes = %d, want at least 2", probes.Load())
	}
	if ka.IsRunning() {
		t.Error("IsRunning() = true after Stop")
	}

	stats := ka.Stats()
	if stats.Probes < 2 || stats.LastProbe.IsZero() || stats.LastError != nil {
		t.Errorf("stats = %+v", stats)
	}

	// Stop is idempotent.
	ka.Stop()
}

func TestKeepAliveFailure(t *testing.T) {
	probeErr := errors.New("broken pipe")
	failures := make(chan error, 4)

	ka := NewKeepAlive(10*time.Millisecond,
		func() error { return probeErr },
		func(err error) { failures <- err },
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ka.Start(ctx)

	select {
	case err := <-failures:
		if !errors.Is(err, probeErr) {
			t.Errorf("failure = %v, want %v", err, probeErr)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for failure")
	}

	// Exactly one failure: the poller stops itself.
	time.Sleep(50 * time.Millisecond)
	if len(failures) != 0 {
		t.Errorf("extra failures reported: %d", len(failures))
	}
	if ka.IsRunning() {
		t.Error("IsRunning() = true after failure")
	}
}

func TestKeepAliveDisabled(t *testing.T) {
	ka := NewKeepAlive(0, func() error {
		t.Error("probe called with interval 0")
		return nil
	}, nil)

	ka.Start(context.Background())
	if ka.IsRunning() {
		t.Error("IsRunning() = true with interval 0")
	}
}

func TestKeepAliveContextCancel(t *testing.T) {
	ka := NewKeepAlive(time.Hour, func() error { return nil }, nil)

	ctx, cancel := context.WithCancel(context.Background())
	ka.Start(ctx)
	cancel()

	deadline := time.Now().Add(time.Second)
	for ka.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if ka.IsRunning() {
		t.Error("IsRunning() = true after context cancel")
	}
}

func TestKeepAliveStopBeforeStart(t *testing.T) {
	var probes atomic.Int32
	ka := NewKeepAlive(5*time.Millisecond, func() error {
		probes.Add(1)
		return nil
	}, nil)

	ka.Stop()
	ka.Start(context.Background())
	if ka.IsRunning() {
		t.Fatal("IsRunning() = true after Stop then Start")
	}

	time.Sleep(30 * time.Millisecond)
	if n := probes.Load(); n != 0 {
		t.Errorf("probes = %d after Stop then Start, want 0", n)
	}
}

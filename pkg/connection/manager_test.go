package connection_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	testifymock "github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nadtcp/nadtcp-go/internal/testharness/mock"
	"github.com/nadtcp/nadtcp-go/pkg/connection"
	"github.com/nadtcp/nadtcp-go/pkg/log"
	"github.com/nadtcp/nadtcp-go/pkg/transport/mocks"
)

const (
	interval = 10 * time.Second
	waitFor  = time.Second
	tick     = 5 * time.Millisecond
)

// recorder collects every Manager callback.
type recorder struct {
	mu           sync.Mutex
	transitions  []string
	connected    int
	disconnected []error
	reconnecting []int
	delays       []time.Duration
	lines        []string
}

func (r *recorder) attach(m *connection.Manager) {
	m.OnStateChange(func(oldState, newState connection.State) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.transitions = append(r.transitions, oldState.String()+"->"+newState.String())
	})
	m.OnConnected(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.connected++
	})
	m.OnDisconnected(func(err error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.disconnected = append(r.disconnected, err)
	})
	m.OnReconnecting(func(attempt int, delay time.Duration) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.reconnecting = append(r.reconnecting, attempt)
		r.delays = append(r.delays, delay)
	})
	m.SetLineHandler(func(line string) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.lines = append(r.lines, line)
	})
}

func (r *recorder) Connected() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connected
}

func (r *recorder) Disconnected() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.disconnected...)
}

func (r *recorder) Transitions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.transitions...)
}

func (r *recorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

func (r *recorder) Reconnecting() ([]int, []time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.reconnecting...), append([]time.Duration(nil), r.delays...)
}

func newTestManager(t *testing.T, amp *mock.Amplifier, clock connection.Clock, mods ...func(*connection.Config)) (*connection.Manager, *recorder) {
	t.Helper()

	cfg := connection.DefaultConfig()
	cfg.Address = "amp.local:30001"
	cfg.Dialer = amp
	cfg.Clock = clock
	cfg.ReconnectInterval = interval
	for _, mod := range mods {
		mod(&cfg)
	}

	m := connection.NewManager(cfg)
	rec := &recorder{}
	rec.attach(m)
	t.Cleanup(m.Disconnect)
	return m, rec
}

func TestManagerConnect(t *testing.T) {
	amp := mock.NewAmplifier()
	clock := mock.NewClock()
	m, rec := newTestManager(t, amp, clock)

	assert.Equal(t, connection.StateDisconnected, m.State())
	require.NoError(t, m.Connect(context.Background()))

	assert.Equal(t, connection.StateConnected, m.State())
	assert.True(t, m.IsConnected())
	assert.NotEmpty(t, m.ConnectionID())
	assert.Equal(t, 1, rec.Connected())
	assert.Equal(t, []string{"DISCONNECTED->CONNECTING", "CONNECTING->CONNECTED"}, rec.Transitions())
	assert.Equal(t, 0, clock.Pending())
	assert.Equal(t, "amp.local:30001", m.Address())
}

func TestManagerConnectMisuse(t *testing.T) {
	amp := mock.NewAmplifier()
	m, _ := newTestManager(t, amp, mock.NewClock())

	require.NoError(t, m.Connect(context.Background()))
	assert.ErrorIs(t, m.Connect(context.Background()), connection.ErrAlreadyConnected)
	assert.Equal(t, 1, amp.Dials())

	empty := connection.NewManager(connection.Config{Dialer: amp})
	assert.ErrorIs(t, empty.Connect(context.Background()), connection.ErrNoAddress)
}

func TestManagerConnectWhileRetryPending(t *testing.T) {
	amp := mock.NewAmplifier()
	amp.SetRefuse(true)
	m, _ := newTestManager(t, amp, mock.NewClock())

	require.NoError(t, m.Connect(context.Background()))
	assert.ErrorIs(t, m.Connect(context.Background()), connection.ErrAlreadyConnected)
}

func TestManagerRefusedRetriesAtFixedInterval(t *testing.T) {
	amp := mock.NewAmplifier()
	amp.SetRefuse(true)
	clock := mock.NewClock()
	m, rec := newTestManager(t, amp, clock)

	// The failed first attempt is not an error.
	require.NoError(t, m.Connect(context.Background()))
	assert.Equal(t, connection.StateDisconnected, m.State())
	assert.Equal(t, 1, amp.Dials())
	assert.Equal(t, 1, clock.Pending())

	until, ok := clock.Until()
	require.True(t, ok)
	assert.Equal(t, interval, until)

	clock.Advance(interval - time.Millisecond)
	assert.Equal(t, 1, amp.Dials())

	clock.Advance(time.Millisecond)
	assert.Equal(t, 2, amp.Dials())
	assert.Equal(t, 1, clock.Pending())

	// No growth.
	assert.Equal(t, []time.Duration{interval}, clock.Delays())
	clock.Advance(interval)
	assert.Equal(t, 3, amp.Dials())
	assert.Equal(t, []time.Duration{interval}, clock.Delays())

	attempts, delays := rec.Reconnecting()
	assert.Equal(t, []int{1, 2, 3}, attempts)
	assert.Equal(t, []time.Duration{interval, interval, interval}, delays)
	assert.Equal(t, 3, m.ReconnectAttempts())

	amp.SetRefuse(false)
	clock.Advance(interval)
	assert.Equal(t, connection.StateConnected, m.State())
	assert.Equal(t, 4, amp.Dials())
	assert.Equal(t, 0, clock.Pending())
	assert.Equal(t, 0, m.ReconnectAttempts())
	assert.Equal(t, 1, rec.Connected())
	assert.Empty(t, rec.Disconnected())
}

func TestManagerPeerClose(t *testing.T) {
	amp := mock.NewAmplifier()
	clock := mock.NewClock()
	m, rec := newTestManager(t, amp, clock)

	require.NoError(t, m.Connect(context.Background()))
	require.NoError(t, amp.Current().Close())

	require.Eventually(t, func() bool { return len(rec.Disconnected()) == 1 }, waitFor, tick)
	assert.Equal(t, connection.StateDisconnected, m.State())
	assert.ErrorIs(t, rec.Disconnected()[0], io.EOF)
	assert.Equal(t, 1, clock.Pending())
	assert.Empty(t, m.ConnectionID())

	clock.Advance(interval)
	assert.Equal(t, connection.StateConnected, m.State())
	assert.Equal(t, 2, rec.Connected())
	assert.Equal(t, 2, amp.Dials())
}

func TestManagerWriteFailure(t *testing.T) {
	amp := mock.NewAmplifier()
	clock := mock.NewClock()
	m, rec := newTestManager(t, amp, clock)

	require.NoError(t, m.Connect(context.Background()))
	amp.Current().FailWrites()

	err := m.Send("Main.Power=On")
	require.Error(t, err)
	assert.NotErrorIs(t, err, connection.ErrNotConnected)
	assert.Equal(t, connection.StateDisconnected, m.State())

	// The read loop also ends when the socket is torn down; that report is
	// about a stale connection and must not count twice.
	assert.Never(t, func() bool { return len(rec.Disconnected()) > 1 }, 100*time.Millisecond, tick)
	assert.Len(t, rec.Disconnected(), 1)
	assert.Equal(t, 1, clock.Pending())

	assert.ErrorIs(t, m.Send("Main?"), connection.ErrNotConnected)
	assert.Equal(t, 1, clock.Pending())
}

func TestManagerSendNotConnected(t *testing.T) {
	amp := mock.NewAmplifier()
	clock := mock.NewClock()
	m, rec := newTestManager(t, amp, clock)

	assert.ErrorIs(t, m.Send("Main?"), connection.ErrNotConnected)
	assert.Equal(t, 0, amp.Dials())
	assert.Equal(t, 0, clock.Pending())
	assert.Empty(t, rec.Transitions())
}

func TestManagerSendAndReceive(t *testing.T) {
	amp := mock.NewAmplifier()
	m, rec := newTestManager(t, amp, mock.NewClock())

	require.NoError(t, m.Connect(context.Background()))
	session := amp.Current()

	require.NoError(t, m.Send("Main.Volume=-30"))
	line, err := session.Expect(waitFor)
	require.NoError(t, err)
	assert.Equal(t, "Main.Volume=-30", line)

	// The amplifier echoes the accepted value.
	require.Eventually(t, func() bool {
		lines := rec.Lines()
		return len(lines) == 1 && lines[0] == "Main.Volume=-30"
	}, waitFor, tick)

	require.NoError(t, session.Report("Main.Source=Phono"))
	require.Eventually(t, func() bool { return len(rec.Lines()) == 2 }, waitFor, tick)
	assert.Equal(t, "Main.Source=Phono", rec.Lines()[1])
}

func TestManagerOverlongLineKeepsSession(t *testing.T) {
	amp := mock.NewAmplifier()
	m, rec := newTestManager(t, amp, mock.NewClock(), func(c *connection.Config) {
		c.MaxLineLength = 64
	})

	require.NoError(t, m.Connect(context.Background()))
	session := amp.Current()

	go func() {
		_ = session.ReportRaw(fmt.Sprintf("Main.Source=%0200d\nMain.Mute=On\n", 0))
	}()

	require.Eventually(t, func() bool { return len(rec.Lines()) == 1 }, waitFor, tick)
	assert.Equal(t, "Main.Mute=On", rec.Lines()[0])
	assert.Equal(t, connection.StateConnected, m.State())
	assert.Empty(t, rec.Disconnected())
}

func TestManagerDisconnect(t *testing.T) {
	amp := mock.NewAmplifier()
	clock := mock.NewClock()
	m, rec := newTestManager(t, amp, clock)

	require.NoError(t, m.Connect(context.Background()))
	session := amp.Current()

	m.Disconnect()
	assert.Equal(t, connection.StateClosed, m.State())
	assert.Equal(t, []error{nil}, rec.Disconnected())
	assert.Equal(t, 0, clock.Pending())

	select {
	case <-session.Done():
	case <-time.After(waitFor):
		t.Fatal("socket not closed")
	}

	assert.ErrorIs(t, m.Send("Main?"), connection.ErrNotConnected)

	// Idempotent.
	before := rec.Transitions()
	m.Disconnect()
	assert.Equal(t, before, rec.Transitions())
	assert.Len(t, rec.Disconnected(), 1)
}

func TestManagerDisconnectCancelsRetry(t *testing.T) {
	amp := mock.NewAmplifier()
	amp.SetRefuse(true)
	clock := mock.NewClock()
	m, rec := newTestManager(t, amp, clock)

	require.NoError(t, m.Connect(context.Background()))
	require.Equal(t, 1, clock.Pending())

	m.Disconnect()
	assert.Equal(t, 0, clock.Pending())
	assert.Equal(t, connection.StateClosed, m.State())

	clock.Advance(time.Hour)
	assert.Equal(t, 1, amp.Dials())

	// Never connected, so no disconnect notification.
	assert.Empty(t, rec.Disconnected())
}

// stubbornClock ignores Stop, like a timer that already fired and is
// waiting on the manager's lock.
type stubbornClock struct {
	*mock.Clock
}

type stubbornTimer struct{}

func (stubbornTimer) Stop() bool { return false }

func (c stubbornClock) AfterFunc(d time.Duration, f func()) connection.Timer {
	c.Clock.AfterFunc(d, f)
	return stubbornTimer{}
}

func TestManagerSupersededTimerIsNoop(t *testing.T) {
	amp := mock.NewAmplifier()
	amp.SetRefuse(true)
	clock := stubbornClock{mock.NewClock()}
	m, _ := newTestManager(t, amp, clock)

	require.NoError(t, m.Connect(context.Background()))
	m.Disconnect()
	require.Equal(t, 1, clock.Pending())

	clock.Advance(interval)
	assert.Equal(t, 1, amp.Dials())
	assert.Equal(t, connection.StateClosed, m.State())

	// A new run arms its own timer; the stale one from the previous run is
	// still queued at the same instant and must not cause a second dial.
	require.NoError(t, m.Connect(context.Background()))
	m.Disconnect()
	require.NoError(t, m.Connect(context.Background()))
	assert.Equal(t, 3, amp.Dials())
	require.Equal(t, 2, clock.Pending())

	clock.Advance(interval)
	assert.Equal(t, 4, amp.Dials())
}

func TestManagerReopenAfterDisconnect(t *testing.T) {
	amp := mock.NewAmplifier()
	m, rec := newTestManager(t, amp, mock.NewClock())

	require.NoError(t, m.Connect(context.Background()))
	m.Disconnect()
	require.NoError(t, m.Connect(context.Background()))

	assert.Equal(t, connection.StateConnected, m.State())
	assert.Equal(t, 2, rec.Connected())
	assert.Contains(t, rec.Transitions(), "CLOSED->CONNECTING")
}

func TestManagerContextShutdown(t *testing.T) {
	amp := mock.NewAmplifier()
	clock := mock.NewClock()
	m, rec := newTestManager(t, amp, clock)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, m.Connect(ctx))
	cancel()

	require.Eventually(t, func() bool { return m.State() == connection.StateClosed }, waitFor, tick)
	require.Eventually(t, func() bool { return len(rec.Disconnected()) == 1 }, waitFor, tick)
	assert.Nil(t, rec.Disconnected()[0])
	assert.Equal(t, 0, clock.Pending())
}

func TestManagerEarlierContextDoesNotStopLaterRun(t *testing.T) {
	amp := mock.NewAmplifier()
	clock := mock.NewClock()
	m, _ := newTestManager(t, amp, clock)

	ctx1, cancel1 := context.WithCancel(context.Background())
	require.NoError(t, m.Connect(ctx1))
	cancel1()
	require.Eventually(t, func() bool { return m.State() == connection.StateClosed }, waitFor, tick)

	require.NoError(t, m.Connect(context.Background()))
	cancel1()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, connection.StateConnected, m.State())
}

func TestManagerKeepAlive(t *testing.T) {
	amp := mock.NewAmplifier()
	clock := mock.NewClock()
	m, rec := newTestManager(t, amp, clock, func(c *connection.Config) {
		c.KeepAliveInterval = 10 * time.Millisecond
		c.KeepAliveProbe = "Main.Power?"
	})

	require.NoError(t, m.Connect(context.Background()))
	session := amp.Current()

	line, err := session.Expect(waitFor)
	require.NoError(t, err)
	assert.Equal(t, "Main.Power?", line)

	session.FailWrites()
	require.Eventually(t, func() bool { return len(rec.Disconnected()) == 1 }, waitFor, tick)
	assert.Never(t, func() bool { return len(rec.Disconnected()) > 1 }, 100*time.Millisecond, tick)
	assert.Equal(t, connection.StateDisconnected, m.State())
	assert.Equal(t, 1, clock.Pending())
}

func TestManagerProtocolLog(t *testing.T) {
	amp := mock.NewAmplifier()
	rec := &eventRecorder{}
	m, _ := newTestManager(t, amp, mock.NewClock(), func(c *connection.Config) {
		c.ProtocolLogger = rec
		c.Model = "C338"
	})

	require.NoError(t, m.Connect(context.Background()))
	connID := m.ConnectionID()
	require.NoError(t, m.Send("Main?"))

	var states []string
	var outbound []string
	for _, ev := range rec.Events() {
		switch {
		case ev.StateChange != nil:
			states = append(states, ev.StateChange.NewState)
			if ev.StateChange.NewState == "CONNECTED" {
				assert.Equal(t, connID, ev.ConnectionID)
			}
			assert.Equal(t, log.StateEntityConnection, ev.StateChange.Entity)
		case ev.Line != nil && ev.Direction == log.DirectionOut:
			outbound = append(outbound, ev.Line.Text)
			assert.Equal(t, connID, ev.ConnectionID)
			assert.Equal(t, "C338", ev.Model)
		}
	}
	assert.Equal(t, []string{"CONNECTING", "CONNECTED"}, states)
	assert.Equal(t, []string{"Main?"}, outbound)
}

type eventRecorder struct {
	mu     sync.Mutex
	events []log.Event
}

func (r *eventRecorder) Log(event log.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) Events() []log.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]log.Event(nil), r.events...)
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state connection.State
		want  string
	}{
		{connection.StateDisconnected, "DISCONNECTED"},
		{connection.StateConnecting, "CONNECTING"},
		{connection.StateConnected, "CONNECTED"},
		{connection.StateClosed, "CLOSED"},
		{connection.State(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.String())
		})
	}
}

func TestManagerDialArguments(t *testing.T) {
	dialer := mocks.NewMockDialer(t)
	clock := mock.NewClock()
	errUnreachable := errors.New("no route to host")

	hasDeadline := testifymock.MatchedBy(func(ctx context.Context) bool {
		deadline, ok := ctx.Deadline()
		return ok && time.Until(deadline) <= 3*time.Second
	})
	dialer.EXPECT().Dial(hasDeadline, "amp.local:30001").Return(nil, errUnreachable).Once()

	var server net.Conn
	dialer.EXPECT().Dial(hasDeadline, "amp.local:30001").
		RunAndReturn(func(context.Context, string) (net.Conn, error) {
			c, s := net.Pipe()
			server = s
			return c, nil
		}).Once()

	cfg := connection.DefaultConfig()
	cfg.Address = "amp.local:30001"
	cfg.Dialer = dialer
	cfg.Clock = clock
	cfg.ReconnectInterval = interval
	cfg.ConnectTimeout = 3 * time.Second
	m := connection.NewManager(cfg)
	t.Cleanup(m.Disconnect)

	require.NoError(t, m.Connect(context.Background()))
	assert.Equal(t, connection.StateDisconnected, m.State())
	assert.Equal(t, []time.Duration{interval}, clock.Delays())

	clock.Advance(interval)
	assert.Equal(t, connection.StateConnected, m.State())
	assert.Equal(t, 0, m.ReconnectAttempts())

	m.Disconnect()
	require.NotNil(t, server)
	_, err := server.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)
}

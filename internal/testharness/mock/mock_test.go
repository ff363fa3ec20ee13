package mock

import (
	"bufio"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmplifierAnswersQueries(t *testing.T) {
	amp := NewAmplifier()

	conn, err := amp.Dial(context.Background(), "amp:30001")
	require.NoError(t, err)
	defer conn.Close()

	session, err := amp.Accept(time.Second)
	require.NoError(t, err)
	assert.Same(t, session, amp.Current())

	reader := bufio.NewReader(conn)
	readLine := func() string {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		return line
	}

	_, err = io.WriteString(conn, "Main?\n")
	require.NoError(t, err)
	assert.Equal(t, "Main.Power=On\n", readLine())
	assert.Equal(t, "Main.Volume=-40\n", readLine())
	assert.Equal(t, "Main.Mute=Off\n", readLine())
	assert.Equal(t, "Main.Source=TV\n", readLine())

	_, err = io.WriteString(conn, "Main.Volume=-20\n")
	require.NoError(t, err)
	assert.Equal(t, "Main.Volume=-20\n", readLine())

	v, ok := amp.GetState("Volume")
	assert.True(t, ok)
	assert.Equal(t, "-20", v)

	_, err = io.WriteString(conn, "Main.Mute?\n")
	require.NoError(t, err)
	assert.Equal(t, "Main.Mute=Off\n", readLine())

	line, err := session.Expect(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "Main?", line)
	assert.Equal(t, []string{"Main?", "Main.Volume=-20", "Main.Mute?"}, amp.Received())
	assert.Equal(t, 1, amp.Dials())
}

func TestAmplifierRefuse(t *testing.T) {
	amp := NewAmplifier()
	amp.SetRefuse(true)

	_, err := amp.Dial(context.Background(), "amp:30001")
	assert.ErrorIs(t, err, ErrRefused)
	assert.Nil(t, amp.Current())

	_, err = amp.Accept(10 * time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)

	amp.SetRefuse(false)
	conn, err := amp.Dial(context.Background(), "amp:30001")
	require.NoError(t, err)
	conn.Close()
	assert.Equal(t, 2, amp.Dials())
}

func TestSessionFailWrites(t *testing.T) {
	amp := NewAmplifier()
	conn, err := amp.Dial(context.Background(), "amp:30001")
	require.NoError(t, err)
	defer conn.Close()

	session := amp.Current()
	session.FailWrites()

	_, err = io.WriteString(conn, "Main?\n")
	assert.True(t, errors.Is(err, io.ErrClosedPipe))

	// Reads still work.
	go func() { _ = session.Report("Main.Power=Off") }()
	line, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "Main.Power=Off\n", line)
}

func TestSessionClose(t *testing.T) {
	amp := NewAmplifier()
	conn, err := amp.Dial(context.Background(), "amp:30001")
	require.NoError(t, err)

	session := amp.Current()
	require.NoError(t, session.Close())
	assert.NoError(t, session.Close())

	_, err = conn.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)

	select {
	case <-session.Done():
	case <-time.After(time.Second):
		t.Fatal("session did not end")
	}
}

func TestClock(t *testing.T) {
	c := NewClock()
	start := c.Now()

	var fired []string
	c.AfterFunc(2*time.Second, func() { fired = append(fired, "b") })
	c.AfterFunc(time.Second, func() { fired = append(fired, "a") })
	stopped := c.AfterFunc(time.Second, func() { fired = append(fired, "never") })

	assert.Equal(t, 3, c.Pending())
	assert.True(t, stopped.Stop())
	assert.False(t, stopped.Stop())
	assert.Equal(t, 2, c.Pending())

	until, ok := c.Until()
	require.True(t, ok)
	assert.Equal(t, time.Second, until)

	c.Advance(999 * time.Millisecond)
	assert.Empty(t, fired)

	c.Advance(time.Millisecond)
	assert.Equal(t, []string{"a"}, fired)

	c.Advance(time.Second)
	assert.Equal(t, []string{"a", "b"}, fired)
	assert.Equal(t, 0, c.Pending())
	assert.Equal(t, start.Add(2*time.Second), c.Now())
}

func TestClockChainedTimers(t *testing.T) {
	c := NewClock()

	count := 0
	var tick func()
	tick = func() {
		count++
		c.AfterFunc(time.Second, tick)
	}
	c.AfterFunc(time.Second, tick)

	c.Advance(5 * time.Second)
	assert.Equal(t, 5, count)
	assert.Equal(t, 1, c.Pending())
	assert.Equal(t, []time.Duration{time.Second}, c.Delays())
}

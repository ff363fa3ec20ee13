package client

import (
	"errors"
	"strings"
	"time"

	"github.com/nadtcp/nadtcp-go/pkg/connection"
	"github.com/nadtcp/nadtcp-go/pkg/log"
	"github.com/nadtcp/nadtcp-go/pkg/wire"
)

// PowerOn turns the amplifier on.
func (c *Client) PowerOn() error {
	return c.dispatch(wire.SetPower(true))
}

// PowerOff puts the amplifier in standby.
func (c *Client) PowerOff() error {
	return c.dispatch(wire.SetPower(false))
}

// SetVolume sets the absolute volume in dB. Values outside the model's range
// return a *wire.EncodingError.
func (c *Client) SetVolume(db int) error {
	return c.dispatch(wire.SetVolume(db))
}

// StepVolumeUp raises the volume by the configured step, stopping at
// MaxVolume.
func (c *Client) StepVolumeUp() error {
	return c.stepVolume(c.config.VolumeStep)
}

// StepVolumeDown lowers the volume by the configured step, stopping at
// MinVolume.
func (c *Client) StepVolumeDown() error {
	return c.stepVolume(-c.config.VolumeStep)
}

// stepVolume resolves a relative change against the last reported volume.
// The result is clamped to [MinVolume, MaxVolume], except that a step never
// moves the volume the opposite way: a level already outside the bounds is
// held. When no volume has been reported it asks for one and returns
// ErrVolumeUnknown.
func (c *Client) stepVolume(delta int) error {
	current := c.store.Snapshot()
	if !current.IsKnown(wire.KeyVolume) {
		if err := c.dispatch(wire.Query(wire.KeyVolume)); err != nil {
			return err
		}
		return ErrVolumeUnknown
	}

	target := current.Volume + delta
	if delta > 0 {
		target = min(target, max(current.Volume, c.config.MaxVolume))
	} else {
		target = max(target, min(current.Volume, c.config.MinVolume))
	}
	return c.SetVolume(target)
}

// Mute mutes the output.
func (c *Client) Mute() error {
	return c.dispatch(wire.SetMute(true))
}

// Unmute unmutes the output.
func (c *Client) Unmute() error {
	return c.dispatch(wire.SetMute(false))
}

// SelectSource switches the input. Names listed for the model are matched
// case-insensitively and sent in their canonical spelling; other printable
// names are sent as given.
func (c *Client) SelectSource(name string) error {
	return c.dispatch(wire.SetSource(name))
}

// QueryAll asks the amplifier to report every key.
func (c *Client) QueryAll() error {
	return c.dispatch(wire.Query(wire.KeyMain))
}

// Query asks the amplifier to report one key.
func (c *Client) Query(key wire.Key) error {
	return c.dispatch(wire.Query(key))
}

// dispatch encodes cmd and writes it to the session. Send failures are
// logged, never returned: the connection manager owns recovery.
func (c *Client) dispatch(cmd wire.Command) error {
	line, err := c.codec.Encode(cmd)
	if err != nil {
		return err
	}

	value := ""
	if cmd.Op == wire.OpSet {
		value = wire.FormatValue(cmd.Value)
	}
	c.logMessage(log.DirectionOut, cmd.Key, cmd.Op.String(), value)

	err = c.manager.Send(strings.TrimSuffix(line, wire.Terminator))
	switch {
	case err == nil:
	case errors.Is(err, connection.ErrNotConnected):
		c.debugLog("dropping command while disconnected",
			"key", cmd.Key.String(), "op", cmd.Op.String())
	default:
		if c.logger != nil {
			c.logger.Warn("send failed",
				"key", cmd.Key.String(), "op", cmd.Op.String(), "error", err)
		}
	}
	return nil
}

// WaitConnected blocks until the session is up or timeout elapses. It is a
// convenience for scripts; callers driven by OnConnectionChanged don't need it.
func (c *Client) WaitConnected(timeout time.Duration) bool {
	if c.manager.IsConnected() {
		return true
	}

	ch := make(chan struct{}, 1)
	unsubscribe := c.OnConnectionChanged(func(s connection.State) {
		if s == connection.StateConnected {
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	})
	defer unsubscribe()

	if c.manager.IsConnected() {
		return true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
		return true
	case <-timer.C:
		return false
	}
}

package state

import (
	"fmt"
	"strings"

	"github.com/nadtcp/nadtcp-go/pkg/wire"
)

// KeySet is a set of wire keys.
type KeySet uint8

// Has reports whether k is in the set.
func (s KeySet) Has(k wire.Key) bool {
	return s&(1<<k) != 0
}

// With returns the set with k added.
func (s KeySet) With(k wire.Key) KeySet {
	return s | 1<<k
}

// Len returns the number of keys in the set.
func (s KeySet) Len() int {
	n := 0
	for _, k := range wire.StateKeys {
		if s.Has(k) {
			n++
		}
	}
	return n
}

// DeviceState is a snapshot of the amplifier's reported state. A field is
// meaningful only if its key is in Known.
type DeviceState struct {
	Power  bool
	Volume int
	Muted  bool
	Source string

	// Known holds the keys reported at least once.
	Known KeySet
}

// IsKnown reports whether k has been reported.
func (s DeviceState) IsKnown(k wire.Key) bool {
	return s.Known.Has(k)
}

// PowerState returns "on", "off" or "unknown".
func (s DeviceState) PowerState() string {
	switch {
	case !s.IsKnown(wire.KeyPower):
		return "unknown"
	case s.Power:
		return "on"
	default:
		return "off"
	}
}

// Value returns the field for k, or false if it is unknown.
func (s DeviceState) Value(k wire.Key) (any, bool) {
	if !s.IsKnown(k) {
		return nil, false
	}
	switch k {
	case wire.KeyPower:
		return s.Power, true
	case wire.KeyVolume:
		return s.Volume, true
	case wire.KeyMute:
		return s.Muted, true
	case wire.KeySource:
		return s.Source, true
	}
	return nil, false
}

// String renders the known fields, e.g. "Power=On Volume=-40".
func (s DeviceState) String() string {
	var parts []string
	for _, k := range wire.StateKeys {
		v, ok := s.Value(k)
		if !ok {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%s", k, wire.FormatValue(v)))
	}
	if len(parts) == 0 {
		return "unknown"
	}
	return strings.Join(parts, " ")
}

// apply returns s with u applied, or false if u carries no state.
func (s DeviceState) apply(u wire.StateUpdate) (DeviceState, bool) {
	switch u.Key {
	case wire.KeyPower:
		v, ok := u.Bool()
		if !ok {
			return s, false
		}
		s.Power = v
	case wire.KeyVolume:
		v, ok := u.Int()
		if !ok {
			return s, false
		}
		s.Volume = v
	case wire.KeyMute:
		v, ok := u.Bool()
		if !ok {
			return s, false
		}
		s.Muted = v
	case wire.KeySource:
		v, ok := u.Text()
		if !ok {
			return s, false
		}
		s.Source = v
	default:
		// Main and unknown keys have no field.
		return s, false
	}
	s.Known = s.Known.With(u.Key)
	return s, true
}

package model

import (
	"errors"
	"fmt"
	"strings"
)

// Model validation errors.
var (
	ErrUnknownModel  = errors.New("unknown model")
	ErrInvalidModel  = errors.New("invalid model")
	ErrUnknownSource = errors.New("unknown source")
)

// DefaultZone is the zone prefix used when a model does not name one.
const DefaultZone = "Main"

// VolumeRange is an inclusive volume range in device-native units (dB).
type VolumeRange struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// Contains reports whether v lies within the range.
func (r VolumeRange) Contains(v int) bool {
	return v >= r.Min && v <= r.Max
}

// Clamp limits v to the range.
func (r VolumeRange) Clamp(v int) int {
	if v < r.Min {
		return r.Min
	}
	if v > r.Max {
		return r.Max
	}
	return v
}

// Model describes one amplifier model.
type Model struct {
	ID      string      `yaml:"id"`
	Name    string      `yaml:"name"`
	Port    int         `yaml:"port"`
	Zone    string      `yaml:"zone"`
	Sources []string    `yaml:"sources"`
	Volume  VolumeRange `yaml:"volume"`
}

// Validate checks that the model is usable.
func (m *Model) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidModel)
	}
	if m.Port <= 0 || m.Port > 65535 {
		return fmt.Errorf("%w: %s: port %d out of range", ErrInvalidModel, m.ID, m.Port)
	}
	if strings.ContainsAny(m.Zone, ".=?\n") {
		return fmt.Errorf("%w: %s: zone %q contains protocol delimiters", ErrInvalidModel, m.ID, m.Zone)
	}
	if len(m.Sources) == 0 {
		return fmt.Errorf("%w: %s: no sources", ErrInvalidModel, m.ID)
	}
	seen := make(map[string]bool, len(m.Sources))
	for _, s := range m.Sources {
		if s == "" || strings.ContainsAny(s, "\r\n") {
			return fmt.Errorf("%w: %s: bad source label %q", ErrInvalidModel, m.ID, s)
		}
		key := strings.ToLower(s)
		if seen[key] {
			return fmt.Errorf("%w: %s: duplicate source %q", ErrInvalidModel, m.ID, s)
		}
		seen[key] = true
	}
	if m.Volume.Min >= m.Volume.Max {
		return fmt.Errorf("%w: %s: volume range [%d, %d]", ErrInvalidModel, m.ID, m.Volume.Min, m.Volume.Max)
	}
	return nil
}

// ZoneName returns the zone prefix, falling back to DefaultZone.
func (m *Model) ZoneName() string {
	if m.Zone == "" {
		return DefaultZone
	}
	return m.Zone
}

// SourceList returns a copy of the ordered source labels.
func (m *Model) SourceList() []string {
	out := make([]string, len(m.Sources))
	copy(out, m.Sources)
	return out
}

// LookupSource finds a source label case-insensitively and returns it in the
// model's spelling.
func (m *Model) LookupSource(name string) (string, error) {
	for _, s := range m.Sources {
		if strings.EqualFold(s, name) {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q on %s", ErrUnknownSource, name, m.ID)
}

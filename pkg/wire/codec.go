package wire

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/nadtcp/nadtcp-go/pkg/model"
)

// Terminator ends every outbound line.
const Terminator = "\n"

// maxReportedVolume bounds decoded volumes; anything larger is line noise.
const maxReportedVolume = 1000

// Codec encodes commands and decodes reports for one amplifier model.
// A Codec is immutable and safe for concurrent use.
type Codec struct {
	model *model.Model
	zone  string
}

// NewCodec returns a codec for m.
func NewCodec(m *model.Model) *Codec {
	return &Codec{model: m, zone: m.ZoneName()}
}

// Zone returns the zone prefix used on the wire.
func (c *Codec) Zone() string { return c.zone }

// Model returns the amplifier model the codec validates against.
func (c *Codec) Model() *model.Model { return c.model }

// Encode renders cmd as a wire line, including the terminator.
// Errors are always *EncodingError.
func (c *Codec) Encode(cmd Command) (string, error) {
	if !cmd.Key.Valid() {
		return "", encodingError(cmd, ErrUnknownKey, "")
	}

	switch cmd.Op {
	case OpQuery:
		if cmd.Key == KeyMain {
			return c.zone + "?" + Terminator, nil
		}
		return c.zone + "." + cmd.Key.String() + "?" + Terminator, nil
	case OpSet:
		value, err := c.encodeValue(cmd)
		if err != nil {
			return "", err
		}
		return c.zone + "." + cmd.Key.String() + "=" + value + Terminator, nil
	case OpStepUp, OpStepDown:
		return "", encodingError(cmd, ErrUnsupportedOp, "resolve steps to an absolute volume")
	default:
		return "", encodingError(cmd, ErrUnsupportedOp, "")
	}
}

func (c *Codec) encodeValue(cmd Command) (string, error) {
	switch cmd.Key {
	case KeyPower, KeyMute:
		b, ok := cmd.Value.(bool)
		if !ok {
			return "", encodingError(cmd, ErrInvalidValue, "want bool")
		}
		return FormatBool(b), nil

	case KeyVolume:
		v, ok := volumeValue(cmd.Value)
		if !ok {
			return "", encodingError(cmd, ErrInvalidValue, "want integer")
		}
		if !c.model.Volume.Contains(v) {
			return "", encodingError(cmd, ErrInvalidValue,
				fmt.Sprintf("range [%d, %d]", c.model.Volume.Min, c.model.Volume.Max))
		}
		return strconv.Itoa(v), nil

	case KeySource:
		s, ok := cmd.Value.(string)
		if !ok {
			return "", encodingError(cmd, ErrInvalidValue, "want string")
		}
		name, ok := c.sourceName(s)
		if !ok {
			return "", encodingError(cmd, ErrInvalidValue, "not a source token")
		}
		return name, nil

	default:
		// KeyMain cannot be set.
		return "", encodingError(cmd, ErrUnsupportedOp, "zone can only be queried")
	}
}

func volumeValue(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int8:
		return int(x), true
	case int16:
		return int(x), true
	case int32:
		return int(x), true
	case int64:
		if x < math.MinInt32 || x > math.MaxInt32 {
			return 0, false
		}
		return int(x), true
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) || math.Abs(x) > math.MaxInt32 {
			return 0, false
		}
		return int(x), true
	default:
		return 0, false
	}
}

// Decode parses one inbound line. It returns false for anything that is not
// a well-formed report of a known key; it never panics.
func (c *Codec) Decode(line string) (StateUpdate, bool) {
	line = strings.TrimSpace(line)

	rest, ok := strings.CutPrefix(line, c.zone+".")
	if !ok {
		return StateUpdate{}, false
	}
	name, raw, ok := strings.Cut(rest, "=")
	if !ok {
		return StateUpdate{}, false
	}
	key, ok := ParseKey(name)
	if !ok {
		return StateUpdate{}, false
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return StateUpdate{}, false
	}

	switch key {
	case KeyPower, KeyMute:
		b, ok := ParseBool(raw)
		if !ok {
			return StateUpdate{}, false
		}
		return StateUpdate{Key: key, Value: b}, true

	case KeyVolume:
		v, ok := parseVolume(raw)
		if !ok {
			return StateUpdate{}, false
		}
		return StateUpdate{Key: key, Value: v}, true

	case KeySource:
		name, ok := c.sourceName(raw)
		if !ok {
			return StateUpdate{}, false
		}
		return StateUpdate{Key: key, Value: name}, true
	}
	return StateUpdate{}, false
}

// sourceName returns the model's spelling of a listed source. Unlisted names
// pass through unchanged as long as they fit on one line without the
// protocol's separators; firmware updates add inputs the catalog may lack.
func (c *Codec) sourceName(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if name, err := c.model.LookupSource(s); err == nil {
		return name, true
	}
	for i := 0; i < len(s); i++ {
		if b := s[i]; b < 0x20 || b > 0x7e || b == '=' || b == '?' {
			return "", false
		}
	}
	return s, true
}

// ParseBool accepts the boolean spellings amplifiers use.
func ParseBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "on", "1", "true", "yes":
		return true, true
	case "off", "0", "false", "no":
		return false, true
	}
	return false, false
}

// parseVolume accepts integers and decimals; decimals round half away from
// zero.
func parseVolume(s string) (int, bool) {
	if v, err := strconv.Atoi(s); err == nil {
		if v < -maxReportedVolume || v > maxReportedVolume {
			return 0, false
		}
		return v, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	r := math.Round(f)
	if r < -maxReportedVolume || r > maxReportedVolume {
		return 0, false
	}
	return int(r), true
}

package wire

import (
	"fmt"
	"strconv"
)

// Command is a request to change or query device state.
type Command struct {
	Key Key
	Op  Op

	// Value is bool for Power and Mute, int for Volume and string for Source.
	// Unused for queries and steps.
	Value any
}

// SetPower returns a command switching the amplifier on or off.
func SetPower(on bool) Command { return Command{Key: KeyPower, Op: OpSet, Value: on} }

// SetMute returns a command muting or unmuting the amplifier.
func SetMute(muted bool) Command { return Command{Key: KeyMute, Op: OpSet, Value: muted} }

// SetVolume returns an absolute volume command in device-native units.
func SetVolume(v int) Command { return Command{Key: KeyVolume, Op: OpSet, Value: v} }

// SetSource returns a command selecting an input source.
func SetSource(name string) Command { return Command{Key: KeySource, Op: OpSet, Value: name} }

// Query returns a query for one key, or for the whole zone with KeyMain.
func Query(k Key) Command { return Command{Key: k, Op: OpQuery} }

// StateUpdate is a (key, value) pair reported by the amplifier.
type StateUpdate struct {
	Key   Key
	Value any
}

// Bool returns the value of a Power or Mute update.
func (u StateUpdate) Bool() (bool, bool) {
	b, ok := u.Value.(bool)
	return b, ok
}

// Int returns the value of a Volume update.
func (u StateUpdate) Int() (int, bool) {
	v, ok := u.Value.(int)
	return v, ok
}

// Text returns the value of a Source update.
func (u StateUpdate) Text() (string, bool) {
	s, ok := u.Value.(string)
	return s, ok
}

// String renders the update the way the amplifier would send it.
func (u StateUpdate) String() string {
	return u.Key.String() + "=" + FormatValue(u.Value)
}

// FormatValue renders a command or update value using the device tokens.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case bool:
		return FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

// FormatBool returns the device's boolean token.
func FormatBool(b bool) string {
	if b {
		return "On"
	}
	return "Off"
}

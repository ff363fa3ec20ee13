package wire

// Key is a protocol key within a zone.
type Key uint8

const (
	// KeyMain addresses the zone itself; only valid in queries, where it asks
	// the amplifier to report every key.
	KeyMain Key = iota
	KeyPower
	KeyVolume
	KeyMute
	KeySource
)

var keyNames = [...]string{
	KeyMain:   "Main",
	KeyPower:  "Power",
	KeyVolume: "Volume",
	KeyMute:   "Mute",
	KeySource: "Source",
}

// String returns the key as spelled on the wire.
func (k Key) String() string {
	if int(k) < len(keyNames) {
		return keyNames[k]
	}
	return "UNKNOWN"
}

// Valid reports whether k is a known key.
func (k Key) Valid() bool {
	return int(k) < len(keyNames)
}

// ParseKey maps a wire key name to a Key. Matching is case-sensitive, as the
// amplifier always uses the canonical spelling.
func ParseKey(s string) (Key, bool) {
	for i, name := range keyNames {
		if i == int(KeyMain) {
			continue
		}
		if name == s {
			return Key(i), true
		}
	}
	return 0, false
}

// StateKeys are the keys that carry device state, in report order.
var StateKeys = []Key{KeyPower, KeyVolume, KeyMute, KeySource}

// Op is the kind of command.
type Op uint8

const (
	OpSet Op = iota
	OpStepUp
	OpStepDown
	OpQuery
)

// String returns the op name.
func (o Op) String() string {
	switch o {
	case OpSet:
		return "SET"
	case OpStepUp:
		return "STEP_UP"
	case OpStepDown:
		return "STEP_DOWN"
	case OpQuery:
		return "QUERY"
	default:
		return "UNKNOWN"
	}
}

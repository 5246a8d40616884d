package midi

import "github.com/embermesh/rtpmidi/internal/errs"

// Descriptor is the per-variant capability table: detect, size, typed
// property access, and wire encode/decode. Implementations hold no
// mutable state.
type Descriptor interface {
	// Name identifies the variant for diagnostics.
	Name() string
	// Matches reports whether this descriptor handles the given status
	// byte. Detect tries descriptors in registry order and returns the
	// first match.
	Matches(status byte) bool
	// Size returns the exact on-wire serialized length for m.
	Size(m *Message) (int, error)
	// Get reads a typed property. Values are int for every property
	// except PropSysExData, which is []byte.
	Get(m *Message, p Property) (interface{}, error)
	// Set writes a typed property, range-checked per spec.
	Set(m *Message, p Property, v interface{}) error
	// Encode writes exactly Size(m) bytes into out.
	Encode(m *Message, out []byte) (int, error)
	// Decode consumes the entire input as one message.
	Decode(in []byte) (*Message, error)
}

// registry is the fixed ordered set of descriptors. Order is significant:
// channel-voice entries (narrow high-nibble match) precede SysEx and
// system-common (whose status bytes would otherwise be mis-ordered
// against each other), matching spec table order exactly.
var registry = []Descriptor{
	noteDescriptor{},
	polyPressureDescriptor{},
	controlChangeDescriptor{},
	programChangeDescriptor{},
	channelPressureDescriptor{},
	pitchWheelDescriptor{},
	sysExDescriptor{},
	timeCodeDescriptor{},
	songPositionDescriptor{},
	songSelectDescriptor{},
	tuneRequestDescriptor{},
	realTimeDescriptor{},
}

// Detect returns the first descriptor whose Matches predicate accepts
// buffer[0]. It is a pure function of buffer[0] (SysEx additionally
// inspects buffer[1] only via ForStatus continuation decoding, never via
// Detect). Returns InvalidArgument if buffer is empty or no descriptor
// matches.
func Detect(buffer []byte) (Descriptor, error) {
	if len(buffer) == 0 {
		return nil, errs.New(errs.InvalidArgument, "empty buffer")
	}
	status := buffer[0]
	for _, d := range registry {
		if d.Matches(status) {
			return d, nil
		}
	}
	return nil, errs.New(errs.InvalidArgument, "no descriptor matches status 0x%02x", status)
}

// ForStatus returns the descriptor that would handle a message with the
// given status byte, without requiring a buffer. It is also how a caller
// obtains the SysEx descriptor in order to decode a continuation fragment
// (DecodeContinuation), since a continuation fragment carries no status
// byte at all for Detect to key off of.
func ForStatus(status byte) (Descriptor, error) {
	for _, d := range registry {
		if d.Matches(status) {
			return d, nil
		}
	}
	return nil, errs.New(errs.InvalidArgument, "no descriptor matches status 0x%02x", status)
}

// Size is a convenience wrapper: Detect(m) then Size(m).
func Size(m *Message) (int, error) {
	d, err := ForStatus(m.bytes[0])
	if err != nil {
		return 0, err
	}
	return d.Size(m)
}

// Encode is a convenience wrapper: Detect(m) then Encode(m, out).
func Encode(m *Message, out []byte) (int, error) {
	d, err := ForStatus(m.bytes[0])
	if err != nil {
		return 0, err
	}
	return d.Encode(m, out)
}

// Decode detects the variant from buffer[0] and decodes the entire buffer
// as one message.
func Decode(buffer []byte) (*Message, error) {
	d, err := Detect(buffer)
	if err != nil {
		return nil, err
	}
	return d.Decode(buffer)
}

// checkBuffer enforces the insufficient-buffer contract for Encode.
func checkBuffer(out []byte, need int) error {
	if len(out) < need {
		return errs.New(errs.InvalidArgument, "insufficient buffer: need %d, have %d", need, len(out))
	}
	return nil
}

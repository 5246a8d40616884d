package midi

import "github.com/embermesh/rtpmidi/internal/errs"

// channelMessage3 factors the encode/decode/size boilerplate shared by the
// 3-byte channel-voice variants (note, poly pressure, control change,
// pitch wheel): status|channel, data1, data2.
type channelMessage3 struct{}

func (channelMessage3) Size(*Message) (int, error) { return 3, nil }

func (channelMessage3) Encode(m *Message, out []byte) (int, error) {
	if err := checkBuffer(out, 3); err != nil {
		return 0, err
	}
	out[0], out[1], out[2] = m.bytes[0], m.bytes[1], m.bytes[2]
	return 3, nil
}

func decode3(in []byte) ([4]byte, error) {
	if len(in) != 3 {
		return [4]byte{}, errs.New(errs.InvalidArgument, "expected 3 bytes, got %d", len(in))
	}
	return [4]byte{in[0], in[1], in[2], 0}, nil
}

// --- Note Off / Note On (0x8_ / 0x9_), 3 bytes ---

type noteDescriptor struct{ channelMessage3 }

func (noteDescriptor) Name() string { return "note" }

func (noteDescriptor) Matches(status byte) bool {
	h := highNibble(status)
	return h == StatusNoteOff || h == StatusNoteOn
}

func (noteDescriptor) Get(m *Message, p Property) (interface{}, error) {
	switch p {
	case PropStatus:
		return int(highNibble(m.bytes[0])), nil
	case PropChannel:
		return int(lowNibble(m.bytes[0])), nil
	case PropKey:
		return int(m.bytes[1]), nil
	case PropVelocity:
		return int(m.bytes[2]), nil
	default:
		return nil, errs.New(errs.InvalidArgument, "note: invalid property %s", p)
	}
}

func (noteDescriptor) Set(m *Message, p Property, v interface{}) error {
	iv, ok := v.(int)
	if !ok {
		return errs.New(errs.InvalidArgument, "note: value must be int")
	}
	switch p {
	case PropStatus:
		if iv != StatusNoteOff && iv != StatusNoteOn {
			return errs.New(errs.InvalidArgument, "note: status must be note-on or note-off")
		}
		m.bytes[0] = byte(iv) | lowNibble(m.bytes[0])
	case PropChannel:
		c, ok := nibble(iv)
		if !ok {
			return errs.New(errs.InvalidArgument, "note: channel out of range: %d", iv)
		}
		m.bytes[0] = highNibble(m.bytes[0]) | c
	case PropKey:
		b, ok := dataByte(iv)
		if !ok {
			return errs.New(errs.InvalidArgument, "note: key out of range: %d", iv)
		}
		m.bytes[1] = b
	case PropVelocity:
		b, ok := dataByte(iv)
		if !ok {
			return errs.New(errs.InvalidArgument, "note: velocity out of range: %d", iv)
		}
		m.bytes[2] = b
	default:
		return errs.New(errs.InvalidArgument, "note: invalid property %s", p)
	}
	return nil
}

func (noteDescriptor) Decode(in []byte) (*Message, error) {
	b, err := decode3(in)
	if err != nil {
		return nil, err
	}
	h := highNibble(b[0])
	if h != StatusNoteOff && h != StatusNoteOn {
		return nil, errs.New(errs.InvalidArgument, "note: unexpected status 0x%02x", b[0])
	}
	return newMessage(b[0], b[1], b[2], 0), nil
}

// --- Polyphonic Key Pressure (0xA_), 3 bytes ---

type polyPressureDescriptor struct{ channelMessage3 }

func (polyPressureDescriptor) Name() string { return "poly-pressure" }

func (polyPressureDescriptor) Matches(status byte) bool {
	return highNibble(status) == StatusPolyPressure
}

func (polyPressureDescriptor) Get(m *Message, p Property) (interface{}, error) {
	switch p {
	case PropStatus:
		return int(StatusPolyPressure), nil
	case PropChannel:
		return int(lowNibble(m.bytes[0])), nil
	case PropKey:
		return int(m.bytes[1]), nil
	case PropPressure:
		return int(m.bytes[2]), nil
	default:
		return nil, errs.New(errs.InvalidArgument, "poly-pressure: invalid property %s", p)
	}
}

func (polyPressureDescriptor) Set(m *Message, p Property, v interface{}) error {
	iv, ok := v.(int)
	if !ok {
		return errs.New(errs.InvalidArgument, "poly-pressure: value must be int")
	}
	switch p {
	case PropChannel:
		c, ok := nibble(iv)
		if !ok {
			return errs.New(errs.InvalidArgument, "poly-pressure: channel out of range: %d", iv)
		}
		m.bytes[0] = StatusPolyPressure | c
	case PropKey:
		b, ok := dataByte(iv)
		if !ok {
			return errs.New(errs.InvalidArgument, "poly-pressure: key out of range: %d", iv)
		}
		m.bytes[1] = b
	case PropPressure:
		b, ok := dataByte(iv)
		if !ok {
			return errs.New(errs.InvalidArgument, "poly-pressure: pressure out of range: %d", iv)
		}
		m.bytes[2] = b
	default:
		return errs.New(errs.InvalidArgument, "poly-pressure: invalid property %s", p)
	}
	return nil
}

func (polyPressureDescriptor) Decode(in []byte) (*Message, error) {
	b, err := decode3(in)
	if err != nil {
		return nil, err
	}
	if highNibble(b[0]) != StatusPolyPressure {
		return nil, errs.New(errs.InvalidArgument, "poly-pressure: unexpected status 0x%02x", b[0])
	}
	return newMessage(b[0], b[1], b[2], 0), nil
}

// --- Control Change (0xB_), 3 bytes ---

type controlChangeDescriptor struct{ channelMessage3 }

func (controlChangeDescriptor) Name() string { return "control-change" }

func (controlChangeDescriptor) Matches(status byte) bool {
	return highNibble(status) == StatusControlChange
}

func (controlChangeDescriptor) Get(m *Message, p Property) (interface{}, error) {
	switch p {
	case PropStatus:
		return int(StatusControlChange), nil
	case PropChannel:
		return int(lowNibble(m.bytes[0])), nil
	case PropControl:
		return int(m.bytes[1]), nil
	case PropValue:
		return int(m.bytes[2]), nil
	default:
		return nil, errs.New(errs.InvalidArgument, "control-change: invalid property %s", p)
	}
}

func (controlChangeDescriptor) Set(m *Message, p Property, v interface{}) error {
	iv, ok := v.(int)
	if !ok {
		return errs.New(errs.InvalidArgument, "control-change: value must be int")
	}
	switch p {
	case PropChannel:
		c, ok := nibble(iv)
		if !ok {
			return errs.New(errs.InvalidArgument, "control-change: channel out of range: %d", iv)
		}
		m.bytes[0] = StatusControlChange | c
	case PropControl:
		b, ok := dataByte(iv)
		if !ok {
			return errs.New(errs.InvalidArgument, "control-change: control out of range: %d", iv)
		}
		m.bytes[1] = b
	case PropValue:
		b, ok := dataByte(iv)
		if !ok {
			return errs.New(errs.InvalidArgument, "control-change: value out of range: %d", iv)
		}
		m.bytes[2] = b
	default:
		return errs.New(errs.InvalidArgument, "control-change: invalid property %s", p)
	}
	return nil
}

func (controlChangeDescriptor) Decode(in []byte) (*Message, error) {
	b, err := decode3(in)
	if err != nil {
		return nil, err
	}
	if highNibble(b[0]) != StatusControlChange {
		return nil, errs.New(errs.InvalidArgument, "control-change: unexpected status 0x%02x", b[0])
	}
	return newMessage(b[0], b[1], b[2], 0), nil
}

// --- Pitch Wheel Change (0xE_), 3 bytes, 14-bit value packed low/high ---

type pitchWheelDescriptor struct{ channelMessage3 }

func (pitchWheelDescriptor) Name() string { return "pitch-wheel" }

func (pitchWheelDescriptor) Matches(status byte) bool {
	return highNibble(status) == StatusPitchWheel
}

func (pitchWheelDescriptor) Get(m *Message, p Property) (interface{}, error) {
	switch p {
	case PropStatus:
		return int(StatusPitchWheel), nil
	case PropChannel:
		return int(lowNibble(m.bytes[0])), nil
	case PropValueLSB:
		return int(m.bytes[1]), nil
	case PropValueMSB:
		return int(m.bytes[2]), nil
	case PropValue:
		return int(m.bytes[1]) | int(m.bytes[2])<<7, nil
	default:
		return nil, errs.New(errs.InvalidArgument, "pitch-wheel: invalid property %s", p)
	}
}

func (pitchWheelDescriptor) Set(m *Message, p Property, v interface{}) error {
	iv, ok := v.(int)
	if !ok {
		return errs.New(errs.InvalidArgument, "pitch-wheel: value must be int")
	}
	switch p {
	case PropChannel:
		c, ok := nibble(iv)
		if !ok {
			return errs.New(errs.InvalidArgument, "pitch-wheel: channel out of range: %d", iv)
		}
		m.bytes[0] = StatusPitchWheel | c
	case PropValueLSB:
		b, ok := dataByte(iv)
		if !ok {
			return errs.New(errs.InvalidArgument, "pitch-wheel: value_lsb out of range: %d", iv)
		}
		m.bytes[1] = b
	case PropValueMSB:
		b, ok := dataByte(iv)
		if !ok {
			return errs.New(errs.InvalidArgument, "pitch-wheel: value_msb out of range: %d", iv)
		}
		m.bytes[2] = b
	case PropValue:
		if iv < 0 || iv > 0x3fff {
			return errs.New(errs.InvalidArgument, "pitch-wheel: value out of range: %d", iv)
		}
		m.bytes[1] = byte(iv & 0x7f)
		m.bytes[2] = byte((iv >> 7) & 0x7f)
	default:
		return errs.New(errs.InvalidArgument, "pitch-wheel: invalid property %s", p)
	}
	return nil
}

func (pitchWheelDescriptor) Decode(in []byte) (*Message, error) {
	b, err := decode3(in)
	if err != nil {
		return nil, err
	}
	if highNibble(b[0]) != StatusPitchWheel {
		return nil, errs.New(errs.InvalidArgument, "pitch-wheel: unexpected status 0x%02x", b[0])
	}
	return newMessage(b[0], b[1], b[2], 0), nil
}

// --- Program Change (0xC_), 2 bytes ---

type programChangeDescriptor struct{}

func (programChangeDescriptor) Name() string { return "program-change" }

func (programChangeDescriptor) Matches(status byte) bool {
	return highNibble(status) == StatusProgramChange
}

func (programChangeDescriptor) Size(*Message) (int, error) { return 2, nil }

func (programChangeDescriptor) Get(m *Message, p Property) (interface{}, error) {
	switch p {
	case PropStatus:
		return int(StatusProgramChange), nil
	case PropChannel:
		return int(lowNibble(m.bytes[0])), nil
	case PropProgram:
		return int(m.bytes[1]), nil
	default:
		return nil, errs.New(errs.InvalidArgument, "program-change: invalid property %s", p)
	}
}

func (programChangeDescriptor) Set(m *Message, p Property, v interface{}) error {
	iv, ok := v.(int)
	if !ok {
		return errs.New(errs.InvalidArgument, "program-change: value must be int")
	}
	switch p {
	case PropChannel:
		c, ok := nibble(iv)
		if !ok {
			return errs.New(errs.InvalidArgument, "program-change: channel out of range: %d", iv)
		}
		m.bytes[0] = StatusProgramChange | c
	case PropProgram:
		b, ok := dataByte(iv)
		if !ok {
			return errs.New(errs.InvalidArgument, "program-change: program out of range: %d", iv)
		}
		m.bytes[1] = b
	default:
		return errs.New(errs.InvalidArgument, "program-change: invalid property %s", p)
	}
	return nil
}

func (programChangeDescriptor) Encode(m *Message, out []byte) (int, error) {
	if err := checkBuffer(out, 2); err != nil {
		return 0, err
	}
	out[0], out[1] = m.bytes[0], m.bytes[1]
	return 2, nil
}

func (programChangeDescriptor) Decode(in []byte) (*Message, error) {
	if len(in) != 2 {
		return nil, errs.New(errs.InvalidArgument, "program-change: expected 2 bytes, got %d", len(in))
	}
	if highNibble(in[0]) != StatusProgramChange {
		return nil, errs.New(errs.InvalidArgument, "program-change: unexpected status 0x%02x", in[0])
	}
	return newMessage(in[0], in[1], 0, 0), nil
}

// --- Channel Pressure (0xD_), 2 bytes ---

type channelPressureDescriptor struct{}

func (channelPressureDescriptor) Name() string { return "channel-pressure" }

func (channelPressureDescriptor) Matches(status byte) bool {
	return highNibble(status) == StatusChannelPressure
}

func (channelPressureDescriptor) Size(*Message) (int, error) { return 2, nil }

func (channelPressureDescriptor) Get(m *Message, p Property) (interface{}, error) {
	switch p {
	case PropStatus:
		return int(StatusChannelPressure), nil
	case PropChannel:
		return int(lowNibble(m.bytes[0])), nil
	case PropPressure:
		return int(m.bytes[1]), nil
	default:
		return nil, errs.New(errs.InvalidArgument, "channel-pressure: invalid property %s", p)
	}
}

func (channelPressureDescriptor) Set(m *Message, p Property, v interface{}) error {
	iv, ok := v.(int)
	if !ok {
		return errs.New(errs.InvalidArgument, "channel-pressure: value must be int")
	}
	switch p {
	case PropChannel:
		c, ok := nibble(iv)
		if !ok {
			return errs.New(errs.InvalidArgument, "channel-pressure: channel out of range: %d", iv)
		}
		m.bytes[0] = StatusChannelPressure | c
	case PropPressure:
		b, ok := dataByte(iv)
		if !ok {
			return errs.New(errs.InvalidArgument, "channel-pressure: pressure out of range: %d", iv)
		}
		m.bytes[1] = b
	default:
		return errs.New(errs.InvalidArgument, "channel-pressure: invalid property %s", p)
	}
	return nil
}

func (channelPressureDescriptor) Encode(m *Message, out []byte) (int, error) {
	if err := checkBuffer(out, 2); err != nil {
		return 0, err
	}
	out[0], out[1] = m.bytes[0], m.bytes[1]
	return 2, nil
}

func (channelPressureDescriptor) Decode(in []byte) (*Message, error) {
	if len(in) != 2 {
		return nil, errs.New(errs.InvalidArgument, "channel-pressure: expected 2 bytes, got %d", len(in))
	}
	if highNibble(in[0]) != StatusChannelPressure {
		return nil, errs.New(errs.InvalidArgument, "channel-pressure: unexpected status 0x%02x", in[0])
	}
	return newMessage(in[0], in[1], 0, 0), nil
}

// NewNote builds a Note Off (velocity interpreted as release velocity) or
// Note On message.
func NewNote(on bool, channel, key, velocity int) (*Message, error) {
	status := StatusNoteOff
	if on {
		status = StatusNoteOn
	}
	m := &Message{}
	d := noteDescriptor{}
	if err := d.Set(m, PropStatus, status); err != nil {
		return nil, err
	}
	if err := d.Set(m, PropChannel, channel); err != nil {
		return nil, err
	}
	if err := d.Set(m, PropKey, key); err != nil {
		return nil, err
	}
	if err := d.Set(m, PropVelocity, velocity); err != nil {
		return nil, err
	}
	return m, nil
}

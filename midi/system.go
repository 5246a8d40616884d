package midi

import "github.com/embermesh/rtpmidi/internal/errs"

// --- Time Code Quarter Frame (0xF1), 2 bytes ---

type timeCodeDescriptor struct{}

func (timeCodeDescriptor) Name() string { return "time-code-qtr-frame" }

func (timeCodeDescriptor) Matches(status byte) bool { return status == StatusTimeCodeQtrFrame }

func (timeCodeDescriptor) Size(*Message) (int, error) { return 2, nil }

func (timeCodeDescriptor) Get(m *Message, p Property) (interface{}, error) {
	switch p {
	case PropStatus:
		return int(StatusTimeCodeQtrFrame), nil
	case PropTimeCodeType:
		return int(m.bytes[1]), nil
	default:
		return nil, errs.New(errs.InvalidArgument, "time-code: invalid property %s", p)
	}
}

func (timeCodeDescriptor) Set(m *Message, p Property, v interface{}) error {
	iv, ok := v.(int)
	if !ok {
		return errs.New(errs.InvalidArgument, "time-code: value must be int")
	}
	switch p {
	case PropTimeCodeType:
		b, ok := dataByte(iv)
		if !ok {
			return errs.New(errs.InvalidArgument, "time-code: value out of range: %d", iv)
		}
		m.bytes[0] = StatusTimeCodeQtrFrame
		m.bytes[1] = b
	default:
		return errs.New(errs.InvalidArgument, "time-code: invalid property %s", p)
	}
	return nil
}

func (timeCodeDescriptor) Encode(m *Message, out []byte) (int, error) {
	if err := checkBuffer(out, 2); err != nil {
		return 0, err
	}
	out[0], out[1] = m.bytes[0], m.bytes[1]
	return 2, nil
}

func (timeCodeDescriptor) Decode(in []byte) (*Message, error) {
	if len(in) != 2 {
		return nil, errs.New(errs.InvalidArgument, "time-code: expected 2 bytes, got %d", len(in))
	}
	if in[0] != StatusTimeCodeQtrFrame {
		return nil, errs.New(errs.InvalidArgument, "time-code: unexpected status 0x%02x", in[0])
	}
	return newMessage(in[0], in[1], 0, 0), nil
}

// --- Song Position Pointer (0xF2), 3 bytes, 14-bit value ---

type songPositionDescriptor struct{}

func (songPositionDescriptor) Name() string { return "song-position" }

func (songPositionDescriptor) Matches(status byte) bool { return status == StatusSongPosition }

func (songPositionDescriptor) Size(*Message) (int, error) { return 3, nil }

func (songPositionDescriptor) Get(m *Message, p Property) (interface{}, error) {
	switch p {
	case PropStatus:
		return int(StatusSongPosition), nil
	case PropValueLSB:
		return int(m.bytes[1]), nil
	case PropValueMSB:
		return int(m.bytes[2]), nil
	case PropValue:
		return int(m.bytes[1]) | int(m.bytes[2])<<7, nil
	default:
		return nil, errs.New(errs.InvalidArgument, "song-position: invalid property %s", p)
	}
}

func (songPositionDescriptor) Set(m *Message, p Property, v interface{}) error {
	iv, ok := v.(int)
	if !ok {
		return errs.New(errs.InvalidArgument, "song-position: value must be int")
	}
	m.bytes[0] = StatusSongPosition
	switch p {
	case PropValueLSB:
		b, ok := dataByte(iv)
		if !ok {
			return errs.New(errs.InvalidArgument, "song-position: value_lsb out of range: %d", iv)
		}
		m.bytes[1] = b
	case PropValueMSB:
		b, ok := dataByte(iv)
		if !ok {
			return errs.New(errs.InvalidArgument, "song-position: value_msb out of range: %d", iv)
		}
		m.bytes[2] = b
	case PropValue:
		if iv < 0 || iv > 0x3fff {
			return errs.New(errs.InvalidArgument, "song-position: value out of range: %d", iv)
		}
		m.bytes[1] = byte(iv & 0x7f)
		m.bytes[2] = byte((iv >> 7) & 0x7f)
	default:
		return errs.New(errs.InvalidArgument, "song-position: invalid property %s", p)
	}
	return nil
}

func (songPositionDescriptor) Encode(m *Message, out []byte) (int, error) {
	if err := checkBuffer(out, 3); err != nil {
		return 0, err
	}
	out[0], out[1], out[2] = m.bytes[0], m.bytes[1], m.bytes[2]
	return 3, nil
}

func (songPositionDescriptor) Decode(in []byte) (*Message, error) {
	if len(in) != 3 {
		return nil, errs.New(errs.InvalidArgument, "song-position: expected 3 bytes, got %d", len(in))
	}
	if in[0] != StatusSongPosition {
		return nil, errs.New(errs.InvalidArgument, "song-position: unexpected status 0x%02x", in[0])
	}
	return newMessage(in[0], in[1], in[2], 0), nil
}

// --- Song Select (0xF3), 2 bytes ---

type songSelectDescriptor struct{}

func (songSelectDescriptor) Name() string { return "song-select" }

func (songSelectDescriptor) Matches(status byte) bool { return status == StatusSongSelect }

func (songSelectDescriptor) Size(*Message) (int, error) { return 2, nil }

func (songSelectDescriptor) Get(m *Message, p Property) (interface{}, error) {
	switch p {
	case PropStatus:
		return int(StatusSongSelect), nil
	case PropValue:
		return int(m.bytes[1]), nil
	default:
		return nil, errs.New(errs.InvalidArgument, "song-select: invalid property %s", p)
	}
}

func (songSelectDescriptor) Set(m *Message, p Property, v interface{}) error {
	iv, ok := v.(int)
	if !ok {
		return errs.New(errs.InvalidArgument, "song-select: value must be int")
	}
	switch p {
	case PropValue:
		b, ok := dataByte(iv)
		if !ok {
			return errs.New(errs.InvalidArgument, "song-select: value out of range: %d", iv)
		}
		m.bytes[0] = StatusSongSelect
		m.bytes[1] = b
	default:
		return errs.New(errs.InvalidArgument, "song-select: invalid property %s", p)
	}
	return nil
}

func (songSelectDescriptor) Encode(m *Message, out []byte) (int, error) {
	if err := checkBuffer(out, 2); err != nil {
		return 0, err
	}
	out[0], out[1] = m.bytes[0], m.bytes[1]
	return 2, nil
}

func (songSelectDescriptor) Decode(in []byte) (*Message, error) {
	if len(in) != 2 {
		return nil, errs.New(errs.InvalidArgument, "song-select: expected 2 bytes, got %d", len(in))
	}
	if in[0] != StatusSongSelect {
		return nil, errs.New(errs.InvalidArgument, "song-select: unexpected status 0x%02x", in[0])
	}
	return newMessage(in[0], in[1], 0, 0), nil
}

// --- Tune Request (0xF6), 1 byte, no data ---

type tuneRequestDescriptor struct{}

func (tuneRequestDescriptor) Name() string { return "tune-request" }

func (tuneRequestDescriptor) Matches(status byte) bool { return status == StatusTuneRequest }

func (tuneRequestDescriptor) Size(*Message) (int, error) { return 1, nil }

func (tuneRequestDescriptor) Get(m *Message, p Property) (interface{}, error) {
	if p == PropStatus {
		return int(StatusTuneRequest), nil
	}
	return nil, errs.New(errs.InvalidArgument, "tune-request: invalid property %s", p)
}

func (tuneRequestDescriptor) Set(m *Message, p Property, v interface{}) error {
	return errs.New(errs.InvalidArgument, "tune-request: carries no settable properties")
}

func (tuneRequestDescriptor) Encode(m *Message, out []byte) (int, error) {
	if err := checkBuffer(out, 1); err != nil {
		return 0, err
	}
	out[0] = StatusTuneRequest
	return 1, nil
}

func (tuneRequestDescriptor) Decode(in []byte) (*Message, error) {
	if len(in) != 1 {
		return nil, errs.New(errs.InvalidArgument, "tune-request: expected 1 byte, got %d", len(in))
	}
	if in[0] != StatusTuneRequest {
		return nil, errs.New(errs.InvalidArgument, "tune-request: unexpected status 0x%02x", in[0])
	}
	return newMessage(in[0], 0, 0, 0), nil
}

// --- Real-Time (clock/start/continue/stop/active sensing/reset), 1 byte ---

type realTimeDescriptor struct{}

func (realTimeDescriptor) Name() string { return "real-time" }

func (realTimeDescriptor) Matches(status byte) bool { return isRealTime(status) }

func (realTimeDescriptor) Size(*Message) (int, error) { return 1, nil }

func (realTimeDescriptor) Get(m *Message, p Property) (interface{}, error) {
	if p == PropStatus {
		return int(m.bytes[0]), nil
	}
	return nil, errs.New(errs.InvalidArgument, "real-time: invalid property %s", p)
}

func (realTimeDescriptor) Set(m *Message, p Property, v interface{}) error {
	iv, ok := v.(int)
	if !ok {
		return errs.New(errs.InvalidArgument, "real-time: value must be int")
	}
	if p != PropStatus {
		return errs.New(errs.InvalidArgument, "real-time: invalid property %s", p)
	}
	if !isRealTime(byte(iv)) {
		return errs.New(errs.InvalidArgument, "real-time: not a real-time status: 0x%02x", iv)
	}
	m.bytes[0] = byte(iv)
	return nil
}

func (realTimeDescriptor) Encode(m *Message, out []byte) (int, error) {
	if err := checkBuffer(out, 1); err != nil {
		return 0, err
	}
	out[0] = m.bytes[0]
	return 1, nil
}

func (realTimeDescriptor) Decode(in []byte) (*Message, error) {
	if len(in) != 1 {
		return nil, errs.New(errs.InvalidArgument, "real-time: expected 1 byte, got %d", len(in))
	}
	if !isRealTime(in[0]) {
		return nil, errs.New(errs.InvalidArgument, "real-time: unexpected status 0x%02x", in[0])
	}
	return newMessage(in[0], 0, 0, 0), nil
}

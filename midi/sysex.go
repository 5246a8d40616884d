package midi

import "github.com/embermesh/rtpmidi/internal/errs"

// --- System Exclusive (0xF0), variable length, possibly fragmented ---
//
// bytes[1] is the manufacturer id, bytes[2] the fragment index (0 =
// first/complete), bytes[3] the owning-flag. On the wire: a first/complete
// fragment (index 0) is [0xF0, manufacturerID, payload...] (size =
// len(payload)+2); a continuation fragment is the raw payload bytes alone,
// with no status byte and no manufacturer id repeated (size =
// len(payload)). This generalizes the spec's two-fragment example to 1..N
// fragments via the explicit fragment index plus the out-of-band `end`
// flag (see DecodeSysExFragment) rather than inferring an end from a
// trailing 0xF7, which the spec leaves underspecified beyond two
// fragments.

type sysExDescriptor struct{}

func (sysExDescriptor) Name() string { return "sysex" }

func (sysExDescriptor) Matches(status byte) bool { return status == StatusSysEx }

func (sysExDescriptor) Size(m *Message) (int, error) {
	if m.bytes[2] == 0 {
		return m.size + 2, nil
	}
	return m.size, nil
}

func (sysExDescriptor) Get(m *Message, p Property) (interface{}, error) {
	switch p {
	case PropStatus:
		return int(StatusSysEx), nil
	case PropManufacturerID:
		return int(m.bytes[1]), nil
	case PropSysExFragment:
		return int(m.bytes[2]), nil
	case PropSysExSize:
		return m.size, nil
	case PropSysExData:
		return m.data, nil
	case PropSysExEnd:
		return m.end, nil
	default:
		return nil, errs.New(errs.InvalidArgument, "sysex: invalid property %s", p)
	}
}

func (sysExDescriptor) Set(m *Message, p Property, v interface{}) error {
	m.bytes[0] = StatusSysEx
	switch p {
	case PropManufacturerID:
		iv, ok := v.(int)
		if !ok {
			return errs.New(errs.InvalidArgument, "sysex: manufacturer_id must be int")
		}
		b, ok := dataByte(iv)
		if !ok {
			return errs.New(errs.InvalidArgument, "sysex: manufacturer_id out of range: %d", iv)
		}
		m.bytes[1] = b
	case PropSysExFragment:
		iv, ok := v.(int)
		if !ok {
			return errs.New(errs.InvalidArgument, "sysex: sysex_fragment must be int")
		}
		if iv < 0 || iv > 255 {
			return errs.New(errs.InvalidArgument, "sysex: fragment index out of range: %d", iv)
		}
		m.bytes[2] = byte(iv)
	case PropSysExData:
		// Set-by-reference takes ownership, per design note: decode
		// always allocates, set takes ownership of the caller's
		// buffer rather than copying it.
		data, ok := v.([]byte)
		if !ok {
			return errs.New(errs.InvalidArgument, "sysex: sysex_data must be []byte")
		}
		m.data = data
		m.size = len(data)
		m.bytes[3] = 1
	case PropSysExEnd:
		bv, ok := v.(bool)
		if !ok {
			return errs.New(errs.InvalidArgument, "sysex: sysex_end must be bool")
		}
		m.end = bv
	default:
		return errs.New(errs.InvalidArgument, "sysex: invalid property %s", p)
	}
	return nil
}

func (sysExDescriptor) Encode(m *Message, out []byte) (int, error) {
	n, _ := sysExDescriptor{}.Size(m)
	if err := checkBuffer(out, n); err != nil {
		return 0, err
	}
	if m.bytes[2] == 0 {
		out[0] = StatusSysEx
		out[1] = m.bytes[1]
		copy(out[2:n], m.data)
		return n, nil
	}
	copy(out[:n], m.data)
	return n, nil
}

// Decode handles only the first/complete fragment form (status byte
// 0xF0 present), matching the generic Descriptor contract that Detect
// keys off buffer[0]. It is equivalent to
// DecodeSysExFragment(in, 0, true) — a standalone SysEx message with no
// continuation. For continuation fragments (which carry no status byte
// at all), use DecodeSysExFragment directly.
func (sysExDescriptor) Decode(in []byte) (*Message, error) {
	return DecodeSysExFragment(in, 0, true)
}

// DecodeSysExFragment decodes one SysEx fragment's bytes. fragment is the
// 0-based fragment index the caller already knows this datagram carries
// (0 = first/complete, tracked by the RTP transport's per-peer
// reassembly state for fragment > 0); end marks whether this is the
// final fragment of the message. The allocated payload is always a fresh
// copy (owning-flag set), per the decode contract.
func DecodeSysExFragment(in []byte, fragment byte, end bool) (*Message, error) {
	if fragment == 0 {
		if len(in) < 2 {
			return nil, errs.New(errs.InvalidArgument, "sysex: buffer too small: %d bytes", len(in))
		}
		if in[0] != StatusSysEx {
			return nil, errs.New(errs.InvalidArgument, "sysex: unexpected status 0x%02x", in[0])
		}
		manufacturerID := in[1]
		payload := make([]byte, len(in)-2)
		if copy(payload, in[2:]) != len(payload) {
			return nil, errs.New(errs.AllocFailure, "sysex: short copy of payload")
		}
		m, err := newSysExMessage(manufacturerID, 0, payload, true)
		if err != nil {
			return nil, err
		}
		m.end = end
		return m, nil
	}
	payload := make([]byte, len(in))
	if copy(payload, in) != len(payload) {
		return nil, errs.New(errs.AllocFailure, "sysex: short copy of continuation payload")
	}
	m, err := newSysExMessage(0, fragment, payload, true)
	if err != nil {
		return nil, err
	}
	m.end = end
	return m, nil
}

// NewSysEx builds a standalone (unfragmented) SysEx message, taking
// ownership of payload.
func NewSysEx(manufacturerID byte, payload []byte) (*Message, error) {
	m, err := newSysExMessage(manufacturerID, 0, payload, true)
	if err != nil {
		return nil, err
	}
	m.end = true
	return m, nil
}

// NewSysExFragment builds one fragment of a multi-fragment SysEx message.
// fragment 0 is the first fragment and carries manufacturerID; fragments
// 1..N-1 are continuations and ignore manufacturerID on the wire (it is
// still recorded in the record for the caller's bookkeeping). end marks
// the final fragment.
func NewSysExFragment(manufacturerID, fragment byte, payload []byte, end bool) (*Message, error) {
	m, err := newSysExMessage(manufacturerID, fragment, payload, true)
	if err != nil {
		return nil, err
	}
	m.end = end
	return m, nil
}

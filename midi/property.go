package midi

// Property identifies a typed field a Descriptor's Get/Set accept. Each
// descriptor only accepts the keys meaningful to its variant; all others
// fail with InvalidArgument.
type Property int

const (
	PropStatus Property = iota
	PropChannel
	PropKey
	PropVelocity
	PropPressure
	PropControl
	PropValue
	PropValueMSB
	PropValueLSB
	PropProgram
	PropManufacturerID
	PropSysExSize
	PropSysExFragment
	PropSysExData
	PropTimeCodeType
	// PropSysExEnd is a supplement beyond spec: true on the final
	// fragment of a multi-fragment SysEx message, so a consumer can
	// distinguish "more fragments follow" from "message complete"
	// without out-of-band bookkeeping. See the N-fragment SysEx design
	// note.
	PropSysExEnd
)

func (p Property) String() string {
	switch p {
	case PropStatus:
		return "status"
	case PropChannel:
		return "channel"
	case PropKey:
		return "key"
	case PropVelocity:
		return "velocity"
	case PropPressure:
		return "pressure"
	case PropControl:
		return "control"
	case PropValue:
		return "value"
	case PropValueMSB:
		return "value_msb"
	case PropValueLSB:
		return "value_lsb"
	case PropProgram:
		return "program"
	case PropManufacturerID:
		return "manufacturer_id"
	case PropSysExSize:
		return "sysex_size"
	case PropSysExFragment:
		return "sysex_fragment"
	case PropSysExData:
		return "sysex_data"
	case PropTimeCodeType:
		return "time_code_type"
	case PropSysExEnd:
		return "sysex_end"
	default:
		return "unknown"
	}
}

// dataByte validates a 7-bit MIDI data byte value.
func dataByte(v int) (byte, bool) {
	if v < 0 || v > 127 {
		return 0, false
	}
	return byte(v), true
}

// nibble validates a 4-bit value (status nibble / channel).
func nibble(v int) (byte, bool) {
	if v < 0 || v > 15 {
		return 0, false
	}
	return byte(v), true
}

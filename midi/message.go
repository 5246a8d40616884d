// Package midi implements the message format registry: detection, sizing,
// typed property access, and wire encode/decode for every MIDI channel and
// system message, including fragmented System Exclusive. The codec is
// stateless and safe for concurrent use — every function takes the message
// record (or buffer) it operates on as an explicit argument, never hidden
// state.
package midi

import "github.com/embermesh/rtpmidi/internal/errs"

// Message is the in-memory record for one MIDI event. bytes holds the
// fixed 4-byte inline header; for channel and system-common messages that
// is the entire message. For System Exclusive, bytes[1] is the
// manufacturer id, bytes[2] is the fragment index (0 = first/complete),
// bytes[3] is the owning-flag, and data holds the (optionally owned)
// payload.
type Message struct {
	bytes [4]byte
	size  int
	data  []byte
	// end marks the final fragment of a multi-fragment SysEx message.
	// It has no wire representation (spec's on-wire SysEx size formula
	// is a pure function of payload length and fragment index) — it is
	// bookkeeping the transport/journal layer supplies out of band when
	// it already knows a fragment sequence is complete. See
	// DecodeSysExFragment.
	end bool
}

// Status returns the raw status byte (bytes[0]).
func (m *Message) Status() byte { return m.bytes[0] }

// Owned reports whether this Message owns its SysEx payload buffer. A
// Message decoded off the wire always owns its payload; one built by
// reference via SetSysExPayload with owned=false does not, and its
// backing array must outlive the Message.
func (m *Message) Owned() bool { return m.bytes[3] == 1 }

// Payload returns the SysEx payload bytes, or nil for non-SysEx messages.
func (m *Message) Payload() []byte { return m.data }

// PayloadSize returns the SysEx payload length (0 for non-SysEx).
func (m *Message) PayloadSize() int { return m.size }

// newMessage builds a channel/system-common message from its raw header
// bytes, with no SysEx payload.
func newMessage(b0, b1, b2, b3 byte) *Message {
	return &Message{bytes: [4]byte{b0, b1, b2, b3}}
}

// newSysExMessage builds a SysEx message record. When owned is true, the
// Message takes ownership of data (the caller must not retain or mutate it
// afterward); the Release method below is then the caller's obligation
// to eventually invoke. When owned is false, data is borrowed and must
// outlive the Message — no aliasing is implied beyond that lifetime.
func newSysExMessage(manufacturerID, fragment byte, data []byte, owned bool) (*Message, error) {
	if len(data) > 0 && data == nil {
		return nil, errs.New(errs.InvalidArgument, "sysex data is nil with non-zero length")
	}
	owningFlag := byte(0)
	if owned {
		owningFlag = 1
	}
	m := &Message{
		bytes: [4]byte{StatusSysEx, manufacturerID, fragment, owningFlag},
		size:  len(data),
		data:  data,
	}
	return m, nil
}

// Release drops the Message's reference to its owned SysEx payload. It is
// a no-op for non-owning messages and for non-SysEx messages; it exists so
// callers following the decode contract ("leaves the caller obliged to
// release") have an explicit, symmetric call site rather than relying on
// the garbage collector to make ownership look automatic.
func (m *Message) Release() {
	if m.Owned() {
		m.data = nil
		m.size = 0
		m.bytes[3] = 0
	}
}

// Equal reports whether two messages are byte-for-byte identical,
// including SysEx payload contents (ownership flag is not compared —
// two messages with the same bytes are equal regardless of who owns the
// backing array).
func (m *Message) Equal(o *Message) bool {
	if m == nil || o == nil {
		return m == o
	}
	if m.bytes[0] != o.bytes[0] || m.bytes[1] != o.bytes[1] || m.bytes[2] != o.bytes[2] {
		return false
	}
	if m.end != o.end || m.size != o.size {
		return false
	}
	for i := 0; i < m.size; i++ {
		if m.data[i] != o.data[i] {
			return false
		}
	}
	return true
}

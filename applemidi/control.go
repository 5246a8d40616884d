// Package applemidi implements the AppleMIDI session engine: the
// invitation, clock-synchronization, teardown, and receiver-feedback
// state machines that run over a control port and a data port, relaying
// MIDI through package rtp using package midi for on-wire encoding (spec
// §4.3).
package applemidi

import (
	"encoding/binary"

	"github.com/embermesh/rtpmidi/internal/errs"
)

// Signature is the 2-byte marker that opens every AppleMIDI control
// packet, immediately followed by a 2-byte ASCII command code.
const Signature uint16 = 0xFFFF

// Command is one of the six AppleMIDI control codes.
type Command string

const (
	CommandInvitation Command = "IN"
	CommandAccepted   Command = "OK"
	CommandRejected   Command = "NO"
	CommandEndSession Command = "BY"
	CommandSync       Command = "CK"
	CommandFeedback   Command = "RS"
)

// maxNameLen bounds the NUL-terminated session name carried by
// invitation-family packets (spec §4.3 table: "≤15 chars").
const maxNameLen = 15

// controlHeaderLen is the signature plus 2-byte command code.
const controlHeaderLen = 4

// DetectCommand peeks the 4-byte control preamble and reports the
// command code if buf opens with the AppleMIDI signature followed by one
// of the six known codes. It does no further parsing.
func DetectCommand(buf []byte) (Command, bool) {
	if len(buf) < controlHeaderLen {
		return "", false
	}
	if binary.BigEndian.Uint16(buf[0:2]) != Signature {
		return "", false
	}
	cmd := Command(buf[2:4])
	switch cmd {
	case CommandInvitation, CommandAccepted, CommandRejected, CommandEndSession, CommandSync, CommandFeedback:
		return cmd, true
	default:
		return "", false
	}
}

// InvitationMessage is the shared body of IN, OK, NO, and BY packets:
// version(4) token(4) ssrc(4) name(NUL-terminated, variable).
type InvitationMessage struct {
	Version uint32
	Token   uint32
	SSRC    uint32
	Name    string
}

// EncodeInvitation serializes an invitation-family packet with the given
// command code.
func EncodeInvitation(cmd Command, m InvitationMessage) ([]byte, error) {
	if len(cmd) != 2 {
		return nil, errs.New(errs.InvalidArgument, "command code must be 2 ASCII bytes, got %q", cmd)
	}
	name := m.Name
	if len(name) > maxNameLen {
		return nil, errs.New(errs.InvalidArgument, "session name %q exceeds %d characters", name, maxNameLen)
	}
	out := make([]byte, controlHeaderLen+12+len(name)+1)
	binary.BigEndian.PutUint16(out[0:2], Signature)
	copy(out[2:4], cmd)
	binary.BigEndian.PutUint32(out[4:8], m.Version)
	binary.BigEndian.PutUint32(out[8:12], m.Token)
	binary.BigEndian.PutUint32(out[12:16], m.SSRC)
	copy(out[16:16+len(name)], name)
	out[16+len(name)] = 0
	return out, nil
}

// DecodeInvitation parses an invitation-family packet body. The caller
// has already identified cmd via DetectCommand.
func DecodeInvitation(buf []byte) (Command, InvitationMessage, error) {
	cmd, ok := DetectCommand(buf)
	if !ok {
		return "", InvitationMessage{}, errs.New(errs.ProtocolViolation, "not an appleMIDI control packet")
	}
	if len(buf) < controlHeaderLen+12+1 {
		return "", InvitationMessage{}, errs.New(errs.InvalidArgument, "invitation packet too short: %d bytes", len(buf))
	}
	body := buf[controlHeaderLen:]
	m := InvitationMessage{
		Version: binary.BigEndian.Uint32(body[0:4]),
		Token:   binary.BigEndian.Uint32(body[4:8]),
		SSRC:    binary.BigEndian.Uint32(body[8:12]),
	}
	nameBytes := body[12:]
	nul := indexByte(nameBytes, 0)
	if nul < 0 {
		return "", InvitationMessage{}, errs.New(errs.InvalidArgument, "invitation name is not NUL-terminated")
	}
	m.Name = string(nameBytes[:nul])
	return cmd, m, nil
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

// SyncMessage is the body of a CK packet: ssrc(4) count(1) pad(3)
// timestamp1(8) timestamp2(8) timestamp3(8).
type SyncMessage struct {
	SSRC  uint32
	Count uint8
	T1    uint64
	T2    uint64
	T3    uint64
}

const syncBodyLen = 4 + 1 + 3 + 8 + 8 + 8

// EncodeSync serializes a CK packet.
func EncodeSync(m SyncMessage) []byte {
	out := make([]byte, controlHeaderLen+syncBodyLen)
	binary.BigEndian.PutUint16(out[0:2], Signature)
	copy(out[2:4], CommandSync)
	binary.BigEndian.PutUint32(out[4:8], m.SSRC)
	out[8] = m.Count
	binary.BigEndian.PutUint64(out[12:20], m.T1)
	binary.BigEndian.PutUint64(out[20:28], m.T2)
	binary.BigEndian.PutUint64(out[28:36], m.T3)
	return out
}

// DecodeSync parses a CK packet body.
func DecodeSync(buf []byte) (SyncMessage, error) {
	if cmd, ok := DetectCommand(buf); !ok || cmd != CommandSync {
		return SyncMessage{}, errs.New(errs.ProtocolViolation, "not a CK packet")
	}
	if len(buf) < controlHeaderLen+syncBodyLen {
		return SyncMessage{}, errs.New(errs.InvalidArgument, "CK packet too short: %d bytes", len(buf))
	}
	body := buf[controlHeaderLen:]
	return SyncMessage{
		SSRC:  binary.BigEndian.Uint32(body[0:4]),
		Count: body[4],
		T1:    binary.BigEndian.Uint64(body[8:16]),
		T2:    binary.BigEndian.Uint64(body[16:24]),
		T3:    binary.BigEndian.Uint64(body[24:32]),
	}, nil
}

// FeedbackMessage is the body of an RS packet: ssrc(4) seqnum(4).
type FeedbackMessage struct {
	SSRC   uint32
	SeqNum uint32
}

const feedbackBodyLen = 8

// EncodeFeedback serializes an RS packet.
func EncodeFeedback(m FeedbackMessage) []byte {
	out := make([]byte, controlHeaderLen+feedbackBodyLen)
	binary.BigEndian.PutUint16(out[0:2], Signature)
	copy(out[2:4], CommandFeedback)
	binary.BigEndian.PutUint32(out[4:8], m.SSRC)
	binary.BigEndian.PutUint32(out[8:12], m.SeqNum)
	return out
}

// DecodeFeedback parses an RS packet body.
func DecodeFeedback(buf []byte) (FeedbackMessage, error) {
	if cmd, ok := DetectCommand(buf); !ok || cmd != CommandFeedback {
		return FeedbackMessage{}, errs.New(errs.ProtocolViolation, "not an RS packet")
	}
	if len(buf) < controlHeaderLen+feedbackBodyLen {
		return FeedbackMessage{}, errs.New(errs.InvalidArgument, "RS packet too short: %d bytes", len(buf))
	}
	body := buf[controlHeaderLen:]
	return FeedbackMessage{
		SSRC:   binary.BigEndian.Uint32(body[0:4]),
		SeqNum: binary.BigEndian.Uint32(body[4:8]),
	}, nil
}

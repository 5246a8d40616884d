// Package rtp implements the RTP transport: wrapping a MIDI payload in an
// RTP header and delivering it to a peer, parsing inbound RTP and
// demultiplexing by ssrc, the peer table, and the recovery journal (spec
// §4.2, §3 RTP Session/Peer/Recovery Journal). It owns the data-port UDP
// endpoint; the AppleMIDI control-port endpoint is a separate concern
// owned by package applemidi.
package rtp

import (
	"net"
	"sync"
	"time"

	pionrtp "github.com/pion/rtp"

	"github.com/embermesh/rtpmidi/internal/errs"
	"github.com/embermesh/rtpmidi/timestamp"
)

// PayloadType is the RTP-MIDI payload type per RFC 6295.
const PayloadType = 0x61

// PacketInfo is the result of parsing one inbound RTP datagram.
type PacketInfo struct {
	SSRC           uint32
	SequenceNumber uint16
	Timestamp      uint32
	Payload        []byte
	// Peer is nil when the datagram's ssrc is not in the peer table —
	// the session engine decides whether to accept an unknown source.
	Peer *Peer
	Addr net.Addr
}

// Session owns one UDP endpoint (the data port), the local ssrc, the
// timestamp clock, the 16-bit-sequence-per-peer bookkeeping, the peer
// table, and one Journal per peer.
type Session struct {
	mu        sync.RWMutex
	conn      net.PacketConn
	localSSRC uint32
	clock     timestamp.Clock

	bySSRC          map[uint32]*Peer
	byAddr          map[string]*Peer
	journals        map[uint32]*Journal
	journalCapacity int
}

// NewSession builds a Session around an already-bound data-port
// connection. clock must not be nil; pass a *timestamp.SampleClock
// constructed by the caller rather than a global, per the "no hidden
// globals" design note.
func NewSession(conn net.PacketConn, localSSRC uint32, clock timestamp.Clock) *Session {
	return &Session{
		conn:            conn,
		localSSRC:       localSSRC,
		clock:           clock,
		bySSRC:          make(map[uint32]*Peer),
		byAddr:          make(map[string]*Peer),
		journals:        make(map[uint32]*Journal),
		journalCapacity: MinJournalCapacity,
	}
}

// LocalSSRC returns the session's local synchronization source identifier.
func (s *Session) LocalSSRC() uint32 { return s.localSSRC }

// Conn returns the underlying data-port connection, so the host can drive
// readiness polling alongside the control-port connection it owns.
func (s *Session) Conn() net.PacketConn { return s.conn }

// Close releases the data-port connection.
func (s *Session) Close() error { return s.conn.Close() }

// AddPeer registers a peer by ssrc and address, allocating its journal.
// Adding an already-registered ssrc is a no-op that returns the existing
// Peer, matching the invariant that peers are unique by ssrc.
func (s *Session) AddPeer(ssrc uint32, addr net.Addr) (*Peer, error) {
	if ssrc == s.localSSRC {
		return nil, errs.New(errs.InvalidArgument, "peer ssrc 0x%x collides with local ssrc", ssrc)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, exists := s.bySSRC[ssrc]; exists {
		return p, nil
	}
	p := &Peer{SSRC: ssrc, Addr: addr}
	s.bySSRC[ssrc] = p
	s.byAddr[addrKey(addr)] = p
	s.journals[ssrc] = NewJournal(s.journalCapacity)
	return p, nil
}

// RemovePeer deletes a peer and its journal. Removing an unknown ssrc is
// a no-op.
func (s *Session) RemovePeer(ssrc uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.bySSRC[ssrc]
	if !ok {
		return
	}
	delete(s.bySSRC, ssrc)
	delete(s.byAddr, addrKey(p.Addr))
	delete(s.journals, ssrc)
}

// FindPeerBySSRC looks up a peer by synchronization source identifier.
func (s *Session) FindPeerBySSRC(ssrc uint32) (*Peer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.bySSRC[ssrc]
	return p, ok
}

// FindPeerByAddress looks up a peer by its network address.
func (s *Session) FindPeerByAddress(addr net.Addr) (*Peer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byAddr[addrKey(addr)]
	return p, ok
}

// Range iterates the peer table, calling fn for each peer until it
// returns false or the table is exhausted. This is the "next_peer"
// iteration operation from spec §4.2, expressed in the idiom the
// teacher's sync.Map-based connection table already used.
func (s *Session) Range(fn func(*Peer) bool) {
	s.mu.RLock()
	peers := make([]*Peer, 0, len(s.bySSRC))
	for _, p := range s.bySSRC {
		peers = append(peers, p)
	}
	s.mu.RUnlock()
	for _, p := range peers {
		if !fn(p) {
			return
		}
	}
}

// PeerCount returns the number of peers currently registered.
func (s *Session) PeerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bySSRC)
}

// Send composes the RTP header, appends payload, transmits to the peer's
// address, increments its send sequence, and journals the send. It fails
// with NoPeer if ssrc is not registered.
func (s *Session) Send(ssrc uint32, payload []byte) (uint16, error) {
	s.mu.Lock()
	p, ok := s.bySSRC[ssrc]
	if !ok {
		s.mu.Unlock()
		return 0, errs.New(errs.NoPeer, "no peer with ssrc 0x%x", ssrc)
	}
	p.SendSequence++
	seq := p.SendSequence
	journal := s.journals[ssrc]
	addr := p.Addr
	s.mu.Unlock()

	header := pionrtp.Header{
		Version:        2,
		PayloadType:    PayloadType,
		SequenceNumber: seq,
		Timestamp:      s.clock.Now(),
		SSRC:           s.localSSRC,
	}
	packet := pionrtp.Packet{Header: header, Payload: payload}
	buf, err := packet.Marshal()
	if err != nil {
		return 0, errs.Wrap(errs.IOError, err, "marshal rtp packet")
	}
	if _, err := s.conn.WriteTo(buf, addr); err != nil {
		return 0, errs.Wrap(errs.IOError, err, "write datagram to peer 0x%x", ssrc)
	}
	if journal != nil {
		journal.Append(seq, payload)
	}
	return seq, nil
}

// TryReadDatagram performs one non-blocking read on the session's data
// connection. See TryReadDatagram (the package-level function) for the
// readiness-probe contract.
func (s *Session) TryReadDatagram(buf []byte) (n int, addr net.Addr, ready bool, err error) {
	return TryReadDatagram(s.conn, buf)
}

// TryReadDatagram performs one non-blocking read: a zero-timeout
// readiness probe followed by a ReadFrom, per spec §5 ("every recv/send
// is guarded by a readiness probe with a zero timeout"). ready is false,
// with a nil error, when no datagram was available. It is exported as a
// standalone function so the AppleMIDI control socket — which is not
// wrapped in a Session — can use the same non-blocking idiom.
func TryReadDatagram(conn net.PacketConn, buf []byte) (n int, addr net.Addr, ready bool, err error) {
	if err := conn.SetReadDeadline(time.Now()); err != nil {
		return 0, nil, false, errs.Wrap(errs.IOError, err, "set read deadline")
	}
	n, addr, err = conn.ReadFrom(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return 0, nil, false, nil
		}
		return 0, nil, false, errs.Wrap(errs.IOError, err, "read datagram")
	}
	return n, addr, true, nil
}

// Parse decodes one already-read RTP datagram and demultiplexes it by
// ssrc. It does no I/O. A version mismatch or stale sequence number (per
// the reordering-tolerance rule) is a ProtocolViolation; the caller logs
// and drops per spec §7 policy.
func (s *Session) Parse(buf []byte, addr net.Addr) (PacketInfo, error) {
	var packet pionrtp.Packet
	if err := packet.Unmarshal(buf); err != nil {
		return PacketInfo{}, errs.Wrap(errs.ProtocolViolation, err, "unmarshal rtp packet")
	}
	if packet.Version != 2 {
		return PacketInfo{}, errs.New(errs.ProtocolViolation, "rtp version mismatch: got %d", packet.Version)
	}

	info := PacketInfo{
		SSRC:           packet.SSRC,
		SequenceNumber: packet.SequenceNumber,
		Timestamp:      packet.Timestamp,
		Payload:        packet.Payload,
		Addr:           addr,
	}

	s.mu.Lock()
	peer, known := s.bySSRC[packet.SSRC]
	stale := false
	if known {
		stale = !peer.observe(packet.SequenceNumber)
	}
	s.mu.Unlock()

	if stale {
		return PacketInfo{}, errs.New(errs.ProtocolViolation, "stale sequence %d from peer 0x%x", packet.SequenceNumber, packet.SSRC)
	}
	info.Peer = peer
	return info, nil
}

// TruncateJournal drops every journal entry up to and including upToSeq
// for the given peer, per the RS receiver-feedback contract.
func (s *Session) TruncateJournal(ssrc uint32, upToSeq uint16) error {
	s.mu.RLock()
	j, ok := s.journals[ssrc]
	s.mu.RUnlock()
	if !ok {
		return errs.New(errs.NoPeer, "no journal for ssrc 0x%x", ssrc)
	}
	j.Truncate(upToSeq)
	return nil
}

// ReplayJournal returns every payload sent to ssrc since fromSeq.
func (s *Session) ReplayJournal(ssrc uint32, fromSeq uint16) ([][]byte, error) {
	s.mu.RLock()
	j, ok := s.journals[ssrc]
	s.mu.RUnlock()
	if !ok {
		return nil, errs.New(errs.NoPeer, "no journal for ssrc 0x%x", ssrc)
	}
	return j.Replay(fromSeq), nil
}

// JournalLen reports how many entries are currently retained for ssrc.
func (s *Session) JournalLen(ssrc uint32) (int, error) {
	s.mu.RLock()
	j, ok := s.journals[ssrc]
	s.mu.RUnlock()
	if !ok {
		return 0, errs.New(errs.NoPeer, "no journal for ssrc 0x%x", ssrc)
	}
	return j.Len(), nil
}

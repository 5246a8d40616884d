package rtp

import "net"

// Peer is one remote participant in an RTP session: its synchronization
// source identifier, network address, and the send/receive sequence
// bookkeeping needed to detect loss and reordering (spec §3 RTP Peer).
//
// A Peer is only ever handed out as a borrowed reference during a tick
// (spec §5); callers must not retain it across ticks.
type Peer struct {
	SSRC uint32
	Addr net.Addr

	// SendSequence is the last sequence number sent to this peer. It
	// increments monotonically (mod 2^16) on every Session.Send call
	// targeting this peer.
	SendSequence uint16
	// RecvSequence is the last sequence number observed from this
	// peer.
	RecvSequence uint16
	// TimestampDiff is the estimated offset between this peer's clock
	// and the local clock, in timestamp units, as established by the
	// three-round CK exchange.
	TimestampDiff int64

	// Info is an opaque back-reference the session engine uses to
	// attach its own per-peer state (invitation/sync phase) without
	// the transport layer needing to know its shape.
	Info interface{}

	recvInitialized bool
}

// addrKey is the map key used to index peers by address: net.Addr is not
// itself comparable across implementations, so String() is the
// normalized form.
func addrKey(a net.Addr) string { return a.String() }

// seqDelta returns seqnum-last as a signed 16-bit quantity, per spec's
// ordering rule: negative deltas are stale and should be dropped.
func seqDelta(seqnum, last uint16) int16 {
	return int16(seqnum - last)
}

// observe updates RecvSequence for an inbound seqnum and reports whether
// it should be accepted (non-stale). The first packet from a peer is
// always accepted and seeds RecvSequence.
func (p *Peer) observe(seqnum uint16) (accept bool) {
	if !p.recvInitialized {
		p.RecvSequence = seqnum
		p.recvInitialized = true
		return true
	}
	if seqDelta(seqnum, p.RecvSequence) < 0 {
		return false
	}
	p.RecvSequence = seqnum
	return true
}

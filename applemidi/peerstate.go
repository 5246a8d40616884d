package applemidi

import (
	"net"
	"time"
)

// SyncPhase is a peer's position in the three-round CK exchange (spec
// §3 "Per-peer sync state").
type SyncPhase int

const (
	SyncIdle SyncPhase = iota
	SyncCK0Sent
	SyncCK1Sent
	SyncCK2Sent
	SyncSynced
)

func (p SyncPhase) String() string {
	switch p {
	case SyncIdle:
		return "idle"
	case SyncCK0Sent:
		return "ck0_sent"
	case SyncCK1Sent:
		return "ck1_sent"
	case SyncCK2Sent:
		return "ck2_sent"
	case SyncSynced:
		return "synced"
	default:
		return "unknown"
	}
}

// invitationPhase is the initiator/responder invitation state (spec
// §4.3 "Invitation state machine").
type invitationPhase int

const (
	invitationIdle invitationPhase = iota
	invitationSent
	invitationDataSent
	invitationAccepted
	invitationRejected
)

// peerSession is the engine's private per-peer bookkeeping, attached to
// an *rtp.Peer via its Info field once the peer is admitted to the RTP
// session. For peers still mid-invitation (not yet admitted), the engine
// tracks them separately in Engine.pending.
type peerSession struct {
	name        string
	controlAddr net.Addr
	dataAddr    net.Addr
	token       uint32

	invitation invitationPhase
	retries    int
	lastSentAt time.Time

	sync       SyncPhase
	t1, t2, t3 uint64
	lastSyncAt time.Time
}

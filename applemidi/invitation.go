package applemidi

import (
	"net"
	"time"
)

// handleInvitation processes an inbound IN. fromControlSocket true means
// this is the first round (addressed to port P); false means the second
// round (addressed to port P+1), at which point an accepted peer is
// admitted into the RTP session (spec §4.3 "Invitation state machine
// (responder)").
func (e *Engine) handleInvitation(buf []byte, addr net.Addr, now time.Time, fromControlSocket bool) {
	_, m, err := DecodeInvitation(buf)
	if err != nil {
		e.logger.WithError(err).Debug("dropping malformed invitation")
		e.metrics.dropped("invitation_decode")
		return
	}

	accept := true
	if e.acceptInvitation != nil {
		accept = e.acceptInvitation(m.Name, addr)
	}

	reply := InvitationMessage{Version: ProtocolVersion, Token: m.Token, SSRC: e.localSSRC}
	conn := e.controlConn
	if !fromControlSocket {
		conn = e.dataSession.Conn()
	}

	if !accept {
		buf, encErr := EncodeInvitation(CommandRejected, reply)
		if encErr == nil {
			conn.WriteTo(buf, addr)
		}
		e.metrics.inc(func(mt *Metrics) { mt.InvitationsRejected.Inc() })
		return
	}

	okBuf, encErr := EncodeInvitation(CommandAccepted, reply)
	if encErr != nil {
		return
	}
	conn.WriteTo(okBuf, addr)
	e.metrics.inc(func(mt *Metrics) { mt.InvitationsAccepted.Inc() })

	if fromControlSocket {
		e.pending[m.Token] = &peerSession{controlAddr: addr, token: m.Token, name: m.Name, invitation: invitationIdle}
		return
	}

	ps, found := e.pending[m.Token]
	if found {
		delete(e.pending, m.Token)
	} else {
		ps = &peerSession{name: m.Name, token: m.Token}
	}
	ps.dataAddr = addr

	peer, err := e.dataSession.AddPeer(m.SSRC, addr)
	if err != nil {
		e.logger.WithError(err).Warn("failed to admit peer after accepted invitation")
		return
	}
	peer.Info = ps
	e.StartSync(m.SSRC, now)
}

// handleAccepted processes an inbound OK, matching it to a pending
// invitation by token (spec §4.3 "Invitation state machine (initiator)").
func (e *Engine) handleAccepted(buf []byte, addr net.Addr, now time.Time, fromControlSocket bool) {
	_, m, err := DecodeInvitation(buf)
	if err != nil {
		e.logger.WithError(err).Debug("dropping malformed OK")
		e.metrics.dropped("invitation_decode")
		return
	}
	ps, ok := e.pending[m.Token]
	if !ok {
		return // stale or duplicate OK with no matching invitation
	}

	if fromControlSocket {
		if ps.invitation != invitationSent {
			return
		}
		ps.invitation = invitationDataSent
		ps.name = m.Name
		ps.lastSentAt = now

		dataAddr := dataPortOf(addr)
		ps.dataAddr = dataAddr
		peer, err := e.dataSession.AddPeer(m.SSRC, dataAddr)
		if err != nil {
			e.logger.WithError(err).Warn("failed to admit peer after control-round accept")
			return
		}
		peer.Info = ps

		msg := InvitationMessage{Version: ProtocolVersion, Token: ps.token, SSRC: e.localSSRC, Name: e.name}
		dataBuf, err := EncodeInvitation(CommandInvitation, msg)
		if err != nil {
			return
		}
		e.dataSession.Conn().WriteTo(dataBuf, dataAddr)
		e.metrics.inc(func(mt *Metrics) { mt.InvitationsSent.Inc() })
		return
	}

	if ps.invitation != invitationDataSent {
		return
	}
	delete(e.pending, m.Token)
	ps.invitation = invitationAccepted
	e.metrics.inc(func(mt *Metrics) { mt.InvitationsAccepted.Inc() })
	e.StartSync(m.SSRC, now)
}

// handleRejected tears down a pending (and, if already admitted, an
// in-progress) invitation on an inbound NO.
func (e *Engine) handleRejected(buf []byte) {
	_, m, err := DecodeInvitation(buf)
	if err != nil {
		e.metrics.dropped("invitation_decode")
		return
	}
	if ps, ok := e.pending[m.Token]; ok {
		ps.invitation = invitationRejected
		delete(e.pending, m.Token)
	}
	if peer, ok := e.dataSession.FindPeerBySSRC(m.SSRC); ok {
		e.dataSession.RemovePeer(peer.SSRC)
	}
	e.metrics.inc(func(mt *Metrics) { mt.InvitationsRejected.Inc() })
}

// handleEndSession removes a peer on an inbound BY, per spec §4.3
// "Teardown": subsequent RTP-MIDI from that ssrc is dropped because the
// peer is no longer in the table.
func (e *Engine) handleEndSession(buf []byte) {
	_, m, err := DecodeInvitation(buf)
	if err != nil {
		e.metrics.dropped("invitation_decode")
		return
	}
	for token, ps := range e.pending {
		if ps.token == m.Token {
			delete(e.pending, token)
		}
	}
	if _, ok := e.dataSession.FindPeerBySSRC(m.SSRC); ok {
		e.dataSession.RemovePeer(m.SSRC)
	}
}

// handleSync processes one CK round (spec §4.3.3).
func (e *Engine) handleSync(buf []byte, addr net.Addr, now time.Time) {
	m, err := DecodeSync(buf)
	if err != nil {
		e.metrics.dropped("sync_decode")
		return
	}
	if m.SSRC == e.localSSRC {
		return // echo of our own ssrc, discarded per spec
	}
	peer, ok := e.dataSession.FindPeerBySSRC(m.SSRC)
	if !ok {
		e.metrics.dropped("sync_no_peer")
		return
	}
	ps, _ := peer.Info.(*peerSession)
	if ps == nil {
		ps = &peerSession{}
		peer.Info = ps
	}

	switch m.Count {
	case 0:
		t2 := localTimestamp64(now)
		ps.t1, ps.t2 = m.T1, t2
		ps.sync = SyncCK1Sent
		reply := SyncMessage{SSRC: e.localSSRC, Count: 1, T1: m.T1, T2: t2}
		e.dataSession.Conn().WriteTo(EncodeSync(reply), addr)

	case 1:
		t3 := localTimestamp64(now)
		reply := SyncMessage{SSRC: e.localSSRC, Count: 2, T1: m.T1, T2: m.T2, T3: t3}
		e.dataSession.Conn().WriteTo(EncodeSync(reply), addr)
		peer.TimestampDiff = clockOffset(m.T1, m.T2, t3)
		ps.sync = SyncSynced
		ps.lastSyncAt = now
		e.metrics.inc(func(mt *Metrics) { mt.SyncRounds.Inc() })

	case 2:
		peer.TimestampDiff = clockOffset(m.T1, m.T2, m.T3)
		ps.sync = SyncSynced
		ps.lastSyncAt = now
		e.metrics.inc(func(mt *Metrics) { mt.SyncRounds.Inc() })
	}
}

// clockOffset implements spec §4.3.3's Cristian-style estimate:
// ((t3-t1)/2) + (t2-t3).
func clockOffset(t1, t2, t3 uint64) int64 {
	oneWay := (int64(t3) - int64(t1)) / 2
	return oneWay + (int64(t2) - int64(t3))
}

// handleFeedback truncates the originating peer's journal up to the
// reported sequence number (spec §4.3 "Receiver feedback").
func (e *Engine) handleFeedback(buf []byte) {
	m, err := DecodeFeedback(buf)
	if err != nil {
		e.metrics.dropped("feedback_decode")
		return
	}
	if err := e.dataSession.TruncateJournal(m.SSRC, uint16(m.SeqNum)); err != nil {
		e.metrics.dropped("feedback_no_peer")
	}
}

// dataPortOf returns an address one port above addr's, matching the
// AppleMIDI convention that a peer's data port is its control port + 1.
func dataPortOf(addr net.Addr) net.Addr {
	udpAddr, ok := addr.(*net.UDPAddr)
	if !ok {
		return addr
	}
	next := *udpAddr
	next.Port++
	return &next
}

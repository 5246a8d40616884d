package applemidi

import (
	"net"
	"time"

	"github.com/embermesh/rtpmidi/midi"
	"github.com/embermesh/rtpmidi/rtp"
)

// TickReceive drains up to the configured receive budget (K, default 16)
// of ready datagrams across both sockets, per spec §4.3 "tick_receive".
func (e *Engine) TickReceive(now time.Time) error {
	budget := e.receiveBudget
	for budget > 0 {
		n, addr, ready, err := rtp.TryReadDatagram(e.controlConn, e.controlBuf)
		if err != nil {
			e.logger.WithError(err).Warn("control socket read error")
			budget--
			continue
		}
		if ready {
			e.handleDatagram(e.controlBuf[:n], addr, now, true)
			budget--
			continue
		}

		n, addr, ready, err = e.dataSession.TryReadDatagram(e.dataBuf)
		if err != nil {
			e.logger.WithError(err).Warn("data socket read error")
			budget--
			continue
		}
		if !ready {
			break
		}
		e.handleDatagram(e.dataBuf[:n], addr, now, false)
		budget--
	}
	return nil
}

// handleDatagram routes one already-read datagram: a recognized AppleMIDI
// command goes to the control dispatch; anything else on the data socket
// is RTP-MIDI. A non-AppleMIDI frame on the control socket is a
// protocol-violation and is logged and dropped (spec §4.3 "Dispatch").
func (e *Engine) handleDatagram(buf []byte, addr net.Addr, now time.Time, fromControlSocket bool) {
	if cmd, ok := DetectCommand(buf); ok {
		e.handleControlCommand(cmd, buf, addr, now, fromControlSocket)
		return
	}
	if fromControlSocket {
		e.logger.WithField("addr", addr).Warn("protocol violation: non-appleMIDI frame on control socket")
		e.metrics.dropped("control_protocol_violation")
		return
	}
	e.handleRTPMIDI(buf, addr)
}

func (e *Engine) handleControlCommand(cmd Command, buf []byte, addr net.Addr, now time.Time, fromControlSocket bool) {
	switch cmd {
	case CommandInvitation:
		e.handleInvitation(buf, addr, now, fromControlSocket)
	case CommandAccepted:
		e.handleAccepted(buf, addr, now, fromControlSocket)
	case CommandRejected:
		e.handleRejected(buf)
	case CommandEndSession:
		e.handleEndSession(buf)
	case CommandSync:
		e.handleSync(buf, addr, now)
	case CommandFeedback:
		e.handleFeedback(buf)
	}
}

// handleRTPMIDI parses one RTP-MIDI datagram and, if it decodes to a
// known peer, pushes the carried message onto the in-queue.
func (e *Engine) handleRTPMIDI(buf []byte, addr net.Addr) {
	info, err := e.dataSession.Parse(buf, addr)
	if err != nil {
		e.logger.WithError(err).Debug("dropping malformed or stale RTP-MIDI datagram")
		e.metrics.dropped("rtp_parse")
		return
	}
	if info.Peer == nil {
		e.logger.WithField("ssrc", info.SSRC).Debug("dropping RTP-MIDI from unknown peer")
		e.metrics.dropped("unknown_peer")
		return
	}
	msg, err := midi.Decode(info.Payload)
	if err != nil {
		e.logger.WithError(err).Debug("dropping undecodable MIDI payload")
		e.metrics.dropped("codec_decode")
		return
	}
	if err := e.inQueue.Push(msg); err != nil {
		e.logger.WithError(err).Debug("in-queue full, dropping message")
		e.metrics.dropped("in_queue_full")
		return
	}
	e.metrics.inc(func(m *Metrics) { m.MessagesReceived.Inc() })
}

// TickSend drains up to the configured send batch (B, default 8) of
// out-queue entries, transmitting each as its own RTP packet (spec §4.3
// "tick_send"; see DESIGN.md for why batching is one-packet-per-message
// rather than concatenation into a single RTP-MIDI payload).
func (e *Engine) TickSend(now time.Time) error {
	drained := 0
	for drained < e.sendBatch {
		pending, ok := e.outQueue.Pop()
		if !ok {
			break
		}
		drained++
		size, err := midi.Size(pending.msg)
		if err != nil {
			e.logger.WithError(err).Debug("dropping unsizeable outbound message")
			e.metrics.dropped("codec_size")
			continue
		}
		payload := make([]byte, size)
		if _, err := midi.Encode(pending.msg, payload); err != nil {
			e.logger.WithError(err).Debug("dropping unencodable outbound message")
			e.metrics.dropped("codec_encode")
			continue
		}
		if _, err := e.dataSession.Send(pending.ssrc, payload); err != nil {
			e.logger.WithError(err).Debug("dropping outbound message, send failed")
			e.metrics.dropped("rtp_send")
			continue
		}
		e.metrics.inc(func(m *Metrics) { m.MessagesSent.Inc() })
	}
	return nil
}

// TickIdle flushes receiver feedback, re-syncs peers whose last sync is
// older than the resync period, and is the host's periodic heartbeat
// (spec §4.3 "tick_idle").
func (e *Engine) TickIdle(now time.Time) error {
	e.dataSession.Range(func(peer *rtp.Peer) bool {
		ps, _ := peer.Info.(*peerSession)
		if ps == nil || ps.sync != SyncSynced {
			return true
		}
		if now.Sub(ps.lastSyncAt) >= e.resyncPeriod {
			e.StartSync(peer.SSRC, now)
		}

		lastFeedback := e.lastFeedbackAt[peer.SSRC]
		if now.Sub(lastFeedback) >= DefaultFeedbackPeriod {
			e.sendFeedback(peer, now)
		}
		return true
	})
	e.expireInvitations(now)
	e.metrics.inc(func(m *Metrics) { m.PeerCount.Set(float64(e.dataSession.PeerCount())) })
	return nil
}

// expireInvitations retransmits invitations that have gone unanswered
// past the round-trip timeout, up to DefaultMaxRetries times, then
// declares the peer dead and drops the pending entry (spec §5 "invitation
// round-trip timeout 5 seconds, retransmit up to 3 times").
func (e *Engine) expireInvitations(now time.Time) {
	for token, ps := range e.pending {
		if ps.invitation != invitationSent && ps.invitation != invitationDataSent {
			continue
		}
		if now.Sub(ps.lastSentAt) < DefaultInvitationTimeout {
			continue
		}
		if ps.retries >= DefaultMaxRetries {
			e.logger.WithField("token", token).Warn("invitation timed out, declaring peer dead")
			delete(e.pending, token)
			continue
		}
		ps.retries++
		ps.lastSentAt = now
		msg := InvitationMessage{Version: ProtocolVersion, Token: ps.token, SSRC: e.localSSRC, Name: e.name}
		buf, err := EncodeInvitation(CommandInvitation, msg)
		if err != nil {
			continue
		}
		if ps.invitation == invitationSent {
			e.controlConn.WriteTo(buf, ps.controlAddr)
		} else {
			e.dataSession.Conn().WriteTo(buf, ps.dataAddr)
		}
	}
}

func (e *Engine) sendFeedback(peer *rtp.Peer, now time.Time) {
	msg := FeedbackMessage{SSRC: e.localSSRC, SeqNum: uint32(peer.RecvSequence)}
	if _, err := e.dataSession.Conn().WriteTo(EncodeFeedback(msg), peer.Addr); err != nil {
		e.logger.WithError(err).Debug("failed to send receiver feedback")
		return
	}
	e.lastFeedbackAt[peer.SSRC] = now
}

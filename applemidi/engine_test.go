package applemidi

import (
	"net"
	"testing"
	"time"

	"github.com/embermesh/rtpmidi/midi"
	"github.com/embermesh/rtpmidi/rtp"
	"github.com/embermesh/rtpmidi/timestamp"
)

func mustListenUDP(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}
	return conn
}

func newTestEngine(t *testing.T, localSSRC uint32, opts ...Option) (*Engine, *net.UDPConn, *net.UDPConn) {
	t.Helper()
	control := mustListenUDP(t)
	data := mustListenUDP(t)
	clock := timestamp.NewSampleClock(0, time.Now())
	e := NewEngine(control, data, localSSRC, clock, opts...)
	return e, control, data
}

// TestInvitationInitiatorHandshake is scenario S1 from spec.md §8: a
// two-round invitation against a simulated peer bound to adjacent ports.
func TestInvitationInitiatorHandshake(t *testing.T) {
	peerControl, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 19500})
	if err != nil {
		t.Skipf("fixed port 19500 unavailable: %v", err)
	}
	defer peerControl.Close()
	peerData, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 19501})
	if err != nil {
		t.Skipf("fixed port 19501 unavailable: %v", err)
	}
	defer peerData.Close()

	e, control, data := newTestEngine(t, 0x11111111)
	defer control.Close()
	defer data.Close()
	defer e.Close()

	if err := e.AddPeer("127.0.0.1", 19500); err != nil {
		t.Fatalf("AddPeer: %v", err)
	}

	buf := make([]byte, 256)
	peerControl.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, engineControlAddr, err := peerControl.ReadFrom(buf)
	if err != nil {
		t.Fatalf("peer control ReadFrom: %v", err)
	}
	cmd, invite, err := DecodeInvitation(buf[:n])
	if err != nil || cmd != CommandInvitation {
		t.Fatalf("expected IN, got cmd=%q err=%v", cmd, err)
	}
	if invite.SSRC != 0x11111111 {
		t.Fatalf("invitation ssrc = %#x, want %#x", invite.SSRC, 0x11111111)
	}

	peerSSRC := uint32(0xDEADBEEF)
	okBuf, _ := EncodeInvitation(CommandAccepted, InvitationMessage{Version: ProtocolVersion, Token: invite.Token, SSRC: peerSSRC})
	if _, err := peerControl.WriteTo(okBuf, engineControlAddr); err != nil {
		t.Fatalf("peer control WriteTo: %v", err)
	}

	now := time.Now()
	if err := e.TickReceive(now); err != nil {
		t.Fatalf("TickReceive: %v", err)
	}

	peerData.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, engineDataAddr, err := peerData.ReadFrom(buf)
	if err != nil {
		t.Fatalf("peer data ReadFrom: %v", err)
	}
	cmd, invite2, err := DecodeInvitation(buf[:n])
	if err != nil || cmd != CommandInvitation {
		t.Fatalf("expected second-round IN on data port, got cmd=%q err=%v", cmd, err)
	}
	if invite2.Token != invite.Token {
		t.Fatalf("second-round token = %#x, want %#x", invite2.Token, invite.Token)
	}

	okBuf2, _ := EncodeInvitation(CommandAccepted, InvitationMessage{Version: ProtocolVersion, Token: invite.Token, SSRC: peerSSRC})
	if _, err := peerData.WriteTo(okBuf2, engineDataAddr); err != nil {
		t.Fatalf("peer data WriteTo: %v", err)
	}

	if err := e.TickReceive(time.Now()); err != nil {
		t.Fatalf("TickReceive: %v", err)
	}

	peer, ok := e.FindPeerBySSRC(peerSSRC)
	if !ok {
		t.Fatal("expected peer to be admitted after both accepts")
	}
	ps, ok := peer.Info.(*peerSession)
	if !ok || ps.invitation != invitationAccepted {
		t.Fatalf("peer invitation state = %+v, want accepted", ps)
	}
}

// TestSyncRoundConvergence is scenario S2: the three-round CK exchange
// and the documented closed-form offset.
func TestSyncRoundConvergence(t *testing.T) {
	e, control, data := newTestEngine(t, 1)
	defer control.Close()
	defer data.Close()
	defer e.Close()

	peerConn := mustListenUDP(t)
	defer peerConn.Close()
	peerSSRC := uint32(2)

	if _, err := addPeerDirect(e, peerSSRC, peerConn.LocalAddr()); err != nil {
		t.Fatalf("addPeerDirect: %v", err)
	}

	t0 := time.Now()
	if err := e.StartSync(peerSSRC, t0); err != nil {
		t.Fatalf("StartSync: %v", err)
	}

	buf := make([]byte, 256)
	peerConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, engineDataAddr, err := peerConn.ReadFrom(buf)
	if err != nil {
		t.Fatalf("ReadFrom CK0: %v", err)
	}
	ck0, err := DecodeSync(buf[:n])
	if err != nil || ck0.Count != 0 {
		t.Fatalf("expected CK count=0, got %+v err=%v", ck0, err)
	}
	T0 := ck0.T1

	T1 := T0 + 1000
	ck1 := SyncMessage{SSRC: peerSSRC, Count: 1, T1: T0, T2: T1}
	if _, err := peerConn.WriteTo(EncodeSync(ck1), engineDataAddr); err != nil {
		t.Fatalf("WriteTo CK1: %v", err)
	}

	if err := e.TickReceive(time.Now()); err != nil {
		t.Fatalf("TickReceive: %v", err)
	}

	n, _, err = peerConn.ReadFrom(buf)
	if err != nil {
		t.Fatalf("ReadFrom CK2: %v", err)
	}
	ck2, err := DecodeSync(buf[:n])
	if err != nil || ck2.Count != 2 {
		t.Fatalf("expected CK count=2, got %+v err=%v", ck2, err)
	}
	T2 := ck2.T3

	peer, _ := e.FindPeerBySSRC(peerSSRC)
	want := int64(T1) + int64(T2-T0)/2 - int64(T2)
	if peer.TimestampDiff != want {
		t.Fatalf("timestamp_diff = %d, want %d", peer.TimestampDiff, want)
	}
}

// TestSendMIDIProducesOneRTPPacket is scenario S3: a Note-On pushed to
// the out-queue is flushed by TickSend as one RTP packet with the exact
// 3-byte wire payload.
func TestSendMIDIProducesOneRTPPacket(t *testing.T) {
	e, control, data := newTestEngine(t, 1)
	defer control.Close()
	defer data.Close()
	defer e.Close()

	receiver := mustListenUDP(t)
	defer receiver.Close()

	peerSSRC := uint32(2)
	if _, err := addPeerDirect(e, peerSSRC, receiver.LocalAddr()); err != nil {
		t.Fatalf("addPeerDirect: %v", err)
	}

	note, err := midi.NewNote(true, 3, 60, 100)
	if err != nil {
		t.Fatalf("NewNote: %v", err)
	}
	if err := e.Send(peerSSRC, note); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := e.TickSend(time.Now()); err != nil {
		t.Fatalf("TickSend: %v", err)
	}

	buf := make([]byte, 256)
	receiver.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := receiver.ReadFrom(buf)
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	if n != 12+3 {
		t.Fatalf("packet size = %d, want 15", n)
	}
	payload := buf[12:n]
	want := []byte{0x93, 0x3C, 0x64}
	if string(payload) != string(want) {
		t.Fatalf("payload = % x, want % x", payload, want)
	}
}

// TestReceiveMIDIDeliversToInQueue is scenario S4.
func TestReceiveMIDIDeliversToInQueue(t *testing.T) {
	e, control, data := newTestEngine(t, 1)
	defer control.Close()
	defer data.Close()
	defer e.Close()

	senderConn := mustListenUDP(t)
	defer senderConn.Close()
	peerSSRC := uint32(2)
	if _, err := addPeerDirect(e, peerSSRC, senderConn.LocalAddr()); err != nil {
		t.Fatalf("addPeerDirect: %v", err)
	}

	sender := rtp.NewSession(senderConn, peerSSRC, timestamp.NewSampleClock(0, time.Now()))
	if _, err := sender.AddPeer(1, data.LocalAddr()); err != nil {
		t.Fatalf("sender.AddPeer: %v", err)
	}
	if _, err := sender.Send(1, []byte{0x83, 0x3C, 0x40}); err != nil {
		t.Fatalf("sender.Send: %v", err)
	}

	if err := e.TickReceive(time.Now()); err != nil {
		t.Fatalf("TickReceive: %v", err)
	}

	msg, ok := e.Receive()
	if !ok {
		t.Fatal("expected one message in the in-queue")
	}
	want, _ := midi.NewNote(false, 3, 60, 64)
	if !msg.Equal(want) {
		t.Fatalf("received message does not match expected Note-Off")
	}
}

// TestTeardownRemovesPeer is scenario S5.
func TestTeardownRemovesPeer(t *testing.T) {
	e, control, data := newTestEngine(t, 1)
	defer control.Close()
	defer data.Close()
	defer e.Close()

	peerConn := mustListenUDP(t)
	defer peerConn.Close()
	peerSSRC := uint32(2)
	if _, err := addPeerDirect(e, peerSSRC, peerConn.LocalAddr()); err != nil {
		t.Fatalf("addPeerDirect: %v", err)
	}

	byBuf, _ := EncodeInvitation(CommandEndSession, InvitationMessage{Version: ProtocolVersion, SSRC: peerSSRC})
	if _, err := peerConn.WriteTo(byBuf, control.LocalAddr()); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	if err := e.TickReceive(time.Now()); err != nil {
		t.Fatalf("TickReceive: %v", err)
	}

	if _, ok := e.FindPeerBySSRC(peerSSRC); ok {
		t.Fatal("expected peer to be removed after BY")
	}
}

// TestReceiverFeedbackTruncatesJournal is scenario S6.
func TestReceiverFeedbackTruncatesJournal(t *testing.T) {
	e, control, data := newTestEngine(t, 1)
	defer control.Close()
	defer data.Close()
	defer e.Close()

	receiver := mustListenUDP(t)
	defer receiver.Close()
	peerSSRC := uint32(2)
	peer, err := addPeerDirect(e, peerSSRC, receiver.LocalAddr())
	if err != nil {
		t.Fatalf("addPeerDirect: %v", err)
	}
	peer.SendSequence = 99

	for i := 0; i < 5; i++ {
		note, _ := midi.NewNote(true, 0, 60, 100)
		if err := e.Send(peerSSRC, note); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}
	if err := e.TickSend(time.Now()); err != nil {
		t.Fatalf("TickSend: %v", err)
	}

	drainUDP(t, receiver, 5)

	peerConn := mustListenUDP(t)
	defer peerConn.Close()
	rsBuf := EncodeFeedback(FeedbackMessage{SSRC: peerSSRC, SeqNum: 102})
	if _, err := peerConn.WriteTo(rsBuf, control.LocalAddr()); err != nil {
		t.Fatalf("WriteTo RS: %v", err)
	}

	if err := e.TickReceive(time.Now()); err != nil {
		t.Fatalf("TickReceive: %v", err)
	}

	remaining, err := e.dataSession.ReplayJournal(peerSSRC, 0)
	if err != nil {
		t.Fatalf("ReplayJournal: %v", err)
	}
	if len(remaining) != 2 {
		t.Fatalf("journal has %d entries after RS, want 2", len(remaining))
	}
}

func drainUDP(t *testing.T, conn *net.UDPConn, count int) {
	t.Helper()
	buf := make([]byte, 256)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for i := 0; i < count; i++ {
		if _, _, err := conn.ReadFrom(buf); err != nil {
			t.Fatalf("drainUDP: %v", err)
		}
	}
}

// addPeerDirect admits a peer into the engine's RTP session without
// running the invitation handshake, for tests that exercise sync/send/
// receive/teardown/feedback in isolation.
func addPeerDirect(e *Engine, ssrc uint32, addr net.Addr) (*rtp.Peer, error) {
	peer, err := e.dataSession.AddPeer(ssrc, addr)
	if err != nil {
		return nil, err
	}
	peer.Info = &peerSession{}
	return peer, nil
}

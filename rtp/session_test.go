package rtp

import (
	"net"
	"testing"
	"time"

	"github.com/embermesh/rtpmidi/timestamp"
)

func mustListen(t *testing.T) net.PacketConn {
	t.Helper()
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket: %v", err)
	}
	return conn
}

func TestSessionSendAndParseRoundTrip(t *testing.T) {
	serverConn := mustListen(t)
	defer serverConn.Close()
	clientConn := mustListen(t)
	defer clientConn.Close()

	clock := timestamp.NewSampleClock(0, time.Now())
	session := NewSession(clientConn, 0xAAAAAAAA, clock)
	defer session.Close()

	peer, err := session.AddPeer(0xBBBBBBBB, serverConn.LocalAddr())
	if err != nil {
		t.Fatalf("AddPeer: %v", err)
	}

	payload := []byte{0x93, 0x3C, 0x64}
	seq, err := session.Send(peer.SSRC, payload)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if seq != 1 {
		t.Fatalf("first sent sequence = %d, want 1", seq)
	}

	buf := make([]byte, 1500)
	serverConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, addr, err := serverConn.ReadFrom(buf)
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}

	receiver := NewSession(serverConn, 0xBBBBBBBB, clock)
	defer receiver.Close()
	if _, err := receiver.AddPeer(0xAAAAAAAA, addr); err != nil {
		t.Fatalf("AddPeer on receiver: %v", err)
	}

	info, err := receiver.Parse(buf[:n], addr)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if info.SSRC != 0xAAAAAAAA {
		t.Fatalf("SSRC = %#x, want %#x", info.SSRC, 0xAAAAAAAA)
	}
	if info.SequenceNumber != 1 {
		t.Fatalf("SequenceNumber = %d, want 1", info.SequenceNumber)
	}
	if string(info.Payload) != string(payload) {
		t.Fatalf("Payload = %v, want %v", info.Payload, payload)
	}
	if info.Peer == nil {
		t.Fatal("Peer should be resolved for a known ssrc")
	}

	journaled, err := session.JournalLen(peer.SSRC)
	if err != nil {
		t.Fatalf("JournalLen: %v", err)
	}
	if journaled != 1 {
		t.Fatalf("JournalLen = %d, want 1", journaled)
	}
}

func TestSessionSendUnknownPeer(t *testing.T) {
	conn := mustListen(t)
	defer conn.Close()
	session := NewSession(conn, 1, timestamp.NewSampleClock(0, time.Now()))
	if _, err := session.Send(99, []byte{0x90, 0x40, 0x40}); err == nil {
		t.Fatal("expected error sending to unregistered peer")
	}
}

func TestSessionTryReadDatagramNotReady(t *testing.T) {
	conn := mustListen(t)
	defer conn.Close()
	session := NewSession(conn, 1, timestamp.NewSampleClock(0, time.Now()))

	buf := make([]byte, 64)
	n, _, ready, err := session.TryReadDatagram(buf)
	if err != nil {
		t.Fatalf("TryReadDatagram: %v", err)
	}
	if ready {
		t.Fatalf("ready = true with no datagram pending, n=%d", n)
	}
}

func TestSessionAddPeerRejectsLocalSSRCCollision(t *testing.T) {
	conn := mustListen(t)
	defer conn.Close()
	session := NewSession(conn, 42, timestamp.NewSampleClock(0, time.Now()))
	_, err := session.AddPeer(42, conn.LocalAddr())
	if err == nil {
		t.Fatal("expected error adding a peer whose ssrc equals the local ssrc")
	}
}

func TestSessionRemovePeerDropsJournal(t *testing.T) {
	conn := mustListen(t)
	defer conn.Close()
	session := NewSession(conn, 1, timestamp.NewSampleClock(0, time.Now()))
	peer, _ := session.AddPeer(2, conn.LocalAddr())
	session.RemovePeer(peer.SSRC)
	if _, ok := session.FindPeerBySSRC(peer.SSRC); ok {
		t.Fatal("peer should be gone after RemovePeer")
	}
	if _, err := session.JournalLen(peer.SSRC); err == nil {
		t.Fatal("journal should be gone after RemovePeer")
	}
}

func TestSessionRangeVisitsAllPeers(t *testing.T) {
	conn := mustListen(t)
	defer conn.Close()
	session := NewSession(conn, 1, timestamp.NewSampleClock(0, time.Now()))
	session.AddPeer(2, conn.LocalAddr())
	session.AddPeer(3, conn.LocalAddr())

	seen := map[uint32]bool{}
	session.Range(func(p *Peer) bool {
		seen[p.SSRC] = true
		return true
	})
	if len(seen) != 2 {
		t.Fatalf("Range visited %d peers, want 2", len(seen))
	}
}

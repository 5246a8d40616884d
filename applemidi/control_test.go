package applemidi

import "testing"

func TestDetectCommandKnownCodes(t *testing.T) {
	for _, cmd := range []Command{CommandInvitation, CommandAccepted, CommandRejected, CommandEndSession, CommandSync, CommandFeedback} {
		buf := []byte{0xFF, 0xFF, cmd[0], cmd[1]}
		got, ok := DetectCommand(buf)
		if !ok || got != cmd {
			t.Fatalf("DetectCommand(%q) = (%q, %v), want (%q, true)", cmd, got, ok, cmd)
		}
	}
}

func TestDetectCommandRejectsUnknownCode(t *testing.T) {
	buf := []byte{0xFF, 0xFF, 'Z', 'Z'}
	if _, ok := DetectCommand(buf); ok {
		t.Fatal("expected unknown command code to be rejected")
	}
}

func TestDetectCommandRejectsBadSignature(t *testing.T) {
	buf := []byte{0x00, 0x00, 'I', 'N'}
	if _, ok := DetectCommand(buf); ok {
		t.Fatal("expected bad signature to be rejected")
	}
}

func TestInvitationRoundTrip(t *testing.T) {
	want := InvitationMessage{Version: 2, Token: 0x11223344, SSRC: 0xDEADBEEF, Name: "studio"}
	buf, err := EncodeInvitation(CommandInvitation, want)
	if err != nil {
		t.Fatalf("EncodeInvitation: %v", err)
	}
	cmd, got, err := DecodeInvitation(buf)
	if err != nil {
		t.Fatalf("DecodeInvitation: %v", err)
	}
	if cmd != CommandInvitation {
		t.Fatalf("cmd = %q, want IN", cmd)
	}
	if got != want {
		t.Fatalf("DecodeInvitation = %+v, want %+v", got, want)
	}
}

func TestInvitationRejectsOversizedName(t *testing.T) {
	_, err := EncodeInvitation(CommandInvitation, InvitationMessage{Name: "this-name-is-far-too-long"})
	if err == nil {
		t.Fatal("expected error for name over 15 characters")
	}
}

func TestInvitationEmptyName(t *testing.T) {
	buf, err := EncodeInvitation(CommandAccepted, InvitationMessage{SSRC: 7})
	if err != nil {
		t.Fatalf("EncodeInvitation: %v", err)
	}
	cmd, got, err := DecodeInvitation(buf)
	if err != nil {
		t.Fatalf("DecodeInvitation: %v", err)
	}
	if cmd != CommandAccepted || got.Name != "" || got.SSRC != 7 {
		t.Fatalf("got %q %+v", cmd, got)
	}
}

func TestSyncRoundTrip(t *testing.T) {
	want := SyncMessage{SSRC: 0xAABBCCDD, Count: 1, T1: 1000, T2: 2000, T3: 0}
	buf := EncodeSync(want)
	got, err := DecodeSync(buf)
	if err != nil {
		t.Fatalf("DecodeSync: %v", err)
	}
	if got != want {
		t.Fatalf("DecodeSync = %+v, want %+v", got, want)
	}
}

func TestFeedbackRoundTrip(t *testing.T) {
	want := FeedbackMessage{SSRC: 42, SeqNum: 102}
	buf := EncodeFeedback(want)
	got, err := DecodeFeedback(buf)
	if err != nil {
		t.Fatalf("DecodeFeedback: %v", err)
	}
	if got != want {
		t.Fatalf("DecodeFeedback = %+v, want %+v", got, want)
	}
}

func TestDecodeSyncRejectsWrongCommand(t *testing.T) {
	buf, _ := EncodeInvitation(CommandInvitation, InvitationMessage{})
	if _, err := DecodeSync(buf); err == nil {
		t.Fatal("expected error decoding an IN packet as CK")
	}
}

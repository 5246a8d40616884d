package applemidi

import (
	"net"
	"strconv"
	"time"

	"github.com/pion/randutil"
	"github.com/sirupsen/logrus"

	"github.com/embermesh/rtpmidi/internal/errs"
	"github.com/embermesh/rtpmidi/midi"
	"github.com/embermesh/rtpmidi/queue"
	"github.com/embermesh/rtpmidi/rtp"
	"github.com/embermesh/rtpmidi/timestamp"
)

// ProtocolVersion is the AppleMIDI protocol version this engine speaks.
const ProtocolVersion = 2

// pendingSend pairs an out-queue message with the peer it targets.
type pendingSend struct {
	ssrc uint32
	msg  *midi.Message
}

// Engine is the AppleMIDI session engine: it owns the control and data
// UDP endpoints, drives the invitation/sync/teardown state machines, and
// relays MIDI through the RTP transport using the codec (spec §4.3).
//
// The engine does not own an event loop. A host drives it by calling
// TickReceive, TickSend, and TickIdle (spec §5).
type Engine struct {
	localSSRC uint32
	name      string

	controlConn net.PacketConn
	dataSession *rtp.Session
	clock       timestamp.Clock

	inQueue  *queue.Queue[*midi.Message]
	outQueue *queue.Queue[pendingSend]

	logger           *logrus.Logger
	acceptInvitation func(name string, addr net.Addr) bool
	metrics          *Metrics

	receiveBudget int
	sendBatch     int
	resyncPeriod  time.Duration
	queueCapacity int

	// pending holds invitations in flight, keyed by the 32-bit token
	// that correlates an IN with its OK/NO regardless of which round
	// (control or data) or which role (initiator or responder) it is.
	pending map[uint32]*peerSession

	controlBuf []byte
	dataBuf    []byte

	lastFeedbackAt map[uint32]time.Time
}

// NewEngine builds an Engine around an already-bound control connection
// and an already-bound data connection (ports P and P+1). clock must not
// be nil.
func NewEngine(controlConn, dataConn net.PacketConn, localSSRC uint32, clock timestamp.Clock, opts ...Option) *Engine {
	e := &Engine{
		localSSRC:      localSSRC,
		controlConn:    controlConn,
		clock:          clock,
		logger:         newDiscardLogger(),
		receiveBudget:  DefaultReceiveBudget,
		sendBatch:      DefaultSendBatch,
		resyncPeriod:   DefaultResyncPeriod,
		queueCapacity:  256,
		pending:        make(map[uint32]*peerSession),
		controlBuf:     make([]byte, 1500),
		dataBuf:        make([]byte, 1500),
		lastFeedbackAt: make(map[uint32]time.Time),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.dataSession = rtp.NewSession(dataConn, localSSRC, clock)
	e.inQueue = queue.New[*midi.Message](e.queueCapacity)
	e.outQueue = queue.New[pendingSend](e.queueCapacity)
	return e
}

func newDiscardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(discardWriter{})
	return logger
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// Close releases both sockets. Per spec §5, dropping the session engine
// releases all sockets and peers; Go has no destructors, so this is an
// explicit call the host makes.
func (e *Engine) Close() error {
	err1 := e.controlConn.Close()
	err2 := e.dataSession.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// LocalSSRC returns the engine's local synchronization source identifier.
func (e *Engine) LocalSSRC() uint32 { return e.localSSRC }

// FindPeerBySSRC exposes the admitted-peer lookup for hosts and tests.
func (e *Engine) FindPeerBySSRC(ssrc uint32) (*rtp.Peer, bool) {
	return e.dataSession.FindPeerBySSRC(ssrc)
}

// PeerCount returns the number of peers currently admitted to the RTP
// session (i.e. that have completed invitation on both sockets).
func (e *Engine) PeerCount() int { return e.dataSession.PeerCount() }

// Send pushes a MIDI message onto the out-queue, to be transmitted to
// ssrc on a future TickSend. It fails with QueueFull if the out-queue is
// at capacity (drop-newest policy, spec §4.4).
func (e *Engine) Send(ssrc uint32, msg *midi.Message) error {
	return e.outQueue.Push(pendingSend{ssrc: ssrc, msg: msg})
}

// Receive pops the oldest inbound MIDI message delivered by a prior
// TickReceive. ok is false when the in-queue is empty.
func (e *Engine) Receive() (*midi.Message, bool) {
	return e.inQueue.Pop()
}

// AddPeer begins the initiator invitation state machine: it sends IN on
// the control port and records the pending invitation. A reply is
// processed by a later TickReceive.
func (e *Engine) AddPeer(host string, controlPort int) error {
	addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(host, strconv.Itoa(controlPort)))
	if err != nil {
		return errs.Wrap(errs.InvalidArgument, err, "resolve peer address")
	}
	token, err := generateToken()
	if err != nil {
		return errs.Wrap(errs.IOError, err, "generate invitation token")
	}
	ps := &peerSession{
		controlAddr: addr,
		token:       token,
		invitation:  invitationSent,
		lastSentAt:  time.Now(),
	}
	e.pending[token] = ps

	msg := InvitationMessage{Version: ProtocolVersion, Token: token, SSRC: e.localSSRC, Name: e.name}
	buf, err := EncodeInvitation(CommandInvitation, msg)
	if err != nil {
		return err
	}
	if _, err := e.controlConn.WriteTo(buf, addr); err != nil {
		return errs.Wrap(errs.IOError, err, "send invitation")
	}
	e.metrics.inc(func(m *Metrics) { m.InvitationsSent.Inc() })
	return nil
}

// RemovePeer transmits BY on the control socket carrying the local ssrc,
// then removes the peer, per spec §4.3 "Teardown".
func (e *Engine) RemovePeer(ssrc uint32) error {
	peer, ok := e.dataSession.FindPeerBySSRC(ssrc)
	if !ok {
		return errs.New(errs.NoPeer, "no peer with ssrc 0x%x", ssrc)
	}
	ps, _ := peer.Info.(*peerSession)
	msg := InvitationMessage{Version: ProtocolVersion, SSRC: e.localSSRC}
	buf, err := EncodeInvitation(CommandEndSession, msg)
	if err != nil {
		return err
	}
	if ps != nil && ps.controlAddr != nil {
		e.controlConn.WriteTo(buf, ps.controlAddr)
	}
	e.dataSession.RemovePeer(ssrc)
	return nil
}

// StartSync begins a clock-synchronization round with an already-admitted
// peer (the three-round CK exchange, spec §4.3.3). It is invoked
// automatically once invitation completes, and periodically from
// TickIdle, but is also exported so a host (or test) may trigger it
// directly, matching scenario S2 ("call start_sync").
func (e *Engine) StartSync(ssrc uint32, now time.Time) error {
	peer, ok := e.dataSession.FindPeerBySSRC(ssrc)
	if !ok {
		return errs.New(errs.NoPeer, "no peer with ssrc 0x%x", ssrc)
	}
	ps, _ := peer.Info.(*peerSession)
	if ps == nil {
		ps = &peerSession{}
		peer.Info = ps
	}
	t1 := localTimestamp64(now)
	ps.sync = SyncCK0Sent
	ps.t1 = t1
	msg := SyncMessage{SSRC: e.localSSRC, Count: 0, T1: t1}
	if _, err := e.dataSession.Conn().WriteTo(EncodeSync(msg), peer.Addr); err != nil {
		return errs.Wrap(errs.IOError, err, "send CK0")
	}
	return nil
}

func localTimestamp64(t time.Time) uint64 { return uint64(t.UnixMicro()) }

// tokenRunes is the charset generateToken draws from: a full byte's
// worth of hex digits per character, eight characters for 32 bits.
const tokenRunes = "0123456789abcdef"

// generateToken produces the random 32-bit invitation nonce (spec §3
// "local token"), reusing the teacher's pack's randutil dependency
// (pion/randutil, as used for ICE ufrag/pwd generation) rather than
// hand-rolling a random-string generator over math/rand.
func generateToken() (uint32, error) {
	hex, err := randutil.GenerateCryptoRandomString(8, tokenRunes)
	if err != nil {
		return 0, err
	}
	token, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, err
	}
	return uint32(token), nil
}

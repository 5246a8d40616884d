// Command mididump binds an AppleMIDI session, invites the peers named on
// the command line, and hex-dumps every MIDI message it receives. It is
// the host-driven tick loop the applemidi package expects a caller to
// supply; the package itself runs no event loop (spec §5).
package main

import (
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/embermesh/rtpmidi/applemidi"
	"github.com/embermesh/rtpmidi/timestamp"
)

func main() {
	var (
		port  = flag.IntP("port", "p", 5004, "control port; data port is port+1")
		name  = flag.StringP("name", "n", "mididump", "session name advertised in invitations")
		peers = flag.StringArrayP("peer", "P", nil, "peer to invite, host:port (repeatable)")
		ssrc  = flag.Uint32("ssrc", 0x4D494449, "local synchronization source identifier")
	)
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	controlConn, err := net.ListenPacket("udp", fmt.Sprintf(":%d", *port))
	if err != nil {
		logger.WithError(err).Fatal("bind control port")
	}
	dataConn, err := net.ListenPacket("udp", fmt.Sprintf(":%d", *port+1))
	if err != nil {
		logger.WithError(err).Fatal("bind data port")
	}

	clock := timestamp.NewSampleClock(timestamp.DefaultRate, time.Now())
	engine := applemidi.NewEngine(controlConn, dataConn, *ssrc, clock,
		applemidi.WithName(*name),
		applemidi.WithLogger(logger),
	)
	defer engine.Close()

	for _, p := range *peers {
		host, portStr, err := net.SplitHostPort(p)
		if err != nil {
			logger.WithError(err).Fatalf("invalid -peer %q, want host:port", p)
		}
		peerPort, err := strconv.Atoi(portStr)
		if err != nil {
			logger.WithError(err).Fatalf("invalid port in -peer %q", p)
		}
		if err := engine.AddPeer(host, peerPort); err != nil {
			logger.WithError(err).Fatalf("invite %s", p)
		}
		logger.Infof("inviting %s", p)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	idleTicker := time.NewTicker(200 * time.Millisecond)
	defer idleTicker.Stop()

	logger.Info("mididump running, Ctrl-C to quit")
	for {
		select {
		case <-sig:
			logger.Info("shutting down")
			return
		case now := <-ticker.C:
			if err := engine.TickReceive(now); err != nil {
				logger.WithError(err).Warn("tick_receive")
			}
			if err := engine.TickSend(now); err != nil {
				logger.WithError(err).Warn("tick_send")
			}
			drain(engine)
		case now := <-idleTicker.C:
			if err := engine.TickIdle(now); err != nil {
				logger.WithError(err).Warn("tick_idle")
			}
		}
	}
}

func drain(engine *applemidi.Engine) {
	for {
		msg, ok := engine.Receive()
		if !ok {
			return
		}
		payload := msg.Payload()
		if payload == nil {
			fmt.Printf("status=0x%02x\n", msg.Status())
			continue
		}
		fmt.Printf("status=0x%02x\n%s", msg.Status(), indent(hex.Dump(payload)))
	}
}

func indent(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, line := range lines {
		lines[i] = "  " + line
	}
	return strings.Join(lines, "\n") + "\n"
}

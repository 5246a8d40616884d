package applemidi

import (
	"net"
	"time"

	"github.com/sirupsen/logrus"
)

// Default tuning values from spec §4.3/§5.
const (
	DefaultReceiveBudget     = 16 // K: max datagrams drained per tick_receive
	DefaultSendBatch         = 8  // B: max messages batched per tick_send
	DefaultResyncPeriod      = 10 * time.Second
	DefaultInvitationTimeout = 5 * time.Second
	DefaultSyncTimeout       = 3 * time.Second
	DefaultMaxRetries        = 3
	DefaultFeedbackPeriod    = 1 * time.Second
)

// Option configures an Engine at construction. The core has no CLI and
// no environment variables (spec §6): every knob is set in code via
// functional options, the teacher's convention for its own session
// constructor.
type Option func(*Engine)

// WithName sets the local session name advertised in invitations. It is
// truncated to 15 characters if longer, per the wire format.
func WithName(name string) Option {
	return func(e *Engine) {
		if len(name) > maxNameLen {
			name = name[:maxNameLen]
		}
		e.name = name
	}
}

// WithLogger overrides the engine's logger. The zero value logs to a
// discarded logrus.Logger so the core never writes to stdout/stderr
// unasked.
func WithLogger(logger *logrus.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithAcceptInvitation installs the responder's accept/reject policy.
// Returning true accepts; the reference policy (used when this option is
// omitted) accepts every invitation, per spec.md §4.3.
func WithAcceptInvitation(fn func(name string, addr net.Addr) bool) Option {
	return func(e *Engine) { e.acceptInvitation = fn }
}

// WithReceiveBudget overrides K, the max datagrams drained per
// tick_receive call.
func WithReceiveBudget(k int) Option {
	return func(e *Engine) {
		if k > 0 {
			e.receiveBudget = k
		}
	}
}

// WithSendBatch overrides B, the max out-queue messages batched per send.
func WithSendBatch(b int) Option {
	return func(e *Engine) {
		if b > 0 {
			e.sendBatch = b
		}
	}
}

// WithResyncPeriod overrides how often a synced peer is re-synced.
func WithResyncPeriod(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.resyncPeriod = d
		}
	}
}

// WithQueueCapacity overrides the in/out message queue capacity.
func WithQueueCapacity(capacity int) Option {
	return func(e *Engine) {
		if capacity > 0 {
			e.queueCapacity = capacity
		}
	}
}

// WithMetrics installs a Metrics registry. Without this option, metrics
// calls are no-ops.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

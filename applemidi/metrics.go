package applemidi

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the set of prometheus collectors an Engine reports through.
// Observability is an ambient concern that survives the spec's Non-goals
// (those exclude audio/GUI/storage/discovery, not metrics), so Engine
// exposes this the way the teacher's network driver exposes counters.
type Metrics struct {
	InvitationsSent     prometheus.Counter
	InvitationsAccepted prometheus.Counter
	InvitationsRejected prometheus.Counter
	SyncRounds          prometheus.Counter
	MessagesSent        prometheus.Counter
	MessagesReceived    prometheus.Counter
	MessagesDropped     *prometheus.CounterVec
	PeerCount           prometheus.Gauge
	JournalReplaySize   prometheus.Histogram
}

// NewMetrics builds a Metrics set and registers it with reg. Pass
// prometheus.NewRegistry() for an isolated registry in tests, or
// prometheus.DefaultRegisterer in a host process.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		InvitationsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rtpmidi_invitations_sent_total",
			Help: "Invitations sent by this session as initiator.",
		}),
		InvitationsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rtpmidi_invitations_accepted_total",
			Help: "Invitations accepted, as initiator or responder.",
		}),
		InvitationsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rtpmidi_invitations_rejected_total",
			Help: "Invitations rejected, as initiator or responder.",
		}),
		SyncRounds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rtpmidi_sync_rounds_total",
			Help: "Completed three-round clock synchronizations.",
		}),
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rtpmidi_messages_sent_total",
			Help: "MIDI messages handed to the RTP transport.",
		}),
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rtpmidi_messages_received_total",
			Help: "MIDI messages delivered to the in-queue.",
		}),
		MessagesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rtpmidi_messages_dropped_total",
			Help: "Messages or datagrams dropped, labeled by error kind.",
		}, []string{"reason"}),
		PeerCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rtpmidi_peers",
			Help: "Peers currently admitted to the session.",
		}),
		JournalReplaySize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rtpmidi_journal_replay_size",
			Help:    "Number of entries returned per journal replay.",
			Buckets: prometheus.LinearBuckets(0, 16, 9),
		}),
	}
	reg.MustRegister(
		m.InvitationsSent, m.InvitationsAccepted, m.InvitationsRejected,
		m.SyncRounds, m.MessagesSent, m.MessagesReceived, m.MessagesDropped,
		m.PeerCount, m.JournalReplaySize,
	)
	return m
}

func (m *Metrics) dropped(reason string) {
	if m == nil {
		return
	}
	m.MessagesDropped.WithLabelValues(reason).Inc()
}

// inc runs fn against m if metrics were installed via WithMetrics; it is
// a no-op otherwise, so call sites never need a nil check of their own.
func (m *Metrics) inc(fn func(*Metrics)) {
	if m == nil {
		return
	}
	fn(m)
}

// Package timestamp provides the RTP-MIDI sample-rate timestamp clock.
// RTP timestamps advance at a fixed sample rate (44,100 Hz by default, per
// the AppleMIDI network driver) rather than wall-clock nanoseconds; this
// package converts between the two and hands the session engine an
// injectable Clock rather than pulling a process-wide time source, per the
// "no hidden globals" design note.
package timestamp

import "time"

// DefaultRate is the RTP-MIDI sample rate in Hz used when a Session does
// not specify one.
const DefaultRate = 44100

// Clock produces monotonically-advancing RTP timestamps. Now returns the
// current timestamp in clock-rate units, wrapping at 2^32 as RTP
// timestamps do.
type Clock interface {
	Now() uint32
}

// SampleClock is a Clock driven by wall-clock time at a fixed sample
// rate, anchored to the instant it was created.
type SampleClock struct {
	rate  uint32
	start time.Time
	since func(time.Time) time.Duration
}

// NewSampleClock builds a Clock ticking at rate Hz, starting from start.
// A zero rate uses DefaultRate.
func NewSampleClock(rate uint32, start time.Time) *SampleClock {
	if rate == 0 {
		rate = DefaultRate
	}
	return &SampleClock{rate: rate, start: start, since: time.Since}
}

// Now returns the elapsed time since construction, in samples, truncated
// to 32 bits (RTP timestamps wrap at 2^32).
func (c *SampleClock) Now() uint32 {
	elapsed := c.since(c.start)
	samples := elapsed.Seconds() * float64(c.rate)
	return uint32(uint64(samples))
}

// Rate returns the clock's sample rate in Hz.
func (c *SampleClock) Rate() uint32 { return c.rate }

// Of converts a wall-clock instant into this clock's timestamp units,
// relative to the clock's start instant, without advancing or reading the
// live clock. Used when a message's logical send time differs from "now"
// (e.g. it was enqueued earlier and is being flushed on a later tick).
func (c *SampleClock) Of(t time.Time) uint32 {
	elapsed := t.Sub(c.start)
	samples := elapsed.Seconds() * float64(c.rate)
	return uint32(uint64(samples))
}

package timestamp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSampleClockAdvancesAtRate(t *testing.T) {
	start := time.Unix(0, 0)
	c := NewSampleClock(44100, start)
	c.since = func(time.Time) time.Duration { return time.Second }

	require.Equal(t, uint32(44100), c.Now())
}

func TestSampleClockDefaultRate(t *testing.T) {
	c := NewSampleClock(0, time.Now())
	require.Equal(t, uint32(DefaultRate), c.Rate())
}

func TestSampleClockOf(t *testing.T) {
	start := time.Unix(100, 0)
	c := NewSampleClock(1000, start)
	require.Equal(t, uint32(2000), c.Of(start.Add(2*time.Second)))
}

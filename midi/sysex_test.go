package midi

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSysExStandaloneRoundTrip(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03, 0x04}
	m, err := NewSysEx(0x43, payload)
	require.NoError(t, err)

	size, err := Size(m)
	require.NoError(t, err)
	require.Equal(t, len(payload)+2, size)

	buf := make([]byte, size)
	n, err := Encode(m, buf)
	require.NoError(t, err)
	require.Equal(t, size, n)
	require.Equal(t, byte(StatusSysEx), buf[0])
	require.Equal(t, byte(0x43), buf[1])
	require.Equal(t, payload, buf[2:])

	decoded, err := Decode(buf)
	require.NoError(t, err)
	require.True(t, m.Equal(decoded))
	require.True(t, decoded.Owned())
	end, err := sysExDescriptor{}.Get(decoded, PropSysExEnd)
	require.NoError(t, err)
	require.Equal(t, true, end)
}

func TestSysExInsufficientBuffer(t *testing.T) {
	m, err := NewSysEx(0x43, []byte{0x01, 0x02})
	require.NoError(t, err)
	_, err = Encode(m, make([]byte, 2))
	require.Error(t, err)
}

// TestSysExFragmentRoundTrips exercises 1..5 fragment sequences, covering
// the spec's open question on SysEx fragmentation beyond two fragments.
func TestSysExFragmentRoundTrips(t *testing.T) {
	for fragments := 1; fragments <= 5; fragments++ {
		t.Run(string(rune('0'+fragments)), func(t *testing.T) {
			manufacturerID := byte(0x7d)
			var encoded [][]byte
			var originals []*Message
			for i := 0; i < fragments; i++ {
				payload := []byte{byte(i), byte(i + 1), byte(i + 2)}
				end := i == fragments-1
				m, err := NewSysExFragment(manufacturerID, byte(i), payload, end)
				require.NoError(t, err)
				originals = append(originals, m)

				size, err := Size(m)
				require.NoError(t, err)
				buf := make([]byte, size)
				n, err := Encode(m, buf)
				require.NoError(t, err)
				require.Equal(t, size, n)
				encoded = append(encoded, buf)
			}

			for i, buf := range encoded {
				decoded, err := DecodeSysExFragment(buf, byte(i), i == fragments-1)
				require.NoError(t, err)
				require.True(t, originals[i].Equal(decoded), "fragment %d mismatch", i)
			}
		})
	}
}

func TestSysExSetByReferenceTakesOwnership(t *testing.T) {
	data := []byte{0xaa, 0xbb}
	m := &Message{}
	d := sysExDescriptor{}
	require.NoError(t, d.Set(m, PropManufacturerID, 0x01))
	require.NoError(t, d.Set(m, PropSysExFragment, 0))
	require.NoError(t, d.Set(m, PropSysExData, data))
	require.True(t, m.Owned())
	require.Equal(t, data, m.Payload())

	m.Release()
	require.Nil(t, m.Payload())
	require.Equal(t, 0, m.PayloadSize())
	require.False(t, m.Owned())
}

func TestSysExInvalidPropertyTypes(t *testing.T) {
	m := &Message{}
	d := sysExDescriptor{}
	require.Error(t, d.Set(m, PropManufacturerID, "not-an-int"))
	require.Error(t, d.Set(m, PropSysExData, 42))
	_, err := d.Get(m, PropKey)
	require.Error(t, err)
}

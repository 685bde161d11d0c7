package vad

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/matryer/is"
)

func constant(v int16, n int) []byte {
	pcm := make([]byte, n*2)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(v))
	}
	return pcm
}

func TestEnergy(t *testing.T) {
	is := is.New(t)

	is.Equal(Energy(nil), 0.0)
	is.Equal(Energy(constant(0, 100)), 0.0)

	e := Energy(constant(16384, 100))
	is.True(e > 0.49 && e < 0.51) // half scale

	e = Energy(constant(-16384, 100))
	is.True(e > 0.49 && e < 0.51) // sign does not matter
}

func TestDetectorSilenceTracking(t *testing.T) {
	is := is.New(t)

	d := NewDetector(0)
	is.Equal(d.Threshold, DefaultThreshold)

	quiet := constant(10, 160)
	loud := constant(8000, 160)

	is.True(!d.Observe(quiet, 10*time.Millisecond))
	is.Equal(d.Silence(), time.Duration(0)) // silence before speech is not counted

	is.True(d.Observe(loud, 10*time.Millisecond))
	d.Observe(quiet, 10*time.Millisecond)
	d.Observe(quiet, 10*time.Millisecond)
	is.True(d.Heard())
	is.Equal(d.Silence(), 20*time.Millisecond)

	d.Observe(loud, 10*time.Millisecond)
	is.Equal(d.Silence(), time.Duration(0)) // speech resets the silence clock

	d.Reset()
	is.True(!d.Heard())
}

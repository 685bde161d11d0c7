package audio

import (
	"bytes"
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestFramesBounded(t *testing.T) {
	is := is.New(t)

	pcm := make([]byte, 100*1024+7)
	for i := range pcm {
		pcm[i] = byte(i)
	}

	frames := Frames(pcm, MaxFrameSize)
	is.Equal(len(frames), 4) // 32+32+32+4.x KiB

	var joined []byte
	for _, f := range frames {
		is.True(len(f) <= MaxFrameSize) // no frame exceeds the bound
		joined = append(joined, f...)
	}
	is.True(bytes.Equal(joined, pcm)) // concatenation preserves order
}

func TestFramesEmpty(t *testing.T) {
	is := is.New(t)
	is.Equal(len(Frames(nil, MaxFrameSize)), 0)
}

func TestFramesOddMax(t *testing.T) {
	is := is.New(t)

	frames := Frames(make([]byte, 10), 3)
	for _, f := range frames[:len(frames)-1] {
		is.Equal(len(f)%2, 0) // samples are never split
	}
}

func TestFormatDuration(t *testing.T) {
	is := is.New(t)

	is.Equal(PCM24kMono.Duration(48000), time.Second)
	is.Equal(PCM16kMono.Bytes(500*time.Millisecond), 16000)
	is.Equal(Format{}.Duration(100), time.Duration(0))
}

func TestFormatValidate(t *testing.T) {
	tests := []struct {
		name    string
		format  Format
		wantErr bool
	}{
		{"mono 24k", PCM24kMono, false},
		{"stereo", Format{SampleRate: 44100, Channels: 2, BitsPerSample: 16}, false},
		{"8 bit", Format{SampleRate: 8000, Channels: 1, BitsPerSample: 8}, true},
		{"no rate", Format{Channels: 1, BitsPerSample: 16}, true},
		{"surround", Format{SampleRate: 48000, Channels: 6, BitsPerSample: 16}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.format.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// Package audio describes PCM formats and the small helpers shared by the
// synthesis pipeline, the recognizers and the transcoder.
package audio

import (
	"fmt"
	"time"
)

// Encoding identifies the container of a synthesized clip.
type Encoding string

const (
	EncodingPCM Encoding = "pcm"
	EncodingWAV Encoding = "wav"
	EncodingMP3 Encoding = "mp3"
)

// Format describes interleaved little-endian PCM.
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// Common formats.
var (
	// PCM24kMono is what clients play back.
	PCM24kMono = Format{SampleRate: 24000, Channels: 1, BitsPerSample: 16}

	// PCM16kMono is what clients capture and recognizers expect.
	PCM16kMono = Format{SampleRate: 16000, Channels: 1, BitsPerSample: 16}
)

// MaxFrameSize bounds every binary frame written to a client.
const MaxFrameSize = 32 * 1024

// BytesPerFrame is the size of one sample across all channels.
func (f Format) BytesPerFrame() int {
	return f.Channels * f.BitsPerSample / 8
}

// Duration returns the play time of n bytes in this format.
func (f Format) Duration(n int) time.Duration {
	bpf := f.BytesPerFrame()
	if f.SampleRate == 0 || bpf == 0 {
		return 0
	}
	samples := n / bpf
	return time.Duration(samples) * time.Second / time.Duration(f.SampleRate)
}

// Bytes returns the size of d worth of audio, aligned to whole samples.
func (f Format) Bytes(d time.Duration) int {
	samples := int(d * time.Duration(f.SampleRate) / time.Second)
	return samples * f.BytesPerFrame()
}

// Validate rejects formats the transcoder cannot handle.
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", f.SampleRate)
	}
	if f.Channels < 1 || f.Channels > 2 {
		return fmt.Errorf("unsupported channel count %d", f.Channels)
	}
	if f.BitsPerSample != 16 {
		return fmt.Errorf("only 16-bit samples are supported, got %d-bit", f.BitsPerSample)
	}
	return nil
}

func (f Format) String() string {
	return fmt.Sprintf("%dHz/%dch/%dbit", f.SampleRate, f.Channels, f.BitsPerSample)
}

// Frames splits pcm into consecutive chunks of at most size bytes, keeping
// order. Chunk boundaries fall on even offsets so no 16-bit sample is split.
func Frames(pcm []byte, size int) [][]byte {
	if len(pcm) == 0 {
		return nil
	}
	if size <= 1 {
		size = MaxFrameSize
	}
	size &^= 1
	frames := make([][]byte, 0, (len(pcm)+size-1)/size)
	for off := 0; off < len(pcm); off += size {
		end := min(off+size, len(pcm))
		frames = append(frames, pcm[off:end])
	}
	return frames
}

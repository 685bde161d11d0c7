// Package vad implements energy-based voice activity detection over 16-bit
// little-endian PCM.
package vad

import (
	"math"
	"time"
)

// DefaultThreshold is the normalized RMS level treated as speech.
const DefaultThreshold = 0.01

// Energy computes the normalized root-mean-square energy of pcm, in [0, 1].
func Energy(pcm []byte) float64 {
	samples := len(pcm) / 2
	if samples == 0 {
		return 0
	}
	var sum float64
	for i := 0; i+1 < len(pcm); i += 2 {
		s := float64(int16(uint16(pcm[i])|uint16(pcm[i+1])<<8)) / 32768.0
		sum += s * s
	}
	return math.Sqrt(sum / float64(samples))
}

// Detector classifies chunks as speech or silence and tracks how long the
// signal has been quiet since the last speech.
type Detector struct {
	Threshold float64

	heard   bool
	silence time.Duration
}

// NewDetector returns a detector; a non-positive threshold uses the default.
func NewDetector(threshold float64) *Detector {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Detector{Threshold: threshold}
}

// IsSpeech reports whether pcm is above the threshold.
func (d *Detector) IsSpeech(pcm []byte) bool {
	return Energy(pcm) >= d.Threshold
}

// Observe records a chunk of length dur and reports whether it was speech.
func (d *Detector) Observe(pcm []byte, dur time.Duration) bool {
	if d.IsSpeech(pcm) {
		d.heard = true
		d.silence = 0
		return true
	}
	if d.heard {
		d.silence += dur
	}
	return false
}

// Heard reports whether any speech was observed since the last Reset.
func (d *Detector) Heard() bool { return d.heard }

// Silence is the trailing quiet time after the last speech chunk.
func (d *Detector) Silence() time.Duration { return d.silence }

// Reset forgets all observations.
func (d *Detector) Reset() {
	d.heard = false
	d.silence = 0
}

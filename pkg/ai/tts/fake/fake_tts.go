package fake

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/essoktani-yazid/stm-ai-gateway/pkg/ai/tts"
	"github.com/essoktani-yazid/stm-ai-gateway/pkg/audio"
	"github.com/essoktani-yazid/stm-ai-gateway/pkg/audio/wav"
)

// FakeTTS is a fake TTS implementation for testing. It returns a WAV sine
// tone whose length grows with the text.
type FakeTTS struct {
	// Format of the generated tone.
	Format audio.Format
	// PerChar is the tone length per input character.
	PerChar time.Duration
	// FailOn makes Synthesize fail for any text containing one of these.
	FailOn []string

	mu       sync.Mutex
	requests []tts.Request
}

// NewFakeTTS creates a new fake TTS provider producing 16 kHz mono tones.
func NewFakeTTS() *FakeTTS {
	return &FakeTTS{
		Format:  audio.PCM16kMono,
		PerChar: 10 * time.Millisecond,
	}
}

// Synthesize generates a 440 Hz tone for the given text.
func (f *FakeTTS) Synthesize(ctx context.Context, req tts.Request) (tts.Audio, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return tts.Audio{}, err
	}
	for _, s := range f.FailOn {
		if strings.Contains(req.Text, s) {
			return tts.Audio{}, fmt.Errorf("fake synthesis failure for %q", req.Text)
		}
	}

	samples := int(time.Duration(len(req.Text)) * f.PerChar * time.Duration(f.Format.SampleRate) / time.Second)
	pcm := make([]byte, samples*f.Format.BytesPerFrame())
	for i := 0; i < samples; i++ {
		v := int16(0.3 * 32767 * math.Sin(2*math.Pi*440*float64(i)/float64(f.Format.SampleRate)))
		for ch := 0; ch < f.Format.Channels; ch++ {
			off := (i*f.Format.Channels + ch) * 2
			binary.LittleEndian.PutUint16(pcm[off:], uint16(v))
		}
	}

	data, err := wav.EncodeBytes(f.Format, pcm)
	if err != nil {
		return tts.Audio{}, err
	}
	return tts.Audio{Data: data, Encoding: audio.EncodingWAV, Format: f.Format}, nil
}

// Texts returns the text of every request in order.
func (f *FakeTTS) Texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.requests))
	for i, r := range f.requests {
		out[i] = r.Text
	}
	return out
}

var _ tts.Synthesizer = (*FakeTTS)(nil)

// Package tts defines the speech synthesis contract. A synthesizer turns one
// sentence into one encoded clip; the caller transcodes it for playback.
package tts

import (
	"context"

	"github.com/essoktani-yazid/stm-ai-gateway/pkg/audio"
)

// Request contains parameters for synthesizing a single sentence.
type Request struct {
	Text  string
	Voice string
}

// Audio is a synthesized clip. Format is only meaningful for EncodingPCM;
// containers carry their own header.
type Audio struct {
	Data     []byte
	Encoding audio.Encoding
	Format   audio.Format
}

// Synthesizer is the main interface for text-to-speech providers.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) (Audio, error)
}

// SynthesizerFunc adapts a function to Synthesizer.
type SynthesizerFunc func(ctx context.Context, req Request) (Audio, error)

func (f SynthesizerFunc) Synthesize(ctx context.Context, req Request) (Audio, error) {
	return f(ctx, req)
}

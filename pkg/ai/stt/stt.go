// Package stt provides interfaces and types for speech-to-text providers.
// Recognizers consume raw PCM (signed 16-bit, mono, 16 kHz, little-endian)
// chunk by chunk and report either a finalized utterance or the current
// partial transcript.
package stt

import (
	"context"
)

// SampleRate is the input rate every recognizer expects.
const SampleRate = 16000

// Result is what a recognizer reports after each chunk.
type Result struct {
	// Text is the finalized transcript when Final is set, otherwise the
	// current partial transcript (possibly empty).
	Text string
	// Final is set when the engine detected the end of an utterance.
	Final bool
}

// Recognizer is one streaming recognition session. It is owned by a single
// connection and is not safe for concurrent use.
type Recognizer interface {
	// Feed pushes an audio chunk and returns the engine's view after it.
	Feed(ctx context.Context, pcm []byte) (Result, error)

	// Finalize forces the engine to produce a final transcript for whatever
	// audio it has buffered.
	Finalize(ctx context.Context) (string, error)

	// Reset drops all buffered audio so the next utterance starts clean.
	Reset()

	// Close releases the session.
	Close() error
}

// Provider creates recognizers.
type Provider interface {
	NewRecognizer(ctx context.Context) (Recognizer, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context) (Recognizer, error)

func (f ProviderFunc) NewRecognizer(ctx context.Context) (Recognizer, error) { return f(ctx) }

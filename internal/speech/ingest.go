// Package speech turns the client's microphone stream into utterances.
package speech

import (
	"context"
	"log/slog"
	"strings"

	"github.com/essoktani-yazid/stm-ai-gateway/internal/protocol"
	"github.com/essoktani-yazid/stm-ai-gateway/pkg/ai"
	"github.com/essoktani-yazid/stm-ai-gateway/pkg/ai/stt"
)

// Handler runs one recognized utterance. It returns an error only when the
// client connection failed.
type Handler func(ctx context.Context, text string) error

// Ingest feeds audio chunks to a recognizer and tracks the latest partial
// transcript. A nil recognizer is valid: audio is dropped and every
// end-of-audio is answered with AUDIO_END.
type Ingest struct {
	recognizer stt.Recognizer
	handle     Handler
	logger     *slog.Logger

	partial string
}

// NewIngest creates an ingest. It is owned by one session and not safe for
// concurrent use.
func NewIngest(rec stt.Recognizer, handle Handler, logger *slog.Logger) *Ingest {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingest{recognizer: rec, handle: handle, logger: logger}
}

// Available reports whether a recognizer is attached.
func (in *Ingest) Available() bool { return in.recognizer != nil }

// Partial returns the most recent non-empty partial transcript.
func (in *Ingest) Partial() string { return in.partial }

// ClearPartial forgets the partial transcript, as when the user switches
// to typing.
func (in *Ingest) ClearPartial() { in.partial = "" }

// Feed pushes one chunk of 16 kHz PCM. A finalized, non-empty transcript is
// handed to the handler.
func (in *Ingest) Feed(ctx context.Context, chunk []byte) error {
	if in.recognizer == nil {
		in.logger.Debug("audio dropped, no recognizer", slog.Int("bytes", len(chunk)))
		return nil
	}

	res, err := in.recognizer.Feed(ctx, chunk)
	if err != nil {
		in.logger.Warn("recognition failed", slog.Any("error", ai.NewError(ai.KindRecognition, "feed", err)))
		return nil
	}

	text := strings.TrimSpace(res.Text)
	if !res.Final {
		if text != "" {
			in.partial = text
		}
		return nil
	}
	if text == "" {
		in.logger.Debug("empty final transcript")
		return nil
	}

	in.partial = ""
	in.logger.Info("utterance recognized", slog.String("text", text))
	return in.handle(ctx, text)
}

// EndOfAudio forces a final transcript, falling back to the last partial.
// When nothing was heard, or the handler failed without losing the client,
// AUDIO_END is sent so the client leaves its listening state. The recognizer
// is reset afterwards.
func (in *Ingest) EndOfAudio(ctx context.Context, out protocol.Sender) error {
	if in.recognizer == nil {
		in.logger.Warn("end of audio without a recognizer")
		return out.Send(ctx, protocol.EndOfAudio())
	}
	defer in.recognizer.Reset()

	text, err := in.recognizer.Finalize(ctx)
	if err != nil {
		in.logger.Warn("finalize failed", slog.Any("error", ai.NewError(ai.KindRecognition, "finalize", err)))
		text = ""
	}
	text = strings.TrimSpace(text)
	if text == "" {
		text = in.partial
	}
	in.partial = ""

	if text == "" {
		in.logger.Info("end of audio with nothing recognized")
		return out.Send(ctx, protocol.EndOfAudio())
	}

	in.logger.Info("utterance finalized", slog.String("text", text))
	if err := in.handle(ctx, text); err != nil {
		if ai.IsConnection(err) {
			return err
		}
		in.logger.Error("voice request failed", slog.Any("error", err))
		return out.Send(ctx, protocol.EndOfAudio())
	}
	return nil
}

// Close releases the recognizer.
func (in *Ingest) Close() error {
	if in.recognizer == nil {
		return nil
	}
	return in.recognizer.Close()
}

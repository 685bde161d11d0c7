// Package voice speaks assistant replies: it splits streamed text into
// sentences, synthesizes each one and streams the audio to the client.
package voice

import (
	"context"
	"log/slog"
	"time"

	"github.com/essoktani-yazid/stm-ai-gateway/internal/metrics"
	"github.com/essoktani-yazid/stm-ai-gateway/internal/protocol"
	"github.com/essoktani-yazid/stm-ai-gateway/pkg/ai"
	"github.com/essoktani-yazid/stm-ai-gateway/pkg/ai/llm"
	"github.com/essoktani-yazid/stm-ai-gateway/pkg/ai/tts"
	"github.com/essoktani-yazid/stm-ai-gateway/pkg/audio"
	"github.com/essoktani-yazid/stm-ai-gateway/pkg/audio/transcode"
)

// Pipeline synthesizes sentences and writes them as binary frames.
type Pipeline struct {
	tts    tts.Synthesizer
	pool   *transcode.Pool
	voice  string
	logger *slog.Logger
}

// NewPipeline creates a pipeline. A nil pool transcodes on a private
// single-worker pool.
func NewPipeline(s tts.Synthesizer, pool *transcode.Pool, voice string, logger *slog.Logger) *Pipeline {
	if pool == nil {
		pool = transcode.NewPool(1, audio.PCM24kMono)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{tts: s, pool: pool, voice: voice, logger: logger}
}

// SpeakText speaks a complete reply.
func (p *Pipeline) SpeakText(ctx context.Context, out protocol.AudioSender, text string) error {
	return p.Speak(ctx, out, llm.Text(text))
}

// Speak consumes fragments, speaking each sentence as soon as it is
// complete. Sentences that fail to synthesize are skipped. Exactly one
// AUDIO_END is sent when Speak returns, whatever happened.
func (p *Pipeline) Speak(ctx context.Context, out protocol.AudioSender, fragments llm.Fragments) (err error) {
	spoken := 0
	defer func() {
		endErr := out.Send(ctx, protocol.EndOfAudio())
		if err == nil {
			err = endErr
		}
		p.logger.Debug("speech finished", slog.Int("sentences", spoken))
	}()

	var split Splitter
	for frag, ferr := range fragments {
		if ferr != nil {
			p.logger.Error("reply stream failed", slog.Any("error", ferr))
			break
		}
		for _, sentence := range split.Push(frag) {
			ok, err := p.sentence(ctx, out, sentence)
			if err != nil {
				return err
			}
			if ok {
				spoken++
			}
		}
	}
	if rest := split.Flush(); rest != "" {
		ok, err := p.sentence(ctx, out, rest)
		if err != nil {
			return err
		}
		if ok {
			spoken++
		}
	}
	return nil
}

// sentence speaks one sentence. It reports whether audio was sent, and
// returns an error only when the client or ctx is gone.
func (p *Pipeline) sentence(ctx context.Context, out protocol.AudioSender, sentence string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	text := Clean(sentence)
	if text == "" {
		return false, nil
	}
	logger := p.logger.With(slog.String("sentence", text))

	start := time.Now()
	clip, err := p.tts.Synthesize(ctx, tts.Request{Text: text, Voice: p.voice})
	metrics.ObserveCall("tts", start)
	if err != nil {
		metrics.SpeechSentences.WithLabelValues(metrics.OutcomeError).Inc()
		logger.Warn("sentence skipped", slog.Any("error", ai.NewError(ai.KindSynthesis, "synthesize", err)))
		return false, nil
	}

	pcm, err := p.pool.Do(ctx, clip.Data, clip.Encoding, clip.Format)
	if err != nil {
		metrics.SpeechSentences.WithLabelValues(metrics.OutcomeError).Inc()
		logger.Warn("sentence skipped", slog.Any("error", ai.NewError(ai.KindSynthesis, "transcode", err)))
		return false, nil
	}

	for _, frame := range audio.Frames(pcm, audio.MaxFrameSize) {
		if err := out.SendAudio(ctx, frame); err != nil {
			return false, err
		}
		metrics.AudioFramesSent.Inc()
	}
	metrics.SpeechSentences.WithLabelValues(metrics.OutcomeOK).Inc()
	logger.Debug("sentence spoken", slog.Int("bytes", len(pcm)))
	return true, nil
}

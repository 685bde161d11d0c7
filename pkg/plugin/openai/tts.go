package openai

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/essoktani-yazid/stm-ai-gateway/pkg/ai/tts"
	"github.com/essoktani-yazid/stm-ai-gateway/pkg/audio"
	"github.com/essoktani-yazid/stm-ai-gateway/pkg/plugin"
)

// Synthesizer implements tts.Synthesizer with OpenAI's speech endpoint.
type Synthesizer struct {
	client *openai.Client
	model  string
	voice  string
	logger *slog.Logger
}

// NewSynthesizer creates a synthesizer. Defaults: model tts-1, voice onyx.
func NewSynthesizer(opts plugin.Options) (*Synthesizer, error) {
	client, err := newClient(opts, "OPENAI_API_KEY")
	if err != nil {
		return nil, err
	}
	s := &Synthesizer{client: client, model: opts.Model, voice: opts.Voice}
	if s.model == "" {
		s.model = string(openai.TTSModel1)
	}
	if s.voice == "" {
		s.voice = string(openai.VoiceOnyx)
	}
	s.logger = logger(opts).With(slog.String("provider", "openai"), slog.String("voice", s.voice))
	return s, nil
}

// Synthesize returns the sentence as a WAV clip.
func (s *Synthesizer) Synthesize(ctx context.Context, req tts.Request) (tts.Audio, error) {
	voice := req.Voice
	if voice == "" {
		voice = s.voice
	}
	start := time.Now()

	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(s.model),
		Input:          req.Text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatWav,
	})
	if err != nil {
		return tts.Audio{}, fmt.Errorf("speech request failed: %w", err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return tts.Audio{}, fmt.Errorf("read speech response: %w", err)
	}
	s.logger.Debug("speech synthesized",
		slog.Int("bytes", len(data)),
		slog.Duration("duration", time.Since(start)))

	return tts.Audio{Data: data, Encoding: audio.EncodingWAV}, nil
}

var _ tts.Synthesizer = (*Synthesizer)(nil)

package openai

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/essoktani-yazid/stm-ai-gateway/pkg/ai/stt"
	"github.com/essoktani-yazid/stm-ai-gateway/pkg/ai/vad"
	"github.com/essoktani-yazid/stm-ai-gateway/pkg/audio"
	"github.com/essoktani-yazid/stm-ai-gateway/pkg/audio/wav"
	"github.com/essoktani-yazid/stm-ai-gateway/pkg/plugin"
)

// Endpointing defaults for the Whisper recognizer.
const (
	DefaultEndOfSpeech  = 800 * time.Millisecond
	DefaultMaxUtterance = 30 * time.Second

	// Whisper rejects clips shorter than this.
	minClip = 100 * time.Millisecond
)

// Whisper creates batch recognizers on top of the transcription endpoint.
// Utterance boundaries come from an energy detector: after speech, a run of
// EndOfSpeech silence finalizes the buffered audio.
type Whisper struct {
	client   *openai.Client
	model    string
	language string
	logger   *slog.Logger

	EndOfSpeech  time.Duration
	MaxUtterance time.Duration
	// PartialEvery enables interim transcriptions while speech continues;
	// zero disables them.
	PartialEvery time.Duration
	Threshold    float64
}

// NewWhisper creates the provider.
func NewWhisper(opts plugin.Options) (*Whisper, error) {
	client, err := newClient(opts, "OPENAI_API_KEY")
	if err != nil {
		return nil, err
	}
	model := opts.Model
	if model == "" {
		model = openai.Whisper1
	}
	return &Whisper{
		client:       client,
		model:        model,
		language:     opts.Language,
		logger:       logger(opts).With(slog.String("provider", "openai"), slog.String("model", model)),
		EndOfSpeech:  DefaultEndOfSpeech,
		MaxUtterance: DefaultMaxUtterance,
		Threshold:    vad.DefaultThreshold,
	}, nil
}

// NewRecognizer starts a recognition session for one connection.
func (w *Whisper) NewRecognizer(ctx context.Context) (stt.Recognizer, error) {
	return &whisperRecognizer{
		w:        w,
		detector: vad.NewDetector(w.Threshold),
	}, nil
}

type whisperRecognizer struct {
	w        *Whisper
	detector *vad.Detector
	buf      []byte
	spoken   time.Duration // audio since the last partial
	closed   bool
}

func (r *whisperRecognizer) Feed(ctx context.Context, pcm []byte) (stt.Result, error) {
	if r.closed {
		return stt.Result{}, fmt.Errorf("recognizer is closed")
	}
	dur := audio.PCM16kMono.Duration(len(pcm))
	r.buf = append(r.buf, pcm...)
	speech := r.detector.Observe(pcm, dur)

	if !r.detector.Heard() {
		// keep a short lead-in only, the rest is background noise
		if keep := audio.PCM16kMono.Bytes(r.w.EndOfSpeech); len(r.buf) > keep {
			r.buf = append(r.buf[:0], r.buf[len(r.buf)-keep:]...)
		}
		return stt.Result{}, nil
	}

	total := audio.PCM16kMono.Duration(len(r.buf))
	if r.detector.Silence() >= r.w.EndOfSpeech || total >= r.w.MaxUtterance {
		text, err := r.transcribe(ctx)
		r.Reset()
		if err != nil {
			return stt.Result{}, err
		}
		return stt.Result{Text: text, Final: true}, nil
	}

	if r.w.PartialEvery > 0 && speech {
		r.spoken += dur
		if r.spoken >= r.w.PartialEvery {
			r.spoken = 0
			text, err := r.transcribe(ctx)
			if err != nil {
				return stt.Result{}, err
			}
			return stt.Result{Text: text}, nil
		}
	}
	return stt.Result{}, nil
}

func (r *whisperRecognizer) Finalize(ctx context.Context) (string, error) {
	defer r.Reset()
	if r.closed {
		return "", fmt.Errorf("recognizer is closed")
	}
	return r.transcribe(ctx)
}

func (r *whisperRecognizer) Reset() {
	r.buf = r.buf[:0]
	r.spoken = 0
	r.detector.Reset()
}

func (r *whisperRecognizer) Close() error {
	r.closed = true
	r.buf = nil
	return nil
}

// transcribe uploads the buffered audio as a WAV clip.
func (r *whisperRecognizer) transcribe(ctx context.Context) (string, error) {
	if audio.PCM16kMono.Duration(len(r.buf)) < minClip {
		return "", nil
	}
	clip, err := wav.EncodeBytes(audio.PCM16kMono, r.buf)
	if err != nil {
		return "", err
	}

	start := time.Now()
	resp, err := r.w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    r.w.model,
		Language: r.w.language,
		Format:   openai.AudioResponseFormatJSON,
		Reader:   bytes.NewReader(clip),
		FilePath: "audio.wav",
	})
	if err != nil {
		return "", fmt.Errorf("transcription failed: %w", err)
	}

	text := strings.TrimSpace(resp.Text)
	r.w.logger.Debug("whisper transcription result",
		slog.String("text", text),
		slog.Duration("duration", time.Since(start)))
	return text, nil
}

var (
	_ stt.Provider   = (*Whisper)(nil)
	_ stt.Recognizer = (*whisperRecognizer)(nil)
)

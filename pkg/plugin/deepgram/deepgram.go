// Package deepgram provides speech synthesis over Deepgram's speak websocket.
// Audio is requested as raw linear16 PCM at 24 kHz so no transcoding is
// needed before playback.
package deepgram

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/pkg/api/speak/v1/websocket/interfaces"
	clientinterfaces "github.com/deepgram/deepgram-go-sdk/pkg/client/interfaces/v1"
	"github.com/deepgram/deepgram-go-sdk/pkg/client/speak"

	"github.com/essoktani-yazid/stm-ai-gateway/pkg/ai/tts"
	"github.com/essoktani-yazid/stm-ai-gateway/pkg/audio"
	"github.com/essoktani-yazid/stm-ai-gateway/pkg/plugin"
)

// DefaultModel is the Deepgram voice used when none is configured.
const DefaultModel = "aura-2-orion-en"

func init() {
	plugin.Register(&plugin.Plugin{
		Kind:        plugin.KindTTS,
		Name:        "deepgram",
		Factory:     func(opts plugin.Options) (any, error) { return New(opts) },
		Description: "Deepgram Aura streaming text-to-speech (linear16, 24 kHz)",
	})
}

// Synthesizer implements tts.Synthesizer. Each sentence uses its own
// websocket session, which ends once Deepgram acknowledges the flush.
type Synthesizer struct {
	apiKey string
	model  string
	host   string
	logger *slog.Logger

	// IdleWindow ends a clip when audio stops arriving without a flush ack.
	IdleWindow time.Duration
	// Deadline bounds a single sentence.
	Deadline time.Duration
}

// New creates the synthesizer. The key comes from opts or DEEPGRAM_API_KEY;
// opts.Voice (or opts.Model) selects the Aura model.
func New(opts plugin.Options) (*Synthesizer, error) {
	key := opts.APIKey
	if key == "" {
		key = os.Getenv("DEEPGRAM_API_KEY")
	}
	if key == "" {
		return nil, fmt.Errorf("deepgram: API key is required (set DEEPGRAM_API_KEY or provide it in config)")
	}
	model := opts.Voice
	if model == "" {
		model = opts.Model
	}
	if model == "" {
		model = DefaultModel
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Synthesizer{
		apiKey:     key,
		model:      model,
		host:       opts.BaseURL,
		logger:     log.With(slog.String("provider", "deepgram"), slog.String("model", model)),
		IdleWindow: 400 * time.Millisecond,
		Deadline:   12 * time.Second,
	}, nil
}

// Synthesize streams one sentence and returns the collected PCM.
func (s *Synthesizer) Synthesize(ctx context.Context, req tts.Request) (tts.Audio, error) {
	format := audio.PCM24kMono
	if req.Text == "" {
		return tts.Audio{Encoding: audio.EncodingPCM, Format: format}, nil
	}

	model := s.model
	if req.Voice != "" {
		model = req.Voice
	}
	options := &clientinterfaces.WSSpeakOptions{
		Model:      model,
		Encoding:   "linear16",
		SampleRate: format.SampleRate,
	}

	col := newCollector()
	dg, err := speak.NewWSUsingCallback(ctx, s.apiKey, &clientinterfaces.ClientOptions{Host: s.host}, options, col)
	if err != nil {
		return tts.Audio{}, fmt.Errorf("deepgram: create ws client: %w", err)
	}
	defer dg.Stop()

	if ok := dg.Connect(); !ok {
		return tts.Audio{}, fmt.Errorf("deepgram: connect failed")
	}
	if err := dg.SpeakWithText(req.Text); err != nil {
		return tts.Audio{}, fmt.Errorf("deepgram: speak text: %w", err)
	}
	if err := dg.Flush(); err != nil {
		s.logger.Warn("deepgram flush failed", slog.Any("error", err))
	}

	pcm, err := col.wait(ctx, s.IdleWindow, s.Deadline)
	if err != nil {
		return tts.Audio{}, err
	}
	return tts.Audio{Data: pcm, Encoding: audio.EncodingPCM, Format: format}, nil
}

// collector implements the SDK's speak callback and gathers audio.
type collector struct {
	mu      sync.Mutex
	pcm     []byte
	last    time.Time
	err     error
	flushed chan struct{}
	once    sync.Once
}

func newCollector() *collector {
	return &collector{flushed: make(chan struct{})}
}

func (c *collector) finish() { c.once.Do(func() { close(c.flushed) }) }

func (c *collector) Open(*msginterfaces.OpenResponse) error         { return nil }
func (c *collector) Metadata(*msginterfaces.MetadataResponse) error { return nil }
func (c *collector) Clear(*msginterfaces.ClearedResponse) error     { return nil }
func (c *collector) Warning(*msginterfaces.WarningResponse) error   { return nil }
func (c *collector) UnhandledEvent([]byte) error                    { return nil }

func (c *collector) Flush(*msginterfaces.FlushedResponse) error {
	c.finish()
	return nil
}

func (c *collector) Close(*msginterfaces.CloseResponse) error {
	c.finish()
	return nil
}

func (c *collector) Error(e *msginterfaces.ErrorResponse) error {
	c.mu.Lock()
	if e != nil {
		c.err = fmt.Errorf("deepgram: %+v", *e)
	} else {
		c.err = fmt.Errorf("deepgram: unknown error")
	}
	c.mu.Unlock()
	c.finish()
	return nil
}

func (c *collector) Binary(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	c.mu.Lock()
	c.pcm = append(c.pcm, data...)
	c.last = time.Now()
	c.mu.Unlock()
	return nil
}

// wait returns once the flush is acknowledged, audio has been idle for
// idle, the deadline passes, or ctx is done.
func (c *collector) wait(ctx context.Context, idle, deadline time.Duration) ([]byte, error) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	timeout := time.NewTimer(deadline)
	defer timeout.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.flushed:
			return c.result()
		case <-timeout.C:
			pcm, err := c.result()
			if err == nil && len(pcm) == 0 {
				err = fmt.Errorf("deepgram: no audio before deadline")
			}
			return pcm, err
		case <-ticker.C:
			c.mu.Lock()
			idleFor := time.Since(c.last)
			seen := len(c.pcm) > 0
			c.mu.Unlock()
			if seen && idleFor > idle {
				return c.result()
			}
		}
	}
}

func (c *collector) result() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return c.pcm[:len(c.pcm)&^1], nil
}

var _ tts.Synthesizer = (*Synthesizer)(nil)

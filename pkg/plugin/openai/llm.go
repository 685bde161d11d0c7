package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/essoktani-yazid/stm-ai-gateway/pkg/ai/llm"
	"github.com/essoktani-yazid/stm-ai-gateway/pkg/plugin"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "mistralai/mistral-7b-instruct"

// Completer streams chat completions from an OpenAI-compatible endpoint.
type Completer struct {
	client   *openai.Client
	model    string
	timeout  time.Duration
	defaults llm.Request
	logger   *slog.Logger
}

// NewCompleter creates a completer. OPENROUTER_API_KEY is preferred over
// OPENAI_API_KEY when no key is configured.
func NewCompleter(opts plugin.Options) (*Completer, error) {
	// the per-call timeout is applied to the stream context, not the client
	timeout := opts.Timeout
	opts.Timeout = 0

	client, err := newClient(opts, "OPENROUTER_API_KEY", "OPENAI_API_KEY")
	if err != nil {
		return nil, err
	}
	model := opts.Model
	if model == "" {
		model = DefaultModel
	}
	return &Completer{
		client:  client,
		model:   model,
		timeout: timeout,
		defaults: llm.Request{
			Temperature: opts.Temperature,
			MaxTokens:   opts.MaxTokens,
			TopP:        opts.TopP,
		},
		logger: logger(opts).With(slog.String("provider", "openai"), slog.String("model", model)),
	}, nil
}

// Stream starts a chat completion when the first fragment is pulled.
func (c *Completer) Stream(ctx context.Context, req llm.Request) llm.Fragments {
	return func(yield func(string, error) bool) {
		if c.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}

		start := time.Now()
		stream, err := c.client.CreateChatCompletionStream(ctx, c.chatRequest(req))
		if err != nil {
			c.logger.Error("chat completion failed", slog.Any("error", err))
			yield("", fmt.Errorf("chat completion request failed: %w", err))
			return
		}
		defer stream.Close()

		n := 0
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				c.logger.Debug("chat completion finished",
					slog.Int("fragments", n),
					slog.Duration("duration", time.Since(start)))
				return
			}
			if err != nil {
				c.logger.Error("chat completion stream failed", slog.Any("error", err))
				yield("", fmt.Errorf("chat completion stream: %w", err))
				return
			}
			if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
				continue
			}
			n++
			if !yield(resp.Choices[0].Delta.Content, nil) {
				return
			}
		}
	}
}

func (c *Completer) chatRequest(req llm.Request) openai.ChatCompletionRequest {
	msgs := req.Messages()
	out := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    make([]openai.ChatCompletionMessage, len(msgs)),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stream:      true,
	}
	for i, m := range msgs {
		out.Messages[i] = openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content}
	}
	if out.MaxTokens == 0 {
		out.MaxTokens = c.defaults.MaxTokens
	}
	if out.Temperature == 0 {
		out.Temperature = c.defaults.Temperature
	}
	if out.TopP == 0 {
		out.TopP = c.defaults.TopP
	}
	return out
}

var _ llm.Completer = (*Completer)(nil)

// Package openai provides providers backed by OpenAI-compatible HTTP APIs:
// streaming chat completions (OpenAI or OpenRouter), Whisper transcription
// and speech synthesis.
package openai

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/essoktani-yazid/stm-ai-gateway/pkg/plugin"
)

func init() {
	plugin.Register(&plugin.Plugin{
		Kind:        plugin.KindLLM,
		Name:        "openai",
		Factory:     func(opts plugin.Options) (any, error) { return NewCompleter(opts) },
		Description: "OpenAI-compatible streaming chat completions (OpenAI, OpenRouter)",
	})
	plugin.Register(&plugin.Plugin{
		Kind:        plugin.KindSTT,
		Name:        "openai",
		Factory:     func(opts plugin.Options) (any, error) { return NewWhisper(opts) },
		Description: "OpenAI Whisper transcription with energy-based endpointing",
	})
	plugin.Register(&plugin.Plugin{
		Kind:        plugin.KindTTS,
		Name:        "openai",
		Factory:     func(opts plugin.Options) (any, error) { return NewSynthesizer(opts) },
		Description: "OpenAI text-to-speech (WAV)",
	})
}

// newClient builds a go-openai client from provider options. The key comes
// from opts or, failing that, the first non-empty environment variable.
func newClient(opts plugin.Options, envKeys ...string) (*openai.Client, error) {
	apiKey := opts.APIKey
	for _, k := range envKeys {
		if apiKey != "" {
			break
		}
		apiKey = os.Getenv(k)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required (set one of %s or provide it in config)", strings.Join(envKeys, ", "))
	}

	cfg := openai.DefaultConfig(apiKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = BaseURL(opts.BaseURL)
	}
	httpClient := &http.Client{Timeout: opts.Timeout}
	if opts.Referer != "" {
		httpClient.Transport = &headerTransport{
			base:    http.DefaultTransport,
			headers: map[string]string{"HTTP-Referer": opts.Referer},
		}
	}
	cfg.HTTPClient = httpClient
	return openai.NewClientWithConfig(cfg), nil
}

// BaseURL accepts either an API base ("https://openrouter.ai/api/v1") or a
// full chat-completions endpoint and returns the base.
func BaseURL(u string) string {
	u = strings.TrimRight(u, "/")
	return strings.TrimSuffix(u, "/chat/completions")
}

type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}

func logger(opts plugin.Options) *slog.Logger {
	if opts.Logger != nil {
		return opts.Logger
	}
	return slog.Default()
}

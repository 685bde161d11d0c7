package openai

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/essoktani-yazid/stm-ai-gateway/pkg/ai/llm"
	"github.com/essoktani-yazid/stm-ai-gateway/pkg/ai/tts"
	"github.com/essoktani-yazid/stm-ai-gateway/pkg/audio"
	"github.com/essoktani-yazid/stm-ai-gateway/pkg/audio/wav"
	"github.com/essoktani-yazid/stm-ai-gateway/pkg/plugin"
)

// fakeAPI is a minimal OpenAI-compatible server.
type fakeAPI struct {
	mu          sync.Mutex
	chunks      []string
	transcripts []string
	referer     string
	chatBody    map[string]any
	uploads     int
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.referer = r.Header.Get("HTTP-Referer")
		_ = json.NewDecoder(r.Body).Decode(&f.chatBody)
		f.mu.Unlock()

		w.Header().Set("Content-Type", "text/event-stream")
		for _, c := range f.chunks {
			b, _ := json.Marshal(map[string]any{
				"id":      "chatcmpl-1",
				"object":  "chat.completion.chunk",
				"choices": []any{map[string]any{"index": 0, "delta": map[string]any{"content": c}}},
			})
			fmt.Fprintf(w, "data: %s\n\n", b)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})
	mux.HandleFunc("/v1/audio/transcriptions", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		text := ""
		if f.uploads < len(f.transcripts) {
			text = f.transcripts[f.uploads]
		}
		f.uploads++
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"text": text})
	})
	mux.HandleFunc("/v1/audio/speech", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["input"] == "fail" {
			http.Error(w, `{"error":{"message":"bad input"}}`, http.StatusBadRequest)
			return
		}
		clip, _ := wav.EncodeBytes(audio.PCM24kMono, make([]byte, 480))
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write(clip)
	})
	return mux
}

func (f *fakeAPI) start(t *testing.T) plugin.Options {
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	return plugin.Options{APIKey: "test-key", BaseURL: srv.URL + "/v1/chat/completions"}
}

func TestBaseURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://openrouter.ai/api/v1/chat/completions", "https://openrouter.ai/api/v1"},
		{"https://openrouter.ai/api/v1/", "https://openrouter.ai/api/v1"},
		{"https://api.openai.com/v1", "https://api.openai.com/v1"},
	}
	for _, tt := range tests {
		if got := BaseURL(tt.in); got != tt.want {
			t.Errorf("BaseURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMissingAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "")

	if _, err := NewCompleter(plugin.Options{}); err == nil {
		t.Error("Expected error for missing API key")
	}
	if _, err := NewWhisper(plugin.Options{}); err == nil {
		t.Error("Expected error for missing API key")
	}
}

func TestCompleterStreams(t *testing.T) {
	is := is.New(t)

	api := &fakeAPI{chunks: []string{"{\"action\":", " \"INFO\"}"}}
	opts := api.start(t)
	opts.Referer = "https://smarttask.app"
	opts.Temperature = 0.7
	opts.MaxTokens = 1500

	c, err := NewCompleter(opts)
	is.NoErr(err)

	var frags []string
	for frag, err := range c.Stream(context.Background(), llm.Request{System: "sys", Prompt: "hello"}) {
		is.NoErr(err)
		frags = append(frags, frag)
	}
	is.Equal(frags, []string{"{\"action\":", " \"INFO\"}"}) // fragments arrive as streamed

	api.mu.Lock()
	defer api.mu.Unlock()
	is.Equal(api.referer, "https://smarttask.app")
	is.Equal(api.chatBody["model"], DefaultModel)
	is.Equal(api.chatBody["max_tokens"], float64(1500)) // default sampling applied
	is.Equal(api.chatBody["stream"], true)
	msgs := api.chatBody["messages"].([]any)
	is.Equal(len(msgs), 2) // system + user
}

func TestCompleterErrorEndsSequence(t *testing.T) {
	is := is.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, err := NewCompleter(plugin.Options{APIKey: "k", BaseURL: srv.URL})
	is.NoErr(err)

	_, err = llm.Collect(context.Background(), c, llm.Request{Prompt: "x"})
	is.True(err != nil) // upstream failure surfaces as the sequence error
}

func TestSynthesizer(t *testing.T) {
	is := is.New(t)

	api := &fakeAPI{}
	s, err := NewSynthesizer(api.start(t))
	is.NoErr(err)

	clip, err := s.Synthesize(context.Background(), tts.Request{Text: "Hello."})
	is.NoErr(err)
	is.Equal(clip.Encoding, audio.EncodingWAV)
	is.True(wav.IsWAV(clip.Data))

	_, err = s.Synthesize(context.Background(), tts.Request{Text: "fail"})
	is.True(err != nil)
}

func tone(d time.Duration, amp int16) []byte {
	n := audio.PCM16kMono.Bytes(d)
	pcm := make([]byte, n)
	for i := 0; i+1 < n; i += 2 {
		v := amp
		if (i/2)%2 == 1 {
			v = -amp
		}
		binary.LittleEndian.PutUint16(pcm[i:], uint16(v))
	}
	return pcm
}

func TestWhisperEndpointing(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	api := &fakeAPI{transcripts: []string{" show my tasks "}}
	w, err := NewWhisper(api.start(t))
	is.NoErr(err)

	rec, err := w.NewRecognizer(ctx)
	is.NoErr(err)
	defer rec.Close()

	// leading silence never triggers a transcription
	for range 20 {
		res, err := rec.Feed(ctx, tone(100*time.Millisecond, 0))
		is.NoErr(err)
		is.True(!res.Final)
	}

	for range 5 {
		res, err := rec.Feed(ctx, tone(100*time.Millisecond, 8000))
		is.NoErr(err)
		is.True(!res.Final)
	}

	var final string
	for range 10 {
		res, err := rec.Feed(ctx, tone(100*time.Millisecond, 0))
		is.NoErr(err)
		if res.Final {
			final = res.Text
			break
		}
	}
	is.Equal(final, "show my tasks") // trailing silence finalizes, text is trimmed

	api.mu.Lock()
	is.Equal(api.uploads, 1)
	api.mu.Unlock()
}

func TestWhisperFinalize(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	api := &fakeAPI{transcripts: []string{"delete task one"}}
	w, err := NewWhisper(api.start(t))
	is.NoErr(err)
	rec, _ := w.NewRecognizer(ctx)

	text, err := rec.Finalize(ctx)
	is.NoErr(err)
	is.Equal(text, "") // nothing buffered, no upload

	_, err = rec.Feed(ctx, tone(300*time.Millisecond, 8000))
	is.NoErr(err)
	text, err = rec.Finalize(ctx)
	is.NoErr(err)
	is.Equal(text, "delete task one")

	is.NoErr(rec.Close())
	_, err = rec.Feed(ctx, tone(10*time.Millisecond, 0))
	is.True(err != nil) // closed
}

func TestWhisperPartials(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	api := &fakeAPI{transcripts: []string{"show", "show my"}}
	w, err := NewWhisper(api.start(t))
	is.NoErr(err)
	w.PartialEvery = 200 * time.Millisecond
	rec, _ := w.NewRecognizer(ctx)

	var partials []string
	for range 4 {
		res, err := rec.Feed(ctx, tone(100*time.Millisecond, 8000))
		is.NoErr(err)
		is.True(!res.Final)
		if res.Text != "" {
			partials = append(partials, res.Text)
		}
	}
	is.Equal(partials, []string{"show", "show my"})
}

func TestPluginsRegistered(t *testing.T) {
	for _, kind := range []string{plugin.KindLLM, plugin.KindSTT, plugin.KindTTS} {
		if _, ok := plugin.Get(kind, "openai"); !ok {
			t.Errorf("openai %s provider not registered", kind)
		}
	}
}

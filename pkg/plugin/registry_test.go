package plugin

import (
	"context"
	"errors"
	"testing"

	"github.com/essoktani-yazid/stm-ai-gateway/pkg/ai/llm"
	"github.com/essoktani-yazid/stm-ai-gateway/pkg/ai/stt"
	"github.com/matryer/is"
)

type echoLLM struct{ model string }

func (e *echoLLM) Stream(ctx context.Context, req llm.Request) llm.Fragments {
	return llm.Text(e.model + ":" + req.Prompt)
}

func newEchoLLM(opts Options) (any, error) {
	return &echoLLM{model: opts.Model}, nil
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()

	r.Register(&Plugin{Kind: KindLLM, Name: "echo", Factory: newEchoLLM})

	if p, ok := r.Get(KindLLM, "echo"); !ok {
		t.Error("Expected plugin to be registered")
	} else if p.Factory == nil {
		t.Error("Expected factory to not be nil")
	}
	if _, ok := r.Get(KindSTT, "echo"); ok {
		t.Error("Expected lookup under another kind to fail")
	}
}

func TestRegistry_RegisterPanics(t *testing.T) {
	tests := []struct {
		name   string
		plugin *Plugin
	}{
		{"empty kind", &Plugin{Name: "x", Factory: newEchoLLM}},
		{"empty name", &Plugin{Kind: KindLLM, Factory: newEchoLLM}},
		{"nil factory", &Plugin{Kind: KindLLM, Name: "x"}},
		{"duplicate", &Plugin{Kind: KindLLM, Name: "echo", Factory: newEchoLLM}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			r.Register(&Plugin{Kind: KindLLM, Name: "echo", Factory: newEchoLLM})

			defer func() {
				if recover() == nil {
					t.Errorf("Expected panic for %s", tt.name)
				}
			}()
			r.Register(tt.plugin)
		})
	}
}

func TestRegistry_ListSorted(t *testing.T) {
	is := is.New(t)

	r := NewRegistry()
	r.Register(&Plugin{Kind: KindTTS, Name: "b", Factory: newEchoLLM})
	r.Register(&Plugin{Kind: KindLLM, Name: "z", Factory: newEchoLLM})
	r.Register(&Plugin{Kind: KindLLM, Name: "a", Factory: newEchoLLM})

	all := r.List("")
	is.Equal(len(all), 3)
	is.Equal(all[0].Name, "a") // llm/a
	is.Equal(all[1].Name, "z") // llm/z
	is.Equal(all[2].Kind, KindTTS)

	is.Equal(len(r.List(KindLLM)), 2)
	is.Equal(len(r.List("vad")), 0)
}

func TestBuild(t *testing.T) {
	is := is.New(t)

	r := NewRegistry()
	r.Register(&Plugin{Kind: KindLLM, Name: "echo", Factory: newEchoLLM})
	r.Register(&Plugin{Kind: KindSTT, Name: "wrong", Factory: newEchoLLM})
	r.Register(&Plugin{Kind: KindLLM, Name: "broken", Factory: func(Options) (any, error) {
		return nil, errors.New("missing key")
	}})

	c, err := build[llm.Completer](r, KindLLM, "echo", Options{Model: "m"})
	is.NoErr(err)
	got, err := llm.Collect(context.Background(), c, llm.Request{Prompt: "hi"})
	is.NoErr(err)
	is.Equal(got, "m:hi") // options reach the factory

	_, err = build[llm.Completer](r, KindLLM, "nope", Options{})
	is.True(err != nil) // unknown provider

	_, err = build[llm.Completer](r, KindLLM, "broken", Options{})
	is.True(err != nil) // factory error is surfaced

	_, err = build[stt.Provider](r, KindSTT, "wrong", Options{})
	is.True(err != nil) // wrong interface for the kind
}

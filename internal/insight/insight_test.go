package insight

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/matryer/is"

	"github.com/essoktani-yazid/stm-ai-gateway/internal/protocol"
	"github.com/essoktani-yazid/stm-ai-gateway/internal/protocol/fake"
	"github.com/essoktani-yazid/stm-ai-gateway/pkg/ai"
	llmfake "github.com/essoktani-yazid/stm-ai-gateway/pkg/ai/llm/fake"
)

var discard = slog.New(slog.DiscardHandler)

func sent(t *testing.T, out *fake.Sender) protocol.Insight {
	t.Helper()
	frames := out.Frames()
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	card, ok := frames[0].Value.(protocol.Insight)
	if !ok {
		t.Fatalf("frame is %T, want protocol.Insight", frames[0].Value)
	}
	return card
}

func TestAnalyze(t *testing.T) {
	is := is.New(t)
	model := llmfake.NewFakeLLM("```json\n" + `{"mood":"🔥","title":"On a Roll","message":"12 tasks done this week. Keep going!","theme_color":"#10B981","action_label":null}` + "\n```")
	out := &fake.Sender{}
	a := NewAnalyzer(model, discard)

	is.NoErr(a.Analyze(context.Background(), out, json.RawMessage(`{"tasks_done": 12, "overdue": 0}`)))

	card := sent(t, out)
	is.Equal(card.Title, "On a Roll")
	is.Equal(card.ThemeColor, "#10B981")
	is.True(card.ActionLabel == nil)
	is.True(strings.Contains(model.LastPrompt(), `"tasks_done": 12`))
	is.Equal(out.Terminals(), 0) // insights are a side channel
}

func TestAnalyzeFallback(t *testing.T) {
	tests := []struct {
		name  string
		reply llmfake.Reply
	}{
		{"model error", llmfake.Reply{Err: errors.New("upstream 500")}},
		{"prose", llmfake.Reply{Text: "You are doing great!"}},
		{"missing message", llmfake.Reply{Text: `{"mood":"🚀","title":"Go"}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &fake.Sender{}
			a := NewAnalyzer(llmfake.NewScripted(tt.reply), discard)
			if err := a.Analyze(context.Background(), out, nil); err != nil {
				t.Fatalf("Analyze() error = %v", err)
			}
			if card := sent(t, out); card != Fallback {
				t.Errorf("Analyze() sent %+v, want fallback", card)
			}
		})
	}
}

func TestAnalyzeDisconnect(t *testing.T) {
	is := is.New(t)
	a := NewAnalyzer(llmfake.NewFakeLLM("{}"), discard)

	gone := &fake.Sender{FailAfter: 1}
	is.NoErr(gone.Send(context.Background(), protocol.Status{Status: "x"}))
	err := a.Analyze(context.Background(), gone, nil)
	is.True(ai.IsConnection(err))
}

func TestParseNormalizes(t *testing.T) {
	is := is.New(t)

	card, err := Parse(`{"title":" Watch Out ","message":"3 overdue tasks.","theme_color":"red","action_label":"null"}`)
	is.NoErr(err)
	is.Equal(card.Title, "Watch Out")
	is.Equal(card.Mood, "🤖")
	is.Equal(card.ThemeColor, "#6366F1") // invalid color replaced
	is.True(card.ActionLabel == nil)     // "null" string dropped

	card, err = Parse(`{"mood":"⚠️","title":"Overdue","message":"Clear the backlog.","theme_color":"#EF4444","action_label":"Fix Overdue"}`)
	is.NoErr(err)
	is.Equal(*card.ActionLabel, "Fix Overdue")
}

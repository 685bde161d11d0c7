// Package insight produces the dashboard briefing card.
package insight

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/essoktani-yazid/stm-ai-gateway/internal/llmjson"
	"github.com/essoktani-yazid/stm-ai-gateway/internal/metrics"
	"github.com/essoktani-yazid/stm-ai-gateway/internal/prompts"
	"github.com/essoktani-yazid/stm-ai-gateway/internal/protocol"
	"github.com/essoktani-yazid/stm-ai-gateway/pkg/ai"
	"github.com/essoktani-yazid/stm-ai-gateway/pkg/ai/llm"
)

// Fallback is sent whenever a briefing cannot be produced.
var Fallback = protocol.Insight{
	Mood:       "🤖",
	Title:      "Dashboard Ready",
	Message:    "Your productivity data is being analyzed. Check back soon!",
	ThemeColor: "#6366F1",
}

var hexColor = regexp.MustCompile(`^#(?:[0-9A-Fa-f]{3}|[0-9A-Fa-f]{6})$`)

// Analyzer turns dashboard statistics into a briefing.
type Analyzer struct {
	llm    llm.Completer
	logger *slog.Logger
}

// NewAnalyzer creates an analyzer.
func NewAnalyzer(c llm.Completer, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{llm: c, logger: logger}
}

// Analyze sends exactly one insight frame for stats. The returned error is
// non-nil only when the client connection failed.
func (a *Analyzer) Analyze(ctx context.Context, out protocol.Sender, stats json.RawMessage) (err error) {
	card := Fallback
	defer func() {
		if rec := recover(); rec != nil {
			a.logger.Error("insight panicked", slog.Any("panic", rec))
			card = Fallback
		}
		metrics.Workflow("ANALYZE_DASHBOARD", err)
		err = out.Send(ctx, card)
	}()

	generated, genErr := a.generate(ctx, stats)
	if genErr != nil {
		a.logger.Warn("dashboard insight fell back", slog.Any("error", genErr))
		return nil
	}
	card = generated
	return nil
}

func (a *Analyzer) generate(ctx context.Context, stats json.RawMessage) (protocol.Insight, error) {
	start := time.Now()
	raw, err := llm.Collect(ctx, a.llm, prompts.DashboardInsight(compact(stats)))
	metrics.ObserveCall("llm", start)
	if err != nil {
		return protocol.Insight{}, fmt.Errorf("insight completion: %w", err)
	}
	return Parse(raw)
}

// Parse decodes and validates a model reply.
func Parse(raw string) (protocol.Insight, error) {
	var card protocol.Insight
	if err := json.Unmarshal([]byte(llmjson.Extract(raw)), &card); err != nil {
		return protocol.Insight{}, ai.NewError(ai.KindClassification, "insight", err)
	}

	card.Mood = strings.TrimSpace(card.Mood)
	card.Title = strings.TrimSpace(card.Title)
	card.Message = strings.TrimSpace(card.Message)
	card.ThemeColor = strings.TrimSpace(card.ThemeColor)
	if card.Title == "" || card.Message == "" {
		return protocol.Insight{}, ai.NewError(ai.KindClassification, "insight", errors.New("missing title or message"))
	}
	if card.Mood == "" {
		card.Mood = Fallback.Mood
	}
	if !hexColor.MatchString(card.ThemeColor) {
		card.ThemeColor = Fallback.ThemeColor
	}
	if card.ActionLabel != nil {
		label := strings.TrimSpace(*card.ActionLabel)
		if label == "" || strings.EqualFold(label, "null") {
			card.ActionLabel = nil
		} else {
			card.ActionLabel = &label
		}
	}
	return card, nil
}

func compact(stats json.RawMessage) string {
	s := strings.TrimSpace(string(stats))
	if s == "" || s == "null" {
		return "{}"
	}
	return s
}

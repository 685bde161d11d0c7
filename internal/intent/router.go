// Package intent classifies utterances and dispatches them: reads run
// immediately, mutations go through the confirmation workflow, and
// conversational replies are sent back as-is.
package intent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/essoktani-yazid/stm-ai-gateway/internal/confirm"
	"github.com/essoktani-yazid/stm-ai-gateway/internal/metrics"
	"github.com/essoktani-yazid/stm-ai-gateway/internal/prompts"
	"github.com/essoktani-yazid/stm-ai-gateway/internal/protocol"
	"github.com/essoktani-yazid/stm-ai-gateway/internal/sqlsafe"
	"github.com/essoktani-yazid/stm-ai-gateway/pkg/ai"
	"github.com/essoktani-yazid/stm-ai-gateway/pkg/ai/llm"
)

// Status texts.
const (
	StatusAnalyzing = "Analyzing user intent..."
	StatusReading   = "Reading database..."
)

// Terminal texts.
const (
	MessageAnalysisError = "❌ Error analyzing request. Please try again."
	messageSQLError      = "❌ Erreur SQL: %v"
	messageInternalError = "❌ An internal error occurred.\nDetails: %v"
)

// Router classifies and dispatches utterances.
type Router struct {
	llm      llm.Completer
	db       confirm.Executor
	workflow *confirm.Workflow
	logger   *slog.Logger
}

// NewRouter creates a router.
func NewRouter(c llm.Completer, db confirm.Executor, workflow *confirm.Workflow, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{llm: c, db: db, workflow: workflow, logger: logger}
}

// Handle runs one utterance to its terminal message. The returned error is
// non-nil only when the client connection failed.
func (r *Router) Handle(ctx context.Context, out protocol.Sender, ledger *confirm.Ledger, u Utterance) (err error) {
	logger := r.logger.With(slog.String("source", u.Source.String()), slog.String("user_id", u.UserID))
	operation := "UNKNOWN"
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
		if err != nil && !ai.IsConnection(err) {
			logger.Error("workflow failed", slog.String("operation", operation), slog.Any("error", err))
			err = out.Send(ctx, protocol.Message(fmt.Sprintf(messageInternalError, err)))
		}
		metrics.Workflow(operation, err)
		logger.Info("workflow finished",
			slog.String("operation", operation),
			slog.Duration("elapsed", time.Since(start)))
	}()

	if err := protocol.SendStatus(ctx, out, StatusAnalyzing); err != nil {
		return err
	}

	callStart := time.Now()
	raw, err := llm.Collect(ctx, r.llm, prompts.Classification(u.UserID, u.Text))
	metrics.ObserveCall("llm", callStart)
	if err != nil {
		logger.Error("classification call failed", slog.Any("error", err))
	}

	decision, err := Parse(raw)
	if err != nil {
		logger.Error("classification unparsable", slog.Any("error", err), slog.String("raw", raw))
		return out.Send(ctx, protocol.Message(MessageAnalysisError))
	}
	operation = decision.Operation()
	logger.Info("intent classified", slog.String("operation", operation))

	switch d := decision.(type) {
	case Read:
		return r.read(ctx, out, u, d.SQL)
	case Create:
		return r.workflow.ProposeCreate(ctx, out, ledger, d.SQL)
	case Update:
		return r.workflow.Propose(ctx, out, ledger, u.Text, confirm.OpUpdate, d.SQL)
	case Delete:
		return r.workflow.Propose(ctx, out, ledger, u.Text, confirm.OpDelete, d.SQL)
	case Information:
		return out.Send(ctx, protocol.Message(d.Response))
	default:
		return fmt.Errorf("unhandled decision %T", decision)
	}
}

func (r *Router) read(ctx context.Context, out protocol.Sender, u Utterance, stmt string) error {
	if err := protocol.SendStatus(ctx, out, StatusReading); err != nil {
		return err
	}

	if err := sqlsafe.CheckReadOnly(stmt); err != nil {
		return out.Send(ctx, protocol.Message(fmt.Sprintf(messageSQLError, err)))
	}
	res, err := r.db.Execute(ctx, stmt)
	if err != nil {
		return out.Send(ctx, protocol.Message(fmt.Sprintf(messageSQLError, ai.Cause(err))))
	}

	if err := protocol.SendStatus(ctx, out, fmt.Sprintf("Found %d items. Summarizing...", len(res.Rows))); err != nil {
		return err
	}
	summary, err := llm.Collect(ctx, r.llm, prompts.FinalAnswer(u.Text, res.Rows))
	if err != nil {
		return fmt.Errorf("summarize rows: %w", err)
	}
	return out.Send(ctx, protocol.Message(summary))
}

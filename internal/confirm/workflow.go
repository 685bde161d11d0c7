// Package confirm gates mutating statements behind an explicit user
// confirmation. Proposals preview their impact first; confirmed statements
// are validated, executed once, and summarized.
package confirm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/essoktani-yazid/stm-ai-gateway/internal/metrics"
	"github.com/essoktani-yazid/stm-ai-gateway/internal/prompts"
	"github.com/essoktani-yazid/stm-ai-gateway/internal/protocol"
	"github.com/essoktani-yazid/stm-ai-gateway/internal/sqlsafe"
	"github.com/essoktani-yazid/stm-ai-gateway/internal/store"
	"github.com/essoktani-yazid/stm-ai-gateway/pkg/ai"
	"github.com/essoktani-yazid/stm-ai-gateway/pkg/ai/llm"
)

// Status texts.
const (
	StatusPreparingCreate = "Preparing creation request..."
	StatusExecuting       = "Executing operation..."
	StatusAnalyzing       = "Analyzing result..."
)

// Executor runs SQL statements.
type Executor interface {
	Execute(ctx context.Context, stmt string) (store.Result, error)
}

var (
	errUnknownToken = errors.New("this confirmation has expired or was already used")
	errNotProposed  = errors.New("this statement was not proposed in the current session")
)

// Workflow proposes and executes mutations.
type Workflow struct {
	llm    llm.Completer
	db     Executor
	mode   Mode
	logger *slog.Logger
}

// NewWorkflow creates a workflow. An empty mode is strict.
func NewWorkflow(c llm.Completer, db Executor, mode Mode, logger *slog.Logger) *Workflow {
	if mode == "" {
		mode = ModeStrict
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Workflow{llm: c, db: db, mode: mode, logger: logger}
}

// Propose previews an UPDATE or DELETE and either explains that nothing
// matched or asks the client to confirm. Every failure other than a lost
// connection ends in exactly one error message to the client.
func (w *Workflow) Propose(ctx context.Context, out protocol.Sender, ledger *Ledger, question string, op Operation, stmt string) (err error) {
	if err := protocol.SendStatus(ctx, out, fmt.Sprintf("Calculating impact for %s...", op)); err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil && !ai.IsConnection(err) {
			w.logger.Error("impact preview failed", slog.String("operation", string(op)), slog.Any("error", err))
			err = out.Send(ctx, protocol.Message(fmt.Sprintf("❌ An internal error occurred.\nDetails: %v", err)))
		}
	}()
	return w.propose(ctx, out, ledger, question, op, stmt)
}

func (w *Workflow) propose(ctx context.Context, out protocol.Sender, ledger *Ledger, question string, op Operation, stmt string) error {
	preview, err := PreviewQuery(stmt)
	if err != nil {
		return err
	}

	// A failed preview counts as nothing matched.
	var rows []store.Row
	if err := sqlsafe.CheckReadOnly(preview.SQL); err != nil {
		w.logger.Warn("preview rejected", slog.String("sql", preview.SQL), slog.Any("error", err))
	} else if res, err := w.db.Execute(ctx, preview.SQL); err != nil {
		w.logger.Warn("preview failed", slog.String("sql", preview.SQL), slog.Any("error", err))
	} else {
		rows = res.Rows
	}

	if len(rows) == 0 {
		text, err := llm.Collect(ctx, w.llm, prompts.NoResults(question, stmt))
		if err != nil {
			return fmt.Errorf("explain empty preview: %w", err)
		}
		return out.Send(ctx, protocol.Message(text))
	}

	evidence := Evidence(rows)
	warning, err := llm.Collect(ctx, w.llm, prompts.ImpactWarning(question, len(rows), evidence, string(op)))
	if err != nil || strings.TrimSpace(warning) == "" {
		w.logger.Warn("impact warning unavailable, using fallback", slog.Any("error", err))
		warning = FallbackWarning(len(rows), evidence)
	}

	p := ledger.Add(stmt, op)
	w.logger.Info("mutation proposed",
		slog.String("operation", string(op)),
		slog.Int("rows", len(rows)),
		slog.String("token", p.Token))
	return out.Send(ctx, protocol.Proposal(warning, stmt, string(op), p.Token))
}

// ProposeCreate describes an INSERT and asks the client to confirm it. The
// statement is not executed.
func (w *Workflow) ProposeCreate(ctx context.Context, out protocol.Sender, ledger *Ledger, stmt string) error {
	if err := protocol.SendStatus(ctx, out, StatusPreparingCreate); err != nil {
		return err
	}
	text, err := llm.Collect(ctx, w.llm, prompts.Confirmation(stmt))
	if err != nil {
		return fmt.Errorf("describe creation: %w", err)
	}
	p := ledger.Add(stmt, OpCreate)
	return out.Send(ctx, protocol.Proposal(text, stmt, string(OpCreate), p.Token))
}

// Request is a CONFIRM frame.
type Request struct {
	SQL   string
	Token string
}

// Execute runs a confirmed statement and reports the outcome in exactly one
// display message. It never asks for confirmation again.
func (w *Workflow) Execute(ctx context.Context, out protocol.Sender, ledger *Ledger, req Request) (err error) {
	if err := protocol.SendStatus(ctx, out, StatusExecuting); err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("confirmed execution panicked", slog.Any("panic", r))
			err = out.Send(ctx, protocol.Message(fmt.Sprintf("❌ An internal error occurred.\nDetails: %v", r)))
		}
	}()

	stmt, execErr := w.resolve(ledger, req)
	if execErr == nil {
		execErr = sqlsafe.Check(stmt)
	}

	var result string
	if execErr == nil {
		var res store.Result
		res, execErr = w.db.Execute(ctx, stmt)
		if execErr == nil {
			result = fmt.Sprintf("Success. Rows affected: %d", res.RowsAffected)
		}
	}
	if execErr != nil {
		result = fmt.Sprintf("Error: %v", ai.Cause(execErr))
		w.logger.Warn("confirmed statement not executed", slog.String("sql", stmt), slog.Any("error", execErr))
	} else {
		w.logger.Info("confirmed statement executed", slog.String("sql", stmt), slog.String("result", result))
	}
	metrics.Workflow("CONFIRM", execErr)

	if err := protocol.SendStatus(ctx, out, StatusAnalyzing); err != nil {
		return err
	}

	summary, err := llm.Collect(ctx, w.llm, prompts.ExecutionSummary(stmt, result))
	if err != nil || strings.TrimSpace(summary) == "" {
		w.logger.Warn("execution summary unavailable", slog.Any("error", err))
		summary = result
	}
	return out.Send(ctx, protocol.Message(summary))
}

// resolve finds the statement a CONFIRM refers to. A token always resolves
// through the ledger; bare SQL must match a proposal unless the client is
// trusted.
func (w *Workflow) resolve(ledger *Ledger, req Request) (string, error) {
	if req.Token != "" {
		p, ok := ledger.Take(req.Token)
		if !ok {
			return req.SQL, errUnknownToken
		}
		return p.SQL, nil
	}
	if p, ok := ledger.TakeSQL(req.SQL); ok {
		return p.SQL, nil
	}
	if w.mode == ModeTrustClient {
		return req.SQL, nil
	}
	return req.SQL, errNotProposed
}

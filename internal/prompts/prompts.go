// Package prompts builds the completion requests the gateway sends to the
// language model. The wording lives in templates/; this package only fills
// them in and pairs each with its system instruction.
package prompts

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/essoktani-yazid/stm-ai-gateway/pkg/ai/llm"
)

// System instructions.
const (
	SystemSummary      = "You are a helpful assistant."
	SystemConfirmation = "Assistant de confirmation."
	SystemSecurity     = "Security Assistant"
	SystemExecution    = "You are a helpful task manager assistant."
	SystemCoach        = "Productivity Coach"
)

//go:embed templates/*.tmpl
var files embed.FS

var templates = template.Must(template.ParseFS(files, "templates/*.tmpl"))

// render panics on a template bug; request paths recover at the workflow
// boundary.
func render(name string, data any) string {
	var b strings.Builder
	if err := templates.ExecuteTemplate(&b, name, data); err != nil {
		panic(fmt.Sprintf("render prompt %s: %v", name, err))
	}
	return strings.TrimSpace(b.String())
}

// Classification asks the model to turn an utterance into an operation and
// a SQL statement scoped to userID.
func Classification(userID, utterance string) llm.Request {
	return llm.Request{
		System: render("classification.tmpl", struct{ UserID string }{userID}),
		Prompt: utterance,
	}
}

// FinalAnswer summarizes query results for the user's question. Rows are
// serialized as JSON.
func FinalAnswer(question string, rows any) llm.Request {
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		data = []byte(fmt.Sprint(rows))
	}
	return llm.Request{
		System: SystemSummary,
		Prompt: render("final_answer.tmpl", struct{ Question, Rows string }{question, string(data)}),
	}
}

// Confirmation describes a proposed INSERT before the user confirms it.
func Confirmation(sql string) llm.Request {
	return llm.Request{
		System: SystemConfirmation,
		Prompt: render("confirmation.tmpl", struct{ SQL string }{sql}),
	}
}

// NoResults explains that a mutation matched nothing.
func NoResults(question, sql string) llm.Request {
	return llm.Request{
		System: SystemSummary,
		Prompt: render("no_results.tmpl", struct{ Question, SQL string }{question, sql}),
	}
}

// ImpactWarning warns about a mutation that matches count rows.
func ImpactWarning(question string, count int, evidence, operation string) llm.Request {
	return llm.Request{
		System: SystemSecurity,
		Prompt: render("impact_warning.tmpl", struct {
			Question  string
			Count     int
			Evidence  string
			Operation string
		}{question, count, evidence, operation}),
	}
}

// ExecutionSummary reports the outcome of a confirmed statement.
func ExecutionSummary(sql, result string) llm.Request {
	return llm.Request{
		System: SystemExecution,
		Prompt: render("execution_summary.tmpl", struct{ SQL, Result string }{sql, result}),
	}
}

// DashboardInsight asks for a one-card briefing over the client's stats,
// already encoded as JSON.
func DashboardInsight(stats string) llm.Request {
	return llm.Request{
		System: SystemCoach,
		Prompt: render("dashboard_insight.tmpl", struct{ Stats string }{stats}),
	}
}

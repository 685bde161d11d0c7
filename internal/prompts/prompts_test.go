package prompts

import (
	"strings"
	"testing"

	"github.com/matryer/is"

	"github.com/essoktani-yazid/stm-ai-gateway/internal/store"
)

func TestClassificationScopesUser(t *testing.T) {
	is := is.New(t)

	req := Classification("42", "show me my tasks")
	is.Equal(req.Prompt, "show me my tasks")
	is.True(strings.Contains(req.System, "WHERE user_id = '42'")) // isolation rule carries the user
	is.True(!strings.Contains(req.System, "{{"))                  // fully rendered
	is.True(strings.Contains(req.System, `"operation_type"`))
}

func TestFinalAnswerSerializesRows(t *testing.T) {
	is := is.New(t)

	rows := []store.Row{{"title": "Write report", "status": "TODO"}}
	req := FinalAnswer("what is left?", rows)
	is.Equal(req.System, SystemSummary)
	is.True(strings.Contains(req.Prompt, "what is left?"))
	is.True(strings.Contains(req.Prompt, `"title": "Write report"`))
}

func TestImpactWarning(t *testing.T) {
	is := is.New(t)

	req := ImpactWarning("delete done tasks", 2, "• a\n• b", "DELETE")
	is.Equal(req.System, SystemSecurity)
	is.True(strings.Contains(req.Prompt, "Operation Type: DELETE"))
	is.True(strings.Contains(req.Prompt, "**2 items**"))
	is.True(strings.Contains(req.Prompt, "• a\n• b"))
}

func TestExecutionSummary(t *testing.T) {
	is := is.New(t)

	req := ExecutionSummary("DELETE FROM tasks WHERE id = 1", "Success. Rows affected: 1")
	is.Equal(req.System, SystemExecution)
	is.True(strings.HasPrefix(req.Prompt, `The user ordered an operation. Here is the SQL executed: "DELETE FROM tasks WHERE id = 1".`))
	is.True(strings.Contains(req.Prompt, `"Success. Rows affected: 1"`))
}

func TestSystemInstructions(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"confirmation", Confirmation("INSERT INTO tasks (title) VALUES ('x')").System, SystemConfirmation},
		{"no results", NoResults("q", "DELETE FROM tasks WHERE id = 9").System, SystemSummary},
		{"dashboard", DashboardInsight(`{"overdue":3}`).System, SystemCoach},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: System = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

func TestTemplatesDoNotEscape(t *testing.T) {
	is := is.New(t)

	req := Confirmation("INSERT INTO tasks (title) VALUES ('<b>&</b>')")
	is.True(strings.Contains(req.Prompt, "('<b>&</b>')")) // text/template keeps SQL verbatim
}

package confirm

import (
	"context"
	"fmt"
	"testing"

	"github.com/matryer/is"

	"github.com/essoktani-yazid/stm-ai-gateway/internal/store"
	"github.com/essoktani-yazid/stm-ai-gateway/internal/store/storetest"
)

func TestPreviewQuery(t *testing.T) {
	tests := []struct {
		name      string
		stmt      string
		want      string
		wantTable string
		wantWhere bool
	}{
		{
			name:      "delete with where",
			stmt:      "DELETE FROM tasks WHERE status = 'COMPLETED' AND user_id = '1'",
			want:      "SELECT * FROM tasks WHERE status = 'COMPLETED' AND user_id = '1'",
			wantTable: "tasks",
			wantWhere: true,
		},
		{
			name:      "lower case update",
			stmt:      "update tasks set priority='HIGH' where id = 3;",
			want:      "SELECT * FROM tasks where id = 3",
			wantTable: "tasks",
			wantWhere: true,
		},
		{
			name:      "update without where",
			stmt:      "UPDATE tasks SET status = 'TODO'",
			want:      "SELECT * FROM tasks LIMIT 5",
			wantTable: "tasks",
		},
		{
			name:      "delete without where",
			stmt:      "DELETE FROM sub_tasks",
			want:      "SELECT * FROM sub_tasks LIMIT 5",
			wantTable: "sub_tasks",
		},
		{
			name:      "alias",
			stmt:      "UPDATE tasks t SET t.status = 'BLOCKED' WHERE t.id = 1",
			want:      "SELECT * FROM tasks t WHERE t.id = 1",
			wantTable: "tasks",
			wantWhere: true,
		},
		{
			name:      "modifier",
			stmt:      "UPDATE LOW_PRIORITY tasks SET priority = 'LOW' WHERE id = 1",
			want:      "SELECT * FROM tasks WHERE id = 1",
			wantTable: "tasks",
			wantWhere: true,
		},
		{
			name:      "where inside literal",
			stmt:      "UPDATE tasks SET title = 'where next' WHERE id = 2",
			want:      "SELECT * FROM tasks WHERE id = 2",
			wantTable: "tasks",
			wantWhere: true,
		},
		{
			name:      "order and limit kept",
			stmt:      "DELETE FROM tasks WHERE priority = 'LOW' ORDER BY due_date LIMIT 1",
			want:      "SELECT * FROM tasks WHERE priority = 'LOW' ORDER BY due_date LIMIT 1",
			wantTable: "tasks",
			wantWhere: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := PreviewQuery(tt.stmt)
			if err != nil {
				t.Fatalf("PreviewQuery() error = %v", err)
			}
			if p.SQL != tt.want {
				t.Errorf("SQL = %q, want %q", p.SQL, tt.want)
			}
			if p.Table != tt.wantTable {
				t.Errorf("Table = %q, want %q", p.Table, tt.wantTable)
			}
			if p.HasWhere != tt.wantWhere {
				t.Errorf("HasWhere = %v, want %v", p.HasWhere, tt.wantWhere)
			}
		})
	}
}

func TestPreviewQueryRejects(t *testing.T) {
	for _, stmt := range []string{
		"SELECT * FROM tasks",
		"UPDATE tasks",
		"DELETE tasks WHERE id = 1",
		"DELETE FROM WHERE id = 1",
		"",
	} {
		if _, err := PreviewQuery(stmt); err == nil {
			t.Errorf("PreviewQuery(%q) succeeded, want error", stmt)
		}
	}
}

// The preview must select exactly the rows the mutation changes.
func TestPreviewMatchesAffectedRows(t *testing.T) {
	stmts := []string{
		"DELETE FROM tasks WHERE status = 'COMPLETED' AND user_id = '1'",
		"UPDATE tasks SET priority = 'LOW' WHERE priority = 'HIGH'",
		"delete from tasks where title LIKE '%report%'",
		"UPDATE tasks SET status = 'TODO' WHERE user_id = '2'",
		"DELETE FROM tasks WHERE id = 'missing'",
	}
	for i, stmt := range stmts {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			is := is.New(t)
			ctx := context.Background()
			exec := seeded(t)

			p, err := PreviewQuery(stmt)
			is.NoErr(err)
			preview, err := exec.Execute(ctx, p.SQL)
			is.NoErr(err)

			res, err := exec.Execute(ctx, stmt)
			is.NoErr(err)
			is.Equal(int64(len(preview.Rows)), res.RowsAffected)
		})
	}
}

func TestEvidence(t *testing.T) {
	is := is.New(t)

	two := []store.Row{
		{"id": "1", "title": "Write report"},
		{"id": "2", "title": "", "description": "Call the bank"},
	}
	is.Equal(Evidence(two), "• Write report\n• Call the bank")

	five := []store.Row{
		{"id": "1", "title": "a"}, {"id": "2", "title": "b"}, {"id": "3"},
		{"id": "4", "title": "d"}, {"id": "5", "title": "e"},
	}
	is.Equal(Evidence(five), "• a\n• b\n• Task #3\n• ... and 2 others.")
	is.Equal(Evidence(nil), "")
}

func TestFallbackWarning(t *testing.T) {
	is := is.New(t)

	got := FallbackWarning(2, "• a\n• b")
	is.Equal(got, "⚠️ **Attention** : This action will affect **2** task(s).\n\n"+
		"Examples:\n• a\n• b\n\n"+
		"**System Fallback:** Could not verify with AI, please confirm carefully.\n"+
		"Do you want to proceed?")
}

func seeded(t *testing.T) *store.Executor {
	return storetest.New(t,
		storetest.Task{ID: "t1", Title: "Write report", Status: "COMPLETED", Priority: "HIGH"},
		storetest.Task{ID: "t2", Title: "Review report", Status: "COMPLETED"},
		storetest.Task{ID: "t3", Title: "Plan sprint", Status: "TODO", Priority: "HIGH"},
		storetest.Task{ID: "t4", Title: "Pay rent", Status: "COMPLETED", UserID: "2"},
		storetest.Task{ID: "t5", Title: "", Description: "Buy groceries", Status: "IN_PROGRESS"},
	)
}

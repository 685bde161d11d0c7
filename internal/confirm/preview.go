package confirm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/essoktani-yazid/stm-ai-gateway/internal/sqlsafe"
	"github.com/essoktani-yazid/stm-ai-gateway/internal/store"
)

// PreviewLimit bounds the sample taken for a mutation without WHERE.
const PreviewLimit = 5

// EvidenceSize is how many rows are named in a warning.
const EvidenceSize = 3

// Preview is the read-only statement that selects the rows a mutation
// would touch.
type Preview struct {
	SQL      string
	Table    string
	HasWhere bool
}

var errNoTable = errors.New("cannot find the target table")

// PreviewQuery rewrites an UPDATE or DELETE into a SELECT over the same
// table reference, keeping the WHERE clause and anything after it verbatim.
// Without a WHERE clause it samples the table.
func PreviewQuery(stmt string) (Preview, error) {
	s := strings.TrimSpace(stmt)
	s = strings.TrimSpace(strings.TrimSuffix(s, ";"))

	var ref string
	switch kw := sqlsafe.Keyword(s); kw {
	case "UPDATE":
		start := sqlsafe.IndexKeyword(s, "UPDATE") + len("UPDATE")
		end := sqlsafe.IndexKeyword(s, "SET")
		if end < start {
			return Preview{}, fmt.Errorf("preview %q: UPDATE without SET", stmt)
		}
		ref = stripModifiers(s[start:end])
	case "DELETE":
		from := sqlsafe.IndexKeyword(s, "FROM")
		if from < 0 {
			return Preview{}, fmt.Errorf("preview %q: DELETE without FROM", stmt)
		}
		start := from + len("FROM")
		end := len(s)
		for _, kw := range []string{"WHERE", "ORDER", "LIMIT"} {
			if i := sqlsafe.IndexKeyword(s, kw); i >= start && i < end {
				end = i
			}
		}
		ref = s[start:end]
	default:
		return Preview{}, fmt.Errorf("preview %q: not an UPDATE or DELETE", stmt)
	}

	ref = strings.TrimSpace(ref)
	table := strings.Fields(ref)
	if len(table) == 0 {
		return Preview{}, fmt.Errorf("preview %q: %w", stmt, errNoTable)
	}

	p := Preview{Table: table[0]}
	if where := sqlsafe.IndexKeyword(s, "WHERE"); where >= 0 {
		p.SQL = "SELECT * FROM " + ref + " " + s[where:]
		p.HasWhere = true
	} else {
		p.SQL = fmt.Sprintf("SELECT * FROM %s LIMIT %d", ref, PreviewLimit)
	}
	return p, nil
}

func stripModifiers(ref string) string {
	fields := strings.Fields(ref)
	for len(fields) > 0 {
		switch strings.ToUpper(fields[0]) {
		case "LOW_PRIORITY", "IGNORE":
			fields = fields[1:]
			continue
		}
		break
	}
	return strings.Join(fields, " ")
}

// Evidence names up to EvidenceSize rows, one "• label" line each, and
// counts the rest.
func Evidence(rows []store.Row) string {
	lines := make([]string, 0, EvidenceSize+1)
	for i, row := range rows {
		if i == EvidenceSize {
			break
		}
		lines = append(lines, "• "+row.Label())
	}
	if len(rows) > EvidenceSize {
		lines = append(lines, fmt.Sprintf("• ... and %d others.", len(rows)-EvidenceSize))
	}
	return strings.Join(lines, "\n")
}

// FallbackWarning is sent when the model cannot write the warning.
func FallbackWarning(count int, evidence string) string {
	return fmt.Sprintf("⚠️ **Attention** : This action will affect **%d** task(s).\n\n", count) +
		fmt.Sprintf("Examples:\n%s\n\n", evidence) +
		"**System Fallback:** Could not verify with AI, please confirm carefully.\n" +
		"Do you want to proceed?"
}

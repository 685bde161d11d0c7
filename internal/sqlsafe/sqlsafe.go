// Package sqlsafe inspects model-generated SQL without parsing it fully:
// leading keyword, keyword search that ignores quoted text, and a static
// check applied before any statement reaches the database.
package sqlsafe

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmpty        = errors.New("empty statement")
	ErrStacked      = errors.New("multiple statements are not allowed")
	ErrComment      = errors.New("comments are not allowed")
	ErrUnterminated = errors.New("unterminated quoted string")
	ErrForbidden    = errors.New("forbidden statement")
	ErrMissingWhere = errors.New("UPDATE and DELETE require a WHERE clause")
	ErrNotReadOnly  = errors.New("statement is not read-only")
	ErrUnsupported  = errors.New("unsupported statement")
)

// forbidden keywords may not appear anywhere outside quoted text.
var forbidden = []string{"DROP", "ALTER", "TRUNCATE", "CREATE", "RENAME", "GRANT", "REVOKE"}

var readOnly = map[string]bool{
	"SELECT": true, "SHOW": true, "DESCRIBE": true, "DESC": true, "EXPLAIN": true, "WITH": true,
}

var mutating = map[string]bool{"INSERT": true, "UPDATE": true, "DELETE": true}

// Keyword returns the upper-cased leading keyword of stmt.
func Keyword(stmt string) string {
	s := strings.TrimLeft(stmt, " \t\r\n(")
	end := strings.IndexFunc(s, func(r rune) bool { return !isWordRune(r) })
	if end < 0 {
		end = len(s)
	}
	return strings.ToUpper(s[:end])
}

// IsReadOnly reports whether stmt starts with a read-only keyword.
func IsReadOnly(stmt string) bool {
	return readOnly[Keyword(stmt)]
}

// IndexKeyword returns the byte offset of the first whole-word, case-
// insensitive occurrence of kw outside quoted text, or -1.
func IndexKeyword(stmt, kw string) int {
	masked, _ := mask(stmt)
	return indexWord(masked, strings.ToUpper(kw))
}

// Check validates a statement before execution. It rejects empty, stacked
// and commented statements, schema and privilege changes, anything other
// than SELECT/INSERT/UPDATE/DELETE style statements, and UPDATE or DELETE
// without a WHERE clause.
func Check(stmt string) error {
	s := strings.TrimSpace(stmt)
	s = strings.TrimSpace(strings.TrimSuffix(s, ";"))
	if s == "" {
		return ErrEmpty
	}

	masked, ok := mask(s)
	if !ok {
		return ErrUnterminated
	}
	if strings.Contains(masked, ";") {
		return ErrStacked
	}
	if strings.Contains(masked, "--") || strings.Contains(masked, "/*") || strings.Contains(masked, "#") {
		return ErrComment
	}
	for _, kw := range forbidden {
		if indexWord(masked, kw) >= 0 {
			return fmt.Errorf("%w: %s", ErrForbidden, kw)
		}
	}

	kw := Keyword(s)
	switch {
	case readOnly[kw]:
		if kw == "WITH" {
			for m := range mutating {
				if indexWord(masked, m) >= 0 {
					return fmt.Errorf("%w: %s inside WITH", ErrUnsupported, m)
				}
			}
		}
		return nil
	case kw == "UPDATE" || kw == "DELETE":
		if indexWord(masked, "WHERE") < 0 {
			return ErrMissingWhere
		}
		return nil
	case kw == "INSERT":
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnsupported, kw)
	}
}

// CheckReadOnly is Check restricted to read-only statements.
func CheckReadOnly(stmt string) error {
	if err := Check(stmt); err != nil {
		return err
	}
	if !IsReadOnly(stmt) {
		return fmt.Errorf("%w: %s", ErrNotReadOnly, Keyword(stmt))
	}
	return nil
}

// mask upper-cases ASCII letters in stmt and blanks the contents of quoted strings and
// identifiers, keeping byte offsets. It reports false for an unterminated
// quote.
func mask(stmt string) (string, bool) {
	b := []byte(stmt)
	var quote byte
	for i := 0; i < len(b); i++ {
		c := b[i]
		if quote == 0 {
			switch {
			case c == '\'' || c == '"' || c == '`':
				quote = c
			case c >= 'a' && c <= 'z':
				b[i] = c - 'a' + 'A'
			}
			continue
		}
		switch {
		case c == '\\' && quote != '`' && i+1 < len(b):
			b[i], b[i+1] = ' ', ' '
			i++
		case c == quote && i+1 < len(b) && b[i+1] == quote:
			// doubled quote is an escaped quote
			b[i], b[i+1] = ' ', ' '
			i++
		case c == quote:
			quote = 0
		default:
			b[i] = ' '
		}
	}
	return string(b), quote == 0
}

// indexWord finds kw (upper case) in masked on word boundaries.
func indexWord(masked, kw string) int {
	from := 0
	for {
		i := strings.Index(masked[from:], kw)
		if i < 0 {
			return -1
		}
		i += from
		end := i + len(kw)
		before := i == 0 || !isWordByte(masked[i-1])
		after := end == len(masked) || !isWordByte(masked[end])
		if before && after {
			return i
		}
		from = i + 1
	}
}

func isWordByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z'
}

func isWordRune(r rune) bool {
	return r < 0x80 && isWordByte(byte(r))
}

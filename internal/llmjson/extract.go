// Package llmjson recovers a JSON object from language-model output that may
// be wrapped in code fences, contain raw control characters inside strings,
// or be followed by commentary.
package llmjson

import "strings"

// Extract returns the first balanced top-level JSON object in raw. Fences are
// stripped and control characters inside string literals are escaped first.
// When raw contains no complete object it is returned unchanged, so the
// caller's decode fails deterministically.
func Extract(raw string) string {
	s := stripFence(strings.TrimSpace(raw))

	start := strings.IndexByte(s, '{')
	if start < 0 {
		return raw
	}
	// Quotes in any leading prose must not affect string tracking.
	obj := escapeControlChars(s[start:])
	if end := objectEnd(obj, 0); end > 0 {
		return obj[:end]
	}
	return raw
}

func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = s[3:]
	if len(s) >= 4 && strings.EqualFold(s[:4], "json") {
		s = s[4:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// escapeControlChars rewrites raw control characters found inside string
// literals. Characters outside strings are left alone.
func escapeControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
			b.WriteByte(c)
		case inString && c == '\\':
			escaped = true
			b.WriteByte(c)
		case c == '"':
			inString = !inString
			b.WriteByte(c)
		case inString && c == '\n':
			b.WriteString(`\n`)
		case inString && c == '\t':
			b.WriteString(`\t`)
		case inString && c == '\r':
			b.WriteString(`\r`)
		case inString && c < 0x20:
			b.WriteByte(' ')
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// objectEnd scans from the opening brace at start and returns the index just
// past its matching close brace, or -1.
func objectEnd(s string, start int) int {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		if inString {
			switch c {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}

package voice

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// sentenceEnds mark a complete sentence.
var sentenceEnds = []string{". ", "? ", "! ", ".\n", "?\n", "!\n"}

// clauseEnd splits overly long sentences.
const clauseEnd = ", "

// longSentence is the rune count past which a clause boundary is enough.
const longSentence = 120

// Splitter cuts a stream of text fragments into speakable sentences.
type Splitter struct {
	buf string
}

// Push appends a fragment and returns every sentence that became complete,
// in order. Each sentence keeps its trailing delimiter.
func (s *Splitter) Push(fragment string) []string {
	s.buf += fragment

	var out []string
	for s.ready() {
		sentence := s.extract()
		if sentence == "" {
			break
		}
		s.buf = strings.TrimLeftFunc(s.buf[len(sentence):], unicode.IsSpace)
		out = append(out, sentence)
	}
	return out
}

// Flush returns whatever is left, or "" when only whitespace remains.
func (s *Splitter) Flush() string {
	rest := s.buf
	s.buf = ""
	if strings.TrimSpace(rest) == "" {
		return ""
	}
	return rest
}

func (s *Splitter) ready() bool {
	for _, d := range sentenceEnds {
		if strings.Contains(s.buf, d) {
			return true
		}
	}
	return utf8.RuneCountInString(s.buf) > longSentence && strings.Contains(s.buf, clauseEnd)
}

// extract returns the buffer up to and including the highest-priority
// delimiter present.
func (s *Splitter) extract() string {
	for _, d := range sentenceEnds {
		if i := strings.Index(s.buf, d); i >= 0 {
			return s.buf[:i+len(d)]
		}
	}
	if i := strings.Index(s.buf, clauseEnd); i >= 0 {
		return s.buf[:i+len(clauseEnd)]
	}
	return ""
}

var emoji = regexp.MustCompile(`[\x{1F600}-\x{1F64F}\x{1F300}-\x{1F5FF}\x{1F680}-\x{1F6FF}\x{1F1E0}-\x{1F1FF}\x{2702}-\x{27B0}\x{24C2}-\x{1F251}]+`)

// Clean strips what a synthesizer should not read aloud: emoji, bold
// markers and backticks.
func Clean(sentence string) string {
	s := emoji.ReplaceAllString(sentence, "")
	s = strings.ReplaceAll(s, "**", "")
	s = strings.ReplaceAll(s, "`", "")
	return strings.TrimSpace(s)
}

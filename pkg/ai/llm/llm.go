package llm

import (
	"context"
	"iter"
	"strings"
)

// MessageRole represents the role of a message in a chat conversation.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message represents a single message in a chat conversation.
type Message struct {
	Role    MessageRole
	Content string
}

// Request is one completion call: a system instruction plus a single user
// prompt. Zero sampling values mean "provider default".
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// Messages returns the request as a chat transcript.
func (r Request) Messages() []Message {
	msgs := make([]Message, 0, 2)
	if r.System != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: r.System})
	}
	return append(msgs, Message{Role: RoleUser, Content: r.Prompt})
}

// Fragments is a lazy, finite sequence of text fragments. The producer does
// no work until the consumer pulls, and stops as soon as the consumer
// breaks out of the range loop. A non-nil error ends the sequence.
type Fragments = iter.Seq2[string, error]

// Completer is the text-completion service.
type Completer interface {
	// Stream starts a completion and returns its fragments.
	Stream(ctx context.Context, req Request) Fragments
}

// Collect drains a completion into a single string.
func Collect(ctx context.Context, c Completer, req Request) (string, error) {
	var b strings.Builder
	for frag, err := range c.Stream(ctx, req) {
		if err != nil {
			return b.String(), err
		}
		b.WriteString(frag)
	}
	return b.String(), nil
}

// Text wraps a complete string as a one-element sequence.
func Text(s string) Fragments {
	return func(yield func(string, error) bool) {
		yield(s, nil)
	}
}

package fake

import (
	"context"
	"sync"

	"github.com/essoktani-yazid/stm-ai-gateway/pkg/ai/llm"
)

// Reply is one scripted completion. When Err is set the stream yields the
// fragments of Text first and then fails.
type Reply struct {
	Text string
	Err  error
}

// FakeLLM is a scripted Completer for tests. Replies are consumed in order;
// once the script runs out the last reply repeats.
type FakeLLM struct {
	mu       sync.Mutex
	replies  []Reply
	calls    int
	requests []llm.Request

	// ChunkSize splits each reply into fragments of this many bytes.
	// Zero streams the whole reply as one fragment.
	ChunkSize int
}

// NewFakeLLM creates a fake that answers with the given texts in order.
func NewFakeLLM(responses ...string) *FakeLLM {
	if len(responses) == 0 {
		responses = []string{"This is a fake response from the fake LLM provider."}
	}
	f := &FakeLLM{}
	for _, r := range responses {
		f.replies = append(f.replies, Reply{Text: r})
	}
	return f
}

// NewScripted creates a fake from explicit replies, including failures.
func NewScripted(replies ...Reply) *FakeLLM {
	return &FakeLLM{replies: replies}
}

// Stream yields the next scripted reply.
func (f *FakeLLM) Stream(ctx context.Context, req llm.Request) llm.Fragments {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	var reply Reply
	if len(f.replies) > 0 {
		idx := f.calls
		if idx >= len(f.replies) {
			idx = len(f.replies) - 1
		}
		reply = f.replies[idx]
	}
	f.calls++
	chunk := f.ChunkSize
	f.mu.Unlock()

	return func(yield func(string, error) bool) {
		for _, frag := range split(reply.Text, chunk) {
			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}
			if !yield(frag, nil) {
				return
			}
		}
		if reply.Err != nil {
			yield("", reply.Err)
		}
	}
}

// Calls returns how many completions were started.
func (f *FakeLLM) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Requests returns a copy of every request seen so far.
func (f *FakeLLM) Requests() []llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]llm.Request, len(f.requests))
	copy(out, f.requests)
	return out
}

// LastPrompt returns the prompt of the most recent request.
func (f *FakeLLM) LastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return ""
	}
	return f.requests[len(f.requests)-1].Prompt
}

func split(s string, size int) []string {
	if s == "" {
		return nil
	}
	if size <= 0 || size >= len(s) {
		return []string{s}
	}
	var out []string
	for len(s) > size {
		cut := size
		for cut < len(s) && !utf8Start(s[cut]) {
			cut++
		}
		out = append(out, s[:cut])
		s = s[cut:]
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}

func utf8Start(b byte) bool { return b&0xC0 != 0x80 }

var _ llm.Completer = (*FakeLLM)(nil)

package fake

import (
	"context"
	"fmt"

	"github.com/essoktani-yazid/stm-ai-gateway/pkg/ai/stt"
)

// Step is one scripted response to Feed.
type Step struct {
	Result stt.Result
	Err    error
}

// Recognizer replays scripted results. Once the script is exhausted every
// Feed reports an empty partial.
type Recognizer struct {
	Steps []Step

	// FinalText and FinalErr are returned by Finalize.
	FinalText string
	FinalErr  error

	fed       int
	bytes     int
	resets    int
	finalizes int
	closed    bool
}

// NewRecognizer creates a fake that yields the given results in order.
func NewRecognizer(results ...stt.Result) *Recognizer {
	r := &Recognizer{}
	for _, res := range results {
		r.Steps = append(r.Steps, Step{Result: res})
	}
	return r
}

// Partial is shorthand for a non-final result.
func Partial(text string) stt.Result { return stt.Result{Text: text} }

// Final is shorthand for a final result.
func Final(text string) stt.Result { return stt.Result{Text: text, Final: true} }

func (r *Recognizer) Feed(ctx context.Context, pcm []byte) (stt.Result, error) {
	if r.closed {
		return stt.Result{}, fmt.Errorf("recognizer is closed")
	}
	r.bytes += len(pcm)
	idx := r.fed
	r.fed++
	if idx >= len(r.Steps) {
		return stt.Result{}, nil
	}
	step := r.Steps[idx]
	return step.Result, step.Err
}

func (r *Recognizer) Finalize(ctx context.Context) (string, error) {
	r.finalizes++
	return r.FinalText, r.FinalErr
}

func (r *Recognizer) Reset() { r.resets++ }

func (r *Recognizer) Close() error {
	r.closed = true
	return nil
}

// Fed returns the number of Feed calls.
func (r *Recognizer) Fed() int { return r.fed }

// Bytes returns the total audio bytes fed.
func (r *Recognizer) Bytes() int { return r.bytes }

// Resets returns the number of Reset calls.
func (r *Recognizer) Resets() int { return r.resets }

// Finalizes returns the number of Finalize calls.
func (r *Recognizer) Finalizes() int { return r.finalizes }

// Closed reports whether Close was called.
func (r *Recognizer) Closed() bool { return r.closed }

// Provider hands out the same recognizer for every session.
func Provider(r *Recognizer) stt.Provider {
	return stt.ProviderFunc(func(ctx context.Context) (stt.Recognizer, error) {
		return r, nil
	})
}

var _ stt.Recognizer = (*Recognizer)(nil)

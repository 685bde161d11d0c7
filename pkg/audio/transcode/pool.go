package transcode

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"

	"github.com/essoktani-yazid/stm-ai-gateway/pkg/audio"
)

// Pool runs transcodes off the caller's goroutine, at most Workers at a
// time across every session sharing the pool.
type Pool struct {
	target audio.Format
	sem    *semaphore.Weighted
}

// NewPool creates a pool converting to target.
func NewPool(workers int, target audio.Format) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{target: target, sem: semaphore.NewWeighted(int64(workers))}
}

// Job is a pending transcode.
type Job struct {
	done chan struct{}
	pcm  []byte
	err  error
}

// Submit schedules a transcode and returns immediately.
func (p *Pool) Submit(ctx context.Context, data []byte, enc audio.Encoding, src audio.Format) *Job {
	j := &Job{done: make(chan struct{})}
	go func() {
		defer close(j.done)
		if err := p.sem.Acquire(ctx, 1); err != nil {
			j.err = fmt.Errorf("transcode queue: %w", err)
			return
		}
		defer p.sem.Release(1)
		j.pcm, j.err = Transcode(data, enc, src, p.target)
	}()
	return j
}

// Wait blocks until the job finishes or ctx is done.
func (j *Job) Wait(ctx context.Context) ([]byte, error) {
	select {
	case <-j.done:
		return j.pcm, j.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Do submits a transcode and waits for it.
func (p *Pool) Do(ctx context.Context, data []byte, enc audio.Encoding, src audio.Format) ([]byte, error) {
	return p.Submit(ctx, data, enc, src).Wait(ctx)
}

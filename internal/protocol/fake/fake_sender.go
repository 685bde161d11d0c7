// Package fake provides a recording client connection for tests.
package fake

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/essoktani-yazid/stm-ai-gateway/internal/protocol"
	"github.com/essoktani-yazid/stm-ai-gateway/pkg/ai"
)

// Frame is one recorded outbound frame. Exactly one of Value or Audio is set.
type Frame struct {
	Value any
	JSON  []byte
	Audio []byte
}

// Sender records every frame. After FailAfter successful sends (when
// positive) it behaves like a disconnected client.
type Sender struct {
	FailAfter int

	mu     sync.Mutex
	frames []Frame
	sent   int
}

var errGone = errors.New("client disconnected")

func (s *Sender) fail() error {
	if s.FailAfter > 0 && s.sent >= s.FailAfter {
		return ai.NewError(ai.KindConnection, "send", errGone)
	}
	s.sent++
	return nil
}

func (s *Sender) Send(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return err
	}
	s.frames = append(s.frames, Frame{Value: v, JSON: data})
	return nil
}

func (s *Sender) SendAudio(ctx context.Context, pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return err
	}
	s.frames = append(s.frames, Frame{Audio: append([]byte(nil), pcm...)})
	return nil
}

// Frames returns every recorded frame in order.
func (s *Sender) Frames() []Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Frame(nil), s.frames...)
}

// Statuses returns the text of every status frame.
func (s *Sender) Statuses() []string {
	var out []string
	for _, f := range s.Frames() {
		if st, ok := f.Value.(protocol.Status); ok {
			out = append(out, st.Status)
		}
	}
	return out
}

// Displays returns every display frame.
func (s *Sender) Displays() []protocol.Display {
	var out []protocol.Display
	for _, f := range s.Frames() {
		if d, ok := f.Value.(protocol.Display); ok {
			out = append(out, d)
		}
	}
	return out
}

// LastDisplay returns the most recent display frame.
func (s *Sender) LastDisplay() (protocol.Display, bool) {
	d := s.Displays()
	if len(d) == 0 {
		return protocol.Display{}, false
	}
	return d[len(d)-1], true
}

// AudioEnds counts AUDIO_END frames.
func (s *Sender) AudioEnds() int {
	n := 0
	for _, f := range s.Frames() {
		if _, ok := f.Value.(protocol.AudioEnd); ok {
			n++
		}
	}
	return n
}

// Audio returns every binary frame in order.
func (s *Sender) Audio() [][]byte {
	var out [][]byte
	for _, f := range s.Frames() {
		if f.Audio != nil {
			out = append(out, f.Audio)
		}
	}
	return out
}

// Terminals counts frames that end a workflow: displays without a pending
// confirmation, proposals, and AUDIO_END.
func (s *Sender) Terminals() int {
	n := 0
	for _, f := range s.Frames() {
		switch f.Value.(type) {
		case protocol.Display, protocol.AudioEnd:
			n++
		}
	}
	return n
}

var _ protocol.AudioSender = (*Sender)(nil)

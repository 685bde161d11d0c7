package gateway

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/essoktani-yazid/stm-ai-gateway/internal/confirm"
	"github.com/essoktani-yazid/stm-ai-gateway/internal/insight"
	"github.com/essoktani-yazid/stm-ai-gateway/internal/intent"
	"github.com/essoktani-yazid/stm-ai-gateway/internal/metrics"
	"github.com/essoktani-yazid/stm-ai-gateway/internal/protocol"
	"github.com/essoktani-yazid/stm-ai-gateway/internal/speech"
	"github.com/essoktani-yazid/stm-ai-gateway/internal/voice"
	"github.com/essoktani-yazid/stm-ai-gateway/pkg/ai"
	"github.com/essoktani-yazid/stm-ai-gateway/pkg/ai/stt"
)

// inboundQueue is how many frames may wait while a workflow runs.
const inboundQueue = 100

// State is where a session is in its lifecycle.
type State int32

const (
	StateIdle State = iota
	StateBusy
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBusy:
		return "busy"
	default:
		return "closed"
	}
}

// Services are the components shared by every session.
type Services struct {
	Router   *intent.Router
	Workflow *confirm.Workflow
	Insight  *insight.Analyzer

	// Voice speaks replies in voice mode; nil sends AUDIO_END only.
	Voice *voice.Pipeline
	// STT creates one recognizer per session; nil disables voice input.
	STT stt.Provider

	DefaultUserID string
	ConfirmTTL    time.Duration
}

// Session is one client connection. Frames are read on one goroutine and
// handled strictly in arrival order on another.
type Session struct {
	id     string
	conn   *Conn
	svc    *Services
	logger *slog.Logger
	in     chan Frame

	ledger *confirm.Ledger
	ingest *speech.Ingest
	out    *speaker

	mu        sync.RWMutex
	state     State
	voiceMode bool
	userID    string
}

// NewSession creates a session for conn.
func NewSession(conn *Conn, svc *Services, logger *slog.Logger) *Session {
	id := uuid.NewString()
	s := &Session{
		id:     id,
		conn:   conn,
		svc:    svc,
		logger: logger.With(slog.String("session_id", id)),
		in:     make(chan Frame, inboundQueue),
		ledger: confirm.NewLedger(svc.ConfirmTTL, confirm.DefaultSize),
		userID: svc.DefaultUserID,
	}
	s.out = &speaker{conn: conn, session: s}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
}

// VoiceMode reports whether replies are currently spoken.
func (s *Session) VoiceMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.voiceMode
}

func (s *Session) setVoiceMode(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.voiceMode != on {
		s.logger.Debug("voice mode changed", slog.Bool("active", on))
	}
	s.voiceMode = on
}

var errClientGone = errors.New("client disconnected")

// Run serves the connection until the client leaves or ctx is done. It
// always closes the connection.
func (s *Session) Run(ctx context.Context) error {
	metrics.SessionsActive.Inc()
	defer metrics.SessionsActive.Dec()
	s.logger.Info("session started")

	s.ingest = speech.NewIngest(s.recognizer(ctx), s.handleVoice, s.logger)
	defer func() {
		if err := s.ingest.Close(); err != nil {
			s.logger.Warn("closing recognizer", slog.Any("error", err))
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		if err := s.conn.Close(); err != nil {
			s.logger.Debug("closing connection", slog.Any("error", err))
		}
		return nil
	})
	g.Go(func() error {
		defer close(s.in)
		return s.readFrames(gctx)
	})
	g.Go(func() error {
		return s.processFrames(gctx)
	})

	err := g.Wait()
	s.setState(StateClosed)
	if errors.Is(err, errClientGone) || ai.IsConnection(err) || errors.Is(err, context.Canceled) {
		err = nil
	}
	s.logger.Info("session ended")
	return err
}

func (s *Session) recognizer(ctx context.Context) stt.Recognizer {
	if s.svc.STT == nil {
		s.logger.Warn("speech recognition unavailable")
		return nil
	}
	rec, err := s.svc.STT.NewRecognizer(ctx)
	if err != nil {
		s.logger.Error("speech recognition unavailable", slog.Any("error", ai.NewError(ai.KindRecognition, "open", err)))
		return nil
	}
	return rec
}

func (s *Session) readFrames(ctx context.Context) error {
	for {
		f, err := s.conn.Read()
		if err != nil {
			if isClientGone(err) || ctx.Err() != nil {
				s.logger.Info("client disconnected")
				return errClientGone
			}
			return err
		}
		select {
		case s.in <- f:
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *Session) processFrames(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case f, ok := <-s.in:
			if !ok {
				return nil
			}
			s.setState(StateBusy)
			err := s.handleFrame(ctx, f)
			s.setState(StateIdle)
			if err != nil {
				return err
			}
		}
	}
}

// handleFrame dispatches one frame. It returns an error only when the
// client connection failed.
func (s *Session) handleFrame(ctx context.Context, f Frame) error {
	if f.Binary {
		if !s.ingest.Available() {
			return nil
		}
		s.setVoiceMode(true)
		return s.ingest.Feed(ctx, f.Data)
	}

	in, err := protocol.ParseInbound(f.Data)
	if err != nil {
		s.logger.Warn("ignoring malformed frame", slog.Any("error", err))
		return nil
	}

	kind := in.Kind()
	s.logger.Debug("processing frame", slog.String("kind", kind.String()))

	switch kind {
	case protocol.KindPrompt:
		s.setVoiceMode(false)
		s.ingest.ClearPartial()
		userID := string(in.UserID)
		if userID == "" {
			userID = s.svc.DefaultUserID
		} else {
			s.mu.Lock()
			s.userID = userID
			s.mu.Unlock()
		}
		return s.svc.Router.Handle(ctx, s.out, s.ledger, intent.Utterance{
			Text:   *in.Prompt,
			UserID: userID,
			Source: intent.SourceText,
		})

	case protocol.KindConfirm:
		return s.svc.Workflow.Execute(ctx, s.out, s.ledger, confirm.Request{
			SQL:   in.SQL,
			Token: in.ConfirmationID,
		})

	case protocol.KindAudioEnd:
		return s.ingest.EndOfAudio(ctx, s.conn)

	case protocol.KindAnalyzeDashboard:
		return s.svc.Insight.Analyze(ctx, s.conn, in.Stats)

	default:
		s.logger.Warn("unknown frame", slog.String("action", in.Action))
		return nil
	}
}

// handleVoice routes a recognized utterance as the most recent user.
func (s *Session) handleVoice(ctx context.Context, text string) error {
	s.mu.RLock()
	userID := s.userID
	s.mu.RUnlock()
	return s.svc.Router.Handle(ctx, s.out, s.ledger, intent.Utterance{
		Text:   text,
		UserID: userID,
		Source: intent.SourceVoice,
	})
}

// speaker forwards frames to the client and, in voice mode, speaks every
// display message after it is sent.
type speaker struct {
	conn    *Conn
	session *Session
}

func (sp *speaker) Send(ctx context.Context, v any) error {
	if err := sp.conn.Send(ctx, v); err != nil {
		return err
	}
	d, ok := v.(protocol.Display)
	if !ok || !sp.session.VoiceMode() {
		return nil
	}
	if sp.session.svc.Voice == nil {
		return sp.conn.Send(ctx, protocol.EndOfAudio())
	}
	return sp.session.svc.Voice.SpeakText(ctx, sp.conn, d.DisplayMessage)
}

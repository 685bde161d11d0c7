// Package assemblyai provides a streaming speech recognizer backed by the
// AssemblyAI v3 websocket API.
package assemblyai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/essoktani-yazid/stm-ai-gateway/pkg/ai/stt"
	"github.com/essoktani-yazid/stm-ai-gateway/pkg/plugin"
)

// DefaultURL is the v3 streaming endpoint.
const DefaultURL = "wss://streaming.assemblyai.com/v3/ws"

func init() {
	plugin.Register(&plugin.Plugin{
		Kind:        plugin.KindSTT,
		Name:        "assemblyai",
		Factory:     func(opts plugin.Options) (any, error) { return New(opts) },
		Description: "AssemblyAI streaming transcription (v3 websocket)",
	})
}

// Message types exchanged with the streaming API.
type (
	beginMessage struct {
		Type      string `json:"type"`
		ID        string `json:"id"`
		ExpiresAt int64  `json:"expires_at"`
	}

	turnMessage struct {
		Type       string `json:"type"`
		TurnOrder  int    `json:"turn_order"`
		Transcript string `json:"transcript"`
		EndOfTurn  bool   `json:"end_of_turn"`
		Formatted  bool   `json:"turn_is_formatted"`
	}

	terminationMessage struct {
		Type                   string  `json:"type"`
		AudioDurationSeconds   float64 `json:"audio_duration_seconds"`
		SessionDurationSeconds float64 `json:"session_duration_seconds"`
	}

	errorMessage struct {
		Type  string `json:"type"`
		Error string `json:"error"`
	}
)

// Provider dials one streaming session per recognizer.
type Provider struct {
	apiKey string
	url    string
	logger *slog.Logger

	// FormatTurns asks the service for punctuated finals.
	FormatTurns bool
	// FinalizeTimeout bounds how long Finalize waits for the forced turn.
	FinalizeTimeout time.Duration
}

// New creates the provider. The key comes from opts or ASSEMBLYAI_API_KEY.
func New(opts plugin.Options) (*Provider, error) {
	key := opts.APIKey
	if key == "" {
		key = os.Getenv("ASSEMBLYAI_API_KEY")
	}
	if key == "" {
		return nil, fmt.Errorf("AssemblyAI API key is required (set ASSEMBLYAI_API_KEY or provide it in config)")
	}
	u := opts.BaseURL
	if u == "" {
		u = DefaultURL
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Provider{
		apiKey:          key,
		url:             u,
		logger:          log.With(slog.String("provider", "assemblyai")),
		FormatTurns:     true,
		FinalizeTimeout: 3 * time.Second,
	}, nil
}

// NewRecognizer connects a streaming session.
func (p *Provider) NewRecognizer(ctx context.Context) (stt.Recognizer, error) {
	params := url.Values{}
	params.Set("sample_rate", fmt.Sprint(stt.SampleRate))
	params.Set("encoding", "pcm_s16le")
	params.Set("format_turns", fmt.Sprint(p.FormatTurns))

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	header := http.Header{"Authorization": {p.apiKey}}

	conn, resp, err := dialer.DialContext(ctx, p.url+"?"+params.Encode(), header)
	if err != nil {
		if resp != nil {
			p.logger.Error("assemblyai connection failed", slog.Int("status", resp.StatusCode))
		}
		return nil, fmt.Errorf("failed to connect to AssemblyAI: %w", err)
	}

	r := &recognizer{
		p:      p,
		conn:   conn,
		finals: make(chan string, 16),
		done:   make(chan struct{}),
	}
	go r.readLoop()
	return r, nil
}

type recognizer struct {
	p    *Provider
	conn *websocket.Conn

	writeMu sync.Mutex
	closed  bool

	mu        sync.Mutex
	partial   string
	lastFinal int // turn_order of the last delivered final
	started   bool
	readErr   error

	finals chan string
	done   chan struct{}
}

// Feed streams the chunk and reports any turn the service has completed
// since the last call, otherwise the current partial.
func (r *recognizer) Feed(ctx context.Context, pcm []byte) (stt.Result, error) {
	if err := r.write(websocket.BinaryMessage, pcm); err != nil {
		return stt.Result{}, err
	}
	select {
	case text := <-r.finals:
		return stt.Result{Text: text, Final: true}, nil
	default:
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return stt.Result{Text: r.partial}, nil
}

// Finalize forces an endpoint and waits for the resulting turn.
func (r *recognizer) Finalize(ctx context.Context) (string, error) {
	select {
	case text := <-r.finals:
		return text, nil
	default:
	}

	b, _ := json.Marshal(map[string]string{"type": "ForceEndpoint"})
	if err := r.write(websocket.TextMessage, b); err != nil {
		return "", err
	}

	timer := time.NewTimer(r.p.FinalizeTimeout)
	defer timer.Stop()
	select {
	case text := <-r.finals:
		return text, nil
	case <-timer.C:
		return "", nil
	case <-r.done:
		r.mu.Lock()
		defer r.mu.Unlock()
		return "", r.readErr
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (r *recognizer) Reset() {
	r.mu.Lock()
	r.partial = ""
	r.mu.Unlock()
	for {
		select {
		case <-r.finals:
		default:
			return
		}
	}
}

// Close terminates the session politely and closes the socket.
func (r *recognizer) Close() error {
	r.writeMu.Lock()
	if r.closed {
		r.writeMu.Unlock()
		return nil
	}
	r.closed = true
	_ = r.conn.WriteJSON(map[string]string{"type": "Terminate"})
	r.writeMu.Unlock()

	select {
	case <-r.done:
	case <-time.After(time.Second):
	}
	return r.conn.Close()
}

func (r *recognizer) write(kind int, data []byte) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if r.closed {
		return fmt.Errorf("recognizer is closed")
	}
	select {
	case <-r.done:
		r.mu.Lock()
		defer r.mu.Unlock()
		return fmt.Errorf("assemblyai session ended: %w", r.readErr)
	default:
	}
	if err := r.conn.WriteMessage(kind, data); err != nil {
		return fmt.Errorf("assemblyai write: %w", err)
	}
	return nil
}

func (r *recognizer) readLoop() {
	defer close(r.done)
	for {
		_, message, err := r.conn.ReadMessage()
		if err != nil {
			r.mu.Lock()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				r.readErr = err
			}
			r.mu.Unlock()
			return
		}
		if r.handle(message) {
			return
		}
	}
}

// handle processes one server message and reports whether the session ended.
func (r *recognizer) handle(message []byte) bool {
	var base struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(message, &base); err != nil {
		r.p.logger.Warn("unreadable assemblyai message", slog.Any("error", err))
		return false
	}

	switch base.Type {
	case "Begin":
		var msg beginMessage
		if err := json.Unmarshal(message, &msg); err == nil {
			r.p.logger.Debug("assemblyai session began",
				slog.String("id", msg.ID),
				slog.Time("expires_at", time.Unix(msg.ExpiresAt, 0)))
		}

	case "Turn":
		var msg turnMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			r.p.logger.Warn("bad assemblyai turn", slog.Any("error", err))
			return false
		}
		r.turn(msg)

	case "Termination":
		var msg terminationMessage
		if err := json.Unmarshal(message, &msg); err == nil {
			r.p.logger.Debug("assemblyai session terminated",
				slog.Float64("audio_seconds", msg.AudioDurationSeconds),
				slog.Float64("session_seconds", msg.SessionDurationSeconds))
		}
		return true

	case "Error":
		var msg errorMessage
		_ = json.Unmarshal(message, &msg)
		r.p.logger.Error("assemblyai error", slog.String("error", msg.Error))
		r.mu.Lock()
		r.readErr = fmt.Errorf("assemblyai: %s", msg.Error)
		r.mu.Unlock()
		return true

	default:
		r.p.logger.Debug("unknown assemblyai message", slog.String("type", base.Type))
	}
	return false
}

func (r *recognizer) turn(msg turnMessage) {
	final := msg.EndOfTurn && (msg.Formatted || !r.p.FormatTurns)

	r.mu.Lock()
	if !final {
		if !msg.EndOfTurn {
			r.partial = strings.TrimSpace(msg.Transcript)
		}
		r.mu.Unlock()
		return
	}
	if r.started && msg.TurnOrder <= r.lastFinal {
		// already delivered
		r.mu.Unlock()
		return
	}
	r.started = true
	r.lastFinal = msg.TurnOrder
	r.partial = ""
	r.mu.Unlock()

	select {
	case r.finals <- strings.TrimSpace(msg.Transcript):
	default:
		r.p.logger.Warn("dropping assemblyai final, consumer is behind")
	}
}

var (
	_ stt.Provider   = (*Provider)(nil)
	_ stt.Recognizer = (*recognizer)(nil)
)

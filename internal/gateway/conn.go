package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/essoktani-yazid/stm-ai-gateway/internal/protocol"
	"github.com/essoktani-yazid/stm-ai-gateway/pkg/ai"
)

const (
	writeWait = 10 * time.Second

	// maxMessageSize bounds inbound frames; audio chunks are a few KiB.
	maxMessageSize = 1 << 20
)

// Frame is one inbound websocket message.
type Frame struct {
	Binary bool
	Data   []byte
}

// Conn is a client connection. Writes are serialized; reads must come from
// a single goroutine.
type Conn struct {
	ws     *websocket.Conn
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewConn wraps an upgraded websocket.
func NewConn(ws *websocket.Conn, logger *slog.Logger) *Conn {
	ws.SetReadLimit(maxMessageSize)
	return &Conn{ws: ws, logger: logger}
}

// Read blocks for the next frame.
func (c *Conn) Read() (Frame, error) {
	mt, data, err := c.ws.ReadMessage()
	if err != nil {
		return Frame{}, ai.NewError(ai.KindConnection, "read", err)
	}
	return Frame{Binary: mt == websocket.BinaryMessage, Data: data}, nil
}

// Send writes v as a JSON text frame.
func (c *Conn) Send(ctx context.Context, v any) error {
	return c.write(ctx, "send", func() error { return c.ws.WriteJSON(v) })
}

// SendAudio writes pcm as a binary frame.
func (c *Conn) SendAudio(ctx context.Context, pcm []byte) error {
	return c.write(ctx, "send audio", func() error { return c.ws.WriteMessage(websocket.BinaryMessage, pcm) })
}

func (c *Conn) write(ctx context.Context, op string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return ai.NewError(ai.KindConnection, op, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ai.NewError(ai.KindConnection, op, errors.New("connection closed"))
	}

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return ai.NewError(ai.KindConnection, op, err)
	}
	if err := fn(); err != nil {
		return ai.NewError(ai.KindConnection, op, fmt.Errorf("write: %w", err))
	}
	return nil
}

// Close sends a close frame, best effort, and releases the socket.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	c.mu.Unlock()

	c.logger.Debug("closing websocket connection")
	return c.ws.Close()
}

// isClientGone reports whether a read error is an ordinary disconnect.
func isClientGone(err error) bool {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return true
	}
	return errors.Is(err, websocket.ErrCloseSent)
}

var _ protocol.AudioSender = (*Conn)(nil)

// Package protocol defines the frames exchanged with the desktop client.
// Inbound text frames use the client's camelCase keys; outbound frames use
// the snake_case keys the client reads.
package protocol

import (
	"context"
	"encoding/json"
	"fmt"
)

// Action values of inbound control frames.
const (
	ActionConfirm          = "CONFIRM"
	ActionAudioEnd         = "AUDIO_END"
	ActionAnalyzeDashboard = "ANALYZE_DASHBOARD"
)

// Kind classifies an inbound text frame.
type Kind int

const (
	KindUnknown Kind = iota
	KindPrompt
	KindConfirm
	KindAudioEnd
	KindAnalyzeDashboard
)

func (k Kind) String() string {
	switch k {
	case KindPrompt:
		return "prompt"
	case KindConfirm:
		return "confirm"
	case KindAudioEnd:
		return "audio_end"
	case KindAnalyzeDashboard:
		return "analyze_dashboard"
	default:
		return "unknown"
	}
}

// Inbound is any client text frame. A present prompt field wins over
// action.
type Inbound struct {
	Prompt         *string         `json:"prompt,omitempty"`
	UserID         UserID          `json:"userId,omitempty"`
	Action         string          `json:"action,omitempty"`
	SQL            string          `json:"sql,omitempty"`
	ConfirmationID string          `json:"confirmationId,omitempty"`
	Stats          json.RawMessage `json:"stats,omitempty"`
}

// UserID accepts JSON strings and numbers. Any other value decodes as
// empty so the session falls back to its default user.
type UserID string

func (u *UserID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*u = UserID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*u = UserID(n.String())
		return nil
	}
	*u = ""
	return nil
}

// ParseInbound decodes a text frame.
func ParseInbound(data []byte) (Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return Inbound{}, fmt.Errorf("decode frame: %w", err)
	}
	return in, nil
}

// Kind reports what the frame asks for.
func (in Inbound) Kind() Kind {
	if in.Prompt != nil {
		return KindPrompt
	}
	switch in.Action {
	case ActionConfirm:
		return KindConfirm
	case ActionAudioEnd:
		return KindAudioEnd
	case ActionAnalyzeDashboard:
		return KindAnalyzeDashboard
	default:
		return KindUnknown
	}
}

// Status is a non-terminal progress frame.
type Status struct {
	Status string `json:"status"`
}

// Display is the terminal frame of a workflow, or a proposal awaiting
// confirmation when RequiresConfirmation is set.
type Display struct {
	DisplayMessage       string  `json:"display_message"`
	RequiresConfirmation bool    `json:"requires_confirmation"`
	SQLToExecute         *string `json:"sql_to_execute"`
	OperationType        string  `json:"operation_type,omitempty"`
	ConfirmationID       string  `json:"confirmation_id,omitempty"`
}

// Message is a terminal display without a pending action.
func Message(text string) Display {
	return Display{DisplayMessage: text}
}

// Proposal asks the client to confirm sql.
func Proposal(text, sql, operation, token string) Display {
	return Display{
		DisplayMessage:       text,
		RequiresConfirmation: true,
		SQLToExecute:         &sql,
		OperationType:        operation,
		ConfirmationID:       token,
	}
}

// AudioEnd closes a voice response.
type AudioEnd struct {
	Type string `json:"type"`
}

// EndOfAudio returns the AUDIO_END frame.
func EndOfAudio() AudioEnd {
	return AudioEnd{Type: ActionAudioEnd}
}

// Insight is the dashboard briefing card.
type Insight struct {
	Mood        string  `json:"mood"`
	Title       string  `json:"title"`
	Message     string  `json:"message"`
	ThemeColor  string  `json:"theme_color"`
	ActionLabel *string `json:"action_label"`
}

// Sender writes JSON text frames to one client. Errors from a gone client
// wrap ai.ErrConnection.
type Sender interface {
	Send(ctx context.Context, v any) error
}

// AudioSender also writes binary audio frames.
type AudioSender interface {
	Sender
	SendAudio(ctx context.Context, pcm []byte) error
}

// SendStatus sends a progress frame.
func SendStatus(ctx context.Context, s Sender, text string) error {
	return s.Send(ctx, Status{Status: text})
}

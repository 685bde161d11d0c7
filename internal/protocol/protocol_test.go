package protocol

import (
	"encoding/json"
	"testing"

	"github.com/matryer/is"
)

func TestParseInboundKinds(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Kind
	}{
		{"prompt", `{"prompt":"show me my tasks","userId":"7"}`, KindPrompt},
		{"empty prompt", `{"prompt":""}`, KindPrompt},
		{"confirm", `{"action":"CONFIRM","sql":"DELETE FROM tasks WHERE id = 1"}`, KindConfirm},
		{"audio end", `{"action":"AUDIO_END"}`, KindAudioEnd},
		{"dashboard", `{"action":"ANALYZE_DASHBOARD","stats":{"overdue":2}}`, KindAnalyzeDashboard},
		{"unknown action", `{"action":"PING"}`, KindUnknown},
		{"prompt wins", `{"prompt":"hi","action":"CONFIRM"}`, KindPrompt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := ParseInbound([]byte(tt.in))
			if err != nil {
				t.Fatalf("ParseInbound() error = %v", err)
			}
			if got := in.Kind(); got != tt.want {
				t.Errorf("Kind() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseInboundFields(t *testing.T) {
	is := is.New(t)

	in, err := ParseInbound([]byte(`{"action":"CONFIRM","sql":"x","confirmationId":"abc"}`))
	is.NoErr(err)
	is.Equal(in.SQL, "x")
	is.Equal(in.ConfirmationID, "abc")

	in, err = ParseInbound([]byte(`{"action":"ANALYZE_DASHBOARD","stats":{"overdue":2}}`))
	is.NoErr(err)
	is.Equal(string(in.Stats), `{"overdue":2}`) // kept raw for the insight prompt

	_, err = ParseInbound([]byte(`not json`))
	is.True(err != nil)
}

func TestParseInboundUserID(t *testing.T) {
	is := is.New(t)

	in, err := ParseInbound([]byte(`{"prompt":"hi","userId":"7"}`))
	is.NoErr(err)
	is.Equal(in.UserID, UserID("7"))

	in, err = ParseInbound([]byte(`{"prompt":"hi","userId":42}`))
	is.NoErr(err)
	is.Equal(in.UserID, UserID("42")) // numeric ids from the client

	in, err = ParseInbound([]byte(`{"prompt":"hi","userId":null}`))
	is.NoErr(err)
	is.Equal(in.UserID, UserID(""))

	for _, raw := range []string{`true`, `{"id":1}`, `[1]`} {
		in, err = ParseInbound([]byte(`{"prompt":"hi","userId":` + raw + `}`))
		is.NoErr(err)                  // an odd userId never drops the prompt
		is.Equal(in.UserID, UserID("")) // falls back to the default user
		is.Equal(*in.Prompt, "hi")
	}
}

func TestDisplayWireKeys(t *testing.T) {
	is := is.New(t)

	data, err := json.Marshal(Message("done"))
	is.NoErr(err)
	is.Equal(string(data), `{"display_message":"done","requires_confirmation":false,"sql_to_execute":null}`)

	data, err = json.Marshal(Proposal("sure?", "DELETE FROM tasks WHERE id = 1", "DELETE", "tok"))
	is.NoErr(err)
	is.Equal(string(data), `{"display_message":"sure?","requires_confirmation":true,`+
		`"sql_to_execute":"DELETE FROM tasks WHERE id = 1","operation_type":"DELETE","confirmation_id":"tok"}`)
}

func TestControlFrames(t *testing.T) {
	is := is.New(t)

	data, err := json.Marshal(EndOfAudio())
	is.NoErr(err)
	is.Equal(string(data), `{"type":"AUDIO_END"}`)

	data, err = json.Marshal(Status{Status: "Reading database..."})
	is.NoErr(err)
	is.Equal(string(data), `{"status":"Reading database..."}`)

	data, err = json.Marshal(Insight{Mood: "🤖", Title: "t", Message: "m", ThemeColor: "#6366F1"})
	is.NoErr(err)
	is.Equal(string(data), `{"mood":"🤖","title":"t","message":"m","theme_color":"#6366F1","action_label":null}`)
}

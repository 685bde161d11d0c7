package intent

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/essoktani-yazid/stm-ai-gateway/internal/llmjson"
	"github.com/essoktani-yazid/stm-ai-gateway/pkg/ai"
)

// Source tells where an utterance came from.
type Source int

const (
	SourceText Source = iota
	SourceVoice
)

func (s Source) String() string {
	if s == SourceVoice {
		return "voice"
	}
	return "text"
}

// Utterance is one unit of user input.
type Utterance struct {
	Text   string
	UserID string
	Source Source
}

// Decision is the parsed classification. It is one of Read, Create,
// Update, Delete or Information.
type Decision interface {
	Operation() string
	decision()
}

type Read struct{ SQL string }
type Create struct{ SQL string }
type Update struct{ SQL string }
type Delete struct{ SQL string }

// Information is a conversational reply that needs no SQL.
type Information struct{ Response string }

func (Read) Operation() string        { return "READ" }
func (Create) Operation() string      { return "CREATE" }
func (Update) Operation() string      { return "UPDATE" }
func (Delete) Operation() string      { return "DELETE" }
func (Information) Operation() string { return "INFORMATION" }

func (Read) decision()        {}
func (Create) decision()      {}
func (Update) decision()      {}
func (Delete) decision()      {}
func (Information) decision() {}

// DefaultInformation answers conversational requests that carry no response.
const DefaultInformation = "I'm here to help you manage your tasks! Try asking me something like 'show my tasks'."

type classification struct {
	OperationType string  `json:"operation_type"`
	SQLQuery      string  `json:"sql_query"`
	Response      *string `json:"response"`
}

// Parse turns raw model output into a Decision. Errors wrap
// ai.ErrClassification.
func Parse(raw string) (Decision, error) {
	var c classification
	if err := json.Unmarshal([]byte(llmjson.Extract(raw)), &c); err != nil {
		return nil, ai.NewError(ai.KindClassification, "parse", err)
	}

	op := strings.ToUpper(strings.TrimSpace(c.OperationType))
	if op == "INFO" {
		op = "INFORMATION"
	}
	if op == "INFORMATION" {
		if c.Response == nil {
			return Information{Response: DefaultInformation}, nil
		}
		return Information{Response: *c.Response}, nil
	}

	sql := strings.TrimSpace(c.SQLQuery)
	if op != "" && sql == "" {
		return nil, ai.NewError(ai.KindClassification, "parse", fmt.Errorf("%s without sql_query", op))
	}
	switch op {
	case "READ":
		return Read{SQL: sql}, nil
	case "CREATE":
		return Create{SQL: sql}, nil
	case "UPDATE":
		return Update{SQL: sql}, nil
	case "DELETE":
		return Delete{SQL: sql}, nil
	case "":
		return nil, ai.NewError(ai.KindClassification, "parse", errors.New("missing operation_type"))
	default:
		return nil, ai.NewError(ai.KindClassification, "parse", fmt.Errorf("unknown operation_type %q", c.OperationType))
	}
}

package ai

import (
	"errors"
	"fmt"
	"testing"

	"github.com/matryer/is"
)

func TestErrorMatchesSentinelAndCause(t *testing.T) {
	is := is.New(t)

	cause := errors.New("no such table: tasks")
	err := NewError(KindSQLExecution, "execute", cause)

	is.True(errors.Is(err, ErrSQLExecution)) // class sentinel
	is.True(errors.Is(err, cause))           // original cause
	is.True(!errors.Is(err, ErrConnection))
	is.Equal(err.Error(), "execute: sql_execution: no such table: tasks")
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"plain", errors.New("x"), KindUnknown},
		{"connection", NewError(KindConnection, "send", errors.New("eof")), KindConnection},
		{"wrapped twice", fmt.Errorf("speak: %w", NewError(KindSynthesis, "", errors.New("x"))), KindSynthesis},
		{"bare sentinel", ErrRecognition, KindRecognition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewErrorNil(t *testing.T) {
	is := is.New(t)
	is.NoErr(NewError(KindClassification, "parse", nil))
}

func TestCause(t *testing.T) {
	is := is.New(t)

	cause := errors.New("syntax error")
	is.Equal(Cause(NewError(KindSQLExecution, "execute", cause)), cause)
	is.Equal(Cause(fmt.Errorf("read: %w", NewError(KindSQLExecution, "execute", cause))), cause)
	is.Equal(Cause(cause), cause)
	is.True(IsConnection(fmt.Errorf("x: %w", ErrConnection)))
}

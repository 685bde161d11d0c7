// Package ai provides common types and utilities shared by the gateway's
// provider contracts (LLM, STT, TTS) and the workflows that drive them.
// It defines the error taxonomy every component reports failures with.
package ai

import (
	"errors"
	"fmt"
)

// Sentinels for the failure classes a workflow distinguishes. None of them
// is retried; they only decide which fallback applies.
var (
	// ErrClassification indicates the classification output could not be
	// parsed into an intent.
	ErrClassification = errors.New("classification error")

	// ErrSQLExecution indicates the SQL executor rejected or failed a statement.
	ErrSQLExecution = errors.New("sql execution error")

	// ErrSynthesis indicates the synthesizer or transcoder failed for one sentence.
	ErrSynthesis = errors.New("synthesis error")

	// ErrRecognition indicates the recognizer is unavailable or failed.
	ErrRecognition = errors.New("recognition error")

	// ErrConnection indicates the client connection is gone. Workflows stop
	// sending as soon as they see it.
	ErrConnection = errors.New("connection error")
)

// Kind identifies one of the failure classes above.
type Kind int

const (
	KindUnknown Kind = iota
	KindClassification
	KindSQLExecution
	KindSynthesis
	KindRecognition
	KindConnection
)

func (k Kind) String() string {
	switch k {
	case KindClassification:
		return "classification"
	case KindSQLExecution:
		return "sql_execution"
	case KindSynthesis:
		return "synthesis"
	case KindRecognition:
		return "recognition"
	case KindConnection:
		return "connection"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindClassification:
		return ErrClassification
	case KindSQLExecution:
		return ErrSQLExecution
	case KindSynthesis:
		return ErrSynthesis
	case KindRecognition:
		return ErrRecognition
	case KindConnection:
		return ErrConnection
	default:
		return nil
	}
}

// Error wraps an underlying error with its failure class and the operation
// that produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the class sentinel and the cause, so errors.Is
// matches either.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := e.Kind.sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// NewError classifies err. A nil err yields nil.
func NewError(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf reports the failure class of err, or KindUnknown.
func KindOf(err error) Kind {
	for _, k := range []Kind{KindConnection, KindClassification, KindSQLExecution, KindSynthesis, KindRecognition} {
		if errors.Is(err, k.sentinel()) {
			return k
		}
	}
	return KindUnknown
}

// IsConnection reports whether err means the client went away.
func IsConnection(err error) bool {
	return errors.Is(err, ErrConnection)
}

// Cause strips the classification wrapper from err, for messages shown to
// users.
func Cause(err error) error {
	var e *Error
	if errors.As(err, &e) && e.Err != nil {
		return e.Err
	}
	return err
}

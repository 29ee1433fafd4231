package usecases

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalidInput
	KindEmbedding
	KindRetrieval
	KindUpstreamModel
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindEmbedding:
		return "embedding_error"
	case KindRetrieval:
		return "retrieval_error"
	case KindUpstreamModel:
		return "upstream_model_error"
	default:
		return "internal_error"
	}
}

// Sentinels matched by errors.Is against any *Error of the same kind.
var (
	ErrInternal      = errors.New("internal error")
	ErrInvalidInput  = errors.New("invalid input")
	ErrEmbedding     = errors.New("embedding error")
	ErrRetrieval     = errors.New("retrieval error")
	ErrUpstreamModel = errors.New("upstream model error")
)

// ErrAnswerFailed is the single user-facing failure returned by the orchestrator.
var ErrAnswerFailed = errors.New("failed to get an answer")

func (k Kind) sentinel() error {
	switch k {
	case KindInvalidInput:
		return ErrInvalidInput
	case KindEmbedding:
		return ErrEmbedding
	case KindRetrieval:
		return ErrRetrieval
	case KindUpstreamModel:
		return ErrUpstreamModel
	default:
		return ErrInternal
	}
}

// Error is a classified pipeline error.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind.sentinel())
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for e.Kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// KindOf reports the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsCanceled reports whether err stems from the caller canceling the request
// or its deadline passing, rather than from a failing provider. Such errors
// keep their stage kind.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// classify wraps err with kind unless it already carries a classification.
func classify(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func invalidInput(op, msg string) error {
	return &Error{Kind: KindInvalidInput, Op: op, Err: errors.New(msg)}
}

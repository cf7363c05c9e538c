package api

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind names a class of failure. Kinds are matched by the retry policy
// and surfaced as the cause of failed executions.
type ErrorKind string

const (
	ErrorServiceException ErrorKind = "ServiceException"
	ErrorClientException  ErrorKind = "ClientException"
	ErrorSdkException     ErrorKind = "SdkException"

	ErrorMalformedInput   ErrorKind = "MalformedInput"
	ErrorRetriesExhausted ErrorKind = "RetriesExhausted"
	ErrorTimeoutExceeded  ErrorKind = "TimeoutExceeded"
	ErrorInternal         ErrorKind = "InternalError"
)

// DefaultRetriableKinds are the kinds retried when a definition does not
// say otherwise.
var DefaultRetriableKinds = []ErrorKind{
	ErrorServiceException,
	ErrorClientException,
	ErrorSdkException,
}

// Error is an error tagged with an ErrorKind.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError tags err with kind.
func NewError(kind ErrorKind, err error) error {
	return &Error{Kind: kind, Err: err}
}

// Errorf is NewError with a formatted message.
func Errorf(kind ErrorKind, format string, args ...any) error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the outermost *Error in err's chain.
// Context deadline errors without an explicit kind report
// ErrorTimeoutExceeded.
func KindOf(err error) (ErrorKind, bool) {
	if err == nil {
		return "", false
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTimeoutExceeded, true
	}
	return "", false
}

// RetryOn returns a predicate reporting whether err carries one of kinds.
// Untagged errors and context errors are never transient.
func RetryOn(kinds ...ErrorKind) func(error) bool {
	set := make(map[ErrorKind]struct{}, len(kinds))
	for _, k := range kinds {
		set[k] = struct{}{}
	}
	return func(err error) bool {
		if err == nil {
			return false
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false
		}
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		_, ok := set[e.Kind]
		return ok
	}
}

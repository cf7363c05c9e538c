package api

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	base := errors.New("throttled")

	cases := []struct {
		name string
		err  error
		kind ErrorKind
		ok   bool
	}{
		{"nil", nil, "", false},
		{"untagged", base, "", false},
		{"tagged", NewError(ErrorServiceException, base), ErrorServiceException, true},
		{"wrapped", fmt.Errorf("classify: %w", NewError(ErrorSdkException, base)), ErrorSdkException, true},
		{"outermost wins", NewError(ErrorRetriesExhausted, NewError(ErrorClientException, base)), ErrorRetriesExhausted, true},
		{"deadline", fmt.Errorf("wait: %w", context.DeadlineExceeded), ErrorTimeoutExceeded, true},
		{"canceled", context.Canceled, "", false},
	}

	for _, tc := range cases {
		kind, ok := KindOf(tc.err)
		if kind != tc.kind || ok != tc.ok {
			t.Fatalf("%s: KindOf = (%q, %v), want (%q, %v)", tc.name, kind, ok, tc.kind, tc.ok)
		}
	}
}

func TestError_Unwrap(t *testing.T) {
	base := errors.New("bad payload")
	err := Errorf(ErrorMalformedInput, "decode: %w", base)

	if !errors.Is(err, base) {
		t.Fatalf("expected errors.Is to find the wrapped error")
	}
	if err.Error() != "MalformedInput: decode: bad payload" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if (&Error{Kind: ErrorInternal}).Error() != "InternalError" {
		t.Fatalf("unexpected message for bare kind")
	}
}

func TestRetryOn(t *testing.T) {
	transient := RetryOn(DefaultRetriableKinds...)

	for _, k := range DefaultRetriableKinds {
		if !transient(NewError(k, nil)) {
			t.Fatalf("%s should be transient", k)
		}
	}
	for _, err := range []error{
		nil,
		errors.New("untagged"),
		NewError(ErrorMalformedInput, nil),
		NewError(ErrorInternal, nil),
		context.DeadlineExceeded,
		fmt.Errorf("%w: %w", NewError(ErrorServiceException, nil), context.Canceled),
	} {
		if transient(err) {
			t.Fatalf("%v should not be transient", err)
		}
	}

	if RetryOn()(NewError(ErrorServiceException, nil)) {
		t.Fatalf("empty RetryOn should retry nothing")
	}
}

func TestTerminalResult_IsRejection(t *testing.T) {
	if !Rejection().IsRejection() {
		t.Fatalf("rejection not recognised")
	}
	if Success(OrderOutput{}).IsRejection() {
		t.Fatalf("success reported as rejection")
	}
	if Failure(ErrorInternal, errors.New("boom")).IsRejection() {
		t.Fatalf("failure reported as rejection")
	}
}

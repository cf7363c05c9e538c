package api

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestRetryPolicy_Delay(t *testing.T) {
	p := DefaultDefinition().Retry

	want := []time.Duration{0, 0, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second, 32 * time.Second}
	for attempt, d := range want {
		if got := p.Delay(attempt); got != d {
			t.Fatalf("Delay(%d) = %v, want %v", attempt, got, d)
		}
	}
}

func TestRetryPolicy_DelayWithoutRate(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, InitialInterval: time.Second}
	if got := p.Delay(3); got != time.Second {
		t.Fatalf("expected constant delay with zero rate, got %v", got)
	}
}

func TestDefinition_Validate(t *testing.T) {
	if err := DefaultDefinition().Validate(); err != nil {
		t.Fatalf("default definition invalid: %v", err)
	}

	d := DefaultDefinition()
	d.Name = ""
	d.Retry.MaxAttempts = 0
	d.Retry.InitialInterval = -time.Second
	d.Retry.BackoffRate = 0.5
	d.Timeout = 0

	err := d.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, msg := range []string{
		"workflow name is required",
		"max attempts must be >= 1",
		"initial interval must not be negative",
		"backoff rate must be >= 1",
		"workflow timeout must be positive",
	} {
		if !strings.Contains(err.Error(), msg) {
			t.Fatalf("expected %q in %q", msg, err.Error())
		}
	}
}

func TestDefinition_Options(t *testing.T) {
	b, err := json.Marshal(DefaultDefinition().Options())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"MaxAttempts":6,"InitialIntervalSeconds":2,"BackoffRate":2,` +
		`"RetriableErrorKinds":["ServiceException","ClientException","SdkException"],` +
		`"WorkflowTimeoutSeconds":300}`
	if string(b) != want {
		t.Fatalf("unexpected options:\n got %s\nwant %s", b, want)
	}
}

func TestDefinition_Document(t *testing.T) {
	doc := DefaultDefinition().Document()

	if doc.StartAt != StateOrderPizzaJob {
		t.Fatalf("unexpected StartAt %q", doc.StartAt)
	}
	if doc.TimeoutSeconds != 300 {
		t.Fatalf("unexpected TimeoutSeconds %d", doc.TimeoutSeconds)
	}
	for _, s := range States() {
		sd, ok := doc.States[s]
		if !ok {
			t.Fatalf("state %q missing from document", s)
		}
		if sd.Type != s.Type() {
			t.Fatalf("state %q: type %q, want %q", s, sd.Type, s.Type())
		}
	}

	task := doc.States[StateOrderPizzaJob]
	if task.InputPath != "$.flavour" || task.ResultPath != "$.pineappleAnalysis" || task.Next != StateWithPineapple {
		t.Fatalf("unexpected task state: %+v", task)
	}
	if len(task.Retry) != 1 || task.Retry[0].MaxAttempts != 6 || task.Retry[0].IntervalSeconds != 2 {
		t.Fatalf("unexpected retrier: %+v", task.Retry)
	}

	choice := doc.States[StateWithPineapple]
	if len(choice.Choices) != 1 || choice.Choices[0].Next != StateSorryNoPineapple || choice.Default != StateLetsMakeYourPizza {
		t.Fatalf("unexpected choice state: %+v", choice)
	}

	fail := doc.States[StateSorryNoPineapple]
	if fail.Error != "Failed To Make Pizza" || fail.Cause != "They asked for Pineapple" {
		t.Fatalf("unexpected fail state: %+v", fail)
	}

	if _, err := json.Marshal(doc); err != nil {
		t.Fatalf("marshal document: %v", err)
	}
}

func TestStateName_Terminal(t *testing.T) {
	cases := map[StateName]bool{
		StateOrderPizzaJob:     false,
		StateWithPineapple:     false,
		StateLetsMakeYourPizza: true,
		StateSorryNoPineapple:  true,
		StateName("Unknown"):   false,
	}
	for s, want := range cases {
		if got := s.Terminal(); got != want {
			t.Fatalf("%q.Terminal() = %v, want %v", s, got, want)
		}
	}
}

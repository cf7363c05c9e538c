package inflight

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/petrijr/pizzaflow/pkg/api"
)

func newExec(id string, start time.Time) *api.WorkflowExecution {
	return &api.WorkflowExecution{
		ID:            id,
		Workflow:      api.WorkflowName,
		CurrentState:  api.StartState,
		Status:        api.StatusRunning,
		StartTime:     start,
		RetryAttempts: map[string]int{},
	}
}

func TestTracker_TrackGetRemove(t *testing.T) {
	tr := New()
	exec := newExec("a", time.Now())

	if err := tr.Track(exec); err != nil {
		t.Fatalf("Track error: %v", err)
	}
	if err := tr.Track(exec); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}

	got, err := tr.Get("a")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got == exec {
		t.Fatalf("Get returned the caller's pointer, want a copy")
	}

	tr.Remove("a")
	if _, err := tr.Get("a"); !errors.Is(err, api.ErrExecutionNotFound) {
		t.Fatalf("expected ErrExecutionNotFound, got %v", err)
	}
	if tr.Len() != 0 {
		t.Fatalf("Len=%d, want 0", tr.Len())
	}
}

func TestTracker_SnapshotsAreIsolated(t *testing.T) {
	tr := New()
	exec := newExec("a", time.Now())
	_ = tr.Track(exec)

	// Mutating the owner's copy does not leak into the tracker.
	exec.CurrentState = api.StateWithPineapple
	exec.RetryAttempts[api.StepClassifyOrder] = 3

	got, _ := tr.Get("a")
	if got.CurrentState != api.StartState {
		t.Fatalf("CurrentState=%q, want %q", got.CurrentState, api.StartState)
	}
	if got.RetryAttempts[api.StepClassifyOrder] != 0 {
		t.Fatalf("RetryAttempts leaked into snapshot: %v", got.RetryAttempts)
	}

	if err := tr.Update(exec); err != nil {
		t.Fatalf("Update error: %v", err)
	}
	got, _ = tr.Get("a")
	if got.CurrentState != api.StateWithPineapple || got.RetryAttempts[api.StepClassifyOrder] != 3 {
		t.Fatalf("Update not applied: %+v", got)
	}
}

func TestTracker_UpdateUnknown(t *testing.T) {
	tr := New()
	if err := tr.Update(newExec("ghost", time.Now())); !errors.Is(err, ErrExecutionNotFound) {
		t.Fatalf("expected ErrExecutionNotFound, got %v", err)
	}
}

func TestTracker_ListFilterAndOrder(t *testing.T) {
	tr := New()
	base := time.Now()

	_ = tr.Track(newExec("c", base.Add(2*time.Second)))
	_ = tr.Track(newExec("a", base))
	b := newExec("b", base.Add(time.Second))
	b.CurrentState = api.StateLetsMakeYourPizza
	_ = tr.Track(b)

	all := tr.List(Filter{})
	if len(all) != 3 || all[0].ID != "a" || all[1].ID != "b" || all[2].ID != "c" {
		t.Fatalf("unexpected order: %v", ids(all))
	}

	making := tr.List(Filter{State: api.StateLetsMakeYourPizza})
	if len(making) != 1 || making[0].ID != "b" {
		t.Fatalf("state filter: %v", ids(making))
	}

	if got := tr.List(Filter{Status: api.StatusFailed}); len(got) != 0 {
		t.Fatalf("status filter: %v", ids(got))
	}
}

func TestTracker_ConcurrentAccess(t *testing.T) {
	tr := New()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			exec := newExec(fmt.Sprintf("exec-%d", i), time.Now())
			_ = tr.Track(exec)
			exec.CurrentState = api.StateWithPineapple
			_ = tr.Update(exec)
			_ = tr.List(Filter{})
			tr.Remove(exec.ID)
		}(i)
	}
	wg.Wait()

	if tr.Len() != 0 {
		t.Fatalf("Len=%d, want 0", tr.Len())
	}
}

func ids(execs []*api.WorkflowExecution) []string {
	out := make([]string, len(execs))
	for i, e := range execs {
		out[i] = e.ID
	}
	return out
}

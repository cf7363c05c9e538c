// Package inflight keeps snapshots of the executions that are currently
// running. Entries are dropped as soon as an execution finishes; nothing is
// retained afterwards.
package inflight

import (
	"errors"
	"sort"
	"sync"

	"github.com/petrijr/pizzaflow/pkg/api"
)

var (
	ErrExecutionNotFound = api.ErrExecutionNotFound
	ErrDuplicateID       = errors.New("execution id already tracked")
)

// Filter restricts List results. Zero fields match everything.
type Filter struct {
	State  api.StateName
	Status api.Status
}

// Tracker is a goroutine-safe map of running executions.
//
// It stores deep copies: callers publish a snapshot with Track or Update
// from the goroutine that owns the execution, and readers receive their own
// copies from Get and List.
type Tracker struct {
	mu         sync.RWMutex
	executions map[string]*api.WorkflowExecution
}

// New creates an empty Tracker.
func New() *Tracker {
	return &Tracker{
		executions: make(map[string]*api.WorkflowExecution),
	}
}

// Track registers a new execution.
func (t *Tracker) Track(exec *api.WorkflowExecution) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.executions[exec.ID]; ok {
		return ErrDuplicateID
	}
	t.executions[exec.ID] = exec.Clone()
	return nil
}

// Update replaces the snapshot of a tracked execution.
func (t *Tracker) Update(exec *api.WorkflowExecution) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.executions[exec.ID]; !ok {
		return ErrExecutionNotFound
	}
	t.executions[exec.ID] = exec.Clone()
	return nil
}

// Remove forgets an execution. Removing an unknown id is a no-op.
func (t *Tracker) Remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.executions, id)
}

// Get returns a copy of the execution's latest snapshot.
func (t *Tracker) Get(id string) (*api.WorkflowExecution, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	exec, ok := t.executions[id]
	if !ok {
		return nil, ErrExecutionNotFound
	}
	return exec.Clone(), nil
}

// List returns copies of matching executions, oldest first.
func (t *Tracker) List(filter Filter) []*api.WorkflowExecution {
	t.mu.RLock()
	result := make([]*api.WorkflowExecution, 0, len(t.executions))
	for _, exec := range t.executions {
		if filter.State != "" && exec.CurrentState != filter.State {
			continue
		}
		if filter.Status != "" && exec.Status != filter.Status {
			continue
		}
		result = append(result, exec.Clone())
	}
	t.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if !result[i].StartTime.Equal(result[j].StartTime) {
			return result[i].StartTime.Before(result[j].StartTime)
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// Len returns the number of tracked executions.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.executions)
}

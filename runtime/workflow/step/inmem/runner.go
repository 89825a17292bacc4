// Package inmem provides a memoising in-memory step.Runner for tests and
// single-process deployments. Results live in process memory; durability
// across restarts is the responsibility of a real execution host.
package inmem

import (
	"context"
	"sync"

	"github.com/loomworks/loom/runtime/workflow/step"
)

// Runner implements step.Runner with an in-process memo table keyed by step
// name. It is safe for concurrent use across runs when each run owns its
// own Runner; within a run the driver serialises steps.
type Runner struct {
	mu    sync.Mutex
	memo  map[string]memoEntry
	calls map[string]int
}

type memoEntry struct {
	value any
}

// New returns an empty Runner.
func New() *Runner {
	return &Runner{
		memo:  make(map[string]memoEntry),
		calls: make(map[string]int),
	}
}

// Run executes fn unless a prior invocation under the same name succeeded,
// in which case the memoised value is returned without re-executing fn.
// Failures are not memoised; a retried run re-executes the failed step.
func (r *Runner) Run(ctx context.Context, name string, fn step.Func) (any, error) {
	r.mu.Lock()
	if entry, done := r.memo[name]; done {
		r.mu.Unlock()
		return entry.value, nil
	}
	r.calls[name]++
	r.mu.Unlock()

	value, err := fn(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.memo[name] = memoEntry{value: value}
	r.mu.Unlock()
	return value, nil
}

// Executions reports how many times the named step's function actually ran.
// Tests use this to assert memoisation behavior.
func (r *Runner) Executions(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[name]
}

// Completed reports whether the named step has a memoised result.
func (r *Runner) Completed(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.memo[name]
	return ok
}

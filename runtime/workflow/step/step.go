// Package step defines the durable step abstraction the engine executes
// against. A step is a named computation whose success is memoised within a
// run: when a transient failure re-enters the run, steps that already
// succeeded are skipped and return their recorded result. The engine
// consumes this capability; production deployments bind it to a durable
// execution host, while tests use the memoising in-memory runner.
//
// Executors must perform every side effect (HTTP call, LLM generation,
// database write) inside a step so host-level retries never duplicate work.
package step

import (
	"context"
	"errors"
)

type (
	// Runner executes named durable steps within one run. Implementations
	// guarantee that a step name that previously succeeded in this run is
	// not re-executed; its memoised result is returned instead. Step names
	// must be stable across retries of the enclosing run.
	Runner interface {
		// Run executes fn under the given step name, memoising its result on
		// success. The returned value is the step's recorded result, which is
		// fn's return value on first success and the memoised value on replay.
		Run(ctx context.Context, name string, fn Func) (any, error)
	}

	// Func is the unit of durable work. The returned value must be
	// JSON-serialisable so hosts can persist it across process restarts.
	Func func(ctx context.Context) (any, error)

	// NonRetriableError marks a failure that must not be retried by the
	// host runtime: configuration errors, tenancy violations, unknown node
	// kinds. Hosts fail the run immediately when a step returns one.
	NonRetriableError struct {
		Err error
	}
)

// NonRetriable wraps err so the host runtime aborts instead of retrying.
func NonRetriable(err error) error {
	if err == nil {
		return nil
	}
	return &NonRetriableError{Err: err}
}

// Error implements the error interface.
func (e *NonRetriableError) Error() string { return e.Err.Error() }

// Unwrap supports errors.Is/As against the wrapped cause.
func (e *NonRetriableError) Unwrap() error { return e.Err }

// IsNonRetriable reports whether err carries the non-retriable marker
// anywhere in its chain.
func IsNonRetriable(err error) bool {
	var nr *NonRetriableError
	return errors.As(err, &nr)
}

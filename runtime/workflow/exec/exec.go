// Package exec defines the node executor contract and the registry the run
// driver dispatches through. An executor receives the node's configuration,
// the current run context, a durable step handle, and a status publisher; it
// returns a new context that is a superset of its input. Executors never
// mutate the input context and perform every side effect inside a nested
// durable step.
package exec

import (
	"context"
	"fmt"

	"github.com/loomworks/loom/runtime/workflow/graph"
	"github.com/loomworks/loom/runtime/workflow/status"
	"github.com/loomworks/loom/runtime/workflow/step"
	"github.com/loomworks/loom/runtime/workflow/values"
)

type (
	// Request is the execution context handed to one executor invocation.
	Request struct {
		// RunID identifies the enclosing run.
		RunID string
		// OrgID is the owning organization; every persisted read an executor
		// issues is scoped to it.
		OrgID string
		// Workflow is the stored graph; the agent executor walks its
		// connections to discover sub-nodes.
		Workflow *graph.Workflow
		// Node is the node being executed. Node.Data is the configuration
		// map; templated string fields resolve against Context.
		Node graph.Node
		// Context is the run context snapshot. Read-only from the executor's
		// perspective; results are returned via a merged copy.
		Context values.Object
		// Step runs nested durable steps for LLM and external I/O calls.
		Step step.Runner
		// Publish delivers status events for sub-node fan-out. The driver
		// owns the node's own lifecycle events.
		Publish status.Publisher
	}

	// Executor runs one node kind. The returned context must contain every
	// key of req.Context; returning nil means "context unchanged".
	Executor interface {
		Execute(ctx context.Context, req *Request) (values.Object, error)
	}

	// Func adapts a function to the Executor interface.
	Func func(ctx context.Context, req *Request) (values.Object, error)

	// ConfigError reports invalid or missing node configuration. It is
	// always wrapped non-retriably: a bad graph does not heal on retry.
	ConfigError struct {
		Kind  graph.NodeKind
		Field string
	}

	// Registry maps node kinds to their executors.
	Registry struct {
		executors map[graph.NodeKind]Executor
	}
)

// Execute implements Executor.
func (f Func) Execute(ctx context.Context, req *Request) (values.Object, error) {
	return f(ctx, req)
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s node: missing or invalid field %q", e.Kind, e.Field)
}

// MissingConfig builds the non-retriable error an executor returns when a
// required configuration field is absent or malformed.
func MissingConfig(kind graph.NodeKind, field string) error {
	return step.NonRetriable(&ConfigError{Kind: kind, Field: field})
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[graph.NodeKind]Executor)}
}

// Register binds an executor to a node kind, replacing any previous binding.
func (r *Registry) Register(kind graph.NodeKind, ex Executor) {
	r.executors[kind] = ex
}

// Lookup returns the executor for a kind.
func (r *Registry) Lookup(kind graph.NodeKind) (Executor, bool) {
	ex, ok := r.executors[kind]
	return ex, ok
}

// VariableName returns the node's validated output binding.
func VariableName(node graph.Node) (string, error) {
	name := node.ConfigString("variableName", "")
	if err := graph.ValidateVariableName(name); err != nil {
		return "", MissingConfig(node.Kind, "variableName")
	}
	return name, nil
}

// WriteResult merges result under the node's variable name into base after
// normalising it to the JSON-value shape.
func WriteResult(base values.Object, name string, result any) (values.Object, error) {
	normalized, err := values.Normalize(result)
	if err != nil {
		return nil, fmt.Errorf("normalize result for %q: %w", name, err)
	}
	return base.Merge(values.Object{name: normalized}), nil
}

// Package driver runs workflows: it loads the stored graph, plans it, and
// executes the planned nodes in order, threading the run context from node
// to node. Each node runs inside its own durable step so a host retry
// resumes after the last completed node instead of starting over. The
// driver owns every plan node's lifecycle events: exactly one loading event
// followed by one terminal event per node, published to the status channel
// and appended to the run log.
package driver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"

	"github.com/loomworks/loom/runtime/workflow/exec"
	"github.com/loomworks/loom/runtime/workflow/graph"
	"github.com/loomworks/loom/runtime/workflow/plan"
	"github.com/loomworks/loom/runtime/workflow/runlog"
	"github.com/loomworks/loom/runtime/workflow/status"
	"github.com/loomworks/loom/runtime/workflow/step"
	stepinmem "github.com/loomworks/loom/runtime/workflow/step/inmem"
	"github.com/loomworks/loom/runtime/workflow/store"
	"github.com/loomworks/loom/runtime/workflow/telemetry"
	"github.com/loomworks/loom/runtime/workflow/values"
)

// UnknownNodeKindError reports a planned node whose kind has no registered
// executor. The run fails without retrying; a missing executor does not heal.
type UnknownNodeKindError struct {
	NodeID string
	Kind   graph.NodeKind
}

// Error implements the error interface.
func (e *UnknownNodeKindError) Error() string {
	return fmt.Sprintf("node %s: no executor registered for kind %q", e.NodeID, e.Kind)
}

type (
	// Options carries the driver's dependencies. Workflows and Registry are
	// required; everything else defaults to a no-op.
	Options struct {
		// Workflows loads stored graphs.
		Workflows store.WorkflowStore
		// Registry maps node kinds to executors.
		Registry *exec.Registry
		// Publish receives node lifecycle events. Defaults to status.Discard.
		Publish status.Publisher
		// RunLog persists lifecycle records. Defaults to runlog.Discard.
		RunLog runlog.Store
		// Log receives run diagnostics. Defaults to noop.
		Log telemetry.Logger
		// Metrics counts runs and node executions. Defaults to noop.
		Metrics telemetry.Metrics
		// Tracer opens per-run and per-node spans. Defaults to noop.
		Tracer telemetry.Tracer
	}

	// Driver executes workflow runs.
	Driver struct {
		workflows store.WorkflowStore
		registry  *exec.Registry
		publish   status.Publisher
		runlog    runlog.Store
		log       telemetry.Logger
		metrics   telemetry.Metrics
		tracer    telemetry.Tracer
	}

	// RunRequest describes one run invocation. InitialData seeds the run
	// context, typically with a webhook payload under the "payload" key.
	RunRequest struct {
		WorkflowID  string
		OrgID       string
		InitialData values.Object
		// RunID names the run. Empty means the driver assigns a fresh UUID.
		// Retries of a failed run must reuse the original id together with
		// the original step runner.
		RunID string
		// Step is the durable step runner for this run. Defaults to a fresh
		// in-memory runner.
		Step step.Runner
	}

	// RunResult is the outcome of a completed run.
	RunResult struct {
		RunID  string
		Output values.Object
	}
)

// New builds a Driver.
func New(opts Options) (*Driver, error) {
	if opts.Workflows == nil {
		return nil, errors.New("driver: workflow store is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("driver: executor registry is required")
	}
	d := &Driver{
		workflows: opts.Workflows,
		registry:  opts.Registry,
		publish:   opts.Publish,
		runlog:    opts.RunLog,
		log:       opts.Log,
		metrics:   opts.Metrics,
		tracer:    opts.Tracer,
	}
	if d.publish == nil {
		d.publish = status.Discard
	}
	if d.runlog == nil {
		d.runlog = runlog.Discard
	}
	if d.log == nil {
		d.log = telemetry.NewNoopLogger()
	}
	if d.metrics == nil {
		d.metrics = telemetry.NewNoopMetrics()
	}
	if d.tracer == nil {
		d.tracer = telemetry.NewNoopTracer()
	}
	return d, nil
}

// Execute runs one workflow to completion. Planning failures (cycles,
// missing workflow) fail before any node starts and before any status event
// is published. A node failure publishes the node's error event and aborts
// the run; nodes after it never start.
func (d *Driver) Execute(ctx context.Context, req RunRequest) (*RunResult, error) {
	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	runner := req.Step
	if runner == nil {
		runner = stepinmem.New()
	}

	ctx, span := d.tracer.Start(ctx, "workflow.run")
	defer span.End()

	w, err := d.workflows.Workflow(ctx, req.OrgID, req.WorkflowID)
	if err != nil {
		span.SetStatus(codes.Error, "load failed")
		return nil, fmt.Errorf("driver: load workflow %s: %w", req.WorkflowID, err)
	}
	ordered, err := plan.Build(w.Nodes, w.Connections)
	if err != nil {
		span.SetStatus(codes.Error, "plan failed")
		return nil, fmt.Errorf("driver: plan workflow %s: %w", req.WorkflowID, err)
	}

	d.metrics.IncCounter("run.started", 1, "workflow", w.ID)
	d.log.Info(ctx, "run started", "run", runID, "workflow", w.ID, "nodes", len(ordered))
	started := time.Now()

	cur := req.InitialData.Clone()
	for _, node := range ordered {
		next, err := d.executeNode(ctx, runID, w, node, cur, runner)
		if err != nil {
			d.metrics.IncCounter("run.failed", 1, "workflow", w.ID)
			span.RecordError(err)
			span.SetStatus(codes.Error, "node failed")
			d.log.Error(ctx, "run failed", "run", runID, "node", node.ID, "err", err.Error())
			return nil, fmt.Errorf("driver: node %s: %w", node.ID, err)
		}
		cur = next
	}

	d.metrics.IncCounter("run.completed", 1, "workflow", w.ID)
	d.metrics.RecordTimer("run.duration", time.Since(started), "workflow", w.ID)
	d.log.Info(ctx, "run completed", "run", runID, "workflow", w.ID)
	return &RunResult{RunID: runID, Output: cur}, nil
}

// executeNode runs one planned node inside its durable step and returns the
// threaded context. A nil executor result leaves the context unchanged.
func (d *Driver) executeNode(ctx context.Context, runID string, w *graph.Workflow, node graph.Node, cur values.Object, runner step.Runner) (values.Object, error) {
	ctx, span := d.tracer.Start(ctx, "workflow.node")
	defer span.End()

	d.emit(ctx, runID, node, status.StatusLoading)

	executor, ok := d.registry.Lookup(node.Kind)
	if !ok {
		d.emit(ctx, runID, node, status.StatusError)
		return nil, step.NonRetriable(&UnknownNodeKindError{NodeID: node.ID, Kind: node.Kind})
	}

	raw, err := runner.Run(ctx, "node:"+node.ID, func(ctx context.Context) (any, error) {
		out, err := executor.Execute(ctx, &exec.Request{
			RunID:    runID,
			OrgID:    w.OrgID,
			Workflow: w,
			Node:     node,
			Context:  cur,
			Step:     runner,
			Publish:  d.publish,
		})
		if err != nil {
			return nil, err
		}
		if out == nil {
			return nil, nil
		}
		return map[string]any(out), nil
	})
	if err != nil {
		span.RecordError(err)
		d.emit(ctx, runID, node, status.StatusError)
		return nil, err
	}
	d.metrics.IncCounter("node.executed", 1, "kind", string(node.Kind))

	next := cur
	if raw != nil {
		obj, err := asObject(raw)
		if err != nil {
			d.emit(ctx, runID, node, status.StatusError)
			return nil, step.NonRetriable(fmt.Errorf("executor returned %T, want object", raw))
		}
		if !obj.Superset(cur) {
			d.emit(ctx, runID, node, status.StatusError)
			return nil, step.NonRetriable(errors.New("executor result dropped context keys"))
		}
		next = obj
	}

	d.emit(ctx, runID, node, status.StatusSuccess)
	return next, nil
}

// emit publishes one lifecycle event and appends the matching run log
// record. Both failures are advisory.
func (d *Driver) emit(ctx context.Context, runID string, node graph.Node, s status.Status) {
	event := status.Event{
		WorkflowRunID: runID,
		NodeID:        node.ID,
		NodeKind:      node.Kind,
		Status:        s,
	}
	if err := d.publish.Publish(ctx, event); err != nil {
		d.log.Warn(ctx, "status publish failed", "run", runID, "node", node.ID, "err", err.Error())
	}
	if err := d.runlog.Append(ctx, runlog.Entry{
		RunID:    runID,
		NodeID:   node.ID,
		NodeKind: node.Kind,
		Status:   s,
		At:       time.Now().UTC(),
	}); err != nil {
		d.log.Warn(ctx, "run log append failed", "run", runID, "node", node.ID, "err", err.Error())
	}
}

// asObject coerces a memoised step value back into a context object. The
// executor returned a map on first execution; a persisted host replays the
// same shape after JSON decoding.
func asObject(raw any) (values.Object, error) {
	switch v := raw.(type) {
	case map[string]any:
		return values.Object(v), nil
	case values.Object:
		return v, nil
	default:
		return nil, fmt.Errorf("unexpected step value %T", raw)
	}
}

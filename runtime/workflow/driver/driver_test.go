package driver_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loomworks/loom/runtime/workflow/driver"
	"github.com/loomworks/loom/runtime/workflow/exec"
	"github.com/loomworks/loom/runtime/workflow/graph"
	"github.com/loomworks/loom/runtime/workflow/mail"
	"github.com/loomworks/loom/runtime/workflow/plan"
	"github.com/loomworks/loom/runtime/workflow/runlog"
	"github.com/loomworks/loom/runtime/workflow/status"
	"github.com/loomworks/loom/runtime/workflow/step"
	stepinmem "github.com/loomworks/loom/runtime/workflow/step/inmem"
	storeinmem "github.com/loomworks/loom/runtime/workflow/store/inmem"
	"github.com/loomworks/loom/runtime/workflow/values"
)

func newDriver(t *testing.T, w *graph.Workflow, registry *exec.Registry, pub status.Publisher, rl runlog.Store) *driver.Driver {
	t.Helper()
	ws := storeinmem.NewWorkflowStore()
	ws.Put(w)
	d, err := driver.New(driver.Options{
		Workflows: ws,
		Registry:  registry,
		Publish:   pub,
		RunLog:    rl,
	})
	require.NoError(t, err)
	return d
}

func TestDriverRunsLinearWorkflow(t *testing.T) {
	w := &graph.Workflow{
		ID:    "wf-1",
		OrgID: "org-1",
		Nodes: []graph.Node{
			{ID: "n1", Kind: graph.KindManualTrigger},
			{ID: "n2", Kind: graph.KindCalculator, Data: map[string]any{
				"expression":   "2 + 3",
				"variableName": "calc",
			}},
		},
		Connections: []graph.Connection{
			{ID: "c1", FromNodeID: "n1", ToNodeID: "n2"},
		},
	}

	rec := status.NewRecorder()
	rl := runlog.NewMemory()
	d := newDriver(t, w, exec.Builtins(exec.Options{}), rec, rl)

	res, err := d.Execute(context.Background(), driver.RunRequest{
		WorkflowID:  "wf-1",
		OrgID:       "org-1",
		InitialData: values.Object{"seed": "x"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.RunID)

	v, ok := res.Output.Resolve("calc.result")
	require.True(t, ok)
	require.EqualValues(t, 5, v)
	seed, ok := res.Output.Resolve("seed")
	require.True(t, ok)
	require.Equal(t, "x", seed)

	require.Equal(t, []status.Status{status.StatusLoading, status.StatusSuccess}, rec.ForNode("n1"))
	require.Equal(t, []status.Status{status.StatusLoading, status.StatusSuccess}, rec.ForNode("n2"))

	entries := rl.ForRun(res.RunID)
	require.Len(t, entries, 4)
	require.Equal(t, "n1", entries[0].NodeID)
	require.Equal(t, status.StatusLoading, entries[0].Status)
	require.Equal(t, "n2", entries[3].NodeID)
	require.Equal(t, status.StatusSuccess, entries[3].Status)
}

func TestDriverWorkflowWithoutTriggerDoesNothing(t *testing.T) {
	w := &graph.Workflow{
		ID:    "wf-1",
		OrgID: "org-1",
		Nodes: []graph.Node{
			{ID: "n1", Kind: graph.KindCalculator, Data: map[string]any{
				"expression":   "1",
				"variableName": "calc",
			}},
		},
	}
	rec := status.NewRecorder()
	d := newDriver(t, w, exec.Builtins(exec.Options{}), rec, nil)

	res, err := d.Execute(context.Background(), driver.RunRequest{WorkflowID: "wf-1", OrgID: "org-1"})
	require.NoError(t, err)
	require.Empty(t, rec.Events())
	_, ok := res.Output.Resolve("calc")
	require.False(t, ok)
}

func TestDriverCycleFailsBeforeAnyStatus(t *testing.T) {
	w := &graph.Workflow{
		ID:    "wf-1",
		OrgID: "org-1",
		Nodes: []graph.Node{
			{ID: "n1", Kind: graph.KindManualTrigger},
			{ID: "n2", Kind: graph.KindCalculator, Data: map[string]any{"expression": "1", "variableName": "a"}},
			{ID: "n3", Kind: graph.KindCalculator, Data: map[string]any{"expression": "2", "variableName": "b"}},
		},
		Connections: []graph.Connection{
			{ID: "c1", FromNodeID: "n1", ToNodeID: "n2"},
			{ID: "c2", FromNodeID: "n2", ToNodeID: "n3"},
			{ID: "c3", FromNodeID: "n3", ToNodeID: "n2"},
		},
	}
	rec := status.NewRecorder()
	d := newDriver(t, w, exec.Builtins(exec.Options{}), rec, nil)

	_, err := d.Execute(context.Background(), driver.RunRequest{WorkflowID: "wf-1", OrgID: "org-1"})
	var cycleErr *plan.CycleError
	require.ErrorAs(t, err, &cycleErr)
	require.Empty(t, rec.Events())
}

func TestDriverMissingWorkflow(t *testing.T) {
	d := newDriver(t, &graph.Workflow{ID: "other", OrgID: "org-1"}, exec.Builtins(exec.Options{}), nil, nil)
	_, err := d.Execute(context.Background(), driver.RunRequest{WorkflowID: "wf-1", OrgID: "org-1"})
	require.Error(t, err)
}

func TestDriverUnregisteredKindFailsNonRetriably(t *testing.T) {
	w := &graph.Workflow{
		ID:    "wf-1",
		OrgID: "org-1",
		Nodes: []graph.Node{
			{ID: "n1", Kind: graph.KindManualTrigger},
			{ID: "n2", Kind: graph.KindCalculator, Data: map[string]any{"expression": "1", "variableName": "a"}},
		},
		Connections: []graph.Connection{{ID: "c1", FromNodeID: "n1", ToNodeID: "n2"}},
	}
	registry := exec.NewRegistry()
	registry.Register(graph.KindManualTrigger, exec.Trigger())

	rec := status.NewRecorder()
	d := newDriver(t, w, registry, rec, nil)
	_, err := d.Execute(context.Background(), driver.RunRequest{WorkflowID: "wf-1", OrgID: "org-1"})
	require.True(t, step.IsNonRetriable(err))
	var unknown *driver.UnknownNodeKindError
	require.ErrorAs(t, err, &unknown)
	require.Equal(t, "n2", unknown.NodeID)
	require.Equal(t, []status.Status{status.StatusLoading, status.StatusError}, rec.ForNode("n2"))
}

func TestDriverNodeFailureStopsRun(t *testing.T) {
	w := &graph.Workflow{
		ID:    "wf-1",
		OrgID: "org-1",
		Nodes: []graph.Node{
			{ID: "n1", Kind: graph.KindManualTrigger},
			{ID: "n2", Kind: graph.KindCalculator, Data: map[string]any{
				"expression":   "require('fs')",
				"variableName": "a",
			}},
			{ID: "n3", Kind: graph.KindCalculator, Data: map[string]any{
				"expression":   "1",
				"variableName": "b",
			}},
		},
		Connections: []graph.Connection{
			{ID: "c1", FromNodeID: "n1", ToNodeID: "n2"},
			{ID: "c2", FromNodeID: "n2", ToNodeID: "n3"},
		},
	}
	rec := status.NewRecorder()
	d := newDriver(t, w, exec.Builtins(exec.Options{}), rec, nil)

	_, err := d.Execute(context.Background(), driver.RunRequest{WorkflowID: "wf-1", OrgID: "org-1"})
	require.Error(t, err)
	require.Equal(t, []status.Status{status.StatusLoading, status.StatusError}, rec.ForNode("n2"))
	require.Empty(t, rec.ForNode("n3"), "nodes after the failure must not start")
}

func TestDriverSupersetViolationFails(t *testing.T) {
	w := &graph.Workflow{
		ID:          "wf-1",
		OrgID:       "org-1",
		Nodes:       []graph.Node{{ID: "n1", Kind: graph.KindManualTrigger}},
		Connections: nil,
	}
	registry := exec.NewRegistry()
	registry.Register(graph.KindManualTrigger, exec.Func(func(context.Context, *exec.Request) (values.Object, error) {
		return values.Object{"only": "this"}, nil // drops the seed key
	}))

	d := newDriver(t, w, registry, nil, nil)
	_, err := d.Execute(context.Background(), driver.RunRequest{
		WorkflowID:  "wf-1",
		OrgID:       "org-1",
		InitialData: values.Object{"seed": "x"},
	})
	require.True(t, step.IsNonRetriable(err))
	require.Contains(t, err.Error(), "dropped context keys")
}

func TestDriverRetrySkipsCompletedNodes(t *testing.T) {
	w := &graph.Workflow{
		ID:    "wf-1",
		OrgID: "org-1",
		Nodes: []graph.Node{
			{ID: "n1", Kind: graph.KindManualTrigger},
			{ID: "n2", Kind: graph.KindCalculator, Data: map[string]any{
				"expression":   "40 + 2",
				"variableName": "calc",
			}},
			{ID: "n3", Kind: graph.KindSendEmail, Data: map[string]any{
				"host":         "smtp.example.com",
				"to":           "ada@example.com",
				"variableName": "mailed",
			}},
		},
		Connections: []graph.Connection{
			{ID: "c1", FromNodeID: "n1", ToNodeID: "n2"},
			{ID: "c2", FromNodeID: "n2", ToNodeID: "n3"},
		},
	}

	sender := &flakySender{failures: 1}
	registry := exec.Builtins(exec.Options{Mailer: sender})
	d := newDriver(t, w, registry, nil, nil)

	runner := stepinmem.New()
	req := driver.RunRequest{WorkflowID: "wf-1", OrgID: "org-1", RunID: "run-1", Step: runner}

	_, err := d.Execute(context.Background(), req)
	require.Error(t, err)
	require.True(t, runner.Completed("node:n2"))

	res, err := d.Execute(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 2, sender.attempts)
	require.Equal(t, 1, runner.Executions("node:n2"), "completed node must not re-execute")

	v, ok := res.Output.Resolve("calc.result")
	require.True(t, ok)
	require.EqualValues(t, 42, v)
	delivered, ok := res.Output.Resolve("mailed.delivered")
	require.True(t, ok)
	require.Equal(t, true, delivered)
}

type flakySender struct {
	failures int
	attempts int
}

func (s *flakySender) Send(context.Context, mail.Config, mail.Message) error {
	s.attempts++
	if s.attempts <= s.failures {
		return errors.New("smtp: connection reset")
	}
	return nil
}

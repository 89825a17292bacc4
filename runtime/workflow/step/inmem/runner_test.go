package inmem

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loomworks/loom/runtime/workflow/step"
)

func TestRunMemoisesSuccess(t *testing.T) {
	r := New()
	calls := 0
	fn := func(context.Context) (any, error) {
		calls++
		return "result", nil
	}

	v, err := r.Run(context.Background(), "node:a", fn)
	require.NoError(t, err)
	require.Equal(t, "result", v)

	v, err = r.Run(context.Background(), "node:a", fn)
	require.NoError(t, err)
	require.Equal(t, "result", v)
	require.Equal(t, 1, calls)
	require.Equal(t, 1, r.Executions("node:a"))
	require.True(t, r.Completed("node:a"))
}

func TestRunDoesNotMemoiseFailure(t *testing.T) {
	r := New()
	calls := 0
	fn := func(context.Context) (any, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("transient")
		}
		return "ok", nil
	}

	_, err := r.Run(context.Background(), "node:b", fn)
	require.Error(t, err)
	require.False(t, r.Completed("node:b"))

	v, err := r.Run(context.Background(), "node:b", fn)
	require.NoError(t, err)
	require.Equal(t, "ok", v)
	require.Equal(t, 2, r.Executions("node:b"))
}

func TestDistinctNamesAreIndependent(t *testing.T) {
	r := New()
	for _, name := range []string{"node:a", "node:b", "node:a/llm"} {
		_, err := r.Run(context.Background(), name, func(context.Context) (any, error) {
			return name, nil
		})
		require.NoError(t, err)
	}
	require.Equal(t, 1, r.Executions("node:a"))
	require.Equal(t, 1, r.Executions("node:b"))
	require.Equal(t, 1, r.Executions("node:a/llm"))
}

func TestNonRetriableMarker(t *testing.T) {
	cause := errors.New("missing field")
	err := step.NonRetriable(cause)
	require.True(t, step.IsNonRetriable(err))
	require.ErrorIs(t, err, cause)
	require.False(t, step.IsNonRetriable(errors.New("other")))
	require.NoError(t, step.NonRetriable(nil))
}

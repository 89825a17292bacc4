package values

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveDottedPath(t *testing.T) {
	ctx := Object{
		"r": map[string]any{
			"httpResponse": map[string]any{
				"status": float64(200),
				"data":   map[string]any{"id": "abc"},
			},
		},
		"items": []any{"a", "b"},
	}

	v, ok := ctx.Resolve("r.httpResponse.data.id")
	require.True(t, ok)
	require.Equal(t, "abc", v)

	v, ok = ctx.Resolve("r.httpResponse.status")
	require.True(t, ok)
	require.Equal(t, float64(200), v)

	v, ok = ctx.Resolve("items.1")
	require.True(t, ok)
	require.Equal(t, "b", v)

	_, ok = ctx.Resolve("r.missing.path")
	require.False(t, ok)
	_, ok = ctx.Resolve("items.7")
	require.False(t, ok)
	_, ok = ctx.Resolve("items.x")
	require.False(t, ok)
	_, ok = ctx.Resolve("")
	require.False(t, ok)
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	base := Object{"a": map[string]any{"x": float64(1)}}
	overlay := Object{"b": "two"}

	merged := base.Merge(overlay)
	require.Equal(t, "two", merged["b"])

	// Mutating the merge result must not leak back into the base.
	merged["a"].(map[string]any)["x"] = float64(99)
	require.Equal(t, float64(1), base["a"].(map[string]any)["x"])

	require.True(t, merged.Superset(base))
	require.False(t, base.Superset(merged))
}

func TestStringify(t *testing.T) {
	require.Equal(t, "abc", Stringify("abc"))
	require.Equal(t, "42", Stringify(float64(42)))
	require.Equal(t, "1.5", Stringify(1.5))
	require.Equal(t, "true", Stringify(true))
	require.Equal(t, "", Stringify(nil))
	require.Equal(t, `{"k":"v"}`, Stringify(map[string]any{"k": "v"}))
}

func TestNormalizeRoundTrips(t *testing.T) {
	type payload struct {
		Status int    `json:"status"`
		Body   string `json:"body"`
	}
	v, err := Normalize(payload{Status: 200, Body: "ok"})
	require.NoError(t, err)
	m, ok := v.(map[string]any)
	require.True(t, ok)
	require.Equal(t, float64(200), m["status"])
	require.Equal(t, "ok", m["body"])

	v, err = Normalize(nil)
	require.NoError(t, err)
	require.Nil(t, v)
}

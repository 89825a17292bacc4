package tmpl

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loomworks/loom/runtime/workflow/values"
)

func ctx() values.Object {
	return values.Object{
		"r": map[string]any{
			"httpResponse": map[string]any{
				"status": float64(200),
				"data":   map[string]any{"id": "abc", "tags": []any{"a", "b"}},
			},
		},
		"name": "Ada",
	}
}

func TestEvaluateScalarLookup(t *testing.T) {
	require.Equal(t, "Hello Ada", Evaluate("Hello {{name}}", ctx()))
	require.Equal(t, "status=200", Evaluate("status={{r.httpResponse.status}}", ctx()))
	require.Equal(t, `{"id":"abc"}`, Evaluate(`{"id":"{{r.httpResponse.data.id}}"}`, ctx()))
}

func TestEvaluateUnknownPathIsEmpty(t *testing.T) {
	require.Equal(t, "x= y=Ada", Evaluate("x={{nope.deep}} y={{name}}", ctx()))
}

func TestEvaluateJSONForm(t *testing.T) {
	out := Evaluate("{{json r.httpResponse.data}}", ctx())
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	require.Equal(t, "abc", decoded["id"])
	// Pretty-printed, so the output spans multiple lines.
	require.Contains(t, out, "\n")

	require.Equal(t, "", Evaluate("{{json missing}}", ctx()))
}

func TestEvaluateWhitespaceAndNoBraces(t *testing.T) {
	require.Equal(t, "Ada", Evaluate("{{ name }}", ctx()))
	require.Equal(t, "plain", Evaluate("plain", ctx()))
	require.Equal(t, "", Evaluate("", ctx()))
}

func TestEvaluateDoesNotEscapeHTML(t *testing.T) {
	c := values.Object{"s": "<b>&amp;</b>"}
	require.Equal(t, "<b>&amp;</b>", Evaluate("{{s}}", c))
}

func TestEvaluateMap(t *testing.T) {
	in := map[string]any{
		"url":   "https://api/{{r.httpResponse.data.id}}",
		"count": float64(3),
	}
	out := EvaluateMap(in, ctx())
	require.Equal(t, "https://api/abc", out["url"])
	require.Equal(t, float64(3), out["count"])
	// Input map untouched.
	require.Equal(t, "https://api/{{r.httpResponse.data.id}}", in["url"])
}

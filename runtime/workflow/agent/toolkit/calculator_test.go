package toolkit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCalculate(t *testing.T) {
	cases := []struct {
		expr string
		want float64
	}{
		{"1 + 2", 3},
		{"sqrt(144) + 3", 15},
		{"2 ** 10", 1024},
		{"10 % 3", 1},
		{"round(2.4)", 2},
		{"ceil(2.1)", 3},
		{"floor(2.9)", 2},
		{"abs(-5)", 5},
		{"pow(2, 8)", 256},
		{"(1 + 2) * 4", 12},
	}
	for _, tc := range cases {
		got, err := Calculate(tc.expr)
		require.NoError(t, err, tc.expr)
		require.InDelta(t, tc.want, got, 1e-9, tc.expr)
	}
}

func TestCalculateConstants(t *testing.T) {
	got, err := Calculate("cos(0) + sin(0)")
	require.NoError(t, err)
	require.InDelta(t, 1, got, 1e-9)

	got, err = Calculate("PI")
	require.NoError(t, err)
	require.InDelta(t, 3.14159265, got, 1e-6)

	got, err = Calculate("log(E)")
	require.NoError(t, err)
	require.InDelta(t, 1, got, 1e-9)
}

func TestValidateExpressionRejectsForeignTokens(t *testing.T) {
	for _, expr := range []string{
		"require('fs')",
		"process.exit(1)",
		"sqrt(144); exec('rm')",
		`"text"`,
		"x + 1",
		"__import__",
		"pow(2, eval)",
		"",
	} {
		require.Error(t, ValidateExpression(expr), expr)
	}
}

func TestValidationRunsBeforeEvaluation(t *testing.T) {
	// The identifier check applies to the original token stream, so a call
	// shaped like an allowed function with a smuggled identifier inside is
	// rejected up front.
	_, err := Calculate("sqrt(system(1))")
	require.Error(t, err)
	require.Contains(t, err.Error(), "system")
}

func TestCalculatorToolRejectsCode(t *testing.T) {
	tool := CalculatorTool()
	_, err := tool.Invoke(context.Background(), map[string]any{"expression": "require('fs')"})
	require.Error(t, err)

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	require.Contains(t, toolErr.ResultText(), "Error:")
}

func TestCalculatorToolFormatsIntegralResults(t *testing.T) {
	tool := CalculatorTool()
	out, err := tool.Invoke(context.Background(), map[string]any{"expression": "sqrt(144) + 3"})
	require.NoError(t, err)
	require.Equal(t, "15", out)

	out, err = tool.Invoke(context.Background(), map[string]any{"expression": "1 / 2"})
	require.NoError(t, err)
	require.Equal(t, "0.5", out)
}

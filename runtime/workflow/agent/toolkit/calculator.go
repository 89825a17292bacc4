package toolkit

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"

	"github.com/expr-lang/expr"
)

// calcIdent extracts candidate identifiers from an expression for allow-list
// checking.
var calcIdent = regexp.MustCompile(`[A-Za-z_$][A-Za-z0-9_$]*`)

// calcAllowed is the closed set of identifiers an expression may reference.
var calcAllowed = map[string]struct{}{
	"PI": {}, "E": {},
	"sqrt": {}, "sin": {}, "cos": {}, "tan": {}, "log": {},
	"abs": {}, "round": {}, "ceil": {}, "floor": {}, "pow": {},
}

// calcEnv binds the allowed identifiers for evaluation.
var calcEnv = map[string]any{
	"PI":    math.Pi,
	"E":     math.E,
	"sqrt":  func(x float64) float64 { return math.Sqrt(x) },
	"sin":   func(x float64) float64 { return math.Sin(x) },
	"cos":   func(x float64) float64 { return math.Cos(x) },
	"tan":   func(x float64) float64 { return math.Tan(x) },
	"log":   func(x float64) float64 { return math.Log(x) },
	"abs":   func(x float64) float64 { return math.Abs(x) },
	"round": func(x float64) float64 { return math.Round(x) },
	"ceil":  func(x float64) float64 { return math.Ceil(x) },
	"floor": func(x float64) float64 { return math.Floor(x) },
	"pow":   func(x, y float64) float64 { return math.Pow(x, y) },
}

// ValidateExpression checks the original token stream of a calculator input
// against the closed allow-list: digits, arithmetic operators, parentheses,
// commas, decimal points, whitespace, and the permitted identifiers. The
// check runs before any rewriting or evaluation; anything else is rejected.
func ValidateExpression(input string) error {
	if input == "" {
		return fmt.Errorf("expression is empty")
	}
	for _, r := range input {
		switch {
		case r >= '0' && r <= '9':
		case r == '+' || r == '-' || r == '*' || r == '/' || r == '%':
		case r == '(' || r == ')' || r == ',' || r == '.':
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_' || r == '$':
		default:
			return fmt.Errorf("character %q is not allowed", r)
		}
	}
	for _, ident := range calcIdent.FindAllString(input, -1) {
		if _, ok := calcAllowed[ident]; !ok {
			return fmt.Errorf("identifier %q is not allowed", ident)
		}
	}
	return nil
}

// Calculate validates and evaluates a restricted arithmetic expression.
func Calculate(input string) (float64, error) {
	if err := ValidateExpression(input); err != nil {
		return 0, err
	}
	program, err := expr.Compile(input, expr.Env(calcEnv))
	if err != nil {
		return 0, fmt.Errorf("compile expression: %w", err)
	}
	out, err := expr.Run(program, calcEnv)
	if err != nil {
		return 0, fmt.Errorf("evaluate expression: %w", err)
	}
	switch v := out.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("expression produced %T, want a number", out)
	}
}

// FormatNumber renders a result without a trailing ".0" on integral values.
func FormatNumber(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// CalculatorTool evaluates a restricted arithmetic expression on behalf of
// the model.
func CalculatorTool() Tool {
	return Tool{
		Name:        "calculator",
		Description: "Evaluate an arithmetic expression. Supports + - * / % **, parentheses, PI, E, and the functions sqrt, sin, cos, tan, log, abs, round, ceil, floor, pow.",
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"expression": {"type": "string", "description": "The expression to evaluate, e.g. sqrt(144) + 3"}
			},
			"required": ["expression"],
			"additionalProperties": false
		}`),
		Execute: func(_ context.Context, args map[string]any) (string, error) {
			input := argString(args, "expression", "")
			result, err := Calculate(input)
			if err != nil {
				return "", &ToolError{Tool: "calculator", Message: err.Error()}
			}
			return FormatNumber(result), nil
		},
	}
}

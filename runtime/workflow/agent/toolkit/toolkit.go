// Package toolkit implements the catalogue of tools an agent node can
// expose: HTTP requests, email, web scraping, a restricted calculator, and
// the read-only inventory and order-management lookups. Each tool carries a
// JSON Schema for its arguments; payloads are validated against it before
// the tool body runs, so executors never see malformed input.
package toolkit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

type (
	// Tool is one named capability offered to the model. Execute receives
	// schema-validated arguments and returns the result rendered as a string
	// (JSON for structured data). Failures are returned as errors; the agent
	// surfaces them to the model as error result strings rather than
	// aborting the run.
	Tool struct {
		Name        string
		Description string
		Schema      json.RawMessage
		Execute     func(ctx context.Context, args map[string]any) (string, error)
	}

	// ToolError is a tool failure with a message safe to show the model.
	ToolError struct {
		Tool    string
		Message string
		Cause   error
	}
)

// Error implements the error interface.
func (e *ToolError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Tool, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Tool, e.Message)
}

// Unwrap supports errors.Is/As against the cause.
func (e *ToolError) Unwrap() error { return e.Cause }

// ResultText renders the failure the way the model sees it. The message is
// deliberately short; internals stay in the server logs.
func (e *ToolError) ResultText() string {
	return "Error: " + e.Message
}

// Invoke validates args against the tool's schema and runs it. A schema
// violation is reported as a ToolError without invoking the body.
func (t Tool) Invoke(ctx context.Context, args map[string]any) (string, error) {
	if err := t.validate(args); err != nil {
		return "", &ToolError{Tool: t.Name, Message: "invalid arguments", Cause: err}
	}
	return t.Execute(ctx, args)
}

func (t Tool) validate(args map[string]any) error {
	if len(t.Schema) == 0 {
		return nil
	}
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(t.Schema)))
	if err != nil {
		return fmt.Errorf("parse schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(t.Name+".json", doc); err != nil {
		return fmt.Errorf("register schema: %w", err)
	}
	schema, err := compiler.Compile(t.Name + ".json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	// Round-trip through JSON so numeric types match what the validator
	// expects regardless of how the arguments were decoded.
	normalized, err := normalizeArgs(args)
	if err != nil {
		return err
	}
	return schema.Validate(normalized)
}

func normalizeArgs(args map[string]any) (any, error) {
	if args == nil {
		return map[string]any{}, nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode arguments: %w", err)
	}
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(data)))
	if err != nil {
		return nil, fmt.Errorf("decode arguments: %w", err)
	}
	return doc, nil
}

// jsonResult renders v as compact JSON for return to the model.
func jsonResult(name string, v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", &ToolError{Tool: name, Message: "cannot encode result", Cause: err}
	}
	return string(data), nil
}

// argString returns the string argument under key, or def when absent.
func argString(args map[string]any, key, def string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return def
}

// argInt returns the integer argument under key, accepting the float64
// shape JSON decoding produces, or def when absent.
func argInt(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

// truncate caps s at limit characters, appending a marker when cut.
func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	return s[:limit] + "... [truncated]"
}

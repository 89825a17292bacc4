package toolkit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// DefaultHTTPResultLength caps HTTP tool response bodies handed back to the
// model.
const DefaultHTTPResultLength = 5000

var allowedMethods = map[string]struct{}{
	http.MethodGet: {}, http.MethodPost: {}, http.MethodPut: {},
	http.MethodPatch: {}, http.MethodDelete: {},
}

// HTTPTool performs an HTTP request on the model's behalf. The response body
// is truncated so a large payload cannot blow up the conversation.
func HTTPTool(client *http.Client) Tool {
	return Tool{
		Name:        "http_request",
		Description: "Perform an HTTP request and return the response body.",
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"url": {"type": "string", "description": "The URL to call"},
				"method": {"type": "string", "enum": ["GET", "POST", "PUT", "PATCH", "DELETE"]},
				"body": {"type": "string", "description": "Optional request body"}
			},
			"required": ["url", "method"],
			"additionalProperties": false
		}`),
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			url := argString(args, "url", "")
			method := strings.ToUpper(argString(args, "method", http.MethodGet))
			if _, ok := allowedMethods[method]; !ok {
				return "", &ToolError{Tool: "http_request", Message: fmt.Sprintf("method %q is not allowed", method)}
			}
			var body io.Reader
			if b := argString(args, "body", ""); b != "" {
				body = strings.NewReader(b)
			}
			req, err := http.NewRequestWithContext(ctx, method, url, body)
			if err != nil {
				return "", &ToolError{Tool: "http_request", Message: "invalid request", Cause: err}
			}
			if body != nil {
				req.Header.Set("Content-Type", "application/json")
			}
			resp, err := client.Do(req)
			if err != nil {
				return "", &ToolError{Tool: "http_request", Message: "request failed", Cause: err}
			}
			defer resp.Body.Close()
			data, err := io.ReadAll(io.LimitReader(resp.Body, int64(DefaultHTTPResultLength)+1))
			if err != nil {
				return "", &ToolError{Tool: "http_request", Message: "cannot read response", Cause: err}
			}
			return fmt.Sprintf("Status: %d\n%s", resp.StatusCode, truncate(string(data), DefaultHTTPResultLength)), nil
		},
	}
}

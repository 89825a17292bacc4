package exec

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/loomworks/loom/runtime/workflow/graph"
	"github.com/loomworks/loom/runtime/workflow/step"
	"github.com/loomworks/loom/runtime/workflow/tmpl"
	"github.com/loomworks/loom/runtime/workflow/values"
)

// maxHTTPBody caps how much of a response body a node reads.
const maxHTTPBody = 1 << 20

var httpMethods = map[string]struct{}{
	http.MethodGet: {}, http.MethodPost: {}, http.MethodPut: {},
	http.MethodPatch: {}, http.MethodDelete: {},
}

// HTTPRequest is the executor for HTTP_REQUEST nodes. URL, header values,
// and body are templated against the context; the call runs inside a nested
// durable step so a host retry does not repeat it. The result is written as
// {httpResponse: {status, statusText, data}} where data is parsed JSON when
// the response is JSON, otherwise text.
func HTTPRequest(client *http.Client) Executor {
	if client == nil {
		client = http.DefaultClient
	}
	return Func(func(ctx context.Context, req *Request) (values.Object, error) {
		varName, err := VariableName(req.Node)
		if err != nil {
			return nil, err
		}
		url := tmpl.Evaluate(req.Node.ConfigString("url", ""), req.Context)
		if url == "" {
			return nil, MissingConfig(graph.KindHTTPRequest, "url")
		}
		method := strings.ToUpper(req.Node.ConfigString("method", http.MethodGet))
		if _, ok := httpMethods[method]; !ok {
			return nil, MissingConfig(graph.KindHTTPRequest, "method")
		}
		body := tmpl.Evaluate(req.Node.ConfigString("body", ""), req.Context)
		headers := headerConfig(req.Node, req.Context)

		result, err := req.Step.Run(ctx, "http:"+req.Node.ID, func(ctx context.Context) (any, error) {
			return doRequest(ctx, client, method, url, body, headers)
		})
		if err != nil {
			return nil, err
		}
		return WriteResult(req.Context, varName, result)
	})
}

func headerConfig(node graph.Node, ctx values.Object) map[string]string {
	raw, ok := node.Data["headers"].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = tmpl.Evaluate(s, ctx)
		}
	}
	return out
}

func doRequest(ctx context.Context, client *http.Client, method, url, body string, headers map[string]string) (any, error) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, step.NonRetriable(fmt.Errorf("HTTP_REQUEST node: invalid request: %w", err))
	}
	if reader != nil && headers["Content-Type"] == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxHTTPBody))
	if err != nil {
		return nil, fmt.Errorf("read response from %s: %w", url, err)
	}
	var data any = string(raw)
	if json.Valid(raw) {
		var parsed any
		if err := json.Unmarshal(raw, &parsed); err == nil {
			data = parsed
		}
	}
	return map[string]any{
		"httpResponse": map[string]any{
			"status":     resp.StatusCode,
			"statusText": http.StatusText(resp.StatusCode),
			"data":       data,
		},
	}, nil
}

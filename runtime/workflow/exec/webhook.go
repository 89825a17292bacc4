package exec

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/loomworks/loom/runtime/workflow/graph"
	"github.com/loomworks/loom/runtime/workflow/tmpl"
	"github.com/loomworks/loom/runtime/workflow/values"
)

// Webhook is the executor for DISCORD and SLACK nodes: template the message,
// post it to the configured webhook URL inside a nested durable step, and
// write {messageContent} under the variable name. Discord webhooks take the
// message under "content", Slack under "text"; field selects which.
func Webhook(kind graph.NodeKind, field string, client *http.Client) Executor {
	if client == nil {
		client = http.DefaultClient
	}
	return Func(func(ctx context.Context, req *Request) (values.Object, error) {
		varName, err := VariableName(req.Node)
		if err != nil {
			return nil, err
		}
		message := tmpl.Evaluate(req.Node.ConfigString("message", ""), req.Context)
		if message == "" {
			return nil, MissingConfig(kind, "message")
		}
		webhookURL := tmpl.Evaluate(req.Node.ConfigString("webhookUrl", ""), req.Context)
		if webhookURL == "" {
			return nil, MissingConfig(kind, "webhookUrl")
		}

		result, err := req.Step.Run(ctx, "webhook:"+req.Node.ID, func(ctx context.Context) (any, error) {
			payload, err := json.Marshal(map[string]string{field: message})
			if err != nil {
				return nil, fmt.Errorf("encode webhook payload: %w", err)
			}
			httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, strings.NewReader(string(payload)))
			if err != nil {
				return nil, fmt.Errorf("build webhook request: %w", err)
			}
			httpReq.Header.Set("Content-Type", "application/json")
			resp, err := client.Do(httpReq)
			if err != nil {
				return nil, fmt.Errorf("post webhook: %w", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode >= 400 {
				return nil, fmt.Errorf("webhook returned status %d", resp.StatusCode)
			}
			return map[string]any{"messageContent": message}, nil
		})
		if err != nil {
			return nil, err
		}
		return WriteResult(req.Context, varName, result)
	})
}

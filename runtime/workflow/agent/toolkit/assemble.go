package toolkit

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/loomworks/loom/runtime/workflow/graph"
	"github.com/loomworks/loom/runtime/workflow/mail"
	"github.com/loomworks/loom/runtime/workflow/store"
)

// Deps carries the shared capabilities tool adapters need. The agent
// executor builds one per run.
type Deps struct {
	HTTPClient *http.Client
	Mailer     mail.Sender
	Commerce   store.CommerceStore
	OrgID      string
}

// ForNode builds the tools a connected tool sub-node contributes. Unknown
// kinds yield a pass-through tool that echoes its input, which keeps a
// half-built workflow runnable and gives tests a side-effect-free tool.
func ForNode(node graph.Node, deps Deps) []Tool {
	client := deps.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	switch node.Kind {
	case graph.KindHTTPRequest:
		return []Tool{HTTPTool(client)}
	case graph.KindSendEmail:
		cfg := mail.Config{
			Host:        node.ConfigString("host", ""),
			Port:        node.ConfigInt("port", 587),
			Username:    node.ConfigString("user", ""),
			Password:    node.ConfigString("pass", ""),
			FromAddress: node.ConfigString("fromAddress", ""),
			FromName:    node.ConfigString("fromName", ""),
		}
		sender := deps.Mailer
		if sender == nil {
			sender = mail.SMTP{}
		}
		return []Tool{EmailTool(sender, cfg)}
	case graph.KindWebScraper:
		return []Tool{ScraperTool(client, node.ConfigInt("maxLength", DefaultScrapeLength))}
	case graph.KindCalculator:
		return []Tool{CalculatorTool()}
	case graph.KindInventoryLookup:
		return InventoryTools(deps.Commerce, deps.OrgID)
	case graph.KindOrderManager:
		return OrderTools(deps.Commerce, deps.OrgID)
	default:
		return []Tool{Passthrough(node)}
	}
}

// Passthrough is the fallback tool for unrecognised sub-node kinds: it
// echoes its arguments back to the model.
func Passthrough(node graph.Node) Tool {
	name := strings.ToLower(string(node.Kind))
	return Tool{
		Name:        name,
		Description: "Echo the provided input back unchanged.",
		Schema: json.RawMessage(`{
			"type": "object",
			"additionalProperties": true
		}`),
		Execute: func(_ context.Context, args map[string]any) (string, error) {
			return jsonResult(name, args)
		},
	}
}

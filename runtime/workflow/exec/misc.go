package exec

import (
	"context"
	"net/http"

	"github.com/loomworks/loom/runtime/workflow/agent/toolkit"
	"github.com/loomworks/loom/runtime/workflow/graph"
	"github.com/loomworks/loom/runtime/workflow/mail"
	"github.com/loomworks/loom/runtime/workflow/step"
	"github.com/loomworks/loom/runtime/workflow/tmpl"
	"github.com/loomworks/loom/runtime/workflow/values"
)

// SendEmail is the executor for standalone SEND_EMAIL nodes. The SMTP
// endpoint comes from the node configuration; recipient, subject, and body
// are templated. The send runs inside a nested durable step.
func SendEmail(sender mail.Sender) Executor {
	if sender == nil {
		sender = mail.SMTP{}
	}
	return Func(func(ctx context.Context, req *Request) (values.Object, error) {
		varName, err := VariableName(req.Node)
		if err != nil {
			return nil, err
		}
		host := req.Node.ConfigString("host", "")
		if host == "" {
			return nil, MissingConfig(graph.KindSendEmail, "host")
		}
		to := tmpl.Evaluate(req.Node.ConfigString("to", ""), req.Context)
		if to == "" {
			return nil, MissingConfig(graph.KindSendEmail, "to")
		}
		cfg := mail.Config{
			Host:        host,
			Port:        req.Node.ConfigInt("port", 587),
			Username:    req.Node.ConfigString("user", ""),
			Password:    req.Node.ConfigString("pass", ""),
			FromAddress: req.Node.ConfigString("fromAddress", ""),
			FromName:    req.Node.ConfigString("fromName", ""),
		}
		msg := mail.Message{
			To:      to,
			Subject: tmpl.Evaluate(req.Node.ConfigString("subject", ""), req.Context),
			Body:    tmpl.Evaluate(req.Node.ConfigString("body", ""), req.Context),
		}

		result, err := req.Step.Run(ctx, "email:"+req.Node.ID, func(ctx context.Context) (any, error) {
			if err := sender.Send(ctx, cfg, msg); err != nil {
				return nil, err
			}
			return map[string]any{"delivered": true, "to": msg.To, "subject": msg.Subject}, nil
		})
		if err != nil {
			return nil, err
		}
		return WriteResult(req.Context, varName, result)
	})
}

// WebScraper is the executor for standalone WEB_SCRAPER nodes: fetch the
// templated URL, strip markup, and write {content} under the variable name.
func WebScraper(client *http.Client) Executor {
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
			return nil, MissingConfig(graph.KindWebScraper, "url")
		}
		maxLength := req.Node.ConfigInt("maxLength", toolkit.DefaultScrapeLength)

		result, err := req.Step.Run(ctx, "scrape:"+req.Node.ID, func(ctx context.Context) (any, error) {
			text, err := toolkit.Scrape(ctx, client, url, maxLength)
			if err != nil {
				return nil, err
			}
			return map[string]any{"content": text, "url": url}, nil
		})
		if err != nil {
			return nil, err
		}
		return WriteResult(req.Context, varName, result)
	})
}

// Calculator is the executor for standalone CALCULATOR nodes: validate and
// evaluate the templated expression and write {result, expression}.
// Validation failures are configuration errors, not retriable I/O.
func Calculator() Executor {
	return Func(func(_ context.Context, req *Request) (values.Object, error) {
		varName, err := VariableName(req.Node)
		if err != nil {
			return nil, err
		}
		expression := tmpl.Evaluate(req.Node.ConfigString("expression", ""), req.Context)
		if expression == "" {
			return nil, MissingConfig(graph.KindCalculator, "expression")
		}
		result, err := toolkit.Calculate(expression)
		if err != nil {
			return nil, step.NonRetriable(err)
		}
		return WriteResult(req.Context, varName, map[string]any{
			"result":     result,
			"expression": expression,
		})
	})
}

// NoOp is the executor for configuration-only sub-node kinds (CHAT_MODEL and
// MEMORY). They carry settings for the agent and do nothing when scheduled.
func NoOp() Executor {
	return Func(func(context.Context, *Request) (values.Object, error) {
		return nil, nil
	})
}
